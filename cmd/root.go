package cmd

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ndvi-tools/config"
)

var cfgFile string
var Verbose bool
var Debug bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ndvi-tools",
	Short: "Seasonal NDVI composites and change maps from a MODIS archive",
	Long: `Builds September median NDVI composites over forest and agriculture
	land for a country, exports one GeoTIFF per year plus the change between
	two years, and summarises rasters into S2 cells.

	./ndvi-tools run                       all years and the change
	./ndvi-tools composite --year 2020     one year
	./ndvi-tools change --from 2018 --to 2024
	./ndvi-tools summarize --year 2020 cells.parquet
	./ndvi-tools report -o German_NDVI_Report.pdf
	./ndvi-tools jobs --status FAILED`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setLogLevels()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ndvi-tools.yaml in . or $HOME)")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Verbose output")
	bindFlag(rootCmd.PersistentFlags().Lookup("verbose"), "verbose")
	rootCmd.PersistentFlags().BoolVarP(&Debug, "debug", "d", false, "Debug output")
	bindFlag(rootCmd.PersistentFlags().Lookup("debug"), "debug")

	rootCmd.PersistentFlags().IntP("numWorkers", "n", 4, "Number of workers for compositing and exports")
	bindFlag(rootCmd.PersistentFlags().Lookup("numWorkers"), "numWorkers")
	rootCmd.PersistentFlags().String("exportRoot", "exports", "Directory or GDAL VSI prefix receiving export folders")
	bindFlag(rootCmd.PersistentFlags().Lookup("exportRoot"), "exportRoot")
	rootCmd.PersistentFlags().String("ledger", "ndvi-jobs.db", "SQLite file recording export jobs, empty to disable")
	bindFlag(rootCmd.PersistentFlags().Lookup("ledger"), "ledger")
}

// initConfig reads in the config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName("ndvi-tools")
		viper.SetConfigType("yaml")
	}

	// NDVI_* variables may also come from a .env file.
	_ = godotenv.Load()
	viper.SetEnvPrefix("NDVI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logrus.Infof("Using config file: %s", viper.ConfigFileUsed())
	} else if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || cfgFile != "" {
		logrus.Fatalf("Failed to read config: %v", err)
	}
}

func bindFlag(flag *pflag.Flag, key string) {
	if err := viper.BindPFlag(key, flag); err != nil {
		logrus.Exit(1)
	}
}

func setLogLevels() {
	if viper.GetBool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	} else if viper.GetBool("verbose") {
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
}

func loadSettings() (config.Settings, error) {
	return config.Load(viper.GetViper())
}
