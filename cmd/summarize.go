package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ndvi-tools/cellsio"
	"ndvi-tools/celltools"
	"ndvi-tools/config"
	"ndvi-tools/display"
	"ndvi-tools/export"
	"ndvi-tools/pipeline"
	"ndvi-tools/raster"
	"ndvi-tools/rasterio"
)

var summaryYear int
var summaryChange bool
var summaryInput string
var summaryBand string

// summarizeCmd represents the summarize command
var summarizeCmd = &cobra.Command{
	Use:   "summarize [output_path]",
	Short: "Aggregate a composite, the change or an exported GeoTIFF into S2 cells",
	Long: `Aggregates the valid pixels of a raster over each S2 cell and writes
	one row per cell with the aggregate, the pixel count, the share of the
	cell covered and the cell outline as WKT.

	The raster is one of:
		--year:    the composite of that year
		--change:  the change between change.from and change.to
		--input:   a GeoTIFF such as an export, band chosen with --band

	Output is Parquet when the path ends in .parquet, CSV otherwise.

	Options:
		--s2Lvl:   S2 cell level to generate results for. Essentially output resolution.
		--aggFunc: Function to use when aggregating to S2 cell. Default is the mean,
		           choose from: mean, sum, max, min, median`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		r, err := summaryRaster(ctx)
		if err != nil {
			return err
		}
		logSummary(raster.Stats(r))

		opts := celltools.ConfigOpts{
			NumWorkers: viper.GetInt("numWorkers"),
			S2Lvl:      viper.GetInt("s2Lvl"),
			AggFunc:    chooseAggFunc(viper.GetString("aggFunc")),
		}
		cells, err := celltools.RasterToS2(ctx, r, opts)
		if errors.Is(err, celltools.ErrNotGeographic) {
			logrus.Infof("Reprojecting %s to %s", r.Name, export.DefaultCRS)
			if r, err = rasterio.Reproject(r, export.DefaultCRS); err != nil {
				return err
			}
			cells, err = celltools.RasterToS2(ctx, r, opts)
		}
		if err != nil {
			return err
		}
		logrus.Infof("Writing %d cells to %s", len(cells), args[0])

		if strings.EqualFold(filepath.Ext(args[0]), ".parquet") {
			return cellsio.WriteToParquet(cells, args[0])
		}
		return cellsio.WriteToCSV(cells, args[0])
	},
}

func summaryRaster(ctx context.Context) (*raster.Raster, error) {
	sources := 0
	for _, set := range []bool{summaryYear != 0, summaryChange, summaryInput != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, errors.New("exactly one of --year, --change and --input is required")
	}
	if summaryInput != "" {
		return readInput(summaryInput, summaryBand)
	}

	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	env, err := summaryPipeline(ctx, s)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := env.Close(); err != nil {
			logrus.Error(err)
		}
	}()
	if summaryChange {
		return env.Change(ctx, s.Change.From, s.Change.To)
	}
	return env.Composer.Build(ctx, summaryYear)
}

// summaryPipeline sets up a pipeline that renders and exports nothing.
func summaryPipeline(ctx context.Context, s config.Settings) (*pipeline.Env, error) {
	s.Ledger = ""
	return pipeline.Setup(ctx, s, pipeline.Options{
		Sink:     &export.Recorder{},
		Renderer: &display.Recorder{},
	})
}

func readInput(path, band string) (*raster.Raster, error) {
	godal.RegisterAll()
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logrus.Error(err)
		}
	}()
	if band == "" {
		return rasterio.ReadBand(ds, 0, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	return rasterio.ReadNamedBand(ds, band)
}

func logSummary(s raster.Summary) {
	logrus.WithFields(logrus.Fields{
		"band":     s.Name,
		"pixels":   s.Count,
		"coverage": fmt.Sprintf("%.1f%%", 100*s.Coverage),
		"min":      s.Min,
		"max":      s.Max,
		"mean":     s.Mean,
		"stddev":   s.StdDev,
	}).Info("Raster summary")
}

func chooseAggFunc(funcFlag string) celltools.AggFunc {
	switch funcFlag {
	case "mean":
		return celltools.Mean
	case "sum":
		return celltools.Sum
	case "max":
		return celltools.Max
	case "min":
		return celltools.Min
	case "median":
		return celltools.Median
	default:
		logrus.Warnf("Aggregation function %s not recognized, using mean", funcFlag)
		return celltools.Mean
	}
}

func init() {
	rootCmd.AddCommand(summarizeCmd)

	summarizeCmd.Flags().IntVar(&summaryYear, "year", 0, "Summarise the composite of this year")
	summarizeCmd.Flags().BoolVar(&summaryChange, "change", false, "Summarise the change between change.from and change.to")
	summarizeCmd.Flags().StringVarP(&summaryInput, "input", "i", "", "Summarise this GeoTIFF instead")
	summarizeCmd.Flags().StringVarP(&summaryBand, "band", "b", "", "Band of --input, by description. Default is the first band")

	summarizeCmd.Flags().IntP("s2Lvl", "l", 11, "S2 cell level to generate results for. Essentially output resolution")
	bindFlag(summarizeCmd.Flags().Lookup("s2Lvl"), "s2Lvl")

	summarizeCmd.Flags().StringP("aggFunc", "a", "mean", "Function to use when aggregating to S2 cell: mean, sum, max, min, median")
	bindFlag(summarizeCmd.Flags().Lookup("aggFunc"), "aggFunc")
}
