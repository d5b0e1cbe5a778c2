package cmd

import (
	"github.com/spf13/cobra"

	"ndvi-tools/pipeline"
)

// changeCmd represents the change command
var changeCmd = &cobra.Command{
	Use:   "change",
	Short: "Export the NDVI change between two years",
	Long: `Exports the composite of --to minus the composite of --from. Pixels
	masked in either year are masked in the change.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		return withPipeline(cmd.Context(), s, func(env *pipeline.Env) error {
			_, err := env.ExportChange(cmd.Context(), s.Change.From, s.Change.To)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(changeCmd)

	changeCmd.Flags().Int("from", 2018, "Earlier year")
	bindFlag(changeCmd.Flags().Lookup("from"), "change.from")
	changeCmd.Flags().Int("to", 2024, "Later year")
	bindFlag(changeCmd.Flags().Lookup("to"), "change.to")
}
