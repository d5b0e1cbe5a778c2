package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"ndvi-tools/pipeline"
)

var year int

// compositeCmd represents the composite command
var compositeCmd = &cobra.Command{
	Use:   "composite",
	Short: "Export the composite of a single year",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if year == 0 {
			return errors.New("--year is required")
		}
		s, err := loadSettings()
		if err != nil {
			return err
		}
		return withPipeline(cmd.Context(), s, func(env *pipeline.Env) error {
			_, err := env.ExportYears(cmd.Context(), []int{year})
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(compositeCmd)

	compositeCmd.Flags().IntVar(&year, "year", 0, "Year to composite")
}
