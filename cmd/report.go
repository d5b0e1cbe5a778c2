package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"ndvi-tools/config"
	"ndvi-tools/display"
	"ndvi-tools/pipeline"
	"ndvi-tools/report"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Gather the rendered year layers into a PDF",
	Long: `Writes one page per configured year, in year order, holding the layer
	rendered into layersDir under a caption such as "Germany September 2018
	NDVI". Every year must have been rendered by run or composite first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		return writeReport(s)
	},
}

func reportPages(s config.Settings) []report.Page {
	return report.YearPages(s.Boundaries.Name, time.Month(s.Window.Month), s.Years, func(year int) string {
		return filepath.Join(s.LayersDir, display.FileName(pipeline.LayerName(year)))
	})
}

func writeReport(s config.Settings) error {
	title := fmt.Sprintf("%s %s NDVI", s.Boundaries.Name, time.Month(s.Window.Month))
	return report.Write(s.Report, reportPages(s), report.WithTitle(title))
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringP("output", "o", report.DefaultPath, "PDF file to write")
	bindFlag(reportCmd.Flags().Lookup("output"), "report")
}
