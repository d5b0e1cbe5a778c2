package cmd

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ndvi-tools/export"
)

var jobStatus string

// jobsCmd represents the jobs command
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the export jobs recorded in the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("ledger")
		if path == "" {
			return errors.New("no ledger configured")
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ledger, err := export.OpenLedger(ctx, path)
		if err != nil {
			return err
		}
		defer ledger.Close()

		records, err := ledger.List(ctx, export.Status(strings.ToUpper(jobStatus)))
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"id", "description", "folder", "status", "updated", "error"})
		for _, rec := range records {
			table.Append([]string{
				rec.ID,
				rec.Description,
				rec.Folder,
				string(rec.Status),
				humanize.Time(rec.UpdatedAt),
				rec.Error,
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsCmd.Flags().StringVarP(&jobStatus, "status", "s", "", "Only list jobs in this status: SUBMITTED, RUNNING, COMPLETED or FAILED")
}
