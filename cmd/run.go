package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ndvi-tools/config"
	"ndvi-tools/export"
	"ndvi-tools/pipeline"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Export the composite of every year and the change between two years",
	Long: `Builds the September median composite of every configured year,
	masked to the region and to forest and agriculture land cover, renders
	each as a layer and exports it. The change between change.from and
	change.to follows. Exports run in the background; the command waits for
	all of them and writes a manifest, then gathers the rendered years into
	the PDF report unless report is empty.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		err = withPipeline(cmd.Context(), s, func(env *pipeline.Env) error {
			return env.Run(cmd.Context(), s.Years, s.Change.From, s.Change.To)
		})
		if err != nil || s.Report == "" {
			return err
		}
		return writeReport(s)
	},
}

// withPipeline runs f on a freshly set up pipeline, then drains the export
// queue, logs failed tasks and writes the manifest.
func withPipeline(ctx context.Context, s config.Settings, f func(env *pipeline.Env) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := pipeline.Setup(ctx, s, pipeline.Options{})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, env.Close())
	}()

	runErr := f(env)
	if waitErr := env.Queue.Wait(ctx); waitErr != nil && runErr == nil {
		runErr = fmt.Errorf("exports failed: %w", waitErr)
	}

	tasks := env.Queue.Tasks()
	for _, task := range pipeline.Failed(tasks) {
		_, taskErr := task.Status()
		logrus.WithField("job", task.Job.Description).Errorf("Export failed: %v", taskErr)
	}
	if path := viper.GetString("manifest"); path != "" && len(tasks) > 0 {
		if err := export.NewManifest(tasks).Write(path); err != nil {
			return errors.Join(runErr, err)
		}
		logrus.Infof("Wrote manifest of %d jobs to %s", len(tasks), path)
	}
	return runErr
}

func init() {
	rootCmd.AddCommand(runCmd)

	rootCmd.PersistentFlags().String("manifest", "ndvi-manifest.yaml", "YAML file listing the export jobs of the run, empty to disable")
	bindFlag(rootCmd.PersistentFlags().Lookup("manifest"), "manifest")
}
