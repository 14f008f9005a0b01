// Command skillctl drives the recommender from the command line against the
// same storage the API uses.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"skill-recommender/internal/bootstrap"
	"skill-recommender/internal/shared/config"
	"skill-recommender/internal/shared/storage/db"
)

// appLoader builds the app for a command. Tests replace it.
type appLoader func(cmd *cobra.Command) (*bootstrap.App, error)

func loadApp(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	opts := db.DefaultCLIOptions()
	app, err := bootstrap.Build(cfg, bootstrap.Options{DBOptions: &opts, SkipRouter: true})
	if err != nil {
		return nil, err
	}
	if err := app.LoadModel(cmd.Context()); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func newRootCmd(load appLoader) *cobra.Command {
	root := &cobra.Command{
		Use:           "skillctl",
		Short:         "Skill recommender administration",
		Long:          "skillctl predicts skill needs, records feedback, and retrains the job title classifier.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newPredictCmd(load),
		newNeedsCmd(load),
		newFeedbackCmd(load),
		newRetrainCmd(load),
		newModelCmd(load),
	)
	return root
}

func main() {
	if err := newRootCmd(loadApp).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
