package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"skill-recommender/internal/artifact"
	"skill-recommender/internal/bootstrap"
)

func newPredictCmd(load appLoader) *cobra.Command {
	var topN int
	cmd := &cobra.Command{
		Use:   "predict <employee-id>",
		Short: "Predict and store skill needs for an employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEmployeeID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, load, func(app *bootstrap.App) error {
				scored, err := app.Service.PredictSkills(cmd.Context(), id, topN)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"employeeId":        id,
					"recommendedSkills": scored,
				})
			})
		},
	}
	cmd.Flags().IntVarP(&topN, "top", "n", 0, "Number of skills to return (defaults to PREDICT_TOP_N)")
	return cmd
}

func newNeedsCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "needs <employee-id>",
		Short: "List stored skill needs for an employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEmployeeID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, load, func(app *bootstrap.App) error {
				needs, err := app.Service.ListNeeds(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"employeeId": id,
					"skillNeeds": needs,
				})
			})
		},
	}
}

func newFeedbackCmd(load appLoader) *cobra.Command {
	var (
		skillID int64
		vote    string
	)
	cmd := &cobra.Command{
		Use:   "feedback <employee-id>",
		Short: "Record an up or down vote on a recommended skill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEmployeeID(args[0])
			if err != nil {
				return err
			}
			if skillID <= 0 {
				return errors.New("--skill is required")
			}
			return withApp(cmd, load, func(app *bootstrap.App) error {
				ack, err := app.Service.RecordFeedback(cmd.Context(), id, skillID, vote)
				if err != nil {
					return err
				}
				// Nothing serves the in-process worker here, so run the
				// queued retrain before exiting.
				if ack.RetrainQueued && app.Config.RetrainMode != "sqs" {
					if err := app.Worker.RunOnce(cmd.Context(), "feedback"); err != nil {
						return fmt.Errorf("retrain after feedback: %w", err)
					}
				}
				return writeJSON(cmd.OutOrStdout(), ack)
			})
		},
	}
	cmd.Flags().Int64Var(&skillID, "skill", 0, "Skill id being voted on")
	cmd.Flags().StringVar(&vote, "vote", "", "Vote direction: up or down")
	_ = cmd.MarkFlagRequired("skill")
	_ = cmd.MarkFlagRequired("vote")
	return cmd
}

func newRetrainCmd(load appLoader) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "retrain",
		Short: "Retrain the classifier and publish a new artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, load, func(app *bootstrap.App) error {
				if err := app.Worker.RunOnce(cmd.Context(), reason); err != nil {
					return err
				}
				manifest, err := app.Artifacts.Current(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), manifest)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual", "Reason recorded with the retrain")
	return cmd
}

func newModelCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "Show the currently published model manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, load, func(app *bootstrap.App) error {
				manifest, err := app.Artifacts.Current(cmd.Context())
				if errors.Is(err, artifact.ErrNoArtifact) {
					return fmt.Errorf("no model published for %q", app.Artifacts.Name())
				}
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), manifest)
			})
		},
	}
}

func withApp(cmd *cobra.Command, load appLoader, fn func(app *bootstrap.App) error) error {
	app, err := load(cmd)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func parseEmployeeID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid employee id %q", raw)
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
