package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"live-quiz-service/internal/config"
)

// NewSweepCmd runs one retention sweep and exits; for cron-driven deployments.
func NewSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete ended sessions past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), *configPath)
		},
	}
}

func runSweep(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	c, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := c.sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	logger.Info("sweep finished", "sessions", report.Sessions, "answerEvents", report.AnswerEvents, "failed", report.Failed)
	return nil
}
