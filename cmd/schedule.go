package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/quotes-crawler/internal/app"
	"github.com/JakeFAU/quotes-crawler/internal/scheduler"
	"github.com/JakeFAU/quotes-crawler/internal/worker"
)

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Runs a crawl every schedule.interval until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runSchedule(cmd.Context(), appInstance)
		},
	}
}

func runSchedule(ctx context.Context, a *app.App) error {
	cfg := a.Config().Schedule
	s := scheduler.Scheduler{
		Interval:   cfg.Interval,
		RunOnStart: cfg.RunOnStart,
		Logger:     a.Logger().Named("scheduler"),
	}
	err := s.Run(ctx, func(ctx context.Context) error {
		_, err := a.Worker().RunOnce(ctx)
		if errors.Is(err, worker.ErrRunInProgress) {
			a.Logger().Info("skipping scheduled run, another run is active")
			return nil
		}
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler: %w", err)
	}
	return nil
}
