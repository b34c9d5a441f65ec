package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var withSchedule bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the dashboard API, optionally alongside the scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := appInstance.Logger()
			port := appInstance.Config().Server.Port

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           appInstance.Server(ctx).Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("http server started", zap.Int("port", port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			if withSchedule {
				g.Go(func() error {
					return runSchedule(gctx, appInstance)
				})
			}
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("shutdown initiated")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("server shutdown error", zap.Error(err))
				}
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&withSchedule, "schedule", false, "also run the crawl scheduler")
	return cmd
}
