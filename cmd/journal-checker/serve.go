// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/journal-checker/internal/api"
)

// refreshTimeout bounds one scheduled full-table refresh.
const refreshTimeout = 5 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and lookup form",
	Long: `Serve exposes GET /check-journal, POST /revalidate-journals, GET /stats/top,
GET /healthz, GET /metrics, and the lookup form at /.

At startup the cache is warmed from the durable snapshot when one exists.
With cache.refresh_schedule set, the table is force-refreshed on that cron
schedule as well.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().String("refresh-schedule", "", "cron spec for forced refreshes, e.g. \"@every 1h\"")
	serveCmd.Flags().Float64("rate-limit", 0, "requests per second per client (0 disables)")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("cache.refresh_schedule", serveCmd.Flags().Lookup("refresh-schedule"))
	viper.BindPFlag("server.rate_limit", serveCmd.Flags().Lookup("rate-limit"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper(), true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	a.warm(ctx)

	scheduler, err := startRefreshSchedule(a, cfg.Cache.RefreshSchedule)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer func() { <-scheduler.Stop().Done() }()
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewRouter(a.svc, a.cache, api.Options{
			RateLimit: cfg.Server.RateLimit,
			RateBurst: cfg.Server.RateBurst,
			Logger:    a.logger.Named("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// startRefreshSchedule runs a full journal refresh on spec. An empty spec returns a
// nil scheduler.
func startRefreshSchedule(a *app, spec string) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, a.scheduledRefresh); err != nil {
		return nil, fmt.Errorf("parsing refresh schedule %q: %w", spec, err)
	}
	c.Start()
	a.logger.Info("scheduled cache refresh", zap.String("schedule", spec))
	return c, nil
}

func (a *app) scheduledRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := a.svc.Refresh(ctx); err != nil {
		a.logger.Error("scheduled refresh failed", zap.Error(err))
		return
	}
	a.logger.Info("scheduled refresh complete", zap.Int("journals", a.cache.Stats().Journals))
}
