package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"hospops/internal/config"
	"hospops/internal/effect"
	"hospops/internal/metrics"
	"hospops/internal/mockbackend"
	"hospops/shared/reminders"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func mockServerCmd(configPath *string) *cobra.Command {
	var (
		addr string
		seed bool
	)
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve both backends from memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			// API bases are irrelevant here, so only a config that fails to
			// parse is fatal.
			cfg, err := config.Load(*configPath)
			if cfg == nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cfg.Log.Level)
			if !cmd.Flags().Changed("addr") {
				addr = cfg.MockServer.Address
			}
			if !cmd.Flags().Changed("seed") {
				seed = cfg.MockServer.Seed
			}

			srv := mockbackend.New(logger)
			if seed {
				if err := srv.SeedDemo(); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctxShutdown)
			}()
			if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&seed, "seed", false, "load demo data")
	return cmd
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"serve-metrics"},
		Short:   "Keep the client running with health, metrics and config reload",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.telegram != nil {
				a.telegram.Start(ctx)
			}
			return runServe(ctx, a, *configPath)
		},
	}
}

func runServe(ctx context.Context, a *app, configPath string) error {
	logger := a.logger

	go startHealthServer(ctx, a.cfg.Monitoring.HealthCheckPort, a.rdb, logger)
	if a.cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, a.cfg.Monitoring.PrometheusPort, logger)
	}

	path := configPath
	if path == "" {
		path = config.DefaultPath
	}
	if err := config.Watch(ctx, path, 10*time.Second, logger, func(cfg *config.Config) {
		config.ApplyTunables(cfg, a.reception, a.admin)
	}); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("config watch disabled")
	}

	if a.cfg.Reminders.Enabled && a.telegram != nil {
		var marker reminders.Marker
		if a.rdb != nil {
			marker = reminders.NewRedisMarker(a.rdb, "hospops")
		}
		svc := reminders.NewService(reminders.Config{
			CheckInterval: time.Duration(a.cfg.Reminders.CheckIntervalMinutes) * time.Minute,
			LeadTime:      time.Duration(a.cfg.Reminders.LeadHours) * time.Hour,
		}, a.repos.Reservations, a.telegram, marker, logger)
		svc.Start(ctx)
		defer svc.Stop()
	}

	// Warm the lists the cross-entity refreshes depend on.
	for _, task := range []*effect.Task{
		a.hub.Departments.FetchList(ctx),
		a.hub.Staff.FetchList(ctx),
		a.hub.Receptions.FetchList(ctx),
	} {
		if err := task.Wait(ctx); err != nil {
			logger.Warn().Err(err).Msg("initial fetch failed")
		}
	}

	logger.Info().Msg("hospops started")
	<-ctx.Done()
	logger.Info().Msg("hospops stopped")
	return nil
}

func startHealthServer(ctx context.Context, port int, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if rdb != nil {
			ctxPing, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	serve(ctx, fmt.Sprintf(":%d", port), mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serve(ctx, fmt.Sprintf(":%d", port), mux, "metrics", logger)
}

func serve(ctx context.Context, addr string, h http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg(name + " server error")
	}
}
