package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/scan-pipeline/internal/broadcast"
	"github.com/tbourn/scan-pipeline/internal/config"
	"github.com/tbourn/scan-pipeline/internal/engine"
	httpapi "github.com/tbourn/scan-pipeline/internal/http"
	"github.com/tbourn/scan-pipeline/internal/http/handlers"
	"github.com/tbourn/scan-pipeline/internal/notify"
	"github.com/tbourn/scan-pipeline/internal/observability"
	"github.com/tbourn/scan-pipeline/internal/repo"
	"github.com/tbourn/scan-pipeline/internal/services"
	"github.com/tbourn/scan-pipeline/internal/sysutil"
)

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the event pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(*envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

// app holds everything serve starts, so tests can build it without a socket.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	router   *gin.Engine
	hub      *broadcast.Hub
	pipeline *services.JobPipeline
	cron     *cron.Cron
	closeDB  func() error
}

func buildApp(cfg config.Config, logger zerolog.Logger) (*app, error) {
	opts := []repo.Option{repo.WithSilentLogger()}
	if cfg.OTEL.Enabled {
		opts = append(opts, repo.WithTracing())
	}
	db, err := repo.OpenSQLite(cfg.DBPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := repo.AutoMigrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	eng := engine.New(cfg.Engine.BaseURL, cfg.Engine.SubmitTimeout)
	hub := broadcast.NewHub(eng, broadcast.Options{
		Buffer:           cfg.Broadcast.SubscriberBuffer,
		ReconnectInitial: cfg.Broadcast.ReconnectInitial,
		ReconnectMax:     cfg.Broadcast.ReconnectMax,
		ReconnectRetries: uint64(cfg.Broadcast.ReconnectRetries),
		Logger:           logger,
	})
	jobs := services.NewJobTracker()
	store := services.NewRecordStore(db)
	idem := services.NewIdempotencyStore(db, cfg.IdempotencyTTL)

	c := cron.New(cron.WithLogger(cron.DiscardLogger), cron.WithChain(cron.Recover(cron.DiscardLogger)))
	if _, err := services.ScheduleJobSweep(c, jobs, cfg.Jobs.Retention, cfg.Jobs.SweepSchedule, logger); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("schedule job sweep: %w", err)
	}
	if _, err := services.ScheduleIdempotencyPurge(c, idem, cfg.IdempotencyPurgeSchedule, logger); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("schedule idempotency purge: %w", err)
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, handlers.Deps{
		Gateway:       services.NewGateway(eng, jobs, cfg.Engine.SubmitTimeout),
		Records:       store,
		Idempotency:   idem,
		Hub:           hub,
		Sessions:      notify.NewRegistry(hub, cfg.ToastDuration, logger),
		MaxUploadSize: cfg.Engine.MaxUploadSize,
		Heartbeat:     cfg.Broadcast.HeartbeatInterval,
	}, idem.Exists, cfg)

	return &app{
		cfg:    cfg,
		log:    logger,
		router: r,
		hub:    hub,
		pipeline: &services.JobPipeline{
			Hub:           hub,
			Jobs:          jobs,
			Engine:        eng,
			Store:         store,
			StatusTimeout: cfg.Engine.StatusTimeout,
			Log:           logger,
		},
		cron:    c,
		closeDB: sqlDB.Close,
	}, nil
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger := sysutil.ConfigureLogging(cfg.LogLevel, cfg.LogPretty, "scanpipe", nil)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, Version)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.closeDB(); err != nil {
			log.Warn().Err(err).Msg("close database")
		}
	}()
	return a.run(ctx)
}

// run starts every component under one errgroup and shuts them down when
// ctx ends or any of them fails.
func (a *app) run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.router,
		ReadTimeout:       a.cfg.ReadTimeout,
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", srv.Addr).Str("engine", a.cfg.Engine.BaseURL).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// Without the upstream stream the API still serves records; /ready reports it.
		if err := a.hub.Run(gctx); err != nil {
			a.log.Error().Err(err).Msg("event relay stopped")
		}
		return nil
	})

	g.Go(func() error { return a.pipeline.Run(gctx) })

	a.cron.Start()

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		<-a.cron.Stop().Done()
		// Closing the hub ends open event streams so Shutdown does not wait on them.
		a.hub.Close()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.log.Info().Msg("stopped")
	return err
}
