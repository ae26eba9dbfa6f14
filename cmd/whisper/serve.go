package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"whisper/internal/auth"
	"whisper/internal/config"
	"whisper/internal/db"
	httpx "whisper/internal/http"
	"whisper/internal/jobs"
	"whisper/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func setup() (config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	gdb, err := db.Connect(cfg.DatabaseURL, log)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, log, gdb, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, _, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			log.Info("migrations applied")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, gdb, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			jwtSvc := auth.NewJWT(cfg.JWTSecret, cfg.JWTTTL)
			r := httpx.NewRouter(cfg, gdb, jwtSvc, log)

			worker := &jobs.Worker{
				ID:       "worker-1",
				Queue:    &jobs.Repo{DB: gdb},
				Interval: cfg.WorkerInterval,
				Log:      log.Named("worker"),
				Handlers: map[string]jobs.HandlerFunc{
					jobs.TypeOTPDelivery: jobs.OTPDeliveryHandler(jobs.LogSender{Log: log.Named("sms")}),
					jobs.TypeEntryNotify: jobs.EntryNotifyHandler(jobs.LogNotifier{Log: log.Named("notify")}),
				},
			}

			srv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           r,
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				worker.Run(ctx)
				return nil
			})
			g.Go(func() error {
				log.Info("listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				// graceful shutdown
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}
