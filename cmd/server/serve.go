package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zekeo/sjfnw/internal/logger"
	"github.com/zekeo/sjfnw/internal/logic"
	"github.com/zekeo/sjfnw/internal/mail"
	"github.com/zekeo/sjfnw/internal/router"
	"github.com/zekeo/sjfnw/internal/scheduler"
	"github.com/zekeo/sjfnw/internal/storage"
	"github.com/zekeo/sjfnw/internal/worker"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, scheduler and worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	mailer, err := mail.NewMailer(cfg.Mail)
	if err != nil {
		return err
	}
	pool, err := worker.New(cfg.Worker.PoolSize)
	if err != nil {
		return err
	}
	defer pool.Release(shutdownTimeout)

	outbox := mail.NewOutbox(db, mailer, pool, cfg.Mail.MaxAttempts)
	grants := logic.NewGrantLogic(db, cfg, store, outbox)

	manager := scheduler.NewManager(scheduler.DefaultJobs(db, cfg, grants, outbox)...)
	manager.Start()
	defer manager.Stop()

	srv := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: router.Setup(router.Deps{
			DB:     db,
			Config: cfg,
			Store:  store,
			Outbox: outbox,
			Runner: pool,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
