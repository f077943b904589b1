package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpx "memoflux/internal/http"
	"memoflux/internal/jobs"
	"memoflux/internal/scheduler"
)

// stuckProcessingAfter is how old a processing flag without a live job must be before startup clears it.
const stuckProcessingAfter = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, job worker, inbox watcher and scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if n, err := a.memos.ResetStuck(ctx, time.Now().Add(-stuckProcessingAfter)); err != nil {
		log.Warn().Err(err).Msg("reset stuck memos")
	} else if n > 0 {
		log.Info().Int64("memos", n).Msg("cleared stale processing flags")
	}

	deps := httpx.Deps{
		Memos:                a.memos,
		Tasks:                a.tasks,
		Tags:                 a.tags,
		Analyzer:             a.analyzer,
		Images:               a.inbox,
		JWT:                  a.jwt,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		CORSAllowCredentials: cfg.CORSAllowCredentials,
		Log:                  log,
	}
	if cfg.InboxDir != "" {
		deps.Inbox = a.inbox
	}
	if a.jwt == nil {
		log.Warn().Msg("API_TOKEN_SECRET is empty, API auth disabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	worker := jobs.NewWorker(a.jobs, cfg.WorkerPollInterval, log)
	a.analyzer.Register(worker)

	sched := scheduler.New(log.With().Str("component", "scheduler").Logger())
	if cfg.InboxDir != "" {
		if _, err := sched.Every("inbox poll", cfg.InboxPollInterval, func(ctx context.Context) error {
			_, err := a.inbox.Check(ctx)
			return err
		}); err != nil {
			return err
		}
	}
	if cfg.TagSweepInterval > 0 {
		if _, err := sched.Every("tag sweep", cfg.TagSweepInterval, func(ctx context.Context) error {
			_, err := a.tags.Sweep(ctx, a.memos)
			return err
		}); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return worker.Run(ctx) })
	g.Go(func() error { return sched.Run(ctx) })
	if cfg.InboxDir != "" {
		g.Go(func() error {
			if _, err := a.inbox.Check(ctx); err != nil {
				log.Warn().Err(err).Msg("initial inbox check")
			}
			return a.inbox.Watch(ctx)
		})
	}

	err = g.Wait()
	log.Info().Msg("stopped")
	return err
}
