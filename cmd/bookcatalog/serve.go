package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/bookcatalog/api"
	"github.com/aluiziolira/bookcatalog/auth"
	"github.com/aluiziolira/bookcatalog/importer"
	"github.com/aluiziolira/bookcatalog/jobs"
	"github.com/aluiziolira/bookcatalog/scraper"
	"github.com/aluiziolira/bookcatalog/store"
)

const (
	shutdownTimeout = 30 * time.Second
	jobDrainTimeout = 5 * time.Second
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog API and the admin job endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", ":8000", "HTTP listen address")
	a.bind("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func (a *app) serve(parent context.Context) error {
	cfg := a.cfg
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	scrapeMetrics := scraper.NewMetrics(reg)
	jobMetrics := jobs.NewMetrics(reg)

	pool, err := a.openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	repo := store.NewPostgresRepo(pool)

	fetcher := scraper.NewFetcher(cfg.Scraper, scrapeMetrics, a.logger)
	crawler, err := scraper.NewScraper(cfg.Scraper, fetcher, scrapeMetrics, a.logger)
	if err != nil {
		return a.fail("initialising scraper", err)
	}

	// Jobs outlive the request that triggered them and get a grace period on shutdown.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	runner := jobs.NewRunner(jobCtx, jobMetrics, a.logger)
	runner.Register(jobs.KindScrape, jobs.ScrapeBody(crawler, cfg.Output), nil)
	runner.Register(jobs.KindImport,
		jobs.ImportBody(importer.NewService(repo, a.logger), cfg.Import.File),
		jobs.SourceExists(cfg.Import.File),
	)

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewServer(api.Options{
			Catalog: repo,
			Jobs:    runner,
			Tokens:  auth.NewTokens(cfg.Auth),
			Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			Server:  cfg.Server,
			Logger:  a.logger,
		}).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", slog.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return a.fail("http server failed", err)
		}
	case <-ctx.Done():
		a.logger.Info("shutdown signal received, waiting for in-flight work to finish")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown failed", slog.Any("error", err))
	}
	if err := runner.Wait(shutdownCtx); err != nil {
		a.logger.Warn("jobs still running, cancelling", slog.Any("error", err))
		cancelJobs()
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), jobDrainTimeout)
		defer cancelDrain()
		if err := runner.Wait(drainCtx); err != nil {
			a.logger.Error("jobs did not stop", slog.Any("error", err))
		}
	}
	a.logger.Info("server stopped")
	return nil
}
