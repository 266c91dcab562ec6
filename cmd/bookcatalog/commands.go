package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/bookcatalog/importer"
	"github.com/aluiziolira/bookcatalog/models"
	"github.com/aluiziolira/bookcatalog/scraper"
	"github.com/aluiziolira/bookcatalog/store"
)

func newScrapeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Crawl the catalog into the output file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := a.cfg
			a.logger.Info("starting scrape",
				slog.String("base_url", cfg.Scraper.BaseURL),
				slog.Int("max_pages", cfg.Scraper.MaxPages),
				slog.String("output", cfg.Output.File),
				slog.String("format", cfg.Output.Format),
			)

			fetcher := scraper.NewFetcher(cfg.Scraper, nil, a.logger)
			s, err := scraper.NewScraper(cfg.Scraper, fetcher, nil, a.logger)
			if err != nil {
				return a.fail("initialising scraper", err)
			}

			result, err := s.RunToFile(ctx, cfg.Output)
			if err != nil {
				return a.fail("scraping failed", err)
			}
			printSummary(cmd.OutOrStdout(), result, cfg.Output.File)
			return nil
		},
	}

	defaults := cmd.Flags()
	defaults.String("output", "data/book_data.csv", "Output file path")
	defaults.String("format", "csv", "Output format: csv, json, or dual")
	defaults.Int("max-pages", 0, "Maximum listing pages to crawl (0 = all)")
	defaults.String("base-url", "https://books.toscrape.com/catalogue/", "Catalog base URL")
	a.bind("output.file", defaults.Lookup("output"))
	a.bind("output.format", defaults.Lookup("format"))
	a.bind("scraper.max_pages", defaults.Lookup("max-pages"))
	a.bind("scraper.base_url", defaults.Lookup("base-url"))
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a crawl output file into PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool, err := a.openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := importer.NewService(store.NewPostgresRepo(pool), a.logger)
			start := time.Now()
			res, err := svc.ImportFromFile(ctx, a.cfg.Import.File)
			if err != nil {
				return a.fail("import failed", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d books, skipped %d existing, in %v\n",
				res.Inserted, res.Skipped, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().String("file", "data/book_data.csv", "CSV file to import")
	a.bind("import.file", cmd.Flags().Lookup("file"))
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply or inspect the database schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			pool, err := a.openPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := store.Migrate(cmd.Context(), pool, command); err != nil {
				return a.fail("migration failed", err)
			}
			a.logger.Info("migration complete", slog.String("command", command))
			return nil
		},
	}
}

func (a *app) openPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := store.Open(ctx, a.cfg.Database)
	if err != nil {
		return nil, a.fail("connecting to database", err)
	}
	a.logger.Info("database connected", slog.String("dsn", store.RedactDSN(a.cfg.Database.DSN)))
	return pool, nil
}

func printSummary(w io.Writer, result *models.ScrapeResult, outputFile string) {
	separator := "--------------------------------------------------"
	duration := result.EndTime.Sub(result.StartTime)
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(result.SavedCount) / duration.Seconds()
	}

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Scrape complete")
	fmt.Fprintf(w, "  Listing pages: %d\n", result.PageCount)
	fmt.Fprintf(w, "  Detail URLs:   %d\n", result.URLCount)
	fmt.Fprintf(w, "  Saved:         %d\n", result.SavedCount)
	fmt.Fprintf(w, "  Requests:      %d\n", result.RequestCount)
	fmt.Fprintf(w, "  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Items/sec:     %.2f\n", itemsPerSec)
	fmt.Fprintf(w, "  Output file:   %s\n", outputFile)
	fmt.Fprintln(w, separator)
}
