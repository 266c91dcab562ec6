package jobs

import (
	"context"
	"fmt"
	"os"

	"github.com/aluiziolira/bookcatalog/config"
	"github.com/aluiziolira/bookcatalog/importer"
	"github.com/aluiziolira/bookcatalog/models"
)

// Crawler is the scrape side of the pipeline.
type Crawler interface {
	RunToFile(ctx context.Context, out config.OutputConfig) (*models.ScrapeResult, error)
}

// Importer is the import side of the pipeline.
type Importer interface {
	ImportFromFile(ctx context.Context, path string) (importer.Result, error)
}

// ScrapeBody crawls the catalog into the configured output file.
func ScrapeBody(c Crawler, out config.OutputConfig) Body {
	return func(ctx context.Context) (map[string]int, error) {
		res, err := c.RunToFile(ctx, out)
		if err != nil {
			return nil, err
		}
		return map[string]int{
			"pages":    res.PageCount,
			"urls":     res.URLCount,
			"saved":    res.SavedCount,
			"requests": res.RequestCount,
		}, nil
	}
}

// ImportBody imports path into the store.
func ImportBody(i Importer, path string) Body {
	return func(ctx context.Context) (map[string]int, error) {
		res, err := i.ImportFromFile(ctx, path)
		if err != nil {
			return nil, err
		}
		return map[string]int{"inserted": res.Inserted, "skipped": res.Skipped}, nil
	}
}

// SourceExists rejects an import trigger when path is absent.
func SourceExists(path string) Precondition {
	return func() error {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("import source %s: %w", path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("import source %s is a directory", path)
		}
		return nil
	}
}
