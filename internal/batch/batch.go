// Package batch runs the extraction over many catalogs and reports one
// outcome per file.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/artex/internal/journal"
	"github.com/MeKo-Tech/artex/internal/pipeline"
)

// Runner extracts one catalog. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*journal.Manifest, error)
}

// ErrNoCatalogs is returned when discovery finds nothing to process.
var ErrNoCatalogs = errors.New("no PDF files found")

// Process discovers the catalogs named by paths and extracts them one after
// the other. Catalog failures are collected in the result; only discovery
// errors, cancellation and, with StopOnFatal, fatal errors end the batch.
func Process(ctx context.Context, runner Runner, paths []string, cfg *Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	files, err := discoverPDFs(paths, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover PDF files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoCatalogs
	}

	slog.Info("Batch extraction started", "catalogs", len(files))
	start := time.Now()
	res := &Result{}
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		o := processCatalog(ctx, runner, file, cfg)
		res.Outcomes = append(res.Outcomes, o)

		switch {
		case errors.Is(o.Err, context.Canceled) || errors.Is(o.Err, context.DeadlineExceeded):
			res.Duration = time.Since(start)
			return res, o.Err
		case o.Err != nil && pipeline.IsFatal(o.Err):
			slog.Error("Catalog failed", "pdf", file, "index", i+1, "error", o.Err)
			if cfg.StopOnFatal {
				res.Duration = time.Since(start)
				return res, o.Err
			}
		case o.Err != nil:
			slog.Warn("Catalog finished with errors", "pdf", file, "error", o.Err)
		}
	}
	res.Duration = time.Since(start)
	slog.Info("Batch extraction finished", "catalogs", len(files), "duration", res.Duration)
	return res, nil
}

func processCatalog(ctx context.Context, runner Runner, file string, cfg *Config) Outcome {
	start := time.Now()
	m, err := runner.Run(ctx, pipeline.Request{
		PDFPath:    file,
		Collection: cfg.Collection,
		Artist:     cfg.Artist,
		SkipTOC:    cfg.SkipTOC,
		MaxPages:   cfg.MaxPages,
	})
	return Outcome{PDF: file, Manifest: m, Err: err, Duration: time.Since(start)}
}
