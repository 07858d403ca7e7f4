package batch

import (
	"fmt"
	"io"
	"time"

	"github.com/MeKo-Tech/artex/internal/journal"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Config holds all configuration for batch extraction.
type Config struct {
	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Request settings applied to every catalog
	Collection string
	Artist     string
	SkipTOC    bool
	MaxPages   int

	// StopOnFatal ends the batch at the first catalog that fails with a
	// fatal error instead of moving on to the next one.
	StopOnFatal bool

	Format     string
	OutputFile string
	Quiet      bool
}

// DefaultIncludePatterns selects PDF files.
var DefaultIncludePatterns = []string{"*.pdf", "*.PDF"}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Format {
	case "", FormatText, FormatJSON, FormatCSV:
	default:
		return fmt.Errorf("invalid format %q (must be one of: text, json, csv)", c.Format)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max pages must not be negative, got %d", c.MaxPages)
	}
	return nil
}

// Outcome is the result of one catalog.
type Outcome struct {
	PDF      string
	Manifest *journal.Manifest
	Err      error
	Duration time.Duration
}

// Failed reports whether the catalog could not be extracted.
func (o Outcome) Failed() bool { return o.Err != nil && o.Manifest == nil }

// Result holds the result of batch extraction.
type Result struct {
	Outcomes []Outcome
	Duration time.Duration
}

// FormatResults formats the batch results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Outcomes, format)
}

// SaveResults writes the formatted results to w.
func (r *Result) SaveResults(w io.Writer, format string) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	_, err = io.WriteString(w, output)
	return err
}

// Stats summarizes a batch.
type Stats struct {
	Catalogs       int
	Failed         int
	Pages          int
	FailedPages    int
	Artworks       int
	TotalDuration  time.Duration
	AvgPerCatalog  time.Duration
	PagesPerSecond float64
}

// Stats computes the batch statistics.
func (r *Result) Stats() Stats {
	s := Stats{Catalogs: len(r.Outcomes), TotalDuration: r.Duration}
	for _, o := range r.Outcomes {
		if o.Failed() {
			s.Failed++
			continue
		}
		s.Pages += len(o.Manifest.Pages)
		s.FailedPages += o.Manifest.FailedPages
		s.Artworks += o.Manifest.TotalImagesExtracted
	}
	if s.Catalogs > 0 {
		s.AvgPerCatalog = r.Duration / time.Duration(s.Catalogs)
	}
	if secs := r.Duration.Seconds(); secs > 0 {
		s.PagesPerSecond = float64(s.Pages) / secs
	}
	return s
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	stats := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Catalogs: %d\n", stats.Catalogs)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", stats.Failed)
	_, _ = fmt.Fprintf(w, "  Pages: %d (%d failed)\n", stats.Pages, stats.FailedPages)
	_, _ = fmt.Fprintf(w, "  Artworks: %d\n", stats.Artworks)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per catalog: %v\n", stats.AvgPerCatalog.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.2f pages/sec\n", stats.PagesPerSecond)
}
