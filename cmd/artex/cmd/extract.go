package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/artex/internal/config"
	"github.com/MeKo-Tech/artex/internal/journal"
	"github.com/MeKo-Tech/artex/internal/metrics"
	"github.com/MeKo-Tech/artex/internal/pipeline"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract <pdf>",
	Short: "Extract artworks and their records from a catalog",
	Long: `Extract every framed artwork of a scanned catalog into a session directory.

A session directory named after the PDF and the start time is created under
the output root. It receives one folder per page with the artwork images,
their JSON records and a detection summary, plus a journal that allows an
interrupted run to be resumed with --resume.

Page failures are recorded in the journal and do not stop the run. The
command only fails on configuration errors or an unreadable PDF.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().Int("start", 0, "first page to process (1-based; default 1, or after the last journaled page on resume)")
	extractCmd.Flags().Int("pages", 0, "maximum number of pages to process (0 = to the end)")
	extractCmd.Flags().String("collection", "", "collection profile (auto, picasso-like, dubuffet-like, or a profile from --collection-file)")
	extractCmd.Flags().String("collection-file", "", "YAML file with additional collection profiles")
	extractCmd.Flags().String("artist", "", "artist name written to every record (default derived from the file name)")
	extractCmd.Flags().Bool("skip-toc", false, "do not search for a plates table")
	extractCmd.Flags().String("resume", "", "session directory of an interrupted run to continue")
	extractCmd.Flags().String("password", "", "password of an encrypted PDF")
	extractCmd.Flags().StringP("output", "o", "", "output root for session directories")
	extractCmd.Flags().String("ocr-engine", "", "OCR engine (tesseract-cli, gosseract, none)")
	extractCmd.Flags().Duration("page-budget", 0, "time budget for plate number OCR per page")
	extractCmd.Flags().Int("min-dpi", 0, "lowest rendering resolution")
	extractCmd.Flags().Bool("ocr-debug", false, "write OCR debug crops next to the records")
	extractCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while extracting")
	extractCmd.Flags().BoolP("quiet", "q", false, "do not draw the progress bar")
}

func runExtract(cmd *cobra.Command, args []string) error {
	base, err := GetConfig()
	if err != nil {
		return err
	}
	cfg := applyExtractFlags(cmd, *base)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	req := pipeline.Request{PDFPath: args[0]}
	req.StartPage, _ = cmd.Flags().GetInt("start")
	req.MaxPages, _ = cmd.Flags().GetInt("pages")
	req.SkipTOC, _ = cmd.Flags().GetBool("skip-toc")
	req.ResumeDir, _ = cmd.Flags().GetString("resume")
	req.Password, _ = cmd.Flags().GetString("password")
	if req.StartPage < 0 || req.MaxPages < 0 {
		return errors.New("--start and --pages must not be negative")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				slog.Error("Metrics server failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	progress := pipeline.NewMultiProgressCallback(pipeline.NewLogProgressCallback(nil, slog.LevelDebug))
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		progress.Add(pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Pages"))
	}

	p, err := pipeline.NewBuilder().
		WithConfig(cfg.ToPipelineConfig()).
		WithProgress(progress).
		Build()
	if err != nil {
		return err
	}
	if !p.OCRAvailable() {
		slog.Warn("OCR engine unavailable, artworks will be extracted without records", "engine", cfg.OCR.Engine)
	}

	start := time.Now()
	manifest, err := p.Run(ctx, req)
	if manifest != nil {
		printSummary(cmd.OutOrStdout(), manifest, time.Since(start))
	}
	if err != nil {
		if pipeline.IsFatal(err) || manifest == nil {
			return err
		}
		slog.Warn("Extraction interrupted", "error", err)
	}
	return nil
}

// applyExtractFlags overlays the flags that were set on the loaded
// configuration.
func applyExtractFlags(cmd *cobra.Command, cfg config.Config) config.Config {
	setStringWithFlag := func(flagName string, target *string) {
		if cmd.Flags().Changed(flagName) {
			*target, _ = cmd.Flags().GetString(flagName)
		}
	}
	setIntWithFlag := func(flagName string, target *int) {
		if cmd.Flags().Changed(flagName) {
			*target, _ = cmd.Flags().GetInt(flagName)
		}
	}
	setBoolWithFlag := func(flagName string, target *bool) {
		if cmd.Flags().Changed(flagName) {
			*target, _ = cmd.Flags().GetBool(flagName)
		}
	}
	setDurationWithFlag := func(flagName string, target *time.Duration) {
		if cmd.Flags().Changed(flagName) {
			*target, _ = cmd.Flags().GetDuration(flagName)
		}
	}

	setStringWithFlag("output", &cfg.Output.Root)
	setBoolWithFlag("ocr-debug", &cfg.Output.WriteOCRDebug)
	setIntWithFlag("min-dpi", &cfg.Raster.MinDPI)
	setStringWithFlag("ocr-engine", &cfg.OCR.Engine)
	setDurationWithFlag("page-budget", &cfg.OCR.PageBudget)
	setStringWithFlag("collection", &cfg.Collection.Name)
	setStringWithFlag("collection-file", &cfg.Collection.ProfilesFile)
	setStringWithFlag("artist", &cfg.Collection.Artist)
	setStringWithFlag("metrics-addr", &cfg.Metrics.Addr)
	return cfg
}

func printSummary(w io.Writer, m *journal.Manifest, elapsed time.Duration) {
	_, _ = fmt.Fprintf(w, "Session:    %s\n", m.SessionDir)
	_, _ = fmt.Fprintf(w, "Collection: %s (%s mode)\n", m.Collection, m.Mode)
	_, _ = fmt.Fprintf(w, "Artist:     %s\n", m.Artist)
	_, _ = fmt.Fprintf(w, "Pages:      %d-%d, %d ok, %d failed\n", m.StartPage, m.EndPage, m.SuccessPages, m.FailedPages)
	_, _ = fmt.Fprintf(w, "Artworks:   %d\n", m.TotalImagesExtracted)
	if m.TOC != nil {
		_, _ = fmt.Fprintf(w, "Plates:     %d table entries\n", m.TOC.Entries)
	}
	_, _ = fmt.Fprintf(w, "Elapsed:    %s\n", elapsed.Round(time.Millisecond))
}
