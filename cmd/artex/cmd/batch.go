package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/artex/internal/batch"
	"github.com/MeKo-Tech/artex/internal/metrics"
	"github.com/MeKo-Tech/artex/internal/pipeline"
	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch <pdf|dir>...",
	Short: "Extract several catalogs in one run",
	Long: `Extract every catalog named on the command line or found in the given
directories. Each catalog gets its own session directory; a catalog that
fails is reported and the batch moves on to the next one.

Examples:
  artex batch scans/ --recursive
  artex batch scans/ --include 'picasso_*.pdf' --format csv --output-file report.csv`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	batchCmd.Flags().StringSlice("include", nil, "file name patterns to include (default *.pdf)")
	batchCmd.Flags().StringSlice("exclude", nil, "file name patterns to exclude")
	batchCmd.Flags().String("collection", "", "collection profile applied to every catalog")
	batchCmd.Flags().String("collection-file", "", "YAML file with additional collection profiles")
	batchCmd.Flags().String("artist", "", "artist name written to every record")
	batchCmd.Flags().Bool("skip-toc", false, "do not search for plates tables")
	batchCmd.Flags().Int("pages", 0, "maximum number of pages per catalog (0 = all)")
	batchCmd.Flags().Bool("stop-on-error", false, "stop at the first catalog that cannot be extracted")
	batchCmd.Flags().StringP("output", "o", "", "output root for session directories")
	batchCmd.Flags().String("ocr-engine", "", "OCR engine (tesseract-cli, gosseract, none)")
	batchCmd.Flags().Duration("page-budget", 0, "time budget for plate number OCR per page")
	batchCmd.Flags().Int("min-dpi", 0, "lowest rendering resolution")
	batchCmd.Flags().Bool("ocr-debug", false, "write OCR debug crops next to the records")
	batchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while extracting")
	batchCmd.Flags().StringP("format", "f", batch.FormatText, "report format (text, json, csv)")
	batchCmd.Flags().String("output-file", "", "write the report to this file instead of stdout")
	batchCmd.Flags().BoolP("quiet", "q", false, "do not print statistics")
}

func runBatch(cmd *cobra.Command, args []string) error {
	base, err := GetConfig()
	if err != nil {
		return err
	}
	cfg := applyExtractFlags(cmd, *base)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	bc := &batch.Config{}
	bc.Recursive, _ = cmd.Flags().GetBool("recursive")
	bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	bc.SkipTOC, _ = cmd.Flags().GetBool("skip-toc")
	bc.MaxPages, _ = cmd.Flags().GetInt("pages")
	bc.StopOnFatal, _ = cmd.Flags().GetBool("stop-on-error")
	bc.Format, _ = cmd.Flags().GetString("format")
	bc.OutputFile, _ = cmd.Flags().GetString("output-file")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	if err := bc.Validate(); err != nil {
		return err
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

	p, err := pipeline.NewBuilder().
		WithConfig(cfg.ToPipelineConfig()).
		WithProgress(pipeline.NewLogProgressCallback(nil, slog.LevelDebug)).
		Build()
	if err != nil {
		return err
	}

	res, runErr := batch.Process(ctx, p, args, bc)
	if res == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if bc.OutputFile != "" {
		f, err := os.Create(bc.OutputFile)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer func() { _ = f.Close() }()
		if err := res.SaveResults(f, bc.Format); err != nil {
			return err
		}
		slog.Info("Batch report written", "file", bc.OutputFile)
	} else if err := res.SaveResults(out, bc.Format); err != nil {
		return err
	}
	if !bc.Quiet {
		res.PrintStats(cmd.ErrOrStderr())
	}

	if runErr != nil && pipeline.IsFatal(runErr) {
		return runErr
	}
	if runErr != nil {
		slog.Warn("Batch interrupted", "error", runErr)
	}
	return nil
}
