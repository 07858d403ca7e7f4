package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/artex/internal/pipeline"
	"github.com/MeKo-Tech/artex/internal/toc"
	"github.com/spf13/cobra"
)

var tocCmd = &cobra.Command{
	Use:   "toc <pdf>",
	Short: "Extract the plates table of a catalog",
	Long: `Search the last pages of a catalog for its plates table ("Table des
planches") and print the parsed entries as JSON.

With --from-text the argument is a plain text file holding the table, which
is parsed with the default headings. This is useful to check the parser on
text copied out of a PDF viewer.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runTOC,
}

func init() {
	rootCmd.AddCommand(tocCmd)

	tocCmd.Flags().String("out", "", "write the table to this file instead of stdout")
	tocCmd.Flags().Bool("from-text", false, "parse a text file instead of a PDF")
	tocCmd.Flags().String("collection", "", "collection profile whose extra headings apply")
	tocCmd.Flags().String("ocr-engine", "", "OCR engine for image-only table pages (tesseract-cli, gosseract, none)")
}

func runTOC(cmd *cobra.Command, args []string) error {
	fromText, _ := cmd.Flags().GetBool("from-text")

	var (
		res *toc.Result
		err error
	)
	if fromText {
		res, err = tocFromText(args[0])
	} else {
		res, err = tocFromPDF(cmd, args[0])
	}
	if err != nil {
		return err
	}
	if len(res.Entries) == 0 {
		return fmt.Errorf("%s: %w", args[0], toc.ErrNotFound)
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := toc.WriteFile(out, res); err != nil {
			return err
		}
		slog.Info("Plates table written", "file", out, "entries", len(res.Entries))
		return nil
	}
	data, err := toc.Marshal(res)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func tocFromText(path string) (*toc.Result, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user supplied input
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &toc.Result{
		SourcePDF: filepath.Base(path),
		Method:    "text_file",
		Entries:   toc.ParseText(string(data)),
	}, nil
}

func tocFromPDF(cmd *cobra.Command, path string) (*toc.Result, error) {
	base, err := GetConfig()
	if err != nil {
		return nil, err
	}
	cfg := *base
	if cmd.Flags().Changed("ocr-engine") {
		cfg.OCR.Engine, _ = cmd.Flags().GetString("ocr-engine")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	p, err := pipeline.NewBuilder().WithConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return nil, err
	}
	name, _ := cmd.Flags().GetString("collection")
	res, err := p.ExtractTOC(cmd.Context(), path, name)
	if err != nil && res == nil {
		return nil, err
	}
	return res, nil
}
