package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/MeKo-Tech/artex/internal/ocr"
	"github.com/MeKo-Tech/artex/internal/pipeline"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <pdf>",
	Short: "Show page formats and rendering resolutions",
	Long: `List every page of a PDF with its detected paper format, its size in
millimetres and the resolution extract would render it at. Nothing is
rasterized.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := GetConfig()
		if err != nil {
			return err
		}
		cfg := *base
		cfg.OCR.Engine = ocr.KindNone
		if cmd.Flags().Changed("min-dpi") {
			cfg.Raster.MinDPI, _ = cmd.Flags().GetInt("min-dpi")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		p, err := pipeline.NewBuilder().WithConfig(cfg.ToPipelineConfig()).Build()
		if err != nil {
			return err
		}
		infos, err := p.Inspect(args[0])
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(infos)
		}
		return writePageTable(cmd.OutOrStdout(), infos)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().Bool("json", false, "print JSON instead of a table")
	inspectCmd.Flags().Int("min-dpi", 0, "lowest rendering resolution")
}

func writePageTable(w io.Writer, infos []pipeline.PageInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PAGE\tFORMAT\tWIDTH_MM\tHEIGHT_MM\tDPI")
	for _, info := range infos {
		if info.Error != "" {
			_, _ = fmt.Fprintf(tw, "%d\t?\t-\t-\t%d\t%s\n", info.Page, info.DPI, info.Error)
			continue
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%.1f\t%.1f\t%d\n", info.Page, info.Format, info.WidthMM, info.HeightMM, info.DPI)
	}
	return tw.Flush()
}
