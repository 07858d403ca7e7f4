package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/MeKo-Tech/artex/internal/collection"
	"github.com/MeKo-Tech/artex/internal/toc"
)

// PageInfo is the rendering plan of one page.
type PageInfo struct {
	Page     int     `json:"page"`
	Format   string  `json:"format"`
	WidthMM  float64 `json:"width_mm"`
	HeightMM float64 `json:"height_mm"`
	DPI      int     `json:"dpi"`
	Error    string  `json:"error,omitempty"`
}

// Inspect reports format, size and chosen resolution of every page without
// rasterizing. Unreadable page sizes are reported per page.
func (p *Pipeline) Inspect(pdfPath string) ([]PageInfo, error) {
	total, err := p.geometry.PageCount(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("read page count: %w", err)
	}
	infos := make([]PageInfo, 0, total)
	for page := 1; page <= total; page++ {
		g, err := p.geometry.PageSize(pdfPath, page)
		if err != nil {
			infos = append(infos, PageInfo{Page: page, DPI: max(p.cfg.Raster.MinDPI, fallbackDPI), Error: err.Error()})
			continue
		}
		infos = append(infos, PageInfo{
			Page:     page,
			Format:   g.Format,
			WidthMM:  g.WidthMM,
			HeightMM: g.HeightMM,
			DPI:      p.policy.Choose(g),
		})
	}
	return infos, nil
}

// ExtractTOC runs the plates table search alone. The collection's extra
// headings apply when name selects a plates-table profile.
func (p *Pipeline) ExtractTOC(ctx context.Context, pdfPath, name string) (*toc.Result, error) {
	abs, err := filepath.Abs(pdfPath)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = p.cfg.Collection
	}
	profile, _, err := p.registry.Resolve(name, abs)
	if err != nil {
		return nil, fatal("collection", err)
	}
	ex, err := p.tocExtractor(profile)
	if err != nil {
		return nil, err
	}
	return ex.Extract(ctx, abs)
}

// tocExtractor builds the plates table extractor with the profile's extra
// headings appended to the configured ones.
func (p *Pipeline) tocExtractor(profile collection.Profile) (*toc.Extractor, error) {
	cfg := p.cfg.TOC
	if len(profile.TOCHeadings) > 0 {
		base := cfg.HeadingPatterns
		if len(base) == 0 {
			base = toc.DefaultHeadings
		}
		cfg.HeadingPatterns = append(append([]string(nil), base...), profile.TOCHeadings...)
	}
	ex, err := toc.NewExtractor(cfg, p.text, p.geometry, p.raster, p.guard, p.tocs)
	if err != nil {
		return nil, fatal("plates table extractor", err)
	}
	return ex, nil
}
