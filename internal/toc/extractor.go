package toc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/MeKo-Tech/artex/internal/ocr"
	"github.com/MeKo-Tech/artex/internal/pdf"
)

// ErrNotFound is returned when no plates table was identified.
var ErrNotFound = errors.New("plates table not found")

// Extraction methods recorded in the result.
const (
	MethodTextLayer = "text_layer"
	MethodOCR       = "ocr"
)

// Config controls where and how the table is searched.
type Config struct {
	LastN           int      `mapstructure:"last_n" yaml:"last_n" json:"last_n"`
	MinChars        int      `mapstructure:"min_chars" yaml:"min_chars" json:"min_chars"`
	OCRDPI          int      `mapstructure:"ocr_dpi" yaml:"ocr_dpi" json:"ocr_dpi"`
	HeadingPatterns []string `mapstructure:"heading_patterns" yaml:"heading_patterns" json:"heading_patterns"`
}

// DefaultConfig returns the defaults: last 15 pages, 50 chars, 200 DPI.
func DefaultConfig() Config {
	return Config{LastN: 15, MinChars: 50, OCRDPI: 200}
}

// Result is a parsed plates table.
type Result struct {
	SourcePDF string
	Method    string
	Pages     []int
	Entries   TOC
	// Unparsed holds entry-like lines no parser accepted.
	Unparsed []string
}

// Partial reports whether some entry-like lines were not parsed.
func (r *Result) Partial() bool { return r != nil && len(r.Unparsed) > 0 }

// Extractor locates and parses the plates table of a document.
type Extractor struct {
	cfg      Config
	text     pdf.TextReader
	geometry pdf.GeometryReader
	raster   pdf.Rasterizer
	guard    *ocr.Guard
	cache    *Cache
	headings []*regexp.Regexp
}

// NewExtractor wires the collaborators. raster and guard may be nil, which
// disables the OCR fallback. cache may be nil.
func NewExtractor(cfg Config, text pdf.TextReader, geometry pdf.GeometryReader, raster pdf.Rasterizer, guard *ocr.Guard, cache *Cache) (*Extractor, error) {
	def := DefaultConfig()
	if cfg.LastN <= 0 {
		cfg.LastN = def.LastN
	}
	if cfg.MinChars <= 0 {
		cfg.MinChars = def.MinChars
	}
	if cfg.OCRDPI <= 0 {
		cfg.OCRDPI = def.OCRDPI
	}
	headings, err := compileHeadings(cfg.HeadingPatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid heading pattern: %w", err)
	}
	if text == nil || geometry == nil {
		return nil, errors.New("text reader and geometry reader are required")
	}
	return &Extractor{
		cfg:      cfg,
		text:     text,
		geometry: geometry,
		raster:   raster,
		guard:    guard,
		cache:    cache,
		headings: headings,
	}, nil
}

// Extract returns the plates table of pdfPath. A document without a table
// yields an empty result and ErrNotFound.
func (e *Extractor) Extract(ctx context.Context, pdfPath string) (*Result, error) {
	abs, err := filepath.Abs(pdfPath)
	if err != nil {
		abs = pdfPath
	}
	if r, ok := e.cache.get(abs, e.cfg.LastN); ok {
		slog.Debug("Plates table cache hit", "pdf", abs, "entries", len(r.Entries))
		return r, notFound(r)
	}

	total, err := e.geometry.PageCount(pdfPath)
	if err != nil {
		return nil, err
	}
	pages := pdf.LastPages(total, e.cfg.LastN)

	texts, err := e.readTextLayer(ctx, pdfPath, pages)
	if err != nil {
		return nil, err
	}
	method := MethodTextLayer
	if len(texts) == 0 {
		texts, err = e.readOCR(ctx, pdfPath, pages)
		if err != nil {
			return nil, err
		}
		method = MethodOCR
	}

	r := e.parse(texts, pages)
	r.SourcePDF = abs
	r.Method = method
	if r.Partial() {
		slog.Warn("Plates table partially parsed", "pdf", abs, "unparsed_lines", len(r.Unparsed))
	}
	if len(r.Entries) == 0 {
		slog.Warn("No plates table found", "pdf", abs, "searched_pages", len(pages), "method", method)
	} else {
		slog.Info("Plates table parsed", "pdf", abs, "entries", len(r.Entries), "pages", r.Pages, "method", method)
	}
	r = e.cache.put(abs, e.cfg.LastN, r)
	return r, notFound(r)
}

func notFound(r *Result) error {
	if len(r.Entries) == 0 {
		return ErrNotFound
	}
	return nil
}

// readTextLayer returns the page texts long enough to be usable.
func (e *Extractor) readTextLayer(ctx context.Context, pdfPath string, pages []int) (map[int]string, error) {
	texts := make(map[int]string, len(pages))
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := e.text.PageText(ctx, pdfPath, p)
		if err != nil {
			slog.Debug("No text layer", "page", p, "error", err)
			continue
		}
		if len([]rune(strings.TrimSpace(t))) < e.cfg.MinChars {
			continue
		}
		texts[p] = t
	}
	return texts, nil
}

// readOCR rasterizes the pages and recognizes them as single text blocks.
func (e *Extractor) readOCR(ctx context.Context, pdfPath string, pages []int) (map[int]string, error) {
	texts := make(map[int]string, len(pages))
	if e.raster == nil || e.guard == nil || !e.guard.Available() {
		slog.Debug("Plates table OCR fallback disabled")
		return texts, nil
	}
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := e.raster.Rasterize(ctx, pdfPath, p, e.cfg.OCRDPI)
		if err != nil {
			slog.Warn("Failed to rasterize page for plates table OCR", "page", p, "error", err)
			continue
		}
		t, err := e.guard.Text(ctx, img, ocr.Options{PSM: ocr.PSMSingleBlock})
		switch {
		case err == nil:
		case errors.Is(err, ocr.ErrUnavailable):
			return texts, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			slog.Warn("Plates table OCR failed", "page", p, "error", err)
			continue
		}
		if len([]rune(strings.TrimSpace(t))) >= e.cfg.MinChars {
			texts[p] = t
		}
	}
	return texts, nil
}

// parse walks the pages in document order.
func (e *Extractor) parse(texts map[int]string, pages []int) *Result {
	r := &Result{}
	var all []Entry
	for _, p := range pages {
		t, ok := texts[p]
		if !ok {
			continue
		}
		pp := parsePage(t, e.headings)
		if !pp.isTOC {
			continue
		}
		r.Pages = append(r.Pages, p)
		all = append(all, pp.entries...)
		r.Unparsed = append(r.Unparsed, pp.unparsed...)
	}
	entries, dups := build(all)
	if len(dups) > 0 {
		slog.Debug("Duplicate plate numbers ignored", "numbers", dups)
	}
	r.Entries = entries
	return r
}

// ParseText parses a block of text as one table page with the default
// headings. It is used by the toc command on text files.
func ParseText(text string) TOC {
	headings, _ := compileHeadings(nil)
	pp := parsePage(text, headings)
	if !pp.isTOC {
		return TOC{}
	}
	entries, _ := build(pp.entries)
	return entries
}

// WriteUnparsed writes the unparsed lines as a debug file.
func WriteUnparsed(path string, r *Result) error {
	if !r.Partial() {
		return nil
	}
	return writeLines(path, r.Unparsed)
}
