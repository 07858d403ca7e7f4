// Package pipeline runs the page workflow of an extraction session:
// rasterize, detect, fuse, classify, localize numbers, assemble records and
// journal every page.
package pipeline

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/artex/internal/collection"
	"github.com/MeKo-Tech/artex/internal/detector"
	"github.com/MeKo-Tech/artex/internal/ocr"
	"github.com/MeKo-Tech/artex/internal/pdf"
	"github.com/MeKo-Tech/artex/internal/quality"
	"github.com/MeKo-Tech/artex/internal/toc"
)

// Clock supplies session and page timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// RectangleDetector finds candidate artwork rectangles on a page image;
// *detector.Detector implements it.
type RectangleDetector interface {
	Detect(img image.Image) (*detector.Result, error)
}

// Builder assembles a Pipeline with its collaborators. Collaborators left
// unset get the production implementations.
type Builder struct {
	cfg      Config
	raster   pdf.Rasterizer
	text     pdf.TextReader
	geometry pdf.GeometryReader
	engine   ocr.Engine
	detector RectangleDetector
	clock    Clock
	progress ProgressCallback
	cache    *toc.Cache
	ids      func() string
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithOutputRoot sets the directory that receives extractions_ultra/.
func (b *Builder) WithOutputRoot(dir string) *Builder {
	if dir != "" {
		b.cfg.Output.Root = dir
	}
	return b
}

// WithCollection sets the collection name ("auto" probes the document).
func (b *Builder) WithCollection(name string) *Builder {
	if name != "" {
		b.cfg.Collection = name
	}
	return b
}

// WithRasterizer overrides page rendering.
func (b *Builder) WithRasterizer(r pdf.Rasterizer) *Builder {
	b.raster = r
	return b
}

// WithTextReader overrides text-layer reading.
func (b *Builder) WithTextReader(t pdf.TextReader) *Builder {
	b.text = t
	return b
}

// WithGeometry overrides page count and size lookups.
func (b *Builder) WithGeometry(g pdf.GeometryReader) *Builder {
	b.geometry = g
	return b
}

// WithOCREngine overrides the configured OCR engine.
func (b *Builder) WithOCREngine(e ocr.Engine) *Builder {
	b.engine = e
	return b
}

// WithDetector overrides the rectangle detectors.
func (b *Builder) WithDetector(d RectangleDetector) *Builder {
	b.detector = d
	return b
}

// WithClock overrides the timestamp source.
func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

// WithProgress sets the progress receiver.
func (b *Builder) WithProgress(p ProgressCallback) *Builder {
	b.progress = p
	return b
}

// WithTOCCache shares a plates-table cache between pipelines.
func (b *Builder) WithTOCCache(c *toc.Cache) *Builder {
	b.cache = c
	return b
}

// WithIDs overrides artwork record id generation.
func (b *Builder) WithIDs(f func() string) *Builder {
	b.ids = f
	return b
}

// Config returns the configuration being built.
func (b *Builder) Config() Config { return b.cfg }

// Pipeline holds the stateless stages of a run. Per-document state lives
// in the SessionContext created by Run.
type Pipeline struct {
	cfg      Config
	raster   pdf.Rasterizer
	text     pdf.TextReader
	geometry pdf.GeometryReader
	guard    *ocr.Guard
	detector RectangleDetector
	quality  *quality.Analyzer
	registry *collection.Registry
	tocs     *toc.Cache
	clock    Clock
	progress ProgressCallback
	ids      func() string
	policy   pdf.DPIPolicy
}

// Build validates the configuration and wires the collaborators. All
// returned errors wrap ErrFatalConfig.
func (b *Builder) Build() (*Pipeline, error) {
	cfg := b.cfg
	if err := cfg.Validate(); err != nil {
		return nil, fatal("invalid configuration", err)
	}

	p := &Pipeline{
		cfg:      cfg,
		raster:   b.raster,
		text:     b.text,
		geometry: b.geometry,
		tocs:     b.cache,
		clock:    b.clock,
		progress: b.progress,
		ids:      b.ids,
		policy:   pdf.DPIPolicy{MinDPI: cfg.Raster.MinDPI},
	}
	if p.geometry == nil {
		p.geometry = pdf.NewPdfcpuGeometry()
	}
	if p.text == nil {
		p.text = pdf.DefaultTextReader()
	}
	if p.raster == nil {
		p.raster = pdf.ChainRasterizer{
			pdf.NewPdftoppmRasterizer(cfg.Raster.PdftoppmPath),
			pdf.NewEmbeddedImageRasterizer(p.geometry),
		}
	}
	if p.tocs == nil {
		p.tocs = toc.NewCache()
	}
	if p.clock == nil {
		p.clock = SystemClock{}
	}
	if p.progress == nil {
		p.progress = NoOpProgressCallback{}
	}

	engine := b.engine
	if engine == nil {
		e, err := ocr.New(cfg.OCR.Engine, cfg.OCR.TesseractPath, cfg.OCR.Language)
		switch {
		case e == nil:
			return nil, fatal("OCR engine", err)
		case err != nil:
			slog.Warn("OCR engine unavailable, numbers and captions disabled", "kind", KindOCRUnavailable, "engine", cfg.OCR.Engine, "error", err)
		}
		engine = e
	}
	p.guard = ocr.NewGuard(engine, cfg.OCR.SoftTimeout, cfg.OCR.HardTimeout)

	p.detector = b.detector
	if p.detector == nil {
		det, err := detector.New(cfg.Detector)
		if err != nil {
			return nil, fatal("detector", err)
		}
		p.detector = det
	}
	p.quality = quality.NewAnalyzer(cfg.Quality)

	p.registry = collection.NewRegistry()
	if cfg.CollectionFile != "" {
		if err := p.registry.LoadFile(cfg.CollectionFile); err != nil {
			return nil, fatal("collection file", err)
		}
	}
	if cfg.Collection != "" && cfg.Collection != collection.Auto {
		if _, err := p.registry.Get(cfg.Collection); err != nil {
			return nil, fatal(fmt.Sprintf("collection %q", cfg.Collection), err)
		}
	}
	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// OCRAvailable reports whether an OCR engine is usable.
func (p *Pipeline) OCRAvailable() bool { return p.guard.Available() }

// Collections returns the registered collection names.
func (p *Pipeline) Collections() []string { return p.registry.Names() }

// IsFatal reports whether err must end the process with a failure status.
func IsFatal(err error) bool { return errors.Is(err, ErrFatalConfig) }
