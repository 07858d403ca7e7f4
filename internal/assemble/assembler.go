package assemble

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/artex/internal/caption"
	"github.com/MeKo-Tech/artex/internal/detector"
	"github.com/MeKo-Tech/artex/internal/metrics"
	"github.com/MeKo-Tech/artex/internal/ocr"
	"github.com/MeKo-Tech/artex/internal/quality"
	"github.com/MeKo-Tech/artex/internal/toc"
	"github.com/MeKo-Tech/artex/internal/utils"
)

// ErrImageInvalid is returned for crops below the minimum size or without pixels.
var ErrImageInvalid = errors.New("invalid artwork image")

// DoubtfulDir is the page subdirectory holding doubtful crops.
const DoubtfulDir = "DOUTEUX"

const doubtfulPrefix = "DOUTEUX_"

// Mode selects where metadata comes from.
type Mode int

const (
	// ModeTOC resolves numbers through the plates table.
	ModeTOC Mode = iota
	// ModeCaption reads the legend around each artwork.
	ModeCaption
)

// CaptionReader reads legends; *caption.Reader implements it.
type CaptionReader interface {
	Available() bool
	Read(ctx context.Context, page image.Image, bbox image.Rectangle, label string) (*caption.Result, error)
}

// Clock supplies extraction timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config holds output settings.
type Config struct {
	ThumbnailSize int
	MinSide       int
}

// DefaultConfig returns 200 px thumbnails and a 20 px minimum side.
func DefaultConfig() Config {
	return Config{ThumbnailSize: 200, MinSide: 20}
}

// Assembler persists the crops of a session. It is used by a single page
// loop at a time.
type Assembler struct {
	cfg      Config
	mode     Mode
	artist   string
	plates   toc.TOC
	captions CaptionReader
	clock    Clock
	newID    func() string
	seq      int
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithPlates sets the plates table used in ModeTOC.
func WithPlates(t toc.TOC) Option { return func(a *Assembler) { a.plates = t } }

// WithCaptions sets the caption reader used in ModeCaption.
func WithCaptions(r CaptionReader) Option { return func(a *Assembler) { a.captions = r } }

// WithClock overrides the timestamp source.
func WithClock(c Clock) Option { return func(a *Assembler) { a.clock = c } }

// WithIDs overrides record id generation.
func WithIDs(f func() string) Option { return func(a *Assembler) { a.newID = f } }

// New returns an assembler for artist in the given mode.
func New(cfg Config, mode Mode, artist string, opts ...Option) *Assembler {
	def := DefaultConfig()
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = def.ThumbnailSize
	}
	if cfg.MinSide <= 0 {
		cfg.MinSide = def.MinSide
	}
	a := &Assembler{cfg: cfg, mode: mode, artist: artist, clock: systemClock{}, newID: uuid.NewString}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Sequence returns the last fallback sequence number used.
func (a *Assembler) Sequence() int { return a.seq }

// SetSequence continues fallback numbering after n, for resumed sessions.
func (a *Assembler) SetSequence(n int) { a.seq = n }

// Page describes the page being assembled.
type Page struct {
	Number int
	// Dir is the page directory; its base name prefixes image paths.
	Dir   string
	DPI   int
	Image image.Image
}

// Crop is one surviving rectangle with its analysis.
type Crop struct {
	RectIndex int
	Rect      detector.FusedRectangle
	Image     image.Image
	Verdict   quality.Verdict
	// Number is the localized artwork number, empty when none was found.
	Number string
}

// Saved describes the files written for one crop.
type Saved struct {
	RectIndex  int             `json:"rect_index"`
	Filename   string          `json:"filename"`
	Thumbnail  string          `json:"thumbnail"`
	InfoFile   string          `json:"info_file,omitempty"`
	RecordFile string          `json:"record_file,omitempty"`
	Doubtful   bool            `json:"doubtful"`
	Record     *Record         `json:"-"`
	Caption    *caption.Result `json:"caption,omitempty"`
	// CaptionErr is set when the caption search stopped early.
	CaptionErr error `json:"-"`
}

// PageWriter persists the crops of one page and keeps file names unique.
type PageWriter struct {
	a     *Assembler
	page  Page
	stems map[string]int
	names map[string]int
}

// Page creates the page directory and returns its writer.
func (a *Assembler) Page(p Page) (*PageWriter, error) {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create page directory: %w", err)
	}
	return &PageWriter{a: a, page: p, stems: make(map[string]int), names: make(map[string]int)}, nil
}

// unique returns name, or name_2, name_3... on repeats.
func unique(seen map[string]int, name string) string {
	seen[name]++
	if n := seen[name]; n > 1 {
		return name + "_" + strconv.Itoa(n)
	}
	return name
}

// Persist writes the crop, its thumbnail and, when metadata resolves, its
// record. Doubtful crops go to DOUTEUX/ with an INFO file and no record.
func (w *PageWriter) Persist(ctx context.Context, c Crop) (*Saved, error) {
	if c.Image == nil {
		return nil, fmt.Errorf("%w: rectangle %d has no pixels", ErrImageInvalid, c.RectIndex)
	}
	if b := c.Image.Bounds(); b.Dx() < w.a.cfg.MinSide || b.Dy() < w.a.cfg.MinSide {
		return nil, fmt.Errorf("%w: rectangle %d is %dx%d", ErrImageInvalid, c.RectIndex, b.Dx(), b.Dy())
	}

	stem := "rectangle_" + strconv.Itoa(c.RectIndex)
	if c.Number != "" {
		stem = c.Number
	}
	stem = unique(w.stems, stem)

	s := &Saved{RectIndex: c.RectIndex, Doubtful: c.Verdict.IsDoubtful}
	sub, name := "", stem+".png"
	if s.Doubtful {
		sub, name = DoubtfulDir, doubtfulPrefix+name
		s.InfoFile = filepath.Join(DoubtfulDir, stem+"_INFO.txt")
	}
	s.Filename = filepath.Join(sub, name)
	s.Thumbnail = filepath.Join(sub, "thumb_"+name)

	if err := utils.SavePNG(filepath.Join(w.page.Dir, s.Filename), c.Image); err != nil {
		return nil, err
	}
	if err := utils.SavePNG(filepath.Join(w.page.Dir, s.Thumbnail), utils.Thumbnail(c.Image, w.a.cfg.ThumbnailSize)); err != nil {
		return nil, err
	}

	if s.Doubtful {
		info := quality.InfoText(name, c.Verdict)
		if err := os.WriteFile(filepath.Join(w.page.Dir, s.InfoFile), []byte(info), 0o644); err != nil { //nolint:gosec // session output
			return nil, fmt.Errorf("failed to write %s: %w", s.InfoFile, err)
		}
		metrics.ObserveArtwork("doubtful", "none")
		slog.Info("Doubtful crop segregated", "page", w.page.Number, "rect", c.RectIndex, "reasons", c.Verdict.Reasons)
		return s, nil
	}

	rec, key := w.resolve(ctx, c, s)
	if rec == nil {
		metrics.ObserveArtwork("ok", "none")
		return s, nil
	}
	rec.ImagePath = filepath.ToSlash(filepath.Join(filepath.Base(w.page.Dir), s.Filename))
	s.RecordFile = unique(w.names, "oeuvre_"+key) + ".json"
	if err := writeJSONExclusive(filepath.Join(w.page.Dir, s.RecordFile), rec); err != nil {
		return nil, err
	}
	s.Record = rec
	metrics.ObserveArtwork("ok", rec.MetadataProvenance)
	return s, nil
}

// meta is the resolved metadata before it becomes a record.
type meta struct {
	title      string
	medium     string
	year       string
	dateISO    string
	approx     bool
	size       *[2]float64
	plate      *int
	provenance string
}

// resolve picks the metadata source for the crop and returns the record and
// its file key, or nil when no record applies.
func (w *PageWriter) resolve(ctx context.Context, c Crop, s *Saved) (*Record, string) {
	var m meta
	var key string
	switch w.a.mode {
	case ModeTOC:
		n, err := strconv.Atoi(c.Number)
		if err != nil {
			return nil, ""
		}
		key = fmt.Sprintf("%03d", n)
		if e, ok := w.a.plates.Lookup(n); ok {
			m = fromEntry(e)
		} else {
			slog.Debug("Number not in plates table", "page", w.page.Number, "number", n)
			m = meta{provenance: ProvenanceSequential}
		}
	case ModeCaption:
		if w.a.captions == nil || !w.a.captions.Available() {
			return nil, ""
		}
		label := fmt.Sprintf("p%03d_r%d", w.page.Number, c.RectIndex)
		res, err := w.a.captions.Read(ctx, w.page.Image, c.Rect.BBox.Rect(), label)
		if errors.Is(err, ocr.ErrUnavailable) {
			return nil, ""
		}
		if err != nil {
			s.CaptionErr = err
			slog.Warn("Caption search stopped", "page", w.page.Number, "rect", c.RectIndex, "error", err)
		}
		s.Caption = res
		item, ok := pickItem(res, c.Number)
		if ok {
			m = fromItem(item)
			switch {
			case item.Index != nil:
				key = fmt.Sprintf("%03d", *item.Index)
			case c.Number != "":
				if n, err := strconv.Atoi(c.Number); err == nil {
					key = fmt.Sprintf("%03d", n)
				}
			}
		}
		if key == "" {
			w.a.seq++
			seqName := fmt.Sprintf("extraction_%03d", w.a.seq)
			key = seqName
			if !ok {
				m = meta{title: "Œuvre " + seqName, provenance: ProvenanceSequential}
			}
		}
	}

	sizeSource := SizeFromMetadata
	if m.size == nil {
		b := c.Image.Bounds()
		m.size = &[2]float64{PixelsToCM(b.Dx(), w.page.DPI), PixelsToCM(b.Dy(), w.page.DPI)}
		sizeSource = SizeFromPixels
	}
	title := orNoComment(m.title)
	rec := &Record{
		ID:                  w.a.newID(),
		ArtistName:          w.a.artist,
		Title:               title,
		SizeCM:              m.size,
		Medium:              orNoComment(m.medium),
		ExecutionYear:       orNoComment(m.year),
		DateISO:             m.dateISO,
		ApproximateDate:     m.approx,
		Signature:           NoComment,
		Description:         Describe(w.a.artist, m.title, m.medium, m.size, m.year),
		PlateNumber:         m.plate,
		SourcePageInPDF:     w.page.Number,
		ExtractionTimestamp: w.a.clock.Now().Format(time.RFC3339),
		Provenance:          []string{},
		Literature:          []string{},
		Exhibition:          []string{},
		MetadataProvenance:  m.provenance,
		SizeSource:          sizeSource,
	}
	return rec, key
}

func fromEntry(e toc.Entry) meta {
	n := e.Number
	m := meta{
		title:      e.Title,
		medium:     e.Extras.Medium,
		year:       e.Extras.ExecutionYear,
		plate:      &n,
		provenance: ProvenanceTOC,
	}
	if e.Extras.SizeFromTOC != nil {
		size := *e.Extras.SizeFromTOC
		m.size = &size
	}
	return m
}

func fromItem(it caption.Item) meta {
	m := meta{provenance: ProvenanceCaption, approx: it.Approximate}
	if it.Title != nil {
		m.title = *it.Title
	}
	if it.Medium != nil {
		m.medium = *it.Medium
	}
	if it.WidthCM != nil && it.HeightCM != nil {
		m.size = &[2]float64{*it.WidthCM, *it.HeightCM}
	}
	if it.DateISO != nil {
		m.dateISO = *it.DateISO
		m.year = (*it.DateISO)[:min(4, len(*it.DateISO))]
	}
	if it.Index != nil {
		n := *it.Index
		m.plate = &n
	}
	return m
}

// pickItem prefers the item whose index matches the localized number and
// otherwise takes the best score.
func pickItem(res *caption.Result, number string) (caption.Item, bool) {
	if res == nil || len(res.Items) == 0 {
		return caption.Item{}, false
	}
	if n, err := strconv.Atoi(number); err == nil {
		for _, it := range res.Items {
			if it.Index != nil && *it.Index == n {
				return it, true
			}
		}
	}
	return res.Best()
}
