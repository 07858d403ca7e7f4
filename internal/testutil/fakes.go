package testutil

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/artex/internal/ocr"
	"github.com/MeKo-Tech/artex/internal/pdf"
)

// FakeOCR is a scripted OCR engine. Digit-restricted calls answer Digits
// (or DigitsFn); all other calls answer Text.
type FakeOCR struct {
	Digits   string
	DigitsFn func(img image.Image) string
	Text     string
	// Confidence of every returned word; 90 when zero.
	Confidence float64
	// Hang makes every call sleep this long, ignoring cancellation.
	Hang     time.Duration
	Disabled bool

	mu    sync.Mutex
	calls int
}

// Name implements ocr.Engine.
func (f *FakeOCR) Name() string { return "fake" }

// Available implements ocr.Engine.
func (f *FakeOCR) Available() bool { return !f.Disabled }

// Calls returns the number of recognition calls so far.
func (f *FakeOCR) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeOCR) answer(img image.Image, opts ocr.Options) string {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.Hang > 0 {
		time.Sleep(f.Hang)
	}
	if opts.Whitelist == ocr.Digits {
		if f.DigitsFn != nil {
			return f.DigitsFn(img)
		}
		return f.Digits
	}
	return f.Text
}

// ImageToString implements ocr.Engine.
func (f *FakeOCR) ImageToString(_ context.Context, img image.Image, opts ocr.Options) (string, error) {
	return f.answer(img, opts), nil
}

// ImageToData implements ocr.Engine. Words are split on whitespace; each
// input line becomes one OCR line.
func (f *FakeOCR) ImageToData(_ context.Context, img image.Image, opts ocr.Options) ([]ocr.Word, error) {
	text := f.answer(img, opts)
	conf := f.Confidence
	if conf == 0 {
		conf = 90
	}
	var words []ocr.Word
	for i, line := range strings.Split(text, "\n") {
		for j, w := range strings.Fields(line) {
			words = append(words, ocr.Word{
				Text:       w,
				Confidence: conf,
				Box:        image.Rect(j*40, i*20, j*40+35, i*20+15),
				Block:      1,
				Line:       i,
			})
		}
	}
	return words, nil
}

// FakeRasterizer serves pre-drawn page images.
type FakeRasterizer struct {
	Pages map[int]image.Image
	// Fail lists pages that never rasterize.
	Fail map[int]bool

	mu   sync.Mutex
	dpis []int
}

// Name implements pdf.Rasterizer.
func (r *FakeRasterizer) Name() string { return "fake" }

// Rasterize implements pdf.Rasterizer.
func (r *FakeRasterizer) Rasterize(_ context.Context, _ string, page, dpi int) (image.Image, error) {
	r.mu.Lock()
	r.dpis = append(r.dpis, dpi)
	r.mu.Unlock()
	if r.Fail[page] {
		return nil, fmt.Errorf("page %d: corrupt content stream", page)
	}
	img, ok := r.Pages[page]
	if !ok {
		return nil, fmt.Errorf("page %d not found", page)
	}
	return img, nil
}

// DPIs returns the requested resolutions in call order.
func (r *FakeRasterizer) DPIs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.dpis...)
}

// FakeTextReader serves fixed page texts.
type FakeTextReader map[int]string

// Name implements pdf.TextReader.
func (FakeTextReader) Name() string { return "fake" }

// PageText implements pdf.TextReader.
func (f FakeTextReader) PageText(_ context.Context, _ string, page int) (string, error) {
	return f[page], nil
}

// FakeGeometry reports Pages A4 pages unless Sizes overrides one.
type FakeGeometry struct {
	Pages int
	Sizes map[int]pdf.PageGeometry
}

// PageCount implements pdf.GeometryReader.
func (g FakeGeometry) PageCount(string) (int, error) { return g.Pages, nil }

// PageSize implements pdf.GeometryReader.
func (g FakeGeometry) PageSize(_ string, page int) (pdf.PageGeometry, error) {
	if page < 1 || page > g.Pages {
		return pdf.PageGeometry{}, fmt.Errorf("page %d out of range", page)
	}
	if s, ok := g.Sizes[page]; ok {
		return s, nil
	}
	return pdf.NewPageGeometry(page, 595.28, 841.89), nil
}

// FixedClock always returns T.
type FixedClock struct{ T time.Time }

// Now returns the fixed time.
func (c FixedClock) Now() time.Time { return c.T }

// BlankPages returns n white w x h pages keyed 1..n.
func BlankPages(n, w, h int) map[int]image.Image {
	pages := make(map[int]image.Image, n)
	for p := 1; p <= n; p++ {
		pages[p] = DrawPage(Page{W: w, H: h})
	}
	return pages
}
