package support

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/artex/internal/caption"
	"github.com/MeKo-Tech/artex/internal/coherence"
	"github.com/MeKo-Tech/artex/internal/detector"
	"github.com/MeKo-Tech/artex/internal/journal"
	"github.com/MeKo-Tech/artex/internal/pipeline"
	"github.com/MeKo-Tech/artex/internal/testutil"
	"github.com/MeKo-Tech/artex/internal/toc"
)

// Synthetic pages are 1000x1300 with artworks in a fixed box.
const (
	pageW = 1000
	pageH = 1300
)

var artworkBox = image.Rect(100, 100, 700, 800)

var fixedTime = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

// TestContext holds the state of one scenario.
type TestContext struct {
	TempDir string
	PDFPath string
	Pages   int

	Artworks map[int][]testutil.Artwork
	Boxes    []image.Rectangle
	Text     testutil.FakeTextReader
	Engine   *testutil.FakeOCR
	Raster   *testutil.FakeRasterizer
	Config   pipeline.Config

	Manifest *journal.Manifest
	LastErr  error

	Coherence coherence.Report
	Caption   *caption.Item
	Entry     *toc.Entry
	EntryOK   bool
}

// NewTestContext creates a context with its own output root.
func NewTestContext() (*TestContext, error) {
	dir, err := os.MkdirTemp("", "artex-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	cfg := pipeline.DefaultConfig()
	cfg.Output.Root = filepath.Join(dir, "out")
	return &TestContext{
		TempDir:  dir,
		Artworks: map[int][]testutil.Artwork{},
		Text:     testutil.FakeTextReader{},
		Engine:   &testutil.FakeOCR{},
		Raster:   &testutil.FakeRasterizer{Fail: map[int]bool{}},
		Config:   cfg,
	}, nil
}

// Cleanup removes all temporary files of the scenario.
func (testCtx *TestContext) Cleanup() error {
	return os.RemoveAll(testCtx.TempDir)
}

// boxDetector reports the scenario's boxes on every page.
type boxDetector []image.Rectangle

func (d boxDetector) Detect(image.Image) (*detector.Result, error) {
	res := &detector.Result{Counts: map[string]int{"ultra": len(d)}}
	for _, b := range d {
		bb := detector.BBox{X: b.Min.X, Y: b.Min.Y, W: b.Dx(), H: b.Dy()}
		res.Fused = append(res.Fused, detector.FusedRectangle{
			Rectangle: detector.Rectangle{BBox: bb, Area: float64(bb.W * bb.H), Method: "ultra", Confidence: 0.9},
			Sources:   []string{"ultra"},
		})
	}
	return res, nil
}

// addBox registers a detector box once.
func (testCtx *TestContext) addBox(r image.Rectangle) {
	for _, b := range testCtx.Boxes {
		if b == r {
			return
		}
	}
	testCtx.Boxes = append(testCtx.Boxes, r)
}

// build draws the pages and wires the pipeline with the scenario fakes.
func (testCtx *TestContext) build() (*pipeline.Pipeline, error) {
	testCtx.Raster.Pages = map[int]image.Image{}
	for p := 1; p <= testCtx.Pages; p++ {
		testCtx.Raster.Pages[p] = testutil.DrawPage(testutil.Page{W: pageW, H: pageH, Artworks: testCtx.Artworks[p]})
	}
	return pipeline.NewBuilder().
		WithConfig(testCtx.Config).
		WithRasterizer(testCtx.Raster).
		WithGeometry(testutil.FakeGeometry{Pages: testCtx.Pages}).
		WithTextReader(testCtx.Text).
		WithOCREngine(testCtx.Engine).
		WithDetector(boxDetector(testCtx.Boxes)).
		WithClock(testutil.FixedClock{T: fixedTime}).
		Build()
}

// run extracts with req and keeps the manifest.
func (testCtx *TestContext) run(req pipeline.Request) error {
	p, err := testCtx.build()
	if err != nil {
		return err
	}
	req.PDFPath = testCtx.PDFPath
	testCtx.Manifest, testCtx.LastErr = p.Run(context.Background(), req)
	return nil
}

// page returns the manifest entry of page n.
func (testCtx *TestContext) page(n int) (*journal.PageResult, error) {
	if testCtx.Manifest == nil {
		return nil, fmt.Errorf("no extraction has run")
	}
	for i := range testCtx.Manifest.Pages {
		if testCtx.Manifest.Pages[i].PageNumber == n {
			return &testCtx.Manifest.Pages[i], nil
		}
	}
	return nil, fmt.Errorf("page %d not in manifest", n)
}

// pageDir returns the session directory of page n.
func (testCtx *TestContext) pageDir(n int) string {
	return filepath.Join(testCtx.Manifest.SessionDir, journal.PageDirName(n))
}
