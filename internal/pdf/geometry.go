// Package pdf reads page geometry, rasterizes pages and extracts text layers
// from catalog PDFs. Every backend sits behind a small interface so the
// pipeline can chain implementations and tests can substitute fakes.
package pdf

import (
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Page formats recognized by Classify.
const (
	FormatA5     = "A5"
	FormatA4     = "A4"
	FormatA3     = "A3"
	FormatLetter = "Letter"
	FormatCustom = "custom"
)

const (
	mmPerPoint        = 25.4 / 72
	formatToleranceMM = 5.0
	ultraFloorDPI     = 400
	retryFloorDPI     = 150
	defaultRetries    = 2
)

var formats = []struct {
	name       string
	short, lng float64
}{
	{FormatA5, 148, 210},
	{FormatA4, 210, 297},
	{FormatA3, 297, 420},
	{FormatLetter, 215.9, 279.4},
}

// PageGeometry is the physical size of one page.
type PageGeometry struct {
	Page     int     `json:"page"`
	WidthPt  float64 `json:"width_pt"`
	HeightPt float64 `json:"height_pt"`
	WidthMM  float64 `json:"width_mm"`
	HeightMM float64 `json:"height_mm"`
	Format   string  `json:"format"`
}

// NewPageGeometry converts a MediaBox size in points.
func NewPageGeometry(page int, widthPt, heightPt float64) PageGeometry {
	g := PageGeometry{
		Page:     page,
		WidthPt:  widthPt,
		HeightPt: heightPt,
		WidthMM:  widthPt * mmPerPoint,
		HeightMM: heightPt * mmPerPoint,
	}
	g.Format = Classify(g.WidthMM, g.HeightMM)
	return g
}

// SurfaceMM2 returns the page surface in square millimetres.
func (g PageGeometry) SurfaceMM2() float64 { return g.WidthMM * g.HeightMM }

// PixelSize returns the raster size of the page at dpi.
func (g PageGeometry) PixelSize(dpi int) (int, int) {
	return int(math.Round(g.WidthPt / 72 * float64(dpi))), int(math.Round(g.HeightPt / 72 * float64(dpi)))
}

// Classify names the paper format of a w x h mm page in either orientation.
func Classify(wMM, hMM float64) string {
	short, lng := math.Min(wMM, hMM), math.Max(wMM, hMM)
	for _, f := range formats {
		if math.Abs(short-f.short) <= formatToleranceMM && math.Abs(lng-f.lng) <= formatToleranceMM {
			return f.name
		}
	}
	return FormatCustom
}

// DPIPolicy picks a rasterization resolution from the page surface.
type DPIPolicy struct {
	// MinDPI is a floor applied after the surface rule; 0 disables it.
	MinDPI int
}

// UltraPolicy is the policy of the ultra-sensitive extraction profile.
func UltraPolicy() DPIPolicy { return DPIPolicy{MinDPI: ultraFloorDPI} }

// Choose returns the DPI for g: small pages get more pixels per inch.
func (p DPIPolicy) Choose(g PageGeometry) int {
	var dpi int
	switch s := g.SurfaceMM2(); {
	case s < 30000:
		dpi = 500
	case s < 70000:
		dpi = 400
	case s < 150000:
		dpi = 350
	default:
		dpi = 300
	}
	return max(dpi, p.MinDPI)
}

// GeometryReader reports page count and page sizes.
type GeometryReader interface {
	PageCount(pdfPath string) (int, error)
	PageSize(pdfPath string, page int) (PageGeometry, error)
}

// PdfcpuGeometry reads page dimensions with pdfcpu. Dimensions are read once
// per document and reused until the file changes. The zero value is ready
// to use.
type PdfcpuGeometry struct {
	mu    sync.Mutex
	cache map[string]cachedDims

	// readDims overrides the pdfcpu lookup in tests.
	readDims func(pdfPath string) ([]PageGeometry, error)
}

type cachedDims struct {
	modTime time.Time
	size    int64
	pages   []PageGeometry
}

// NewPdfcpuGeometry returns an empty geometry cache.
func NewPdfcpuGeometry() *PdfcpuGeometry {
	return &PdfcpuGeometry{}
}

// PageCount returns the number of pages.
func (g *PdfcpuGeometry) PageCount(pdfPath string) (int, error) {
	n, err := api.PageCountFile(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages of %s: %w", pdfPath, err)
	}
	return n, nil
}

// PageSize returns the geometry of a 1-based page.
func (g *PdfcpuGeometry) PageSize(pdfPath string, page int) (PageGeometry, error) {
	pages, err := g.pages(pdfPath)
	if err != nil {
		return PageGeometry{}, err
	}
	if page < 1 || page > len(pages) {
		return PageGeometry{}, fmt.Errorf("page %d out of range [1,%d]", page, len(pages))
	}
	return pages[page-1], nil
}

func (g *PdfcpuGeometry) pages(pdfPath string) ([]PageGeometry, error) {
	info, err := os.Stat(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions of %s: %w", pdfPath, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.cache[pdfPath]; ok && c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
		return c.pages, nil
	}

	read := g.readDims
	if read == nil {
		read = pdfcpuDims
	}
	pages, err := read(pdfPath)
	if err != nil {
		return nil, err
	}
	if g.cache == nil {
		g.cache = make(map[string]cachedDims)
	}
	g.cache[pdfPath] = cachedDims{modTime: info.ModTime(), size: info.Size(), pages: pages}
	return pages, nil
}

func pdfcpuDims(pdfPath string) ([]PageGeometry, error) {
	dims, err := api.PageDimsFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions of %s: %w", pdfPath, err)
	}
	pages := make([]PageGeometry, len(dims))
	for i, d := range dims {
		pages[i] = NewPageGeometry(i+1, d.Width, d.Height)
	}
	return pages, nil
}
