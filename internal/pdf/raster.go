package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/MeKo-Tech/artex/internal/utils"
)

// ErrRasterize marks a page that could not be converted to an image.
var ErrRasterize = errors.New("rasterization failed")

// Rasterizer renders one 1-based page at the given resolution.
type Rasterizer interface {
	Name() string
	Rasterize(ctx context.Context, pdfPath string, page, dpi int) (image.Image, error)
}

// PdftoppmRasterizer renders pages with poppler's pdftoppm.
type PdftoppmRasterizer struct {
	path string
}

// NewPdftoppmRasterizer returns a rasterizer using the given binary
// ("pdftoppm" when empty).
func NewPdftoppmRasterizer(path string) *PdftoppmRasterizer {
	if path == "" {
		path = "pdftoppm"
	}
	return &PdftoppmRasterizer{path: path}
}

// Name implements Rasterizer.
func (p *PdftoppmRasterizer) Name() string { return "pdftoppm" }

// Available reports whether the binary can be found.
func (p *PdftoppmRasterizer) Available() bool {
	_, err := exec.LookPath(p.path)
	return err == nil
}

func (p *PdftoppmRasterizer) args(pdfPath, prefix string, page, dpi int) []string {
	pg := strconv.Itoa(page)
	return []string{"-png", "-r", strconv.Itoa(dpi), "-f", pg, "-l", pg, "-singlefile", pdfPath, prefix}
}

// Rasterize implements Rasterizer.
func (p *PdftoppmRasterizer) Rasterize(ctx context.Context, pdfPath string, page, dpi int) (image.Image, error) {
	dir, err := os.MkdirTemp("", "artex-raster-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, p.path, p.args(pdfPath, prefix, page, dpi)...) //nolint:gosec // configured binary
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed on page %d: %w: %s", page, err, string(out))
	}
	img, err := utils.LoadImage(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("failed to load rendered page %d: %w", page, err)
	}
	return utils.ToNRGBA(img), nil
}

// EmbeddedImageRasterizer reconstructs scanned pages from their largest
// embedded image, scaled to the requested resolution.
type EmbeddedImageRasterizer struct {
	geometry GeometryReader
}

// NewEmbeddedImageRasterizer returns a rasterizer that sizes pages with geometry.
func NewEmbeddedImageRasterizer(geometry GeometryReader) *EmbeddedImageRasterizer {
	return &EmbeddedImageRasterizer{geometry: geometry}
}

// Name implements Rasterizer.
func (e *EmbeddedImageRasterizer) Name() string { return "embedded" }

// Rasterize implements Rasterizer.
func (e *EmbeddedImageRasterizer) Rasterize(ctx context.Context, pdfPath string, page, dpi int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := e.geometry.PageSize(pdfPath, page)
	if err != nil {
		return nil, err
	}
	images, err := extractPageImages(pdfPath, page)
	if err != nil {
		return nil, err
	}
	var best image.Image
	for _, img := range images {
		if best == nil || utils.RectArea(img.Bounds()) > utils.RectArea(best.Bounds()) {
			best = img
		}
	}
	if best == nil {
		return nil, fmt.Errorf("page %d has no embedded image", page)
	}
	w, h := g.PixelSize(dpi)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("page %d has an empty media box", page)
	}
	return imaging.Resize(best, w, h, imaging.Lanczos), nil
}

// extractPageImages writes the images of one page to a temp dir with pdfcpu
// and loads them back.
func extractPageImages(pdfPath string, page int) ([]image.Image, error) {
	dir, err := os.MkdirTemp("", "artex-extract-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	if err := api.ExtractImagesFile(pdfPath, dir, []string{strconv.Itoa(page)}, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from page %d: %w", page, err)
	}
	return loadImages(dir)
}

// ChainRasterizer tries each rasterizer in order.
type ChainRasterizer []Rasterizer

// Name implements Rasterizer.
func (c ChainRasterizer) Name() string { return "chain" }

// Rasterize returns the first successful rendering.
func (c ChainRasterizer) Rasterize(ctx context.Context, pdfPath string, page, dpi int) (image.Image, error) {
	var errs []error
	for _, r := range c {
		img, err := r.Rasterize(ctx, pdfPath, page, dpi)
		if err == nil {
			return img, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Debug("Rasterizer failed, trying next", "rasterizer", r.Name(), "page", page, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
	}
	if len(errs) == 0 {
		return nil, errors.New("no rasterizer configured")
	}
	return nil, errors.Join(errs...)
}

// RasterizeWithRetry renders a page, halving the resolution (not below 150
// DPI) after each failure for up to retries more attempts. It returns the
// resolution that succeeded. Exhaustion is reported as ErrRasterize.
func RasterizeWithRetry(ctx context.Context, r Rasterizer, pdfPath string, page, dpi, retries int) (image.Image, int, error) {
	if retries < 0 {
		retries = defaultRetries
	}
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		img, err := r.Rasterize(ctx, pdfPath, page, dpi)
		if err == nil {
			return img, dpi, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		next := max(dpi/2, retryFloorDPI)
		slog.Warn("Rasterization failed, retrying at lower resolution", "page", page, "dpi", dpi, "next_dpi", next, "error", err)
		dpi = next
	}
	return nil, 0, fmt.Errorf("%w: page %d: %w", ErrRasterize, page, lastErr)
}
