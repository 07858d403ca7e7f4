package caption

import (
	"image"

	"github.com/MeKo-Tech/artex/internal/imgproc"
	"github.com/MeKo-Tech/artex/internal/utils"
)

// Band is one search area around the artwork.
type Band struct {
	Region Region
	Rect   image.Rectangle
}

// minBandSide drops slivers left after clipping to the page.
const minBandSide = 8

// Bands returns the search bands in search order: bottom, top, right, left.
// Vertical bands span the artwork width plus 5 % on each side; horizontal
// bands span its height.
func Bands(bbox, page image.Rectangle, cfg Config) []Band {
	vt := max(int(cfg.BandRatio*float64(page.Dy())), cfg.MinBandVertical)
	ht := max(int(cfg.BandRatio*float64(page.Dx())), cfg.MinBandHorizontal)
	padX := bbox.Dx() / 20

	candidates := []Band{
		{RegionBottom, image.Rect(bbox.Min.X-padX, bbox.Max.Y, bbox.Max.X+padX, bbox.Max.Y+vt)},
		{RegionTop, image.Rect(bbox.Min.X-padX, bbox.Min.Y-vt, bbox.Max.X+padX, bbox.Min.Y)},
		{RegionRight, image.Rect(bbox.Max.X, bbox.Min.Y, bbox.Max.X+ht, bbox.Max.Y)},
		{RegionLeft, image.Rect(bbox.Min.X-ht, bbox.Min.Y, bbox.Min.X, bbox.Max.Y)},
	}
	out := candidates[:0]
	for _, b := range candidates {
		b.Rect = b.Rect.Intersect(page)
		if b.Rect.Dx() < minBandSide || b.Rect.Dy() < minBandSide {
			continue
		}
		out = append(out, b)
	}
	return out
}

// EstimateArtworkBBox finds the largest dark region of the page that does
// not cover (almost) the whole page and pads it by 1 %.
func EstimateArtworkBBox(img image.Image) (image.Rectangle, bool) {
	g := imgproc.FromImage(img)
	defer g.Release()
	inv := g.Invert()
	defer inv.Release()
	mask := imgproc.Threshold(inv, imgproc.Otsu(inv), false)
	defer mask.Release()
	closed := imgproc.Morph(mask, imgproc.MorphClose, 11, 11)
	defer closed.Release()

	pageArea := float64(g.W * g.H)
	var best imgproc.Contour
	found := false
	for _, c := range imgproc.ExternalContours(closed, pageArea*0.001) {
		if c.Area >= 0.95*pageArea {
			continue
		}
		if !found || c.Area > best.Area {
			best, found = c, true
		}
	}
	if !found {
		return image.Rectangle{}, false
	}
	b := img.Bounds()
	box := best.Bounds.Add(b.Min)
	return utils.PadRect(box, 0.01, b), true
}
