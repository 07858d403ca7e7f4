package numbering

import (
	"image"
	"math"
)

const minZoneSide = 8

// ZoneRect returns the search area for zone z around bbox, clipped to the
// page. Empty results mean the zone does not fit on the page.
func ZoneRect(z Zone, bbox, page image.Rectangle) image.Rectangle {
	w, h := float64(bbox.Dx()), float64(bbox.Dy())
	var r image.Rectangle
	switch z {
	case ZoneBelow:
		bh := int(math.Max(0.08*h, 60))
		r = image.Rect(bbox.Min.X, bbox.Max.Y, bbox.Max.X, bbox.Max.Y+bh)
	case ZoneInsideBottom:
		bh := int(math.Min(math.Max(0.08*h, 40), h/2))
		r = image.Rect(bbox.Min.X, bbox.Max.Y-bh, bbox.Max.X, bbox.Max.Y)
	case ZoneRight:
		bw := int(math.Max(0.15*w, 80))
		r = image.Rect(bbox.Max.X, bbox.Min.Y, bbox.Max.X+bw, bbox.Max.Y)
	case ZoneLeft:
		bw := int(math.Max(0.15*w, 80))
		r = image.Rect(bbox.Min.X-bw, bbox.Min.Y, bbox.Min.X, bbox.Max.Y)
	case ZoneBelowWide:
		ww := int(1.5 * w)
		cx := bbox.Min.X + bbox.Dx()/2
		bh := int(math.Max(0.15*h, 120))
		r = image.Rect(cx-ww/2, bbox.Max.Y, cx+ww/2, bbox.Max.Y+bh)
	case ZoneAbove:
		bh := int(math.Max(0.08*h, 60))
		r = image.Rect(bbox.Min.X, bbox.Min.Y-bh, bbox.Max.X, bbox.Min.Y)
	}
	r = r.Intersect(page)
	if r.Dx() < minZoneSide || r.Dy() < minZoneSide {
		return image.Rectangle{}
	}
	return r
}
