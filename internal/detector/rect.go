package detector

import (
	"image"
	"math"
	"sort"

	"github.com/MeKo-Tech/artex/internal/utils"
)

// BBox is an integer axis-aligned box in page-image pixels.
type BBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// BBoxFromRect converts an image.Rectangle.
func BBoxFromRect(r image.Rectangle) BBox {
	r = r.Canon()
	return BBox{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Rect returns the box as an image.Rectangle.
func (b BBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Center returns the box center.
func (b BBox) Center() (float64, float64) {
	return float64(b.X) + float64(b.W)/2, float64(b.Y) + float64(b.H)/2
}

// Area returns w*h.
func (b BBox) Area() int { return b.W * b.H }

// Within reports whether the box lies inside a w x h page.
func (b BBox) Within(w, h int) bool {
	return b.X >= 0 && b.Y >= 0 && b.W >= 0 && b.H >= 0 && b.X+b.W <= w && b.Y+b.H <= h
}

// Rectangle is one detector candidate.
type Rectangle struct {
	BBox       BBox           `json:"bbox"`
	Corners    [4]utils.Point `json:"corners"`
	Area       float64        `json:"area"`
	Method     string         `json:"method"`
	Confidence float64        `json:"confidence"`
}

// FusedRectangle is a deduplicated rectangle with every method that voted for it.
type FusedRectangle struct {
	Rectangle
	Sources []string `json:"sources"`
}

// cornersOf returns the four bbox corners in TL, TR, BR, BL order.
func cornersOf(b BBox) [4]utils.Point {
	x0, y0 := float64(b.X), float64(b.Y)
	x1, y1 := float64(b.X+b.W), float64(b.Y+b.H)
	return [4]utils.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

// rectFromBox builds an axis-aligned candidate.
func rectFromBox(b BBox, method string, confidence float64) Rectangle {
	return Rectangle{
		BBox:       b,
		Corners:    cornersOf(b),
		Area:       float64(b.Area()),
		Method:     method,
		Confidence: confidence,
	}
}

// scale maps a candidate found on a working image back to page pixels and
// clamps it to the page.
func (r Rectangle) scale(s float64, pageW, pageH int) Rectangle {
	if s == 1 {
		return r.clamp(pageW, pageH)
	}
	out := r
	out.BBox = BBoxFromRect(utils.ScaleRect(r.BBox.Rect(), s))
	for i, p := range r.Corners {
		out.Corners[i] = utils.Point{X: p.X * s, Y: p.Y * s}
	}
	out.Area = r.Area * s * s
	return out.clamp(pageW, pageH)
}

// clamp restricts bbox and corners to the page.
func (r Rectangle) clamp(pageW, pageH int) Rectangle {
	out := r
	out.BBox = BBoxFromRect(r.BBox.Rect().Intersect(image.Rect(0, 0, pageW, pageH)))
	for i, p := range r.Corners {
		out.Corners[i] = utils.Point{
			X: math.Min(math.Max(p.X, 0), float64(pageW)),
			Y: math.Min(math.Max(p.Y, 0), float64(pageH)),
		}
	}
	return out
}

// Clamp restricts every rectangle to a pageW x pageH page and drops empty results.
func Clamp(rects []FusedRectangle, pageW, pageH int) []FusedRectangle {
	out := make([]FusedRectangle, 0, len(rects))
	for _, r := range rects {
		r.Rectangle = r.clamp(pageW, pageH)
		if r.BBox.W > 0 && r.BBox.H > 0 {
			out = append(out, r)
		}
	}
	return out
}

// SplitBySize separates rectangles at least minSide on both axes from the rest.
func SplitBySize(rects []FusedRectangle, minSide int) (kept, skipped []FusedRectangle) {
	for _, r := range rects {
		if r.BBox.W < minSide || r.BBox.H < minSide {
			skipped = append(skipped, r)
			continue
		}
		kept = append(kept, r)
	}
	return kept, skipped
}

func sortedUnique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
