package detector

import (
	"image"
	"sort"

	"github.com/MeKo-Tech/artex/internal/imgproc"
	"github.com/MeKo-Tech/artex/internal/utils"
)

// approxEpsilons are tried in order as fractions of the contour perimeter.
var approxEpsilons = []float64{0.001, 0.002, 0.005, 0.01, 0.015, 0.02, 0.025, 0.03}

const (
	minFillRatio      = 0.4
	bboxFallbackRatio = 0.3
	adaptiveBlock     = 7
	adaptiveC         = 2
)

// Ultra runs every configured pass over the working plane and returns the
// candidates in working-image coordinates, pass by pass.
func Ultra(g *imgproc.Gray, cfg Config) [][]Rectangle {
	enhanced := make(map[Mode]*imgproc.Gray)
	defer func() {
		for _, e := range enhanced {
			e.Release()
		}
	}()

	out := make([][]Rectangle, 0, len(cfg.Ultra))
	for _, uc := range cfg.Ultra {
		e, ok := enhanced[uc.Mode]
		if !ok {
			e = enhance(g, uc.Mode)
			enhanced[uc.Mode] = e
		}
		out = append(out, ultraPass(e, uc, cfg.UltraMaxPerConfig))
	}
	return out
}

// enhance denoises per mode and applies CLAHE.
func enhance(g *imgproc.Gray, m Mode) *imgproc.Gray {
	var den *imgproc.Gray
	switch m {
	case ModeDocuments:
		den = imgproc.NLMeans(g, 15, 3, 7)
	case ModeHighContrast:
		den = imgproc.GaussianBlur(g, 1, 0)
	default:
		den = imgproc.Bilateral(g, 5, 50, 50)
	}
	defer den.Release()
	return imgproc.CLAHE(den, paramsFor(m).clipLimit, 8)
}

// edgeMap ORs two Canny maps, a thresholded morphological gradient and an
// inverted adaptive threshold.
func edgeMap(e *imgproc.Gray, uc UltraConfig) *imgproc.Mask {
	p := paramsFor(uc.Mode)
	c1 := imgproc.Canny(e, p.cannyLow, p.cannyHigh)
	defer c1.Release()
	c2 := imgproc.Canny(e, p.cannyLow/2, p.cannyHigh/2)
	defer c2.Release()
	grad := imgproc.MorphGradient(e, 3)
	defer grad.Release()
	gm := imgproc.Threshold(grad, uint8(uc.Sensitivity/10), false)
	defer gm.Release()
	paper := imgproc.AdaptiveGaussian(e, adaptiveBlock, adaptiveC)
	defer paper.Release()
	ink := imgproc.NewMask(paper.W, paper.H)
	defer ink.Release()
	for i, v := range paper.Pix {
		ink.Pix[i] = !v
	}
	// a 1x1 closing leaves the map unchanged
	return imgproc.Or(c1, c2, gm, ink)
}

func ultraPass(e *imgproc.Gray, uc UltraConfig, maxRects int) []Rectangle {
	edges := edgeMap(e, uc)
	defer edges.Release()

	total := float64(e.W * e.H)
	minArea := total / float64(uc.MinAreaDivisor)
	contours := imgproc.ExternalContours(edges, minArea)
	sort.SliceStable(contours, func(i, j int) bool { return contours[i].Area > contours[j].Area })

	method := "ultra_" + uc.Name
	var out []Rectangle
	for _, c := range contours {
		if len(out) >= maxRects {
			break
		}
		boxArea := float64(c.Bounds.Dx() * c.Bounds.Dy())
		if c.Area < minArea || boxArea == 0 {
			continue
		}
		fill := c.Area / boxArea
		if fill < minFillRatio {
			continue
		}
		if r, ok := quadFromContour(c, method, fill); ok {
			out = append(out, r)
			continue
		}
		if fill >= bboxFallbackRatio {
			r := rectFromBox(BBoxFromRect(c.Bounds), method, 0.5*fill)
			r.Area = c.Area
			out = append(out, r)
		}
	}
	return out
}

// quadFromContour looks for the first convex four-vertex approximation.
func quadFromContour(c imgproc.Contour, method string, fill float64) (Rectangle, bool) {
	peri := utils.Perimeter(c.Points)
	for _, eps := range approxEpsilons {
		approx := utils.ApproxPolygonClosed(c.Points, eps*peri)
		if len(approx) != 4 || !utils.IsConvex(approx) {
			continue
		}
		corners := utils.OrderCorners(approx)
		bb := utils.BoundingBox(approx)
		// contour points are pixel centers; the box covers whole pixels
		box := image.Rect(int(bb.MinX), int(bb.MinY), int(bb.MaxX)+1, int(bb.MaxY)+1)
		return Rectangle{
			BBox:       BBoxFromRect(box),
			Corners:    corners,
			Area:       c.Area,
			Method:     method,
			Confidence: fill,
		}, true
	}
	return Rectangle{}, false
}
