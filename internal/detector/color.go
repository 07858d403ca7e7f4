package detector

import (
	"sort"

	"github.com/MeKo-Tech/artex/internal/imgproc"
	"github.com/MeKo-Tech/artex/internal/mempool"
)

const (
	colorWindow        = 15
	colorVarianceLevel = 100.0
	colorSobelLevel    = 30
	colorKernel        = 5
	colorMinAspect     = 0.2
	colorMaxAspect     = 5.0
	colorAreaDivisor   = 1500
)

// Color marks textured or contrasted regions (local variance or Sobel
// response), cleans them with a closing and an opening, and keeps the
// largest plausible blobs.
func Color(g *imgproc.Gray, cfg Config) []Rectangle {
	variance := imgproc.LocalVariance(g, colorWindow)
	defer mempool.PutFloat32(variance)
	sobel := imgproc.SobelMagnitude(g)
	defer sobel.Release()

	mask := imgproc.NewMask(g.W, g.H)
	defer mask.Release()
	for i := range mask.Pix {
		mask.Pix[i] = float64(variance[i]) > colorVarianceLevel || sobel.Pix[i] > colorSobelLevel
	}
	closed := imgproc.Morph(mask, imgproc.MorphClose, colorKernel, colorKernel)
	defer closed.Release()
	opened := imgproc.Morph(closed, imgproc.MorphOpen, colorKernel, colorKernel)
	defer opened.Release()

	contours := imgproc.ExternalContours(opened, 1)
	sort.SliceStable(contours, func(i, j int) bool { return contours[i].Area > contours[j].Area })
	if len(contours) > cfg.ColorTopK {
		contours = contours[:cfg.ColorTopK]
	}

	minArea := float64(g.W*g.H) / colorAreaDivisor
	var out []Rectangle
	for _, c := range contours {
		w, h := c.Bounds.Dx(), c.Bounds.Dy()
		if w == 0 || h == 0 || c.Area < minArea {
			continue
		}
		aspect := float64(w) / float64(h)
		if aspect < colorMinAspect || aspect > colorMaxAspect {
			continue
		}
		r := rectFromBox(BBoxFromRect(c.Bounds), "color_variance", 0.5)
		r.Area = c.Area
		out = append(out, r)
	}
	return out
}
