// Package imgproc implements the classical image operations used by the
// rectangle detectors, the quality analyzer and OCR preprocessing: grayscale
// planes, smoothing and denoising, CLAHE, Canny, thresholds, morphology,
// connected components with external contours, and template correlation.
//
// All operations work on 8-bit single-channel planes (Gray) or binary masks
// (Mask) with zero-origin coordinates. Scratch buffers come from mempool.
package imgproc

import (
	"image"

	"github.com/MeKo-Tech/artex/internal/mempool"
)

// Gray is an 8-bit single-channel image plane.
type Gray struct {
	Pix []uint8
	W   int
	H   int
}

// Mask is a binary image plane.
type Mask struct {
	Pix []bool
	W   int
	H   int
}

// NewGray allocates a zeroed plane from the buffer pool.
func NewGray(w, h int) *Gray {
	return &Gray{Pix: mempool.GetUint8(w * h), W: w, H: h}
}

// NewMask allocates a cleared mask from the buffer pool.
func NewMask(w, h int) *Mask {
	return &Mask{Pix: mempool.GetBool(w * h), W: w, H: h}
}

// Release hands the pixel buffer back to the pool. The plane must not be used afterwards.
func (g *Gray) Release() {
	if g == nil {
		return
	}
	mempool.PutUint8(g.Pix)
	g.Pix = nil
}

// Release hands the pixel buffer back to the pool. The mask must not be used afterwards.
func (m *Mask) Release() {
	if m == nil {
		return
	}
	mempool.PutBool(m.Pix)
	m.Pix = nil
}

// At returns the pixel at (x, y) with border replication.
func (g *Gray) At(x, y int) uint8 {
	x = clamp(x, 0, g.W-1)
	y = clamp(y, 0, g.H-1)
	return g.Pix[y*g.W+x]
}

// Clone returns a deep copy.
func (g *Gray) Clone() *Gray {
	out := NewGray(g.W, g.H)
	copy(out.Pix, g.Pix)
	return out
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	out := NewMask(m.W, m.H)
	copy(out.Pix, m.Pix)
	return out
}

// FromImage converts any image to luma using the ITU-R 601 weights.
func FromImage(img image.Image) *Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	g := NewGray(w, h)

	switch src := img.(type) {
	case *image.Gray:
		for y := range h {
			off := (y+b.Min.Y-src.Rect.Min.Y)*src.Stride + (b.Min.X - src.Rect.Min.X)
			copy(g.Pix[y*w:(y+1)*w], src.Pix[off:off+w])
		}
	case *image.NRGBA:
		for y := range h {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride:]
			for x := range w {
				i := (x + b.Min.X - src.Rect.Min.X) * 4
				g.Pix[y*w+x] = luma(row[i], row[i+1], row[i+2])
			}
		}
	case *image.RGBA:
		for y := range h {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride:]
			for x := range w {
				i := (x + b.Min.X - src.Rect.Min.X) * 4
				g.Pix[y*w+x] = luma(row[i], row[i+1], row[i+2])
			}
		}
	default:
		for y := range h {
			for x := range w {
				r, gg, bb, _ := img.At(x+b.Min.X, y+b.Min.Y).RGBA()
				g.Pix[y*w+x] = luma(uint8(r>>8), uint8(gg>>8), uint8(bb>>8))
			}
		}
	}
	return g
}

func luma(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}

// ToImage converts the plane into a standard library image (copying pixels).
func (g *Gray) ToImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.W, g.H))
	copy(img.Pix, g.Pix)
	return img
}

// ToImage renders the mask as black ink (true) on white paper.
func (m *Mask) ToImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.W, m.H))
	for i, v := range m.Pix {
		if v {
			img.Pix[i] = 0
		} else {
			img.Pix[i] = 255
		}
	}
	return img
}

// Crop copies the intersection of r with the plane.
func (g *Gray) Crop(r image.Rectangle) *Gray {
	r = r.Intersect(image.Rect(0, 0, g.W, g.H))
	out := NewGray(r.Dx(), r.Dy())
	for y := 0; y < r.Dy(); y++ {
		src := g.Pix[(y+r.Min.Y)*g.W+r.Min.X:]
		copy(out.Pix[y*out.W:(y+1)*out.W], src[:out.W])
	}
	return out
}

// Invert returns 255 - g.
func (g *Gray) Invert() *Gray {
	out := NewGray(g.W, g.H)
	for i, v := range g.Pix {
		out.Pix[i] = 255 - v
	}
	return out
}

// Stats returns the mean and population variance of the plane.
func (g *Gray) Stats() (mean, variance float64) {
	n := len(g.Pix)
	if n == 0 {
		return 0, 0
	}
	var sum, sumSq float64
	for _, v := range g.Pix {
		f := float64(v)
		sum += f
		sumSq += f * f
	}
	mean = sum / float64(n)
	variance = sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, variance
}

// FractionAbove returns the share of pixels strictly greater than t.
func (g *Gray) FractionAbove(t uint8) float64 {
	if len(g.Pix) == 0 {
		return 0
	}
	n := 0
	for _, v := range g.Pix {
		if v > t {
			n++
		}
	}
	return float64(n) / float64(len(g.Pix))
}

// Fraction returns the share of set pixels.
func (m *Mask) Fraction() float64 {
	if len(m.Pix) == 0 {
		return 0
	}
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return float64(n) / float64(len(m.Pix))
}

// Or merges masks of identical size into a new mask.
func Or(masks ...*Mask) *Mask {
	if len(masks) == 0 {
		return &Mask{}
	}
	out := NewMask(masks[0].W, masks[0].H)
	for _, m := range masks {
		for i, v := range m.Pix {
			if v {
				out.Pix[i] = true
			}
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
