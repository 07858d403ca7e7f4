package imgproc

import (
	"math"

	"github.com/MeKo-Tech/artex/internal/mempool"
)

// gaussianKernel builds a normalized 1-D Gaussian kernel. A non-positive
// sigma is derived from the kernel size.
func gaussianKernel(ksize int, sigma float64) []float64 {
	if sigma <= 0 {
		sigma = 0.3*((float64(ksize)-1)*0.5-1) + 0.8
	}
	k := make([]float64, ksize)
	half := ksize / 2
	sum := 0.0
	for i := range ksize {
		x := float64(i - half)
		k[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// GaussianBlur smooths the plane with a separable ksize x ksize Gaussian.
// Kernel sizes below 3 return a copy.
func GaussianBlur(g *Gray, ksize int, sigma float64) *Gray {
	if ksize < 3 {
		return g.Clone()
	}
	if ksize%2 == 0 {
		ksize++
	}
	k := gaussianKernel(ksize, sigma)
	tmp := convolveRows(g, k)
	defer mempool.PutFloat32(tmp)
	return convolveCols(tmp, g.W, g.H, k)
}

func convolveRows(g *Gray, k []float64) []float32 {
	half := len(k) / 2
	out := mempool.GetFloat32(g.W * g.H)
	for y := range g.H {
		row := g.Pix[y*g.W : (y+1)*g.W]
		for x := range g.W {
			s := 0.0
			for i, kv := range k {
				s += kv * float64(row[clamp(x+i-half, 0, g.W-1)])
			}
			out[y*g.W+x] = float32(s)
		}
	}
	return out
}

func convolveCols(src []float32, w, h int, k []float64) *Gray {
	half := len(k) / 2
	out := NewGray(w, h)
	for y := range h {
		for x := range w {
			s := 0.0
			for i, kv := range k {
				s += kv * float64(src[clamp(y+i-half, 0, h-1)*w+x])
			}
			out.Pix[y*w+x] = clampByte(s)
		}
	}
	return out
}

// Bilateral applies an edge-preserving bilateral filter with diameter d.
func Bilateral(g *Gray, d int, sigmaColor, sigmaSpace float64) *Gray {
	if d < 3 {
		return g.Clone()
	}
	r := d / 2
	spatial := make([]float64, (2*r+1)*(2*r+1))
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			dist2 := float64(dx*dx + dy*dy)
			if dist2 > float64(r*r) {
				spatial[(dy+r)*(2*r+1)+dx+r] = 0
				continue
			}
			spatial[(dy+r)*(2*r+1)+dx+r] = math.Exp(-dist2 / (2 * sigmaSpace * sigmaSpace))
		}
	}
	var rangeLUT [256]float64
	for i := range rangeLUT {
		rangeLUT[i] = math.Exp(-float64(i*i) / (2 * sigmaColor * sigmaColor))
	}

	out := NewGray(g.W, g.H)
	for y := range g.H {
		for x := range g.W {
			c := int(g.Pix[y*g.W+x])
			var sum, wsum float64
			for dy := -r; dy <= r; dy++ {
				yy := clamp(y+dy, 0, g.H-1)
				for dx := -r; dx <= r; dx++ {
					sw := spatial[(dy+r)*(2*r+1)+dx+r]
					if sw == 0 {
						continue
					}
					v := int(g.Pix[yy*g.W+clamp(x+dx, 0, g.W-1)])
					diff := v - c
					if diff < 0 {
						diff = -diff
					}
					wt := sw * rangeLUT[diff]
					sum += wt * float64(v)
					wsum += wt
				}
			}
			out.Pix[y*g.W+x] = clampByte(sum / wsum)
		}
	}
	return out
}

// NLMeans denoises with non-local means. Patch distances for every search
// offset are computed from an integral image of squared differences, which
// keeps the cost linear in the number of offsets.
func NLMeans(g *Gray, h float64, patch, search int) *Gray {
	if patch < 1 || search < 1 || h <= 0 {
		return g.Clone()
	}
	w, ht := g.W, g.H
	pr := patch / 2
	sr := search / 2

	// weight lookup by mean squared patch distance, rounded
	lut := make([]float32, 65026)
	for i := range lut {
		lut[i] = float32(math.Exp(-float64(i) / (h * h)))
	}

	wsum := mempool.GetFloat32(w * ht)
	vsum := mempool.GetFloat32(w * ht)
	defer mempool.PutFloat32(wsum)
	defer mempool.PutFloat32(vsum)
	integ := make([]int64, (w+1)*(ht+1))

	for oy := -sr; oy <= sr; oy++ {
		for ox := -sr; ox <= sr; ox++ {
			// integral of squared differences between the plane and its shifted copy
			for y := range ht {
				var rowSum int64
				sy := clamp(y+oy, 0, ht-1)
				for x := range w {
					d := int64(g.Pix[y*w+x]) - int64(g.Pix[sy*w+clamp(x+ox, 0, w-1)])
					rowSum += d * d
					integ[(y+1)*(w+1)+x+1] = integ[y*(w+1)+x+1] + rowSum
				}
			}
			for y := range ht {
				y0 := max(0, y-pr)
				y1 := min(ht, y+pr+1)
				sy := clamp(y+oy, 0, ht-1)
				for x := range w {
					x0 := max(0, x-pr)
					x1 := min(w, x+pr+1)
					s := integ[y1*(w+1)+x1] - integ[y0*(w+1)+x1] - integ[y1*(w+1)+x0] + integ[y0*(w+1)+x0]
					area := float64((y1 - y0) * (x1 - x0))
					dist := int(float64(s)/area + 0.5)
					if dist >= len(lut) {
						dist = len(lut) - 1
					}
					wt := lut[dist]
					wsum[y*w+x] += wt
					vsum[y*w+x] += wt * float32(g.Pix[sy*w+clamp(x+ox, 0, w-1)])
				}
			}
		}
	}

	out := NewGray(w, ht)
	for i := range out.Pix {
		if wsum[i] > 0 {
			out.Pix[i] = clampByte(float64(vsum[i] / wsum[i]))
		} else {
			out.Pix[i] = g.Pix[i]
		}
	}
	return out
}

// Integral holds summed-area tables of a plane and of its squares.
type Integral struct {
	W, H int
	sum  []float64
	sq   []float64
}

// NewIntegral builds summed-area tables for g.
func NewIntegral(g *Gray) *Integral {
	w, h := g.W, g.H
	it := &Integral{W: w, H: h, sum: make([]float64, (w+1)*(h+1)), sq: make([]float64, (w+1)*(h+1))}
	for y := range h {
		var rs, rq float64
		for x := range w {
			v := float64(g.Pix[y*w+x])
			rs += v
			rq += v * v
			it.sum[(y+1)*(w+1)+x+1] = it.sum[y*(w+1)+x+1] + rs
			it.sq[(y+1)*(w+1)+x+1] = it.sq[y*(w+1)+x+1] + rq
		}
	}
	return it
}

// Sum returns the pixel sum over [x0,x1) x [y0,y1), clipped to the plane.
func (it *Integral) Sum(x0, y0, x1, y1 int) float64 {
	x0, y0 = clamp(x0, 0, it.W), clamp(y0, 0, it.H)
	x1, y1 = clamp(x1, 0, it.W), clamp(y1, 0, it.H)
	s := it.sum
	return s[y1*(it.W+1)+x1] - s[y0*(it.W+1)+x1] - s[y1*(it.W+1)+x0] + s[y0*(it.W+1)+x0]
}

// SumSq returns the sum of squared pixels over [x0,x1) x [y0,y1).
func (it *Integral) SumSq(x0, y0, x1, y1 int) float64 {
	x0, y0 = clamp(x0, 0, it.W), clamp(y0, 0, it.H)
	x1, y1 = clamp(x1, 0, it.W), clamp(y1, 0, it.H)
	s := it.sq
	return s[y1*(it.W+1)+x1] - s[y0*(it.W+1)+x1] - s[y1*(it.W+1)+x0] + s[y0*(it.W+1)+x0]
}

// LocalVariance returns the per-pixel variance in a k x k window.
func LocalVariance(g *Gray, k int) []float32 {
	it := NewIntegral(g)
	r := k / 2
	out := mempool.GetFloat32(g.W * g.H)
	for y := range g.H {
		for x := range g.W {
			x0, y0, x1, y1 := x-r, y-r, x+r+1, y+r+1
			n := float64((min(x1, g.W) - max(x0, 0)) * (min(y1, g.H) - max(y0, 0)))
			m := it.Sum(x0, y0, x1, y1) / n
			v := it.SumSq(x0, y0, x1, y1)/n - m*m
			if v < 0 {
				v = 0
			}
			out[y*g.W+x] = float32(v)
		}
	}
	return out
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
