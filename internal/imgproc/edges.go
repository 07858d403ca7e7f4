package imgproc

import (
	"math"

	"github.com/MeKo-Tech/artex/internal/mempool"
)

// Sobel returns the horizontal and vertical 3x3 Sobel derivatives.
// The caller owns both buffers and may return them with mempool.PutInt32.
func Sobel(g *Gray) (gx, gy []int32) {
	w, h := g.W, g.H
	gx = mempool.GetInt32(w * h)
	gy = mempool.GetInt32(w * h)
	for y := range h {
		ym, yp := clamp(y-1, 0, h-1), clamp(y+1, 0, h-1)
		for x := range w {
			xm, xp := clamp(x-1, 0, w-1), clamp(x+1, 0, w-1)
			p := func(xx, yy int) int32 { return int32(g.Pix[yy*w+xx]) }
			gx[y*w+x] = (p(xp, ym) + 2*p(xp, y) + p(xp, yp)) - (p(xm, ym) + 2*p(xm, y) + p(xm, yp))
			gy[y*w+x] = (p(xm, yp) + 2*p(x, yp) + p(xp, yp)) - (p(xm, ym) + 2*p(x, ym) + p(xp, ym))
		}
	}
	return gx, gy
}

// SobelMagnitude returns |gx| + |gy| scaled into 0..255.
func SobelMagnitude(g *Gray) *Gray {
	gx, gy := Sobel(g)
	defer mempool.PutInt32(gx)
	defer mempool.PutInt32(gy)
	out := NewGray(g.W, g.H)
	for i := range out.Pix {
		m := abs32(gx[i]) + abs32(gy[i])
		out.Pix[i] = uint8(min(m/4, 255))
	}
	return out
}

// Canny runs non-maximum suppression and hysteresis over the L1 Sobel
// magnitude and returns the edge mask.
func Canny(g *Gray, low, high float64) *Mask {
	w, h := g.W, g.H
	gx, gy := Sobel(g)
	defer mempool.PutInt32(gx)
	defer mempool.PutInt32(gy)

	mag := mempool.GetInt32(w * h)
	defer mempool.PutInt32(mag)
	for i := range mag {
		mag[i] = abs32(gx[i]) + abs32(gy[i])
	}

	// 0 = none, 1 = weak, 2 = strong
	state := mempool.GetUint8(w * h)
	defer mempool.PutUint8(state)
	tan22 := math.Tan(math.Pi / 8)
	tan67 := math.Tan(3 * math.Pi / 8)
	stack := make([]int, 0, 1024)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if float64(m) <= low {
				continue
			}
			ax, ay := math.Abs(float64(gx[i])), math.Abs(float64(gy[i]))
			var n1, n2 int32
			switch {
			case ay <= ax*tan22:
				n1, n2 = mag[i-1], mag[i+1]
			case ay >= ax*tan67:
				n1, n2 = mag[i-w], mag[i+w]
			default:
				if (gx[i] > 0) == (gy[i] > 0) {
					n1, n2 = mag[i-w-1], mag[i+w+1]
				} else {
					n1, n2 = mag[i-w+1], mag[i+w-1]
				}
			}
			if m <= n1 || m < n2 {
				continue
			}
			if float64(m) > high {
				state[i] = 2
				stack = append(stack, i)
			} else {
				state[i] = 1
			}
		}
	}

	out := NewMask(w, h)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if out.Pix[i] {
			continue
		}
		out.Pix[i] = true
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				xx, yy := x+dx, y+dy
				if xx < 0 || yy < 0 || xx >= w || yy >= h {
					continue
				}
				j := yy*w + xx
				if state[j] == 1 && !out.Pix[j] {
					stack = append(stack, j)
				}
			}
		}
	}
	return out
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
