package imgproc

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/artex/internal/mempool"
)

// Peak is a local maximum of a response map.
type Peak struct {
	X, Y  int
	Score float64
}

// HollowRectNCC correlates the plane with a tw x th rectangular outline of
// the given border thickness using the normalized correlation coefficient.
// The response at (x, y) belongs to the window whose top-left corner is
// (x, y); the map is (W-tw+1) x (H-th+1). Dark and light frames both
// score high since the absolute coefficient is reported.
func HollowRectNCC(it *Integral, tw, th, border int) (resp []float32, rw, rh int) {
	rw, rh = it.W-tw+1, it.H-th+1
	if rw <= 0 || rh <= 0 || border <= 0 || 2*border >= tw || 2*border >= th {
		return nil, 0, 0
	}
	n := float64(tw * th)
	m := n - float64((tw-2*border)*(th-2*border))
	tVar := m - m*m/n

	resp = mempool.GetFloat32(rw * rh)
	for y := range rh {
		for x := range rw {
			outer := it.Sum(x, y, x+tw, y+th)
			inner := it.Sum(x+border, y+border, x+tw-border, y+th-border)
			frame := outer - inner
			num := frame - m/n*outer
			iVar := it.SumSq(x, y, x+tw, y+th) - outer*outer/n
			if iVar <= 1e-6 {
				continue
			}
			resp[y*rw+x] = float32(math.Abs(num) / math.Sqrt(tVar*iVar))
		}
	}
	return resp, rw, rh
}

// Peaks returns the 3x3 local maxima at or above threshold, strongest first.
func Peaks(resp []float32, w, h int, threshold float64) []Peak {
	var out []Peak
	for y := range h {
		for x := range w {
			v := resp[y*w+x]
			if float64(v) < threshold {
				continue
			}
			isMax := true
			for dy := -1; dy <= 1 && isMax; dy++ {
				for dx := -1; dx <= 1; dx++ {
					xx, yy := x+dx, y+dy
					if (dx == 0 && dy == 0) || xx < 0 || yy < 0 || xx >= w || yy >= h {
						continue
					}
					nv := resp[yy*w+xx]
					// ties resolve towards the first pixel in raster order
					if nv > v || (nv == v && (yy < y || (yy == y && xx < x))) {
						isMax = false
						break
					}
				}
			}
			if isMax {
				out = append(out, Peak{X: x, Y: y, Score: float64(v)})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
