package imgproc

import "github.com/MeKo-Tech/artex/internal/mempool"

// Otsu returns the threshold maximizing between-class variance.
func Otsu(g *Gray) uint8 {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	total := len(g.Pix)
	if total == 0 {
		return 127
	}
	sum := 0.0
	for i, c := range hist {
		sum += float64(i * c)
	}
	var sumB, best float64
	wB := 0
	t := 0
	for i, c := range hist {
		wB += c
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(i * c)
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			t = i
		}
	}
	return uint8(t)
}

// Threshold marks pixels strictly greater than t. With inverse set, pixels
// at or below t are marked instead.
func Threshold(g *Gray, t uint8, inverse bool) *Mask {
	out := NewMask(g.W, g.H)
	for i, v := range g.Pix {
		out.Pix[i] = (v > t) != inverse
	}
	return out
}

// Binarize renders a mask as a black-on-white plane (set pixels white).
func Binarize(m *Mask) *Gray {
	out := NewGray(m.W, m.H)
	for i, v := range m.Pix {
		if v {
			out.Pix[i] = 255
		}
	}
	return out
}

// AdaptiveGaussian thresholds each pixel against the Gaussian-weighted mean
// of its block x block neighbourhood minus c. Pixels above the local level
// are marked.
func AdaptiveGaussian(g *Gray, block int, c float64) *Mask {
	if block%2 == 0 {
		block++
	}
	if block < 3 {
		block = 3
	}
	k := gaussianKernel(block, 0)
	tmp := convolveRows(g, k)
	defer mempool.PutFloat32(tmp)
	half := len(k) / 2
	out := NewMask(g.W, g.H)
	for y := range g.H {
		for x := range g.W {
			s := 0.0
			for i, kv := range k {
				s += kv * float64(tmp[clamp(y+i-half, 0, g.H-1)*g.W+x])
			}
			out.Pix[y*g.W+x] = float64(g.Pix[y*g.W+x]) > s-c
		}
	}
	return out
}
