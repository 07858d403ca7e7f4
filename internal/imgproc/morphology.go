package imgproc

// MorphOp selects a morphological operation.
type MorphOp int

const (
	MorphDilate MorphOp = iota
	MorphErode
	MorphOpen  // erode then dilate, removes specks
	MorphClose // dilate then erode, bridges gaps
)

// Morph applies op to the mask with a kw x kh rectangular kernel.
func Morph(m *Mask, op MorphOp, kw, kh int) *Mask {
	switch op {
	case MorphDilate:
		return maskMorph(m, kw, kh, true)
	case MorphErode:
		return maskMorph(m, kw, kh, false)
	case MorphOpen:
		e := maskMorph(m, kw, kh, false)
		defer e.Release()
		return maskMorph(e, kw, kh, true)
	case MorphClose:
		d := maskMorph(m, kw, kh, true)
		defer d.Release()
		return maskMorph(d, kw, kh, false)
	default:
		return m.Clone()
	}
}

// maskMorph runs a separable rectangular dilation (any set) or erosion
// (all set). Pixels outside the plane are ignored.
func maskMorph(m *Mask, kw, kh int, dilate bool) *Mask {
	tmp := NewMask(m.W, m.H)
	defer tmp.Release()
	rx, ry := kw/2, kh/2
	for y := range m.H {
		row := m.Pix[y*m.W : (y+1)*m.W]
		for x := range m.W {
			v := !dilate
			for xx := max(0, x-rx); xx <= min(m.W-1, x-rx+kw-1); xx++ {
				if row[xx] == dilate {
					v = dilate
					break
				}
			}
			tmp.Pix[y*m.W+x] = v
		}
	}
	out := NewMask(m.W, m.H)
	for y := range m.H {
		for x := range m.W {
			v := !dilate
			for yy := max(0, y-ry); yy <= min(m.H-1, y-ry+kh-1); yy++ {
				if tmp.Pix[yy*m.W+x] == dilate {
					v = dilate
					break
				}
			}
			out.Pix[y*m.W+x] = v
		}
	}
	return out
}

// Dilate returns the k x k grey-level dilation (local maximum).
func Dilate(g *Gray, k int) *Gray { return grayMorph(g, k, true) }

// Erode returns the k x k grey-level erosion (local minimum).
func Erode(g *Gray, k int) *Gray { return grayMorph(g, k, false) }

func grayMorph(g *Gray, k int, dilate bool) *Gray {
	r := k / 2
	pick := func(a, b uint8) uint8 {
		if dilate {
			return max(a, b)
		}
		return min(a, b)
	}
	tmp := NewGray(g.W, g.H)
	defer tmp.Release()
	for y := range g.H {
		row := g.Pix[y*g.W : (y+1)*g.W]
		for x := range g.W {
			v := row[x]
			for xx := max(0, x-r); xx <= min(g.W-1, x-r+k-1); xx++ {
				v = pick(v, row[xx])
			}
			tmp.Pix[y*g.W+x] = v
		}
	}
	out := NewGray(g.W, g.H)
	for y := range g.H {
		for x := range g.W {
			v := tmp.Pix[y*g.W+x]
			for yy := max(0, y-r); yy <= min(g.H-1, y-r+k-1); yy++ {
				v = pick(v, tmp.Pix[yy*g.W+x])
			}
			out.Pix[y*g.W+x] = v
		}
	}
	return out
}

// MorphGradient returns dilation minus erosion with a k x k kernel.
func MorphGradient(g *Gray, k int) *Gray {
	d := Dilate(g, k)
	defer d.Release()
	e := Erode(g, k)
	defer e.Release()
	out := NewGray(g.W, g.H)
	for i := range out.Pix {
		out.Pix[i] = d.Pix[i] - e.Pix[i]
	}
	return out
}

// FillHoles sets every unset pixel that is not 4-connected to the border
// through unset pixels.
func FillHoles(m *Mask) *Mask {
	w, h := m.W, m.H
	outside := NewMask(w, h)
	defer outside.Release()
	stack := make([]int, 0, 2*(w+h))
	seed := func(x, y int) {
		i := y*w + x
		if !m.Pix[i] && !outside.Pix[i] {
			outside.Pix[i] = true
			stack = append(stack, i)
		}
	}
	for x := range w {
		seed(x, 0)
		seed(x, h-1)
	}
	for y := range h {
		seed(0, y)
		seed(w-1, y)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		if x > 0 {
			seed(x-1, y)
		}
		if x < w-1 {
			seed(x+1, y)
		}
		if y > 0 {
			seed(x, y-1)
		}
		if y < h-1 {
			seed(x, y+1)
		}
	}
	out := NewMask(w, h)
	for i := range out.Pix {
		out.Pix[i] = !outside.Pix[i]
	}
	return out
}
