package imgproc

import (
	"image"

	"github.com/MeKo-Tech/artex/internal/utils"
)

// Component describes one 8-connected region of a mask.
type Component struct {
	Label  int32
	Count  int
	Bounds image.Rectangle
}

// Contour is the outer boundary of a region in pixel-center coordinates.
type Contour struct {
	Points []utils.Point
	Area   float64
	Bounds image.Rectangle
}

var (
	ndx = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	ndy = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// Components labels the 8-connected regions of m. Labels start at 1;
// background is 0.
func Components(m *Mask) ([]int32, []Component) {
	w, h := m.W, m.H
	labels := make([]int32, w*h)
	var comps []Component
	queue := make([]int, 0, 256)
	next := int32(1)

	for start := range m.Pix {
		if !m.Pix[start] || labels[start] != 0 {
			continue
		}
		sx, sy := start%w, start/w
		c := Component{Label: next, Bounds: image.Rect(sx, sy, sx+1, sy+1)}
		labels[start] = next
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			x, y := i%w, i/w
			c.Count++
			c.Bounds = c.Bounds.Union(image.Rect(x, y, x+1, y+1))
			for d := range 8 {
				nx, ny := x+ndx[d], y+ndy[d]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				if m.Pix[ni] && labels[ni] == 0 {
					labels[ni] = next
					queue = append(queue, ni)
				}
			}
		}
		comps = append(comps, c)
		next++
	}
	return labels, comps
}

// ExternalContours returns the outer boundary of every region whose
// enclosed area is at least minArea. Interior holes are ignored.
func ExternalContours(m *Mask, minArea float64) []Contour {
	filled := FillHoles(m)
	defer filled.Release()
	labels, comps := Components(filled)

	out := make([]Contour, 0, len(comps))
	for _, c := range comps {
		if float64(c.Bounds.Dx()*c.Bounds.Dy()) < minArea {
			continue
		}
		pts := traceMoore(labels, filled.W, filled.H, c)
		area := utils.PolygonArea(pts)
		if area < minArea {
			continue
		}
		out = append(out, Contour{Points: pts, Area: area, Bounds: c.Bounds})
	}
	return out
}

// traceMoore walks the region boundary clockwise with Moore-neighbour
// tracing, starting from the top-left pixel and dropping collinear runs.
func traceMoore(labels []int32, w, h int, c Component) []utils.Point {
	isLabel := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && labels[y*w+x] == c.Label
	}
	sx, sy := -1, -1
	for x := c.Bounds.Min.X; x < c.Bounds.Max.X; x++ {
		if isLabel(x, c.Bounds.Min.Y) {
			sx, sy = x, c.Bounds.Min.Y
			break
		}
	}
	if sx < 0 {
		return nil
	}

	pts := make([]utils.Point, 0, 64)
	add := func(x, y int) {
		p := utils.Point{X: float64(x), Y: float64(y)}
		n := len(pts)
		if n > 0 && pts[n-1] == p {
			return
		}
		if n >= 2 {
			a, b := pts[n-2], pts[n-1]
			if (b.X-a.X)*(p.Y-b.Y)-(b.Y-a.Y)*(p.X-b.X) == 0 {
				pts = pts[:n-1]
			}
		}
		pts = append(pts, p)
	}
	add(sx, sy)

	cx, cy := sx, sy
	bx, by := sx-1, sy
	startBx, startBy := bx, by
	for steps := 0; steps < 4*c.Count+8; steps++ {
		dir := 0
		for i := range 8 {
			if ndx[i] == bx-cx && ndy[i] == by-cy {
				dir = i
				break
			}
		}
		found := false
		for k := 1; k <= 8; k++ {
			i := (dir + k) % 8
			tx, ty := cx+ndx[i], cy+ndy[i]
			if isLabel(tx, ty) {
				cx, cy = tx, ty
				found = true
				break
			}
			bx, by = tx, ty
		}
		if !found {
			break
		}
		if cx == sx && cy == sy && bx == startBx && by == startBy {
			break
		}
		add(cx, cy)
	}
	collinear := func(a, b, p utils.Point) bool {
		return (b.X-a.X)*(p.Y-b.Y)-(b.Y-a.Y)*(p.X-b.X) == 0
	}
	if n := len(pts); n >= 3 && collinear(pts[n-2], pts[n-1], pts[0]) {
		pts = pts[:n-1]
	}
	if n := len(pts); n >= 3 {
		if collinear(pts[n-1], pts[0], pts[1]) {
			pts = pts[1:]
		}
	}
	return pts
}
