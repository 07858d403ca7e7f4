package utils

import "math"

// SimplifyPolygon reduces the number of points in an open polyline using the
// Douglas–Peucker algorithm with the given tolerance epsilon. Endpoints are kept.
func SimplifyPolygon(pts []Point, epsilon float64) []Point {
	if len(pts) <= 3 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}
	keep := make([]bool, len(pts))
	dpSimplify(pts, 0, len(pts)-1, epsilon, keep)
	keep[0] = true
	keep[len(pts)-1] = true
	out := make([]Point, 0, len(pts))
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

// ApproxPolygonClosed simplifies a closed contour. The contour is split at
// the vertex farthest from its first point and both halves are simplified
// independently, so the result does not depend on a single chord.
func ApproxPolygonClosed(pts []Point, epsilon float64) []Point {
	n := len(pts)
	if n <= 3 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}
	far, farDist := 0, -1.0
	for i := 1; i < n; i++ {
		if d := math.Hypot(pts[i].X-pts[0].X, pts[i].Y-pts[0].Y); d > farDist {
			far, farDist = i, d
		}
	}
	first := SimplifyPolygon(pts[:far+1], epsilon)
	second := make([]Point, 0, n-far+1)
	second = append(second, pts[far:]...)
	second = append(second, pts[0])
	second = SimplifyPolygon(second, epsilon)

	out := make([]Point, 0, len(first)+len(second))
	out = append(out, first...)
	// second starts at pts[far] (already the last of first) and ends at pts[0]
	if len(second) > 2 {
		out = append(out, second[1:len(second)-1]...)
	}
	return out
}

func dpSimplify(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	index := -1
	a := pts[start]
	b := pts[end]
	for i := start + 1; i < end; i++ {
		d := perpendicularDistance(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist > eps {
		dpSimplify(pts, start, index, eps, keep)
		keep[index] = true
		dpSimplify(pts, index, end, eps, keep)
	}
}

func perpendicularDistance(p, a, b Point) float64 {
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	num := math.Abs((p.X-a.X)*vy - (p.Y-a.Y)*vx)
	return num / math.Hypot(vx, vy)
}

// PolygonArea returns the absolute shoelace area of a closed polygon.
func PolygonArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	s := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		s += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(s) / 2
}

// Perimeter returns the length of the closed polygon outline.
func Perimeter(pts []Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	s := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		s += math.Hypot(pts[j].X-pts[i].X, pts[j].Y-pts[i].Y)
	}
	return s
}

// IsConvex reports whether the closed polygon turns consistently in one
// direction. Collinear vertices are tolerated.
func IsConvex(pts []Point) bool {
	n := len(pts)
	if n < 3 {
		return false
	}
	sign := 0
	for i := range n {
		c := cross(pts[i], pts[(i+1)%n], pts[(i+2)%n])
		switch {
		case c > 0:
			if sign < 0 {
				return false
			}
			sign = 1
		case c < 0:
			if sign > 0 {
				return false
			}
			sign = -1
		}
	}
	return sign != 0
}

// OrderCorners returns four points ordered top-left, top-right,
// bottom-right, bottom-left using coordinate sums and differences.
func OrderCorners(pts []Point) [4]Point {
	var out [4]Point
	if len(pts) == 0 {
		return out
	}
	tl, br, tr, bl := pts[0], pts[0], pts[0], pts[0]
	for _, p := range pts[1:] {
		if p.X+p.Y < tl.X+tl.Y {
			tl = p
		}
		if p.X+p.Y > br.X+br.Y {
			br = p
		}
		if p.X-p.Y > tr.X-tr.Y {
			tr = p
		}
		if p.X-p.Y < bl.X-bl.Y {
			bl = p
		}
	}
	out[0], out[1], out[2], out[3] = tl, tr, br, bl
	return out
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
