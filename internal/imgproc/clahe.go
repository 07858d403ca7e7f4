package imgproc

// CLAHE applies contrast limited adaptive histogram equalization over a
// grid x grid tiling. clipLimit is relative to the uniform bin height.
func CLAHE(g *Gray, clipLimit float64, grid int) *Gray {
	if grid < 1 {
		grid = 8
	}
	if g.W < grid || g.H < grid {
		return g.Clone()
	}
	tw := (g.W + grid - 1) / grid
	th := (g.H + grid - 1) / grid

	luts := make([][256]uint8, grid*grid)
	for ty := range grid {
		for tx := range grid {
			x0, y0 := tx*tw, ty*th
			x1, y1 := min(x0+tw, g.W), min(y0+th, g.H)
			luts[ty*grid+tx] = tileLUT(g, x0, y0, x1, y1, clipLimit)
		}
	}

	out := NewGray(g.W, g.H)
	for y := range g.H {
		fy := (float64(y)+0.5)/float64(th) - 0.5
		ty0 := clamp(int(floor(fy)), 0, grid-1)
		ty1 := clamp(ty0+1, 0, grid-1)
		wy := fy - floor(fy)
		if fy < 0 {
			wy = 0
		}
		for x := range g.W {
			fx := (float64(x)+0.5)/float64(tw) - 0.5
			tx0 := clamp(int(floor(fx)), 0, grid-1)
			tx1 := clamp(tx0+1, 0, grid-1)
			wx := fx - floor(fx)
			if fx < 0 {
				wx = 0
			}
			v := g.Pix[y*g.W+x]
			a := float64(luts[ty0*grid+tx0][v])
			b := float64(luts[ty0*grid+tx1][v])
			c := float64(luts[ty1*grid+tx0][v])
			d := float64(luts[ty1*grid+tx1][v])
			top := a*(1-wx) + b*wx
			bot := c*(1-wx) + d*wx
			out.Pix[y*g.W+x] = clampByte(top*(1-wy) + bot*wy)
		}
	}
	return out
}

func tileLUT(g *Gray, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var hist [256]int
	for y := y0; y < y1; y++ {
		for _, v := range g.Pix[y*g.W+x0 : y*g.W+x1] {
			hist[v]++
		}
	}
	area := (x1 - x0) * (y1 - y0)
	var lut [256]uint8
	if area == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}
	if clipLimit > 0 {
		limit := max(int(clipLimit*float64(area)/256), 1)
		excess := 0
		for i := range hist {
			if hist[i] > limit {
				excess += hist[i] - limit
				hist[i] = limit
			}
		}
		bonus := excess / 256
		rest := excess % 256
		for i := range hist {
			hist[i] += bonus
		}
		if rest > 0 {
			step := max(256/rest, 1)
			for i := 0; i < 256 && rest > 0; i += step {
				hist[i]++
				rest--
			}
		}
	}
	scale := 255.0 / float64(area)
	sum := 0
	for i := range hist {
		sum += hist[i]
		lut[i] = clampByte(float64(sum) * scale)
	}
	return lut
}

func floor(v float64) float64 {
	i := float64(int(v))
	if v < i {
		return i - 1
	}
	return i
}
