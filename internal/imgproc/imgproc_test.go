package imgproc

import (
	"image"
	"image/color"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantGray(w, h int, v uint8) *Gray {
	g := NewGray(w, h)
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

// filledRect returns a white plane with a solid rectangle of value v.
func filledRect(w, h int, r image.Rectangle, v uint8) *Gray {
	g := constantGray(w, h, 255)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			g.Pix[y*w+x] = v
		}
	}
	return g
}

func outlineMask(w, h int, r image.Rectangle, thickness int) *Mask {
	m := NewMask(w, h)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			inner := x >= r.Min.X+thickness && x < r.Max.X-thickness &&
				y >= r.Min.Y+thickness && y < r.Max.Y-thickness
			m.Pix[y*w+x] = !inner
		}
	}
	return m
}

func TestFromImageLuma(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{255, 255, 255, 255})
	img.Set(1, 0, color.NRGBA{255, 0, 0, 255})
	g := FromImage(img)
	require.Equal(t, 2, g.W)
	assert.Equal(t, uint8(255), g.Pix[0])
	assert.Equal(t, uint8(76), g.Pix[1])

	gi := image.NewGray(image.Rect(5, 5, 8, 7))
	gi.SetGray(6, 6, color.Gray{Y: 42})
	sub := FromImage(gi)
	assert.Equal(t, 3, sub.W)
	assert.Equal(t, uint8(42), sub.Pix[1*3+1])
}

func TestCropAndInvert(t *testing.T) {
	g := filledRect(20, 10, image.Rect(5, 2, 10, 6), 0)
	c := g.Crop(image.Rect(5, 2, 30, 6))
	assert.Equal(t, 15, c.W)
	assert.Equal(t, 4, c.H)
	assert.Equal(t, uint8(0), c.Pix[0])
	assert.Equal(t, uint8(255), c.Invert().Pix[0])
}

func TestSmoothingPreservesFlatRegions(t *testing.T) {
	g := constantGray(40, 32, 128)
	for name, out := range map[string]*Gray{
		"gaussian":  GaussianBlur(g, 5, 0),
		"bilateral": Bilateral(g, 5, 50, 50),
		"nlmeans":   NLMeans(g, 15, 3, 7),
		"clahe":     CLAHE(g, 2.0, 8),
	} {
		t.Run(name, func(t *testing.T) {
			first := out.Pix[0]
			for _, v := range out.Pix {
				assert.Equal(t, first, v)
			}
			if name != "clahe" {
				assert.Equal(t, uint8(128), first)
			}
		})
	}
}

func TestBilateralKeepsStepEdge(t *testing.T) {
	g := filledRect(40, 10, image.Rect(0, 0, 20, 10), 0)
	out := Bilateral(g, 5, 50, 50)
	assert.Equal(t, uint8(0), out.Pix[5*40+18])
	assert.Equal(t, uint8(255), out.Pix[5*40+21])
}

func TestSobelMagnitudeFindsVerticalEdge(t *testing.T) {
	g := filledRect(20, 10, image.Rect(0, 0, 10, 10), 0)
	mag := SobelMagnitude(g)
	assert.Equal(t, uint8(0), mag.Pix[5*20+2])
	assert.Equal(t, uint8(255), mag.Pix[5*20+9])
}

func TestCannyOutlinesRectangle(t *testing.T) {
	g := filledRect(200, 160, image.Rect(50, 40, 150, 120), 0)
	edges := Canny(g, 50, 150)

	found := false
	for x := 48; x <= 51; x++ {
		found = found || edges.Pix[80*200+x]
	}
	assert.True(t, found, "left side of the rectangle should be an edge")
	assert.False(t, edges.Pix[80*200+100], "interior must not be an edge")
	assert.False(t, edges.Pix[5*200+5], "background must not be an edge")
}

func TestOtsuSeparatesTwoLevels(t *testing.T) {
	g := filledRect(50, 50, image.Rect(0, 0, 25, 50), 50)
	for i := range g.Pix {
		if g.Pix[i] == 255 {
			g.Pix[i] = 200
		}
	}
	th := Otsu(g)
	assert.GreaterOrEqual(t, th, uint8(50))
	assert.Less(t, th, uint8(200))

	m := Threshold(g, th, false)
	assert.InDelta(t, 0.5, m.Fraction(), 1e-9)
	inv := Threshold(g, th, true)
	assert.InDelta(t, 0.5, inv.Fraction(), 1e-9)
}

func TestAdaptiveGaussianMarksPaper(t *testing.T) {
	g := filledRect(60, 60, image.Rect(28, 28, 32, 32), 20)
	m := AdaptiveGaussian(g, 11, 2)
	assert.True(t, m.Pix[5*60+5], "paper is above the local level")
	assert.False(t, m.Pix[30*60+30], "ink is below the local level")
}

func TestMorphology(t *testing.T) {
	t.Run("close bridges a one pixel gap", func(t *testing.T) {
		m := NewMask(20, 5)
		for x := range 20 {
			m.Pix[2*20+x] = x != 10
		}
		out := Morph(m, MorphClose, 3, 3)
		assert.True(t, out.Pix[2*20+10])
	})
	t.Run("open removes a speck", func(t *testing.T) {
		m := NewMask(20, 20)
		m.Pix[10*20+10] = true
		out := Morph(m, MorphOpen, 3, 3)
		assert.Zero(t, out.Fraction())
	})
	t.Run("gray gradient is zero on flat regions", func(t *testing.T) {
		g := filledRect(30, 30, image.Rect(10, 10, 20, 20), 0)
		grad := MorphGradient(g, 3)
		assert.Equal(t, uint8(0), grad.Pix[2*30+2])
		assert.Equal(t, uint8(0), grad.Pix[15*30+15])
		assert.Equal(t, uint8(255), grad.Pix[15*30+10])
	})
}

func TestFillHoles(t *testing.T) {
	m := outlineMask(30, 30, image.Rect(5, 5, 25, 25), 2)
	filled := FillHoles(m)
	assert.True(t, filled.Pix[15*30+15])
	assert.False(t, filled.Pix[1*30+1])
}

func TestComponents(t *testing.T) {
	m := NewMask(20, 10)
	m.Pix[1*20+1] = true
	m.Pix[2*20+2] = true // diagonal neighbour joins the first region
	m.Pix[5*20+15] = true
	_, comps := Components(m)
	require.Len(t, comps, 2)
	assert.Equal(t, 2, comps[0].Count)
	assert.Equal(t, image.Rect(1, 1, 3, 3), comps[0].Bounds)
}

func TestExternalContoursOfOutline(t *testing.T) {
	m := outlineMask(120, 100, image.Rect(10, 20, 60, 60), 3)
	contours := ExternalContours(m, 100)
	require.Len(t, contours, 1)
	c := contours[0]
	assert.Len(t, c.Points, 4)
	assert.Equal(t, image.Rect(10, 20, 60, 60), c.Bounds)
	assert.InDelta(t, 49*39, c.Area, 1e-9)
}

func TestHollowRectNCCPeaksOnFrame(t *testing.T) {
	g := constantGray(150, 120, 255)
	frame := outlineMask(150, 120, image.Rect(20, 30, 80, 70), 3)
	for i, v := range frame.Pix {
		if v {
			g.Pix[i] = 0
		}
	}
	resp, rw, rh := HollowRectNCC(NewIntegral(g), 60, 40, 3)
	require.NotNil(t, resp)
	assert.Equal(t, 91, rw)
	assert.Equal(t, 81, rh)

	peaks := Peaks(resp, rw, rh, 0.3)
	require.NotEmpty(t, peaks)
	assert.Equal(t, 20, peaks[0].X)
	assert.Equal(t, 30, peaks[0].Y)
	assert.InDelta(t, 1.0, peaks[0].Score, 1e-4)

	_, rw, _ = HollowRectNCC(NewIntegral(g), 400, 40, 3)
	assert.Zero(t, rw)
}

func TestLocalVarianceFlatIsZero(t *testing.T) {
	g := filledRect(30, 30, image.Rect(0, 0, 15, 30), 0)
	v := LocalVariance(g, 5)
	assert.InDelta(t, 0, v[10*30+3], 1e-6)
	assert.Greater(t, v[10*30+15], float32(1000))
}

func TestOtsuProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("otsu threshold separates two flat levels", prop.ForAll(
		func(lo, gap int) bool {
			hi := lo + gap
			g := filledRect(20, 20, image.Rect(0, 0, 10, 20), uint8(lo))
			for i := range g.Pix {
				if g.Pix[i] == 255 {
					g.Pix[i] = uint8(hi)
				}
			}
			th := int(Otsu(g))
			return th >= lo && th < hi
		},
		gen.IntRange(0, 120),
		gen.IntRange(10, 130),
	))

	properties.Property("gaussian blur keeps flat planes flat", prop.ForAll(
		func(v, k int) bool {
			out := GaussianBlur(constantGray(16, 12, uint8(v)), 2*k+1, 0)
			for _, p := range out.Pix {
				if p != uint8(v) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 255),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}
