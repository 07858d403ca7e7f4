package detector

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/MeKo-Tech/artex/internal/imgproc"
	"github.com/MeKo-Tech/artex/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticPage draws a textured artwork on white paper.
func syntheticPage(w, h int, art image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	for y := art.Min.Y; y < art.Max.Y; y++ {
		for x := art.Min.X; x < art.Max.X; x++ {
			v := uint8(40 + (x/8+y/8)%2*30)
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v / 2, B: v, A: 255})
		}
	}
	return img
}

func bestIoU(rects []FusedRectangle, truth image.Rectangle) float64 {
	best := 0.0
	for _, r := range rects {
		best = max(best, utils.RectIoU(r.BBox.Rect(), truth))
	}
	return best
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TemplateThreshold = 2
	_, err := New(cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Ultra = append(cfg.Ultra, UltraConfig{Name: "bad", Sensitivity: 5, Mode: ModeGeneral, MinAreaDivisor: 1000})
	_, err = New(cfg)
	require.Error(t, err)
}

func TestDetectFindsArtwork(t *testing.T) {
	art := image.Rect(100, 80, 300, 230)
	page := syntheticPage(600, 450, art)

	d, err := New(DefaultConfig())
	require.NoError(t, err)
	res, err := d.Detect(page)
	require.NoError(t, err)

	require.Len(t, res.Ultra, 5)
	require.NotEmpty(t, res.Fused)
	assert.Greater(t, bestIoU(res.Fused, art), 0.9)
	for _, r := range res.Fused {
		assert.True(t, r.BBox.Within(600, 450), "bbox %+v escapes the page", r.BBox)
		assert.NotEmpty(t, r.Sources)
	}
	assert.Positive(t, res.Counts["ultra_fine"])
}

func TestDetectScalesBackFromWorkingImage(t *testing.T) {
	art := image.Rect(200, 160, 600, 460)
	page := syntheticPage(1200, 900, art)

	cfg := DefaultConfig()
	cfg.WorkMaxSide = 600
	cfg.Ultra = []UltraConfig{{Name: "balanced", Sensitivity: 50, Mode: ModeGeneral, MinAreaDivisor: 1200}}
	d, err := New(cfg)
	require.NoError(t, err)
	res, err := d.Detect(page)
	require.NoError(t, err)
	assert.Greater(t, bestIoU(res.Fused, art), 0.85)
}

func TestDetectEmptyImage(t *testing.T) {
	d, err := New(DefaultConfig())
	require.NoError(t, err)
	_, err = d.Detect(image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	var ipe *utils.ImageProcessingError
	assert.ErrorAs(t, err, &ipe)
}

func TestUltraPassReturnsQuadrilateral(t *testing.T) {
	g := imgproc.FromImage(syntheticPage(400, 300, image.Rect(50, 40, 250, 200)))
	cfg := DefaultConfig()
	cfg.Ultra = []UltraConfig{{Name: "high_contrast", Sensitivity: 60, Mode: ModeHighContrast, MinAreaDivisor: 800}}
	passes := Ultra(g, cfg)
	require.Len(t, passes, 1)
	require.NotEmpty(t, passes[0])
	r := passes[0][0]
	assert.Equal(t, "ultra_high_contrast", r.Method)
	assert.Greater(t, utils.RectIoU(r.BBox.Rect(), image.Rect(50, 40, 250, 200)), 0.9)
	assert.LessOrEqual(t, r.Corners[0].X, r.Corners[1].X)
	assert.LessOrEqual(t, r.Corners[1].Y, r.Corners[2].Y)
}

func TestTemplateMatchesHollowFrame(t *testing.T) {
	g := imgproc.NewGray(500, 400)
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	frame := image.Rect(100, 50, 260, 170) // 160x120
	for y := frame.Min.Y; y < frame.Max.Y; y++ {
		for x := frame.Min.X; x < frame.Max.X; x++ {
			if x < frame.Min.X+3 || x >= frame.Max.X-3 || y < frame.Min.Y+3 || y >= frame.Max.Y-3 {
				g.Pix[y*g.W+x] = 0
			}
		}
	}
	rects := Template(g, DefaultConfig())
	require.NotEmpty(t, rects)
	assert.LessOrEqual(t, len(rects), 10)
	assert.Equal(t, "template_160x120", rects[0].Method)
	assert.Equal(t, BBoxFromRect(frame), rects[0].BBox)
}
