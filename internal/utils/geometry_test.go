package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBoxOrdersCoordinates(t *testing.T) {
	b := NewBox(10, 20, 2, 4)
	assert.InDelta(t, 2.0, b.MinX, 1e-9)
	assert.InDelta(t, 4.0, b.MinY, 1e-9)
	assert.InDelta(t, 8.0, b.Width(), 1e-9)
	assert.InDelta(t, 16.0, b.Height(), 1e-9)
	assert.InDelta(t, 128.0, b.Area(), 1e-9)
}

func TestBoxToRectClamps(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 50)
	r := NewBox(-5.5, 10.2, 120, 49.1).ToRect(bounds)
	assert.Equal(t, image.Rect(0, 10, 100, 50), r)
}

func TestRectIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b image.Rectangle
		want float64
	}{
		{"identical", image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 10), 1},
		{"disjoint", image.Rect(0, 0, 10, 10), image.Rect(20, 20, 30, 30), 0},
		{"half", image.Rect(0, 0, 10, 10), image.Rect(5, 0, 15, 10), 50.0 / 150.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RectIoU(tt.a, tt.b), 1e-9)
		})
	}
}

func TestRectOverlapMinNested(t *testing.T) {
	outer := image.Rect(0, 0, 100, 100)
	inner := image.Rect(10, 10, 30, 30)
	assert.InDelta(t, 1.0, RectOverlapMin(outer, inner), 1e-9)
	assert.Less(t, RectIoU(outer, inner), 0.1)
}

func TestScaleRectRoundsOutward(t *testing.T) {
	r := ScaleRect(image.Rect(1, 1, 3, 3), 1.5)
	assert.Equal(t, image.Rect(1, 1, 5, 5), r)
	assert.Equal(t, image.Rect(1, 2, 3, 4), ScaleRect(image.Rect(1, 2, 3, 4), 1))
}

func TestPadRect(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 200)
	r := PadRect(image.Rect(50, 50, 150, 150), 0.01, bounds)
	assert.Equal(t, image.Rect(49, 49, 151, 151), r)
	assert.Equal(t, bounds, PadRect(bounds, 0.1, bounds))
}

func TestResizeToMaxSide(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 400, 200))
	out, scale, err := ResizeToMaxSide(img, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 50, out.Bounds().Dy())
	assert.InDelta(t, 4.0, scale, 1e-9)

	same, scale, err := ResizeToMaxSide(img, 1000)
	require.NoError(t, err)
	assert.Equal(t, img, same)
	assert.InDelta(t, 1.0, scale, 1e-9)

	_, _, err = ResizeToMaxSide(nil, 10)
	require.Error(t, err)
}

func TestThumbnailLongestSide(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 800, 400))
	th := Thumbnail(img, 200)
	assert.Equal(t, 200, th.Bounds().Dx())
	assert.Equal(t, 100, th.Bounds().Dy())

	small := image.NewNRGBA(image.Rect(0, 0, 50, 20))
	assert.Equal(t, 50, Thumbnail(small, 200).Bounds().Dx())
}

func TestUpscaleCubic(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 5))
	img.SetGray(2, 2, color.Gray{Y: 255})
	up := UpscaleCubic(img, 3)
	assert.Equal(t, image.Rect(0, 0, 30, 15), up.Bounds())
	assert.Equal(t, img, UpscaleCubic(img, 1))
}

func TestSaveAndLoadPNG(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 12, 7))
	path := dir + "/nested/crop.png"
	require.NoError(t, SavePNG(path, img))
	loaded, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), loaded.Bounds())

	_, err = LoadImage(dir + "/file.gif")
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "load", ipe.Operation)
}
