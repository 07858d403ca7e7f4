package ocr

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/artex/internal/imgproc"
	"github.com/MeKo-Tech/artex/internal/utils"
)

// Variant names a binarization recipe applied before recognition.
type Variant string

const (
	VariantOtsu      Variant = "otsu"
	VariantOtsuInv   Variant = "otsu_inv"
	VariantAdaptive  Variant = "adaptive"
	VariantCLAHEOtsu Variant = "clahe_otsu"
	VariantBlurOtsu  Variant = "blur_otsu"
)

// ParseVariant validates a variant name.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case VariantOtsu, VariantOtsuInv, VariantAdaptive, VariantCLAHEOtsu, VariantBlurOtsu:
		return v, nil
	}
	return "", fmt.Errorf("unknown preprocessing variant %q", s)
}

// Preprocess upscales img by scale (cubic) and binarizes it so that text
// is black on white.
func Preprocess(img image.Image, v Variant, scale float64) *image.Gray {
	g := imgproc.FromImage(utils.UpscaleCubic(img, scale))
	defer g.Release()

	var m *imgproc.Mask
	switch v {
	case VariantOtsuInv:
		m = imgproc.Threshold(g, imgproc.Otsu(g), true)
	case VariantAdaptive:
		m = imgproc.AdaptiveGaussian(g, 11, 2)
	case VariantCLAHEOtsu:
		c := imgproc.CLAHE(g, 2.0, 8)
		m = imgproc.Threshold(c, imgproc.Otsu(c), false)
		c.Release()
	case VariantBlurOtsu:
		b := imgproc.GaussianBlur(g, 3, 0)
		m = imgproc.Threshold(b, imgproc.Otsu(b), false)
		b.Release()
	default:
		m = imgproc.Threshold(g, imgproc.Otsu(g), false)
	}
	defer m.Release()
	out := imgproc.Binarize(m)
	defer out.Release()
	return out.ToImage()
}
