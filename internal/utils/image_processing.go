package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ToNRGBA returns img as a zero-origin *image.NRGBA, copying only when needed.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}

// ResizeToMaxSide downsizes img so that its longer side is at most maxSide.
// It returns the working image and the factor that maps working coordinates
// back to the original (>= 1). Images already small enough are returned as-is.
func ResizeToMaxSide(img image.Image, maxSide int) (image.Image, float64, error) {
	if img == nil {
		return nil, 0, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	longSide := max(b.Dx(), b.Dy())
	if maxSide <= 0 || longSide <= maxSide {
		return img, 1, nil
	}
	scale := float64(maxSide) / float64(longSide)
	newW := max(1, int(math.Round(float64(b.Dx())*scale)))
	newH := max(1, int(math.Round(float64(b.Dy())*scale)))
	resized := imaging.Resize(img, newW, newH, imaging.Box)
	return resized, float64(b.Dx()) / float64(newW), nil
}

// UpscaleCubic enlarges img by factor using Catmull-Rom (cubic) interpolation.
func UpscaleCubic(img image.Image, factor float64) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0,
		int(math.Round(float64(b.Dx())*factor)),
		int(math.Round(float64(b.Dy())*factor))))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// BoostContrast raises contrast by pct percent (-100..100).
func BoostContrast(img image.Image, pct float64) image.Image {
	return imaging.AdjustContrast(img, pct)
}

// CropImageRect crops an image to the given rectangle.
func CropImageRect(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return imaging.New(0, 0, color.Transparent)
	}
	return imaging.Crop(img, rect)
}
