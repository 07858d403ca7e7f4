package testutil

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Artwork is one reproduction drawn on a synthetic page.
type Artwork struct {
	Box image.Rectangle
	// Number is printed centred under the box.
	Number string
	// Caption lines are printed under the number.
	Caption []string
	// Blank draws a white interior inside the frame.
	Blank bool
}

// Line is free text placed at a baseline position.
type Line struct {
	X, Y int
	Text string
}

// Page describes a synthetic catalog page.
type Page struct {
	W, H     int
	Artworks []Artwork
	Lines    []Line
}

const (
	frameWidth = 3
	lineHeight = 16
)

// DrawPage renders p on white paper. Artworks get a dark frame and a
// deterministic high-contrast texture so that edge and variance detectors
// see them.
func DrawPage(p Page) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.W, p.H))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	for _, a := range p.Artworks {
		drawArtwork(img, a)
		y := a.Box.Max.Y + lineHeight + 4
		if a.Number != "" {
			w := font.MeasureString(basicfont.Face7x13, a.Number).Ceil()
			DrawText(img, a.Box.Min.X+(a.Box.Dx()-w)/2, y, a.Number)
			y += lineHeight
		}
		for _, c := range a.Caption {
			DrawText(img, a.Box.Min.X, y, c)
			y += lineHeight
		}
	}
	for _, l := range p.Lines {
		DrawText(img, l.X, l.Y, l.Text)
	}
	return img
}

func drawArtwork(img *image.RGBA, a Artwork) {
	b := a.Box.Intersect(img.Bounds())
	dark := color.RGBA{30, 30, 30, 255}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			inFrame := x-b.Min.X < frameWidth || b.Max.X-1-x < frameWidth ||
				y-b.Min.Y < frameWidth || b.Max.Y-1-y < frameWidth
			switch {
			case inFrame:
				img.SetRGBA(x, y, dark)
			case a.Blank:
				img.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
			default:
				img.SetRGBA(x, y, texture(x-b.Min.X, y-b.Min.Y))
			}
		}
	}
}

// texture is a saturated blocky pattern whose luma varies enough for the
// quality checks to accept it.
func texture(x, y int) color.RGBA {
	v := uint8(40 + (x*7+y*13+(x/9)*(y/7)*31)%180)
	return color.RGBA{v, v / 2, 255 - v, 255}
}

// DrawText writes text with the 7x13 bitmap face; (x, y) is the baseline start.
func DrawText(img draw.Image, x, y int, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
