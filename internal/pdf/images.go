package pdf

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/tiff"
)

// loadImageFile loads an image from a file path.
func loadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // files written by pdfcpu into our temp dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	return img, err
}

// loadImages decodes every image file in dir in name order. Files that are
// not decodable images are skipped.
func loadImages(dir string) ([]image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []image.Image
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		img, err := loadImageFile(filepath.Join(dir, e.Name()))
		if err != nil || img == nil {
			continue
		}
		out = append(out, img)
	}
	return out, nil
}
