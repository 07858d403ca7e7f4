package testutil

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/MeKo-Tech/artex/internal/utils"
)

// BuildPDF writes pages into a PDF at path, one image per page.
func BuildPDF(path string, pages []image.Image) error {
	dir, err := os.MkdirTemp("", "artex-pdf-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	files := make([]string, 0, len(pages))
	for i, p := range pages {
		f := filepath.Join(dir, fmt.Sprintf("page_%03d.png", i+1))
		if err := utils.SavePNG(f, p); err != nil {
			return err
		}
		files = append(files, f)
	}
	if err := api.ImportImagesFile(files, path, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return fmt.Errorf("failed to build PDF %s: %w", path, err)
	}
	return nil
}
