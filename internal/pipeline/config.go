package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/artex/internal/caption"
	"github.com/MeKo-Tech/artex/internal/collection"
	"github.com/MeKo-Tech/artex/internal/detector"
	"github.com/MeKo-Tech/artex/internal/ocr"
	"github.com/MeKo-Tech/artex/internal/quality"
	"github.com/MeKo-Tech/artex/internal/toc"
)

// OutputConfig controls what is written to the session directory.
type OutputConfig struct {
	Root          string
	JPEGQuality   int
	ThumbnailSize int
	WriteOCRDebug bool
}

// RasterConfig controls page rendering.
type RasterConfig struct {
	PdftoppmPath  string
	MinDPI        int
	RetryAttempts int
}

// OCRConfig selects and bounds the OCR engine.
type OCRConfig struct {
	Engine        string
	TesseractPath string
	Language      string
	SoftTimeout   time.Duration
	HardTimeout   time.Duration
	// PageBudget bounds number localization per page; zero is unlimited.
	PageBudget time.Duration
}

// Config holds the settings of every stage of a run.
type Config struct {
	Output      OutputConfig
	Raster      RasterConfig
	Detector    detector.Config
	MinRectSide int
	Quality     quality.Config
	OCR         OCRConfig
	TOC         toc.Config
	Caption     caption.Config
	LargeGap    int

	Collection     string
	CollectionFile string
	Artist         string
}

// DefaultConfig returns the defaults of every stage.
func DefaultConfig() Config {
	return Config{
		Output: OutputConfig{
			Root:          ".",
			JPEGQuality:   85,
			ThumbnailSize: 200,
		},
		Raster: RasterConfig{
			PdftoppmPath:  "pdftoppm",
			MinDPI:        300,
			RetryAttempts: 1,
		},
		Detector:    detector.DefaultConfig(),
		MinRectSide: 20,
		Quality:     quality.DefaultConfig(),
		OCR: OCRConfig{
			Engine:      ocr.KindTesseractCLI,
			Language:    "fra+eng",
			SoftTimeout: 10 * time.Second,
			HardTimeout: 15 * time.Second,
		},
		TOC:        toc.DefaultConfig(),
		Caption:    caption.DefaultConfig(),
		LargeGap:   3,
		Collection: collection.Auto,
	}
}

// Validate checks the settings that the component constructors do not.
func (c Config) Validate() error {
	if c.Output.Root == "" {
		return errors.New("output root is empty")
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be within [1,100], got %d", c.Output.JPEGQuality)
	}
	if c.MinRectSide <= 0 {
		return fmt.Errorf("min rectangle side must be positive, got %d", c.MinRectSide)
	}
	if c.Raster.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts must be >= 0, got %d", c.Raster.RetryAttempts)
	}
	if c.OCR.SoftTimeout <= 0 || c.OCR.HardTimeout < c.OCR.SoftTimeout {
		return fmt.Errorf("OCR timeouts must satisfy 0 < soft <= hard, got %v/%v", c.OCR.SoftTimeout, c.OCR.HardTimeout)
	}
	if c.OCR.PageBudget < 0 {
		return errors.New("OCR page budget must be >= 0")
	}
	if c.LargeGap < 1 {
		return fmt.Errorf("large gap threshold must be positive, got %d", c.LargeGap)
	}
	if err := c.Quality.Validate(); err != nil {
		return err
	}
	if err := c.Caption.Validate(); err != nil {
		return err
	}
	return c.Detector.Validate()
}
