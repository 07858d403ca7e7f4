package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/artex/internal/caption"
	"github.com/MeKo-Tech/artex/internal/collection"
	"github.com/MeKo-Tech/artex/internal/detector"
	"github.com/MeKo-Tech/artex/internal/ocr"
	"github.com/MeKo-Tech/artex/internal/pipeline"
	"github.com/MeKo-Tech/artex/internal/quality"
	"github.com/MeKo-Tech/artex/internal/toc"
)

// Config represents the complete configuration of the artex extractor. It
// is loaded from configuration files, environment variables and command-line
// flags, in increasing order of precedence.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Output     OutputConfig     `mapstructure:"output" yaml:"output" json:"output"`
	Raster     RasterConfig     `mapstructure:"raster" yaml:"raster" json:"raster"`
	Detector   DetectorConfig   `mapstructure:"detector" yaml:"detector" json:"detector"`
	Quality    quality.Config   `mapstructure:"quality" yaml:"quality" json:"quality"`
	OCR        OCRConfig        `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	TOC        toc.Config       `mapstructure:"toc" yaml:"toc" json:"toc"`
	Caption    caption.Config   `mapstructure:"caption" yaml:"caption" json:"caption"`
	Coherence  CoherenceConfig  `mapstructure:"coherence" yaml:"coherence" json:"coherence"`
	Collection CollectionConfig `mapstructure:"collection" yaml:"collection" json:"collection"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// OutputConfig contains session directory settings.
type OutputConfig struct {
	Root          string `mapstructure:"root" yaml:"root" json:"root"`
	JPEGQuality   int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
	ThumbnailSize int    `mapstructure:"thumbnail_size" yaml:"thumbnail_size" json:"thumbnail_size"`
	WriteOCRDebug bool   `mapstructure:"write_ocr_debug" yaml:"write_ocr_debug" json:"write_ocr_debug"`
}

// RasterConfig contains page rendering settings.
type RasterConfig struct {
	PdftoppmPath  string `mapstructure:"pdftoppm_path" yaml:"pdftoppm_path" json:"pdftoppm_path"`
	MinDPI        int    `mapstructure:"min_dpi" yaml:"min_dpi" json:"min_dpi"`
	RetryAttempts int    `mapstructure:"retry_attempts" yaml:"retry_attempts" json:"retry_attempts"`
}

// DetectorConfig contains rectangle detection settings. The per-pass
// parameters of the edge detector are not configurable.
type DetectorConfig struct {
	WorkMaxSide        int     `mapstructure:"work_max_side" yaml:"work_max_side" json:"work_max_side"`
	TemplateMaxSide    int     `mapstructure:"template_max_side" yaml:"template_max_side" json:"template_max_side"`
	MinRectSide        int     `mapstructure:"min_rect_side" yaml:"min_rect_side" json:"min_rect_side"`
	UltraMaxPerConfig  int     `mapstructure:"ultra_max_per_config" yaml:"ultra_max_per_config" json:"ultra_max_per_config"`
	TemplateThreshold  float64 `mapstructure:"template_threshold" yaml:"template_threshold" json:"template_threshold"`
	TemplateMaxMatches int     `mapstructure:"template_max_matches" yaml:"template_max_matches" json:"template_max_matches"`
	ColorTopK          int     `mapstructure:"color_top_k" yaml:"color_top_k" json:"color_top_k"`
}

// OCRConfig contains OCR engine settings.
type OCRConfig struct {
	Engine        string        `mapstructure:"engine" yaml:"engine" json:"engine"`
	TesseractPath string        `mapstructure:"tesseract_path" yaml:"tesseract_path" json:"tesseract_path"`
	Language      string        `mapstructure:"language" yaml:"language" json:"language"`
	SoftTimeout   time.Duration `mapstructure:"soft_timeout" yaml:"soft_timeout" json:"soft_timeout"`
	HardTimeout   time.Duration `mapstructure:"hard_timeout" yaml:"hard_timeout" json:"hard_timeout"`
	PageBudget    time.Duration `mapstructure:"page_budget" yaml:"page_budget" json:"page_budget"`
}

// CoherenceConfig contains number sequence analysis settings.
type CoherenceConfig struct {
	LargeGapThreshold int `mapstructure:"large_gap_threshold" yaml:"large_gap_threshold" json:"large_gap_threshold"`
}

// CollectionConfig selects the collection profile.
type CollectionConfig struct {
	Name         string `mapstructure:"name" yaml:"name" json:"name"`
	ProfilesFile string `mapstructure:"profiles_file" yaml:"profiles_file" json:"profiles_file"`
	Artist       string `mapstructure:"artist" yaml:"artist" json:"artist"`
}

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	p := pipeline.DefaultConfig()
	return Config{
		LogLevel: "info",
		Output: OutputConfig{
			Root:          p.Output.Root,
			JPEGQuality:   p.Output.JPEGQuality,
			ThumbnailSize: p.Output.ThumbnailSize,
		},
		Raster: RasterConfig{
			PdftoppmPath:  p.Raster.PdftoppmPath,
			MinDPI:        p.Raster.MinDPI,
			RetryAttempts: p.Raster.RetryAttempts,
		},
		Detector: defaultDetectorConfig(p.MinRectSide),
		Quality:  p.Quality,
		OCR: OCRConfig{
			Engine:        p.OCR.Engine,
			TesseractPath: p.OCR.TesseractPath,
			Language:      p.OCR.Language,
			SoftTimeout:   p.OCR.SoftTimeout,
			HardTimeout:   p.OCR.HardTimeout,
			PageBudget:    p.OCR.PageBudget,
		},
		TOC:     p.TOC,
		Caption: p.Caption,
		Coherence: CoherenceConfig{
			LargeGapThreshold: p.LargeGap,
		},
		Collection: CollectionConfig{
			Name: collection.Auto,
		},
	}
}

func defaultDetectorConfig(minRectSide int) DetectorConfig {
	d := detector.DefaultConfig()
	return DetectorConfig{
		WorkMaxSide:        d.WorkMaxSide,
		TemplateMaxSide:    d.TemplateMaxSide,
		MinRectSide:        minRectSide,
		UltraMaxPerConfig:  d.UltraMaxPerConfig,
		TemplateThreshold:  d.TemplateThreshold,
		TemplateMaxMatches: d.TemplateMaxMatches,
		ColorTopK:          d.ColorTopK,
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validEngines := []string{ocr.KindTesseractCLI, ocr.KindGosseract, ocr.KindNone}
	if !contains(validEngines, c.OCR.Engine) {
		return fmt.Errorf("invalid OCR engine: %s (must be one of: %s)", c.OCR.Engine, strings.Join(validEngines, ", "))
	}

	if c.Output.Root == "" {
		return fmt.Errorf("invalid output root: must not be empty")
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("invalid output jpeg quality: %d (must be between 1 and 100)", c.Output.JPEGQuality)
	}
	if c.Output.ThumbnailSize <= 0 {
		return fmt.Errorf("invalid thumbnail size: %d (must be positive)", c.Output.ThumbnailSize)
	}
	if c.Raster.MinDPI <= 0 {
		return fmt.Errorf("invalid raster min dpi: %d (must be positive)", c.Raster.MinDPI)
	}
	if c.Detector.MinRectSide <= 0 {
		return fmt.Errorf("invalid detector min rect side: %d (must be positive)", c.Detector.MinRectSide)
	}
	if c.Coherence.LargeGapThreshold <= 0 {
		return fmt.Errorf("invalid coherence large gap threshold: %d (must be positive)", c.Coherence.LargeGapThreshold)
	}

	if err := validateThreshold(c.Detector.TemplateThreshold, "detector.template_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Caption.BandRatio, "caption.band_ratio"); err != nil {
		return err
	}
	if err := validateThreshold(c.Quality.BlankFraction, "quality.blank_fraction"); err != nil {
		return err
	}

	if err := c.Quality.Validate(); err != nil {
		return fmt.Errorf("invalid quality settings: %w", err)
	}
	if err := c.Caption.Validate(); err != nil {
		return fmt.Errorf("invalid caption settings: %w", err)
	}
	return nil
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		Output: pipeline.OutputConfig{
			Root:          c.Output.Root,
			JPEGQuality:   c.Output.JPEGQuality,
			ThumbnailSize: c.Output.ThumbnailSize,
			WriteOCRDebug: c.Output.WriteOCRDebug,
		},
		Raster: pipeline.RasterConfig{
			PdftoppmPath:  c.Raster.PdftoppmPath,
			MinDPI:        c.Raster.MinDPI,
			RetryAttempts: c.Raster.RetryAttempts,
		},
		Detector:    c.toDetectorConfig(),
		MinRectSide: c.Detector.MinRectSide,
		Quality:     c.Quality,
		OCR: pipeline.OCRConfig{
			Engine:        c.OCR.Engine,
			TesseractPath: c.OCR.TesseractPath,
			Language:      c.OCR.Language,
			SoftTimeout:   c.OCR.SoftTimeout,
			HardTimeout:   c.OCR.HardTimeout,
			PageBudget:    c.OCR.PageBudget,
		},
		TOC:            c.TOC,
		Caption:        c.toCaptionConfig(),
		LargeGap:       c.Coherence.LargeGapThreshold,
		Collection:     c.Collection.Name,
		CollectionFile: c.Collection.ProfilesFile,
		Artist:         c.Collection.Artist,
	}
}

// toDetectorConfig converts to detector.Config.
func (c *Config) toDetectorConfig() detector.Config {
	cfg := detector.DefaultConfig()
	cfg.WorkMaxSide = c.Detector.WorkMaxSide
	cfg.TemplateMaxSide = c.Detector.TemplateMaxSide
	cfg.UltraMaxPerConfig = c.Detector.UltraMaxPerConfig
	cfg.TemplateThreshold = c.Detector.TemplateThreshold
	cfg.TemplateMaxMatches = c.Detector.TemplateMaxMatches
	cfg.ColorTopK = c.Detector.ColorTopK
	return cfg
}

// toCaptionConfig restores the fixed preprocessing settings that are not
// part of the file format, and passes the OCR language through.
func (c *Config) toCaptionConfig() caption.Config {
	cfg := caption.DefaultConfig()
	cfg.MinBandVertical = c.Caption.MinBandVertical
	cfg.MinBandHorizontal = c.Caption.MinBandHorizontal
	cfg.BandRatio = c.Caption.BandRatio
	if c.Caption.StopScore > 0 {
		cfg.StopScore = c.Caption.StopScore
	}
	cfg.Language = c.OCR.Language
	return cfg
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
