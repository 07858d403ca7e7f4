package config

import (
	"testing"
	"time"

	"github.com/MeKo-Tech/artex/internal/collection"
	"github.com/MeKo-Tech/artex/internal/ocr"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != "info" {
		t.Errorf("Expected log level 'info', got %s", cfg.LogLevel)
	}
	if cfg.OCR.Engine != ocr.KindTesseractCLI {
		t.Errorf("Expected OCR engine %s, got %s", ocr.KindTesseractCLI, cfg.OCR.Engine)
	}
	if cfg.OCR.Language != "fra+eng" {
		t.Errorf("Expected OCR language fra+eng, got %s", cfg.OCR.Language)
	}
	if cfg.OCR.SoftTimeout != 10*time.Second || cfg.OCR.HardTimeout != 15*time.Second {
		t.Errorf("Unexpected OCR timeouts %v/%v", cfg.OCR.SoftTimeout, cfg.OCR.HardTimeout)
	}
	if cfg.Detector.MinRectSide != 20 {
		t.Errorf("Expected min rect side 20, got %d", cfg.Detector.MinRectSide)
	}
	if cfg.Raster.MinDPI != 300 {
		t.Errorf("Expected min dpi 300, got %d", cfg.Raster.MinDPI)
	}
	if cfg.Coherence.LargeGapThreshold != 3 {
		t.Errorf("Expected large gap threshold 3, got %d", cfg.Coherence.LargeGapThreshold)
	}
	if cfg.Collection.Name != collection.Auto {
		t.Errorf("Expected collection %s, got %s", collection.Auto, cfg.Collection.Name)
	}
	if cfg.TOC.LastN != 15 {
		t.Errorf("Expected toc last_n 15, got %d", cfg.TOC.LastN)
	}
	if cfg.Quality.DoubtfulBelow != 0.7 {
		t.Errorf("Expected doubtful threshold 0.7, got %v", cfg.Quality.DoubtfulBelow)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"debug log level", func(c *Config) { c.LogLevel = "debug" }, false},
		{"invalid log level", func(c *Config) { c.LogLevel = "trace" }, true},
		{"gosseract engine", func(c *Config) { c.OCR.Engine = ocr.KindGosseract }, false},
		{"no OCR", func(c *Config) { c.OCR.Engine = ocr.KindNone }, false},
		{"unknown engine", func(c *Config) { c.OCR.Engine = "abbyy" }, true},
		{"empty root", func(c *Config) { c.Output.Root = "" }, true},
		{"jpeg quality zero", func(c *Config) { c.Output.JPEGQuality = 0 }, true},
		{"jpeg quality too high", func(c *Config) { c.Output.JPEGQuality = 101 }, true},
		{"zero thumbnail", func(c *Config) { c.Output.ThumbnailSize = 0 }, true},
		{"zero dpi", func(c *Config) { c.Raster.MinDPI = 0 }, true},
		{"zero min side", func(c *Config) { c.Detector.MinRectSide = 0 }, true},
		{"zero gap", func(c *Config) { c.Coherence.LargeGapThreshold = 0 }, true},
		{"template threshold above one", func(c *Config) { c.Detector.TemplateThreshold = 1.5 }, true},
		{"negative band ratio", func(c *Config) { c.Caption.BandRatio = -0.1 }, true},
		{"blank fraction above one", func(c *Config) { c.Quality.BlankFraction = 2 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Root = "/data/out"
	cfg.Output.WriteOCRDebug = true
	cfg.Detector.MinRectSide = 40
	cfg.Detector.ColorTopK = 5
	cfg.OCR.Language = "fra"
	cfg.OCR.PageBudget = 30 * time.Second
	cfg.Caption.BandRatio = 0.1
	cfg.Coherence.LargeGapThreshold = 5
	cfg.Collection = CollectionConfig{Name: collection.DubuffetLike, ProfilesFile: "profiles.yaml", Artist: "Jean Dubuffet"}

	p := cfg.ToPipelineConfig()
	if p.Output.Root != "/data/out" || !p.Output.WriteOCRDebug {
		t.Errorf("Output not converted: %+v", p.Output)
	}
	if p.MinRectSide != 40 {
		t.Errorf("Expected min rect side 40, got %d", p.MinRectSide)
	}
	if p.Detector.ColorTopK != 5 {
		t.Errorf("Expected color top k 5, got %d", p.Detector.ColorTopK)
	}
	if len(p.Detector.Ultra) == 0 {
		t.Error("Detector passes should keep their defaults")
	}
	if p.OCR.PageBudget != 30*time.Second {
		t.Errorf("Expected page budget 30s, got %v", p.OCR.PageBudget)
	}
	if p.Caption.BandRatio != 0.1 {
		t.Errorf("Expected band ratio 0.1, got %v", p.Caption.BandRatio)
	}
	if len(p.Caption.PSMs) == 0 {
		t.Error("Caption PSMs should keep their defaults")
	}
	if p.Caption.Language != "fra" {
		t.Errorf("Expected caption language fra, got %s", p.Caption.Language)
	}
	if p.LargeGap != 5 {
		t.Errorf("Expected large gap 5, got %d", p.LargeGap)
	}
	if p.Collection != collection.DubuffetLike || p.CollectionFile != "profiles.yaml" || p.Artist != "Jean Dubuffet" {
		t.Errorf("Collection not converted: %s %s %s", p.Collection, p.CollectionFile, p.Artist)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Converted config should be valid: %v", err)
	}
}

func TestContains(t *testing.T) {
	if !contains([]string{"a", "b"}, "b") {
		t.Error("contains should find b")
	}
	if contains([]string{"a", "b"}, "c") {
		t.Error("contains should not find c")
	}
	if contains(nil, "a") {
		t.Error("contains on nil slice should be false")
	}
}

func TestValidateThreshold(t *testing.T) {
	tests := []struct {
		value   float64
		wantErr bool
	}{
		{0, false},
		{0.5, false},
		{1, false},
		{-0.01, true},
		{1.01, true},
	}
	for _, tt := range tests {
		err := validateThreshold(tt.value, "x")
		if (err != nil) != tt.wantErr {
			t.Errorf("validateThreshold(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}
