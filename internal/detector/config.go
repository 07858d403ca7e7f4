// Package detector finds candidate artwork rectangles on a rasterized
// catalog page with three classical strategies (Ultra, Template, Color),
// fuses their outputs and applies collection pruning.
package detector

import (
	"errors"
	"fmt"
)

// Mode selects the denoising and edge parameters of an Ultra configuration.
type Mode string

const (
	ModeGeneral      Mode = "general"
	ModeDocuments    Mode = "documents"
	ModeHighContrast Mode = "high_contrast"
)

// UltraConfig is one pass of the Ultra detector.
type UltraConfig struct {
	Name           string
	Sensitivity    int
	Mode           Mode
	MinAreaDivisor int
}

// DefaultUltraConfigs returns the five passes in declaration order.
func DefaultUltraConfigs() []UltraConfig {
	return []UltraConfig{
		{Name: "fine", Sensitivity: 20, Mode: ModeGeneral, MinAreaDivisor: 2000},
		{Name: "documents", Sensitivity: 40, Mode: ModeDocuments, MinAreaDivisor: 1000},
		{Name: "high_contrast", Sensitivity: 60, Mode: ModeHighContrast, MinAreaDivisor: 800},
		{Name: "balanced", Sensitivity: 50, Mode: ModeGeneral, MinAreaDivisor: 1200},
		{Name: "coarse", Sensitivity: 95, Mode: ModeGeneral, MinAreaDivisor: 400},
	}
}

// modeParams holds the per-mode Canny thresholds and CLAHE clip limit.
type modeParams struct {
	cannyLow, cannyHigh float64
	clipLimit           float64
}

func paramsFor(m Mode) modeParams {
	switch m {
	case ModeDocuments:
		return modeParams{cannyLow: 30, cannyHigh: 90, clipLimit: 3.0}
	case ModeHighContrast:
		return modeParams{cannyLow: 50, cannyHigh: 150, clipLimit: 4.0}
	default:
		return modeParams{cannyLow: 40, cannyHigh: 120, clipLimit: 2.0}
	}
}

// Config holds detector settings.
type Config struct {
	// WorkMaxSide bounds the long side of the image the detectors run on.
	// Results are scaled back to page pixels. Zero disables downscaling.
	WorkMaxSide        int
	TemplateMaxSide    int
	UltraMaxPerConfig  int
	TemplateThreshold  float64
	TemplateMaxMatches int
	ColorTopK          int
	Ultra              []UltraConfig
}

// DefaultConfig returns the default detector configuration.
func DefaultConfig() Config {
	return Config{
		WorkMaxSide:        1600,
		TemplateMaxSide:    600,
		UltraMaxPerConfig:  50,
		TemplateThreshold:  0.3,
		TemplateMaxMatches: 10,
		ColorTopK:          20,
		Ultra:              DefaultUltraConfigs(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.WorkMaxSide < 0 {
		return errors.New("work max side must be non-negative")
	}
	if c.TemplateMaxSide <= 0 {
		return fmt.Errorf("template max side must be positive, got %d", c.TemplateMaxSide)
	}
	if c.TemplateThreshold < 0 || c.TemplateThreshold > 1 {
		return fmt.Errorf("template threshold must be within [0,1], got %f", c.TemplateThreshold)
	}
	if c.UltraMaxPerConfig <= 0 || c.TemplateMaxMatches <= 0 || c.ColorTopK <= 0 {
		return errors.New("detector limits must be positive")
	}
	for _, u := range c.Ultra {
		if u.Sensitivity < 20 || u.Sensitivity > 95 {
			return fmt.Errorf("ultra config %q: sensitivity %d outside [20,95]", u.Name, u.Sensitivity)
		}
		if u.MinAreaDivisor < 400 || u.MinAreaDivisor > 2000 {
			return fmt.Errorf("ultra config %q: min area divisor %d outside [400,2000]", u.Name, u.MinAreaDivisor)
		}
	}
	return nil
}
