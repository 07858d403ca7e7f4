package caption

import (
	"errors"

	"github.com/MeKo-Tech/artex/internal/ocr"
)

// Config controls the band geometry and recognition.
type Config struct {
	MinBandVertical   int     `mapstructure:"min_band_vertical" yaml:"min_band_vertical" json:"min_band_vertical"`
	MinBandHorizontal int     `mapstructure:"min_band_horizontal" yaml:"min_band_horizontal" json:"min_band_horizontal"`
	BandRatio         float64 `mapstructure:"band_ratio" yaml:"band_ratio" json:"band_ratio"`
	// StopScore ends the band search once an item reaches it.
	StopScore float64 `mapstructure:"stop_score" yaml:"stop_score" json:"stop_score"`

	PSMs          []ocr.PageSegMode `mapstructure:"-" yaml:"-" json:"-"`
	Contrast      float64           `mapstructure:"-" yaml:"-" json:"-"`
	AdaptiveBlock int               `mapstructure:"-" yaml:"-" json:"-"`
	AdaptiveC     float64           `mapstructure:"-" yaml:"-" json:"-"`
	MinShortSide  int               `mapstructure:"-" yaml:"-" json:"-"`
	Language      string            `mapstructure:"-" yaml:"-" json:"-"`
}

// DefaultConfig returns 8 % bands of at least 180 px (vertical) and 200 px
// (horizontal), PSM 6, 4 then 11, adaptive threshold 31/9.
func DefaultConfig() Config {
	return Config{
		MinBandVertical:   180,
		MinBandHorizontal: 200,
		BandRatio:         0.08,
		StopScore:         90,
		PSMs:              []ocr.PageSegMode{ocr.PSMSingleBlock, ocr.PSMSingleColumn, ocr.PSMSparseText},
		Contrast:          40,
		AdaptiveBlock:     31,
		AdaptiveC:         9,
		MinShortSide:      500,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinBandVertical <= 0 {
		c.MinBandVertical = d.MinBandVertical
	}
	if c.MinBandHorizontal <= 0 {
		c.MinBandHorizontal = d.MinBandHorizontal
	}
	if c.BandRatio <= 0 {
		c.BandRatio = d.BandRatio
	}
	if c.StopScore <= 0 {
		c.StopScore = d.StopScore
	}
	if len(c.PSMs) == 0 {
		c.PSMs = d.PSMs
	}
	if c.Contrast == 0 {
		c.Contrast = d.Contrast
	}
	if c.AdaptiveBlock <= 0 {
		c.AdaptiveBlock = d.AdaptiveBlock
	}
	if c.AdaptiveC == 0 {
		c.AdaptiveC = d.AdaptiveC
	}
	if c.MinShortSide <= 0 {
		c.MinShortSide = d.MinShortSide
	}
	return c
}

// Validate checks the band geometry.
func (c Config) Validate() error {
	if c.BandRatio < 0 || c.BandRatio > 0.5 {
		return errors.New("caption band_ratio must be within [0, 0.5]")
	}
	if c.MinBandVertical < 0 || c.MinBandHorizontal < 0 {
		return errors.New("caption band sizes must not be negative")
	}
	return nil
}
