// Package numbering locates the catalog number printed around a detected
// artwork by running digit-restricted OCR over a ring of search zones.
package numbering

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/MeKo-Tech/artex/internal/ocr"
)

// Zone names one search area relative to the artwork box.
type Zone string

const (
	ZoneBelow        Zone = "below"
	ZoneInsideBottom Zone = "inside_bottom"
	ZoneRight        Zone = "right"
	ZoneLeft         Zone = "left"
	ZoneBelowWide    Zone = "below_wide"
	ZoneAbove        Zone = "above"
)

// ParseZone validates a zone name.
func ParseZone(s string) (Zone, error) {
	switch z := Zone(s); z {
	case ZoneBelow, ZoneInsideBottom, ZoneRight, ZoneLeft, ZoneBelowWide, ZoneAbove:
		return z, nil
	}
	return "", fmt.Errorf("unknown zone %q", s)
}

// OCRConfig lists the recognition attempts per zone.
type OCRConfig struct {
	PSMs     []ocr.PageSegMode `yaml:"psms" json:"psms"`
	Variants []ocr.Variant     `yaml:"variants" json:"variants"`
	Scale    float64           `yaml:"scale" json:"scale"`
}

// Config is the collection-specific number search setup.
type Config struct {
	Zones       []Zone           `yaml:"zones" json:"zones"`
	Weights     map[Zone]float64 `yaml:"weights" json:"weights"`
	LengthBonus map[int]float64  `yaml:"length_bonus" json:"length_bonus"`
	OCR         OCRConfig        `yaml:"ocr" json:"ocr"`
	EarlyStop   float64          `yaml:"early_stop" json:"early_stop"`
	MinDigits   int              `yaml:"min_digits" json:"min_digits"`
	MaxDigits   int              `yaml:"max_digits" json:"max_digits"`
	RejectYears bool             `yaml:"reject_years" json:"reject_years"`
	// Forbidden holds regular expressions; a matching number is rejected.
	Forbidden []string `yaml:"forbidden" json:"forbidden"`
}

// DefaultConfig returns the TOC-style (picasso-like) search setup.
func DefaultConfig() Config {
	return Config{
		Zones: []Zone{ZoneBelow, ZoneInsideBottom, ZoneBelowWide, ZoneRight, ZoneLeft},
		Weights: map[Zone]float64{
			ZoneBelow:        1.0,
			ZoneInsideBottom: 0.9,
			ZoneBelowWide:    0.7,
			ZoneRight:        0.6,
			ZoneLeft:         0.5,
		},
		LengthBonus: DefaultLengthBonus(),
		OCR: OCRConfig{
			PSMs:     []ocr.PageSegMode{ocr.PSMSingleLine, ocr.PSMSingleWord, ocr.PSMSingleBlock},
			Variants: []ocr.Variant{ocr.VariantOtsu, ocr.VariantAdaptive, ocr.VariantCLAHEOtsu},
			Scale:    3,
		},
		EarlyStop:   0.9,
		MinDigits:   1,
		MaxDigits:   3,
		RejectYears: true,
	}
}

// DefaultLengthBonus favours two and three digit numbers.
func DefaultLengthBonus() map[int]float64 {
	return map[int]float64{1: 0.8, 2: 1.0, 3: 1.0, 4: 0.7}
}

// Validate checks zones, digit range, OCR attempts and forbidden patterns.
func (c Config) Validate() error {
	if len(c.Zones) == 0 {
		return fmt.Errorf("numbering: at least one zone is required")
	}
	if c.MinDigits < 1 || c.MaxDigits < c.MinDigits || c.MaxDigits > 6 {
		return fmt.Errorf("numbering: invalid digit range [%d,%d]", c.MinDigits, c.MaxDigits)
	}
	if len(c.OCR.PSMs) == 0 || len(c.OCR.Variants) == 0 {
		return fmt.Errorf("numbering: OCR PSMs and variants must not be empty")
	}
	for _, f := range c.Forbidden {
		if _, err := regexp.Compile(f); err != nil {
			return fmt.Errorf("numbering: forbidden pattern %q: %w", f, err)
		}
	}
	return nil
}

// orderedZones returns the zones by descending weight, keeping declaration
// order for ties.
func (c Config) orderedZones() []Zone {
	zones := append([]Zone(nil), c.Zones...)
	sort.SliceStable(zones, func(i, j int) bool { return c.Weights[zones[i]] > c.Weights[zones[j]] })
	return zones
}

var (
	numberRe = regexp.MustCompile(`\b\d{1,6}\b`)
	nonDigit = regexp.MustCompile(`\D`)
	yearRe   = regexp.MustCompile(`^(1[5-9]|20)\d{2}$`)
)

// ExtractNumber returns the first standalone 1-6 digit run in text.
func ExtractNumber(text string) (string, bool) {
	m := numberRe.FindString(text)
	return m, m != ""
}

// normalizer applies the collection-level number rules.
type normalizer struct {
	min, max    int
	rejectYears bool
	forbidden   []*regexp.Regexp
}

func (c Config) normalizer() normalizer {
	n := normalizer{min: c.MinDigits, max: c.MaxDigits, rejectYears: c.RejectYears}
	for _, f := range c.Forbidden {
		if re, err := regexp.Compile(f); err == nil {
			n.forbidden = append(n.forbidden, re)
		}
	}
	return n
}

// Normalize strips non-digits and leading zeros and applies the rules.
func (n normalizer) Normalize(raw string) (string, bool) {
	digits := nonDigit.ReplaceAllString(raw, "")
	if n.rejectYears && yearRe.MatchString(digits) {
		return "", false
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" || len(digits) < n.min || len(digits) > n.max {
		return "", false
	}
	for _, re := range n.forbidden {
		if re.MatchString(digits) {
			return "", false
		}
	}
	return digits, true
}
