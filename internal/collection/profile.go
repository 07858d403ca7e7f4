// Package collection holds the named configuration bundles that adapt the
// pipeline to a catalog style: where the number sits, how it is read and
// whether metadata comes from a plates table or from captions.
package collection

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/artex/internal/numbering"
	"github.com/MeKo-Tech/artex/internal/ocr"
)

// Built-in profile names.
const (
	PicassoLike  = "picasso-like"
	DubuffetLike = "dubuffet-like"
	Auto         = "auto"
)

// ErrUnknown is returned for a profile name that is not registered.
var ErrUnknown = errors.New("unknown collection")

// Profile configures number search, metadata source and pruning for one
// catalog style.
type Profile struct {
	Name string `yaml:"name" json:"name"`
	// Base names the profile this one is derived from when loaded from YAML.
	Base string `yaml:"base,omitempty" json:"base,omitempty"`
	// HasTOC selects plates-table metadata; otherwise captions are read.
	HasTOC bool `yaml:"has_toc" json:"has_toc"`
	// Keywords matched against the PDF filename when the name is "auto".
	Keywords     []string         `yaml:"keywords" json:"keywords"`
	PruneMinSide int              `yaml:"prune_min_side" json:"prune_min_side"`
	TOCHeadings  []string         `yaml:"toc_headings" json:"toc_headings"`
	Numbering    numbering.Config `yaml:"numbering" json:"numbering"`
}

// CaptionDriven reports whether metadata is read from captions.
func (p Profile) CaptionDriven() bool { return !p.HasTOC }

// Validate checks the profile.
func (p Profile) Validate() error {
	if p.Name == "" || p.Name == Auto {
		return fmt.Errorf("collection: invalid profile name %q", p.Name)
	}
	if p.PruneMinSide < 0 {
		return fmt.Errorf("collection %s: prune_min_side must be >= 0", p.Name)
	}
	if err := p.Numbering.Validate(); err != nil {
		return fmt.Errorf("collection %s: %w", p.Name, err)
	}
	return nil
}

// Picasso returns the plates-table profile: numbers printed right under
// each reproduction, metadata from the table at the end of the book.
func Picasso() Profile {
	return Profile{
		Name:      PicassoLike,
		HasTOC:    true,
		Keywords:  []string{"picasso"},
		Numbering: numbering.DefaultConfig(),
	}
}

// Dubuffet returns the caption profile: a legend with the number sits
// under each large reproduction.
func Dubuffet() Profile {
	nc := numbering.DefaultConfig()
	nc.Zones = []numbering.Zone{
		numbering.ZoneBelow, numbering.ZoneBelowWide, numbering.ZoneInsideBottom,
		numbering.ZoneRight, numbering.ZoneLeft,
	}
	nc.Weights = map[numbering.Zone]float64{
		numbering.ZoneBelow:        1.0,
		numbering.ZoneBelowWide:    0.8,
		numbering.ZoneInsideBottom: 0.5,
		numbering.ZoneRight:        0.4,
		numbering.ZoneLeft:         0.3,
	}
	nc.OCR = numbering.OCRConfig{
		PSMs:     []ocr.PageSegMode{ocr.PSMSingleLine, ocr.PSMSingleBlock},
		Variants: []ocr.Variant{ocr.VariantOtsu, ocr.VariantOtsuInv, ocr.VariantBlurOtsu},
		Scale:    2.5,
	}
	nc.EarlyStop = 0.95
	nc.MaxDigits = 4
	return Profile{
		Name:         DubuffetLike,
		Keywords:     []string{"dubuffet"},
		PruneMinSide: 500,
		Numbering:    nc,
	}
}
