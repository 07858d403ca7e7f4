// Package assemble persists artwork crops and joins them with plates table
// entries or caption parses into per-artwork records.
package assemble

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
)

// NoComment replaces every metadata field the sources did not provide.
const NoComment = "No comment"

// Metadata provenance values.
const (
	ProvenanceTOC        = "toc"
	ProvenanceCaption    = "caption_ocr"
	ProvenanceSequential = "fallback_sequential"
)

// Record is the per-artwork JSON document.
type Record struct {
	ID                  string      `json:"id"`
	ArtistName          string      `json:"artist_name"`
	Title               string      `json:"title"`
	ImagePath           string      `json:"image_path"`
	SizeCM              *[2]float64 `json:"size_cm"`
	Medium              string      `json:"medium"`
	ExecutionYear       string      `json:"execution_year"`
	DateISO             string      `json:"date_iso,omitempty"`
	ApproximateDate     bool        `json:"approximate_date,omitempty"`
	Signature           string      `json:"signature"`
	Description         string      `json:"description"`
	PlateNumber         *int        `json:"plate_number"`
	SourcePageInPDF     int         `json:"source_page_in_pdf"`
	ExtractionTimestamp string      `json:"extraction_iso_timestamp"`
	Provenance          []string    `json:"provenance"`
	Literature          []string    `json:"literature"`
	Exhibition          []string    `json:"exhibition"`
	MetadataProvenance  string      `json:"provenance_of_metadata"`
	SizeSource          string      `json:"size_source"`
}

// Size sources.
const (
	SizeFromMetadata = "metadata"
	SizeFromPixels   = "pixels"
)

// Describe composes the description sentence.
func Describe(artist, title, medium string, size *[2]float64, year string) string {
	sizeText := NoComment
	if size != nil {
		sizeText = fmt.Sprintf("%s x %s", formatCM(size[0]), formatCM(size[1]))
	}
	return fmt.Sprintf("%s, %s. Medium: %s. Size: %s cm. Execution year: %s.",
		orNoComment(artist), orNoComment(title), orNoComment(medium), sizeText, orNoComment(year))
}

func orNoComment(s string) string {
	if s == "" {
		return NoComment
	}
	return s
}

func formatCM(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// PixelsToCM converts a pixel length at dpi to centimetres, one decimal.
func PixelsToCM(px, dpi int) float64 {
	if dpi <= 0 {
		return 0
	}
	return math.Round(float64(px)/float64(dpi)*2.54*10) / 10
}

// writeJSONExclusive creates path and fails if it exists.
func writeJSONExclusive(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // session output
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// ReadRecord loads a record file.
func ReadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path) //nolint:gosec // session output
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &r, nil
}
