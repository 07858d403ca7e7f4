// Package journal owns the session directory: the incrementally written
// session manifest, per-page detail files and page previews.
package journal

import (
	"github.com/MeKo-Tech/artex/internal/caption"
	"github.com/MeKo-Tech/artex/internal/coherence"
	"github.com/MeKo-Tech/artex/internal/detector"
	"github.com/MeKo-Tech/artex/internal/quality"
	"github.com/MeKo-Tech/artex/internal/utils"
)

// File and directory names of a session.
const (
	RootDirName     = "extractions_ultra"
	ManifestName    = "extraction_ultra_complete.json"
	PageDetailsName = "page_ultra_details.json"
	PreviewName     = "page_full_image.jpg"
	TOCName         = "sommaire_planches.json"
	TOCUnparsedName = "sommaire_planches_unparsed.txt"
	Mode            = "ultra"
)

// RectangleDetail is one persisted rectangle of a page.
type RectangleDetail struct {
	Index              int             `json:"index"`
	BBox               detector.BBox   `json:"bbox"`
	Corners            [4]utils.Point  `json:"corners"`
	Area               float64         `json:"area"`
	Method             string          `json:"method"`
	Sources            []string        `json:"sources"`
	Confidence         float64         `json:"confidence"`
	Quality            quality.Verdict `json:"quality"`
	ArtworkNumber      *string         `json:"artwork_number"`
	NumberZone         string          `json:"number_zone,omitempty"`
	NumberScore        float64         `json:"number_score,omitempty"`
	Filename           string          `json:"filename"`
	Thumbnail          string          `json:"thumbnail"`
	InfoFile           string          `json:"info_file,omitempty"`
	RecordFile         string          `json:"record_file,omitempty"`
	MetadataProvenance string          `json:"provenance_of_metadata,omitempty"`
	Caption            *caption.Result `json:"caption,omitempty"`
}

// SkippedRectangle is a rectangle dropped before persistence.
type SkippedRectangle struct {
	Index  int           `json:"index"`
	BBox   detector.BBox `json:"bbox"`
	Reason string        `json:"reason"`
}

// Summary counts the outcome of a page.
type Summary struct {
	OK         int            `json:"ok"`
	Doubtful   int            `json:"doubtful"`
	Numbered   int            `json:"numbered"`
	Unnumbered int            `json:"unnumbered"`
	Records    int            `json:"records"`
	Provenance map[string]int `json:"provenance"`
}

// PageResult is the manifest entry of one page.
type PageResult struct {
	PageNumber        int                `json:"page_number"`
	Success           bool               `json:"success"`
	ImagesExtracted   int                `json:"images_extracted"`
	RectanglesFound   int                `json:"rectangles_found"`
	RectanglesDetails []RectangleDetail  `json:"rectangles_details"`
	SkippedRectangles []SkippedRectangle `json:"skipped_rectangles,omitempty"`
	CoherenceAnalysis *coherence.Report  `json:"coherence_analysis"`
	SummaryAnalysis   *Summary           `json:"summary_analysis,omitempty"`
	Warnings          []string           `json:"warnings,omitempty"`
	Error             string             `json:"error,omitempty"`
	DPIUsed           int                `json:"dpi_used,omitempty"`
	PageFormat        string             `json:"page_format,omitempty"`
	WidthMM           float64            `json:"width_mm,omitempty"`
	HeightMM          float64            `json:"height_mm,omitempty"`
	ProcessingTime    float64            `json:"processing_time"`
	StartTime         string             `json:"start_time"`
	EndTime           string             `json:"end_time"`
}

// TOCInfo links the plates table of the session.
type TOCInfo struct {
	File     string `json:"file"`
	Method   string `json:"method"`
	Pages    []int  `json:"pages"`
	Entries  int    `json:"entries"`
	Unparsed int    `json:"unparsed_lines"`
}

// Manifest is the session root record.
type Manifest struct {
	PDFName              string       `json:"pdf_name"`
	PDFOriginalPath      string       `json:"pdf_original_path"`
	SessionDir           string       `json:"session_dir"`
	StartPage            int          `json:"start_page"`
	EndPage              int          `json:"end_page"`
	Mode                 string       `json:"mode"`
	Collection           string       `json:"collection"`
	Artist               string       `json:"artist"`
	StartTime            string       `json:"start_time"`
	EndTime              string       `json:"end_time,omitempty"`
	TotalPages           int          `json:"total_pages"`
	TotalImagesExtracted int          `json:"total_images_extracted"`
	SuccessPages         int          `json:"success_pages"`
	FailedPages          int          `json:"failed_pages"`
	FallbackSequence     int          `json:"fallback_sequence"`
	TOC                  *TOCInfo     `json:"toc,omitempty"`
	Pages                []PageResult `json:"pages"`
}

// PageDetails is written as page_ultra_details.json in the page directory.
type PageDetails struct {
	PageNumber     int                `json:"page_number"`
	DPIUsed        int                `json:"dpi_used"`
	PageFormat     string             `json:"page_format"`
	WidthPx        int                `json:"width_px"`
	HeightPx       int                `json:"height_px"`
	DetectorCounts map[string]int     `json:"detector_counts"`
	UltraPasses    []int              `json:"ultra_passes"`
	Template       int                `json:"template"`
	Color          int                `json:"color"`
	Fused          int                `json:"fused"`
	AfterPruning   int                `json:"after_pruning"`
	Skipped        int                `json:"skipped"`
	SavedFiles     []string           `json:"saved_files"`
	Timings        map[string]float64 `json:"timings_seconds"`
	Warnings       []string           `json:"warnings,omitempty"`
}
