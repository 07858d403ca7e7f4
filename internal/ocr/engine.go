// Package ocr wraps OCR engines behind a small interface and guards every
// call with a soft deadline and a hard ceiling.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

var (
	// ErrUnavailable is returned when no OCR engine can be used.
	ErrUnavailable = errors.New("OCR engine unavailable")
	// ErrTimeout is returned when a call exceeds its soft deadline.
	ErrTimeout = errors.New("OCR call timed out")
)

// PageSegMode is a Tesseract page segmentation mode.
type PageSegMode int

// Page segmentation modes used by the pipeline.
const (
	PSMAuto         PageSegMode = 3
	PSMSingleColumn PageSegMode = 4
	PSMSingleBlock  PageSegMode = 6
	PSMSingleLine   PageSegMode = 7
	PSMSingleWord   PageSegMode = 8
	PSMSparseText   PageSegMode = 11
)

// Digits restricts recognition to 0-9.
const Digits = "0123456789"

// Options configures one recognition call.
type Options struct {
	PSM       PageSegMode
	Whitelist string
	Language  string
}

// Word is one recognized word with its confidence (0..100).
type Word struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
	Block      int             `json:"block"`
	Line       int             `json:"line"`
}

// Engine is an OCR backend.
type Engine interface {
	Name() string
	Available() bool
	// ImageToString returns the recognized text.
	ImageToString(ctx context.Context, img image.Image, opts Options) (string, error)
	// ImageToData returns words with confidences.
	ImageToData(ctx context.Context, img image.Image, opts Options) ([]Word, error)
}

// MeanConfidence averages the confidence of non-empty words.
func MeanConfidence(words []Word) float64 {
	var sum float64
	n := 0
	for _, w := range words {
		if strings.TrimSpace(w.Text) == "" || w.Confidence < 0 {
			continue
		}
		sum += w.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// JoinWords rebuilds text from words, one output line per (block, line).
func JoinWords(words []Word) string {
	var sb strings.Builder
	prevBlock, prevLine := -1, -1
	for _, w := range words {
		t := strings.TrimSpace(w.Text)
		if t == "" {
			continue
		}
		switch {
		case prevBlock == -1:
		case w.Block != prevBlock || w.Line != prevLine:
			sb.WriteByte('\n')
		default:
			sb.WriteByte(' ')
		}
		sb.WriteString(t)
		prevBlock, prevLine = w.Block, w.Line
	}
	return sb.String()
}

// Unavailable is the engine used when OCR is disabled.
type Unavailable struct{}

func (Unavailable) Name() string    { return "none" }
func (Unavailable) Available() bool { return false }

func (Unavailable) ImageToString(context.Context, image.Image, Options) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) ImageToData(context.Context, image.Image, Options) ([]Word, error) {
	return nil, ErrUnavailable
}

// Engine kinds accepted by New.
const (
	KindTesseractCLI = "tesseract-cli"
	KindGosseract    = "gosseract"
	KindNone         = "none"
)

// New builds the engine named by kind. An engine whose backend is missing
// is replaced by Unavailable and reported through the returned error, which
// callers treat as a warning.
func New(kind, tesseractPath, language string) (Engine, error) {
	switch kind {
	case KindNone, "":
		return Unavailable{}, nil
	case KindTesseractCLI:
		e := NewTesseractCLI(tesseractPath, language)
		if !e.Available() {
			return Unavailable{}, fmt.Errorf("%w: %s not found", ErrUnavailable, e.path)
		}
		return e, nil
	case KindGosseract:
		e, err := NewGosseract(language)
		if err != nil {
			return Unavailable{}, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", kind)
	}
}

// DebugSink receives the images and text of OCR attempts when debug output
// is enabled.
type DebugSink interface {
	Save(name string, img image.Image, text string)
}
