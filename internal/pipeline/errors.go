package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/artex/internal/ocr"
)

// ErrFatalConfig marks errors that stop a run before any page is attempted:
// a missing input PDF, an unwritable output root, an unknown collection.
var ErrFatalConfig = errors.New("fatal configuration error")

// ErrorKind classifies a recovered or fatal failure.
type ErrorKind string

const (
	KindRasterize          ErrorKind = "RASTERIZE_ERROR"
	KindOCRUnavailable     ErrorKind = "OCR_UNAVAILABLE"
	KindOCRTimeout         ErrorKind = "OCR_CALL_TIMEOUT"
	KindTOCNotFound        ErrorKind = "TOC_NOT_FOUND"
	KindTOCPartial         ErrorKind = "TOC_PARSE_PARTIAL"
	KindImageInvalid       ErrorKind = "IMAGE_INVALID"
	KindOCRBudgetExhausted ErrorKind = "OCR_BUDGET_EXHAUSTED"
	KindCaption            ErrorKind = "CAPTION_ERROR"
	KindFatalConfig        ErrorKind = "FATAL_CONFIG"
)

// ReasonPrunedMinSide marks a rectangle under the collection's minimum side.
const ReasonPrunedMinSide = "PRUNED_MIN_SIDE"

// PageError is a failure attached to one page.
type PageError struct {
	Kind ErrorKind
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

func pageErr(kind ErrorKind, page int, err error) *PageError {
	return &PageError{Kind: kind, Page: page, Err: err}
}

// captionKind classifies a failed caption search.
func captionKind(err error) ErrorKind {
	if errors.Is(err, ocr.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return KindOCRTimeout
	}
	return KindCaption
}

func fatal(msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrFatalConfig, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrFatalConfig, msg, err)
}
