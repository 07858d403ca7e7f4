//go:build !ocr

package ocr

import "fmt"

// NewGosseract reports ErrUnavailable; the in-process engine needs the
// "ocr" build tag and the Tesseract development libraries:
//
//	go build -tags ocr ./cmd/artex
func NewGosseract(string) (Engine, error) {
	return nil, fmt.Errorf("%w: gosseract support not compiled in; rebuild with -tags ocr", ErrUnavailable)
}
