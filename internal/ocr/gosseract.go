//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/artex/internal/utils"
	"github.com/otiai10/gosseract/v2"
)

// GosseractEngine runs Tesseract in-process through gosseract. A fresh
// client is created per call since gosseract clients are not goroutine-safe
// and a timed-out call may still be running.
type GosseractEngine struct {
	language string
}

// NewGosseract returns the in-process engine.
func NewGosseract(language string) (*GosseractEngine, error) {
	if language == "" {
		language = "fra+eng"
	}
	return &GosseractEngine{language: language}, nil
}

func (g *GosseractEngine) Name() string    { return KindGosseract }
func (g *GosseractEngine) Available() bool { return true }

func (g *GosseractEngine) client(img image.Image, opts Options) (*gosseract.Client, error) {
	data, err := utils.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	c := gosseract.NewClient()
	lang := opts.Language
	if lang == "" {
		lang = g.language
	}
	if err := c.SetLanguage(strings.Split(lang, "+")...); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if opts.PSM != 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(opts.PSM)); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
		}
	}
	if opts.Whitelist != "" {
		if err := c.SetWhitelist(opts.Whitelist); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	return c, nil
}

// ImageToString returns the recognized text.
func (g *GosseractEngine) ImageToString(ctx context.Context, img image.Image, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c, err := g.client(img, opts)
	if err != nil {
		return "", err
	}
	defer c.Close()
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// ImageToData returns word boxes with confidences.
func (g *GosseractEngine) ImageToData(ctx context.Context, img image.Image, opts Options) ([]Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := g.client(img, opts)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, Word{
			Text:       b.Word,
			Confidence: b.Confidence,
			Box:        b.Box,
			Block:      b.BlockNum*1000 + b.ParNum,
			Line:       b.LineNum,
		})
	}
	return words, nil
}
