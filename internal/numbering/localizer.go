package numbering

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/artex/internal/ocr"
	"github.com/MeKo-Tech/artex/internal/utils"
)

// ErrBudgetExhausted is returned when the page OCR budget ran out.
var ErrBudgetExhausted = errors.New("OCR budget exhausted")

// Match is the localized number of one artwork.
type Match struct {
	Number  string          `json:"number"`
	Zone    Zone            `json:"zone"`
	Score   float64         `json:"score"`
	PSM     ocr.PageSegMode `json:"psm"`
	Variant ocr.Variant     `json:"variant"`
	RawText string          `json:"raw_text"`
}

// Localizer searches number zones with a guarded OCR engine.
type Localizer struct {
	guard *ocr.Guard
	cfg   Config
	norm  normalizer
	debug ocr.DebugSink
}

// NewLocalizer validates cfg and returns a localizer. debug may be nil.
func NewLocalizer(guard *ocr.Guard, cfg Config, debug ocr.DebugSink) (*Localizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Localizer{guard: guard, cfg: cfg, norm: cfg.normalizer(), debug: debug}, nil
}

// Available reports whether a digit-capable engine is present.
func (l *Localizer) Available() bool { return l.guard != nil && l.guard.Available() }

// Locate returns the best-scoring number around bbox, or nil when none is
// found. ocr.ErrUnavailable is returned when no engine is present and
// ErrBudgetExhausted (with the best match so far) when ctx expires.
func (l *Localizer) Locate(ctx context.Context, page image.Image, bbox image.Rectangle, label string) (*Match, error) {
	if !l.Available() {
		return nil, ocr.ErrUnavailable
	}
	var best *Match
	for i, zone := range l.cfg.orderedZones() {
		zr := ZoneRect(zone, bbox, page.Bounds())
		if zr.Empty() {
			continue
		}
		crop := utils.CropImageRect(page, zr)
		m, err := l.searchZone(ctx, crop, zone, label, i < 2)
		if m != nil && (best == nil || m.Score > best.Score) {
			best = m
		}
		if err != nil {
			return best, err
		}
		if i < 2 && best != nil && best.Score >= l.cfg.EarlyStop {
			slog.Debug("Number found early", "rect", label, "zone", best.Zone, "number", best.Number, "score", best.Score)
			break
		}
	}
	return best, nil
}

// searchZone tries every variant and PSM on one zone crop. With early set,
// it returns as soon as a score reaches the early-stop threshold.
func (l *Localizer) searchZone(ctx context.Context, crop image.Image, zone Zone, label string, early bool) (*Match, error) {
	var best *Match
	weight := l.cfg.Weights[zone]
	for _, variant := range l.cfg.OCR.Variants {
		prepared := ocr.Preprocess(crop, variant, l.cfg.OCR.Scale)
		for _, psm := range l.cfg.OCR.PSMs {
			if err := ctx.Err(); err != nil {
				return best, fmt.Errorf("%w: %v", ErrBudgetExhausted, err)
			}
			text, err := l.guard.Text(ctx, prepared, ocr.Options{PSM: psm, Whitelist: ocr.Digits})
			if l.debug != nil {
				l.debug.Save(fmt.Sprintf("%s_%s_%s_psm%d", label, zone, variant, psm), prepared, text)
			}
			switch {
			case err == nil:
			case errors.Is(err, ocr.ErrTimeout):
				slog.Warn("OCR call timed out, trying next configuration", "rect", label, "zone", zone, "variant", variant, "psm", psm)
				continue
			case ctx.Err() != nil:
				return best, fmt.Errorf("%w: %v", ErrBudgetExhausted, ctx.Err())
			case errors.Is(err, ocr.ErrUnavailable):
				return best, err
			default:
				slog.Debug("OCR call failed", "rect", label, "zone", zone, "error", err)
				continue
			}
			raw, ok := ExtractNumber(text)
			if !ok {
				continue
			}
			n, ok := l.norm.Normalize(raw)
			if !ok {
				continue
			}
			score := weight * l.lengthBonus(len(n))
			if best == nil || score > best.Score {
				best = &Match{Number: n, Zone: zone, Score: score, PSM: psm, Variant: variant, RawText: text}
			}
			if early && best.Score >= l.cfg.EarlyStop {
				return best, nil
			}
		}
	}
	return best, nil
}

func (l *Localizer) lengthBonus(n int) float64 {
	if b, ok := l.cfg.LengthBonus[n]; ok {
		return b
	}
	return 0.5
}
