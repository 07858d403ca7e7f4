package caption

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/artex/internal/imgproc"
	"github.com/MeKo-Tech/artex/internal/ocr"
	"github.com/MeKo-Tech/artex/internal/utils"
)

// Reader runs the caption search on page images.
type Reader struct {
	cfg   Config
	guard *ocr.Guard
	debug ocr.DebugSink
}

// NewReader returns a reader. debug may be nil.
func NewReader(guard *ocr.Guard, cfg Config, debug ocr.DebugSink) *Reader {
	return &Reader{cfg: cfg.withDefaults(), guard: guard, debug: debug}
}

// Available reports whether OCR can run.
func (r *Reader) Available() bool { return r.guard != nil && r.guard.Available() }

// Read searches the bands around bbox on page. An empty bbox is estimated
// from the page. label prefixes debug output.
func (r *Reader) Read(ctx context.Context, page image.Image, bbox image.Rectangle, label string) (*Result, error) {
	if !r.Available() {
		return &Result{}, ocr.ErrUnavailable
	}
	if bbox.Empty() {
		est, ok := EstimateArtworkBBox(page)
		if !ok {
			return &Result{}, nil
		}
		bbox = est
	}

	var all []Item
	stop := false
	for _, band := range Bands(bbox, page.Bounds(), r.cfg) {
		items, err := r.readBand(ctx, page, band, label)
		if err != nil {
			if errors.Is(err, ocr.ErrUnavailable) || ctx.Err() != nil {
				return r.result(all), err
			}
			slog.Debug("Caption band failed", "label", label, "region", band.Region, "error", err)
			continue
		}
		all = append(all, items...)
		for _, it := range items {
			if it.Score >= r.cfg.StopScore {
				stop = true
			}
		}
		if stop {
			break
		}
	}
	return r.result(all), nil
}

func (r *Reader) result(items []Item) *Result {
	res := &Result{Items: Merge(items)}
	if res.Items == nil {
		res.Items = []Item{}
	}
	if best, ok := res.Best(); ok {
		res.Found = true
		res.BestRegion = best.Region
	}
	return res
}

// readBand recognizes one band with every PSM and parses the text of the
// most confident attempt.
func (r *Reader) readBand(ctx context.Context, page image.Image, band Band, label string) ([]Item, error) {
	prepared := r.prepare(utils.CropImageRect(page, band.Rect))

	bestConf := -1.0
	var bestText string
	for _, psm := range r.cfg.PSMs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		words, err := r.guard.Data(ctx, prepared, ocr.Options{PSM: psm, Language: r.cfg.Language})
		if err != nil {
			if errors.Is(err, ocr.ErrTimeout) {
				slog.Warn("Caption OCR timed out", "label", label, "region", band.Region, "psm", int(psm))
				continue
			}
			if errors.Is(err, ocr.ErrUnavailable) || ctx.Err() != nil {
				return nil, err
			}
			slog.Debug("Caption OCR failed", "label", label, "region", band.Region, "psm", int(psm), "error", err)
			continue
		}
		text := ocr.JoinWords(words)
		conf := ocr.MeanConfidence(words)
		if r.debug != nil {
			r.debug.Save(fmt.Sprintf("%s_caption_%s_psm%d", label, band.Region, psm), prepared, text)
		}
		if conf > bestConf && text != "" {
			bestConf, bestText = conf, text
		}
	}
	if bestText == "" {
		return nil, nil
	}
	slog.Debug("Caption text", "label", label, "region", band.Region, "confidence", bestConf, "text", bestText)
	return Parse(bestText, band.Region, bestConf), nil
}

// prepare boosts contrast, upscales small bands and applies the adaptive
// threshold.
func (r *Reader) prepare(img image.Image) image.Image {
	img = utils.BoostContrast(img, r.cfg.Contrast)
	b := img.Bounds()
	if short := min(b.Dx(), b.Dy()); short > 0 && short < r.cfg.MinShortSide {
		img = utils.UpscaleCubic(img, min(float64(r.cfg.MinShortSide)/float64(short), 4))
	}
	g := imgproc.FromImage(img)
	defer g.Release()
	m := imgproc.AdaptiveGaussian(g, r.cfg.AdaptiveBlock, r.cfg.AdaptiveC)
	defer m.Release()
	out := imgproc.Binarize(m)
	defer out.Release()
	return out.ToImage()
}
