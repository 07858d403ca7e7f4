package detector

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/artex/internal/common"
	"github.com/MeKo-Tech/artex/internal/imgproc"
	"github.com/MeKo-Tech/artex/internal/utils"
)

// Result holds the per-strategy candidates (page pixels) and the fused set.
type Result struct {
	Ultra    [][]Rectangle
	Template []Rectangle
	Color    []Rectangle
	Fused    []FusedRectangle
	// Counts maps each method tag to the number of candidates it produced.
	Counts map[string]int
}

// Detector runs the three strategies on page images. It holds no mutable
// state and is safe for concurrent use.
type Detector struct {
	config Config
}

// New creates a detector with the given configuration.
func New(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	return &Detector{config: config}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config { return d.config }

// Detect runs Ultra, Template and Color on img and fuses the candidates in
// that order. All coordinates are page pixels clamped to the image.
func (d *Detector) Detect(img image.Image) (*Result, error) {
	b := img.Bounds()
	pageW, pageH := b.Dx(), b.Dy()
	if pageW == 0 || pageH == 0 {
		return nil, &utils.ImageProcessingError{Operation: "detect", Err: fmt.Errorf("empty image %dx%d", pageW, pageH)}
	}

	work, workScale, err := utils.ResizeToMaxSide(img, d.config.WorkMaxSide)
	if err != nil {
		return nil, err
	}
	g := imgproc.FromImage(work)
	defer g.Release()

	res := &Result{Counts: make(map[string]int)}

	t := common.NewNamedTimer("ultra")
	for _, pass := range Ultra(g, d.config) {
		scaled := make([]Rectangle, 0, len(pass))
		for _, r := range pass {
			scaled = append(scaled, r.scale(workScale, pageW, pageH))
			res.Counts[r.Method]++
		}
		res.Ultra = append(res.Ultra, scaled)
	}
	slog.Debug("Ultra detector finished", "duration", t.Stop().String())

	tmplImg, tmplScale, err := utils.ResizeToMaxSide(img, d.config.TemplateMaxSide)
	if err != nil {
		return nil, err
	}
	tg := imgproc.FromImage(tmplImg)
	defer tg.Release()
	for _, r := range Template(tg, d.config) {
		res.Template = append(res.Template, r.scale(tmplScale, pageW, pageH))
		res.Counts[r.Method]++
	}

	for _, r := range Color(g, d.config) {
		res.Color = append(res.Color, r.scale(workScale, pageW, pageH))
		res.Counts[r.Method]++
	}

	lists := make([][]Rectangle, 0, len(res.Ultra)+2)
	lists = append(lists, res.Ultra...)
	lists = append(lists, res.Template, res.Color)
	res.Fused = Clamp(Fuse(lists...), pageW, pageH)

	slog.Debug("Rectangle detection complete",
		"ultra_passes", len(res.Ultra),
		"template", len(res.Template),
		"color", len(res.Color),
		"fused", len(res.Fused))
	return res, nil
}
