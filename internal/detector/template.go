package detector

import (
	"fmt"

	"github.com/MeKo-Tech/artex/internal/imgproc"
	"github.com/MeKo-Tech/artex/internal/mempool"
)

// templateSize is a hollow rectangle template in template-image pixels.
type templateSize struct{ w, h int }

// templateBank is matched on an image whose long side is TemplateMaxSide.
var templateBank = []templateSize{
	{w: 120, h: 160},
	{w: 160, h: 120},
	{w: 200, h: 260},
	{w: 260, h: 200},
	{w: 300, h: 300},
}

const (
	templateBorder = 3
	templateNMSIoU = 0.3
)

// Template correlates the plane with the hollow-rectangle bank. g must
// already be sized for template matching; results are in g's coordinates.
func Template(g *imgproc.Gray, cfg Config) []Rectangle {
	it := imgproc.NewIntegral(g)
	var cands []Rectangle
	for _, ts := range templateBank {
		resp, rw, rh := imgproc.HollowRectNCC(it, ts.w, ts.h, templateBorder)
		if resp == nil {
			continue
		}
		method := fmt.Sprintf("template_%dx%d", ts.w, ts.h)
		for _, p := range imgproc.Peaks(resp, rw, rh, cfg.TemplateThreshold) {
			cands = append(cands, rectFromBox(BBox{X: p.X, Y: p.Y, W: ts.w, H: ts.h}, method, p.Score))
		}
		mempool.PutFloat32(resp)
	}
	kept := nonMaxSuppression(cands, templateNMSIoU)
	if len(kept) > cfg.TemplateMaxMatches {
		kept = kept[:cfg.TemplateMaxMatches]
	}
	return kept
}
