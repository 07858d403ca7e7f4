package detector

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/artex/internal/utils"
)

// Fusion thresholds.
const (
	CenterDistanceRatio = 0.15
	MinSizeRatio        = 0.8
	MinOverlapSmaller   = 0.7
)

// SameObject reports whether two candidates bound the same artwork: either
// their centers are close and their sizes similar on both axes, or their
// intersection covers most of the smaller box.
func SameObject(a, b BBox) bool {
	ax, ay := a.Center()
	bx, by := b.Center()
	largest := float64(max(a.W, a.H, b.W, b.H))
	if math.Hypot(ax-bx, ay-by) <= CenterDistanceRatio*largest &&
		sizeRatio(a.W, b.W) >= MinSizeRatio && sizeRatio(a.H, b.H) >= MinSizeRatio {
		return true
	}
	return utils.RectOverlapMin(a.Rect(), b.Rect()) >= MinOverlapSmaller
}

func sizeRatio(a, b int) float64 {
	lo, hi := min(a, b), max(a, b)
	if hi == 0 {
		return 0
	}
	return float64(lo) / float64(hi)
}

// Fuse merges candidate lists in the order given. The first-seen rectangle of
// each object is kept and collects the methods of its duplicates.
func Fuse(lists ...[]Rectangle) []FusedRectangle {
	var out []FusedRectangle
	for _, list := range lists {
		for _, r := range list {
			merged := false
			for i := range out {
				if SameObject(out[i].BBox, r.BBox) {
					out[i].Sources = sortedUnique(append(out[i].Sources, r.Method))
					merged = true
					break
				}
			}
			if !merged {
				out = append(out, FusedRectangle{Rectangle: r, Sources: []string{r.Method}})
			}
		}
	}
	return out
}

// PruneMinSide separates rectangles narrower or shorter than minSide from
// the rest. A zero minSide keeps everything.
func PruneMinSide(rects []FusedRectangle, minSide int) (kept, pruned []FusedRectangle) {
	if minSide <= 0 {
		return rects, nil
	}
	return SplitBySize(rects, minSide)
}

// nonMaxSuppression keeps the most confident candidates, suppressing any
// later one whose IoU with a kept candidate exceeds iouThreshold.
func nonMaxSuppression(rects []Rectangle, iouThreshold float64) []Rectangle {
	if len(rects) <= 1 {
		return rects
	}
	order := make([]int, len(rects))
	for i := range order {
		order[i] = i
	}
	// equal scores keep discovery order
	sort.SliceStable(order, func(i, j int) bool { return rects[order[i]].Confidence > rects[order[j]].Confidence })
	suppressed := make([]bool, len(rects))
	kept := make([]Rectangle, 0, len(rects))
	for ai, a := range order {
		if suppressed[a] {
			continue
		}
		kept = append(kept, rects[a])
		for _, b := range order[ai+1:] {
			if !suppressed[b] && utils.RectIoU(rects[a].BBox.Rect(), rects[b].BBox.Rect()) > iouThreshold {
				suppressed[b] = true
			}
		}
	}
	return kept
}
