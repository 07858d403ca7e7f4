// Package quality classifies artwork crops as OK or DOUBTFUL.
package quality

import (
	"fmt"
	"image"
	"math"
	"sort"
	"strings"

	"github.com/MeKo-Tech/artex/internal/imgproc"
	"github.com/MeKo-Tech/artex/internal/utils"
)

// Reason names one quality problem.
type Reason string

const (
	ReasonSizeOutlier  Reason = "SIZE_OUTLIER"
	ReasonBlank        Reason = "BLANK"
	ReasonExtremeRatio Reason = "EXTREME_RATIO"
	ReasonLowVariance  Reason = "LOW_VARIANCE"
	ReasonNoEdges      Reason = "NO_EDGES"
)

// Verdict is the outcome for one crop.
type Verdict struct {
	IsDoubtful bool     `json:"is_doubtful"`
	Confidence float64  `json:"confidence"`
	Reasons    []Reason `json:"reasons"`
}

// Has reports whether r is among the reasons.
func (v Verdict) Has(r Reason) bool {
	for _, x := range v.Reasons {
		if x == r {
			return true
		}
	}
	return false
}

// Config holds the thresholds and confidence multipliers.
type Config struct {
	SizeOutlierSigmas  float64 `mapstructure:"size_outlier_sigmas" yaml:"size_outlier_sigmas" json:"size_outlier_sigmas"`
	BlankLevel         uint8   `mapstructure:"blank_level" yaml:"blank_level" json:"blank_level"`
	BlankFraction      float64 `mapstructure:"blank_fraction" yaml:"blank_fraction" json:"blank_fraction"`
	ExtremeRatio       float64 `mapstructure:"extreme_ratio" yaml:"extreme_ratio" json:"extreme_ratio"`
	MinVariance        float64 `mapstructure:"min_variance" yaml:"min_variance" json:"min_variance"`
	CannyLow           float64 `mapstructure:"canny_low" yaml:"canny_low" json:"canny_low"`
	CannyHigh          float64 `mapstructure:"canny_high" yaml:"canny_high" json:"canny_high"`
	MinEdgeFraction    float64 `mapstructure:"min_edge_fraction" yaml:"min_edge_fraction" json:"min_edge_fraction"`
	SizeOutlierFactor  float64 `mapstructure:"size_outlier_factor" yaml:"size_outlier_factor" json:"size_outlier_factor"`
	BlankFactor        float64 `mapstructure:"blank_factor" yaml:"blank_factor" json:"blank_factor"`
	ExtremeRatioFactor float64 `mapstructure:"extreme_ratio_factor" yaml:"extreme_ratio_factor" json:"extreme_ratio_factor"`
	LowVarianceFactor  float64 `mapstructure:"low_variance_factor" yaml:"low_variance_factor" json:"low_variance_factor"`
	NoEdgesFactor      float64 `mapstructure:"no_edges_factor" yaml:"no_edges_factor" json:"no_edges_factor"`
	DoubtfulBelow      float64 `mapstructure:"doubtful_below" yaml:"doubtful_below" json:"doubtful_below"`
	DoubtfulReasons    int     `mapstructure:"doubtful_reasons" yaml:"doubtful_reasons" json:"doubtful_reasons"`
	// AnalysisMaxSide bounds the crop size used for pixel statistics.
	AnalysisMaxSide int `mapstructure:"analysis_max_side" yaml:"analysis_max_side" json:"analysis_max_side"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		SizeOutlierSigmas:  2,
		BlankLevel:         240,
		BlankFraction:      0.95,
		ExtremeRatio:       8,
		MinVariance:        100,
		CannyLow:           50,
		CannyHigh:          150,
		MinEdgeFraction:    0.01,
		SizeOutlierFactor:  0.5,
		BlankFactor:        0.2,
		ExtremeRatioFactor: 0.6,
		LowVarianceFactor:  0.4,
		NoEdgesFactor:      0.3,
		DoubtfulBelow:      0.7,
		DoubtfulReasons:    2,
		AnalysisMaxSide:    1600,
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	for name, f := range map[string]float64{
		"size_outlier_factor":  c.SizeOutlierFactor,
		"blank_factor":         c.BlankFactor,
		"extreme_ratio_factor": c.ExtremeRatioFactor,
		"low_variance_factor":  c.LowVarianceFactor,
		"no_edges_factor":      c.NoEdgesFactor,
		"doubtful_below":       c.DoubtfulBelow,
		"blank_fraction":       c.BlankFraction,
		"min_edge_fraction":    c.MinEdgeFraction,
	} {
		if f < 0 || f > 1 {
			return fmt.Errorf("quality.%s must be within [0,1], got %f", name, f)
		}
	}
	if c.ExtremeRatio < 1 {
		return fmt.Errorf("quality.extreme_ratio must be >= 1, got %f", c.ExtremeRatio)
	}
	if c.DoubtfulReasons < 1 {
		return fmt.Errorf("quality.doubtful_reasons must be positive, got %d", c.DoubtfulReasons)
	}
	return nil
}

// Analyzer computes verdicts. It is stateless and safe for concurrent use.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer returns an analyzer with the given thresholds.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze classifies crop. pageAreas holds the pixel areas of every crop on
// the page, crop included.
func (a *Analyzer) Analyze(crop image.Image, pageAreas []float64) Verdict {
	b := crop.Bounds()
	w, h := b.Dx(), b.Dy()
	var reasons []Reason

	if isSizeOutlier(float64(w*h), pageAreas, a.cfg.SizeOutlierSigmas) {
		reasons = append(reasons, ReasonSizeOutlier)
	}

	work := crop
	if a.cfg.AnalysisMaxSide > 0 {
		if resized, _, err := utils.ResizeToMaxSide(crop, a.cfg.AnalysisMaxSide); err == nil {
			work = resized
		}
	}
	g := imgproc.FromImage(work)
	defer g.Release()

	if g.FractionAbove(a.cfg.BlankLevel) > a.cfg.BlankFraction {
		reasons = append(reasons, ReasonBlank)
	}
	if w > 0 && h > 0 && float64(max(w, h))/float64(min(w, h)) > a.cfg.ExtremeRatio {
		reasons = append(reasons, ReasonExtremeRatio)
	}
	if _, variance := g.Stats(); variance < a.cfg.MinVariance {
		reasons = append(reasons, ReasonLowVariance)
	}
	edges := imgproc.Canny(g, a.cfg.CannyLow, a.cfg.CannyHigh)
	if edges.Fraction() < a.cfg.MinEdgeFraction {
		reasons = append(reasons, ReasonNoEdges)
	}
	edges.Release()

	return a.verdict(reasons)
}

func (a *Analyzer) verdict(reasons []Reason) Verdict {
	conf := 1.0
	for _, r := range reasons {
		conf *= a.factor(r)
	}
	if reasons == nil {
		reasons = []Reason{}
	}
	return Verdict{
		IsDoubtful: conf < a.cfg.DoubtfulBelow || len(reasons) >= a.cfg.DoubtfulReasons,
		Confidence: conf,
		Reasons:    reasons,
	}
}

func (a *Analyzer) factor(r Reason) float64 {
	switch r {
	case ReasonSizeOutlier:
		return a.cfg.SizeOutlierFactor
	case ReasonBlank:
		return a.cfg.BlankFactor
	case ReasonExtremeRatio:
		return a.cfg.ExtremeRatioFactor
	case ReasonLowVariance:
		return a.cfg.LowVarianceFactor
	case ReasonNoEdges:
		return a.cfg.NoEdgesFactor
	}
	return 1
}

// isSizeOutlier reports area < mean - k*stddev over the page areas.
func isSizeOutlier(area float64, pageAreas []float64, k float64) bool {
	if len(pageAreas) < 2 {
		return false
	}
	var sum float64
	for _, v := range pageAreas {
		sum += v
	}
	mean := sum / float64(len(pageAreas))
	var ss float64
	for _, v := range pageAreas {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / float64(len(pageAreas)))
	return area < mean-k*std
}

// InfoText renders the *_INFO.txt body that accompanies a doubtful crop.
func InfoText(filename string, v Verdict) string {
	reasons := make([]string, len(v.Reasons))
	for i, r := range v.Reasons {
		reasons[i] = string(r)
	}
	sort.Strings(reasons)
	var sb strings.Builder
	fmt.Fprintf(&sb, "file: %s\n", filename)
	fmt.Fprintf(&sb, "status: DOUBTFUL\n")
	fmt.Fprintf(&sb, "confidence: %.3f\n", v.Confidence)
	sb.WriteString("reasons:\n")
	for _, r := range reasons {
		fmt.Fprintf(&sb, "  - %s\n", r)
	}
	return sb.String()
}
