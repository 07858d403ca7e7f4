package numbering

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/artex/internal/ocr"
)

// fakeEngine answers with text chosen from the size of the image it gets.
type fakeEngine struct {
	answer func(b image.Rectangle) string
	calls  atomic.Int32
}

func (f *fakeEngine) Name() string    { return "fake" }
func (f *fakeEngine) Available() bool { return true }

func (f *fakeEngine) ImageToString(ctx context.Context, img image.Image, _ ocr.Options) (string, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.answer(img.Bounds()), nil
}

func (f *fakeEngine) ImageToData(context.Context, image.Image, ocr.Options) ([]ocr.Word, error) {
	return nil, nil
}

func constant(text string) *fakeEngine {
	return &fakeEngine{answer: func(image.Rectangle) string { return text }}
}

func whitePage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 1000, 1000))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func newLocalizer(t *testing.T, e ocr.Engine, cfg Config) *Localizer {
	t.Helper()
	l, err := NewLocalizer(ocr.NewGuard(e, 0, 0), cfg, nil)
	require.NoError(t, err)
	return l
}

var artwork = image.Rect(100, 100, 300, 400)

func TestZoneRect(t *testing.T) {
	page := image.Rect(0, 0, 1000, 1000)
	tests := []struct {
		zone Zone
		want image.Rectangle
	}{
		{ZoneBelow, image.Rect(100, 400, 300, 460)},
		{ZoneInsideBottom, image.Rect(100, 360, 300, 400)},
		{ZoneRight, image.Rect(300, 100, 380, 400)},
		{ZoneLeft, image.Rect(20, 100, 100, 400)},
		{ZoneBelowWide, image.Rect(50, 400, 350, 520)},
		{ZoneAbove, image.Rect(100, 40, 300, 100)},
	}
	for _, tt := range tests {
		t.Run(string(tt.zone), func(t *testing.T) {
			assert.Equal(t, tt.want, ZoneRect(tt.zone, artwork, page))
		})
	}
}

func TestZoneRectOutsidePage(t *testing.T) {
	page := image.Rect(0, 0, 1000, 1000)
	assert.True(t, ZoneRect(ZoneBelow, image.Rect(0, 500, 400, 996), page).Empty())
	assert.True(t, ZoneRect(ZoneLeft, image.Rect(0, 0, 400, 400), page).Empty())
}

func TestNormalize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDigits = 4
	cfg.Forbidden = []string{`^666$`}
	n := cfg.normalizer()
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"12", "12", true},
		{"0012", "12", true},
		{"1969", "", false},
		{"2024", "", false},
		{"1234", "1234", true},
		{"0", "", false},
		{"12345", "", false},
		{"666", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := n.Normalize(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractNumber(t *testing.T) {
	n, ok := ExtractNumber("  pl. 42\n")
	assert.True(t, ok)
	assert.Equal(t, "42", n)
	_, ok = ExtractNumber("no digits")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Zones = nil
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MinDigits, cfg.MaxDigits = 3, 2
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Forbidden = []string{"("}
	assert.Error(t, cfg.Validate())
}

func TestOrderedZones(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []Zone{ZoneBelow, ZoneInsideBottom, ZoneBelowWide, ZoneRight, ZoneLeft}, cfg.orderedZones())

	cfg.Weights[ZoneLeft] = 2
	assert.Equal(t, ZoneLeft, cfg.orderedZones()[0])
}

func TestLocateStopsEarly(t *testing.T) {
	e := constant("12")
	l := newLocalizer(t, e, DefaultConfig())

	m, err := l.Locate(context.Background(), whitePage(), artwork, "r1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "12", m.Number)
	assert.Equal(t, ZoneBelow, m.Zone)
	assert.InDelta(t, 1.0, m.Score, 1e-9)
	assert.Equal(t, int32(1), e.calls.Load())
}

func TestLocateRejectsYears(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDigits = 4
	e := constant("1969")
	l := newLocalizer(t, e, cfg)

	m, err := l.Locate(context.Background(), whitePage(), artwork, "r1")
	require.NoError(t, err)
	assert.Nil(t, m)
	zones, attempts := len(cfg.Zones), len(cfg.OCR.PSMs)*len(cfg.OCR.Variants)
	assert.Equal(t, int32(zones*attempts), e.calls.Load())
}

func TestLocatePicksBestWeightedZone(t *testing.T) {
	// only tall crops (the side zones) carry a number
	e := &fakeEngine{answer: func(b image.Rectangle) string {
		if b.Dy() > b.Dx() {
			return "42"
		}
		return ""
	}}
	l := newLocalizer(t, e, DefaultConfig())

	m, err := l.Locate(context.Background(), whitePage(), artwork, "r1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "42", m.Number)
	assert.Equal(t, ZoneRight, m.Zone)
	assert.InDelta(t, 0.6, m.Score, 1e-9)
}

func TestLocateLengthBonus(t *testing.T) {
	cfg := DefaultConfig()
	e := constant("7")
	l := newLocalizer(t, e, cfg)

	m, err := l.Locate(context.Background(), whitePage(), artwork, "r1")
	require.NoError(t, err)
	require.NotNil(t, m)
	// 1.0 * 0.8 never reaches the early stop threshold
	assert.InDelta(t, 0.8, m.Score, 1e-9)
	assert.Greater(t, e.calls.Load(), int32(1))
}

func TestLocateUnavailable(t *testing.T) {
	l := newLocalizer(t, ocr.Unavailable{}, DefaultConfig())
	assert.False(t, l.Available())

	m, err := l.Locate(context.Background(), whitePage(), artwork, "r1")
	assert.Nil(t, m)
	assert.True(t, errors.Is(err, ocr.ErrUnavailable))
}

func TestLocateBudgetExhausted(t *testing.T) {
	l := newLocalizer(t, constant("7"), DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := l.Locate(ctx, whitePage(), artwork, "r1")
	assert.Nil(t, m)
	assert.True(t, errors.Is(err, ErrBudgetExhausted))
}

type recordingSink struct{ names []string }

func (r *recordingSink) Save(name string, _ image.Image, _ string) { r.names = append(r.names, name) }

func TestLocateWritesDebugCrops(t *testing.T) {
	sink := &recordingSink{}
	l, err := NewLocalizer(ocr.NewGuard(constant("12"), 0, 0), DefaultConfig(), sink)
	require.NoError(t, err)

	_, err = l.Locate(context.Background(), whitePage(), artwork, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1_below_otsu_psm7"}, sink.names)
}
