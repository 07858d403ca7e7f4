package caption

import (
	"context"
	"image"
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/artex/internal/ocr"
	"github.com/MeKo-Tech/artex/internal/testutil"
	"github.com/MeKo-Tech/artex/internal/vocab"
)

const (
	teteDeFemme = "3 TÊTE DE FEMME. huile sur toile. 41 x 31 cm. 1969."
	paysage     = "5 PAYSAGE. gouache sur papier. 60 x 45 cm. mars 1970."
)

func intp(v int) *int           { return &v }
func strp(v string) *string     { return &v }
func floatp(v float64) *float64 { return &v }

func TestParseLegend(t *testing.T) {
	items := Parse(teteDeFemme, RegionBottom, 80)
	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, intp(3), it.Index)
	assert.Equal(t, strp("TÊTE DE FEMME"), it.Title)
	assert.Equal(t, strp("huile sur toile"), it.Medium)
	assert.Equal(t, floatp(41), it.WidthCM)
	assert.Equal(t, floatp(31), it.HeightCM)
	assert.Equal(t, strp("1969"), it.DateISO)
	assert.False(t, it.Approximate)
	assert.Equal(t, RegionBottom, it.Region)
	assert.InDelta(t, 40+30+20+40, it.Score, 1e-9)
}

func TestParseFrenchDate(t *testing.T) {
	items := Parse(paysage, RegionBottom, 90)
	require.Len(t, items, 1)
	assert.Equal(t, strp("gouache sur papier"), items[0].Medium)
	assert.Equal(t, strp("1970-03"), items[0].DateISO)
	assert.Equal(t, strp("mars 1970"), items[0].DateText)
	assert.Equal(t, floatp(60), items[0].WidthCM)
}

func TestParseSplitsLegends(t *testing.T) {
	text := "1 NU COUCHÉ. huile sur toile. 1950.\n2 FEMME ASSISE. gouache. vers 1951."
	items := Parse(text, RegionBottom, 70)
	require.Len(t, items, 2)
	assert.Equal(t, intp(1), items[0].Index)
	assert.Equal(t, strp("NU COUCHÉ"), items[0].Title)
	assert.Equal(t, intp(2), items[1].Index)
	assert.Equal(t, strp("gouache"), items[1].Medium)
	assert.True(t, items[1].Approximate)
	assert.Equal(t, strp("1951"), items[1].DateISO)
}

func TestParseUppercaseUnitIsNotALegend(t *testing.T) {
	items := Parse("3 TÊTE DE FEMME. HUILE SUR TOILE. 41 X 31 CM 1969.", RegionBottom, 80)
	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, intp(3), it.Index)
	assert.Equal(t, strp("huile sur toile"), it.Medium)
	assert.Equal(t, floatp(41), it.WidthCM)
	assert.Equal(t, floatp(31), it.HeightCM)
	assert.Equal(t, strp("1969"), it.DateISO)
}

func TestParseTitleWithoutTrailingYear(t *testing.T) {
	items := Parse("7 COMPOSITION 1950. gouache.", RegionBottom, 80)
	require.Len(t, items, 1)
	assert.Equal(t, strp("COMPOSITION"), items[0].Title)
	assert.Equal(t, strp("1950"), items[0].DateISO)

	// a number that is not a year stays in the title
	items = Parse("8 OPUS 12. gouache.", RegionBottom, 80)
	require.Len(t, items, 1)
	assert.Equal(t, strp("OPUS 12"), items[0].Title)
}

func TestParseNoise(t *testing.T) {
	assert.Empty(t, Parse("~~ :: ,,", RegionTop, 20))
	assert.Empty(t, Parse("", RegionTop, 0))

	items := Parse("Technique : lavis", RegionLeft, 50)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].Index)
	assert.Equal(t, strp("lavis"), items[0].Medium)
}

func TestMerge(t *testing.T) {
	items := []Item{
		{Index: intp(4), Score: 50, Region: RegionTop},
		{Index: intp(2), Score: 40},
		{Score: 30},
		{Index: intp(4), Score: 90, Region: RegionBottom},
		{Index: intp(4), Score: 90, Region: RegionLeft},
	}
	out := Merge(items)
	require.Len(t, out, 3)
	assert.Equal(t, 2, *out[0].Index)
	assert.Equal(t, 4, *out[1].Index)
	assert.Equal(t, RegionBottom, out[1].Region)
	assert.Nil(t, out[2].Index)

	res := &Result{Items: out}
	best, ok := res.Best()
	require.True(t, ok)
	assert.Equal(t, 90.0, best.Score)
}

func TestFormatRoundTrip(t *testing.T) {
	it := Parse(teteDeFemme, RegionBottom, 0)[0]
	assert.Equal(t, teteDeFemme, Format(it))

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	properties.Property("parsing a formatted legend restores its fields", prop.ForAll(
		func(index int, title string, medium string, w, h, year int) bool {
			title = "T" + title
			y := strconv.Itoa(year)
			in := Item{
				Index: &index, Title: &title, Medium: &medium,
				WidthCM: floatp(float64(w)), HeightCM: floatp(float64(h)),
				DateText: &y, DateISO: &y,
			}
			items := Parse(Format(in), RegionBottom, 0)
			if len(items) != 1 {
				return false
			}
			out := items[0]
			return *out.Index == index && *out.Title == title && *out.Medium == medium &&
				*out.WidthCM == float64(w) && *out.HeightCM == float64(h) && *out.DateISO == y
		},
		gen.IntRange(1, 999),
		gen.RegexMatch(`[A-Z]{1,12}`),
		gen.OneConstOf(toInterfaces(vocab.Media)...),
		gen.IntRange(1, 400),
		gen.IntRange(1, 400),
		gen.IntRange(1900, 2020),
	))
	properties.TestingRun(t)
}

func toInterfaces(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func TestBands(t *testing.T) {
	page := image.Rect(0, 0, 2000, 3000)
	bbox := image.Rect(500, 600, 1500, 2000)
	bands := Bands(bbox, page, DefaultConfig())
	require.Len(t, bands, 4)

	assert.Equal(t, RegionBottom, bands[0].Region)
	assert.Equal(t, image.Rect(450, 2000, 1550, 2240), bands[0].Rect)
	assert.Equal(t, RegionTop, bands[1].Region)
	assert.Equal(t, image.Rect(450, 360, 1550, 600), bands[1].Rect)
	assert.Equal(t, RegionRight, bands[2].Region)
	assert.Equal(t, image.Rect(1500, 600, 1700, 2000), bands[2].Rect)
	assert.Equal(t, RegionLeft, bands[3].Region)
	assert.Equal(t, image.Rect(300, 600, 500, 2000), bands[3].Rect)

	t.Run("minimum thickness", func(t *testing.T) {
		small := Bands(image.Rect(300, 300, 500, 500), image.Rect(0, 0, 1000, 1000), DefaultConfig())
		require.Len(t, small, 4)
		assert.Equal(t, 180, small[0].Rect.Dy())
		assert.Equal(t, 200, small[2].Rect.Dx())
	})

	t.Run("clipped at page edge", func(t *testing.T) {
		assert.Empty(t, Bands(image.Rect(0, 0, 1000, 995), image.Rect(0, 0, 1000, 1000), DefaultConfig()))
		partial := Bands(image.Rect(0, 0, 600, 500), image.Rect(0, 0, 1000, 1000), DefaultConfig())
		require.Len(t, partial, 2)
		assert.Equal(t, RegionBottom, partial[0].Region)
		assert.Equal(t, RegionRight, partial[1].Region)
	})
}

func TestEstimateArtworkBBox(t *testing.T) {
	box := image.Rect(100, 100, 400, 500)
	page := testutil.DrawPage(testutil.Page{W: 800, H: 1000, Artworks: []testutil.Artwork{{Box: box, Number: "7"}}})
	est, ok := EstimateArtworkBBox(page)
	require.True(t, ok)
	assert.True(t, box.In(est), "estimate %v should contain %v", est, box)
	assert.True(t, est.In(image.Rect(90, 90, 410, 510)), "estimate %v too large", est)

	_, ok = EstimateArtworkBBox(testutil.DrawPage(testutil.Page{W: 200, H: 200}))
	assert.False(t, ok)
}

func newReader(engine ocr.Engine) *Reader {
	return NewReader(ocr.NewGuard(engine, time.Second, 2*time.Second), DefaultConfig(), nil)
}

func drawnPage() (*image.RGBA, image.Rectangle) {
	box := image.Rect(200, 200, 900, 1100)
	return testutil.DrawPage(testutil.Page{W: 1200, H: 1600, Artworks: []testutil.Artwork{{Box: box, Caption: []string{paysage}}}}), box
}

func TestReaderStopsOnCompleteLegend(t *testing.T) {
	engine := &testutil.FakeOCR{Text: paysage}
	page, box := drawnPage()

	res, err := newReader(engine).Read(context.Background(), page, box, "p1_r1")
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, RegionBottom, res.BestRegion)
	best, ok := res.Best()
	require.True(t, ok)
	assert.Equal(t, 5, *best.Index)
	assert.Equal(t, "1970-03", *best.DateISO)
	assert.Equal(t, 3, engine.Calls())
}

func TestReaderSearchesAllBands(t *testing.T) {
	engine := &testutil.FakeOCR{Text: "illisible"}
	page, box := drawnPage()

	res, err := newReader(engine).Read(context.Background(), page, box, "p1_r1")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Empty(t, res.Items)
	assert.Equal(t, 12, engine.Calls())
}

func TestReaderEstimatesBBox(t *testing.T) {
	engine := &testutil.FakeOCR{Text: teteDeFemme}
	page, _ := drawnPage()
	res, err := newReader(engine).Read(context.Background(), page, image.Rectangle{}, "p1")
	require.NoError(t, err)
	assert.True(t, res.Found)
}

func TestReaderUnavailable(t *testing.T) {
	page, box := drawnPage()
	res, err := newReader(&testutil.FakeOCR{Disabled: true}).Read(context.Background(), page, box, "p1")
	assert.ErrorIs(t, err, ocr.ErrUnavailable)
	assert.False(t, res.Found)
}

func TestReaderTimeoutMovesOn(t *testing.T) {
	engine := &testutil.FakeOCR{Text: paysage, Hang: 300 * time.Millisecond}
	r := NewReader(ocr.NewGuard(engine, 50*time.Millisecond, 100*time.Millisecond), DefaultConfig(), nil)
	page, box := drawnPage()

	start := time.Now()
	res, err := r.Read(context.Background(), page, box, "p1")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Less(t, time.Since(start), 2*time.Second)
}

type recordingSink struct{ names []string }

func (s *recordingSink) Save(name string, _ image.Image, _ string) { s.names = append(s.names, name) }

func TestReaderDebugSink(t *testing.T) {
	sink := &recordingSink{}
	r := NewReader(ocr.NewGuard(&testutil.FakeOCR{Text: paysage}, time.Second, 2*time.Second), DefaultConfig(), sink)
	page, box := drawnPage()
	_, err := r.Read(context.Background(), page, box, "p1_r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1_r1_caption_bottom_psm6", "p1_r1_caption_bottom_psm4", "p1_r1_caption_bottom_psm11"}, sink.names)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{BandRatio: 0.9}.Validate())
	assert.Error(t, Config{MinBandVertical: -1}.Validate())
}
