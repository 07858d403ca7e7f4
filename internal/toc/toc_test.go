package toc

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/artex/internal/ocr"
	"github.com/MeKo-Tech/artex/internal/testutil"
)

const flutePan = "  12 LA FLUTE DE PAN. Dessin. 1969. 50 × 40 cm. .................... 55"

func TestParseLineDottedLeader(t *testing.T) {
	e, ok := ParseLine(flutePan)
	require.True(t, ok)
	assert.Equal(t, 12, e.Number)
	assert.Equal(t, "LA FLUTE DE PAN", e.Title)
	require.NotNil(t, e.Page)
	assert.Equal(t, 55, *e.Page)
	assert.Equal(t, "dessin", e.Extras.Medium)
	assert.Equal(t, "1969", e.Extras.ExecutionYear)
	require.NotNil(t, e.Extras.SizeFromTOC)
	assert.Equal(t, [2]float64{50, 40}, *e.Extras.SizeFromTOC)
	assert.Equal(t, strings.TrimSpace(flutePan), e.RawLine)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		ok      bool
		number  int
		title   string
		page    int
		medium  string
		year    string
		hasSize bool
	}{
		{"no page", "3 NATURE MORTE. Huile sur toile. 1944.", true, 3, "NATURE MORTE", 0, "huile sur toile", "1944", false},
		{"accented title", "7 TÊTE DE FEMME. Gouache. ........ 21", true, 7, "TÊTE DE FEMME", 21, "gouache", "", false},
		{"leader only", "33 BAIGNEUSE ...... 40", true, 33, "BAIGNEUSE", 40, "", "", false},
		{"mixed case", "140 Le Peintre et son modèle.", true, 140, "Le Peintre et son modèle", 0, "", "", false},
		{"decimal size", "9 ARLEQUIN. Crayon. 32,5 x 24 cm. .... 14", true, 9, "ARLEQUIN", 14, "crayon", "", true},
		{"no dot", "7 MAQUETTE sans point", false, 0, "", 0, "", "", false},
		{"lowercase start", "12 la flute. ..... 3", false, 0, "", 0, "", "", false},
		{"no number", "LA FLUTE DE PAN. Dessin.", false, 0, "", 0, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := ParseLine(tt.line)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.number, e.Number)
			assert.Equal(t, tt.title, e.Title)
			if tt.page > 0 {
				require.NotNil(t, e.Page)
				assert.Equal(t, tt.page, *e.Page)
			} else {
				assert.Nil(t, e.Page)
			}
			assert.Equal(t, tt.medium, e.Extras.Medium)
			assert.Equal(t, tt.year, e.Extras.ExecutionYear)
			assert.Equal(t, tt.hasSize, e.Extras.SizeFromTOC != nil)
		})
	}
}

func TestCleanTitleTruncates(t *testing.T) {
	long := strings.Repeat("É", 60)
	assert.Equal(t, 50, len([]rune(cleanTitle(long))))
	assert.Equal(t, "PAYSAGE", cleanTitle(" - PAYSAGE, "))
	assert.Equal(t, "A", cleanTitle("A. B"))
}

func TestParsePage(t *testing.T) {
	headings, err := compileHeadings(nil)
	require.NoError(t, err)

	t.Run("heading skips earlier lines", func(t *testing.T) {
		text := "4 AVANT-PROPOS. Texte.\nTable des planches\n1 COMPOSITION. Huile. .... 3\n2 FIGURE. Encre. .... 5\n"
		pp := parsePage(text, headings)
		require.True(t, pp.isTOC)
		require.Len(t, pp.entries, 2)
		assert.Equal(t, 1, pp.entries[0].Number)
		assert.Equal(t, 2, pp.entries[1].Number)
	})

	t.Run("continuation page", func(t *testing.T) {
		text := "33 BAIGNEUSE ...... 40\n34 CORRIDA ...... 41\n"
		pp := parsePage(text, headings)
		require.True(t, pp.isTOC)
		require.Len(t, pp.entries, 2)
		assert.Equal(t, "BAIGNEUSE", pp.entries[0].Title)
		require.NotNil(t, pp.entries[1].Page)
		assert.Equal(t, 41, *pp.entries[1].Page)
		assert.Empty(t, pp.unparsed)
	})

	t.Run("dotted entries without heading", func(t *testing.T) {
		text := strings.Join([]string{
			"20 FAUNE. Dessin. 1960. .... 30",
			"21 CENTAURE. Dessin. 1960. .... 31",
			"22 MINOTAURE. Encre. 1961. .... 32",
		}, "\n")
		pp := parsePage(text, headings)
		require.True(t, pp.isTOC)
		assert.Len(t, pp.entries, 3)
	})

	t.Run("ordinary page", func(t *testing.T) {
		pp := parsePage("Picasso peint en 1969 une série de mousquetaires.", headings)
		assert.False(t, pp.isTOC)
	})
}

func tocText(lines ...string) string {
	return "TABLE DES PLANCHES\n" + strings.Join(lines, "\n") + "\n"
}

func TestExtractFromTextLayer(t *testing.T) {
	text := testutil.FakeTextReader{
		3: "Première page de texte courant sans table, avec assez de caractères.",
		5: tocText(flutePan, "5 PAYSAGE. Gouache. 1950. ..... 9", "12 DOUBLON. Encre. ..... 60", "8 MAQUETTE sans point"),
		6: "13 GUITARE. Collage. 1913. ..... 70\n14 VIOLON. Collage. 1913. ..... 71\n15 BOUTEILLE. Collage. 1914. ..... 72\n",
	}
	x, err := NewExtractor(Config{LastN: 4}, text, testutil.FakeGeometry{Pages: 6}, nil, nil, NewCache())
	require.NoError(t, err)

	r, err := x.Extract(context.Background(), "catalogue.pdf")
	require.NoError(t, err)
	assert.Equal(t, MethodTextLayer, r.Method)
	assert.Equal(t, []int{5, 6}, r.Pages)
	assert.Equal(t, []int{5, 12, 13, 14, 15}, r.Entries.Numbers())

	e, ok := r.Entries.Lookup(12)
	require.True(t, ok)
	assert.Equal(t, "LA FLUTE DE PAN", e.Title)
	assert.True(t, filepath.IsAbs(r.SourcePDF))

	assert.True(t, r.Partial())
	assert.Equal(t, []string{"8 MAQUETTE sans point"}, r.Unparsed)

	_, ok = r.Entries.Lookup(99)
	assert.False(t, ok)
}

func TestExtractNotFound(t *testing.T) {
	text := testutil.FakeTextReader{1: "Une préface sans aucune table des matières, mais assez longue pour compter."}
	x, err := NewExtractor(DefaultConfig(), text, testutil.FakeGeometry{Pages: 1}, nil, nil, nil)
	require.NoError(t, err)

	r, err := x.Extract(context.Background(), "preface.pdf")
	require.ErrorIs(t, err, ErrNotFound)
	require.NotNil(t, r)
	assert.Empty(t, r.Entries)
}

func TestExtractSkipsShortPages(t *testing.T) {
	text := testutil.FakeTextReader{1: "TABLE DES PLANCHES\n1 A. ... 2"}
	x, err := NewExtractor(DefaultConfig(), text, testutil.FakeGeometry{Pages: 1}, nil, nil, nil)
	require.NoError(t, err)
	_, err = x.Extract(context.Background(), "short.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtractOCRFallback(t *testing.T) {
	engine := &testutil.FakeOCR{Text: tocText(flutePan, "13 GUITARE. Collage. 1913. ..... 70")}
	guard := ocr.NewGuard(engine, time.Second, 2*time.Second)
	raster := &testutil.FakeRasterizer{Pages: testutil.BlankPages(3, 100, 140)}

	x, err := NewExtractor(Config{LastN: 2}, testutil.FakeTextReader{}, testutil.FakeGeometry{Pages: 3}, raster, guard, nil)
	require.NoError(t, err)

	r, err := x.Extract(context.Background(), "scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, MethodOCR, r.Method)
	assert.Equal(t, []int{2, 3}, r.Pages)
	assert.Equal(t, []int{12, 13}, r.Entries.Numbers())
	assert.Equal(t, []int{200, 200}, raster.DPIs())
	assert.Equal(t, 2, engine.Calls())
}

func TestExtractWithoutOCRFallback(t *testing.T) {
	guard := ocr.NewGuard(&testutil.FakeOCR{Disabled: true}, time.Second, 2*time.Second)
	raster := &testutil.FakeRasterizer{Pages: testutil.BlankPages(1, 10, 10)}
	x, err := NewExtractor(DefaultConfig(), testutil.FakeTextReader{}, testutil.FakeGeometry{Pages: 1}, raster, guard, nil)
	require.NoError(t, err)

	_, err = x.Extract(context.Background(), "scan.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, raster.DPIs())
}

func TestExtractUsesCache(t *testing.T) {
	cache := NewCache()
	text := testutil.FakeTextReader{1: tocText(flutePan)}
	x, err := NewExtractor(DefaultConfig(), text, testutil.FakeGeometry{Pages: 1}, nil, nil, cache)
	require.NoError(t, err)

	first, err := x.Extract(context.Background(), "cached.pdf")
	require.NoError(t, err)

	text[1] = tocText("40 AUTRE. Dessin. 1950. 20 x 30 cm. ..... 2")
	second, err := x.Extract(context.Background(), "cached.pdf")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Len())

	other, err := NewExtractor(Config{LastN: 3}, text, testutil.FakeGeometry{Pages: 1}, nil, nil, cache)
	require.NoError(t, err)
	third, err := other.Extract(context.Background(), "cached.pdf")
	require.NoError(t, err)
	assert.Equal(t, []int{40}, third.Entries.Numbers())
	assert.Equal(t, 2, cache.Len())
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x, err := NewExtractor(DefaultConfig(), testutil.FakeTextReader{1: tocText(flutePan)}, testutil.FakeGeometry{Pages: 1}, nil, nil, nil)
	require.NoError(t, err)
	_, err = x.Extract(ctx, "x.pdf")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewExtractorRejectsBadHeading(t *testing.T) {
	_, err := NewExtractor(Config{HeadingPatterns: []string{"("}}, testutil.FakeTextReader{}, testutil.FakeGeometry{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestParseText(t *testing.T) {
	assert.Equal(t, []int{12}, ParseText(tocText(flutePan)).Numbers())
	assert.Empty(t, ParseText("rien"))
}

func TestWriteAndReadFile(t *testing.T) {
	dir := t.TempDir()
	r := &Result{SourcePDF: "/tmp/c.pdf", Method: MethodTextLayer, Pages: []int{5}, Entries: ParseText(tocText(flutePan))}
	path := filepath.Join(dir, "sommaire_planches.json")
	require.NoError(t, WriteFile(path, r))

	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, r.Entries, back.Entries)
	assert.Equal(t, r.Pages, back.Pages)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_entries": 1`)

	r.Unparsed = []string{"8 MAQUETTE"}
	debug := filepath.Join(dir, "toc_unparsed.txt")
	require.NoError(t, WriteUnparsed(debug, r))
	data, err = os.ReadFile(debug)
	require.NoError(t, err)
	assert.Equal(t, "8 MAQUETTE\n", string(data))
}

func TestUnmarshalRejectsDuplicates(t *testing.T) {
	_, err := Unmarshal([]byte(`{"entries":[{"number":1,"title":"A"},{"number":1,"title":"B"}]}`))
	assert.Error(t, err)
}

func TestRoundTripProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	genEntry := gopter.CombineGens(
		gen.IntRange(1, 400),
		gen.Identifier(),
		gen.IntRange(0, 300),
		gen.Float64Range(1, 300),
	).Map(func(v []interface{}) Entry {
		e := Entry{Number: v[0].(int), Title: strings.ToUpper(v[1].(string))}
		if p := v[2].(int); p > 0 {
			e.Page = &p
			size := [2]float64{v[3].(float64), float64(p)}
			e.Extras.SizeFromTOC = &size
			e.Extras.Medium = "gouache"
		}
		return e
	})

	properties.Property("serialized tables parse back unchanged", prop.ForAll(
		func(entries []Entry) bool {
			table, _ := build(entries)
			data, err := Marshal(&Result{Entries: table})
			if err != nil {
				return false
			}
			back, err := Unmarshal(data)
			if err != nil {
				return false
			}
			return reflect.DeepEqual(table, back.Entries)
		},
		gen.SliceOf(genEntry),
	))

	properties.Property("numbers are unique and ascending", prop.ForAll(
		func(entries []Entry) bool {
			table, _ := build(entries)
			for i := 1; i < len(table); i++ {
				if table[i-1].Number >= table[i].Number {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genEntry),
	))

	properties.TestingRun(t)
}
