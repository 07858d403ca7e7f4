package pdf

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		w, h float64
		want string
	}{
		{"A4 portrait", 210, 297, FormatA4},
		{"A4 landscape", 297, 210, FormatA4},
		{"A4 within tolerance", 214, 293, FormatA4},
		{"A5", 148, 210, FormatA5},
		{"A3", 297, 420, FormatA3},
		{"Letter", 215.9, 279.4, FormatLetter},
		{"custom", 240, 310, FormatCustom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.w, tt.h))
		})
	}
}

func TestNewPageGeometry(t *testing.T) {
	g := NewPageGeometry(3, 595.28, 841.89)
	assert.Equal(t, 3, g.Page)
	assert.InDelta(t, 210, g.WidthMM, 0.1)
	assert.InDelta(t, 297, g.HeightMM, 0.1)
	assert.Equal(t, FormatA4, g.Format)

	w, h := g.PixelSize(72)
	assert.Equal(t, 595, w)
	assert.Equal(t, 842, h)
}

func TestDPIPolicy(t *testing.T) {
	mm := func(w, h float64) PageGeometry { return NewPageGeometry(1, w/mmPerPoint, h/mmPerPoint) }
	tests := []struct {
		name   string
		g      PageGeometry
		policy DPIPolicy
		want   int
	}{
		{"A5 surface", mm(148, 200), DPIPolicy{}, 500},
		{"A4 surface", mm(210, 297), DPIPolicy{}, 400},
		{"A3 surface", mm(297, 420), DPIPolicy{}, 350},
		{"large", mm(420, 594), DPIPolicy{}, 300},
		{"ultra floor", mm(420, 594), UltraPolicy(), 400},
		{"ultra keeps higher", mm(148, 200), UltraPolicy(), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Choose(tt.g))
		})
	}
}

// flakyRasterizer fails a fixed number of times before succeeding.
type flakyRasterizer struct {
	failures int
	dpis     []int
}

func (f *flakyRasterizer) Name() string { return "flaky" }

func (f *flakyRasterizer) Rasterize(_ context.Context, _ string, _ int, dpi int) (image.Image, error) {
	f.dpis = append(f.dpis, dpi)
	if len(f.dpis) <= f.failures {
		return nil, errors.New("boom")
	}
	return image.NewRGBA(image.Rect(0, 0, dpi, dpi)), nil
}

func TestRasterizeWithRetry(t *testing.T) {
	r := &flakyRasterizer{failures: 2}
	img, dpi, err := RasterizeWithRetry(context.Background(), r, "x.pdf", 1, 400, 2)
	require.NoError(t, err)
	assert.Equal(t, 150, dpi)
	assert.Equal(t, []int{400, 200, 150}, r.dpis)
	assert.Equal(t, 150, img.Bounds().Dx())

	r = &flakyRasterizer{failures: 10}
	_, _, err = RasterizeWithRetry(context.Background(), r, "x.pdf", 4, 300, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRasterize))
	assert.Equal(t, []int{300, 150, 150}, r.dpis)
}

func TestRasterizeWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &flakyRasterizer{failures: 10}
	_, _, err := RasterizeWithRetry(ctx, r, "x.pdf", 1, 400, 2)
	assert.True(t, errors.Is(err, ErrRasterize))
	assert.Len(t, r.dpis, 1)
}

func TestChainRasterizer(t *testing.T) {
	chain := ChainRasterizer{&flakyRasterizer{failures: 1}, &flakyRasterizer{}}
	img, err := chain.Rasterize(context.Background(), "x.pdf", 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())

	_, err = ChainRasterizer{}.Rasterize(context.Background(), "x.pdf", 1, 100)
	assert.Error(t, err)
}

func TestPdftoppmArgs(t *testing.T) {
	p := NewPdftoppmRasterizer("")
	assert.Equal(t, "pdftoppm", p.path)
	assert.Equal(t,
		[]string{"-png", "-r", "400", "-f", "7", "-l", "7", "-singlefile", "in.pdf", "/tmp/page"},
		p.args("in.pdf", "/tmp/page", 7, 400))
}

type mapReader struct {
	name  string
	pages map[int]string
	err   error
}

func (m mapReader) Name() string { return m.name }

func (m mapReader) PageText(_ context.Context, _ string, page int) (string, error) {
	return m.pages[page], m.err
}

func TestChainTextReader(t *testing.T) {
	chain := ChainTextReader{
		mapReader{name: "a", pages: map[int]string{1: "  "}},
		mapReader{name: "b", pages: map[int]string{1: "TABLE DES PLANCHES"}},
	}
	text, err := chain.PageText(context.Background(), "x.pdf", 1)
	require.NoError(t, err)
	assert.Equal(t, "TABLE DES PLANCHES", text)

	text, err = chain.PageText(context.Background(), "x.pdf", 2)
	require.NoError(t, err)
	assert.Empty(t, text)

	failing := ChainTextReader{mapReader{name: "a", err: errors.New("bad xref")}}
	_, err = failing.PageText(context.Background(), "x.pdf", 1)
	assert.Error(t, err)
}

func TestJoinRow(t *testing.T) {
	tests := []struct {
		name string
		runs []glyph
		want string
	}{
		{
			name: "word gaps become spaces, touching runs join",
			runs: []glyph{
				{x: 10, w: 6, size: 10, s: "12"},
				{x: 20, w: 20, size: 10, s: "LA"},
				{x: 44, w: 10, size: 10, s: "FL"},
				{x: 54, w: 10, size: 10, s: "UTE"},
			},
			want: "12 LA FLUTE",
		},
		{
			name: "kerning below the threshold stays joined",
			runs: []glyph{
				{x: 0, w: 10, size: 10, s: "TE"},
				{x: 11, w: 10, size: 10, s: "TE"},
			},
			want: "TETE",
		},
		{
			name: "runs carrying their own space are not doubled",
			runs: []glyph{
				{x: 0, w: 10, size: 10, s: "LA"},
				{x: 20, w: 10, size: 10, s: " FLUTE"},
			},
			want: "LA FLUTE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, joinRow(tt.runs))
		})
	}
}

func TestPdfcpuGeometryCachesDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n"), 0o600))

	reads := 0
	g := &PdfcpuGeometry{readDims: func(string) ([]PageGeometry, error) {
		reads++
		return []PageGeometry{NewPageGeometry(1, 595.28, 841.89), NewPageGeometry(2, 419.53, 595.28)}, nil
	}}

	first, err := g.PageSize(path, 1)
	require.NoError(t, err)
	assert.Equal(t, FormatA4, first.Format)
	second, err := g.PageSize(path, 2)
	require.NoError(t, err)
	assert.Equal(t, FormatA5, second.Format)
	assert.Equal(t, 2, second.Page)
	assert.Equal(t, 1, reads)

	_, err = g.PageSize(path, 3)
	assert.Error(t, err)
	assert.Equal(t, 1, reads)

	// a rewritten file is read again
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n%changed\n"), 0o600))
	_, err = g.PageSize(path, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, reads)

	_, err = g.PageSize(filepath.Join(t.TempDir(), "missing.pdf"), 1)
	assert.Error(t, err)
}

func TestTextFromContent(t *testing.T) {
	stream := []byte(`BT
/F1 12 Tf
72 700 Td
(12 LA FLUTE DE PAN. Dessin. \(1969\)) Tj
0 -14 Td
[(13 T) -20 (\311TE)] TJ
ET`)
	assert.Equal(t, "12 LA FLUTE DE PAN. Dessin. (1969)\n13 TÉTE", textFromContent(stream))
}

func TestUnescapeLiteral(t *testing.T) {
	assert.Equal(t, "a\nb", unescapeLiteral([]byte(`a\nb`)))
	assert.Equal(t, `a\b`, unescapeLiteral([]byte(`a\\b`)))
	assert.Equal(t, "é", unescapeLiteral([]byte(`\351`)))
}

func TestSelectPages(t *testing.T) {
	pages, err := SelectPages(10, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 5, 6}, pages)

	pages, err = SelectPages(5, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, pages)

	pages, err = SelectPages(5, 4, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, pages)

	_, err = SelectPages(5, 6, 1)
	assert.Error(t, err)
}

func TestLastPages(t *testing.T) {
	assert.Equal(t, []int{8, 9, 10}, LastPages(10, 3))
	assert.Equal(t, []int{1, 2}, LastPages(2, 15))
}

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"3", []int{3}, false},
		{"1-3", []int{1, 2, 3}, false},
		{"1, 4-5", []int{1, 4, 5}, false},
		{"5-3", nil, true},
		{"x", nil, true},
		{"0", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePageRange(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsPasswordError(t *testing.T) {
	assert.False(t, IsPasswordError(nil))
	assert.True(t, IsPasswordError(ErrPasswordRequired))
	assert.True(t, IsPasswordError(errors.New("pdfcpu: please provide the correct password")))
	assert.False(t, IsPasswordError(errors.New("bad xref")))
}

func TestDecryptMissingFile(t *testing.T) {
	_, cleanup, err := Decrypt(filepath.Join(t.TempDir(), "missing.pdf"), "")
	assert.Error(t, err)
	assert.NotNil(t, cleanup)
}

func TestLoadImagesSkipsNonImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	imgs, err := loadImages(dir)
	require.NoError(t, err)
	assert.Empty(t, imgs)
}
