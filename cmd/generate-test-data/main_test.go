package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/artex/internal/pdf"
)

func readFixture(t *testing.T, path string) fixture {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var f fixture
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestGenerateCatalogs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalogs")
	require.NoError(t, generateCatalogs(dir))

	for _, name := range []string{"plates_catalog", "caption_catalog"} {
		f := readFixture(t, filepath.Join(dir, name+".json"))
		assert.Equal(t, name+".pdf", f.PDF)
		assert.NotEmpty(t, f.Artworks)

		n, err := pdf.NewPdfcpuGeometry().PageCount(filepath.Join(dir, f.PDF))
		require.NoError(t, err)
		assert.Equal(t, f.Pages, n, name)
	}

	plates := readFixture(t, filepath.Join(dir, "plates_catalog.json"))
	assert.Equal(t, "picasso-like", plates.Collection)
	assert.Len(t, plates.Artworks, 5)
	assert.Equal(t, 6, plates.Pages)
}

func TestGeneratePageImages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pages")
	require.NoError(t, generatePageImages(dir))

	for _, name := range []string{"single_artwork", "two_artworks", "grid", "blank_frame", "captioned"} {
		assert.FileExists(t, filepath.Join(dir, name+".png"))
	}
}
