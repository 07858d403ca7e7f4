package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/artex/internal/coherence"
	"github.com/MeKo-Tech/artex/internal/testutil"
)

var start = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

func page(n, images int, ok bool) PageResult {
	r := coherence.New(coherence.DefaultLargeGap).Analyze(nil)
	res := PageResult{
		PageNumber:        n,
		Success:           ok,
		ImagesExtracted:   images,
		RectanglesFound:   images,
		RectanglesDetails: []RectangleDetail{},
		CoherenceAnalysis: &r,
		StartTime:         start.Format(TimeLayout),
		EndTime:           start.Format(TimeLayout),
	}
	if !ok {
		res.Error = "rasterization failed"
	}
	return res
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/data/Picasso Catalogue (1955).pdf", "Picasso_Catalogue_1955"},
		{"dubuffet-fascicule_3.pdf", "dubuffet-fascicule_3"},
		{"éé.pdf", "document"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanName(tt.in), tt.in)
	}
	assert.Equal(t, "cat_ULTRA_20240301_103000", SessionDirName("cat.pdf", start))
}

func TestCreateWritesManifest(t *testing.T) {
	root := t.TempDir()
	j, err := Create(root, "cat.pdf", testutil.FixedClock{T: start})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, RootDirName, "cat_ULTRA_20240301_103000"), j.Dir())
	m, err := ReadManifest(filepath.Join(j.Dir(), ManifestName))
	require.NoError(t, err)
	assert.Equal(t, "cat.pdf", m.PDFName)
	assert.Equal(t, Mode, m.Mode)
	assert.Equal(t, "2024-03-01T10:30:00Z", m.StartTime)
	assert.Empty(t, m.Pages)
	assert.True(t, filepath.IsAbs(m.PDFOriginalPath))
}

func TestRecordMergesByPage(t *testing.T) {
	j, err := Create(t.TempDir(), "cat.pdf", testutil.FixedClock{T: start})
	require.NoError(t, err)

	require.NoError(t, j.Record(page(3, 2, true)))
	require.NoError(t, j.Record(page(1, 0, false)))
	require.NoError(t, j.Record(page(3, 4, true)))

	m, err := ReadManifest(filepath.Join(j.Dir(), ManifestName))
	require.NoError(t, err)
	require.Len(t, m.Pages, 2)
	assert.Equal(t, 1, m.Pages[0].PageNumber)
	assert.Equal(t, 3, m.Pages[1].PageNumber)
	assert.Equal(t, 4, m.TotalImagesExtracted)
	assert.Equal(t, 1, m.SuccessPages)
	assert.Equal(t, 1, m.FailedPages)
	assert.Equal(t, 2, m.TotalPages)
	assert.Equal(t, "rasterization failed", m.Pages[0].Error)
	assert.Equal(t, 3, j.LastPage())

	entries, err := os.ReadDir(j.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestResumeContinuesSession(t *testing.T) {
	j, err := Create(t.TempDir(), "cat.pdf", testutil.FixedClock{T: start})
	require.NoError(t, err)
	require.NoError(t, j.Describe("picasso", "Pablo Picasso", 1, 4))
	require.NoError(t, j.Record(page(1, 1, true)))
	require.NoError(t, j.Record(page(2, 2, true)))
	j.SetSequence(7)
	require.NoError(t, j.Finish())

	r, err := Resume(j.Dir(), testutil.FixedClock{T: start.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 2, r.LastPage())
	assert.Equal(t, 7, r.FallbackSequence())
	assert.Empty(t, r.Manifest().EndTime)

	require.NoError(t, r.Record(page(3, 5, true)))
	require.NoError(t, r.Finish())
	m := r.Manifest()
	assert.Equal(t, 8, m.TotalImagesExtracted)
	assert.Equal(t, "picasso", m.Collection)
	assert.Equal(t, "2024-03-01T10:30:00Z", m.StartTime)
	assert.Equal(t, "2024-03-01T11:30:00Z", m.EndTime)
}

func TestResumeMissingManifest(t *testing.T) {
	_, err := Resume(t.TempDir(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPreparePageDirRemovesStaleFiles(t *testing.T) {
	j, err := Create(t.TempDir(), "cat.pdf", nil)
	require.NoError(t, err)

	dir, err := j.PreparePageDir(5)
	require.NoError(t, err)
	assert.Equal(t, "page_005", filepath.Base(dir))
	stale := filepath.Join(dir, "12.png")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))

	dir2, err := j.PreparePageDir(5)
	require.NoError(t, err)
	assert.Equal(t, dir, dir2)
	assert.NoFileExists(t, stale)
	assert.DirExists(t, dir2)
}

func TestPageDetailsAndPreview(t *testing.T) {
	j, err := Create(t.TempDir(), "cat.pdf", nil)
	require.NoError(t, err)
	_, err = j.PreparePageDir(1)
	require.NoError(t, err)

	require.NoError(t, j.WritePageDetails(1, PageDetails{
		PageNumber:     1,
		DPIUsed:        300,
		DetectorCounts: map[string]int{"ultra": 3, "color": 1},
	}))
	data, err := os.ReadFile(filepath.Join(j.PageDir(1), PageDetailsName))
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(data), `"color"`), strings.Index(string(data), `"ultra"`))

	img := testutil.BlankPages(1, 2400, 3200)[1]
	require.NoError(t, j.WritePreview(1, img, 80))
	assert.FileExists(t, filepath.Join(j.PageDir(1), PreviewName))
}

// Interrupting after any prefix of pages and resuming yields the same
// manifest pages as an uninterrupted run.
func TestResumeEquivalenceProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 30
	properties := gopter.NewProperties(params)

	properties.Property("resume after crash equals uninterrupted", prop.ForAll(
		func(images []int, cut int) bool {
			n := len(images)
			cut %= n + 1

			full, err := Create(t.TempDir(), "a.pdf", testutil.FixedClock{T: start})
			if err != nil {
				return false
			}
			for i, k := range images {
				if full.Record(page(i+1, k, k%3 != 0)) != nil {
					return false
				}
			}

			first, err := Create(t.TempDir(), "a.pdf", testutil.FixedClock{T: start})
			if err != nil {
				return false
			}
			for i := 0; i < cut; i++ {
				if first.Record(page(i+1, images[i], images[i]%3 != 0)) != nil {
					return false
				}
			}
			resumed, err := Resume(first.Dir(), testutil.FixedClock{T: start})
			if err != nil {
				return false
			}
			for i := resumed.LastPage(); i < n; i++ {
				if resumed.Record(page(i+1, images[i], images[i]%3 != 0)) != nil {
					return false
				}
			}

			a, b := full.Manifest(), resumed.Manifest()
			if len(a.Pages) != len(b.Pages) || a.TotalImagesExtracted != b.TotalImagesExtracted {
				return false
			}
			for i := range a.Pages {
				if a.Pages[i].PageNumber != b.Pages[i].PageNumber || a.Pages[i].ImagesExtracted != b.Pages[i].ImagesExtracted {
					return false
				}
			}
			return a.SuccessPages == b.SuccessPages
		},
		gen.SliceOfN(6, gen.IntRange(0, 9)),
		gen.IntRange(0, 6),
	))

	properties.TestingRun(t)
}
