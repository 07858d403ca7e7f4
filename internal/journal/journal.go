package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MeKo-Tech/artex/internal/utils"
)

// TimeLayout is used for every timestamp the journal writes.
const TimeLayout = time.RFC3339

// previewMaxSide bounds the stored page preview.
const previewMaxSide = 1600

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Journal is the single writer of a session manifest.
type Journal struct {
	dir      string
	clock    Clock
	manifest Manifest
}

// CleanName turns a PDF file name into a directory-safe stem.
func CleanName(pdfPath string) string {
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range base {
		ok := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-'
		if ok {
			sb.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			sb.WriteByte('_')
			lastUnderscore = true
		}
	}
	name := strings.Trim(sb.String(), "_")
	if name == "" {
		return "document"
	}
	return name
}

// SessionDirName returns <CLEAN>_ULTRA_<YYYYMMDD_HHMMSS>.
func SessionDirName(pdfPath string, t time.Time) string {
	return fmt.Sprintf("%s_ULTRA_%s", CleanName(pdfPath), t.Format("20060102_150405"))
}

// Create starts a new session under root/extractions_ultra. clock may be nil.
func Create(root, pdfPath string, clock Clock) (*Journal, error) {
	if clock == nil {
		clock = systemClock{}
	}
	abs, err := filepath.Abs(pdfPath)
	if err != nil {
		return nil, err
	}
	now := clock.Now()
	dir := filepath.Join(root, RootDirName, SessionDirName(pdfPath, now))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	j := &Journal{
		dir:   absDir,
		clock: clock,
		manifest: Manifest{
			PDFName:         filepath.Base(pdfPath),
			PDFOriginalPath: abs,
			SessionDir:      absDir,
			Mode:            Mode,
			StartTime:       now.Format(TimeLayout),
			Pages:           []PageResult{},
		},
	}
	if err := j.flush(); err != nil {
		return nil, err
	}
	slog.Info("Session created", "dir", absDir, "pdf", abs)
	return j, nil
}

// Resume reopens an existing session directory.
func Resume(dir string, clock Clock) (*Journal, error) {
	if clock == nil {
		clock = systemClock{}
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	m, err := ReadManifest(filepath.Join(absDir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("cannot resume session %s: %w", dir, err)
	}
	m.SessionDir = absDir
	m.EndTime = ""
	if m.Pages == nil {
		m.Pages = []PageResult{}
	}
	slog.Info("Session resumed", "dir", absDir, "pages", len(m.Pages), "last_page", lastPage(m.Pages))
	return &Journal{dir: absDir, clock: clock, manifest: *m}, nil
}

// ReadManifest loads a manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // session file
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// Dir returns the absolute session directory.
func (j *Journal) Dir() string { return j.dir }

// Manifest returns a copy of the current manifest.
func (j *Journal) Manifest() Manifest {
	m := j.manifest
	m.Pages = append([]PageResult(nil), j.manifest.Pages...)
	return m
}

// PageDirName returns page_NNN.
func PageDirName(page int) string { return fmt.Sprintf("page_%03d", page) }

// PageDir returns the absolute page directory.
func (j *Journal) PageDir(page int) string { return filepath.Join(j.dir, PageDirName(page)) }

// PreparePageDir removes what an interrupted run left for the page and
// creates an empty directory.
func (j *Journal) PreparePageDir(page int) (string, error) {
	dir := j.PageDir(page)
	if _, err := os.Stat(dir); err == nil {
		slog.Warn("Removing stale page directory", "page", page, "dir", dir)
		if err := os.RemoveAll(dir); err != nil {
			return "", fmt.Errorf("failed to remove stale page directory: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create page directory: %w", err)
	}
	return dir, nil
}

// Describe sets the session-wide fields.
func (j *Journal) Describe(collection, artist string, start, end int) error {
	j.manifest.Collection = collection
	j.manifest.Artist = artist
	if j.manifest.StartPage == 0 || start < j.manifest.StartPage {
		j.manifest.StartPage = start
	}
	j.manifest.EndPage = max(j.manifest.EndPage, end)
	return j.flush()
}

// SetTOC links the plates table.
func (j *Journal) SetTOC(info *TOCInfo) error {
	j.manifest.TOC = info
	return j.flush()
}

// SetSequence stores the fallback numbering counter.
func (j *Journal) SetSequence(n int) { j.manifest.FallbackSequence = n }

// FallbackSequence returns the stored fallback numbering counter.
func (j *Journal) FallbackSequence() int { return j.manifest.FallbackSequence }

// LastPage returns the highest page number recorded.
func (j *Journal) LastPage() int { return lastPage(j.manifest.Pages) }

func lastPage(pages []PageResult) int {
	last := 0
	for _, p := range pages {
		last = max(last, p.PageNumber)
	}
	return last
}

// Record merges a page result, replacing an earlier entry for the same
// page, and rewrites the manifest.
func (j *Journal) Record(res PageResult) error {
	pages := j.manifest.Pages[:0:0]
	for _, p := range j.manifest.Pages {
		if p.PageNumber != res.PageNumber {
			pages = append(pages, p)
		}
	}
	pages = append(pages, res)
	sort.SliceStable(pages, func(a, b int) bool { return pages[a].PageNumber < pages[b].PageNumber })
	j.manifest.Pages = pages
	j.recount()
	return j.flush()
}

func (j *Journal) recount() {
	m := &j.manifest
	m.TotalPages = len(m.Pages)
	m.TotalImagesExtracted, m.SuccessPages, m.FailedPages = 0, 0, 0
	for _, p := range m.Pages {
		m.TotalImagesExtracted += p.ImagesExtracted
		if p.Success {
			m.SuccessPages++
		} else {
			m.FailedPages++
		}
	}
}

// Finish stamps the end time and writes the manifest.
func (j *Journal) Finish() error {
	j.manifest.EndTime = j.clock.Now().Format(TimeLayout)
	return j.flush()
}

// flush writes the manifest atomically and syncs it.
func (j *Journal) flush() error {
	return writeJSONAtomic(filepath.Join(j.dir, ManifestName), j.manifest)
}

// WritePageDetails writes page_ultra_details.json.
func (j *Journal) WritePageDetails(page int, d PageDetails) error {
	return writeJSONAtomic(filepath.Join(j.PageDir(page), PageDetailsName), d)
}

// WritePreview stores a downscaled JPEG of the page.
func (j *Journal) WritePreview(page int, img image.Image, quality int) error {
	small, _, err := utils.ResizeToMaxSide(img, previewMaxSide)
	if err != nil {
		return err
	}
	return utils.SaveJPEG(filepath.Join(j.PageDir(page), PreviewName), small, quality)
}

// TOCPath returns the plates table file of the session.
func (j *Journal) TOCPath() string { return filepath.Join(j.dir, TOCName) }

// TOCUnparsedPath returns the debug file of unparsed table lines.
func (j *Journal) TOCUnparsedPath() string { return filepath.Join(j.dir, TOCUnparsedName) }

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	name := tmp.Name()
	_, werr := tmp.Write(data)
	serr := tmp.Sync()
	cerr := tmp.Close()
	if err := errors.Join(werr, serr, cerr); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
