package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/artex/internal/assemble"
	"github.com/MeKo-Tech/artex/internal/caption"
	"github.com/MeKo-Tech/artex/internal/coherence"
	"github.com/MeKo-Tech/artex/internal/pipeline"
	"github.com/MeKo-Tech/artex/internal/testutil"
	"github.com/MeKo-Tech/artex/internal/toc"
)

// RegisterSteps registers every step definition of the suite.
func (testCtx *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	// Given
	sc.Step(`^a (\d+)-page catalog named "([^"]*)"$`, testCtx.aCatalogNamed)
	sc.Step(`^page (\d+) shows an artwork numbered "([^"]*)"$`, testCtx.pageShowsAnArtworkNumbered)
	sc.Step(`^page (\d+) shows an artwork with the caption "([^"]*)"$`, testCtx.pageShowsAnArtworkWithCaption)
	sc.Step(`^page (\d+) shows a blank frame$`, testCtx.pageShowsABlankFrame)
	sc.Step(`^a rectangle of (\d+)x(\d+) pixels is detected$`, testCtx.aRectangleIsDetected)
	sc.Step(`^page (\d+) has the text layer:$`, testCtx.pageHasTheTextLayer)
	sc.Step(`^the OCR reads digits "([^"]*)"$`, testCtx.theOCRReadsDigits)
	sc.Step(`^the OCR reads text "([^"]*)"$`, testCtx.theOCRReadsText)
	sc.Step(`^OCR is disabled$`, testCtx.ocrIsDisabled)
	sc.Step(`^OCR calls hang for (\d+)ms and the page budget is (\d+)ms$`, testCtx.ocrCallsHang)
	sc.Step(`^page (\d+) cannot be rasterized$`, testCtx.pageCannotBeRasterized)

	// When
	sc.Step(`^I extract the catalog$`, testCtx.iExtractTheCatalog)
	sc.Step(`^I extract the catalog as "([^"]*)"$`, testCtx.iExtractTheCatalogAs)
	sc.Step(`^I extract at most (\d+) pages?$`, testCtx.iExtractAtMostPages)
	sc.Step(`^I resume the session from page (\d+)$`, testCtx.iResumeTheSessionFromPage)
	sc.Step(`^the numbers "([^"]*)" are found on a page$`, testCtx.theNumbersAreFoundOnAPage)
	sc.Step(`^the caption "([^"]*)" is parsed$`, testCtx.theCaptionIsParsed)
	sc.Step(`^the plates table line "([^"]*)" is parsed$`, testCtx.thePlatesTableLineIsParsed)

	// Then
	sc.Step(`^the extraction succeeds$`, testCtx.theExtractionSucceeds)
	sc.Step(`^the record "([^"]*)" of page (\d+) has:$`, testCtx.theRecordHas)
	sc.Step(`^page (\d+) has no records$`, testCtx.pageHasNoRecords)
	sc.Step(`^no records are written$`, testCtx.noRecordsAreWritten)
	sc.Step(`^page (\d+) is recorded as (successful|failed)$`, testCtx.pageIsRecordedAs)
	sc.Step(`^page (\d+) has (\d+) extracted images?$`, testCtx.pageHasExtractedImages)
	sc.Step(`^page (\d+) found (\d+) rectangles?$`, testCtx.pageFoundRectangles)
	sc.Step(`^page (\d+) has no artwork numbers$`, testCtx.pageHasNoArtworkNumbers)
	sc.Step(`^page (\d+) warns "([^"]*)"$`, testCtx.pageWarns)
	sc.Step(`^page (\d+) skipped a rectangle as "([^"]*)"$`, testCtx.pageSkippedARectangleAs)
	sc.Step(`^the crop of page (\d+) is doubtful with reason "([^"]*)"$`, testCtx.theCropIsDoubtful)
	sc.Step(`^the manifest reports (\d+) successful and (\d+) failed pages?$`, testCtx.theManifestReports)
	sc.Step(`^the manifest lists pages "([^"]*)"$`, testCtx.theManifestListsPages)
	sc.Step(`^every kept crop has one image file and one detail entry$`, testCtx.everyKeptCropIsPersistedOnce)
	sc.Step(`^doubtful crops are exactly the files in the doubtful folder$`, testCtx.doubtfulCropsAreSegregated)
	sc.Step(`^the sequence is not sequential$`, testCtx.theSequenceIsNotSequential)
	sc.Step(`^the gaps are "([^"]*)"$`, testCtx.theGapsAre)
	sc.Step(`^a duplicate of (\d+) appears (\d+) times$`, testCtx.aDuplicateAppears)
	sc.Step(`^a large gap from (\d+) to (\d+) of size (\d+) is reported$`, testCtx.aLargeGapIsReported)
	sc.Step(`^the caption has:$`, testCtx.theCaptionHas)
	sc.Step(`^the entry has number (\d+), title "([^"]*)" and page (\d+)$`, testCtx.theEntryHas)
}

func (testCtx *TestContext) aCatalogNamed(pages int, name string) error {
	testCtx.Pages = pages
	testCtx.PDFPath = filepath.Join(testCtx.TempDir, name)
	return os.WriteFile(testCtx.PDFPath, []byte("%PDF-1.4\n"), 0o600)
}

func (testCtx *TestContext) pageShowsAnArtworkNumbered(page int, number string) error {
	testCtx.Artworks[page] = append(testCtx.Artworks[page], testutil.Artwork{Box: artworkBox, Number: number})
	testCtx.addBox(artworkBox)
	return nil
}

func (testCtx *TestContext) pageShowsAnArtworkWithCaption(page int, legend string) error {
	testCtx.Artworks[page] = append(testCtx.Artworks[page], testutil.Artwork{Box: artworkBox, Caption: []string{legend}})
	testCtx.addBox(artworkBox)
	return nil
}

func (testCtx *TestContext) pageShowsABlankFrame(page int) error {
	testCtx.Artworks[page] = append(testCtx.Artworks[page], testutil.Artwork{Box: artworkBox, Blank: true})
	testCtx.addBox(artworkBox)
	return nil
}

func (testCtx *TestContext) aRectangleIsDetected(w, h int) error {
	testCtx.addBox(image.Rect(pageW-w-20, pageH-h-20, pageW-20, pageH-20))
	return nil
}

func (testCtx *TestContext) pageHasTheTextLayer(page int, doc *godog.DocString) error {
	testCtx.Text[page] = doc.Content
	return nil
}

func (testCtx *TestContext) theOCRReadsDigits(digits string) error {
	testCtx.Engine.Digits = digits
	return nil
}

func (testCtx *TestContext) theOCRReadsText(text string) error {
	testCtx.Engine.Text = text
	return nil
}

func (testCtx *TestContext) ocrIsDisabled() error {
	testCtx.Engine.Disabled = true
	return nil
}

func (testCtx *TestContext) ocrCallsHang(hang, budget int) error {
	testCtx.Engine.Hang = time.Duration(hang) * time.Millisecond
	testCtx.Config.OCR.PageBudget = time.Duration(budget) * time.Millisecond
	return nil
}

func (testCtx *TestContext) pageCannotBeRasterized(page int) error {
	testCtx.Raster.Fail[page] = true
	return nil
}

func (testCtx *TestContext) iExtractTheCatalog() error {
	return testCtx.run(pipeline.Request{})
}

func (testCtx *TestContext) iExtractTheCatalogAs(collection string) error {
	return testCtx.run(pipeline.Request{Collection: collection, SkipTOC: true})
}

func (testCtx *TestContext) iExtractAtMostPages(n int) error {
	return testCtx.run(pipeline.Request{MaxPages: n, SkipTOC: true})
}

func (testCtx *TestContext) iResumeTheSessionFromPage(page int) error {
	if testCtx.Manifest == nil {
		return errors.New("no session to resume")
	}
	return testCtx.run(pipeline.Request{ResumeDir: testCtx.Manifest.SessionDir, StartPage: page, SkipTOC: true})
}

func (testCtx *TestContext) theNumbersAreFoundOnAPage(list string) error {
	testCtx.Coherence = coherence.New(coherence.DefaultLargeGap).Analyze(splitList(list))
	return nil
}

func (testCtx *TestContext) theCaptionIsParsed(legend string) error {
	res := &caption.Result{Items: caption.Parse(legend, caption.RegionBottom, 90)}
	item, ok := res.Best()
	if !ok {
		return fmt.Errorf("no caption item parsed from %q", legend)
	}
	testCtx.Caption = &item
	return nil
}

func (testCtx *TestContext) thePlatesTableLineIsParsed(line string) error {
	e, ok := toc.ParseLine(line)
	testCtx.Entry, testCtx.EntryOK = &e, ok
	return nil
}

func (testCtx *TestContext) theExtractionSucceeds() error {
	if testCtx.LastErr != nil {
		return fmt.Errorf("extraction failed: %w", testCtx.LastErr)
	}
	if testCtx.Manifest == nil {
		return errors.New("no manifest returned")
	}
	return nil
}

func (testCtx *TestContext) theRecordHas(name string, page int, table *godog.Table) error {
	data, err := os.ReadFile(filepath.Join(testCtx.pageDir(page), name))
	if err != nil {
		return fmt.Errorf("record %s of page %d: %w", name, page, err)
	}
	var rec map[string]any
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	return compareFields(rec, table)
}

func (testCtx *TestContext) pageHasNoRecords(page int) error {
	matches, err := filepath.Glob(filepath.Join(testCtx.pageDir(page), "oeuvre_*.json"))
	if err != nil {
		return err
	}
	if len(matches) > 0 {
		return fmt.Errorf("page %d has records %v", page, matches)
	}
	return nil
}

func (testCtx *TestContext) noRecordsAreWritten() error {
	for _, p := range testCtx.Manifest.Pages {
		if err := testCtx.pageHasNoRecords(p.PageNumber); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) pageIsRecordedAs(page int, state string) error {
	p, err := testCtx.page(page)
	if err != nil {
		return err
	}
	if p.Success != (state == "successful") {
		return fmt.Errorf("page %d success=%v (error %q), expected %s", page, p.Success, p.Error, state)
	}
	return nil
}

func (testCtx *TestContext) pageHasExtractedImages(page, n int) error {
	p, err := testCtx.page(page)
	if err != nil {
		return err
	}
	if p.ImagesExtracted != n {
		return fmt.Errorf("page %d extracted %d images, expected %d", page, p.ImagesExtracted, n)
	}
	return nil
}

func (testCtx *TestContext) pageFoundRectangles(page, n int) error {
	p, err := testCtx.page(page)
	if err != nil {
		return err
	}
	if p.RectanglesFound != n {
		return fmt.Errorf("page %d found %d rectangles, expected %d", page, p.RectanglesFound, n)
	}
	return nil
}

func (testCtx *TestContext) pageHasNoArtworkNumbers(page int) error {
	p, err := testCtx.page(page)
	if err != nil {
		return err
	}
	for _, d := range p.RectanglesDetails {
		if d.ArtworkNumber != nil {
			return fmt.Errorf("rectangle %d of page %d has number %s", d.Index, page, *d.ArtworkNumber)
		}
	}
	return nil
}

func (testCtx *TestContext) pageWarns(page int, kind string) error {
	p, err := testCtx.page(page)
	if err != nil {
		return err
	}
	for _, w := range p.Warnings {
		if strings.Contains(w, kind) {
			return nil
		}
	}
	return fmt.Errorf("page %d has no %s warning in %v", page, kind, p.Warnings)
}

func (testCtx *TestContext) pageSkippedARectangleAs(page int, reason string) error {
	p, err := testCtx.page(page)
	if err != nil {
		return err
	}
	for _, s := range p.SkippedRectangles {
		if s.Reason == reason {
			return nil
		}
	}
	return fmt.Errorf("page %d skipped %v, expected reason %s", page, p.SkippedRectangles, reason)
}

func (testCtx *TestContext) theCropIsDoubtful(page int, reason string) error {
	p, err := testCtx.page(page)
	if err != nil {
		return err
	}
	if len(p.RectanglesDetails) != 1 {
		return fmt.Errorf("page %d has %d crops, expected 1", page, len(p.RectanglesDetails))
	}
	d := p.RectanglesDetails[0]
	if !d.Quality.IsDoubtful {
		return fmt.Errorf("crop %s is not doubtful", d.Filename)
	}
	if !strings.HasPrefix(d.Filename, doubtfulPrefix) {
		return fmt.Errorf("doubtful crop stored as %s", d.Filename)
	}
	if d.RecordFile != "" {
		return fmt.Errorf("doubtful crop has record %s", d.RecordFile)
	}
	info, err := os.ReadFile(filepath.Join(testCtx.pageDir(page), d.InfoFile))
	if err != nil {
		return fmt.Errorf("info file of %s: %w", d.Filename, err)
	}
	if !strings.Contains(string(info), reason) {
		return fmt.Errorf("info file does not list %s:\n%s", reason, info)
	}
	return nil
}

func (testCtx *TestContext) theManifestReports(success, failed int) error {
	m := testCtx.Manifest
	if m.SuccessPages != success || m.FailedPages != failed {
		return fmt.Errorf("manifest reports %d successful and %d failed pages", m.SuccessPages, m.FailedPages)
	}
	return nil
}

func (testCtx *TestContext) theManifestListsPages(list string) error {
	var got []string
	for _, p := range testCtx.Manifest.Pages {
		got = append(got, strconv.Itoa(p.PageNumber))
	}
	if want := splitList(list); strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("manifest lists pages %v, expected %v", got, want)
	}
	return nil
}

func (testCtx *TestContext) everyKeptCropIsPersistedOnce() error {
	for _, p := range testCtx.Manifest.Pages {
		if len(p.RectanglesDetails) != p.ImagesExtracted {
			return fmt.Errorf("page %d has %d details for %d images", p.PageNumber, len(p.RectanglesDetails), p.ImagesExtracted)
		}
		seen := map[string]bool{}
		for _, d := range p.RectanglesDetails {
			if seen[d.Filename] {
				return fmt.Errorf("page %d lists %s twice", p.PageNumber, d.Filename)
			}
			seen[d.Filename] = true
			if _, err := os.Stat(filepath.Join(testCtx.pageDir(p.PageNumber), d.Filename)); err != nil {
				return fmt.Errorf("crop of page %d: %w", p.PageNumber, err)
			}
			if d.ArtworkNumber != nil && !d.Quality.IsDoubtful && d.RecordFile == "" && testCtx.Engine.Available() {
				return fmt.Errorf("numbered crop %s of page %d has no record", d.Filename, p.PageNumber)
			}
		}
		crops, err := countCrops(testCtx.pageDir(p.PageNumber))
		if err != nil {
			return err
		}
		doubtful, err := countCrops(filepath.Join(testCtx.pageDir(p.PageNumber), assemble.DoubtfulDir))
		if err != nil {
			return err
		}
		if n := crops + doubtful; n != p.ImagesExtracted {
			return fmt.Errorf("page %d has %d crop files for %d images", p.PageNumber, n, p.ImagesExtracted)
		}
	}
	return nil
}

func (testCtx *TestContext) doubtfulCropsAreSegregated() error {
	for _, p := range testCtx.Manifest.Pages {
		for _, d := range p.RectanglesDetails {
			inFolder := strings.HasPrefix(d.Filename, assemble.DoubtfulDir+string(filepath.Separator)) &&
				strings.HasPrefix(filepath.Base(d.Filename), "DOUTEUX_")
			if inFolder != d.Quality.IsDoubtful {
				return fmt.Errorf("page %d crop %s doubtful=%v", p.PageNumber, d.Filename, d.Quality.IsDoubtful)
			}
		}
	}
	return nil
}

func (testCtx *TestContext) theSequenceIsNotSequential() error {
	if testCtx.Coherence.IsSequential {
		return errors.New("sequence reported as sequential")
	}
	return nil
}

func (testCtx *TestContext) theGapsAre(list string) error {
	var got []string
	for _, g := range testCtx.Coherence.Gaps {
		got = append(got, strconv.Itoa(g))
	}
	if want := splitList(list); strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("gaps %v, expected %v", got, want)
	}
	return nil
}

func (testCtx *TestContext) aDuplicateAppears(number, count int) error {
	for _, inc := range testCtx.Coherence.Inconsistencies {
		if inc.Type == coherence.KindDuplicate && inc.Number == number && inc.Count == count {
			return nil
		}
	}
	return fmt.Errorf("no duplicate %d x%d in %+v", number, count, testCtx.Coherence.Inconsistencies)
}

func (testCtx *TestContext) aLargeGapIsReported(start, end, size int) error {
	for _, inc := range testCtx.Coherence.Inconsistencies {
		if inc.Type == coherence.KindLargeGap && inc.GapStart == start && inc.GapEnd == end && inc.GapSize == size {
			return nil
		}
	}
	return fmt.Errorf("no large gap %d-%d in %+v", start, end, testCtx.Coherence.Inconsistencies)
}

func (testCtx *TestContext) theCaptionHas(table *godog.Table) error {
	if testCtx.Caption == nil {
		return errors.New("no caption parsed")
	}
	data, err := json.Marshal(testCtx.Caption)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	return compareFields(fields, table)
}

func (testCtx *TestContext) theEntryHas(number int, title string, page int) error {
	e := testCtx.Entry
	if !testCtx.EntryOK {
		return errors.New("line was not parsed")
	}
	if e.Number != number || e.Title != title {
		return fmt.Errorf("entry %d %q, expected %d %q", e.Number, e.Title, number, title)
	}
	if e.Page == nil || *e.Page != page {
		return fmt.Errorf("entry page %v, expected %d", e.Page, page)
	}
	return nil
}

// compareFields checks a two-column field/value table against decoded JSON.
// Strings compare as is, other values by their compact JSON form.
func compareFields(fields map[string]any, table *godog.Table) error {
	for _, row := range table.Rows[1:] {
		key, want := row.Cells[0].Value, row.Cells[1].Value
		v, ok := fields[key]
		if !ok {
			return fmt.Errorf("field %s missing", key)
		}
		got, ok := v.(string)
		if !ok {
			raw, err := json.Marshal(v)
			if err != nil {
				return err
			}
			got = string(raw)
		}
		if got != want {
			return fmt.Errorf("field %s is %s, expected %s", key, got, want)
		}
	}
	return nil
}

// doubtfulPrefix is the relative path prefix of a doubtful crop.
var doubtfulPrefix = filepath.Join(assemble.DoubtfulDir, "DOUTEUX_")

// countCrops counts the crop images of dir, thumbnails excluded.
func countCrops(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range matches {
		if !strings.HasPrefix(filepath.Base(m), "thumb_") {
			n++
		}
	}
	return n, nil
}

func splitList(list string) []string {
	var out []string
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
