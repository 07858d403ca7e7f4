package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"

	"github.com/MeKo-Tech/artex/internal/assemble"
	"github.com/MeKo-Tech/artex/internal/coherence"
	"github.com/MeKo-Tech/artex/internal/common"
	"github.com/MeKo-Tech/artex/internal/detector"
	"github.com/MeKo-Tech/artex/internal/journal"
	"github.com/MeKo-Tech/artex/internal/metrics"
	"github.com/MeKo-Tech/artex/internal/numbering"
	"github.com/MeKo-Tech/artex/internal/ocr"
	"github.com/MeKo-Tech/artex/internal/pdf"
	"github.com/MeKo-Tech/artex/internal/quality"
	"github.com/MeKo-Tech/artex/internal/utils"
)

// fallbackDPI is used when the page size cannot be read.
const fallbackDPI = 300

// processPage runs the whole workflow for one page. The returned result is
// always journaled; the error is the page failure, if any.
func (p *Pipeline) processPage(ctx context.Context, s *SessionContext, page int) (journal.PageResult, error) {
	log := slog.With("page", page)
	timer := common.NewNamedTimer("page")
	stages := common.NewStageTimes()
	res := journal.PageResult{
		PageNumber:        page,
		RectanglesDetails: []journal.RectangleDetail{},
		StartTime:         p.clock.Now().Format(journal.TimeLayout),
	}
	finish := func(perr error) (journal.PageResult, error) {
		d := timer.Stop()
		res.ProcessingTime = d.Seconds()
		res.EndTime = p.clock.Now().Format(journal.TimeLayout)
		res.Success = perr == nil
		if perr != nil {
			res.Error = perr.Error()
			log.Warn("Page failed", "error", perr)
		}
		if s.debug != nil {
			s.debug.SetDir("")
		}
		metrics.ObservePage(res.Success, d)
		return res, perr
	}

	dpi := max(p.cfg.Raster.MinDPI, fallbackDPI)
	if geom, err := p.geometry.PageSize(s.WorkPath, page); err != nil {
		log.Warn("Page size unknown, using fallback resolution", "dpi", dpi, "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("page size unknown: %v", err))
	} else {
		dpi = p.policy.Choose(geom)
		res.PageFormat, res.WidthMM, res.HeightMM = geom.Format, geom.WidthMM, geom.HeightMM
	}

	var img image.Image
	var err error
	stages.Measure("rasterize", func() {
		img, res.DPIUsed, err = pdf.RasterizeWithRetry(ctx, p.raster, s.WorkPath, page, dpi, p.cfg.Raster.RetryAttempts)
	})
	if err != nil {
		return finish(pageErr(KindRasterize, page, err))
	}

	dir, err := s.Journal.PreparePageDir(page)
	if err != nil {
		return finish(pageErr(KindFatalConfig, page, err))
	}
	if s.debug != nil {
		s.debug.SetDir(dir)
	}
	if err := s.Journal.WritePreview(page, img, p.cfg.Output.JPEGQuality); err != nil {
		log.Warn("Failed to write page preview", "error", err)
	}

	var det *detector.Result
	stages.Measure("detect", func() { det, err = p.detector.Detect(img) })
	if err != nil {
		return finish(pageErr(KindImageInvalid, page, err))
	}
	for _, method := range sortedKeys(det.Counts) {
		metrics.AddRectangles(method, det.Counts[method])
	}

	b := img.Bounds()
	res.RectanglesFound = len(det.Fused)
	clamped := detector.Clamp(det.Fused, b.Dx(), b.Dy())
	valid, small := detector.SplitBySize(clamped, p.cfg.MinRectSide)
	kept, pruned := detector.PruneMinSide(valid, s.Profile.PruneMinSide)
	// skipped rectangles are numbered after the kept ones
	next := len(kept)
	for _, r := range small {
		next++
		log.Warn("Rectangle too small, skipped", "kind", KindImageInvalid, "rect", next, "w", r.BBox.W, "h", r.BBox.H)
		res.SkippedRectangles = append(res.SkippedRectangles, journal.SkippedRectangle{Index: next, BBox: r.BBox, Reason: string(KindImageInvalid)})
	}
	for _, r := range pruned {
		next++
		log.Info("Rectangle under collection minimum, skipped", "reason", ReasonPrunedMinSide,
			"rect", next, "w", r.BBox.W, "h", r.BBox.H, "min_side", s.Profile.PruneMinSide)
		res.SkippedRectangles = append(res.SkippedRectangles, journal.SkippedRectangle{Index: next, BBox: r.BBox, Reason: ReasonPrunedMinSide})
	}
	for range len(det.Fused) - len(clamped) {
		next++
		log.Warn("Rectangle outside the page, skipped", "kind", KindImageInvalid, "rect", next)
		res.SkippedRectangles = append(res.SkippedRectangles, journal.SkippedRectangle{Index: next, Reason: string(KindImageInvalid)})
	}

	writer, err := s.assembler.Page(assemble.Page{Number: page, Dir: dir, DPI: res.DPIUsed, Image: img})
	if err != nil {
		return finish(pageErr(KindFatalConfig, page, err))
	}

	numCtx := ctx
	if p.cfg.OCR.PageBudget > 0 {
		var cancel context.CancelFunc
		numCtx, cancel = context.WithTimeout(ctx, p.cfg.OCR.PageBudget)
		defer cancel()
	}
	budgetSpent := false

	areas := make([]float64, len(kept))
	for i, r := range kept {
		areas[i] = float64(r.BBox.Area())
	}
	var saved []string
	for i, r := range kept {
		idx := i + 1
		label := fmt.Sprintf("p%03d_r%02d", page, idx)
		crop := utils.CropImageRect(img, r.BBox.Rect())

		var verdict quality.Verdict
		stages.Measure("quality", func() { verdict = p.quality.Analyze(crop, areas) })
		detail := journal.RectangleDetail{
			Index:      idx,
			BBox:       r.BBox,
			Corners:    r.Corners,
			Area:       r.Area,
			Method:     r.Method,
			Sources:    r.Sources,
			Confidence: r.Confidence,
			Quality:    verdict,
		}

		number := ""
		if !verdict.IsDoubtful && !budgetSpent && s.localizer.Available() {
			var m *numbering.Match
			stages.Measure("numbering", func() { m, err = s.localizer.Locate(numCtx, img, r.BBox.Rect(), label) })
			switch {
			case errors.Is(err, numbering.ErrBudgetExhausted):
				budgetSpent = true
				if ctx.Err() == nil {
					log.Warn("OCR budget exhausted, remaining rectangles unnumbered", "kind", KindOCRBudgetExhausted, "rect", idx)
					res.Warnings = append(res.Warnings, pageErr(KindOCRBudgetExhausted, page, err).Error())
				}
			case err != nil && !errors.Is(err, ocr.ErrUnavailable):
				log.Warn("Number localization failed", "rect", idx, "error", err)
			}
			if m != nil {
				number = m.Number
				detail.ArtworkNumber = &number
				detail.NumberZone = string(m.Zone)
				detail.NumberScore = m.Score
			}
		}

		var sv *assemble.Saved
		stages.Measure("assemble", func() {
			sv, err = writer.Persist(ctx, assemble.Crop{RectIndex: idx, Rect: r, Image: crop, Verdict: verdict, Number: number})
		})
		if errors.Is(err, assemble.ErrImageInvalid) {
			log.Warn("Crop rejected", "kind", KindImageInvalid, "rect", idx, "error", err)
			res.SkippedRectangles = append(res.SkippedRectangles, journal.SkippedRectangle{Index: idx, BBox: r.BBox, Reason: string(KindImageInvalid)})
			continue
		}
		if err != nil {
			log.Error("Failed to persist crop", "rect", idx, "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("rectangle %d: %v", idx, err))
			continue
		}
		if sv.CaptionErr != nil {
			kind := captionKind(sv.CaptionErr)
			log.Warn("Caption search incomplete", "kind", kind, "rect", idx, "error", sv.CaptionErr)
			res.Warnings = append(res.Warnings, fmt.Sprintf("rectangle %d: %v", idx, pageErr(kind, page, sv.CaptionErr)))
		}

		detail.Filename = sv.Filename
		detail.Thumbnail = sv.Thumbnail
		detail.InfoFile = sv.InfoFile
		detail.RecordFile = sv.RecordFile
		detail.Caption = sv.Caption
		if sv.Record != nil {
			detail.MetadataProvenance = sv.Record.MetadataProvenance
		}
		res.RectanglesDetails = append(res.RectanglesDetails, detail)
		res.ImagesExtracted++
		for _, f := range []string{sv.Filename, sv.Thumbnail, sv.InfoFile, sv.RecordFile} {
			if f != "" {
				saved = append(saved, f)
			}
		}
	}

	report := analyzeNumbers(p.cfg.LargeGap, res.RectanglesDetails)
	res.CoherenceAnalysis = &report
	if report.Analyzed && !report.IsSequential {
		log.Info("Number sequence not contiguous", "gaps", report.Gaps, "inconsistencies", len(report.Inconsistencies))
	}
	res.SummaryAnalysis = summarize(res.RectanglesDetails)

	passes := make([]int, len(det.Ultra))
	for i, pass := range det.Ultra {
		passes[i] = len(pass)
	}
	details := journal.PageDetails{
		PageNumber:     page,
		DPIUsed:        res.DPIUsed,
		PageFormat:     res.PageFormat,
		WidthPx:        b.Dx(),
		HeightPx:       b.Dy(),
		DetectorCounts: det.Counts,
		UltraPasses:    passes,
		Template:       len(det.Template),
		Color:          len(det.Color),
		Fused:          len(det.Fused),
		AfterPruning:   len(kept),
		Skipped:        len(res.SkippedRectangles),
		SavedFiles:     saved,
		Timings:        stages.Seconds(),
		Warnings:       res.Warnings,
	}
	if details.SavedFiles == nil {
		details.SavedFiles = []string{}
	}
	if err := s.Journal.WritePageDetails(page, details); err != nil {
		log.Warn("Failed to write page details", "error", err)
	}

	log.Info("Page processed",
		"dpi", res.DPIUsed, "rectangles", res.RectanglesFound, "images", res.ImagesExtracted,
		"doubtful", res.SummaryAnalysis.Doubtful, "numbered", res.SummaryAnalysis.Numbered)
	return finish(nil)
}

// analyzeNumbers runs the sequence check over the localized numbers.
func analyzeNumbers(largeGap int, details []journal.RectangleDetail) coherence.Report {
	var numbers []string
	for _, d := range details {
		if d.ArtworkNumber != nil {
			numbers = append(numbers, *d.ArtworkNumber)
		}
	}
	return coherence.New(largeGap).Analyze(numbers)
}

// summarize counts the outcome of the persisted rectangles.
func summarize(details []journal.RectangleDetail) *journal.Summary {
	s := &journal.Summary{Provenance: map[string]int{}}
	for _, d := range details {
		if d.Quality.IsDoubtful {
			s.Doubtful++
		} else {
			s.OK++
		}
		if d.ArtworkNumber != nil {
			s.Numbered++
		} else {
			s.Unnumbered++
		}
		if d.RecordFile != "" {
			s.Records++
			s.Provenance[d.MetadataProvenance]++
		}
	}
	return s
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
