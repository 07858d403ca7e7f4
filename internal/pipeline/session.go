package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/artex/internal/assemble"
	"github.com/MeKo-Tech/artex/internal/caption"
	"github.com/MeKo-Tech/artex/internal/collection"
	"github.com/MeKo-Tech/artex/internal/journal"
	"github.com/MeKo-Tech/artex/internal/numbering"
	"github.com/MeKo-Tech/artex/internal/ocr"
	"github.com/MeKo-Tech/artex/internal/pdf"
	"github.com/MeKo-Tech/artex/internal/toc"
)

// Request describes one extraction run.
type Request struct {
	PDFPath string
	// StartPage is 1-based; zero starts at page 1, or after the last
	// journaled page when resuming.
	StartPage int
	// MaxPages limits the run; zero processes to the end.
	MaxPages int
	// Collection overrides the configured collection when set.
	Collection string
	SkipTOC    bool
	Password   string
	// ResumeDir appends into an existing session directory.
	ResumeDir string
	// Artist overrides the configured and filename-derived artist.
	Artist string
}

// SessionContext is the per-document state passed down the page loop.
type SessionContext struct {
	PDFPath string
	// WorkPath is the file actually read; it differs from PDFPath for
	// decrypted copies.
	WorkPath string
	Profile  collection.Profile
	Artist   string
	TOC      *toc.Result
	Pages    []int
	Journal  *journal.Journal

	assembler *assemble.Assembler
	localizer *numbering.Localizer
	debug     *assemble.DebugWriter
}

// Run processes the requested pages and returns the final manifest. Page
// failures are recorded in the manifest; only ErrFatalConfig errors and
// cancellation are returned.
func (p *Pipeline) Run(ctx context.Context, req Request) (*journal.Manifest, error) {
	s, cleanup, err := p.openSession(ctx, req)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	slog.Info("Extraction session started",
		"pdf", s.PDFPath, "session", s.Journal.Dir(), "collection", s.Profile.Name,
		"artist", s.Artist, "pages", len(s.Pages), "ocr", p.guard.Available())

	p.progress.OnStart(len(s.Pages))
	done := 0
	var runErr error
	for _, page := range s.Pages {
		if err := ctx.Err(); err != nil {
			slog.Warn("Extraction cancelled", "next_page", page, "error", err)
			runErr = err
			break
		}
		res, perr := p.processPage(ctx, s, page)
		s.Journal.SetSequence(s.assembler.Sequence())
		if err := s.Journal.Record(res); err != nil {
			return nil, fatal("write manifest", err)
		}
		done++
		p.progress.OnPage(PageEvent{Done: done, Total: len(s.Pages), Page: page, Images: res.ImagesExtracted, Err: perr})
		var pe *PageError
		if errors.As(perr, &pe) && pe.Kind == KindFatalConfig {
			runErr = perr
			break
		}
	}
	p.progress.OnComplete(done)

	if err := s.Journal.Finish(); err != nil {
		return nil, fatal("write manifest", err)
	}
	m := s.Journal.Manifest()
	slog.Info("Extraction session finished",
		"session", s.Journal.Dir(), "pages", m.TotalPages, "success", m.SuccessPages,
		"failed", m.FailedPages, "images", m.TotalImagesExtracted)
	return &m, runErr
}

// openSession resolves everything that is fixed for the document: input
// file, page list, journal, collection, plates table and the assembler.
func (p *Pipeline) openSession(ctx context.Context, req Request) (*SessionContext, func(), error) {
	noop := func() {}
	if req.PDFPath == "" {
		return nil, noop, fatal("no input PDF given", nil)
	}
	if _, err := os.Stat(req.PDFPath); err != nil {
		return nil, noop, fatal("input PDF not found", err)
	}
	abs, err := filepath.Abs(req.PDFPath)
	if err != nil {
		return nil, noop, fatal("input PDF path", err)
	}
	s := &SessionContext{PDFPath: abs, WorkPath: abs}

	cleanup := noop
	if req.Password != "" {
		work, rm, err := pdf.Decrypt(abs, req.Password)
		if err != nil {
			return nil, noop, fatal("decrypt PDF", err)
		}
		s.WorkPath, cleanup = work, rm
	}
	fail := func(err error) (*SessionContext, func(), error) {
		cleanup()
		return nil, noop, err
	}

	total, err := p.geometry.PageCount(s.WorkPath)
	if err != nil {
		return fail(fatal("read page count", err))
	}

	if req.ResumeDir != "" {
		s.Journal, err = journal.Resume(req.ResumeDir, p.clock)
	} else {
		s.Journal, err = journal.Create(p.cfg.Output.Root, abs, p.clock)
	}
	if err != nil {
		return fail(fatal("session directory", err))
	}

	start := req.StartPage
	if start <= 0 {
		start = 1
		if req.ResumeDir != "" {
			start = s.Journal.LastPage() + 1
		}
	}
	if start <= total {
		if s.Pages, err = pdf.SelectPages(total, start, req.MaxPages); err != nil {
			return fail(fatal("page selection", err))
		}
	} else {
		slog.Info("Nothing left to process", "start_page", start, "total_pages", total)
	}

	if err := p.resolveCollection(ctx, s, req); err != nil {
		return fail(err)
	}

	s.Artist = req.Artist
	if s.Artist == "" {
		s.Artist = p.cfg.Artist
	}
	if s.Artist == "" {
		s.Artist = collection.ArtistFromFilename(abs)
	}
	first, last := start, start-1
	if n := len(s.Pages); n > 0 {
		first, last = s.Pages[0], s.Pages[n-1]
	}
	if err := s.Journal.Describe(s.Profile.Name, s.Artist, first, last); err != nil {
		return fail(fatal("write manifest", err))
	}
	if s.TOC != nil && len(s.TOC.Entries) > 0 {
		if err := p.saveTOC(s); err != nil {
			return fail(err)
		}
	}

	if err := p.wireStages(s); err != nil {
		return fail(err)
	}
	return s, cleanup, nil
}

// resolveCollection picks the profile and, for plates-table documents,
// extracts the table once.
func (p *Pipeline) resolveCollection(ctx context.Context, s *SessionContext, req Request) error {
	name := req.Collection
	if name == "" {
		name = p.cfg.Collection
	}
	profile, ok, err := p.registry.Resolve(name, s.PDFPath)
	if err != nil {
		return fatal("collection", err)
	}
	if ok && !profile.HasTOC {
		s.Profile = profile
		return nil
	}
	if req.SkipTOC {
		if !ok {
			profile = p.registry.ForTOC(false)
		}
		s.Profile = profile
		return nil
	}

	ex, err := p.tocExtractor(profile)
	if err != nil {
		return err
	}
	res, err := ex.Extract(ctx, s.WorkPath)
	switch {
	case errors.Is(err, toc.ErrNotFound):
		slog.Warn("No plates table, metadata falls back to defaults", "kind", KindTOCNotFound, "pdf", s.PDFPath)
	case err != nil:
		slog.Warn("Plates table extraction failed", "kind", KindTOCNotFound, "pdf", s.PDFPath, "error", err)
	}
	found := err == nil && res != nil && len(res.Entries) > 0
	if found {
		s.TOC = res
	}
	if !ok {
		profile = p.registry.ForTOC(found)
		slog.Info("Collection detected", "collection", profile.Name, "plates_table", found)
	}
	s.Profile = profile
	return nil
}

func (p *Pipeline) saveTOC(s *SessionContext) error {
	r := s.TOC
	if err := toc.WriteFile(s.Journal.TOCPath(), r); err != nil {
		return fatal("write plates table", err)
	}
	if r.Partial() {
		slog.Warn("Plates table partially parsed", "kind", KindTOCPartial, "unparsed", len(r.Unparsed))
		if err := toc.WriteUnparsed(s.Journal.TOCUnparsedPath(), r); err != nil {
			slog.Warn("Failed to write unparsed plates table lines", "error", err)
		}
	}
	return s.Journal.SetTOC(&journal.TOCInfo{
		File:     journal.TOCName,
		Method:   r.Method,
		Pages:    r.Pages,
		Entries:  len(r.Entries),
		Unparsed: len(r.Unparsed),
	})
}

// wireStages builds the collection-specific stages of the session.
func (p *Pipeline) wireStages(s *SessionContext) error {
	var sink ocr.DebugSink
	if p.cfg.Output.WriteOCRDebug {
		s.debug = &assemble.DebugWriter{}
		sink = s.debug
	}

	loc, err := numbering.NewLocalizer(p.guard, s.Profile.Numbering, sink)
	if err != nil {
		return fatal("number localizer", err)
	}
	s.localizer = loc

	opts := []assemble.Option{assemble.WithClock(p.clock)}
	if p.ids != nil {
		opts = append(opts, assemble.WithIDs(p.ids))
	}
	mode := assemble.ModeTOC
	if s.Profile.CaptionDriven() {
		mode = assemble.ModeCaption
		opts = append(opts, assemble.WithCaptions(caption.NewReader(p.guard, p.cfg.Caption, sink)))
	} else if s.TOC != nil {
		opts = append(opts, assemble.WithPlates(s.TOC.Entries))
	}
	s.assembler = assemble.New(assemble.Config{
		ThumbnailSize: p.cfg.Output.ThumbnailSize,
		MinSide:       p.cfg.MinRectSide,
	}, mode, s.Artist, opts...)
	s.assembler.SetSequence(s.Journal.FallbackSequence())
	return nil
}
