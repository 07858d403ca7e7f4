package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	dspdf "github.com/dslipak/pdf"
	lcpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// TextReader returns the text layer of one 1-based page, one line per row.
type TextReader interface {
	Name() string
	PageText(ctx context.Context, pdfPath string, page int) (string, error)
}

// glyph is a positioned text run from either row-based backend.
type glyph struct {
	x, w, size float64
	s          string
}

// joinRow concatenates the runs of one row, inserting a space where the
// horizontal gap exceeds a fifth of the font size.
func joinRow(runs []glyph) string {
	var b strings.Builder
	prevEnd := 0.0
	for i, r := range runs {
		if i > 0 && r.x-prevEnd > 0.2*max(r.size, 1) && !strings.HasPrefix(r.s, " ") {
			b.WriteByte(' ')
		}
		b.WriteString(r.s)
		prevEnd = r.x + r.w
	}
	return strings.TrimRight(b.String(), " ")
}

// openSized opens path and returns the file with its size.
func openSized(path string) (*os.File, int64, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided PDF path
	if err != nil {
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, st.Size(), nil
}

// recovered turns a panic of a parser backend into an error.
func recovered(name string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: parser panic: %v", name, r)
	}
}

// DslipakReader reads text rows with github.com/dslipak/pdf.
type DslipakReader struct{}

// Name implements TextReader.
func (DslipakReader) Name() string { return "dslipak" }

// PageText implements TextReader.
func (DslipakReader) PageText(ctx context.Context, pdfPath string, page int) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	defer recovered("dslipak", &err)
	f, size, err := openSized(pdfPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	r, err := dspdf.NewReader(f, size)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF %q: %w", pdfPath, err)
	}
	if page < 1 || page > r.NumPage() {
		return "", fmt.Errorf("page %d out of range [1,%d]", page, r.NumPage())
	}
	p := r.Page(page)
	if p.V.IsNull() {
		return "", fmt.Errorf("page %d is null", page)
	}
	rows, err := p.GetTextByRow()
	if err != nil || len(rows) == 0 {
		// some content streams only decode as plain text
		return p.GetPlainText(make(map[string]*dspdf.Font))
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		runs := make([]glyph, 0, len(row.Content))
		for _, t := range row.Content {
			runs = append(runs, glyph{x: t.X, w: t.W, size: t.FontSize, s: t.S})
		}
		lines = append(lines, joinRow(runs))
	}
	return strings.Join(lines, "\n"), nil
}

// LedongthucReader reads text rows with github.com/ledongthuc/pdf.
type LedongthucReader struct{}

// Name implements TextReader.
func (LedongthucReader) Name() string { return "ledongthuc" }

// PageText implements TextReader.
func (LedongthucReader) PageText(ctx context.Context, pdfPath string, page int) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	defer recovered("ledongthuc", &err)
	f, size, err := openSized(pdfPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	r, err := lcpdf.NewReader(f, size)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF %q: %w", pdfPath, err)
	}
	if page < 1 || page > r.NumPage() {
		return "", fmt.Errorf("page %d out of range [1,%d]", page, r.NumPage())
	}
	p := r.Page(page)
	if p.V.IsNull() {
		return "", fmt.Errorf("page %d is null", page)
	}
	rows, err := p.GetTextByRow()
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		runs := make([]glyph, 0, len(row.Content))
		for _, t := range row.Content {
			runs = append(runs, glyph{x: t.X, w: t.W, size: t.FontSize, s: t.S})
		}
		lines = append(lines, joinRow(runs))
	}
	return strings.Join(lines, "\n"), nil
}

// PdfcpuContentReader decodes text-showing operators of the raw page
// content stream. It only handles simple encodings but needs no font data.
type PdfcpuContentReader struct{}

// Name implements TextReader.
func (PdfcpuContentReader) Name() string { return "pdfcpu" }

// PageText implements TextReader.
func (PdfcpuContentReader) PageText(ctx context.Context, pdfPath string, page int) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	defer recovered("pdfcpu", &err)
	pctx, err := api.ReadContextFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF %q: %w", pdfPath, err)
	}
	if page < 1 || page > pctx.PageCount {
		return "", fmt.Errorf("page %d out of range [1,%d]", page, pctx.PageCount)
	}
	r, err := pdfcpu.ExtractPageContent(pctx, page)
	if err != nil {
		return "", fmt.Errorf("failed to extract content of page %d: %w", page, err)
	}
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return textFromContent(data), nil
}

var literalRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// textFromContent collects the literal strings of Tj, TJ and ' operators;
// line moves (Td, TD, T*, Tm) start a new line.
func textFromContent(data []byte) string {
	var b strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")), bytes.HasSuffix(line, []byte("'")):
			if bytes.HasSuffix(line, []byte("'")) {
				b.WriteByte('\n')
			}
			for _, m := range literalRe.FindAllSubmatch(line, -1) {
				b.WriteString(unescapeLiteral(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")),
			bytes.Equal(line, []byte("T*")), bytes.HasSuffix(line, []byte("Tm")):
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
		}
	}
	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// unescapeLiteral decodes the backslash escapes of a PDF literal string.
func unescapeLiteral(s []byte) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := s[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b', 'f':
		case '0', '1', '2', '3', '4', '5', '6', '7':
			v := 0
			j := i
			for ; j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7'; j++ {
				v = v*8 + int(s[j]-'0')
			}
			i = j - 1
			// PDFDocEncoding matches Latin-1 for the accented letters
			b.WriteRune(rune(v & 0xff))
		default:
			b.WriteByte(e)
		}
	}
	return b.String()
}

// ChainTextReader returns the first non-blank text of its readers.
type ChainTextReader []TextReader

// Name implements TextReader.
func (c ChainTextReader) Name() string { return "chain" }

// PageText implements TextReader.
func (c ChainTextReader) PageText(ctx context.Context, pdfPath string, page int) (string, error) {
	var errs []error
	for _, r := range c {
		text, err := r.PageText(ctx, pdfPath, page)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err != nil {
			slog.Debug("Text reader failed", "reader", r.Name(), "page", page, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		}
	}
	if len(errs) == len(c) && len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "", nil
}

// DefaultTextReader chains the row-based readers and the content-stream reader.
func DefaultTextReader() ChainTextReader {
	return ChainTextReader{DslipakReader{}, LedongthucReader{}, PdfcpuContentReader{}}
}
