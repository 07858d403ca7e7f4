package ocr

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/artex/internal/utils"
)

// TesseractCLI runs the tesseract binary, feeding PNG data on stdin.
type TesseractCLI struct {
	path     string
	language string
}

// NewTesseractCLI returns an engine for the given binary ("tesseract" when empty).
func NewTesseractCLI(path, language string) *TesseractCLI {
	if path == "" {
		path = "tesseract"
	}
	if language == "" {
		language = "fra+eng"
	}
	return &TesseractCLI{path: path, language: language}
}

func (t *TesseractCLI) Name() string { return KindTesseractCLI }

// Available reports whether the binary can be found.
func (t *TesseractCLI) Available() bool {
	_, err := exec.LookPath(t.path)
	return err == nil
}

func (t *TesseractCLI) args(opts Options, tsv bool) []string {
	lang := opts.Language
	if lang == "" {
		lang = t.language
	}
	psm := opts.PSM
	if psm == 0 {
		psm = PSMAuto
	}
	args := []string{"stdin", "stdout", "--psm", strconv.Itoa(int(psm)), "-l", lang}
	if opts.Whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+opts.Whitelist)
	}
	if tsv {
		args = append(args, "tsv")
	}
	return args
}

func (t *TesseractCLI) run(ctx context.Context, img image.Image, args []string) ([]byte, error) {
	in, err := utils.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, t.path, args...)
	cmd.Stdin = bytes.NewReader(in)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// ImageToString returns the recognized text.
func (t *TesseractCLI) ImageToString(ctx context.Context, img image.Image, opts Options) (string, error) {
	out, err := t.run(ctx, img, t.args(opts, false))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ImageToData returns words parsed from tesseract's TSV output.
func (t *TesseractCLI) ImageToData(ctx context.Context, img image.Image, opts Options) ([]Word, error) {
	out, err := t.run(ctx, img, t.args(opts, true))
	if err != nil {
		return nil, err
	}
	return ParseTSV(out)
}

// ParseTSV reads word rows (level 5) of tesseract TSV output.
func ParseTSV(data []byte) ([]Word, error) {
	var words []Word
	sc := bufio.NewScanner(bytes.NewReader(data))
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			first = false
			if strings.HasPrefix(line, "level") {
				continue
			}
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		nums := make([]int, 10)
		for i := range 10 {
			n, err := strconv.Atoi(cols[i])
			if err != nil {
				return nil, fmt.Errorf("malformed TSV row %q: %w", line, err)
			}
			nums[i] = n
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed TSV confidence %q: %w", cols[10], err)
		}
		text := strings.Join(cols[11:], "\t")
		if strings.TrimSpace(text) == "" {
			continue
		}
		words = append(words, Word{
			Text:       text,
			Confidence: conf,
			Box:        image.Rect(nums[6], nums[7], nums[6]+nums[8], nums[7]+nums[9]),
			Block:      nums[2]*1000 + nums[3],
			Line:       nums[4],
		})
	}
	return words, sc.Err()
}
