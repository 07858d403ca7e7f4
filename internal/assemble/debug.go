package assemble

import (
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MeKo-Tech/artex/internal/utils"
)

// DebugWriter stores OCR attempts as ocr_debug_<name>.png and .txt in the
// current page directory. It is an ocr.DebugSink.
type DebugWriter struct {
	mu  sync.Mutex
	dir string
}

// SetDir switches the output directory; an empty dir disables writing.
func (d *DebugWriter) SetDir(dir string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dir = dir
}

// Save implements ocr.DebugSink.
func (d *DebugWriter) Save(name string, img image.Image, text string) {
	d.mu.Lock()
	dir := d.dir
	d.mu.Unlock()
	if dir == "" {
		return
	}
	base := filepath.Join(dir, "ocr_debug_"+sanitize(name))
	if err := utils.SavePNG(base+".png", img); err != nil {
		slog.Debug("Failed to write OCR debug image", "name", name, "error", err)
		return
	}
	if err := os.WriteFile(base+".txt", []byte(text), 0o644); err != nil { //nolint:gosec // debug output
		slog.Debug("Failed to write OCR debug text", "name", name, "error", err)
	}
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, name)
}
