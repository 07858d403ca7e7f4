package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// PageEvent reports one finished page.
type PageEvent struct {
	// Done counts the pages finished so far in this run, Total the pages
	// scheduled.
	Done   int
	Total  int
	Page   int
	Images int
	// Err is the page error of a failed page.
	Err error
}

// ProgressCallback receives page-level progress of a run.
type ProgressCallback interface {
	OnStart(total int)
	OnPage(ev PageEvent)
	OnComplete(done int)
}

// NoOpProgressCallback reports nothing.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)      {}
func (NoOpProgressCallback) OnPage(PageEvent) {}
func (NoOpProgressCallback) OnComplete(int)   {}

// ConsoleProgressCallback draws a page bar on a terminal.
type ConsoleProgressCallback struct {
	writer    io.Writer
	prefix    string
	width     int
	showETA   bool
	mutex     sync.Mutex
	startTime time.Time
	images    int
	failed    int
}

// NewConsoleProgressCallback writes to writer, or stderr when nil.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{writer: writer, prefix: prefix, width: 40, showETA: true}
}

// WithWidth sets the bar width.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = width
	return c
}

// WithETA toggles the remaining time estimate.
func (c *ConsoleProgressCallback) WithETA(show bool) *ConsoleProgressCallback {
	c.showETA = show
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.startTime = time.Now()
	c.images, c.failed = 0, 0
	_, _ = fmt.Fprintf(c.writer, "%s0/%d pages\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnPage(ev PageEvent) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.images += ev.Images
	if ev.Err != nil {
		c.failed++
		_, _ = fmt.Fprintf(c.writer, "\n%spage %d failed: %v\n", c.prefix, ev.Page, ev.Err)
	}
	c.draw(ev, time.Now())
}

func (c *ConsoleProgressCallback) OnComplete(done int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	elapsed := time.Since(c.startTime)
	_, _ = fmt.Fprintf(c.writer, "\n%s%d pages, %d images, %d failed in %v\n",
		c.prefix, done, c.images, c.failed, elapsed.Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) draw(ev PageEvent, now time.Time) {
	if ev.Total <= 0 {
		return
	}
	filled := min(c.width, c.width*ev.Done/ev.Total)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	status := fmt.Sprintf("\r%s[%s] %d/%d page %d, %d images", c.prefix, bar, ev.Done, ev.Total, ev.Page, c.images)

	elapsed := now.Sub(c.startTime)
	if c.showETA && ev.Done > 0 && ev.Done < ev.Total && elapsed > 0 {
		eta := time.Duration(float64(elapsed) * float64(ev.Total-ev.Done) / float64(ev.Done))
		status += fmt.Sprintf(" ETA: %v", eta.Round(time.Second))
	}
	_, _ = fmt.Fprint(c.writer, status)
}

// LogProgressCallback logs every page through slog.
type LogProgressCallback struct {
	logger    *slog.Logger
	level     slog.Level
	startTime time.Time
}

// NewLogProgressCallback logs to logger, or the default logger when nil.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.startTime = time.Now()
	l.logger.Log(context.Background(), l.level, "Extraction started", "pages", total)
}

func (l *LogProgressCallback) OnPage(ev PageEvent) {
	if ev.Err != nil {
		l.logger.Log(context.Background(), slog.LevelWarn, "Page failed", "page", ev.Page, "done", ev.Done, "total", ev.Total, "error", ev.Err)
		return
	}
	l.logger.Log(context.Background(), l.level, "Page done", "page", ev.Page, "done", ev.Done, "total", ev.Total, "images", ev.Images)
}

func (l *LogProgressCallback) OnComplete(done int) {
	l.logger.Log(context.Background(), l.level, "Extraction finished", "pages", done, "elapsed", time.Since(l.startTime).Round(time.Millisecond))
}

// MultiProgressCallback fans out to several callbacks.
type MultiProgressCallback struct {
	callbacks []ProgressCallback
}

// NewMultiProgressCallback combines callbacks.
func NewMultiProgressCallback(callbacks ...ProgressCallback) *MultiProgressCallback {
	return &MultiProgressCallback{callbacks: callbacks}
}

// Add appends a callback.
func (m *MultiProgressCallback) Add(callback ProgressCallback) {
	m.callbacks = append(m.callbacks, callback)
}

func (m *MultiProgressCallback) OnStart(total int) {
	for _, cb := range m.callbacks {
		cb.OnStart(total)
	}
}

func (m *MultiProgressCallback) OnPage(ev PageEvent) {
	for _, cb := range m.callbacks {
		cb.OnPage(ev)
	}
}

func (m *MultiProgressCallback) OnComplete(done int) {
	for _, cb := range m.callbacks {
		cb.OnComplete(done)
	}
}
