// Package metrics exposes Prometheus instruments for the extraction pipeline.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artex_pages_total",
			Help: "Total number of processed pages",
		},
		[]string{"status"}, // status: success, failed
	)

	pageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "artex_page_duration_seconds",
			Help:    "Page processing duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		},
	)

	rectanglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artex_rectangles_total",
			Help: "Total number of candidate rectangles by producing method",
		},
		[]string{"method"},
	)

	ocrCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artex_ocr_calls_total",
			Help: "Total number of OCR calls",
		},
		[]string{"engine", "outcome"}, // outcome: ok, timeout, error, abandoned
	)

	ocrCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "artex_ocr_call_duration_seconds",
			Help:    "OCR call duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"engine"},
	)

	artworksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artex_artworks_total",
			Help: "Total number of persisted artwork crops",
		},
		[]string{"quality", "provenance"},
	)
)

// Outcome labels for OCR calls.
const (
	OutcomeOK        = "ok"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
	OutcomeAbandoned = "abandoned"
)

// ObservePage records one finished page.
func ObservePage(success bool, d time.Duration) {
	status := "success"
	if !success {
		status = "failed"
	}
	pagesTotal.WithLabelValues(status).Inc()
	pageDuration.Observe(d.Seconds())
}

// AddRectangles records candidates produced by one method.
func AddRectangles(method string, n int) {
	rectanglesTotal.WithLabelValues(method).Add(float64(n))
}

// ObserveOCRCall records one OCR invocation.
func ObserveOCRCall(engine, outcome string, d time.Duration) {
	ocrCallsTotal.WithLabelValues(engine, outcome).Inc()
	if outcome != OutcomeAbandoned {
		ocrCallDuration.WithLabelValues(engine).Observe(d.Seconds())
	}
}

// ObserveArtwork records one persisted crop.
func ObserveArtwork(quality, provenance string) {
	artworksTotal.WithLabelValues(quality, provenance).Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Metrics server shutdown failed", "error", err)
		}
	}()

	slog.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
