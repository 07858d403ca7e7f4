package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(ocrCallsTotal.WithLabelValues("fake", OutcomeTimeout))
	ObserveOCRCall("fake", OutcomeTimeout, 10*time.Second)
	ObserveOCRCall("fake", OutcomeAbandoned, 0)
	assert.InDelta(t, before+1, testutil.ToFloat64(ocrCallsTotal.WithLabelValues("fake", OutcomeTimeout)), 1e-9)

	beforePages := testutil.ToFloat64(pagesTotal.WithLabelValues("failed"))
	ObservePage(false, time.Second)
	assert.InDelta(t, beforePages+1, testutil.ToFloat64(pagesTotal.WithLabelValues("failed")), 1e-9)

	AddRectangles("ultra_fine", 3)
	assert.GreaterOrEqual(t, testutil.ToFloat64(rectanglesTotal.WithLabelValues("ultra_fine")), 3.0)

	ObserveArtwork("ok", "toc")
	assert.GreaterOrEqual(t, testutil.ToFloat64(artworksTotal.WithLabelValues("ok", "toc")), 1.0)
}

func TestServeExposesMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	assert.True(t, strings.Contains(body, "artex_pages_total") || strings.Contains(body, "go_goroutines"))

	cancel()
	assert.NoError(t, <-done)
}
