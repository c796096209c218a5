package metrics

import (
	"FaceVerification/internal/biometric"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStats biometric.Stats

func (s staticStats) Stats() biometric.Stats { return biometric.Stats(s) }

func TestObserveLabelsOutcomes(t *testing.T) {
	m := New()
	m.Observe(biometric.KindVerify, 40*time.Millisecond, nil)
	m.Observe(biometric.KindVerify, 10*time.Millisecond, biometric.ErrLivenessFailed)
	m.Observe(biometric.KindIdentify, time.Second, context.DeadlineExceeded)
	m.Observe(biometric.KindIdentify, time.Second, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("verify", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("verify", "liveness_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("identify", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("identify", "error")))
}

func TestHandlerExposesPoolGauges(t *testing.T) {
	m := New()
	m.RegisterPool(staticStats{QueueLength: 3, ActiveWorkers: 10, MaxConcurrent: 10, PeakConcurrent: 10})

	app := fiber.New()
	app.Get("/metrics", m.Handler())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "verification_queue_length 3")
	assert.Contains(t, string(body), "verification_queue_active_workers 10")
}
