package biometric

import (
	"FaceVerification/internal/entity"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeModel reports no face until its succeedAt-th call.
type fakeModel struct {
	mu        sync.Mutex
	loadErr   error
	succeedAt int
	detection *entity.Detection
	detectErr error
	delay     time.Duration
	calls     []DetectorOptions
}

func (m *fakeModel) Load(ctx context.Context) error {
	return m.loadErr
}

func (m *fakeModel) Detect(ctx context.Context, image []byte, opts DetectorOptions) (*entity.Detection, error) {
	m.mu.Lock()
	m.calls = append(m.calls, opts)
	n := len(m.calls)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.detectErr != nil {
		return nil, m.detectErr
	}
	if m.succeedAt > 0 && n >= m.succeedAt {
		return m.detection, nil
	}
	return nil, ErrNoFaceDetected
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func newReadyExtractor(t *testing.T, model Model, cfg CascadeConfig) *Extractor {
	t.Helper()
	e := NewExtractor(quietLogger(), model, cfg)
	require.NoError(t, e.Init(context.Background()))
	return e
}

func TestExtractNotReady(t *testing.T) {
	model := &fakeModel{loadErr: errors.New("weights missing")}
	e := NewExtractor(quietLogger(), model, CascadeConfig{})

	err := e.Init(context.Background())
	require.True(t, errors.Is(err, ErrModelNotReady))
	require.False(t, e.Ready())

	_, err = e.Extract(context.Background(), []byte("img"))
	require.True(t, errors.Is(err, ErrModelNotReady))
	require.Zero(t, model.callCount())

	model.loadErr = nil
	require.NoError(t, e.Init(context.Background()))
	require.True(t, e.Ready())
}

func TestExtractFirstHitShortCircuits(t *testing.T) {
	det := &entity.Detection{Descriptor: entity.Descriptor{0.1, 0.2}}
	model := &fakeModel{succeedAt: 3, detection: det}
	e := newReadyExtractor(t, model, CascadeConfig{Dimension: 2})

	got, err := e.Extract(context.Background(), []byte("img"))
	require.NoError(t, err)
	require.Equal(t, det, got)
	require.Equal(t, 3, model.callCount())

	steps := DefaultCascade()
	require.Equal(t, steps[:3], model.calls)
	require.Greater(t, model.calls[0].InputSize, model.calls[2].InputSize)
	require.Greater(t, model.calls[0].MinConfidence, model.calls[2].MinConfidence)
}

func TestExtractExhaustsCascade(t *testing.T) {
	model := &fakeModel{}
	e := newReadyExtractor(t, model, CascadeConfig{})

	_, err := e.Extract(context.Background(), []byte("img"))
	require.True(t, errors.Is(err, ErrNoFaceDetected))
	require.Equal(t, len(DefaultCascade()), model.callCount())
}

func TestExtractHonorsMaxAttempts(t *testing.T) {
	model := &fakeModel{succeedAt: 4, detection: &entity.Detection{Descriptor: entity.Descriptor{1}}}
	e := newReadyExtractor(t, model, CascadeConfig{MaxAttempts: 2})

	_, err := e.Extract(context.Background(), []byte("img"))
	require.True(t, errors.Is(err, ErrNoFaceDetected))
	require.Equal(t, 2, model.callCount())
}

func TestExtractHonorsLatencyBudget(t *testing.T) {
	model := &fakeModel{delay: 40 * time.Millisecond}
	e := newReadyExtractor(t, model, CascadeConfig{MaxLatency: 60 * time.Millisecond})

	start := time.Now()
	_, err := e.Extract(context.Background(), []byte("img"))
	require.True(t, errors.Is(err, ErrNoFaceDetected))
	require.Less(t, time.Since(start), 500*time.Millisecond)
	require.Less(t, model.callCount(), len(DefaultCascade()))
}

func TestExtractRejectsWrongDimension(t *testing.T) {
	model := &fakeModel{succeedAt: 1, detection: &entity.Detection{Descriptor: entity.Descriptor{1, 2, 3}}}
	e := newReadyExtractor(t, model, CascadeConfig{Dimension: 128})

	_, err := e.Extract(context.Background(), []byte("img"))
	require.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestExtractModelLostMarksNotReady(t *testing.T) {
	model := &fakeModel{detectErr: ErrModelNotReady}
	e := newReadyExtractor(t, model, CascadeConfig{})

	_, err := e.Extract(context.Background(), []byte("img"))
	require.True(t, errors.Is(err, ErrModelNotReady))
	require.False(t, e.Ready())
	require.Equal(t, 1, model.callCount())
}

func TestExtractModelFailureIsNotNoFace(t *testing.T) {
	model := &fakeModel{detectErr: errors.New("error sending frame: broken pipe")}
	e := newReadyExtractor(t, model, CascadeConfig{})

	_, err := e.Extract(context.Background(), []byte("img"))
	require.ErrorIs(t, err, ErrVerification)
	require.False(t, errors.Is(err, ErrNoFaceDetected))
	require.Contains(t, err.Error(), "broken pipe")
	require.True(t, e.Ready())
}

func TestExtractCallerContextWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &fakeModel{}
	e := newReadyExtractor(t, model, CascadeConfig{})

	_, err := e.Extract(ctx, []byte("img"))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, model.callCount())
}

func TestExtractBudgetSpentOnFirstAttemptTimesOut(t *testing.T) {
	model := &fakeModel{delay: time.Second}
	e := newReadyExtractor(t, model, CascadeConfig{MaxLatency: 20 * time.Millisecond})

	_, err := e.Extract(context.Background(), []byte("img"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, errors.Is(err, ErrNoFaceDetected))
	require.Equal(t, 1, model.callCount())
}
