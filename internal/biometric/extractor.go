package biometric

import (
	"FaceVerification/internal/entity"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DetectorOptions is one step of the extraction cascade.
type DetectorOptions struct {
	InputSize     int     `json:"input_size"`
	MinConfidence float64 `json:"min_confidence"`
}

// Model is the external embedding capability. Detect returns ErrNoFaceDetected
// when no face passes the given options.
type Model interface {
	Load(ctx context.Context) error
	Detect(ctx context.Context, image []byte, opts DetectorOptions) (*entity.Detection, error)
}

type CascadeConfig struct {
	Steps       []DetectorOptions
	MaxAttempts int
	MaxLatency  time.Duration
	Dimension   int
}

func DefaultCascade() []DetectorOptions {
	return []DetectorOptions{
		{InputSize: 608, MinConfidence: 0.5},
		{InputSize: 512, MinConfidence: 0.4},
		{InputSize: 416, MinConfidence: 0.3},
		{InputSize: 320, MinConfidence: 0.2},
		{InputSize: 224, MinConfidence: 0.1},
	}
}

// Extractor wraps a Model with readiness state and a bounded retry cascade
// that goes from strict to permissive and stops at the first detection.
type Extractor struct {
	log   *logrus.Logger
	model Model
	cfg   CascadeConfig

	mu    sync.RWMutex
	ready bool
}

func NewExtractor(log *logrus.Logger, model Model, cfg CascadeConfig) *Extractor {
	if len(cfg.Steps) == 0 {
		cfg.Steps = DefaultCascade()
	}
	if cfg.MaxAttempts <= 0 || cfg.MaxAttempts > len(cfg.Steps) {
		cfg.MaxAttempts = len(cfg.Steps)
	}

	return &Extractor{
		log:   log,
		model: model,
		cfg:   cfg,
	}
}

// Init loads the model. It can be called again after a failure.
func (e *Extractor) Init(ctx context.Context) error {
	err := e.model.Load(ctx)

	e.mu.Lock()
	e.ready = err == nil
	e.mu.Unlock()

	if err != nil {
		e.log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Error("Failed to initialize face model")
		return fmt.Errorf("%w: %v", ErrModelNotReady, err)
	}

	e.log.Info("Face model initialized")
	return nil
}

func (e *Extractor) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

func (e *Extractor) Dimension() int {
	return e.cfg.Dimension
}

func (e *Extractor) Extract(ctx context.Context, image []byte) (*entity.Detection, error) {
	if !e.Ready() {
		return nil, ErrModelNotReady
	}

	parent := ctx
	if e.cfg.MaxLatency > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.MaxLatency)
		defer cancel()
	}

	var lastErr error
	sawNoFace := false
	for i, step := range e.cfg.Steps[:e.cfg.MaxAttempts] {
		if ctx.Err() != nil {
			break
		}

		det, err := e.model.Detect(ctx, image, step)
		if err == nil && det != nil && len(det.Descriptor) > 0 {
			if e.cfg.Dimension > 0 && len(det.Descriptor) != e.cfg.Dimension {
				return nil, fmt.Errorf("%w: model returned %d, expected %d", ErrDimensionMismatch, len(det.Descriptor), e.cfg.Dimension)
			}
			if i > 0 {
				e.log.WithFields(logrus.Fields{
					"attempt":        i + 1,
					"input_size":     step.InputSize,
					"min_confidence": step.MinConfidence,
				}).Debug("Face detected after cascade retry")
			}
			return det, nil
		}

		if errors.Is(err, ErrModelNotReady) {
			e.mu.Lock()
			e.ready = false
			e.mu.Unlock()
			return nil, err
		}

		if err == nil || errors.Is(err, ErrNoFaceDetected) {
			sawNoFace = true
		} else {
			e.log.WithFields(logrus.Fields{
				"attempt": i + 1,
				"error":   err.Error(),
			}).Warn("Detection attempt failed")
		}
		lastErr = err
	}

	return nil, cascadeError(parent, ctx, lastErr, sawNoFace)
}

// cascadeError reports why no detection came back. The caller's context wins.
// An expired latency budget is a no-face result once at least one attempt
// completed, and a timeout otherwise. A model failure on the last attempt is
// never reported as no face.
func cascadeError(parent, budget context.Context, lastErr error, sawNoFace bool) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if budget.Err() != nil {
		if sawNoFace {
			return ErrNoFaceDetected
		}
		return fmt.Errorf("face model did not answer within the latency budget: %w", context.DeadlineExceeded)
	}
	if lastErr == nil || errors.Is(lastErr, ErrNoFaceDetected) {
		return ErrNoFaceDetected
	}
	return fmt.Errorf("%w: %v", ErrVerification, lastErr)
}
