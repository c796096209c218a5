package biometric

import (
	"FaceVerification/internal/entity"
	contextPkg "FaceVerification/pkg/context"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Clock is the trusted server time source. Device clocks are never used.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// AuditRecorder persists the last-verification fields of a subject.
type AuditRecorder interface {
	Record(ctx context.Context, subjectID string, audit entity.VerificationAudit) error
}

// StoreAuditRecorder writes audits straight to the subject store.
type StoreAuditRecorder struct {
	Store SubjectStore
}

func (r StoreAuditRecorder) Record(ctx context.Context, subjectID string, audit entity.VerificationAudit) error {
	return r.Store.RecordVerificationAudit(ctx, subjectID, audit)
}

type EngineConfig struct {
	Threshold float64
	// Liveness enables server-mode anti-spoofing. Nil disables it.
	Liveness *LivenessConfig
	Pool     PoolConfig
}

// Engine is the server-mediated verification service: every request goes
// through the pool and runs extract -> cache/compare -> liveness in order.
type Engine struct {
	log       *logrus.Logger
	extractor *Extractor
	cache     *Cache
	store     SubjectStore
	liveness  *LivenessScorer
	audit     AuditRecorder
	clock     Clock
	threshold float64
	pool      *Pool
}

func NewEngine(
	log *logrus.Logger,
	extractor *Extractor,
	cache *Cache,
	store SubjectStore,
	audit AuditRecorder,
	clock Clock,
	cfg EngineConfig,
) *Engine {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if audit == nil {
		audit = StoreAuditRecorder{Store: store}
	}

	e := &Engine{
		log:       log,
		extractor: extractor,
		cache:     cache,
		store:     store,
		audit:     audit,
		clock:     clock,
		threshold: cfg.Threshold,
	}
	if cfg.Liveness != nil {
		e.liveness = NewLivenessScorer(*cfg.Liveness)
	}
	e.pool = NewPool(log, e.handle, cfg.Pool)

	return e
}

func (e *Engine) Threshold() float64 { return e.threshold }

func (e *Engine) Pool() *Pool { return e.pool }

func (e *Engine) Cache() *Cache { return e.cache }

func (e *Engine) Extractor() *Extractor { return e.extractor }

func (e *Engine) Verify(ctx context.Context, subjectID string, image []byte, threshold float64) (*entity.VerificationResult, error) {
	out, err := e.pool.Submit(ctx, VerifyRequest{SubjectID: subjectID, Image: image, Threshold: threshold})
	return out.Verification, err
}

func (e *Engine) Identify(ctx context.Context, scope entity.Scope, image []byte, threshold float64) (*entity.IdentifyResult, error) {
	out, err := e.pool.Submit(ctx, IdentifyRequest{Scope: scope, Image: image, Threshold: threshold})
	return out.Identification, err
}

func (e *Engine) Shutdown(ctx context.Context) error {
	return e.pool.Shutdown(ctx)
}

func (e *Engine) handle(ctx context.Context, req Request) (Outcome, error) {
	switch r := req.(type) {
	case VerifyRequest:
		res, err := e.verify(ctx, r)
		return Outcome{Verification: res}, err
	case IdentifyRequest:
		res, err := e.identify(ctx, r)
		return Outcome{Identification: res}, err
	default:
		return Outcome{}, fmt.Errorf("%w: unsupported request %T", ErrVerification, req)
	}
}

func (e *Engine) thresholdFor(requested float64) float64 {
	if requested > 0 {
		return requested
	}
	return e.threshold
}

func (e *Engine) verify(ctx context.Context, r VerifyRequest) (*entity.VerificationResult, error) {
	started := time.Now()
	requestID := contextPkg.GetRequestID(ctx)
	threshold := e.thresholdFor(r.Threshold)

	det, err := e.extractor.Extract(ctx, r.Image)
	if err != nil {
		return nil, err
	}

	reference, cached, err := e.cache.Get(ctx, r.SubjectID)
	if err != nil {
		return nil, err
	}

	cmp, err := Compare(det.Descriptor, reference, threshold)
	if err != nil {
		return nil, err
	}

	res := &entity.VerificationResult{
		Success:    cmp.IsMatch,
		SubjectID:  r.SubjectID,
		IsMatch:    cmp.IsMatch,
		Confidence: cmp.Confidence,
		Distance:   cmp.Distance,
		Cached:     cached,
	}

	outcome := entity.OutcomeNoMatch
	if cmp.IsMatch {
		outcome = entity.OutcomeMatch
	}

	var livenessErr error
	if e.liveness != nil {
		lv := e.liveness.Score(det)
		res.Liveness = &lv

		if !lv.IsLive {
			e.log.WithFields(logrus.Fields{
				"request_id":        requestID,
				"subject_id":        r.SubjectID,
				"composite":         lv.Score,
				"depth_score":       lv.DepthScore,
				"expression_score":  lv.ExpressionScore,
				"orientation_score": lv.OrientationScore,
			}).Warn("Liveness check failed")

			res.Success = false
			outcome = entity.OutcomeLivenessFailed
			livenessErr = ErrLivenessFailed
		}
	}

	res.ProcessingTimeMs = time.Since(started).Milliseconds()

	e.recordAudit(ctx, r.SubjectID, entity.VerificationAudit{
		VerifiedAt: e.clock.Now(),
		Outcome:    outcome,
		Confidence: cmp.Confidence,
	})

	e.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"subject_id": r.SubjectID,
		"is_match":   res.IsMatch,
		"confidence": res.Confidence,
		"cached":     res.Cached,
		"elapsed_ms": res.ProcessingTimeMs,
	}).Info("Verification completed")

	return res, livenessErr
}

func (e *Engine) identify(ctx context.Context, r IdentifyRequest) (*entity.IdentifyResult, error) {
	started := time.Now()
	threshold := e.thresholdFor(r.Threshold)

	det, err := e.extractor.Extract(ctx, r.Image)
	if err != nil {
		return nil, err
	}

	candidates, err := e.store.GetSubjectsByScope(ctx, r.Scope)
	if err != nil {
		return nil, storeError(err)
	}

	descriptors, hits, err := e.cache.BatchGet(ctx, candidates)
	if err != nil {
		return nil, err
	}

	res, err := BestMatch(det.Descriptor, candidates, descriptors, threshold)
	if err != nil {
		return nil, err
	}
	res.ProcessingTimeMs = time.Since(started).Milliseconds()

	if res.Identified {
		e.recordAudit(ctx, res.SubjectID, entity.VerificationAudit{
			VerifiedAt: e.clock.Now(),
			Outcome:    entity.OutcomeMatch,
			Confidence: res.Confidence,
		})
	}

	e.log.WithFields(logrus.Fields{
		"request_id":         contextPkg.GetRequestID(ctx),
		"cohort":             r.Scope.Cohort,
		"group":              r.Scope.Group,
		"identified":         res.Identified,
		"subject_id":         res.SubjectID,
		"candidates_checked": res.CandidatesChecked,
		"cache_hits":         hits,
		"elapsed_ms":         res.ProcessingTimeMs,
	}).Info("Identification completed")

	return res, nil
}

func (e *Engine) recordAudit(ctx context.Context, subjectID string, audit entity.VerificationAudit) {
	if err := e.audit.Record(ctx, subjectID, audit); err != nil {
		level := logrus.ErrorLevel
		if errors.Is(err, ErrSubjectNotFound) {
			level = logrus.WarnLevel
		}
		e.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"subject_id": subjectID,
			"error":      err.Error(),
		}).Log(level, "Failed to record verification audit")
	}
}
