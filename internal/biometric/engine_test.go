package biometric

import (
	"FaceVerification/internal/entity"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func liveDetection(d entity.Descriptor) *entity.Detection {
	transform := identityTransform
	transform[1] = 0.2
	transform[4] = -0.2
	transform[14] = -45
	return &entity.Detection{
		Descriptor:  d,
		Landmarks:   []entity.Point3{{Z: -0.05}, {Z: 0.05}, {Z: -0.05}, {Z: 0.05}},
		Blendshapes: []float64{0.9, 0.1, 0.95, 0.0},
		Transform:   transform,
	}
}

func photoDetection(d entity.Descriptor) *entity.Detection {
	return &entity.Detection{
		Descriptor:  d,
		Landmarks:   []entity.Point3{{Z: 0.1}, {Z: 0.1}, {Z: 0.1}},
		Blendshapes: []float64{0.5, 0.5},
		Transform:   identityTransform,
	}
}

type engineFixture struct {
	engine *Engine
	model  *imageModel
	store  *countingStore
}

func newEngineFixture(t *testing.T, liveness bool, subjects ...entity.Subject) *engineFixture {
	t.Helper()
	log := quietLogger()

	model := newImageModel()
	extractor := NewExtractor(log, model, CascadeConfig{})
	require.NoError(t, extractor.Init(context.Background()))

	store := newCountingStore(subjects...)
	cache := NewCache(log, newMemoryTier(), store, time.Hour)

	cfg := EngineConfig{Pool: PoolConfig{MaxConcurrent: 4}}
	if liveness {
		lc := DefaultLivenessConfig()
		cfg.Liveness = &lc
	}

	e := NewEngine(log, extractor, cache, store, nil, fixedClock{testNow}, cfg)
	t.Cleanup(func() { _ = e.Shutdown(context.Background()) })

	return &engineFixture{engine: e, model: model, store: store}
}

func TestEngineVerifyMatchThenCached(t *testing.T) {
	f := newEngineFixture(t, false, entity.Subject{ID: "s-1", Descriptor: entity.Descriptor{0, 0, 0}})
	f.model.add("selfie", liveDetection(entity.Descriptor{0.1, 0, 0}))
	ctx := context.Background()

	res, err := f.engine.Verify(ctx, "s-1", []byte("selfie"), 0)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, res.IsMatch)
	require.False(t, res.Cached)
	require.InDelta(t, 90, res.Confidence, 1e-9)
	require.Nil(t, res.Liveness)

	res, err = f.engine.Verify(ctx, "s-1", []byte("selfie"), 0)
	require.NoError(t, err)
	require.True(t, res.Cached)
	require.Equal(t, 1, f.store.readCount())

	audit, ok := f.store.auditFor("s-1")
	require.True(t, ok)
	require.Equal(t, entity.OutcomeMatch, audit.Outcome)
	require.Equal(t, testNow, audit.VerifiedAt)
}

func TestEngineVerifyNoMatchIsNotAnError(t *testing.T) {
	f := newEngineFixture(t, false, entity.Subject{ID: "s-1", Descriptor: entity.Descriptor{0, 0}})
	f.model.add("stranger", liveDetection(entity.Descriptor{1, 1}))

	res, err := f.engine.Verify(context.Background(), "s-1", []byte("stranger"), 0)
	require.NoError(t, err)
	require.False(t, res.IsMatch)
	require.False(t, res.Success)
	require.Zero(t, res.Confidence)

	audit, _ := f.store.auditFor("s-1")
	require.Equal(t, entity.OutcomeNoMatch, audit.Outcome)
}

func TestEngineVerifyPerRequestThreshold(t *testing.T) {
	f := newEngineFixture(t, false, entity.Subject{ID: "s-1", Descriptor: entity.Descriptor{0}})
	f.model.add("selfie", liveDetection(entity.Descriptor{0.5}))

	res, err := f.engine.Verify(context.Background(), "s-1", []byte("selfie"), 0.4)
	require.NoError(t, err)
	require.False(t, res.IsMatch)
}

func TestEngineVerifyErrors(t *testing.T) {
	f := newEngineFixture(t, false, entity.Subject{ID: "s-1", Descriptor: entity.Descriptor{0, 0}})
	f.model.add("selfie", liveDetection(entity.Descriptor{0, 0}))
	f.model.add("short", liveDetection(entity.Descriptor{0}))
	ctx := context.Background()

	_, err := f.engine.Verify(ctx, "s-1", []byte("blank wall"), 0)
	require.True(t, errors.Is(err, ErrNoFaceDetected))

	_, err = f.engine.Verify(ctx, "ghost", []byte("selfie"), 0)
	require.True(t, errors.Is(err, ErrSubjectNotFound))

	_, err = f.engine.Verify(ctx, "s-1", []byte("short"), 0)
	require.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestEngineLivenessFailureIsDistinct(t *testing.T) {
	f := newEngineFixture(t, true, entity.Subject{ID: "s-1", Descriptor: entity.Descriptor{0, 0}})
	f.model.add("printed photo", photoDetection(entity.Descriptor{0, 0}))
	f.model.add("selfie", liveDetection(entity.Descriptor{0, 0}))
	ctx := context.Background()

	res, err := f.engine.Verify(ctx, "s-1", []byte("printed photo"), 0)
	require.True(t, errors.Is(err, ErrLivenessFailed))
	require.False(t, errors.Is(err, ErrNoFaceDetected))
	require.NotNil(t, res)
	require.False(t, res.Success)
	require.False(t, res.Liveness.IsLive)

	audit, _ := f.store.auditFor("s-1")
	require.Equal(t, entity.OutcomeLivenessFailed, audit.Outcome)

	res, err = f.engine.Verify(ctx, "s-1", []byte("selfie"), 0)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, res.Liveness.IsLive)
}

func TestEngineIdentify(t *testing.T) {
	f := newEngineFixture(t, false,
		entity.Subject{ID: "a", Cohort: "2024", Group: "A", Descriptor: entity.Descriptor{0.5, 0}},
		entity.Subject{ID: "b", Cohort: "2024", Group: "A", Descriptor: entity.Descriptor{0.2, 0}},
		entity.Subject{ID: "c", Cohort: "2024", Group: "A"},
		entity.Subject{ID: "d", Cohort: "2024", Group: "B", Descriptor: entity.Descriptor{0, 0}},
	)
	f.model.add("selfie", liveDetection(entity.Descriptor{0, 0}))
	ctx := context.Background()

	res, err := f.engine.Identify(ctx, entity.Scope{Cohort: "2024", Group: "A"}, []byte("selfie"), 0)
	require.NoError(t, err)
	require.True(t, res.Identified)
	require.Equal(t, "b", res.SubjectID)
	require.Equal(t, 2, res.CandidatesChecked)

	_, ok := f.store.auditFor("b")
	require.True(t, ok)
	_, ok = f.store.auditFor("a")
	require.False(t, ok)

	res, err = f.engine.Identify(ctx, entity.Scope{Cohort: "1999"}, []byte("selfie"), 0)
	require.NoError(t, err)
	require.False(t, res.Identified)
	require.Zero(t, res.CandidatesChecked)
}

func TestEngineModelNotReady(t *testing.T) {
	log := quietLogger()
	extractor := NewExtractor(log, newImageModel(), CascadeConfig{})
	store := newCountingStore()
	e := NewEngine(log, extractor, NewCache(log, newMemoryTier(), store, 0), store, nil, nil, EngineConfig{})
	defer e.Shutdown(context.Background())

	_, err := e.Verify(context.Background(), "s-1", []byte("selfie"), 0)
	require.True(t, errors.Is(err, ErrModelNotReady))
}
