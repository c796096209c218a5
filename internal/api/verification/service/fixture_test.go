package verificationService

import (
	verificationRepository "FaceVerification/internal/api/verification/repository"
	"FaceVerification/internal/biometric"
	"FaceVerification/internal/entity"
	"FaceVerification/pkg/memcache"
	"FaceVerification/pkg/utils"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var (
	startTime   = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	masterKey   = []byte("test-master-secret-with-enough-entropy")
	proofSalt   = []byte("verification")
	aliceFace   = entity.Descriptor{0.1, 0.2, 0.3, 0.4}
	aliceFace2  = entity.Descriptor{0.4, 0.3, 0.2, 0.1}
	strangeFace = entity.Descriptor{3, 3, 3, 3}
)

type imageModel struct {
	mu         sync.Mutex
	detections map[string]entity.Descriptor
}

func (m *imageModel) Load(ctx context.Context) error { return nil }

func (m *imageModel) Detect(ctx context.Context, image []byte, opts biometric.DetectorOptions) (*entity.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.detections[string(image)]
	if !ok {
		return nil, biometric.ErrNoFaceDetected
	}
	return &entity.Detection{Descriptor: d.Clone()}, nil
}

type steppingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *steppingClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeS3 struct {
	mu      sync.Mutex
	uploads map[string][]byte
	deleted []string
	fail    bool
}

func (f *fakeS3) UploadReferencePhoto(ctx context.Context, subjectID string, data []byte, contentType string) (string, error) {
	if f.fail {
		return "", errors.New("bucket unreachable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := "subjects/" + subjectID + "/reference/" + string(data)
	f.uploads[key] = data
	return key, nil
}

func (f *fakeS3) PresignUrl(key string) (string, error) { return "https://example.invalid/" + key, nil }

func (f *fakeS3) DeleteFile(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploads, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type fixture struct {
	svc    VerificationService
	repo   *verificationRepository.MemoryRepository
	engine *biometric.Engine
	clock  *steppingClock
	s3     *fakeS3
}

func newFixture(t *testing.T, proofCfg ProofConfig) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	model := &imageModel{detections: map[string]entity.Descriptor{
		"alice.jpg":   aliceFace,
		"alice-2.jpg": aliceFace2,
		"bob.jpg":     strangeFace,
	}}
	extractor := biometric.NewExtractor(log, model, biometric.CascadeConfig{})
	require.NoError(t, extractor.Init(context.Background()))

	repo := verificationRepository.NewMemory()
	store := verificationRepository.NewStore(repo)
	cache := biometric.NewCache(log, memcache.New(time.Hour), store, time.Hour)
	clock := &steppingClock{t: startTime}

	engine := biometric.NewEngine(log, extractor, cache, store, nil, clock, biometric.EngineConfig{
		Pool: biometric.PoolConfig{MaxConcurrent: 2},
	})
	t.Cleanup(func() {
		_ = engine.Shutdown(context.Background())
	})

	s3Client := &fakeS3{uploads: make(map[string][]byte)}

	return &fixture{
		svc:    New(log, repo, engine, s3Client, utils.New(), clock, proofCfg),
		repo:   repo,
		engine: engine,
		clock:  clock,
		s3:     s3Client,
	}
}

func defaultProofConfig() ProofConfig {
	return ProofConfig{
		MasterSecret: masterKey,
		Salt:         proofSalt,
		MaxAge:       5 * time.Minute,
		ClockSkew:    2 * time.Second,
	}
}
