package biometric

import (
	"FaceVerification/internal/entity"
	"context"
	"errors"
	"sync"
	"time"
)

type memoryTier struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	failGet bool
}

type memoryEntry struct {
	d       entity.Descriptor
	expires time.Time
}

func newMemoryTier() *memoryTier {
	return &memoryTier{entries: map[string]memoryEntry{}}
}

func (m *memoryTier) Get(ctx context.Context, id string) (entity.Descriptor, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, false, errors.New("tier down")
	}
	e, ok := m.entries[id]
	if !ok || time.Now().After(e.expires) {
		return nil, false, nil
	}
	return e.d, true, nil
}

func (m *memoryTier) GetMany(ctx context.Context, ids []string) (map[string]entity.Descriptor, error) {
	out := map[string]entity.Descriptor{}
	for _, id := range ids {
		d, ok, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = d
		}
	}
	return out, nil
}

func (m *memoryTier) Set(ctx context.Context, id string, d entity.Descriptor, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = memoryEntry{d: d, expires: time.Now().Add(ttl)}
	return nil
}

func (m *memoryTier) Add(ctx context.Context, id string, d entity.Descriptor, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok && time.Now().Before(e.expires) {
		return false, nil
	}
	m.entries[id] = memoryEntry{d: d, expires: time.Now().Add(ttl)}
	return true, nil
}

func (m *memoryTier) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

type countingStore struct {
	mu          sync.Mutex
	subjects    map[string]entity.Subject
	reads       int
	batchReads  int
	audits      map[string]entity.VerificationAudit
	unavailable bool
}

func newCountingStore(subjects ...entity.Subject) *countingStore {
	s := &countingStore{subjects: map[string]entity.Subject{}, audits: map[string]entity.VerificationAudit{}}
	for _, sub := range subjects {
		s.subjects[sub.ID] = sub
	}
	return s
}

func (s *countingStore) GetSubjectDescriptor(ctx context.Context, id string) (entity.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.unavailable {
		return nil, errors.New("connection refused")
	}
	sub, ok := s.subjects[id]
	if !ok || len(sub.Descriptor) == 0 {
		return nil, ErrSubjectNotFound
	}
	return sub.Descriptor, nil
}

func (s *countingStore) GetSubjectDescriptors(ctx context.Context, ids []string) (map[string]entity.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchReads++
	if s.unavailable {
		return nil, errors.New("connection refused")
	}
	out := map[string]entity.Descriptor{}
	for _, id := range ids {
		if sub, ok := s.subjects[id]; ok && len(sub.Descriptor) > 0 {
			out[id] = sub.Descriptor
		}
	}
	return out, nil
}

func (s *countingStore) GetSubjectsByScope(ctx context.Context, scope entity.Scope) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return nil, errors.New("connection refused")
	}
	var ids []string
	for id, sub := range s.subjects {
		if scope.Cohort != "" && sub.Cohort != scope.Cohort {
			continue
		}
		if scope.Group != "" && sub.Group != scope.Group {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *countingStore) RecordVerificationAudit(ctx context.Context, id string, audit entity.VerificationAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[id]; !ok {
		return ErrSubjectNotFound
	}
	s.audits[id] = audit
	return nil
}

func (s *countingStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *countingStore) auditFor(id string) (entity.VerificationAudit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[id]
	return a, ok
}

// imageModel returns the descriptor registered for the exact image bytes.
type imageModel struct {
	mu     sync.Mutex
	images map[string]*entity.Detection
	block  chan struct{}
}

func newImageModel() *imageModel {
	return &imageModel{images: map[string]*entity.Detection{}}
}

func (m *imageModel) add(image string, det *entity.Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[image] = det
}

func (m *imageModel) Load(ctx context.Context) error { return nil }

func (m *imageModel) Detect(ctx context.Context, image []byte, opts DetectorOptions) (*entity.Detection, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	det, ok := m.images[string(image)]
	if !ok {
		return nil, ErrNoFaceDetected
	}
	return det, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }
