package verificationRepository

import (
	"FaceVerification/internal/api/verification"
	"FaceVerification/internal/entity"
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps subjects and proofs in process. A transactional
// client holds the store lock until Commit or Rollback; writes are applied
// immediately and are not undone by Rollback.
type MemoryRepository struct {
	mu       sync.Mutex
	subjects map[string]entity.Subject
	proofs   map[string][]entity.StoredProof
}

func NewMemory() *MemoryRepository {
	return &MemoryRepository{
		subjects: make(map[string]entity.Subject),
		proofs:   make(map[string][]entity.StoredProof),
	}
}

func (m *MemoryRepository) NewClient(tx bool) (Client, error) {
	mc := &memoryClient{m: m, held: tx}

	release := func() error { return nil }
	if tx {
		m.mu.Lock()
		var once sync.Once
		release = func() error {
			once.Do(m.mu.Unlock)
			return nil
		}
	}

	return Client{
		Subjects: mc,
		Proofs:   mc,
		Commit:   release,
		Rollback: release,
	}, nil
}

// Proofs returns every stored proof of a subject ordered by server timestamp.
func (m *MemoryRepository) Proofs(subjectID string) []entity.StoredProof {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]entity.StoredProof, len(m.proofs[subjectID]))
	copy(out, m.proofs[subjectID])
	return out
}

type memoryClient struct {
	m    *MemoryRepository
	held bool
}

func (c *memoryClient) do(fn func()) {
	if !c.held {
		c.m.mu.Lock()
		defer c.m.mu.Unlock()
	}
	fn()
}

func (c *memoryClient) GetSubject(ctx context.Context, id string) (entity.Subject, error) {
	var (
		subject entity.Subject
		ok      bool
	)
	c.do(func() {
		subject, ok = c.m.subjects[id]
		subject.Descriptor = subject.Descriptor.Clone()
	})
	if !ok {
		return entity.Subject{}, verification.ErrSubjectNotFound
	}
	return subject, nil
}

func (c *memoryClient) GetSubjectDescriptor(ctx context.Context, id string) (entity.Descriptor, error) {
	var d entity.Descriptor
	c.do(func() {
		d = c.m.subjects[id].Descriptor.Clone()
	})
	if len(d) == 0 {
		return nil, verification.ErrSubjectNotFound
	}
	return d, nil
}

func (c *memoryClient) GetSubjectDescriptors(ctx context.Context, ids []string) (map[string]entity.Descriptor, error) {
	out := make(map[string]entity.Descriptor, len(ids))
	c.do(func() {
		for _, id := range ids {
			if d := c.m.subjects[id].Descriptor; len(d) > 0 {
				out[id] = d.Clone()
			}
		}
	})
	return out, nil
}

func (c *memoryClient) GetSubjectsByScope(ctx context.Context, scope entity.Scope) ([]string, error) {
	var ids []string
	c.do(func() {
		for id, s := range c.m.subjects {
			if len(s.Descriptor) == 0 {
				continue
			}
			if scope.Cohort != "" && s.Cohort != scope.Cohort {
				continue
			}
			if scope.Group != "" && s.Group != scope.Group {
				continue
			}
			ids = append(ids, id)
		}
	})
	sort.Strings(ids)
	return ids, nil
}

func (c *memoryClient) SaveSubject(ctx context.Context, subject entity.Subject) error {
	c.do(func() {
		current, exists := c.m.subjects[subject.ID]
		if exists {
			subject.CreatedAt = current.CreatedAt
			subject.LastVerifiedAt = current.LastVerifiedAt
			subject.LastVerificationOutcome = current.LastVerificationOutcome
			subject.LastVerificationConfidence = current.LastVerificationConfidence
			subject.UpdatedAt = subject.DescriptorUpdatedAt
			if subject.ReferencePhotoKey == "" {
				subject.ReferencePhotoKey = current.ReferencePhotoKey
			}
		} else if subject.CreatedAt.IsZero() {
			subject.CreatedAt = subject.DescriptorUpdatedAt
		}
		subject.Descriptor = subject.Descriptor.Clone()
		c.m.subjects[subject.ID] = subject
	})
	return nil
}

func (c *memoryClient) RecordVerificationAudit(ctx context.Context, id string, audit entity.VerificationAudit) error {
	var ok bool
	c.do(func() {
		var s entity.Subject
		s, ok = c.m.subjects[id]
		if !ok {
			return
		}
		s.LastVerifiedAt = audit.VerifiedAt
		s.LastVerificationOutcome = string(audit.Outcome)
		s.LastVerificationConfidence = audit.Confidence
		s.UpdatedAt = audit.VerifiedAt
		c.m.subjects[id] = s
	})
	if !ok {
		return verification.ErrSubjectNotFound
	}
	return nil
}

func (c *memoryClient) LockSubject(ctx context.Context, subjectID string) error {
	var ok bool
	c.do(func() {
		_, ok = c.m.subjects[subjectID]
	})
	if !ok {
		return verification.ErrSubjectNotFound
	}
	return nil
}

func (c *memoryClient) LastProofTimestamp(ctx context.Context, subjectID string) (int64, error) {
	var ts int64
	c.do(func() {
		ts = c.m.lastProofTimestamp(subjectID)
	})
	return ts, nil
}

func (c *memoryClient) SaveProof(ctx context.Context, proof entity.StoredProof) (bool, error) {
	var accepted bool
	c.do(func() {
		if proof.ServerTimestamp <= c.m.lastProofTimestamp(proof.SubjectID) {
			return
		}
		c.m.proofs[proof.SubjectID] = append(c.m.proofs[proof.SubjectID], proof)
		accepted = true
	})
	return accepted, nil
}

func (m *MemoryRepository) lastProofTimestamp(subjectID string) int64 {
	proofs := m.proofs[subjectID]
	if len(proofs) == 0 {
		return 0
	}
	return proofs[len(proofs)-1].ServerTimestamp
}
