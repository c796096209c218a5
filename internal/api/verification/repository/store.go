package verificationRepository

import (
	"FaceVerification/internal/entity"
	"context"
)

// Store exposes a Repository as the subject store used by the descriptor
// cache, the engine and the audit worker.
type Store struct {
	repo Repository
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

func (s *Store) GetSubjectDescriptor(ctx context.Context, subjectID string) (entity.Descriptor, error) {
	client, err := s.repo.NewClient(false)
	if err != nil {
		return nil, err
	}
	return client.Subjects.GetSubjectDescriptor(ctx, subjectID)
}

func (s *Store) GetSubjectDescriptors(ctx context.Context, subjectIDs []string) (map[string]entity.Descriptor, error) {
	client, err := s.repo.NewClient(false)
	if err != nil {
		return nil, err
	}
	return client.Subjects.GetSubjectDescriptors(ctx, subjectIDs)
}

func (s *Store) GetSubjectsByScope(ctx context.Context, scope entity.Scope) ([]string, error) {
	client, err := s.repo.NewClient(false)
	if err != nil {
		return nil, err
	}
	return client.Subjects.GetSubjectsByScope(ctx, scope)
}

func (s *Store) RecordVerificationAudit(ctx context.Context, subjectID string, audit entity.VerificationAudit) error {
	client, err := s.repo.NewClient(false)
	if err != nil {
		return err
	}
	return client.Subjects.RecordVerificationAudit(ctx, subjectID, audit)
}
