package verificationRepository

import (
	"FaceVerification/internal/entity"
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
}

func (r *repository) NewClient(tx bool) (Client, error) {
	var db sqlx.ExtContext
	var commitFunc, rollbackFunc func() error

	db = r.DB

	if tx {
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		db = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		Subjects: &subjectRepository{q: db, log: r.log},
		Proofs:   &proofRepository{q: db, log: r.log},
		Commit:   commitFunc,
		Rollback: rollbackFunc,
	}, nil
}

type Client struct {
	Subjects interface {
		GetSubject(ctx context.Context, id string) (entity.Subject, error)
		GetSubjectDescriptor(ctx context.Context, id string) (entity.Descriptor, error)
		GetSubjectDescriptors(ctx context.Context, ids []string) (map[string]entity.Descriptor, error)
		GetSubjectsByScope(ctx context.Context, scope entity.Scope) ([]string, error)
		SaveSubject(ctx context.Context, subject entity.Subject) error
		RecordVerificationAudit(ctx context.Context, id string, audit entity.VerificationAudit) error
	}

	Proofs interface {
		// LockSubject serialises proof submissions of one subject until the
		// transaction ends.
		LockSubject(ctx context.Context, subjectID string) error
		LastProofTimestamp(ctx context.Context, subjectID string) (int64, error)
		// SaveProof stores the proof only if its timestamp is newer than every
		// accepted proof of the subject.
		SaveProof(ctx context.Context, proof entity.StoredProof) (bool, error)
	}

	Commit   func() error
	Rollback func() error
}

type subjectRepository struct {
	q   sqlx.ExtContext
	log *logrus.Logger
}

type proofRepository struct {
	q   sqlx.ExtContext
	log *logrus.Logger
}
