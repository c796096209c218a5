package verificationService

import (
	"FaceVerification/internal/api/verification"
	"FaceVerification/internal/entity"
	contextPkg "FaceVerification/pkg/context"
	"FaceVerification/pkg/proof"
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

func (s *proofDomainImpl) ServerTime() verification.ServerTimeResponse {
	return verification.ServerTimeResponse{Timestamp: s.clock.Now().UnixMilli()}
}

// SubmitProof accepts a device-side comparison only if it is authentic,
// recent, and newer than every proof already accepted for the subject.
func (s *proofDomainImpl) SubmitProof(ctx context.Context, record entity.ProofRecord) (verification.ProofAck, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if len(s.proofCfg.MasterSecret) == 0 {
		return verification.ProofAck{}, verification.ErrProofUnavailable
	}

	key, err := proof.DeriveKey(s.proofCfg.MasterSecret, s.proofCfg.Salt, record.SubjectID)
	if err != nil {
		return verification.ProofAck{}, err
	}

	if !proof.Verify(key, record) {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"subject_id": record.SubjectID,
		}).Warn("Proof signature mismatch")
		return verification.ProofAck{}, verification.ErrInvalidProof
	}

	now := s.clock.Now()
	nowMs := now.UnixMilli()
	if record.ServerTimestamp > nowMs+s.proofCfg.ClockSkew.Milliseconds() {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"subject_id": record.SubjectID,
			"timestamp":  record.ServerTimestamp,
		}).Warn("Proof timestamp is in the future")
		return verification.ProofAck{}, verification.ErrInvalidProof
	}
	if nowMs-record.ServerTimestamp > s.proofCfg.MaxAge.Milliseconds() {
		return verification.ProofAck{}, verification.ErrStaleProof
	}

	if stale, err := s.alreadySuperseded(ctx, record); err != nil {
		return verification.ProofAck{}, err
	} else if stale {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"subject_id": record.SubjectID,
			"timestamp":  record.ServerTimestamp,
		}).Warn("Proof replayed or out of order")
		return verification.ProofAck{}, verification.ErrStaleProof
	}

	proofID, err := s.utils.NewULIDFromTimestamp(now)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return verification.ProofAck{}, err
	}

	repo, err := s.repo.NewClient(true)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return verification.ProofAck{}, err
	}
	defer repo.Rollback()

	if err := repo.Proofs.LockSubject(ctx, record.SubjectID); err != nil {
		return verification.ProofAck{}, err
	}

	accepted, err := repo.Proofs.SaveProof(ctx, entity.StoredProof{
		ID:          proofID,
		ReceivedAt:  now,
		ProofRecord: record,
	})
	if err != nil {
		return verification.ProofAck{}, err
	}
	if !accepted {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"subject_id": record.SubjectID,
			"timestamp":  record.ServerTimestamp,
		}).Warn("Proof replayed or out of order")
		return verification.ProofAck{}, verification.ErrStaleProof
	}

	outcome := entity.OutcomeProofNoMatch
	if record.IsMatch {
		outcome = entity.OutcomeProofMatch
	}
	audit := entity.VerificationAudit{
		VerifiedAt: time.UnixMilli(record.ServerTimestamp).UTC(),
		Outcome:    outcome,
		Confidence: record.Confidence,
	}
	if err := repo.Subjects.RecordVerificationAudit(ctx, record.SubjectID, audit); err != nil {
		return verification.ProofAck{}, err
	}

	if err := repo.Commit(); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to commit proof")
		return verification.ProofAck{}, err
	}

	return verification.ProofAck{Accepted: true, ProofID: proofID}, nil
}

// alreadySuperseded rejects replays before the subject row is locked.
// SaveProof repeats the check under the lock.
func (s *proofDomainImpl) alreadySuperseded(ctx context.Context, record entity.ProofRecord) (bool, error) {
	repo, err := s.repo.NewClient(false)
	if err != nil {
		return false, err
	}

	last, err := repo.Proofs.LastProofTimestamp(ctx, record.SubjectID)
	if err != nil {
		return false, err
	}
	return record.ServerTimestamp <= last, nil
}
