package verificationRepository

import (
	"FaceVerification/internal/api/verification"
	"FaceVerification/internal/entity"
	contextPkg "FaceVerification/pkg/context"
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

func (r *proofRepository) LockSubject(c context.Context, subjectID string) error {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryLockSubject, map[string]interface{}{
		"id": subjectID,
	})
	if err != nil {
		return err
	}
	query = r.q.Rebind(query)

	var id string
	if err := r.q.QueryRowxContext(c, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return verification.ErrSubjectNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("LockSubject execution err")
		return err
	}

	return nil
}

func (r *proofRepository) LastProofTimestamp(c context.Context, subjectID string) (int64, error) {
	query, args, err := sqlx.Named(queryLastProofTimestamp, map[string]interface{}{
		"subject_id": subjectID,
	})
	if err != nil {
		return 0, err
	}
	query = r.q.Rebind(query)

	var ts int64
	if err := r.q.QueryRowxContext(c, query, args...).Scan(&ts); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(c),
			"error":      err.Error(),
		}).Error("LastProofTimestamp execution err")
		return 0, err
	}

	return ts, nil
}

func (r *proofRepository) SaveProof(c context.Context, proof entity.StoredProof) (bool, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(querySaveProof, map[string]interface{}{
		"id":               proof.ID,
		"subject_id":       proof.SubjectID,
		"server_timestamp": proof.ServerTimestamp,
		"is_match":         proof.IsMatch,
		"confidence":       proof.Confidence,
		"descriptor_hash":  proof.DescriptorHash,
		"signature":        proof.Signature,
		"received_at":      proof.ReceivedAt,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for SaveProof")
		return false, err
	}
	query = r.q.Rebind(query)

	res, err := r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when saving proof")
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}
