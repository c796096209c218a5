package verificationRepository

import (
	"FaceVerification/internal/api/verification"
	"FaceVerification/internal/entity"
	contextPkg "FaceVerification/pkg/context"
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type SubjectDB struct {
	ID                         string          `db:"id"`
	Cohort                     string          `db:"cohort"`
	Group                      string          `db:"group_name"`
	Descriptor                 pq.Float64Array `db:"descriptor"`
	ReferencePhotoKey          sql.NullString  `db:"reference_photo_key"`
	DescriptorUpdatedAt        sql.NullTime    `db:"descriptor_updated_at"`
	LastVerifiedAt             sql.NullTime    `db:"last_verified_at"`
	LastVerificationOutcome    sql.NullString  `db:"last_verification_outcome"`
	LastVerificationConfidence sql.NullFloat64 `db:"last_verification_confidence"`
	CreatedAt                  time.Time       `db:"created_at"`
	UpdatedAt                  sql.NullTime    `db:"updated_at"`
}

type descriptorRow struct {
	ID         string          `db:"id"`
	Descriptor pq.Float64Array `db:"descriptor"`
}

func (r *subjectRepository) GetSubject(c context.Context, id string) (entity.Subject, error) {
	requestID := contextPkg.GetRequestID(c)
	var subject SubjectDB

	query, args, err := sqlx.Named(queryGetSubject, map[string]interface{}{
		"id": id,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSubject named query preparation err")
		return entity.Subject{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Subject{}, verification.ErrSubjectNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSubject execution err")
		return entity.Subject{}, err
	}

	return r.makeSubject(subject), nil
}

func (r *subjectRepository) GetSubjectDescriptor(c context.Context, id string) (entity.Descriptor, error) {
	requestID := contextPkg.GetRequestID(c)
	var descriptor pq.Float64Array

	query, args, err := sqlx.Named(queryGetSubjectDescriptor, map[string]interface{}{
		"id": id,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSubjectDescriptor named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).Scan(&descriptor); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"subject_id": id,
			}).Debug("GetSubjectDescriptor no rows found")
			return nil, verification.ErrSubjectNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSubjectDescriptor execution err")
		return nil, err
	}

	if len(descriptor) == 0 {
		return nil, verification.ErrSubjectNotFound
	}

	return entity.Descriptor(descriptor), nil
}

func (r *subjectRepository) GetSubjectDescriptors(c context.Context, ids []string) (map[string]entity.Descriptor, error) {
	requestID := contextPkg.GetRequestID(c)
	out := make(map[string]entity.Descriptor, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sqlx.Named(queryGetSubjectDescriptors, map[string]interface{}{
		"ids": pq.Array(ids),
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSubjectDescriptors named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	rows, err := r.q.QueryxContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSubjectDescriptors execution err")
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var row descriptorRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		if len(row.Descriptor) > 0 {
			out[row.ID] = entity.Descriptor(row.Descriptor)
		}
	}

	return out, rows.Err()
}

func (r *subjectRepository) GetSubjectsByScope(c context.Context, scope entity.Scope) ([]string, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryGetSubjectsByScope, map[string]interface{}{
		"cohort":     scope.Cohort,
		"group_name": scope.Group,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSubjectsByScope named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	var ids []string
	if err := sqlx.SelectContext(c, r.q, &ids, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetSubjectsByScope execution err")
		return nil, err
	}

	return ids, nil
}

func (r *subjectRepository) SaveSubject(c context.Context, subject entity.Subject) error {
	requestID := contextPkg.GetRequestID(c)

	var photoKey sql.NullString
	if subject.ReferencePhotoKey != "" {
		photoKey = sql.NullString{String: subject.ReferencePhotoKey, Valid: true}
	}

	createdAt := subject.CreatedAt
	if createdAt.IsZero() {
		createdAt = subject.DescriptorUpdatedAt
	}

	query, args, err := sqlx.Named(querySaveSubject, map[string]interface{}{
		"id":                    subject.ID,
		"cohort":                subject.Cohort,
		"group_name":            subject.Group,
		"descriptor":            pq.Float64Array(subject.Descriptor),
		"reference_photo_key":   photoKey,
		"descriptor_updated_at": subject.DescriptorUpdatedAt,
		"created_at":            createdAt,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for SaveSubject")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when saving subject")
		return err
	}

	return nil
}

func (r *subjectRepository) RecordVerificationAudit(c context.Context, id string, audit entity.VerificationAudit) error {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryRecordVerificationAudit, map[string]interface{}{
		"id":          id,
		"verified_at": audit.VerifiedAt,
		"outcome":     string(audit.Outcome),
		"confidence":  audit.Confidence,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("RecordVerificationAudit named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	res, err := r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("RecordVerificationAudit execution err")
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return verification.ErrSubjectNotFound
	}

	return nil
}

func (r *subjectRepository) makeSubject(s SubjectDB) entity.Subject {
	subject := entity.Subject{
		ID:        s.ID,
		Cohort:    s.Cohort,
		Group:     s.Group,
		CreatedAt: s.CreatedAt,
	}

	if len(s.Descriptor) > 0 {
		subject.Descriptor = entity.Descriptor(s.Descriptor)
	}
	if s.ReferencePhotoKey.Valid {
		subject.ReferencePhotoKey = s.ReferencePhotoKey.String
	}
	if s.DescriptorUpdatedAt.Valid {
		subject.DescriptorUpdatedAt = s.DescriptorUpdatedAt.Time
	}
	if s.LastVerifiedAt.Valid {
		subject.LastVerifiedAt = s.LastVerifiedAt.Time
	}
	if s.LastVerificationOutcome.Valid {
		subject.LastVerificationOutcome = s.LastVerificationOutcome.String
	}
	if s.LastVerificationConfidence.Valid {
		subject.LastVerificationConfidence = s.LastVerificationConfidence.Float64
	}
	if s.UpdatedAt.Valid {
		subject.UpdatedAt = s.UpdatedAt.Time
	}

	return subject
}
