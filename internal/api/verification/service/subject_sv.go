package verificationService

import (
	"FaceVerification/internal/api/verification"
	"FaceVerification/internal/entity"
	contextPkg "FaceVerification/pkg/context"
	"FaceVerification/pkg/proof"
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

func (s *subjectDomainImpl) Enroll(ctx context.Context, in verification.EnrollInput) (verification.EnrollResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	det, err := s.engine.Extractor().Extract(ctx, in.Image)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"subject_id": in.SubjectID,
			"error":      err.Error(),
		}).Warn("Failed to extract reference descriptor")
		return verification.EnrollResponse{}, err
	}

	var photoKey string
	if s.s3Client != nil {
		photoKey, err = s.s3Client.UploadReferencePhoto(ctx, in.SubjectID, in.Image, in.ContentType)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"subject_id": in.SubjectID,
				"error":      err.Error(),
			}).Error("Failed to upload reference photo")
			return verification.EnrollResponse{}, fmt.Errorf("%w: %v", verification.ErrFailedToUploadPhoto, err)
		}
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		s.discardPhoto(ctx, photoKey)
		return verification.EnrollResponse{}, err
	}

	previous, err := repo.Subjects.GetSubject(ctx, in.SubjectID)
	if err != nil && !errors.Is(err, verification.ErrSubjectNotFound) {
		s.discardPhoto(ctx, photoKey)
		return verification.EnrollResponse{}, err
	}

	now := s.clock.Now()
	subject := entity.Subject{
		ID:                  in.SubjectID,
		Cohort:              in.Cohort,
		Group:               in.Group,
		Descriptor:          det.Descriptor,
		ReferencePhotoKey:   photoKey,
		DescriptorUpdatedAt: now,
		CreatedAt:           now,
	}

	if err := repo.Subjects.SaveSubject(ctx, subject); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"subject_id": in.SubjectID,
			"error":      err.Error(),
		}).Error("Failed to save subject")
		s.discardPhoto(ctx, photoKey)
		return verification.EnrollResponse{}, err
	}

	cache := s.engine.Cache()
	if err := cache.Invalidate(ctx, in.SubjectID); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"subject_id": in.SubjectID,
			"error":      err.Error(),
		}).Warn("Failed to invalidate cached descriptor")
	}
	cache.Put(ctx, in.SubjectID, det.Descriptor)

	if photoKey != "" && previous.ReferencePhotoKey != photoKey {
		s.discardPhoto(ctx, previous.ReferencePhotoKey)
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"subject_id": in.SubjectID,
		"dimension":  len(det.Descriptor),
	}).Info("Subject enrolled")

	return verification.EnrollResponse{
		SubjectID:         in.SubjectID,
		Dimension:         len(det.Descriptor),
		ReferencePhotoKey: photoKey,
	}, nil
}

func (s *subjectDomainImpl) GetReference(ctx context.Context, subjectID string) (verification.ReferenceResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if len(s.proofCfg.MasterSecret) == 0 {
		return verification.ReferenceResponse{}, verification.ErrProofUnavailable
	}

	descriptor, _, err := s.engine.Cache().Get(ctx, subjectID)
	if err != nil {
		return verification.ReferenceResponse{}, err
	}

	key, err := proof.DeriveKey(s.proofCfg.MasterSecret, s.proofCfg.Salt, subjectID)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to derive proof key")
		return verification.ReferenceResponse{}, err
	}

	return verification.ReferenceResponse{
		SubjectID:  subjectID,
		Descriptor: descriptor,
		ProofKey:   hex.EncodeToString(key),
		IssuedAt:   s.clock.Now().UnixMilli(),
		PhotoURL:   s.photoURL(ctx, subjectID),
	}, nil
}

// discardPhoto removes an archived photo nothing references anymore.
// Failures only leave an orphaned object behind.
func (s *subjectDomainImpl) discardPhoto(ctx context.Context, key string) {
	if key == "" || s.s3Client == nil {
		return
	}
	if err := s.s3Client.DeleteFile(ctx, key); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"photo_key":  key,
			"error":      err.Error(),
		}).Warn("Failed to delete reference photo")
	}
}

// photoURL presigns the stored reference photo. Lookup or signing failures
// only drop the URL.
func (s *subjectDomainImpl) photoURL(ctx context.Context, subjectID string) string {
	if s.s3Client == nil {
		return ""
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		return ""
	}
	subject, err := repo.Subjects.GetSubject(ctx, subjectID)
	if err != nil || subject.ReferencePhotoKey == "" {
		return ""
	}

	url, err := s.s3Client.PresignUrl(subject.ReferencePhotoKey)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"subject_id": subjectID,
			"error":      err.Error(),
		}).Warn("Failed to presign reference photo")
		return ""
	}
	return url
}
