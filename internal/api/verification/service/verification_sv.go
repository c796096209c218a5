package verificationService

import (
	"FaceVerification/internal/entity"
	"context"
)

// Verify and Identify are queued through the engine pool; the engine records
// the audit and logs the outcome.
func (s *verificationDomainImpl) Verify(ctx context.Context, subjectID string, image []byte, threshold float64) (*entity.VerificationResult, error) {
	return s.engine.Verify(ctx, subjectID, image, threshold)
}

func (s *verificationDomainImpl) Identify(ctx context.Context, scope entity.Scope, image []byte, threshold float64) (*entity.IdentifyResult, error) {
	return s.engine.Identify(ctx, scope, image, threshold)
}
