package verificationService

import (
	"FaceVerification/internal/api/verification"
	"FaceVerification/internal/entity"
	"context"

	"github.com/sirupsen/logrus"
)

func (s *adminDomainImpl) WarmCache(ctx context.Context, scope entity.Scope) (verification.WarmCacheResponse, error) {
	count, err := s.engine.Cache().Warm(ctx, scope)
	if err != nil {
		return verification.WarmCacheResponse{}, err
	}

	return verification.WarmCacheResponse{CachedCount: count}, nil
}

func (s *adminDomainImpl) InvalidateCache(ctx context.Context, subjectID string) error {
	return s.engine.Cache().Invalidate(ctx, subjectID)
}

func (s *adminDomainImpl) QueueStats() verification.QueueStatsResponse {
	return verification.QueueStatsResponse{
		Stats:      s.engine.Pool().Stats(),
		ModelReady: s.engine.Extractor().Ready(),
	}
}

func (s *adminDomainImpl) ClearQueue() verification.ClearQueueResponse {
	cleared := s.engine.Pool().ClearQueue()
	if cleared > 0 {
		s.log.WithFields(logrus.Fields{
			"cleared": cleared,
		}).Warn("Pending verification requests cleared")
	}
	return verification.ClearQueueResponse{Cleared: cleared}
}
