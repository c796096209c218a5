package verificationService

import (
	"FaceVerification/internal/api/verification"
	verificationRepository "FaceVerification/internal/api/verification/repository"
	"FaceVerification/internal/biometric"
	"FaceVerification/internal/entity"
	"FaceVerification/pkg/s3"
	"FaceVerification/pkg/utils"
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultProofMaxAge    = 5 * time.Minute
	DefaultProofClockSkew = 30 * time.Second
)

type ProofConfig struct {
	MasterSecret []byte
	Salt         []byte
	MaxAge       time.Duration
	ClockSkew    time.Duration
}

type VerificationService interface {
	Verification() VerificationDomain
	Subject() SubjectDomain
	Proof() ProofDomain
	Admin() AdminDomain
	GetRepository() verificationRepository.Repository
}

type VerificationDomain interface {
	Verify(c context.Context, subjectID string, image []byte, threshold float64) (*entity.VerificationResult, error)
	Identify(c context.Context, scope entity.Scope, image []byte, threshold float64) (*entity.IdentifyResult, error)
}

type SubjectDomain interface {
	Enroll(c context.Context, in verification.EnrollInput) (verification.EnrollResponse, error)
	GetReference(c context.Context, subjectID string) (verification.ReferenceResponse, error)
}

type ProofDomain interface {
	ServerTime() verification.ServerTimeResponse
	SubmitProof(c context.Context, record entity.ProofRecord) (verification.ProofAck, error)
}

type AdminDomain interface {
	WarmCache(c context.Context, scope entity.Scope) (verification.WarmCacheResponse, error)
	InvalidateCache(c context.Context, subjectID string) error
	QueueStats() verification.QueueStatsResponse
	ClearQueue() verification.ClearQueueResponse
}

type verificationService struct {
	repo verificationRepository.Repository

	verificationDomain VerificationDomain
	subjectDomain      SubjectDomain
	proofDomain        ProofDomain
	adminDomain        AdminDomain
}

func (s *verificationService) Verification() VerificationDomain {
	return s.verificationDomain
}

func (s *verificationService) Subject() SubjectDomain {
	return s.subjectDomain
}

func (s *verificationService) Proof() ProofDomain {
	return s.proofDomain
}

func (s *verificationService) Admin() AdminDomain {
	return s.adminDomain
}

func (s *verificationService) GetRepository() verificationRepository.Repository {
	return s.repo
}

type verificationDomainImpl struct {
	log    *logrus.Logger
	engine *biometric.Engine
}

type subjectDomainImpl struct {
	log      *logrus.Logger
	repo     verificationRepository.Repository
	engine   *biometric.Engine
	s3Client s3.ItfS3
	clock    biometric.Clock
	proofCfg ProofConfig
}

type proofDomainImpl struct {
	log      *logrus.Logger
	repo     verificationRepository.Repository
	utils    utils.IUtils
	clock    biometric.Clock
	proofCfg ProofConfig
}

type adminDomainImpl struct {
	log    *logrus.Logger
	engine *biometric.Engine
}

// New wires the verification domains. s3Client may be nil, in which case
// enrollment photos are not archived.
func New(log *logrus.Logger,
	repo verificationRepository.Repository,
	engine *biometric.Engine,
	s3Client s3.ItfS3,
	utils utils.IUtils,
	clock biometric.Clock,
	proofCfg ProofConfig,
) VerificationService {
	if clock == nil {
		clock = biometric.SystemClock{}
	}
	if proofCfg.MaxAge <= 0 {
		proofCfg.MaxAge = DefaultProofMaxAge
	}
	if proofCfg.ClockSkew < 0 {
		proofCfg.ClockSkew = 0
	}

	return &verificationService{
		repo: repo,

		verificationDomain: &verificationDomainImpl{log: log, engine: engine},
		subjectDomain:      &subjectDomainImpl{log: log, repo: repo, engine: engine, s3Client: s3Client, clock: clock, proofCfg: proofCfg},
		proofDomain:        &proofDomainImpl{log: log, repo: repo, utils: utils, clock: clock, proofCfg: proofCfg},
		adminDomain:        &adminDomainImpl{log: log, engine: engine},
	}
}
