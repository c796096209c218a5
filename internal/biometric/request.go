package biometric

import (
	"FaceVerification/internal/entity"
)

type Kind int

const (
	KindVerify Kind = iota
	KindIdentify
)

func (k Kind) String() string {
	switch k {
	case KindVerify:
		return "verify"
	case KindIdentify:
		return "identify"
	default:
		return "unknown"
	}
}

// Request is either a VerifyRequest or an IdentifyRequest.
type Request interface {
	Kind() Kind
}

type VerifyRequest struct {
	SubjectID string
	Image     []byte
	Threshold float64
}

func (VerifyRequest) Kind() Kind { return KindVerify }

type IdentifyRequest struct {
	Scope     entity.Scope
	Image     []byte
	Threshold float64
}

func (IdentifyRequest) Kind() Kind { return KindIdentify }

// Outcome holds exactly one of the two results, matching the request kind.
type Outcome struct {
	Verification   *entity.VerificationResult
	Identification *entity.IdentifyResult
}
