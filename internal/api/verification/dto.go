package verification

import (
	"FaceVerification/internal/biometric"
	"FaceVerification/internal/entity"
)

type VerifyRequest struct {
	SubjectID   string  `json:"subject_id" form:"subject_id" validate:"required,max=64"`
	ImageBase64 string  `json:"image_base64" form:"-"`
	Threshold   float64 `json:"threshold" form:"threshold" validate:"omitempty,gt=0,lte=2"`
}

type IdentifyRequest struct {
	Scope       entity.Scope `json:"scope"`
	ImageBase64 string       `json:"image_base64" validate:"required"`
	Threshold   float64      `json:"threshold" validate:"omitempty,gt=0,lte=2"`
}

type WarmCacheRequest struct {
	Scope entity.Scope `json:"scope"`
}

type WarmCacheResponse struct {
	CachedCount int `json:"cached_count"`
}

type InvalidateCacheRequest struct {
	SubjectID string `json:"subject_id" validate:"required,max=64"`
}

type ProofAck struct {
	Accepted bool   `json:"accepted"`
	ProofID  string `json:"proof_id"`
}

type QueueStatsResponse struct {
	biometric.Stats
	ModelReady bool `json:"model_ready"`
}

type ClearQueueResponse struct {
	Cleared int `json:"cleared"`
}

type EnrollRequest struct {
	Cohort string `form:"cohort" validate:"max=64"`
	Group  string `form:"group" validate:"max=64"`
}

type EnrollInput struct {
	SubjectID   string
	Cohort      string
	Group       string
	Image       []byte
	ContentType string
}

type EnrollResponse struct {
	SubjectID         string `json:"subject_id"`
	Dimension         int    `json:"dimension"`
	ReferencePhotoKey string `json:"reference_photo_key,omitempty"`
}

// ReferenceResponse is downloaded once per subject by an offline device.
type ReferenceResponse struct {
	SubjectID  string    `json:"subject_id"`
	Descriptor []float64 `json:"descriptor"`
	ProofKey   string    `json:"proof_key"`
	IssuedAt   int64     `json:"issued_at"`
	PhotoURL   string    `json:"photo_url,omitempty"`
}

type ServerTimeResponse struct {
	Timestamp int64 `json:"timestamp"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
