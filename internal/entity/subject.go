package entity

import "time"

type Subject struct {
	ID                         string     `db:"id"`
	Cohort                     string     `db:"cohort"`
	Group                      string     `db:"group_name"`
	Descriptor                 Descriptor `db:"descriptor"`
	ReferencePhotoKey          string     `db:"reference_photo_key"`
	DescriptorUpdatedAt        time.Time  `db:"descriptor_updated_at"`
	LastVerifiedAt             time.Time  `db:"last_verified_at"`
	LastVerificationOutcome    string     `db:"last_verification_outcome"`
	LastVerificationConfidence float64    `db:"last_verification_confidence"`
	CreatedAt                  time.Time  `db:"created_at"`
	UpdatedAt                  time.Time  `db:"updated_at"`
}

// Scope selects the candidate population of an identification.
// Empty fields match everything.
type Scope struct {
	Cohort string `json:"cohort"`
	Group  string `json:"group"`
}

type VerificationOutcome string

const (
	OutcomeMatch          VerificationOutcome = "MATCH"
	OutcomeNoMatch        VerificationOutcome = "NO_MATCH"
	OutcomeLivenessFailed VerificationOutcome = "LIVENESS_FAILED"
	OutcomeProofMatch     VerificationOutcome = "PROOF_MATCH"
	OutcomeProofNoMatch   VerificationOutcome = "PROOF_NO_MATCH"
)

type VerificationAudit struct {
	VerifiedAt time.Time           `json:"verified_at"`
	Outcome    VerificationOutcome `json:"outcome"`
	Confidence float64             `json:"confidence"`
}

type OperatorLoginData struct {
	ID   string
	Role string
}
