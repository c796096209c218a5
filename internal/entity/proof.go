package entity

import "time"

// ProofRecord is what an offline device sends instead of an image.
// It never carries the descriptor itself, only its hash.
type ProofRecord struct {
	SubjectID       string  `json:"subject_id" validate:"required"`
	ServerTimestamp int64   `json:"server_timestamp" validate:"required,gt=0"`
	IsMatch         bool    `json:"is_match"`
	Confidence      float64 `json:"confidence" validate:"gte=0,lte=100"`
	DescriptorHash  string  `json:"descriptor_hash" validate:"required,len=64,hexadecimal"`
	Signature       string  `json:"signature" validate:"required,len=64,hexadecimal"`
}

type StoredProof struct {
	ID         string    `db:"id"`
	ReceivedAt time.Time `db:"received_at"`
	ProofRecord
}
