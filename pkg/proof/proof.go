package proof

import (
	"FaceVerification/internal/entity"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"golang.org/x/crypto/hkdf"
)

const KeySize = 32

var ErrMasterSecretRequired = errors.New("proof master secret is required")

// HashDescriptor hashes the big-endian IEEE-754 bits of every component.
func HashDescriptor(d entity.Descriptor) string {
	buf := make([]byte, 8*len(d))
	for i, v := range d {
		binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// Payload is the canonical byte form covered by the signature. Confidence is
// written in its shortest exact form so every distinct value signs
// differently.
func Payload(r entity.ProofRecord) []byte {
	return []byte(fmt.Sprintf("%s|%d|%s|%s|%s",
		r.SubjectID,
		r.ServerTimestamp,
		strconv.FormatBool(r.IsMatch),
		strconv.FormatFloat(r.Confidence, 'g', -1, 64),
		r.DescriptorHash,
	))
}

func Sign(key []byte, r entity.ProofRecord) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(Payload(r))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the record's signature was produced with key.
func Verify(key []byte, r entity.ProofRecord) bool {
	got, err := hex.DecodeString(r.Signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(Payload(r))
	return hmac.Equal(got, mac.Sum(nil))
}

// DeriveKey returns the per-subject signing key shared with offline devices.
func DeriveKey(master, salt []byte, subjectID string) ([]byte, error) {
	if len(master) == 0 {
		return nil, ErrMasterSecretRequired
	}

	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, master, salt, []byte("proof:"+subjectID))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive proof key: %w", err)
	}
	return key, nil
}

// New builds a signed record for a comparison made on the device.
func New(key []byte, subjectID string, serverTimestamp int64, isMatch bool, confidence float64, captured entity.Descriptor) entity.ProofRecord {
	r := entity.ProofRecord{
		SubjectID:       subjectID,
		ServerTimestamp: serverTimestamp,
		IsMatch:         isMatch,
		Confidence:      confidence,
		DescriptorHash:  HashDescriptor(captured),
	}
	r.Signature = Sign(key, r)
	return r
}
