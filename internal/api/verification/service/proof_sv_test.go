package verificationService

import (
	"FaceVerification/internal/api/verification"
	"FaceVerification/internal/entity"
	"FaceVerification/pkg/proof"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedProof(t *testing.T, subjectID string, ts int64, isMatch bool) entity.ProofRecord {
	t.Helper()
	key, err := proof.DeriveKey(masterKey, proofSalt, subjectID)
	require.NoError(t, err)
	return proof.New(key, subjectID, ts, isMatch, 91.5, aliceFace)
}

func TestSubmitProofAcceptedAndAudited(t *testing.T) {
	f := newFixture(t, defaultProofConfig())
	enroll(t, f, "alice", "alice.jpg")

	issued := f.svc.Proof().ServerTime().Timestamp
	f.clock.Advance(3 * time.Second)

	ack, err := f.svc.Proof().SubmitProof(context.Background(), signedProof(t, "alice", issued, true))
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
	assert.Len(t, ack.ProofID, 26)

	client, err := f.repo.NewClient(false)
	require.NoError(t, err)
	subject, err := client.Subjects.GetSubject(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, string(entity.OutcomeProofMatch), subject.LastVerificationOutcome)
	assert.Equal(t, 91.5, subject.LastVerificationConfidence)
	assert.Equal(t, time.UnixMilli(issued).UTC(), subject.LastVerifiedAt)

	stored := f.repo.Proofs("alice")
	require.Len(t, stored, 1)
	assert.Equal(t, ack.ProofID, stored[0].ID)
}

func TestSubmitProofReplayIsStale(t *testing.T) {
	f := newFixture(t, defaultProofConfig())
	enroll(t, f, "alice", "alice.jpg")

	first := f.svc.Proof().ServerTime().Timestamp
	record := signedProof(t, "alice", first, true)
	_, err := f.svc.Proof().SubmitProof(context.Background(), record)
	require.NoError(t, err)

	_, err = f.svc.Proof().SubmitProof(context.Background(), record)
	assert.ErrorIs(t, err, verification.ErrStaleProof)

	_, err = f.svc.Proof().SubmitProof(context.Background(), signedProof(t, "alice", first-1, false))
	assert.ErrorIs(t, err, verification.ErrStaleProof)

	f.clock.Advance(time.Second)
	ack, err := f.svc.Proof().SubmitProof(context.Background(), signedProof(t, "alice", f.svc.Proof().ServerTime().Timestamp, false))
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
	assert.Len(t, f.repo.Proofs("alice"), 2)
}

func TestSubmitProofOlderThanLastAcceptedLeavesAuditAlone(t *testing.T) {
	f := newFixture(t, defaultProofConfig())
	enroll(t, f, "alice", "alice.jpg")

	older := f.svc.Proof().ServerTime().Timestamp
	f.clock.Advance(2 * time.Second)
	newer := f.svc.Proof().ServerTime().Timestamp

	_, err := f.svc.Proof().SubmitProof(context.Background(), signedProof(t, "alice", newer, true))
	require.NoError(t, err)

	client, err := f.repo.NewClient(false)
	require.NoError(t, err)
	last, err := client.Proofs.LastProofTimestamp(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, newer, last)

	_, err = f.svc.Proof().SubmitProof(context.Background(), signedProof(t, "alice", older, false))
	assert.ErrorIs(t, err, verification.ErrStaleProof)

	subject, err := client.Subjects.GetSubject(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, string(entity.OutcomeProofMatch), subject.LastVerificationOutcome)
	assert.Equal(t, time.UnixMilli(newer).UTC(), subject.LastVerifiedAt)
	assert.Len(t, f.repo.Proofs("alice"), 1)
}

func TestSubmitProofRejections(t *testing.T) {
	now := startTime.UnixMilli()

	tests := []struct {
		name   string
		record func(t *testing.T) entity.ProofRecord
		want   error
	}{
		{
			name: "tampered confidence",
			record: func(t *testing.T) entity.ProofRecord {
				r := signedProof(t, "alice", now, true)
				r.Confidence = 99
				return r
			},
			want: verification.ErrInvalidProof,
		},
		{
			name: "signed for another subject",
			record: func(t *testing.T) entity.ProofRecord {
				r := signedProof(t, "bob", now, true)
				r.SubjectID = "alice"
				return r
			},
			want: verification.ErrInvalidProof,
		},
		{
			name: "from the future",
			record: func(t *testing.T) entity.ProofRecord {
				return signedProof(t, "alice", now+time.Minute.Milliseconds(), true)
			},
			want: verification.ErrInvalidProof,
		},
		{
			name: "too old",
			record: func(t *testing.T) entity.ProofRecord {
				return signedProof(t, "alice", now-(6*time.Minute).Milliseconds(), true)
			},
			want: verification.ErrStaleProof,
		},
		{
			name: "unknown subject",
			record: func(t *testing.T) entity.ProofRecord {
				return signedProof(t, "ghost", now, true)
			},
			want: verification.ErrSubjectNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, defaultProofConfig())
			enroll(t, f, "alice", "alice.jpg")

			_, err := f.svc.Proof().SubmitProof(context.Background(), tt.record(t))
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.repo.Proofs("alice"))
		})
	}
}

func TestSubmitProofWithinClockSkew(t *testing.T) {
	f := newFixture(t, defaultProofConfig())
	enroll(t, f, "alice", "alice.jpg")

	ack, err := f.svc.Proof().SubmitProof(context.Background(), signedProof(t, "alice", startTime.UnixMilli()+1500, true))
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
}

func TestSubmitProofWithoutSecret(t *testing.T) {
	f := newFixture(t, ProofConfig{})
	_, err := f.svc.Proof().SubmitProof(context.Background(), entity.ProofRecord{SubjectID: "alice"})
	assert.ErrorIs(t, err, verification.ErrProofUnavailable)
}
