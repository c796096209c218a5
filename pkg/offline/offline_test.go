package offline

import (
	"FaceVerification/internal/api/verification"
	"FaceVerification/internal/biometric"
	"FaceVerification/internal/entity"
	"FaceVerification/pkg/proof"
	"context"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	master        = []byte("device-test-master")
	referenceFace = entity.Descriptor{0.5, 0.5, 0.5}
)

type staticEmbedder map[string]entity.Descriptor

func (e staticEmbedder) Extract(ctx context.Context, image []byte) (*entity.Detection, error) {
	d, ok := e[string(image)]
	if !ok {
		return nil, biometric.ErrNoFaceDetected
	}
	return &entity.Detection{Descriptor: d}, nil
}

type fakeServer struct {
	downloads atomic.Int32
	now       int64

	mu     sync.Mutex
	proofs []entity.ProofRecord
}

func (s *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/subjects/alice/reference", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer device-token", r.Header.Get("Authorization"))
		s.downloads.Add(1)
		key, _ := proof.DeriveKey(master, nil, "alice")
		writeJSON(w, http.StatusOK, verification.ReferenceResponse{
			SubjectID:  "alice",
			Descriptor: referenceFace,
			ProofKey:   hex.EncodeToString(key),
		})
	})

	mux.HandleFunc("/subjects/ghost/reference", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"message": "subject has no reference descriptor",
			"code":    "SUBJECT_NOT_FOUND",
		})
	})

	mux.HandleFunc("/verification/time", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, verification.ServerTimeResponse{Timestamp: s.now})
	})

	mux.HandleFunc("/verification/proofs", func(w http.ResponseWriter, r *http.Request) {
		var record entity.ProofRecord
		if err := jsoniter.NewDecoder(r.Body).Decode(&record); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error(), "code": "VALIDATION_ERROR"})
			return
		}

		key, _ := proof.DeriveKey(master, nil, record.SubjectID)
		if !proof.Verify(key, record) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"message": "proof signature or timestamp is invalid",
				"code":    "INVALID_PROOF",
			})
			return
		}

		s.mu.Lock()
		s.proofs = append(s.proofs, record)
		s.mu.Unlock()
		writeJSON(w, http.StatusCreated, verification.ProofAck{Accepted: true, ProofID: "proof-1"})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsoniter.NewEncoder(w).Encode(v)
}

func newClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	fs := &fakeServer{now: 1_700_000_000_000}
	srv := httptest.NewServer(fs.handler(t))
	t.Cleanup(srv.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)

	embedder := staticEmbedder{
		"alice.jpg": {0.5, 0.5, 0.6},
		"bob.jpg":   {2, 2, 2},
	}
	return New(log, embedder, Config{BaseURL: srv.URL + "/", Token: "device-token"}), fs
}

func TestVerifyAndSubmitMatch(t *testing.T) {
	c, fs := newClient(t)

	res, ack, err := c.VerifyAndSubmit(context.Background(), "alice", []byte("alice.jpg"))
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
	assert.True(t, res.Comparison.IsMatch)
	assert.Equal(t, fs.now, res.Proof.ServerTimestamp)
	assert.Equal(t, proof.HashDescriptor(entity.Descriptor{0.5, 0.5, 0.6}), res.Proof.DescriptorHash)

	require.Len(t, fs.proofs, 1)
	assert.Equal(t, res.Proof, fs.proofs[0])
}

func TestVerifyNoMatchStillProducesProof(t *testing.T) {
	c, fs := newClient(t)

	res, ack, err := c.VerifyAndSubmit(context.Background(), "alice", []byte("bob.jpg"))
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
	assert.False(t, res.Proof.IsMatch)
	assert.Len(t, fs.proofs, 1)
}

func TestReferenceDownloadedOnce(t *testing.T) {
	c, fs := newClient(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Verify(context.Background(), "alice", []byte("alice.jpg"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := c.Verify(context.Background(), "alice", []byte("alice.jpg"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, fs.downloads.Load())

	c.Forget("alice")
	_, err = c.Verify(context.Background(), "alice", []byte("alice.jpg"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, fs.downloads.Load())
}

func TestServerErrorsKeepTheirCode(t *testing.T) {
	c, _ := newClient(t)

	_, err := c.Verify(context.Background(), "ghost", []byte("alice.jpg"))
	assert.ErrorIs(t, err, verification.ErrSubjectNotFound)

	res, err := c.Verify(context.Background(), "alice", []byte("alice.jpg"))
	require.NoError(t, err)
	res.Proof.Confidence = 100

	_, err = c.Submit(context.Background(), res.Proof)
	assert.ErrorIs(t, err, verification.ErrInvalidProof)
}

func TestVerifyNoFace(t *testing.T) {
	c, fs := newClient(t)

	_, err := c.Verify(context.Background(), "alice", []byte("wall.jpg"))
	assert.ErrorIs(t, err, biometric.ErrNoFaceDetected)
	assert.Empty(t, fs.proofs)
}
