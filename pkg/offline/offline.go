package offline

import (
	"FaceVerification/internal/api/verification"
	"FaceVerification/internal/biometric"
	"FaceVerification/internal/entity"
	"FaceVerification/pkg/proof"
	"FaceVerification/pkg/response"
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Embedder turns a captured frame into a face descriptor on the device.
type Embedder interface {
	Extract(ctx context.Context, image []byte) (*entity.Detection, error)
}

type Config struct {
	BaseURL   string
	Token     string
	Threshold float64
	Timeout   time.Duration
}

type reference struct {
	descriptor entity.Descriptor
	key        []byte
}

// Client runs verification on the device and reports only a signed proof.
// A subject's reference descriptor and proof key are downloaded once and
// reused for every later session.
type Client struct {
	log      *logrus.Logger
	cfg      Config
	http     *http.Client
	embedder Embedder

	mu    sync.RWMutex
	refs  map[string]reference
	group singleflight.Group
}

type Result struct {
	Comparison biometric.Comparison
	Proof      entity.ProofRecord
}

func New(log *logrus.Logger, embedder Embedder, cfg Config) *Client {
	if cfg.Threshold <= 0 {
		cfg.Threshold = biometric.DefaultThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		log:      log,
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		embedder: embedder,
		refs:     make(map[string]reference),
	}
}

// Verify compares a captured frame against the cached reference and returns
// a proof signed over the server-issued timestamp.
func (c *Client) Verify(ctx context.Context, subjectID string, image []byte) (*Result, error) {
	ref, err := c.reference(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	ts, err := c.ServerTime(ctx)
	if err != nil {
		return nil, err
	}

	det, err := c.embedder.Extract(ctx, image)
	if err != nil {
		return nil, err
	}

	cmp, err := biometric.Compare(det.Descriptor, ref.descriptor, c.cfg.Threshold)
	if err != nil {
		return nil, err
	}

	return &Result{
		Comparison: cmp,
		Proof:      proof.New(ref.key, subjectID, ts, cmp.IsMatch, cmp.Confidence, det.Descriptor),
	}, nil
}

// VerifyAndSubmit runs Verify and posts the resulting proof.
func (c *Client) VerifyAndSubmit(ctx context.Context, subjectID string, image []byte) (*Result, verification.ProofAck, error) {
	res, err := c.Verify(ctx, subjectID, image)
	if err != nil {
		return nil, verification.ProofAck{}, err
	}

	ack, err := c.Submit(ctx, res.Proof)
	if err != nil {
		return res, verification.ProofAck{}, err
	}
	return res, ack, nil
}

func (c *Client) ServerTime(ctx context.Context) (int64, error) {
	var out verification.ServerTimeResponse
	if err := c.do(ctx, http.MethodGet, "/verification/time", nil, &out); err != nil {
		return 0, err
	}
	return out.Timestamp, nil
}

func (c *Client) Submit(ctx context.Context, record entity.ProofRecord) (verification.ProofAck, error) {
	var ack verification.ProofAck
	if err := c.do(ctx, http.MethodPost, "/verification/proofs", record, &ack); err != nil {
		return verification.ProofAck{}, err
	}

	c.log.WithFields(logrus.Fields{
		"subject_id": record.SubjectID,
		"proof_id":   ack.ProofID,
		"is_match":   record.IsMatch,
	}).Info("Proof accepted")
	return ack, nil
}

// Forget drops the cached reference so the next session downloads it again,
// for example after the subject was re-enrolled.
func (c *Client) Forget(subjectID string) {
	c.mu.Lock()
	delete(c.refs, subjectID)
	c.mu.Unlock()
}

func (c *Client) reference(ctx context.Context, subjectID string) (reference, error) {
	c.mu.RLock()
	ref, ok := c.refs[subjectID]
	c.mu.RUnlock()
	if ok {
		return ref, nil
	}

	v, err, _ := c.group.Do(subjectID, func() (interface{}, error) {
		c.mu.RLock()
		ref, ok := c.refs[subjectID]
		c.mu.RUnlock()
		if ok {
			return ref, nil
		}

		var out verification.ReferenceResponse
		if err := c.do(ctx, http.MethodGet, "/subjects/"+url.PathEscape(subjectID)+"/reference", nil, &out); err != nil {
			return reference{}, err
		}

		key, err := hex.DecodeString(out.ProofKey)
		if err != nil || len(key) != proof.KeySize {
			return reference{}, fmt.Errorf("server returned a malformed proof key")
		}

		ref = reference{descriptor: entity.Descriptor(out.Descriptor), key: key}
		c.mu.Lock()
		c.refs[subjectID] = ref
		c.mu.Unlock()

		c.log.WithFields(logrus.Fields{
			"subject_id": subjectID,
			"dimension":  len(ref.descriptor),
		}).Info("Reference descriptor downloaded")
		return ref, nil
	})
	if err != nil {
		return reference{}, err
	}
	return v.(reference), nil
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := jsoniter.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var e errorBody
		if err := jsoniter.Unmarshal(raw, &e); err != nil || e.Code == "" {
			return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(raw))
		}
		return response.NewKindError(resp.StatusCode, e.Code, e.Message)
	}

	if err := jsoniter.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
