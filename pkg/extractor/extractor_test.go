package extractorPkg

import (
	"FaceVerification/internal/biometric"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	ready    bool
	minSize  int
	delay    time.Duration
	accepted atomic.Int32
}

func (s *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.accepted.Add(1)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg detectMessage
		_ = jsoniter.Unmarshal(raw, &msg)

		if s.delay > 0 {
			time.Sleep(s.delay)
		}

		reply := detectReply{Status: statusOK}
		switch {
		case !s.ready:
			reply.Status = statusNotReady
		case msg.Action == actionDetect && msg.InputSize > s.minSize:
			reply.Status = statusNoFace
		case msg.Action == actionDetect:
			reply.Descriptor = []float64{0.1, 0.2, 0.3}
			reply.Landmarks = [][3]float64{{1, 2, 3}}
			reply.Transform = make([]float64, 16)
			reply.Transform[15] = 1
		}

		out, _ := jsoniter.Marshal(reply)
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			return
		}
	}
}

func newTestClient(t *testing.T, svc *fakeService) *Client {
	t.Helper()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)

	c := New(log, Config{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), PoolSize: 2})
	t.Cleanup(c.Close)
	return c
}

func TestLoad(t *testing.T) {
	c := newTestClient(t, &fakeService{ready: true})
	require.NoError(t, c.Load(context.Background()))

	notReady := newTestClient(t, &fakeService{})
	err := notReady.Load(context.Background())
	assert.True(t, errors.Is(err, biometric.ErrModelNotReady))
}

func TestDetectThroughCascade(t *testing.T) {
	svc := &fakeService{ready: true, minSize: 416}
	c := newTestClient(t, svc)

	e := biometric.NewExtractor(logrus.New(), c, biometric.CascadeConfig{Dimension: 3})
	require.NoError(t, e.Init(context.Background()))

	det, err := e.Extract(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	assert.Len(t, det.Descriptor, 3)
	assert.Equal(t, 3.0, det.Landmarks[0].Z)
	assert.Equal(t, 1.0, det.Transform[15])

	assert.EqualValues(t, 1, svc.accepted.Load())
}

func TestDetectNoFace(t *testing.T) {
	c := newTestClient(t, &fakeService{ready: true, minSize: 100})

	_, err := c.Detect(context.Background(), []byte("jpeg"), biometric.DetectorOptions{InputSize: 608, MinConfidence: 0.5})
	assert.True(t, errors.Is(err, biometric.ErrNoFaceDetected))
}

func TestDetectHonorsContext(t *testing.T) {
	c := newTestClient(t, &fakeService{ready: true, minSize: 1000, delay: 200 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Detect(ctx, []byte("jpeg"), biometric.DetectorOptions{InputSize: 608})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestUnreachableServiceIsNotReady(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	c := New(log, Config{URL: "ws://127.0.0.1:1/ws"})

	err := c.Load(context.Background())
	assert.True(t, errors.Is(err, biometric.ErrModelNotReady))
}
