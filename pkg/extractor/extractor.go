package extractorPkg

import (
	"FaceVerification/internal/biometric"
	"FaceVerification/internal/entity"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const (
	statusOK       = "ok"
	statusNoFace   = "no_face"
	statusNotReady = "not_ready"

	actionStatus = "status"
	actionDetect = "detect"
)

type detectMessage struct {
	Action        string  `json:"action"`
	Image         string  `json:"image,omitempty"`
	InputSize     int     `json:"input_size,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
}

type detectReply struct {
	Status      string       `json:"status"`
	Message     string       `json:"message"`
	Score       float64      `json:"score"`
	Descriptor  []float64    `json:"descriptor"`
	Landmarks   [][3]float64 `json:"landmarks"`
	Blendshapes []float64    `json:"blendshapes"`
	Transform   []float64    `json:"transform"`
}

type Config struct {
	URL          string
	PoolSize     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func ConfigFromEnv() Config {
	url := os.Getenv("EXTRACTOR_WS_URL")
	if url == "" {
		url = "ws://localhost:8000/api/v1/face/ws"
	}
	size, _ := strconv.Atoi(os.Getenv("EXTRACTOR_POOL_SIZE"))

	return Config{
		URL:          url,
		PoolSize:     size,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Client talks to the face model service over websocket. Idle connections
// are kept in a pool; a connection is owned by exactly one Detect call at a
// time, so no lock is held while waiting on the network.
type Client struct {
	log  *logrus.Logger
	cfg  Config
	idle chan *websocket.Conn
}

func New(log *logrus.Logger, cfg Config) *Client {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = biometric.DefaultMaxConcurrent
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	return &Client{
		log:  log,
		cfg:  cfg,
		idle: make(chan *websocket.Conn, cfg.PoolSize),
	}
}

// Load checks that the model service is reachable and has its weights loaded.
func (c *Client) Load(ctx context.Context) error {
	reply, err := c.roundTrip(ctx, detectMessage{Action: actionStatus})
	if err != nil {
		return err
	}
	if reply.Status != statusOK {
		return fmt.Errorf("%w: model service reported %q", biometric.ErrModelNotReady, reply.Status)
	}
	return nil
}

func (c *Client) Detect(ctx context.Context, image []byte, opts biometric.DetectorOptions) (*entity.Detection, error) {
	reply, err := c.roundTrip(ctx, detectMessage{
		Action:        actionDetect,
		Image:         base64.StdEncoding.EncodeToString(image),
		InputSize:     opts.InputSize,
		MinConfidence: opts.MinConfidence,
	})
	if err != nil {
		return nil, err
	}

	switch reply.Status {
	case statusOK:
		return toDetection(reply)
	case statusNoFace:
		return nil, biometric.ErrNoFaceDetected
	case statusNotReady:
		return nil, biometric.ErrModelNotReady
	default:
		return nil, fmt.Errorf("model service error: %s", reply.Message)
	}
}

func (c *Client) Close() {
	for {
		select {
		case conn := <-c.idle:
			conn.Close()
		default:
			return
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, msg detectMessage) (*detectReply, error) {
	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := jsoniter.Marshal(msg)
	if err != nil {
		c.release(conn)
		return nil, err
	}

	writeDeadline := time.Now().Add(c.cfg.WriteTimeout)
	readDeadline := time.Now().Add(c.cfg.ReadTimeout)
	if d, ok := ctx.Deadline(); ok {
		if d.Before(writeDeadline) {
			writeDeadline = d
		}
		if d.Before(readDeadline) {
			readDeadline = d
		}
	}

	conn.SetWriteDeadline(writeDeadline)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error sending frame: %w", err)
	}

	// Unblock the read if the caller gives up first.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	conn.SetReadDeadline(readDeadline)
	_, message, err := conn.ReadMessage()
	if !stop() || err != nil {
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
			return nil, context.DeadlineExceeded
		}
		if err == nil {
			err = errors.New("read interrupted")
		}
		return nil, fmt.Errorf("error reading reply: %w", err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})
	c.release(conn)

	var reply detectReply
	if err := jsoniter.Unmarshal(message, &reply); err != nil {
		return nil, fmt.Errorf("error unmarshaling reply: %w", err)
	}
	return &reply, nil
}

func (c *Client) acquire(ctx context.Context) (*websocket.Conn, error) {
	select {
	case conn := <-c.idle:
		return conn, nil
	default:
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"url":   c.cfg.URL,
			"error": err.Error(),
		}).Error("Failed to connect to face model service")
		return nil, fmt.Errorf("%w: %v", biometric.ErrModelNotReady, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.cfg.WriteTimeout))
		if err != nil {
			c.log.Debug(fmt.Sprintf("Error sending pong: %v", err))
		}
		return nil
	})

	return conn, nil
}

func (c *Client) release(conn *websocket.Conn) {
	select {
	case c.idle <- conn:
	default:
		conn.Close()
	}
}

func toDetection(r *detectReply) (*entity.Detection, error) {
	if len(r.Descriptor) == 0 {
		return nil, biometric.ErrNoFaceDetected
	}

	det := &entity.Detection{
		Descriptor:  entity.Descriptor(r.Descriptor),
		Blendshapes: r.Blendshapes,
		Score:       r.Score,
	}

	det.Landmarks = make([]entity.Point3, len(r.Landmarks))
	for i, p := range r.Landmarks {
		det.Landmarks[i] = entity.Point3{X: p[0], Y: p[1], Z: p[2]}
	}

	switch len(r.Transform) {
	case 0:
	case 16:
		copy(det.Transform[:], r.Transform)
	default:
		return nil, fmt.Errorf("model service returned a %d-element transform", len(r.Transform))
	}

	return det, nil
}
