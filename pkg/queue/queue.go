package queue

import (
	"FaceVerification/internal/entity"
	contextPkg "FaceVerification/pkg/context"
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const (
	TaskRecordAudit = "verification:record_audit"

	queueAudit = "audit"
)

type AuditPayload struct {
	RequestID string                   `json:"request_id"`
	SubjectID string                   `json:"subject_id"`
	Audit     entity.VerificationAudit `json:"audit"`
}

// AuditStore is the sink the worker writes to.
type AuditStore interface {
	RecordVerificationAudit(ctx context.Context, subjectID string, audit entity.VerificationAudit) error
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func RedisConnOpt() asynq.RedisClientOpt {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return asynq.RedisClientOpt{
		Addr:     os.Getenv("REDIS_ADDRESS"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}
}

func NewAuditTask(requestID, subjectID string, audit entity.VerificationAudit) (*asynq.Task, error) {
	payload, err := jsoniter.Marshal(AuditPayload{
		RequestID: requestID,
		SubjectID: subjectID,
		Audit:     audit,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecordAudit, payload), nil
}

// AuditDispatcher moves audit writes off the verification path.
type AuditDispatcher struct {
	log    *logrus.Logger
	client enqueuer
}

func NewAuditDispatcher(log *logrus.Logger, client *asynq.Client) *AuditDispatcher {
	return &AuditDispatcher{log: log, client: client}
}

func (d *AuditDispatcher) Record(ctx context.Context, subjectID string, audit entity.VerificationAudit) error {
	requestID := contextPkg.GetRequestID(ctx)

	task, err := NewAuditTask(requestID, subjectID, audit)
	if err != nil {
		return err
	}

	info, err := d.client.EnqueueContext(ctx, task,
		asynq.Queue(queueAudit),
		asynq.MaxRetry(10),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueue audit: %w", err)
	}

	d.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"subject_id": subjectID,
		"task_id":    info.ID,
	}).Debug("Verification audit enqueued")
	return nil
}

type AuditWorker struct {
	log   *logrus.Logger
	store AuditStore
}

func NewAuditWorker(log *logrus.Logger, store AuditStore) *AuditWorker {
	return &AuditWorker{log: log, store: store}
}

func (w *AuditWorker) HandleRecordAudit(ctx context.Context, t *asynq.Task) error {
	var payload AuditPayload
	if err := jsoniter.Unmarshal(t.Payload(), &payload); err != nil {
		w.log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Error("Failed to decode audit payload")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	ctx = contextPkg.WithRequestID(ctx, payload.RequestID)
	if err := w.store.RecordVerificationAudit(ctx, payload.SubjectID, payload.Audit); err != nil {
		w.log.WithFields(logrus.Fields{
			"request_id": payload.RequestID,
			"subject_id": payload.SubjectID,
			"error":      err.Error(),
		}).Warn("Failed to record verification audit")
		return err
	}

	return nil
}

// Broker owns the asynq client and the worker server for audit tasks.
type Broker struct {
	Client *asynq.Client
	server *asynq.Server
	log    *logrus.Logger
}

func NewBroker(log *logrus.Logger) *Broker {
	opt := RedisConnOpt()
	return &Broker{
		Client: asynq.NewClient(opt),
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				queueAudit: 1,
			},
		}),
		log: log,
	}
}

// Start runs the worker server in the background.
func (b *Broker) Start(worker *AuditWorker) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskRecordAudit, worker.HandleRecordAudit)

	if err := b.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start audit worker: %w", err)
	}
	b.log.Info("Audit worker started")
	return nil
}

func (b *Broker) Shutdown() {
	b.server.Shutdown()
	if err := b.Client.Close(); err != nil {
		b.log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("Failed to close asynq client")
	}
}
