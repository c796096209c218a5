package config

import (
	"FaceVerification/database/postgres"
	verificationHandler "FaceVerification/internal/api/verification/handler"
	verificationRepository "FaceVerification/internal/api/verification/repository"
	verificationService "FaceVerification/internal/api/verification/service"
	"FaceVerification/internal/biometric"
	"FaceVerification/internal/middleware"
	extractorPkg "FaceVerification/pkg/extractor"
	"FaceVerification/pkg/memcache"
	"FaceVerification/pkg/metrics"
	"FaceVerification/pkg/queue"
	"FaceVerification/pkg/redis"
	"FaceVerification/pkg/s3"
	"FaceVerification/pkg/utils"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	db          *sqlx.DB
	log         *logrus.Logger
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	handlers    []handler
	cfg         *EngineConfig
	repo        verificationRepository.Repository
	tier1       biometric.DescriptorCache
	redisServer redis.IRedis
	model       *extractorPkg.Client
	s3Client    s3.ItfS3
	metrics     *metrics.Metrics
	broker      *queue.Broker
	verifier    *biometric.Engine
	stopInit    context.CancelFunc
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.cfg == nil {
		return nil, fmt.Errorf("engine config is required")
	}
	if server.repo == nil {
		return nil, fmt.Errorf("subject store is required")
	}
	if server.tier1 == nil {
		return nil, fmt.Errorf("descriptor cache is required")
	}
	if server.model == nil {
		return nil, fmt.Errorf("face model client is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithEngineConfig(cfg EngineConfig) ServerOption {
	return func(s *Server) error {
		s.cfg = &cfg
		return nil
	}
}

// WithStore selects the subject store named by STORE_BACKEND. The postgres
// schema is migrated on connect.
func WithStore() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil {
			return fmt.Errorf("engine config must be set before the store")
		}

		if s.cfg.StoreBackend == BackendMemory {
			s.log.Warn("Using in-memory subject store, enrollments are lost on restart")
			s.repo = verificationRepository.NewMemory()
			return nil
		}

		db, err := postgres.New()
		if err != nil {
			s.log.Errorf("Failed to connect to database: %v", err)
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			s.log.Errorf("Failed to migrate database: %v", err)
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		s.db = db
		s.repo = verificationRepository.New(db, s.log)
		return nil
	}
}

// WithCache selects the volatile descriptor tier named by CACHE_BACKEND.
func WithCache() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil {
			return fmt.Errorf("engine config must be set before the cache")
		}

		if s.cfg.CacheBackend == BackendMemory {
			s.tier1 = memcache.New(s.cfg.CacheTTL)
			return nil
		}

		s.redisServer = redis.New(s.log)
		s.tier1 = s.redisServer
		return nil
	}
}

func WithExtractor() ServerOption {
	return func(s *Server) error {
		s.model = extractorPkg.New(s.log, extractorPkg.ConfigFromEnv())
		return nil
	}
}

// WithS3Client enables archiving of enrollment photos when a bucket is set.
func WithS3Client() ServerOption {
	return func(s *Server) error {
		cfg := s3.ConfigFromEnv()
		if cfg.Bucket == "" {
			s.log.Info("AWS_BUCKET_NAME not set, reference photos will not be archived")
			return nil
		}

		client, err := s3.New(cfg)
		if err != nil {
			s.log.Errorf("Failed to initialize S3 client: %v", err)
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

// WithAuditQueue moves audit writes onto an asynq queue when AUDIT_ASYNC is set.
func WithAuditQueue() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil {
			return fmt.Errorf("engine config must be set before the audit queue")
		}
		if s.cfg.AuditAsync {
			s.broker = queue.NewBroker(s.log)
		}
		return nil
	}
}

func WithMetrics() ServerOption {
	return func(s *Server) error {
		s.metrics = metrics.New()
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() error {
	store := verificationRepository.NewStore(s.repo)

	extractor := biometric.NewExtractor(s.log, s.model, biometric.CascadeConfig{
		MaxAttempts: s.cfg.CascadeMaxAttempts,
		MaxLatency:  s.cfg.CascadeMaxLatency,
		Dimension:   s.cfg.Dimension,
	})
	initCtx, stop := context.WithCancel(context.Background())
	s.stopInit = stop
	go s.initModel(initCtx, extractor)

	var audit biometric.AuditRecorder
	if s.broker != nil {
		if err := s.broker.Start(queue.NewAuditWorker(s.log, store)); err != nil {
			return err
		}
		audit = queue.NewAuditDispatcher(s.log, s.broker.Client)
	}

	poolCfg := biometric.PoolConfig{
		MaxConcurrent:  s.cfg.MaxConcurrent,
		RequestTimeout: s.cfg.RequestTimeout,
	}
	if s.metrics != nil {
		poolCfg.Observer = s.metrics.Observe
	}

	// Verification Domain
	cache := biometric.NewCache(s.log, s.tier1, store, s.cfg.CacheTTL)
	s.verifier = biometric.NewEngine(s.log, extractor, cache, store, audit, nil, biometric.EngineConfig{
		Threshold: s.cfg.Threshold,
		Liveness:  s.cfg.Liveness,
		Pool:      poolCfg,
	})

	verificationServices := verificationService.New(s.log, s.repo, s.verifier, s.s3Client, s.utils, nil, s.cfg.Proof)
	verificationHandlers := verificationHandler.New(s.log, verificationServices, s.validator, s.middleware, s.utils)

	if s.metrics != nil {
		s.metrics.RegisterPool(s.verifier.Pool())
		s.engine.Get("/metrics", s.metrics.Handler())
	}

	s.setupHealthCheck()
	s.handlers = append(s.handlers, verificationHandlers)
	return nil
}

// initModel retries loading the face model until it succeeds. Requests made
// before that fail fast with MODEL_NOT_READY.
func (s *Server) initModel(ctx context.Context, extractor *biometric.Extractor) {
	for {
		attemptCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := extractor.Init(attemptCtx)
		cancel()
		if err == nil {
			s.log.Info("Face model ready")
			return
		}

		s.log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("Face model not ready, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Second):
		}
	}
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware)
	s.engine.Use(s.middleware.NewRateLimiter)
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops accepting requests, drains the verification pool and closes
// every backend connection.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.engine.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}
	if s.stopInit != nil {
		s.stopInit()
	}
	if s.verifier != nil {
		if err := s.verifier.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("verification pool: %w", err))
		}
	}
	if s.broker != nil {
		s.broker.Shutdown()
	}
	s.model.Close()
	if s.redisServer != nil {
		if err := s.redisServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message":     "Server is Healthy!",
			"model_ready": s.verifier.Extractor().Ready(),
		})
	})
}
