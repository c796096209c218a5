package config

import (
	verificationService "FaceVerification/internal/api/verification/service"
	"FaceVerification/internal/biometric"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// EngineConfig is every verification tunable read from the environment.
type EngineConfig struct {
	Dimension          int
	Threshold          float64
	CacheTTL           time.Duration
	MaxConcurrent      int
	RequestTimeout     time.Duration
	CascadeMaxAttempts int
	CascadeMaxLatency  time.Duration
	// Liveness is nil when server-side anti-spoofing is disabled.
	Liveness     *biometric.LivenessConfig
	Proof        verificationService.ProofConfig
	StoreBackend string
	CacheBackend string
	AuditAsync   bool
}

func NewEngineConfig() (EngineConfig, error) {
	var (
		cfg EngineConfig
		err error
	)

	if cfg.Dimension, err = envInt("DESCRIPTOR_DIMENSION", 128); err != nil {
		return cfg, err
	}
	if cfg.Threshold, err = envFloat("MATCH_THRESHOLD", biometric.DefaultThreshold); err != nil {
		return cfg, err
	}
	if cfg.CacheTTL, err = envSeconds("CACHE_TTL_SECONDS", biometric.DefaultCacheTTL); err != nil {
		return cfg, err
	}
	if cfg.MaxConcurrent, err = envInt("MAX_CONCURRENT", biometric.DefaultMaxConcurrent); err != nil {
		return cfg, err
	}
	if cfg.RequestTimeout, err = envSeconds("REQUEST_TIMEOUT_SECONDS", biometric.DefaultRequestTimeout); err != nil {
		return cfg, err
	}
	if cfg.CascadeMaxAttempts, err = envInt("CASCADE_MAX_ATTEMPTS", len(biometric.DefaultCascade())); err != nil {
		return cfg, err
	}
	latencyMs, err := envInt("CASCADE_MAX_LATENCY_MS", 5000)
	if err != nil {
		return cfg, err
	}
	cfg.CascadeMaxLatency = time.Duration(latencyMs) * time.Millisecond

	livenessEnabled, err := envBool("LIVENESS_ENABLED", true)
	if err != nil {
		return cfg, err
	}
	if livenessEnabled {
		lc := biometric.DefaultLivenessConfig()
		if lc.Threshold, err = envFloat("LIVENESS_THRESHOLD", lc.Threshold); err != nil {
			return cfg, err
		}
		if lc.DepthNormalizer, err = envFloat("LIVENESS_DEPTH_NORMALIZER", lc.DepthNormalizer); err != nil {
			return cfg, err
		}
		if lc.ExpressionNormalizer, err = envFloat("LIVENESS_EXPRESSION_NORMALIZER", lc.ExpressionNormalizer); err != nil {
			return cfg, err
		}
		cfg.Liveness = &lc
	}

	cfg.Proof.MasterSecret = []byte(os.Getenv("PROOF_MASTER_SECRET"))
	cfg.Proof.Salt = []byte(os.Getenv("PROOF_SALT"))
	if cfg.Proof.MaxAge, err = envSeconds("PROOF_MAX_AGE_SECONDS", verificationService.DefaultProofMaxAge); err != nil {
		return cfg, err
	}
	if cfg.Proof.ClockSkew, err = envSeconds("PROOF_CLOCK_SKEW_SECONDS", verificationService.DefaultProofClockSkew); err != nil {
		return cfg, err
	}

	cfg.StoreBackend = strings.ToLower(envOr("STORE_BACKEND", BackendPostgres))
	if cfg.StoreBackend != BackendPostgres && cfg.StoreBackend != BackendMemory {
		return cfg, fmt.Errorf("invalid STORE_BACKEND %q", cfg.StoreBackend)
	}
	cfg.CacheBackend = strings.ToLower(envOr("CACHE_BACKEND", BackendRedis))
	if cfg.CacheBackend != BackendRedis && cfg.CacheBackend != BackendMemory {
		return cfg, fmt.Errorf("invalid CACHE_BACKEND %q", cfg.CacheBackend)
	}
	if cfg.AuditAsync, err = envBool("AUDIT_ASYNC", false); err != nil {
		return cfg, err
	}

	if cfg.Threshold <= 0 {
		return cfg, fmt.Errorf("MATCH_THRESHOLD must be positive")
	}
	if cfg.MaxConcurrent <= 0 {
		return cfg, fmt.Errorf("MAX_CONCURRENT must be positive")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func envSeconds(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Duration(n) * time.Second, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
