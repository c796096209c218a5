package biometric

import (
	"FaceVerification/pkg/response"
	"net/http"
)

var (
	ErrNoFaceDetected    = response.NewKindError(http.StatusUnprocessableEntity, "NO_FACE_DETECTED", "no face detected in image")
	ErrSubjectNotFound   = response.NewKindError(http.StatusNotFound, "SUBJECT_NOT_FOUND", "subject has no reference descriptor")
	ErrModelNotReady     = response.NewKindError(http.StatusServiceUnavailable, "MODEL_NOT_READY", "face model is not ready")
	ErrLivenessFailed    = response.NewKindError(http.StatusForbidden, "LIVENESS_FAILED", "liveness check failed")
	ErrDimensionMismatch = response.NewKindError(http.StatusInternalServerError, "DIMENSION_MISMATCH", "descriptor dimension mismatch")
	ErrQueueCleared      = response.NewKindError(http.StatusConflict, "QUEUE_CLEARED", "request was cancelled before processing")
	ErrVerification      = response.NewKindError(http.StatusInternalServerError, "VERIFICATION_ERROR", "verification failed unexpectedly")
	ErrStoreUnavailable  = response.NewKindError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "subject store is unavailable")
	ErrPoolClosed        = response.NewKindError(http.StatusServiceUnavailable, "POOL_CLOSED", "verification queue is shutting down")
)
