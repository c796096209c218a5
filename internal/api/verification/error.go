package verification

import (
	"FaceVerification/internal/biometric"
	"FaceVerification/pkg/response"
	"net/http"
)

var (
	ErrInvalidProof         = response.NewKindError(http.StatusUnauthorized, "INVALID_PROOF", "proof signature or timestamp is invalid")
	ErrStaleProof           = response.NewKindError(http.StatusConflict, "STALE_PROOF", "proof timestamp is stale or already used")
	ErrImageRequired        = response.NewKindError(http.StatusBadRequest, "IMAGE_REQUIRED", "an image file or image_base64 is required")
	ErrInvalidImage         = response.NewKindError(http.StatusBadRequest, "INVALID_IMAGE", "image is not a supported picture")
	ErrProofUnavailable     = response.NewKindError(http.StatusServiceUnavailable, "PROOF_UNAVAILABLE", "offline proofs are not configured")
	ErrFailedToUploadPhoto  = response.NewKindError(http.StatusBadGateway, "PHOTO_UPLOAD_FAILED", "failed to archive reference photo")
	ErrSubjectIDRequired    = response.NewKindError(http.StatusBadRequest, "SUBJECT_ID_REQUIRED", "subject_id is required")
	ErrSubjectNotFound      = biometric.ErrSubjectNotFound
	ErrStoreUnavailable     = biometric.ErrStoreUnavailable
	ErrDescriptorDimensions = biometric.ErrDimensionMismatch
)
