package biometric

import (
	"FaceVerification/internal/entity"
	"fmt"
	"math"
)

const DefaultThreshold = 0.6

type Comparison struct {
	Distance   float64
	IsMatch    bool
	Confidence float64
}

// Distance is the Euclidean distance over the full vectors.
func Distance(a, b entity.Descriptor) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}

	return math.Sqrt(sum), nil
}

// Confidence maps a distance to a 0-100 UX score. It is not a probability and
// must not drive the match decision.
func Confidence(distance float64) float64 {
	return clamp((1-distance)*100, 0, 100)
}

// IsMatch is strict: a distance equal to the threshold does not match.
func IsMatch(distance, threshold float64) bool {
	return distance < threshold
}

func Compare(a, b entity.Descriptor, threshold float64) (Comparison, error) {
	distance, err := Distance(a, b)
	if err != nil {
		return Comparison{}, err
	}

	return Comparison{
		Distance:   distance,
		IsMatch:    IsMatch(distance, threshold),
		Confidence: Confidence(distance),
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
