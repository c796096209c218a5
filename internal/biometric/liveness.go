package biometric

import (
	"FaceVerification/internal/entity"
	"math"
)

// LivenessConfig holds empirical constants. They were tuned against one camera
// family and should be recalibrated for new hardware.
type LivenessConfig struct {
	Threshold            float64
	DepthNormalizer      float64
	ExpressionNormalizer float64
	NeutralExpression    float64
	RotationEpsilon      float64
	TranslationEpsilon   float64
}

func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		Threshold:            0.6,
		DepthNormalizer:      0.03,
		ExpressionNormalizer: 0.1,
		NeutralExpression:    0.5,
		RotationEpsilon:      0.01,
		TranslationEpsilon:   0.01,
	}
}

type LivenessScorer struct {
	cfg LivenessConfig
}

func NewLivenessScorer(cfg LivenessConfig) *LivenessScorer {
	return &LivenessScorer{cfg: cfg}
}

func (s *LivenessScorer) Score(d *entity.Detection) entity.LivenessResult {
	return s.Combine(
		s.DepthScore(d.Landmarks),
		s.ExpressionScore(d.Blendshapes),
		s.OrientationScore(d.Transform),
	)
}

// Combine averages the three sub-scores into the composite.
func (s *LivenessScorer) Combine(depth, expression, orientation float64) entity.LivenessResult {
	composite := (depth + expression + orientation) / 3

	return entity.LivenessResult{
		IsLive:           composite > s.cfg.Threshold,
		Score:            composite,
		DepthScore:       depth,
		ExpressionScore:  expression,
		OrientationScore: orientation,
	}
}

// DepthScore is the z spread of the landmarks; flat sources have almost none.
func (s *LivenessScorer) DepthScore(landmarks []entity.Point3) float64 {
	if len(landmarks) < 2 || s.cfg.DepthNormalizer <= 0 {
		return 0
	}

	var mean float64
	for _, p := range landmarks {
		mean += p.Z
	}
	mean /= float64(len(landmarks))

	var variance float64
	for _, p := range landmarks {
		variance += (p.Z - mean) * (p.Z - mean)
	}
	variance /= float64(len(landmarks))

	return clamp(math.Sqrt(variance)/s.cfg.DepthNormalizer, 0, 1)
}

// ExpressionScore is the mean absolute deviation of blendshapes from neutral.
func (s *LivenessScorer) ExpressionScore(blendshapes []float64) float64 {
	if len(blendshapes) == 0 || s.cfg.ExpressionNormalizer <= 0 {
		return 0
	}

	var dev float64
	for _, b := range blendshapes {
		dev += math.Abs(b - s.cfg.NeutralExpression)
	}
	dev /= float64(len(blendshapes))

	return clamp(dev/s.cfg.ExpressionNormalizer, 0, 1)
}

// OrientationScore gives half weight to a detectable rotation and half to a
// detectable translation. An identity transform scores zero.
func (s *LivenessScorer) OrientationScore(m [16]float64) float64 {
	var score float64

	rotated := false
	for col := 0; col < 3 && !rotated; col++ {
		for row := 0; row < 3; row++ {
			want := 0.0
			if row == col {
				want = 1
			}
			if math.Abs(m[col*4+row]-want) > s.cfg.RotationEpsilon {
				rotated = true
				break
			}
		}
	}
	if rotated {
		score += 0.5
	}

	for _, t := range m[12:15] {
		if math.Abs(t) > s.cfg.TranslationEpsilon {
			score += 0.5
			break
		}
	}

	return score
}
