package entity

type LivenessResult struct {
	IsLive           bool    `json:"is_live"`
	Score            float64 `json:"score"`
	DepthScore       float64 `json:"-"`
	ExpressionScore  float64 `json:"-"`
	OrientationScore float64 `json:"-"`
}

type VerificationResult struct {
	Success          bool            `json:"success"`
	SubjectID        string          `json:"subject_id"`
	IsMatch          bool            `json:"is_match"`
	Confidence       float64         `json:"confidence"`
	Distance         float64         `json:"distance"`
	Cached           bool            `json:"cached"`
	Liveness         *LivenessResult `json:"liveness,omitempty"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
}

type IdentifyResult struct {
	Identified        bool    `json:"identified"`
	SubjectID         string  `json:"subject_id,omitempty"`
	Confidence        float64 `json:"confidence,omitempty"`
	Distance          float64 `json:"distance,omitempty"`
	CandidatesChecked int     `json:"candidates_checked"`
	ProcessingTimeMs  int64   `json:"processing_time_ms"`
}
