package biometric

import (
	"FaceVerification/internal/entity"
	"math"
)

// BestMatch scans every candidate that has a descriptor and returns the one
// with the globally smallest distance, provided it is strictly under the
// threshold. Candidates without a descriptor are skipped and not counted.
func BestMatch(query entity.Descriptor, candidates []string, descriptors map[string]entity.Descriptor, threshold float64) (*entity.IdentifyResult, error) {
	res := &entity.IdentifyResult{}
	minDistance := math.Inf(1)

	for _, id := range candidates {
		ref, ok := descriptors[id]
		if !ok || len(ref) == 0 {
			continue
		}

		distance, err := Distance(query, ref)
		if err != nil {
			return nil, err
		}
		res.CandidatesChecked++

		if distance < minDistance {
			minDistance = distance
			if IsMatch(distance, threshold) {
				res.Identified = true
				res.SubjectID = id
				res.Distance = distance
				res.Confidence = Confidence(distance)
			}
		}
	}

	return res, nil
}
