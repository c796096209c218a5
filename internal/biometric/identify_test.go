package biometric

import (
	"FaceVerification/internal/entity"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBestMatchEmptyScope(t *testing.T) {
	res, err := BestMatch(entity.Descriptor{0, 0}, nil, nil, DefaultThreshold)
	require.NoError(t, err)
	require.False(t, res.Identified)
	require.Zero(t, res.CandidatesChecked)
}

func TestBestMatchNoneUnderThreshold(t *testing.T) {
	descriptors := map[string]entity.Descriptor{
		"a": {1, 0},
		"b": {0, 1},
		"c": {0.7, 0.7},
	}
	res, err := BestMatch(entity.Descriptor{0, 0}, []string{"a", "b", "c"}, descriptors, DefaultThreshold)
	require.NoError(t, err)
	require.False(t, res.Identified)
	require.Empty(t, res.SubjectID)
	require.Equal(t, 3, res.CandidatesChecked)
}

func TestBestMatchPicksGlobalMinimum(t *testing.T) {
	descriptors := map[string]entity.Descriptor{
		"first":  {0.5, 0},
		"closer": {0.1, 0},
		"far":    {2, 0},
	}
	res, err := BestMatch(entity.Descriptor{0, 0}, []string{"first", "closer", "far"}, descriptors, DefaultThreshold)
	require.NoError(t, err)
	require.True(t, res.Identified)
	require.Equal(t, "closer", res.SubjectID)
	require.InDelta(t, 0.1, res.Distance, 1e-12)
	require.InDelta(t, 90, res.Confidence, 1e-9)
	require.Equal(t, 3, res.CandidatesChecked)
}

func TestBestMatchSkipsSubjectsWithoutDescriptor(t *testing.T) {
	descriptors := map[string]entity.Descriptor{"a": {0.2, 0}}
	res, err := BestMatch(entity.Descriptor{0, 0}, []string{"a", "no-photo"}, descriptors, DefaultThreshold)
	require.NoError(t, err)
	require.Equal(t, 1, res.CandidatesChecked)
	require.Equal(t, "a", res.SubjectID)
}

func TestBestMatchThresholdIsStrict(t *testing.T) {
	descriptors := map[string]entity.Descriptor{"a": {0.6, 0}}
	res, err := BestMatch(entity.Descriptor{0, 0}, []string{"a"}, descriptors, 0.6)
	require.NoError(t, err)
	require.False(t, res.Identified)
}

func TestBestMatchDimensionMismatch(t *testing.T) {
	descriptors := map[string]entity.Descriptor{"a": {0.1}}
	_, err := BestMatch(entity.Descriptor{0, 0}, []string{"a"}, descriptors, DefaultThreshold)
	require.True(t, errors.Is(err, ErrDimensionMismatch))
}
