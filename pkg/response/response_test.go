package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesWrapped(t *testing.T) {
	sentinel := NewKindError(http.StatusNotFound, "SUBJECT_NOT_FOUND", "subject not found")
	wrapped := fmt.Errorf("lookup s-1: %w", sentinel)

	require.True(t, errors.Is(wrapped, sentinel))
	require.Equal(t, "SUBJECT_NOT_FOUND", KindOf(wrapped))
}

func TestErrorIsDistinguishesKinds(t *testing.T) {
	a := NewKindError(http.StatusForbidden, "LIVENESS_FAILED", "liveness check failed")
	b := NewKindError(http.StatusForbidden, "OTHER", "liveness check failed")

	require.False(t, errors.Is(a, b))
	require.Equal(t, "", KindOf(errors.New("plain")))
}
