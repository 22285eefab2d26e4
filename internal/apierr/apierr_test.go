package apierr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("FILE_TOO_LARGE", "file too large"), http.StatusBadRequest},
		{"auth", Auth("AUTH_NOT_CONFIGURED", "admin key not configured"), http.StatusForbidden},
		{"contention", Contention("RATE_LIMITED", "ingestion in progress"), http.StatusTooManyRequests},
		{"upstream unavailable", UpstreamUnavailable("SERVICE_UNAVAILABLE", "no lane produced a result", nil), http.StatusServiceUnavailable},
		{"upstream timeout", UpstreamTimeout("SEARCH_TIMEOUT", "all lanes timed out", nil), http.StatusGatewayTimeout},
		{"integrity", Integrity("NOT_FOUND", "track not found", nil), http.StatusNotFound},
		{"internal", Internal("INTERNAL", "unexpected", nil), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapStatus(tc.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := UpstreamUnavailable("SERVICE_UNAVAILABLE", "qdrant down", cause)
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "root cause")
}

func TestAs(t *testing.T) {
	wrapped := errors.Join(Validation("EMPTY_FILE", "file is empty"))
	e, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "EMPTY_FILE", e.Code)
}
