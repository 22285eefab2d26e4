package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MacPhobos/audio-ident/internal/apierr"
)

func TestHandleHealthzAllChecksPass(t *testing.T) {
	s := NewServer()
	s.HealthChecks = []HealthCheck{
		{Name: "ffmpeg", Check: func(ctx context.Context) error { return nil }},
		{Name: "vector_store", Check: func(ctx context.Context) error { return nil }},
	}

	w := httptest.NewRecorder()
	s.handleHealthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleHealthzReportsUnavailableOnFailedCheck(t *testing.T) {
	s := NewServer()
	s.HealthChecks = []HealthCheck{
		{Name: "ffmpeg", Check: func(ctx context.Context) error { return nil }},
		{Name: "track_store", Check: func(ctx context.Context) error { return errors.New("connection refused") }},
	}

	w := httptest.NewRecorder()
	s.handleHealthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequireAdminKeyFailsClosedWhenUnconfigured(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", nil)
	r.Header.Set("X-Admin-Key", "anything")

	err := requireAdminKey("", r)
	assert.Error(t, err)
	assert.Equal(t, "AUTH_NOT_CONFIGURED", mustAPIErrCode(t, err))
}

func TestRequireAdminKeyRejectsWrongKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", nil)
	r.Header.Set("X-Admin-Key", "wrong")

	err := requireAdminKey("correct-key", r)
	assert.Error(t, err)
	assert.Equal(t, "FORBIDDEN", mustAPIErrCode(t, err))
}

func TestRequireAdminKeyAcceptsMatchingKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", nil)
	r.Header.Set("X-Admin-Key", "correct-key")

	err := requireAdminKey("correct-key", r)
	assert.NoError(t, err)
}

func TestPathTraversalSafeRejectsEscape(t *testing.T) {
	assert.False(t, pathTraversalSafe("/data/audio-ident", "/data/audio-ident/../../etc/passwd"))
	assert.True(t, pathTraversalSafe("/data/audio-ident", "/data/audio-ident/raw/ab/abcdef.mp3"))
}

func TestClampIntBounds(t *testing.T) {
	assert.Equal(t, 1, clampInt(-5, 1, 100))
	assert.Equal(t, 100, clampInt(500, 1, 100))
	assert.Equal(t, 42, clampInt(42, 1, 100))
}

func TestMimeFromExtension(t *testing.T) {
	assert.Equal(t, "audio/mpeg", mimeFromExtension("/tmp/foo.mp3"))
	assert.Equal(t, "audio/flac", mimeFromExtension("/tmp/foo.flac"))
	assert.Equal(t, "application/octet-stream", mimeFromExtension("/tmp/foo.bin"))
}

func TestAllowedIngestMIMEsSupersetOfSearch(t *testing.T) {
	for mime := range allowedSearchMIMEs {
		assert.True(t, allowedIngestMIMEs[mime], "ingest MIME set should include %s", mime)
	}
	assert.True(t, allowedIngestMIMEs["audio/flac"])
}

func mustAPIErrCode(t *testing.T, err error) string {
	t.Helper()
	apiErr, ok := apierr.As(err)
	if !ok {
		t.Fatalf("expected *apierr.Error, got %T", err)
	}
	return apiErr.Code
}
