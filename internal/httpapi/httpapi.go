// Package httpapi exposes the search, ingest, and track-catalog endpoints of
// spec.md §6, built on net/http's ServeMux the way cmdHandlers.go's serve()
// does, with its statusRecorder/requestLogger/corsMiddleware chain
// generalized to log through applog instead of the standard logger.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/MacPhobos/audio-ident/internal/apierr"
	"github.com/MacPhobos/audio-ident/internal/applog"
	"github.com/MacPhobos/audio-ident/internal/exact"
	"github.com/MacPhobos/audio-ident/internal/ingest"
	"github.com/MacPhobos/audio-ident/internal/search"
	"github.com/MacPhobos/audio-ident/internal/store"
	"github.com/MacPhobos/audio-ident/internal/vibe"
)

// Server wires the collaborators a request handler needs.
type Server struct {
	AdminKey      string
	StorageRoot   string
	CORSOrigins   []string
	MaxSearchSize int64
	MaxIngestSize int64
	MinSearchDurationSec float64

	Pipeline *ingest.Pipeline
	Tracks   *store.Store
	SearchCfg search.Config

	RunExact func(ctx context.Context, pcm16k []float32, maxResults int) ([]exact.Match, error)
	RunVibe  func(ctx context.Context, pcm48k []float32, exactMatchTrackID string, maxResults int) ([]vibe.Match, error)

	// HealthChecks back /healthz: the probe reports 200 only if every check
	// succeeds within 3s, mirroring the lifespan readiness gate of
	// original_source/app/main.py (ffmpeg, vector store, relational store).
	HealthChecks []HealthCheck

	log *charmlog.Logger
}

// HealthCheck is one named readiness probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func NewServer() *Server {
	return &Server{log: applog.New("http")}
}

// Routes builds the full mux, mirroring the teacher's flat route table.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/search", s.handleSearch)
	mux.HandleFunc("/api/v1/ingest", s.handleIngest)
	mux.HandleFunc("/api/v1/tracks", s.handleListTracks)
	mux.HandleFunc("/api/v1/tracks/", s.handleTrackByID)
	mux.HandleFunc("/healthz", s.handleHealthz)

	return s.requestLogger(s.corsMiddleware(mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(rec, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.CORSOrigins) > 0 {
			origin = strings.Join(s.CORSOrigins, ", ")
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Admin-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealthz reports 200 only if every registered HealthCheck succeeds
// within 3s; otherwise 503 with the per-check failures.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.HealthChecks))
	healthy := true
	for _, hc := range s.HealthChecks {
		if err := hc.Check(ctx); err != nil {
			checks[hc.Name] = err.Error()
			healthy = false
		} else {
			checks[hc.Name] = "ok"
		}
	}

	status := http.StatusOK
	statusText := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		statusText = "unavailable"
	}
	writeJSON(w, status, map[string]any{"status": statusText, "checks": checks})
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		apiErr = apierr.Internal("INTERNAL", "internal error", err)
	}
	var body errorBody
	body.Error.Code = apiErr.Code
	body.Error.Message = apiErr.Message
	writeJSON(w, apierr.MapStatus(apiErr), body)
}

// detectMIME identifies the container format from magic bytes, per spec.md
// §6's "MIME is detected from magic bytes, not from the declared
// content-type." http.DetectContentType has no FLAC signature, so the
// "fLaC" marker is checked first.
func detectMIME(header []byte) string {
	if strings.HasPrefix(string(header), "fLaC") {
		return "audio/flac"
	}
	return http.DetectContentType(header)
}

var allowedSearchMIMEs = map[string]bool{
	"audio/webm":   true,
	"video/webm":   true, // some browsers tag webm-audio captures this way
	"audio/ogg":    true,
	"application/ogg": true,
	"audio/mpeg":   true,
	"audio/mp4":    true,
	"video/mp4":    true,
	"audio/wav":    true,
	"audio/x-wav":  true,
	"audio/wave":   true, // what http.DetectContentType reports for RIFF/WAVE
}

var allowedIngestMIMEs = func() map[string]bool {
	m := make(map[string]bool, len(allowedSearchMIMEs)+1)
	for k, v := range allowedSearchMIMEs {
		m[k] = v
	}
	m["audio/flac"] = true
	m["audio/x-flac"] = true
	return m
}()

func readUploadedFile(r *http.Request, maxBytes int64) ([]byte, string, error) {
	file, header, err := r.FormFile("audio")
	if err != nil {
		return nil, "", apierr.Validation("EMPTY_FILE", "audio file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, "", apierr.Internal("UPLOAD_READ_FAILED", "failed to read uploaded file", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, "", apierr.Validation("FILE_TOO_LARGE", "uploaded file exceeds the size limit")
	}
	if len(data) == 0 {
		return nil, "", apierr.Validation("EMPTY_FILE", "uploaded file is empty")
	}
	return data, header.Filename, nil
}

func mimeFromExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

// requireAdminKey implements spec.md §6's fail-closed auth: an empty
// server-side key rejects every request.
func requireAdminKey(configured string, r *http.Request) error {
	if configured == "" {
		return apierr.Auth("AUTH_NOT_CONFIGURED", "admin key is not configured")
	}
	supplied := r.Header.Get("X-Admin-Key")
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(configured)) != 1 {
		return apierr.Auth("FORBIDDEN", "invalid admin key")
	}
	return nil
}

// pathTraversalSafe reports whether resolvedPath still lives under root
// after both are made absolute and ".." elements are cleaned lexically, per
// spec.md §6. Symlinks are not resolved.
func pathTraversalSafe(root, resolvedPath string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(resolvedPath)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func parseIntDefault(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
