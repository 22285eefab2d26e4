package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/MacPhobos/audio-ident/internal/apierr"
	"github.com/MacPhobos/audio-ident/internal/decode"
	"github.com/MacPhobos/audio-ident/internal/search"
)

type searchResponse struct {
	RequestID       string             `json:"requestId"`
	QueryDurationMs int64              `json:"queryDurationMs"`
	ExactMatches    []exactMatchJSON   `json:"exactMatches"`
	VibeMatches     []vibeMatchJSON    `json:"vibeMatches"`
	ModeUsed        string             `json:"modeUsed"`
}

type exactMatchJSON struct {
	TrackID       string  `json:"trackId"`
	Title         string  `json:"title"`
	Confidence    float64 `json:"confidence"`
	OffsetSeconds float64 `json:"offsetSeconds"`
	AlignedHashes int     `json:"alignedHashes"`
}

type vibeMatchJSON struct {
	TrackID        string  `json:"trackId"`
	Title          string  `json:"title"`
	Similarity     float64 `json:"similarity"`
	MatchingChunks int     `json:"matchingChunks"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, apierr.Validation("METHOD_NOT_ALLOWED", "POST required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.MaxSearchSize+1<<20)
	if err := r.ParseMultipartForm(s.MaxSearchSize + 1<<20); err != nil {
		writeAPIError(w, apierr.Validation("FILE_TOO_LARGE", "request body too large or malformed"))
		return
	}

	raw, _, err := readUploadedFile(r, s.MaxSearchSize)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	header := raw
	if len(header) > 512 {
		header = header[:512]
	}
	mime := detectMIME(header)
	if !allowedSearchMIMEs[mime] {
		writeAPIError(w, apierr.Validation("UNSUPPORTED_FORMAT", "unrecognized audio container: "+mime))
		return
	}

	mode := search.Mode(r.FormValue("mode"))
	switch mode {
	case search.ModeExact, search.ModeVibe, search.ModeBoth:
	default:
		mode = search.ModeBoth
	}

	maxResults := clampInt(parseIntDefault(r.FormValue("max_results"), 10), 1, 50)

	pcm16k, pcm48k, err := decode.DecodeDualRate(r.Context(), raw)
	if err != nil {
		writeAPIError(w, apierr.Validation("UNSUPPORTED_FORMAT", "could not decode audio"))
		return
	}
	durationSec := decode.PCMDurationSeconds(len(pcm16k)*4, decode.RateFingerprint, 4)
	if durationSec < s.MinSearchDurationSec {
		writeAPIError(w, apierr.Validation("AUDIO_TOO_SHORT", "clip shorter than the minimum search duration"))
		return
	}

	resp := search.Run(r.Context(), mode, pcm16k, pcm48k, maxResults, s.RunExact, s.RunVibe, s.SearchCfg)

	switch resp.Outcome {
	case search.OutcomeTimeout:
		writeAPIError(w, apierr.UpstreamTimeout("SEARCH_TIMEOUT", "search timed out", nil))
		return
	case search.OutcomeUnavailable:
		writeAPIError(w, apierr.UpstreamUnavailable("SERVICE_UNAVAILABLE", "search lanes unavailable", nil))
		return
	}

	body := searchResponse{
		RequestID:       resp.RequestID,
		QueryDurationMs: resp.QueryDurationMs,
		ModeUsed:        string(resp.ModeUsed),
		ExactMatches:    make([]exactMatchJSON, 0, len(resp.ExactMatches)),
		VibeMatches:     make([]vibeMatchJSON, 0, len(resp.VibeMatches)),
	}
	for _, m := range resp.ExactMatches {
		body.ExactMatches = append(body.ExactMatches, exactMatchJSON{
			TrackID:       m.Track.ID,
			Title:         m.Track.Title,
			Confidence:    m.Confidence,
			OffsetSeconds: m.OffsetSeconds,
			AlignedHashes: m.AlignedHashes,
		})
	}
	for _, m := range resp.VibeMatches {
		body.VibeMatches = append(body.VibeMatches, vibeMatchJSON{
			TrackID:        m.Track.ID,
			Title:          m.Track.Title,
			Similarity:     m.Similarity,
			MatchingChunks: m.MatchingChunks,
		})
	}

	writeJSON(w, http.StatusOK, body)
}

type ingestResponse struct {
	Status         string `json:"status"`
	TrackID        string `json:"trackId,omitempty"`
	DuplicateOf    string `json:"duplicateOf,omitempty"`
	SkipReason     string `json:"skipReason,omitempty"`
	OlafIndexed    bool   `json:"olafIndexed,omitempty"`
	EmbeddingModel string `json:"embeddingModel,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, apierr.Validation("METHOD_NOT_ALLOWED", "POST required"))
		return
	}

	if err := requireAdminKey(s.AdminKey, r); err != nil {
		writeAPIError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.MaxIngestSize+1<<20)
	if err := r.ParseMultipartForm(s.MaxIngestSize + 1<<20); err != nil {
		writeAPIError(w, apierr.Validation("FILE_TOO_LARGE", "request body too large or malformed"))
		return
	}

	raw, filename, err := readUploadedFile(r, s.MaxIngestSize)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	header := raw
	if len(header) > 512 {
		header = header[:512]
	}
	mime := detectMIME(header)
	if !allowedIngestMIMEs[mime] {
		writeAPIError(w, apierr.Validation("UNSUPPORTED_FORMAT", "unrecognized audio container: "+mime))
		return
	}

	result, err := s.Pipeline.Ingest(r.Context(), raw, filepath.Ext(filename))
	if err != nil {
		writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ingestResponse{
		Status:         string(result.Status),
		TrackID:        result.TrackID,
		DuplicateOf:    result.DuplicateOf,
		SkipReason:     result.SkipReason,
		OlafIndexed:    result.OlafIndexed,
		EmbeddingModel: result.EmbeddingModel,
	})
}

type pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

type tracksResponse struct {
	Data       []trackInfoJSON `json:"data"`
	Pagination pagination      `json:"pagination"`
}

type trackInfoJSON struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Artist      *string `json:"artist"`
	Album       *string `json:"album"`
	DurationSec float64 `json:"durationSec"`
	Format      *string `json:"format"`
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, apierr.Validation("METHOD_NOT_ALLOWED", "GET required"))
		return
	}

	page := clampInt(parseIntDefault(r.URL.Query().Get("page"), 1), 1, 1<<30)
	pageSize := clampInt(parseIntDefault(r.URL.Query().Get("pageSize"), 20), 1, 100)
	searchQuery := r.URL.Query().Get("search")

	infos, total, err := s.Tracks.List(r.Context(), page, pageSize, searchQuery)
	if err != nil {
		writeAPIError(w, apierr.Internal("LIST_FAILED", "failed to list tracks", err))
		return
	}

	data := make([]trackInfoJSON, 0, len(infos))
	for _, info := range infos {
		data = append(data, trackInfoJSON{
			ID:          info.ID,
			Title:       info.Title,
			Artist:      info.Artist,
			Album:       info.Album,
			DurationSec: info.DurationSec,
			Format:      info.Format,
		})
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}

	writeJSON(w, http.StatusOK, tracksResponse{
		Data: data,
		Pagination: pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: int(total),
			TotalPages: totalPages,
		},
	})
}

// handleTrackByID dispatches GET /api/v1/tracks/{id} and
// GET /api/v1/tracks/{id}/audio.
func (s *Server) handleTrackByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, apierr.Validation("METHOD_NOT_ALLOWED", "GET required"))
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/tracks/")
	if rest == "" {
		writeAPIError(w, apierr.Validation("NOT_FOUND", "track id required"))
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]

	if len(parts) == 2 && parts[1] == "audio" {
		s.handleTrackAudio(w, r, id)
		return
	}

	detail, err := s.Tracks.GetByID(r.Context(), id)
	if err != nil {
		writeAPIError(w, apierr.Internal("GET_FAILED", "failed to fetch track", err))
		return
	}
	if detail == nil {
		writeAPIError(w, apierr.Integrity("NOT_FOUND", "track not found", nil))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":                 detail.ID,
		"title":              detail.Title,
		"artist":             detail.Artist,
		"album":              detail.Album,
		"genre":              detail.Genre,
		"durationSec":        detail.DurationSec,
		"format":             detail.Format,
		"sampleRate":         detail.SampleRate,
		"channels":           detail.Channels,
		"bitrateKbps":        detail.BitrateKbps,
		"fileSizeBytes":      detail.FileSizeBytes,
		"fingerprintIndexed": detail.FingerprintIndexed,
		"embeddingModel":     detail.EmbeddingModel,
		"embeddingDim":       detail.EmbeddingDim,
		"createdAt":          detail.CreatedAt,
		"updatedAt":          detail.UpdatedAt,
	})
}

func (s *Server) handleTrackAudio(w http.ResponseWriter, r *http.Request, id string) {
	detail, err := s.Tracks.GetByID(r.Context(), id)
	if err != nil {
		writeAPIError(w, apierr.Internal("GET_FAILED", "failed to fetch track", err))
		return
	}
	if detail == nil {
		writeAPIError(w, apierr.Integrity("NOT_FOUND", "track not found", nil))
		return
	}

	if detail.StoredPath == "" || !pathTraversalSafe(s.StorageRoot, detail.StoredPath) {
		writeAPIError(w, apierr.Integrity("FILE_NOT_FOUND", "audio file not found", nil))
		return
	}

	f, err := os.Open(detail.StoredPath)
	if err != nil {
		writeAPIError(w, apierr.Integrity("FILE_NOT_FOUND", "audio file not found", err))
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		writeAPIError(w, apierr.Internal("STAT_FAILED", "failed to stat audio file", err))
		return
	}

	w.Header().Set("Content-Type", mimeFromExtension(detail.StoredPath))
	http.ServeContent(w, r, filepath.Base(detail.StoredPath), stat.ModTime(), f)
}
