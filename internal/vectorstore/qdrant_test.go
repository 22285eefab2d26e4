package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCollectionCreatesIndexes(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "chunks")
	err := a.EnsureCollection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"PUT /collections/chunks",
		"PUT /collections/chunks/index",
		"PUT /collections/chunks/index",
	}, paths)
}

func TestEnsureCollectionTreats409AsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "chunks")
	err := a.EnsureCollection(context.Background())
	assert.NoError(t, err)
}

func TestUpsertBatchesAt100(t *testing.T) {
	var batchSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Points []map[string]any `json:"points"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		batchSizes = append(batchSizes, len(body.Points))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "chunks")
	points := make([]Point, 250)
	for i := range points {
		points[i] = Point{TrackID: "t1", Vector: []float32{0.1, 0.2}}
	}

	err := a.Upsert(context.Background(), points)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 100, 50}, batchSizes)
}

func TestSearchParsesHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/chunks/points/search", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		params := body["params"].(map[string]any)
		assert.InDelta(t, 128, params["hnsw_ef"], 0.001)

		_, _ = w.Write([]byte(`{
			"result": [
				{"score": 0.91, "payload": {"track_id": "track-a", "offset_sec": 10.0, "chunk_index": 2}},
				{"score": 0.5, "payload": {"track_id": "track-b", "offset_sec": 0.0, "chunk_index": 0}}
			]
		}`))
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "chunks")
	hits, err := a.Search(context.Background(), []float32{0.1, 0.2}, DefaultSearchEf, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "track-a", hits[0].TrackID)
	assert.InDelta(t, 0.91, hits[0].Score, 1e-9)
	assert.Equal(t, 2, hits[0].ChunkIndex)
}

func TestSearchSkipsHitsMissingTrackID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result": [{"score": 0.3, "payload": {"offset_sec": 1.0}}]}`))
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "chunks")
	hits, err := a.Search(context.Background(), []float32{0.1}, 128, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDeleteByTrackSendsFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/chunks/points/delete", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "chunks")
	err := a.DeleteByTrack(context.Background(), "track-a")
	assert.NoError(t, err)
}

func TestSearchReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewAdapter(srv.URL, "chunks")
	_, err := a.Search(context.Background(), []float32{0.1}, 128, 10)
	assert.Error(t, err)
}
