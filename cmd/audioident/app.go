package main

import (
	"context"
	"fmt"

	"github.com/MacPhobos/audio-ident/internal/config"
	"github.com/MacPhobos/audio-ident/internal/decode"
	"github.com/MacPhobos/audio-ident/internal/embedding"
	"github.com/MacPhobos/audio-ident/internal/exact"
	"github.com/MacPhobos/audio-ident/internal/httpapi"
	"github.com/MacPhobos/audio-ident/internal/ingest"
	"github.com/MacPhobos/audio-ident/internal/olaf"
	"github.com/MacPhobos/audio-ident/internal/reconcile"
	"github.com/MacPhobos/audio-ident/internal/search"
	"github.com/MacPhobos/audio-ident/internal/store"
	"github.com/MacPhobos/audio-ident/internal/vectorstore"
	"github.com/MacPhobos/audio-ident/internal/vibe"
)

// app bundles every long-lived collaborator a CLI subcommand or the server
// might need, built once from Settings.
type app struct {
	settings config.Settings

	tracks      *store.Store
	fingerprint *olaf.Client
	embedder    *embedding.Caller
	vectors     *vectorstore.Adapter
	journal     *reconcile.Journal
	pipeline    *ingest.Pipeline

	modelLoaded bool
}

func newApp(ctx context.Context, settings config.Settings) (*app, error) {
	tracks, err := store.NewClient(ctx, settings.MongoURI, settings.MongoDatabase)
	if err != nil {
		return nil, fmt.Errorf("connect track store: %w", err)
	}

	fingerprint := olaf.NewClient(settings.FingerprintDBPath)
	embedder := embedding.NewCaller(settings.EmbeddingServiceURL, "clap-htsat-fused")
	vectors := vectorstore.NewAdapter(settings.VectorStoreURL, "chunks")

	if err := vectors.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensure vector collection: %w", err)
	}

	journal, err := reconcile.Open(settings.ReconcileDBPath)
	if err != nil {
		return nil, fmt.Errorf("open reconciliation journal: %w", err)
	}

	pipeline := ingest.New(ingest.Pipeline{
		StorageRoot:           settings.StorageRoot,
		MinDurationSec:        settings.MinIngestDurationSec,
		MaxDurationSec:        settings.MaxIngestDurationSec,
		EmbeddingModel:        "clap-htsat-fused",
		ContentDedupThreshold: settings.ContentDedupThreshold,
		Tracks:                tracks,
		Fingerprint:           fingerprint,
		Embedder:              embedder,
		Vectors:               vectors,
		Journal:               journal,
	})

	return &app{
		settings:    settings,
		tracks:      tracks,
		fingerprint: fingerprint,
		embedder:    embedder,
		vectors:     vectors,
		journal:     journal,
		pipeline:    pipeline,
		modelLoaded: true,
	}, nil
}

func (a *app) close(ctx context.Context) {
	_ = a.tracks.Close(ctx)
	_ = a.journal.Close()
}

func (a *app) runExact(ctx context.Context, pcm16k []float32, maxResults int) ([]exact.Match, error) {
	return exact.Run(ctx, a.fingerprint, a.tracks, pcm16k, maxResults, exact.Config{
		ShortClipThresholdSec: a.settings.ShortClipThresholdSec,
		MinAlignedHashes:      a.settings.MinAlignedHashes,
		StrongMatchHashes:     a.settings.StrongMatchHashes,
	})
}

func (a *app) runVibe(ctx context.Context, pcm48k []float32, exactMatchTrackID string, maxResults int) ([]vibe.Match, error) {
	return vibe.Run(ctx, a.embedder, a.modelLoaded, a.vectors, a.tracks, pcm48k, exactMatchTrackID, vibe.Config{
		SearchEf:        vectorstore.DefaultSearchEf,
		SearchLimit:     a.settings.QdrantSearchLimit,
		TopKPerTrack:    a.settings.TopKPerTrack,
		DiversityWeight: a.settings.DiversityWeight,
		MatchThreshold:  a.settings.VibeMatchThreshold,
		MaxResults:      maxResults,
	})
}

func (a *app) httpServer() *httpapi.Server {
	s := httpapi.NewServer()
	s.AdminKey = a.settings.AdminKey
	s.StorageRoot = a.settings.StorageRoot
	s.CORSOrigins = a.settings.CORSOrigins
	s.MaxSearchSize = a.settings.SearchMaxUploadBytes
	s.MaxIngestSize = a.settings.IngestMaxUploadBytes
	s.MinSearchDurationSec = a.settings.MinSearchDurationSec
	s.Pipeline = a.pipeline
	s.Tracks = a.tracks
	s.SearchCfg = search.Config{
		ExactLaneTimeout: a.settings.ExactLaneTimeout,
		VibeLaneTimeout:  a.settings.VibeLaneTimeout,
	}
	s.RunExact = a.runExact
	s.RunVibe = a.runVibe
	s.HealthChecks = []httpapi.HealthCheck{
		{Name: "ffmpeg", Check: decode.CheckFFmpeg},
		{Name: "vector_store", Check: a.vectors.CollectionInfo},
		{Name: "track_store", Check: a.tracks.Ping},
	}
	return s
}
