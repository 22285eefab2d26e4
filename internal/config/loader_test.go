package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	l := Loader{Lookup: lookupFrom(nil)}
	s, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultServicePort, s.ServicePort)
	assert.Equal(t, DefaultVibeMatchThreshold, s.VibeMatchThreshold)
	assert.Equal(t, DefaultMinAlignedHashes, s.MinAlignedHashes)
	assert.Equal(t, DefaultExactLaneTimeout, s.ExactLaneTimeout)
	assert.Equal(t, s.StorageRoot+"/reconcile.sqlite3", s.ReconcileDBPath)
	assert.InDelta(t, 0.85, s.ContentDedupThreshold, 1e-9)
}

func TestLoadContentDedupThresholdOverride(t *testing.T) {
	l := Loader{Lookup: lookupFrom(map[string]string{"CONTENT_DEDUP_THRESHOLD": "0.9"})}
	s, err := l.Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.9, s.ContentDedupThreshold, 1e-9)
}

func TestLoadOverrides(t *testing.T) {
	l := Loader{Lookup: lookupFrom(map[string]string{
		"SERVICE_PORT":          "9090",
		"CORS_ORIGINS":          "https://a.example, https://b.example",
		"VIBE_MATCH_THRESHOLD":  "0.75",
		"EXACT_LANE_TIMEOUT_SEC": "1.5",
		"MIN_ALIGNED_HASHES":    "4",
	})}
	s, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", s.ServicePort)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, s.CORSOrigins)
	assert.InDelta(t, 0.75, s.VibeMatchThreshold, 1e-9)
	assert.Equal(t, 4, s.MinAlignedHashes)
}

func TestLoadInvalidNumber(t *testing.T) {
	l := Loader{Lookup: lookupFrom(map[string]string{"VIBE_MATCH_THRESHOLD": "not-a-number"})}
	_, err := l.Load()
	assert.Error(t, err)
}
