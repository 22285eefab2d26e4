package exact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacPhobos/audio-ident/internal/olaf"
	"github.com/MacPhobos/audio-ident/internal/store"
)

const refUUID = "550e8400-e29b-41d4-a716-446655440000"

type fakeQuerier struct {
	callIndex int
	responses [][]olaf.Match
}

func (f *fakeQuerier) Query(_ context.Context, _ []byte) ([]olaf.Match, error) {
	if f.callIndex >= len(f.responses) {
		return nil, nil
	}
	out := f.responses[f.callIndex]
	f.callIndex++
	return out, nil
}

type fakeResolver struct {
	infos map[string]store.TrackInfo
}

func (f *fakeResolver) GetManyByID(_ context.Context, ids []string) (map[string]store.TrackInfo, error) {
	out := make(map[string]store.TrackInfo)
	for _, id := range ids {
		if info, ok := f.infos[id]; ok {
			out[id] = info
		}
	}
	return out, nil
}

func samples(durationSec float64) []float32 {
	return make([]float32, int(durationSec*SampleRateHz))
}

// Scenario 2 from spec.md §8: three windows each report match_count=12 for
// the same reference -> aligned_hashes=36, confidence=1.0.
func TestSubWindowConsensusStrongMatch(t *testing.T) {
	q := &fakeQuerier{responses: [][]olaf.Match{
		{{MatchCount: 12, RefPath: refUUID, RefStart: 1.0}},
		{{MatchCount: 12, RefPath: refUUID, RefStart: 2.0}},
		{{MatchCount: 12, RefPath: refUUID, RefStart: 3.0}},
	}}
	resolver := &fakeResolver{infos: map[string]store.TrackInfo{refUUID: {ID: refUUID, Title: "Ref"}}}

	matches, err := Run(context.Background(), q, resolver, samples(4.0), 10, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 36, matches[0].AlignedHashes)
	assert.InDelta(t, 1.0, matches[0].Confidence, 1e-9)
	assert.InDelta(t, 2.0, matches[0].OffsetSeconds, 1e-9)
}

// Scenario 3 from spec.md §8: one window matches with match_count=20, others
// empty -> aligned_hashes=10, confidence=0.5.
func TestSubWindowConsensusSingleWindowPenalty(t *testing.T) {
	q := &fakeQuerier{responses: [][]olaf.Match{
		{{MatchCount: 20, RefPath: refUUID, RefStart: 1.0}},
		{},
		{},
	}}
	resolver := &fakeResolver{infos: map[string]store.TrackInfo{refUUID: {ID: refUUID, Title: "Ref"}}}

	matches, err := Run(context.Background(), q, resolver, samples(4.0), 10, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 10, matches[0].AlignedHashes)
	assert.InDelta(t, 0.5, matches[0].Confidence, 1e-9)
}

func TestModeSelectionBoundary(t *testing.T) {
	cfg := DefaultConfig()
	q := &fakeQuerier{responses: [][]olaf.Match{{}, {}, {}}}
	resolver := &fakeResolver{infos: map[string]store.TrackInfo{}}

	// exactly 5.0s -> sub-window mode -> 3 queries issued
	_, err := Run(context.Background(), q, resolver, samples(5.0), 10, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, q.callIndex)

	// 5.01s -> full-clip mode -> 1 query issued
	q2 := &fakeQuerier{responses: [][]olaf.Match{{}}}
	_, err = Run(context.Background(), q2, resolver, samples(5.01), 10, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, q2.callIndex)
}

func TestMinAlignedHashesFilter(t *testing.T) {
	q := &fakeQuerier{responses: [][]olaf.Match{{{MatchCount: 7, RefPath: refUUID, RefStart: 1.0}}}}
	resolver := &fakeResolver{infos: map[string]store.TrackInfo{refUUID: {ID: refUUID}}}

	matches, err := Run(context.Background(), q, resolver, samples(6.0), 10, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestNonUUIDReferenceDropped(t *testing.T) {
	q := &fakeQuerier{responses: [][]olaf.Match{{{MatchCount: 30, RefPath: "not-a-uuid", RefStart: 1.0}}}}
	resolver := &fakeResolver{infos: map[string]store.TrackInfo{}}

	matches, err := Run(context.Background(), q, resolver, samples(6.0), 10, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestEmptyPCMYieldsEmptyResults(t *testing.T) {
	q := &fakeQuerier{responses: [][]olaf.Match{{}, {}, {}}}
	resolver := &fakeResolver{}
	matches, err := Run(context.Background(), q, resolver, nil, 10, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, matches)
}
