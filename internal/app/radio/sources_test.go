package radio

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/quaver/internal/domain/media"
	"github.com/osa030/quaver/internal/domain/song"
	"github.com/osa030/quaver/internal/infra/config"
	"github.com/osa030/quaver/internal/infra/lastfm"
)

type mockRecommender struct {
	seeds [][]string
	songs []song.Song
	err   error
}

func (m *mockRecommender) GetRecommendations(ctx context.Context, seedIDs []string, limit int) ([]song.Song, error) {
	m.seeds = append(m.seeds, seedIDs)
	return m.songs, m.err
}

func testSongs(ids ...string) []song.Song {
	songs := make([]song.Song, len(ids))
	for i, id := range ids {
		songs[i] = song.Song{ID: id, Title: "Title " + id, Artists: []string{"Artist " + id}}
	}
	return songs
}

func TestRecommendationsSource(t *testing.T) {
	rec := &mockRecommender{songs: testSongs("r1", "queued", "r2")}
	src, err := NewRecommendationsSource(rec, nil)
	require.NoError(t, err)
	assert.Equal(t, "recommendations", src.Name())
	assert.Equal(t, 30, src.config.Limit)

	ctx := context.Background()
	batch, err := src.Next(ctx, Request{
		Count:      5,
		Seeds:      testItems("s1", "s2"),
		ExcludeIDs: map[string]bool{"queued": true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, media.IDs(batch.Items))
	assert.False(t, batch.Exhausted)
	assert.Equal(t, []string{"s1", "s2"}, rec.seeds[0])

	// Falls back to the endpoint video when the queue has no seeds
	_, err = src.Next(ctx, Request{Count: 5, Endpoint: song.Endpoint{VideoID: "v1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, rec.seeds[1])

	_, err = src.Next(ctx, Request{Count: 5, Endpoint: song.Endpoint{PlaylistID: "PL"}})
	assert.Error(t, err)
}

func TestRecommendationsSource_InvalidSettings(t *testing.T) {
	_, err := NewRecommendationsSource(&mockRecommender{}, map[string]any{"limit": 500})
	assert.Error(t, err)
	_, err = NewRecommendationsSource(nil, nil)
	assert.Error(t, err)
}

type mockLoader struct {
	songs []song.Song
	refs  []string
	err   error
}

func (m *mockLoader) LoadPlaylist(ctx context.Context, ref string, offset, limit int) ([]song.Song, int, error) {
	m.refs = append(m.refs, ref)
	if m.err != nil {
		return nil, 0, m.err
	}
	if offset >= len(m.songs) {
		return nil, len(m.songs), nil
	}
	end := min(offset+limit, len(m.songs))
	return m.songs[offset:end], len(m.songs), nil
}

func TestPlaylistSource_Pages(t *testing.T) {
	loader := &mockLoader{songs: testSongs("p1", "p2", "p3", "p4", "p5")}
	src, err := NewPlaylistSource(map[string]PlaylistLoader{"youtube": loader}, map[string]any{"loader": "youtube"})
	require.NoError(t, err)

	ctx := context.Background()
	req := Request{Count: 2, Endpoint: song.Endpoint{VideoID: "p1", PlaylistID: "PLx"}}

	var pages [][]string
	for {
		batch, err := src.Next(ctx, req)
		require.NoError(t, err)
		pages = append(pages, media.IDs(batch.Items))
		if batch.Exhausted {
			break
		}
		req.Continuation = batch.Continuation
	}
	assert.Equal(t, [][]string{{"p1", "p2"}, {"p3", "p4"}, {"p5"}}, pages)
	assert.Equal(t, "PLx", loader.refs[0])
}

func TestPlaylistSource_FallbackAndErrors(t *testing.T) {
	loader := &mockLoader{songs: testSongs("p1", "p2")}
	loaders := map[string]PlaylistLoader{"spotify": loader}
	ctx := context.Background()

	// No playlist at all: exhausted immediately
	src, err := NewPlaylistSource(loaders, nil)
	require.NoError(t, err)
	batch, err := src.Next(ctx, Request{Count: 2, Endpoint: watchEndpoint})
	require.NoError(t, err)
	assert.True(t, batch.Exhausted)
	assert.Empty(t, loader.refs)

	// Configured fallback playlist, queued songs excluded
	src, err = NewPlaylistSource(loaders, map[string]any{"playlist_url": "https://open.spotify.com/playlist/abc"})
	require.NoError(t, err)
	batch, err = src.Next(ctx, Request{Count: 2, Endpoint: watchEndpoint, ExcludeIDs: map[string]bool{"p1": true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, media.IDs(batch.Items))
	assert.Equal(t, "https://open.spotify.com/playlist/abc", loader.refs[0])

	_, err = src.Next(ctx, Request{Count: 2, Continuation: "bogus"})
	assert.Error(t, err)

	loader.err = errors.New("boom")
	_, err = src.Next(ctx, Request{Count: 2})
	assert.Error(t, err)

	_, err = NewPlaylistSource(loaders, map[string]any{"loader": "youtube"})
	assert.Error(t, err)
	_, err = NewPlaylistSource(loaders, map[string]any{"loader": "soundcloud"})
	assert.Error(t, err)
}

// mockLastFm answers from fixed tables keyed by lower-case track title.
type mockLastFm struct {
	tags    map[string][]lastfm.Tag
	tagTop  map[string][]lastfm.TopTrack
	similar map[string][]lastfm.SimilarTrack
	chart   []lastfm.TopTrack
}

func (m *mockLastFm) GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.SimilarTrack, error) {
	return m.similar[trackName], nil
}

func (m *mockLastFm) GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.Tag, error) {
	return m.tags[trackName], nil
}

func (m *mockLastFm) GetTopTracks(ctx context.Context, tagName string, limit int) ([]lastfm.TopTrack, error) {
	return m.tagTop[tagName], nil
}

func (m *mockLastFm) GetChartTopTracks(ctx context.Context, limit int) ([]lastfm.TopTrack, error) {
	if m.chart == nil {
		return nil, errors.New("chart unavailable")
	}
	return m.chart, nil
}

// mockSearcher resolves "track:<title> artist:<artist>" queries to songs
// with ID = title.
type mockSearcher struct {
	mu      sync.Mutex
	queries map[string]int
	missing map[string]bool
}

func (m *mockSearcher) Search(ctx context.Context, query string, limit int) ([]song.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queries == nil {
		m.queries = make(map[string]int)
	}
	m.queries[query]++
	title := strings.TrimPrefix(strings.SplitN(query, " artist:", 2)[0], "track:")
	if m.missing[title] {
		return nil, nil
	}
	return testSongs(title), nil
}

func newTestLastFmSource(t *testing.T, client LastFmClient, searcher Searcher) *LastFmSource {
	t.Helper()
	src, err := newLastFmSource(client, searcher, &LastFmSourceConfig{APIKey: "k", TagCount: 5, TagWeight: 0.4, SimilarWeight: 0.6})
	require.NoError(t, err)
	src.shuffle = func(int, func(i, j int)) {}
	return src
}

func TestLastFmSource_HybridScoring(t *testing.T) {
	client := &mockLastFm{
		tags: map[string][]lastfm.Tag{
			"Title s1": {{Name: "J-Pop", Count: 100}},
		},
		tagTop: map[string][]lastfm.TopTrack{
			"j-pop": {{Name: "both", Artist: "x"}, {Name: "tagonly", Artist: "x"}, {Name: "queued", Artist: "x"}},
		},
		similar: map[string][]lastfm.SimilarTrack{
			"Title s1": {{Name: "both", Artist: "x", Match: 0.2}, {Name: "close", Artist: "x", Match: 1.0}, {Name: "far", Artist: "x", Match: 0.0}, {Name: "gone", Artist: "x", Match: 1}},
		},
	}
	searcher := &mockSearcher{missing: map[string]bool{"gone": true}}
	src := newTestLastFmSource(t, client, searcher)

	batch, err := src.Next(context.Background(), Request{
		Count:      2,
		Seeds:      testItems("s1"),
		ExcludeIDs: map[string]bool{"queued": true},
	})
	require.NoError(t, err)
	// both: 0.4 + 0.6*0.6 = 0.76, close: 0.6, tagonly: 0.4, far: 0.3
	assert.Equal(t, []string{"both", "close"}, media.IDs(batch.Items))

	scored := src.scoreAndMerge(testItems("t1"), []similarEntry{{item: testItems("t1")[0], match: 1}})
	require.Len(t, scored, 1)
	assert.InDelta(t, 1.0, scored[0].Score, 1e-9)
}

func TestLastFmSource_ChartFallbackAndSearchCache(t *testing.T) {
	client := &mockLastFm{chart: []lastfm.TopTrack{{Name: "c1", Artist: "x"}, {Name: "c2", Artist: "x"}, {Name: "c3", Artist: "x"}}}
	searcher := &mockSearcher{}
	src := newTestLastFmSource(t, client, searcher)
	ctx := context.Background()

	// Seeds without artists are unusable, so the chart is used
	req := Request{Count: 1, Seeds: []media.Item{{ID: "s1", Title: "No artist"}}}
	batch, err := src.Next(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, media.IDs(batch.Items))

	_, err = src.Next(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, searcher.queries["track:c1 artist:x"])

	client.chart = nil
	_, err = src.Next(ctx, req)
	assert.Error(t, err)
}

func TestLastFmSource_Config(t *testing.T) {
	_, err := NewLastFmSource(&mockSearcher{}, nil)
	assert.Error(t, err)
	_, err = NewLastFmSource(&mockSearcher{}, map[string]any{"tag_count": 3})
	assert.Error(t, err, "api key is required")
	_, err = NewLastFmSource(&mockSearcher{}, map[string]any{"api_key": "k", "tag_weight": 0.5, "similar_weight": 0.6})
	assert.Error(t, err)

	src, err := NewLastFmSource(&mockSearcher{}, map[string]any{"api_key": "k"})
	require.NoError(t, err)
	assert.Equal(t, "lastfm", src.Name())
	assert.Equal(t, 5, src.config.TagCount)
}

func TestTopTags(t *testing.T) {
	got := topTags(map[string]int{"rock": 10, "pop": 30, "jazz": 10, "anime": 5}, 3)
	assert.Equal(t, []string{"pop", "jazz", "rock"}, got)
}

func TestNewSourceChainFromConfig(t *testing.T) {
	deps := Dependencies{
		Recommender: &mockRecommender{},
		Searcher:    &mockSearcher{},
		Loaders:     map[string]PlaylistLoader{"spotify": &mockLoader{}, "youtube": &mockLoader{}},
	}

	cfg := &config.Config{Radio: config.RadioConfig{Sources: []config.SourceConfig{
		{Type: "playlist", DisplayName: "Playlist", Settings: map[string]any{"loader": "youtube"}},
		{Type: "recommendations", DisplayName: "Spotify"},
		{Type: "lastfm", DisplayName: "Last.fm", Settings: map[string]any{"api_key": "k"}},
	}}}
	chain, err := NewSourceChainFromConfig(cfg, deps)
	require.NoError(t, err)
	require.Len(t, chain.sources, 3)
	assert.Equal(t, "playlist", chain.sources[0].Source.Name())
	assert.Equal(t, "Last.fm", chain.sources[2].DisplayName)

	tests := []struct {
		name    string
		sources []config.SourceConfig
	}{
		{name: "no sources", sources: nil},
		{name: "unknown type", sources: []config.SourceConfig{{Type: "soundcloud", DisplayName: "x"}}},
		{name: "lastfm without key", sources: []config.SourceConfig{{Type: "lastfm", DisplayName: "x", Settings: map[string]any{"tag_count": 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSourceChainFromConfig(&config.Config{Radio: config.RadioConfig{Sources: tt.sources}}, deps)
			assert.Error(t, err)
		})
	}
}
