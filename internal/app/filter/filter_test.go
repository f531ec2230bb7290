package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/quaver/internal/domain/media"
	"github.com/osa030/quaver/internal/infra/config"
)

// Mock QueueReader for testing
type mockQueue struct {
	items []media.Item
}

func (m *mockQueue) GetQueue() []media.Item {
	return m.items
}

// stubFilter rejects a fixed ID.
type stubFilter struct {
	rejectID string
	sources  []media.Source
	calls    int
}

func (f *stubFilter) Name() string { return "stub" }
func (f *stubFilter) Description() string { return "stub" }
func (f *stubFilter) ReturnCodes() []string { return []string{"stub"} }
func (f *stubFilter) ValidateConfig(settings map[string]any) error { return nil }
func (f *stubFilter) AppliesTo(source media.Source) bool {
	for _, s := range f.sources {
		if s == source {
			return true
		}
	}
	return false
}
func (f *stubFilter) Check(ctx context.Context, item media.Item) Result {
	f.calls++
	if item.ID == f.rejectID {
		return Reject("stub")
	}
	return Accept()
}

func TestChain_Execute(t *testing.T) {
	first := &stubFilter{rejectID: "a", sources: []media.Source{media.SourceRadio}}
	second := &stubFilter{rejectID: "b", sources: []media.Source{media.SourceRadio, media.SourceUser}}

	chain := NewChain()
	chain.Add(first)
	chain.Add(second)

	tests := []struct {
		name         string
		id           string
		source       media.Source
		wantAccepted bool
	}{
		{name: "rejected by first filter", id: "a", source: media.SourceRadio, wantAccepted: false},
		{name: "rejected by second filter", id: "b", source: media.SourceRadio, wantAccepted: false},
		{name: "accepted", id: "c", source: media.SourceRadio, wantAccepted: true},
		{name: "first filter skipped for user items", id: "a", source: media.SourceUser, wantAccepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := chain.Execute(context.Background(), media.Item{ID: tt.id}, tt.source)
			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "stub", result.Code)
			}
		})
	}
}

func TestChain_ExecuteStopsAtFirstRejection(t *testing.T) {
	first := &stubFilter{rejectID: "a", sources: []media.Source{media.SourceRadio}}
	second := &stubFilter{sources: []media.Source{media.SourceRadio}}

	chain := NewChain()
	chain.Add(first)
	chain.Add(second)

	chain.Execute(context.Background(), media.Item{ID: "a"}, media.SourceRadio)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestChain_Apply(t *testing.T) {
	chain := NewChain()
	chain.Add(&stubFilter{rejectID: "b", sources: []media.Source{media.SourceRadio}})

	items := []media.Item{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "a"}}
	accepted := chain.Apply(context.Background(), items, media.SourceRadio)

	assert.Equal(t, []string{"a", "c"}, media.IDs(accepted))
}

func TestExplicitFilter(t *testing.T) {
	tests := []struct {
		name        string
		settings    map[string]any
		source      media.Source
		wantApplies bool
	}{
		{name: "radio items always", settings: nil, source: media.SourceRadio, wantApplies: true},
		{name: "user items by default skipped", settings: nil, source: media.SourceUser, wantApplies: false},
		{name: "user items when configured", settings: map[string]any{"apply_to_user": true}, source: media.SourceUser, wantApplies: true},
		{name: "restored items skipped", settings: nil, source: media.SourceRestored, wantApplies: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewExplicitFilter()
			require.NoError(t, f.ValidateConfig(tt.settings))
			assert.Equal(t, tt.wantApplies, f.AppliesTo(tt.source))
		})
	}

	f := NewExplicitFilter()
	assert.False(t, f.Check(context.Background(), media.Item{Explicit: true}).Accepted)
	assert.Equal(t, "explicit_content", f.Check(context.Background(), media.Item{Explicit: true}).Code)
	assert.True(t, f.Check(context.Background(), media.Item{}).Accepted)
}

func TestArtistDiversityFilter(t *testing.T) {
	queue := &mockQueue{items: []media.Item{
		{ID: "1", Artists: []string{"Queen"}},
		{ID: "2", Artists: []string{"Blur"}},
		{ID: "3", Artists: []string{"Oasis", "Blur"}},
	}}

	tests := []struct {
		name         string
		recentCount  int
		artists      []string
		wantAccepted bool
	}{
		{name: "recent artist rejected", recentCount: 2, artists: []string{"blur"}, wantAccepted: false},
		{name: "older artist accepted", recentCount: 2, artists: []string{"Queen"}, wantAccepted: true},
		{name: "window covers whole queue", recentCount: 10, artists: []string{"Queen"}, wantAccepted: false},
		{name: "disabled", recentCount: 0, artists: []string{"Oasis"}, wantAccepted: true},
		{name: "no artists", recentCount: 3, artists: nil, wantAccepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewArtistDiversityFilter(queue, tt.recentCount)
			result := f.Check(context.Background(), media.Item{ID: "x", Artists: tt.artists})
			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "recent_artist", result.Code)
			}
		})
	}
}

func TestArtistDiversityFilter_ValidateConfig(t *testing.T) {
	f := NewArtistDiversityFilter(&mockQueue{}, 3)

	require.NoError(t, f.ValidateConfig(nil))
	assert.Equal(t, 3, f.recentCount, "keeps the configured default")

	require.NoError(t, f.ValidateConfig(map[string]any{"recent_count": 5}))
	assert.Equal(t, 5, f.recentCount)

	assert.Error(t, f.ValidateConfig(map[string]any{"recent_count": -1}))
}

func TestNewChainFromConfig(t *testing.T) {
	cfg := &config.Config{
		Radio: config.RadioConfig{RecentArtistCount: 2},
		Filters: map[string]config.FilterConfig{
			"duplicate_track_filter":  {Enabled: true},
			"artist_diversity_filter": {Enabled: true},
			"duration_limit_filter":   {Enabled: true, Settings: map[string]any{"max_minutes": 10}},
			"explicit_filter":         {Enabled: false},
		},
	}

	chain, err := NewChainFromConfig(cfg, &mockQueue{})
	require.NoError(t, err)

	names := make([]string, 0)
	for _, f := range chain.Filters() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"duplicate_track_filter", "artist_diversity_filter", "duration_limit_filter"}, names)

	result := chain.Execute(context.Background(), media.Item{ID: "x", Duration: 20 * time.Minute}, media.SourceRadio)
	assert.False(t, result.Accepted)
	assert.Equal(t, "duration_limit_exceeded", result.Code)
}

func TestNewChainFromConfig_InvalidSettings(t *testing.T) {
	cfg := &config.Config{
		Filters: map[string]config.FilterConfig{
			"duration_limit_filter": {Enabled: true, Settings: map[string]any{"min_minutes": 10, "max_minutes": 5}},
		},
	}

	_, err := NewChainFromConfig(cfg, &mockQueue{})
	assert.Error(t, err)
}
