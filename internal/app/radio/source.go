// Package radio extends the play queue with related tracks once playback
// nears its tail.
package radio

import (
	"context"

	"github.com/osa030/quaver/internal/domain/media"
	"github.com/osa030/quaver/internal/domain/song"
)

// Request describes the next batch a source should produce.
type Request struct {
	Endpoint     song.Endpoint   // Seed the session was started from
	Continuation string          // Token returned by this source's previous batch ("" on the first call)
	Count        int             // Number of candidates wanted
	Seeds        []media.Item    // Most recent queue items, oldest first
	ExcludeIDs   map[string]bool // IDs already in the queue
}

// Batch is one page of candidates from a source.
type Batch struct {
	Items        []media.Item
	Continuation string // Token for the next call
	Exhausted    bool   // No further batches will be produced
}

// Source produces radio candidates.
// Different implementations find related tracks through different strategies
// (recommendations, similar-track graphs, playlist pages).
type Source interface {
	// Next retrieves the next batch of candidates for req.
	Next(ctx context.Context, req Request) (Batch, error)

	// Name returns the source type (used in config).
	Name() string
}

// Recommender returns catalog songs related to seed tracks.
type Recommender interface {
	GetRecommendations(ctx context.Context, seedIDs []string, limit int) ([]song.Song, error)
}

// Searcher resolves free-text queries against the catalog.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]song.Song, error)
}

// PlaylistLoader pages through a remote playlist.
type PlaylistLoader interface {
	LoadPlaylist(ctx context.Context, ref string, offset, limit int) ([]song.Song, int, error)
}

// excluded drops items whose IDs are in exclude, keeping order and
// de-duplicating within the slice.
func excluded(items []media.Item, exclude map[string]bool) []media.Item {
	seen := make(map[string]bool, len(items))
	result := make([]media.Item, 0, len(items))
	for _, it := range items {
		if exclude[it.ID] || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		result = append(result, it)
	}
	return result
}
