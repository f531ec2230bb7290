// Package youtube loads YouTube playlists through ytdlp.
package youtube

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/ytget/ytdlp/v2"

	"github.com/osa030/quaver/internal/domain/song"
)

const (
	defaultTimeout  = 60 * time.Second
	defaultCacheTTL = 30 * time.Minute
)

// entry is a single playlist video.
type entry struct {
	VideoID string
	Title   string
}

type fetchFunc func(ctx context.Context, playlistID string) ([]entry, error)

type cachedPlaylist struct {
	entries  []entry
	loadedAt time.Time
}

// PlaylistLoader pages through YouTube playlists.
// Full playlists are fetched once and cached; pages are served from the cache.
type PlaylistLoader struct {
	fetch   fetchFunc
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]cachedPlaylist
}

// Config represents playlist loader configuration.
type Config struct {
	Timeout  time.Duration // Fetch timeout (default 60s)
	CacheTTL time.Duration // Playlist cache lifetime (default 30m)
}

// NewPlaylistLoader creates a loader backed by ytdlp.
func NewPlaylistLoader(cfg Config) *PlaylistLoader {
	return newPlaylistLoader(cfg, fetchWithYTDLP)
}

func newPlaylistLoader(cfg Config, fetch fetchFunc) *PlaylistLoader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &PlaylistLoader{
		fetch:   fetch,
		timeout: cfg.Timeout,
		ttl:     cfg.CacheTTL,
		now:     time.Now,
		cache:   make(map[string]cachedPlaylist),
	}
}

func fetchWithYTDLP(ctx context.Context, playlistID string) ([]entry, error) {
	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, err
	}
	entries := make([]entry, 0, len(items))
	for _, it := range items {
		entries = append(entries, entry{VideoID: it.VideoID, Title: it.Title})
	}
	return entries, nil
}

// LoadPlaylist returns one page of a playlist and the playlist's total size.
func (l *PlaylistLoader) LoadPlaylist(ctx context.Context, ref string, offset, limit int) ([]song.Song, int, error) {
	playlistID := ExtractPlaylistID(ref)
	if playlistID == "" {
		return nil, 0, errors.Newf("invalid playlist reference: %s", ref)
	}

	entries, err := l.entries(ctx, playlistID)
	if err != nil {
		return nil, 0, err
	}

	total := len(entries)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []song.Song{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	songs := make([]song.Song, 0, end-offset)
	for _, e := range entries[offset:end] {
		songs = append(songs, song.Song{
			ID:           e.VideoID,
			Title:        e.Title,
			ThumbnailURL: ThumbnailURL(e.VideoID),
		})
	}
	return songs, total, nil
}

func (l *PlaylistLoader) entries(ctx context.Context, playlistID string) ([]entry, error) {
	l.mu.Lock()
	cached, ok := l.cache[playlistID]
	l.mu.Unlock()
	if ok && l.now().Sub(cached.loadedAt) < l.ttl {
		return cached.entries, nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	entries, err := l.fetch(ctx, playlistID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get playlist items: %s", playlistID)
	}

	// Private or deleted videos come back without an ID
	valid := entries[:0:0]
	for _, e := range entries {
		if e.VideoID != "" {
			valid = append(valid, e)
		}
	}

	l.mu.Lock()
	l.cache[playlistID] = cachedPlaylist{entries: valid, loadedAt: l.now()}
	l.mu.Unlock()

	zlog.Debug().Msgf("youtube: playlist loaded: id=%s items=%d elapsed=%s", playlistID, len(valid), time.Since(start))
	return valid, nil
}

// ExtractPlaylistID extracts the playlist ID from a URL carrying a list
// parameter, or returns the input unchanged when it is a bare ID.
func ExtractPlaylistID(ref string) string {
	ref = strings.TrimSpace(ref)
	if !strings.Contains(ref, "list=") {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return u.Query().Get("list")
}

// ThumbnailURL returns the default high-quality thumbnail of a video.
func ThumbnailURL(videoID string) string {
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoID)
}
