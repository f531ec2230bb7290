// Package library manages the user's local library: likes, album bookmarks,
// search history and local playlists.
package library

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/quaver/internal/domain/playlist"
	"github.com/osa030/quaver/internal/domain/song"
)

// Store is the persistence the library is built on.
type Store interface {
	ToggleLike(ctx context.Context, s song.Song, now time.Time) (*time.Time, error)
	LikedAt(ctx context.Context, id string) (*time.Time, error)
	LikedSongs(ctx context.Context) ([]song.Song, error)
	ToggleBookmark(ctx context.Context, a song.Album, now time.Time) (*time.Time, error)
	BookmarkedAlbums(ctx context.Context) ([]song.Album, error)

	RecordSearch(ctx context.Context, query string, now time.Time, limit int) error
	SearchHistory(ctx context.Context, filter string) ([]song.SearchQuery, error)
	DeleteSearch(ctx context.Context, id int64) error
	ClearSearchHistory(ctx context.Context) error

	CreatePlaylist(ctx context.Context, name, browseID string, now time.Time) (*playlist.Playlist, error)
	AddToPlaylist(ctx context.Context, playlistID string, songs ...song.Song) error
	GetPlaylist(ctx context.Context, id string) (*playlist.Playlist, error)
	PlaylistPreviews(ctx context.Context, by playlist.SortBy, order playlist.SortOrder) ([]playlist.Preview, error)
	DeletePlaylist(ctx context.Context, id string) error
}

// Listener is notified after a like or bookmark changed in the store.
type Listener interface {
	OnLikeChanged(trackID string, likedAt *time.Time)
	OnBookmarkChanged(albumID string, bookmarkedAt *time.Time)
}

// Config represents library configuration.
type Config struct {
	SearchHistoryLimit int // 0 disables search history recording
}

// Service is the library service.
type Service struct {
	store  Store
	config Config
	now    func() time.Time

	mu        sync.RWMutex
	listeners []Listener
}

// NewService creates a new library service.
func NewService(store Store, config Config) *Service {
	return &Service{
		store:  store,
		config: config,
		now:    time.Now,
	}
}

// AddListener registers a change listener.
func (s *Service) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Service) snapshotListeners() []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Listener(nil), s.listeners...)
}

// ToggleLike flips the like state of sg and returns the new timestamp
// (nil when the song is no longer liked). The flip is a single store
// transaction, so concurrent toggles cannot both observe the same state.
func (s *Service) ToggleLike(ctx context.Context, sg song.Song) (*time.Time, error) {
	if sg.ID == "" {
		return nil, errors.New("track ID is required")
	}
	likedAt, err := s.store.ToggleLike(ctx, sg, s.now())
	if err != nil {
		return nil, err
	}

	zlog.Info().Msgf("library: like toggled: track=%s liked=%t", sg.ID, likedAt != nil)
	for _, l := range s.snapshotListeners() {
		l.OnLikeChanged(sg.ID, likedAt)
	}
	return likedAt, nil
}

// LikedAt returns the like timestamp of a track (nil if not liked).
func (s *Service) LikedAt(ctx context.Context, trackID string) (*time.Time, error) {
	return s.store.LikedAt(ctx, trackID)
}

// LikedSongs returns liked songs, most recent first.
func (s *Service) LikedSongs(ctx context.Context) ([]song.Song, error) {
	return s.store.LikedSongs(ctx)
}

// ToggleBookmark flips the bookmark of an album.
func (s *Service) ToggleBookmark(ctx context.Context, a song.Album) (*time.Time, error) {
	if a.ID == "" {
		return nil, errors.New("album ID is required")
	}
	bookmarkedAt, err := s.store.ToggleBookmark(ctx, a, s.now())
	if err != nil {
		return nil, err
	}

	zlog.Info().Msgf("library: bookmark toggled: album=%s bookmarked=%t", a.ID, bookmarkedAt != nil)
	for _, l := range s.snapshotListeners() {
		l.OnBookmarkChanged(a.ID, bookmarkedAt)
	}
	return bookmarkedAt, nil
}

// BookmarkedAlbums returns bookmarked albums, most recent first.
func (s *Service) BookmarkedAlbums(ctx context.Context) ([]song.Album, error) {
	return s.store.BookmarkedAlbums(ctx)
}

// RecordSearch adds a query to the search history.
func (s *Service) RecordSearch(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" || s.config.SearchHistoryLimit == 0 {
		return nil
	}
	return s.store.RecordSearch(ctx, query, s.now(), s.config.SearchHistoryLimit)
}

// SearchHistory returns history entries containing filter, newest first.
func (s *Service) SearchHistory(ctx context.Context, filter string) ([]song.SearchQuery, error) {
	return s.store.SearchHistory(ctx, strings.TrimSpace(filter))
}

// DeleteSearch removes one history entry.
func (s *Service) DeleteSearch(ctx context.Context, id int64) error {
	return s.store.DeleteSearch(ctx, id)
}

// ClearSearchHistory removes all history entries.
func (s *Service) ClearSearchHistory(ctx context.Context) error {
	return s.store.ClearSearchHistory(ctx)
}

// CreatePlaylist creates an empty local playlist.
func (s *Service) CreatePlaylist(ctx context.Context, name string) (*playlist.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("playlist name is required")
	}
	return s.store.CreatePlaylist(ctx, name, "", s.now())
}

// AddToPlaylist appends songs to a playlist.
func (s *Service) AddToPlaylist(ctx context.Context, playlistID string, songs ...song.Song) error {
	return s.store.AddToPlaylist(ctx, playlistID, songs...)
}

// Playlist returns a playlist with its songs.
func (s *Service) Playlist(ctx context.Context, id string) (*playlist.Playlist, error) {
	return s.store.GetPlaylist(ctx, id)
}

// PlaylistPreviews lists playlists sorted as requested.
func (s *Service) PlaylistPreviews(ctx context.Context, by playlist.SortBy, order playlist.SortOrder) ([]playlist.Preview, error) {
	return s.store.PlaylistPreviews(ctx, by, order)
}

// DeletePlaylist deletes a playlist.
func (s *Service) DeletePlaylist(ctx context.Context, id string) error {
	return s.store.DeletePlaylist(ctx, id)
}
