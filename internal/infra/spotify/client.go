// Package spotify provides the Spotify-backed catalog.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/quaver/internal/domain/song"
)

// Maximum number of seeds accepted by the recommendations endpoint.
const maxSeeds = 5

// Client is a Spotify catalog client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// New creates a new Spotify client authenticated with a refresh token.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(spotifyauth.ScopePlaylistReadPrivate),
	)

	// HTTP client with auto-refresh capability
	httpClient := auth.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return newClient(spotify.New(httpClient), cfg.Market), nil
}

// newWithBaseURL creates an unauthenticated client against a custom API root.
func newWithBaseURL(httpClient *http.Client, baseURL, market string) *Client {
	c := newClient(spotify.New(httpClient, spotify.WithBaseURL(baseURL)), market)
	c.retryDelay = time.Millisecond
	return c
}

func newClient(client *spotify.Client, market string) *Client {
	if market == "" {
		market = "JP"
	}
	return &Client{
		client:     client,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// GetTrack retrieves a song by ID, URL, or URI.
func (c *Client) GetTrack(ctx context.Context, ref string) (*song.Song, error) {
	id := extractID(ref, "track")
	if id == "" {
		return nil, errors.New("track ID is required")
	}

	var result *spotify.FullTrack
	err := c.retry(ctx, func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get track %s", id)
	}

	s := convertFullTrack(result)
	return &s, nil
}

// Search searches songs by free text.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]song.Song, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query is required")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	var result *spotify.SearchResult
	err := c.retry(ctx, func() error {
		r, err := c.client.Search(ctx, query, spotify.SearchTypeTrack,
			spotify.Limit(limit),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search")
	}
	if result.Tracks == nil {
		return []song.Song{}, nil
	}

	songs := make([]song.Song, 0, len(result.Tracks.Tracks))
	for i := range result.Tracks.Tracks {
		songs = append(songs, convertFullTrack(&result.Tracks.Tracks[i]))
	}
	return songs, nil
}

// GetAlbum retrieves an album with its songs.
func (c *Client) GetAlbum(ctx context.Context, ref string) (*song.Album, error) {
	id := extractID(ref, "album")
	if id == "" {
		return nil, errors.New("album ID is required")
	}

	var result *spotify.FullAlbum
	err := c.retry(ctx, func() error {
		a, err := c.client.GetAlbum(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get album %s", id)
	}

	album := song.Album{
		ID:           string(result.ID),
		Title:        result.Name,
		ThumbnailURL: firstImage(result.Images),
		Year:         releaseYear(result.ReleaseDate),
		AuthorsText:  strings.Join(artistNames(result.Artists), ", "),
		ShareURL:     AlbumURL(string(result.ID)),
	}
	album.Songs = make([]song.Song, 0, len(result.Tracks.Tracks))
	for i := range result.Tracks.Tracks {
		s := convertSimpleTrack(&result.Tracks.Tracks[i])
		s.AlbumID = album.ID
		s.Album = album.Title
		s.ThumbnailURL = album.ThumbnailURL
		album.Songs = append(album.Songs, s)
	}
	return &album, nil
}

// GetRecommendations returns songs related to the seed tracks.
// At most five seeds are used; the most recent ones win.
func (c *Client) GetRecommendations(ctx context.Context, seedIDs []string, limit int) ([]song.Song, error) {
	if len(seedIDs) == 0 {
		return nil, errors.New("at least one seed track is required")
	}
	if len(seedIDs) > maxSeeds {
		seedIDs = seedIDs[len(seedIDs)-maxSeeds:]
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	seeds := spotify.Seeds{Tracks: make([]spotify.ID, 0, len(seedIDs))}
	for _, id := range seedIDs {
		seeds.Tracks = append(seeds.Tracks, spotify.ID(extractID(id, "track")))
	}

	var result *spotify.Recommendations
	err := c.retry(ctx, func() error {
		r, err := c.client.GetRecommendations(ctx, seeds, nil,
			spotify.Limit(limit),
			spotify.Country(c.market),
		)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get recommendations")
	}

	songs := make([]song.Song, 0, len(result.Tracks))
	for i := range result.Tracks {
		songs = append(songs, convertSimpleTrack(&result.Tracks[i]))
	}
	return songs, nil
}

// LoadPlaylist returns one page of a playlist and the playlist's total size.
func (c *Client) LoadPlaylist(ctx context.Context, ref string, offset, limit int) ([]song.Song, int, error) {
	playlistID := extractID(ref, "playlist")
	if playlistID == "" {
		return nil, 0, errors.New("invalid playlist URL")
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var page *spotify.PlaylistItemPage
	err := c.retry(ctx, func() error {
		p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(limit),
			spotify.Offset(offset),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to get playlist items")
	}

	songs := make([]song.Song, 0, len(page.Items))
	for _, item := range page.Items {
		// Episodes have no track
		if item.Track.Track != nil && item.Track.Track.ID != "" {
			songs = append(songs, convertFullTrack(item.Track.Track))
		}
	}
	return songs, int(page.Total), nil
}

// TrackURL returns the Spotify URL for a track.
func TrackURL(trackID string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", trackID)
}

// AlbumURL returns the Spotify URL for an album.
func AlbumURL(albumID string) string {
	return fmt.Sprintf("https://open.spotify.com/album/%s", albumID)
}

func convertFullTrack(t *spotify.FullTrack) song.Song {
	return song.Song{
		ID:           string(t.ID),
		Title:        t.Name,
		Artists:      artistNames(t.Artists),
		AlbumID:      string(t.Album.ID),
		Album:        t.Album.Name,
		ThumbnailURL: firstImage(t.Album.Images),
		Duration:     time.Duration(t.Duration) * time.Millisecond,
		Explicit:     t.Explicit,
	}
}

func convertSimpleTrack(t *spotify.SimpleTrack) song.Song {
	return song.Song{
		ID:       string(t.ID),
		Title:    t.Name,
		Artists:  artistNames(t.Artists),
		Duration: time.Duration(t.Duration) * time.Millisecond,
		Explicit: t.Explicit,
	}
}

func artistNames(artists []spotify.SimpleArtist) []string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return names
}

func firstImage(images []spotify.Image) string {
	if len(images) > 0 {
		return images[0].URL
	}
	return ""
}

// releaseYear extracts the year from a "YYYY", "YYYY-MM" or "YYYY-MM-DD" date.
func releaseYear(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

// retry retries an operation with linear backoff until ctx is done.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), lastErr.Error())
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var spErr spotify.Error
	if errors.As(err, &spErr) {
		return spErr.Status == http.StatusTooManyRequests || spErr.Status >= http.StatusInternalServerError
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractID extracts the ID of the given kind ("track", "album", "playlist")
// from a Spotify URI, an open.spotify.com URL, or a bare ID.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)
	if prefix := "spotify:" + kind + ":"; strings.HasPrefix(input, prefix) {
		return strings.TrimPrefix(input, prefix)
	}

	// https://open.spotify.com/<kind>/ID or https://open.spotify.com/intl-XX/<kind>/ID
	sep := "/" + kind + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, sep) {
		parts := strings.Split(input, sep)
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return input
}
