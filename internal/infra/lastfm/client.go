// Package lastfm provides a client for the Last.fm API.
package lastfm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Caches keyed by request
	cacheMu        sync.RWMutex
	similarCache   map[string][]SimilarTrack
	trackTagCache  map[string][]Tag
	tagTracksCache map[string][]TopTrack
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey  string
	Timeout time.Duration // Request timeout (default 10s)
}

// SimilarTrack represents a similar track from Last.fm.
type SimilarTrack struct {
	Name   string
	Artist string
	Match  float64 // Similarity score in [0, 1]
}

// Tag represents a Last.fm tag.
type Tag struct {
	Name  string
	Count int // Tag count/frequency
}

// TopTrack represents a top track for a tag or chart.
type TopTrack struct {
	Name   string
	Artist string
}

type artistRef struct {
	Name string `json:"name"`
}

// flexFloat accepts both JSON numbers and numeric strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid number %s", s)
	}
	*f = flexFloat(v)
	return nil
}

type similarResponse struct {
	SimilarTracks struct {
		Track []struct {
			Name   string    `json:"name"`
			Match  flexFloat `json:"match"`
			Artist artistRef `json:"artist"`
		} `json:"track"`
	} `json:"similartracks"`
}

type topTagsResponse struct {
	TopTags struct {
		Tag []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"tag"`
	} `json:"toptags"`
}

type topTracksResponse struct {
	Tracks struct {
		Track []struct {
			Name   string    `json:"name"`
			Artist artistRef `json:"artist"`
		} `json:"track"`
	} `json:"tracks"`
}

type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		apiKey:         cfg.APIKey,
		baseURL:        defaultBaseURL,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		similarCache:   make(map[string][]SimilarTrack),
		trackTagCache:  make(map[string][]Tag),
		tagTracksCache: make(map[string][]TopTrack),
	}, nil
}

// GetSimilarTracks retrieves tracks similar to the given one.
// Reference: https://www.last.fm/api/show/track.getSimilar
func (c *Client) GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]SimilarTrack, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}
	limit = clampLimit(limit, 20)

	cacheKey := artistName + "\x00" + trackName + "\x00" + strconv.Itoa(limit)
	if cached, ok := cacheGet(c, c.similarCache, cacheKey); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("autocorrect", "1")

	var response similarResponse
	if err := c.get(ctx, "track.getSimilar", params, &response); err != nil {
		return nil, err
	}

	tracks := make([]SimilarTrack, 0, len(response.SimilarTracks.Track))
	for _, t := range response.SimilarTracks.Track {
		tracks = append(tracks, SimilarTrack{
			Name:   t.Name,
			Artist: t.Artist.Name,
			Match:  float64(t.Match),
		})
	}

	cachePut(c, c.similarCache, cacheKey, tracks)
	zlog.Debug().Msgf("lastfm: cached similar tracks: artist=%s track=%s count=%d", artistName, trackName, len(tracks))
	return tracks, nil
}

// GetTopTags retrieves top tags for a track.
// Reference: https://www.last.fm/api/show/track.getTopTags
func (c *Client) GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]Tag, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}
	limit = clampLimit(limit, 10)

	cacheKey := artistName + "\x00" + trackName
	if cached, ok := cacheGet(c, c.trackTagCache, cacheKey); ok {
		return truncate(cached, limit), nil
	}

	params := url.Values{}
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("autocorrect", "1")

	var response topTagsResponse
	if err := c.get(ctx, "track.getTopTags", params, &response); err != nil {
		return nil, err
	}

	tags := make([]Tag, 0, len(response.TopTags.Tag))
	for _, t := range response.TopTags.Tag {
		tags = append(tags, Tag{Name: t.Name, Count: t.Count})
	}

	cachePut(c, c.trackTagCache, cacheKey, tags)
	zlog.Debug().Msgf("lastfm: cached tags: artist=%s track=%s count=%d", artistName, trackName, len(tags))
	return truncate(tags, limit), nil
}

// GetTopTracks retrieves top tracks for a tag.
// Reference: https://www.last.fm/api/show/tag.getTopTracks
func (c *Client) GetTopTracks(ctx context.Context, tagName string, limit int) ([]TopTrack, error) {
	if tagName == "" {
		return nil, errors.New("tag name is required")
	}
	limit = clampLimit(limit, 20)

	cacheKey := tagName + "\x00" + strconv.Itoa(limit)
	if cached, ok := cacheGet(c, c.tagTracksCache, cacheKey); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("tag", tagName)
	params.Set("limit", strconv.Itoa(limit))

	var response topTracksResponse
	if err := c.get(ctx, "tag.getTopTracks", params, &response); err != nil {
		return nil, err
	}

	tracks := toTopTracks(response)
	cachePut(c, c.tagTracksCache, cacheKey, tracks)
	zlog.Debug().Msgf("lastfm: cached top tracks: tag=%s count=%d", tagName, len(tracks))
	return tracks, nil
}

// GetChartTopTracks retrieves global top tracks. Results are not cached.
// Reference: https://www.last.fm/api/show/chart.getTopTracks
func (c *Client) GetChartTopTracks(ctx context.Context, limit int) ([]TopTrack, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(clampLimit(limit, 20)))

	// Same structure as tag.getTopTracks
	var response topTracksResponse
	if err := c.get(ctx, "chart.getTopTracks", params, &response); err != nil {
		return nil, err
	}
	return toTopTracks(response), nil
}

// get calls an API method and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, method string, params url.Values, out any) error {
	params.Set("method", method)
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to send %s request", method)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	// Last.fm reports errors in the body, sometimes with a 200 status
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Errorf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("last.fm HTTP error %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "failed to parse %s response", method)
	}
	return nil
}

func toTopTracks(response topTracksResponse) []TopTrack {
	tracks := make([]TopTrack, 0, len(response.Tracks.Track))
	for _, t := range response.Tracks.Track {
		tracks = append(tracks, TopTrack{Name: t.Name, Artist: t.Artist.Name})
	}
	return tracks
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func truncate[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func cacheGet[T any](c *Client, cache map[string][]T, key string) ([]T, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	v, ok := cache[key]
	return v, ok
}

func cachePut[T any](c *Client, cache map[string][]T, key string, v []T) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	cache[key] = v
}
