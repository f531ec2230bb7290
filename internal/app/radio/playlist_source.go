package radio

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/quaver/internal/domain/media"
)

type PlaylistSourceConfig struct {
	Loader      string `yaml:"loader" mapstructure:"loader" default:"spotify" validate:"oneof=spotify youtube"`
	PlaylistURL string `yaml:"playlist_url" mapstructure:"playlist_url"`
}

// PlaylistSource pages through a playlist: the endpoint's playlist when the
// radio was started from one, otherwise the configured fallback playlist.
// The continuation token is the offset of the next page.
type PlaylistSource struct {
	loader PlaylistLoader
	config *PlaylistSourceConfig
}

// NewPlaylistSource creates a new PlaylistSource using the loader named in
// settings.
func NewPlaylistSource(loaders map[string]PlaylistLoader, settings map[string]any) (*PlaylistSource, error) {
	var config PlaylistSourceConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	loader, ok := loaders[config.Loader]
	if !ok || loader == nil {
		return nil, errors.Newf("playlist loader not available: %s", config.Loader)
	}
	zlog.Debug().Msgf("radio: playlist source config: %+v", config)
	return &PlaylistSource{loader: loader, config: &config}, nil
}

// Next retrieves the next page of the playlist.
func (p *PlaylistSource) Next(ctx context.Context, req Request) (Batch, error) {
	ref := req.Endpoint.PlaylistID
	if ref == "" {
		ref = p.config.PlaylistURL
	}
	if ref == "" {
		// Nothing to page through for a plain watch radio
		return Batch{Exhausted: true}, nil
	}

	offset := 0
	if req.Continuation != "" {
		n, err := strconv.Atoi(req.Continuation)
		if err != nil || n < 0 {
			return Batch{}, errors.Newf("invalid playlist continuation: %q", req.Continuation)
		}
		offset = n
	}

	count := max(req.Count, 1)
	songs, total, err := p.loader.LoadPlaylist(ctx, ref, offset, count)
	if err != nil {
		return Batch{}, errors.Wrap(err, "failed to load playlist page")
	}

	next := offset + count
	return Batch{
		Items:        excluded(media.FromSongs(songs), req.ExcludeIDs),
		Continuation: strconv.Itoa(next),
		Exhausted:    next >= total,
	}, nil
}

// Name returns the source type.
func (p *PlaylistSource) Name() string {
	return "playlist"
}
