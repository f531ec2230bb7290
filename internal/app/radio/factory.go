package radio

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/quaver/internal/infra/config"
)

// Dependencies are the catalog clients sources are built on.
type Dependencies struct {
	Recommender Recommender
	Searcher    Searcher
	Loaders     map[string]PlaylistLoader // keyed by loader name ("spotify", "youtube")
}

// NewSourceChainFromConfig creates a source chain from configuration.
func NewSourceChainFromConfig(cfg *config.Config, deps Dependencies) (*SourceChain, error) {
	if len(cfg.Radio.Sources) == 0 {
		return nil, errors.New("no radio sources configured")
	}

	var sources []SourceWithMetadata

	for i, scfg := range cfg.Radio.Sources {
		var source Source
		var err error
		zlog.Debug().Msgf("radio: creating source: index=%d type=%s", i+1, scfg.Type)
		switch scfg.Type {
		case "recommendations":
			source, err = NewRecommendationsSource(deps.Recommender, scfg.Settings)

		case "lastfm":
			source, err = NewLastFmSource(deps.Searcher, scfg.Settings)

		case "playlist":
			source, err = NewPlaylistSource(deps.Loaders, scfg.Settings)

		default:
			return nil, errors.Newf("unsupported source type: %s (source index %d)", scfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create source (index %d, type %s)", i, scfg.Type)
		}

		sources = append(sources, SourceWithMetadata{
			Source:      source,
			DisplayName: scfg.DisplayName,
		})

		zlog.Info().Msgf("radio: registered source: index=%d type=%s display_name=%s", i+1, scfg.Type, scfg.DisplayName)
	}

	return NewSourceChain(sources), nil
}
