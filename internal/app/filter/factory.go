package filter

import (
	"sort"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/quaver/internal/infra/config"
)

// NewChainFromConfig creates the candidate filter chain from configuration.
// Queue-aware filters read the queue through queue.
func NewChainFromConfig(cfg *config.Config, queue QueueReader) (*Chain, error) {
	chain := NewChain()

	// DuplicateTrackFilter
	if cfg.IsFilterEnabled("duplicate_track_filter") {
		chain.Add(NewDuplicateTrackFilter(queue))
	}

	// ArtistDiversityFilter
	if cfg.IsFilterEnabled("artist_diversity_filter") {
		f := NewArtistDiversityFilter(queue, cfg.Radio.RecentArtistCount)
		if err := f.ValidateConfig(cfg.GetFilterSettings(f.Name())); err != nil {
			return nil, errors.Wrapf(err, "invalid %s settings", f.Name())
		}
		chain.Add(f)
	}

	// Registered filters, in name order for a stable chain
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !cfg.IsFilterEnabled(name) {
			continue
		}
		f := registry[name]()
		if err := f.ValidateConfig(cfg.GetFilterSettings(name)); err != nil {
			return nil, errors.Wrapf(err, "invalid %s settings", name)
		}
		chain.Add(f)
	}

	for _, f := range chain.Filters() {
		zlog.Info().Msgf("registered filter: name=%s codes=%v", f.Name(), f.ReturnCodes())
	}
	return chain, nil
}
