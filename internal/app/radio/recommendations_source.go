package radio

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/quaver/internal/domain/media"
)

type RecommendationsSourceConfig struct {
	Limit int `yaml:"limit" mapstructure:"limit" default:"30" validate:"gte=1,lte=100"`
}

// RecommendationsSource asks the catalog for songs related to the most
// recent queue items. It never runs dry.
type RecommendationsSource struct {
	recommender Recommender
	config      *RecommendationsSourceConfig
}

// NewRecommendationsSource creates a new RecommendationsSource.
func NewRecommendationsSource(recommender Recommender, settings map[string]any) (*RecommendationsSource, error) {
	if recommender == nil {
		return nil, errors.New("recommender is required")
	}
	var config RecommendationsSourceConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	return &RecommendationsSource{recommender: recommender, config: &config}, nil
}

// Next retrieves recommendations seeded by the request.
func (p *RecommendationsSource) Next(ctx context.Context, req Request) (Batch, error) {
	seeds := media.IDs(req.Seeds)
	if len(seeds) == 0 && req.Endpoint.VideoID != "" {
		seeds = []string{req.Endpoint.VideoID}
	}
	if len(seeds) == 0 {
		return Batch{}, errors.New("no seed tracks for recommendations")
	}

	// Ask for more than needed; some will be excluded or filtered.
	limit := max(req.Count*2, p.config.Limit)
	songs, err := p.recommender.GetRecommendations(ctx, seeds, min(limit, 100))
	if err != nil {
		return Batch{}, errors.Wrap(err, "failed to get recommendations")
	}

	items := excluded(media.FromSongs(songs), req.ExcludeIDs)
	return Batch{Items: items}, nil
}

// Name returns the source type.
func (p *RecommendationsSource) Name() string {
	return "recommendations"
}

// decodeSettings decodes, defaults and validates source settings.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create settings decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
