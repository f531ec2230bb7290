package filter

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/quaver/internal/domain/media"
)

// ArtistDiversityConfig represents the configuration for ArtistDiversityFilter.
type ArtistDiversityConfig struct {
	RecentCount int `yaml:"recent_count" mapstructure:"recent_count" validate:"gte=0"`
}

// ArtistDiversityFilter rejects items whose main artist appears among the
// last queued items.
type ArtistDiversityFilter struct {
	queue       QueueReader
	recentCount int
}

// NewArtistDiversityFilter creates a new artist diversity filter looking at
// the last recentCount queued items.
func NewArtistDiversityFilter(queue QueueReader, recentCount int) *ArtistDiversityFilter {
	return &ArtistDiversityFilter{
		queue:       queue,
		recentCount: recentCount,
	}
}

func (f *ArtistDiversityFilter) Name() string {
	return "artist_diversity_filter"
}

func (f *ArtistDiversityFilter) Description() string {
	return "Rejects radio tracks by an artist among the most recently queued tracks"
}

func (f *ArtistDiversityFilter) ReturnCodes() []string {
	return []string{"recent_artist"}
}

func (f *ArtistDiversityFilter) ValidateConfig(settings map[string]any) error {
	config := ArtistDiversityConfig{RecentCount: f.recentCount}
	if err := mapstructure.Decode(settings, &config); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	f.recentCount = config.RecentCount
	return nil
}

func (f *ArtistDiversityFilter) AppliesTo(source media.Source) bool {
	return source == media.SourceRadio
}

func (f *ArtistDiversityFilter) Check(ctx context.Context, item media.Item) Result {
	if f.recentCount == 0 || len(item.Artists) == 0 {
		return Accept()
	}

	queue := f.queue.GetQueue()
	start := len(queue) - f.recentCount
	if start < 0 {
		start = 0
	}

	for _, recent := range queue[start:] {
		if len(recent.Artists) > 0 && strings.EqualFold(recent.Artists[0], item.Artists[0]) {
			return Reject("recent_artist")
		}
	}
	return Accept()
}
