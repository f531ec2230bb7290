package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/quaver/internal/domain/media"
)

// ExplicitConfig represents the configuration for ExplicitFilter.
type ExplicitConfig struct {
	// ApplyToUser also rejects explicit items the user adds by hand.
	ApplyToUser bool `yaml:"apply_to_user" mapstructure:"apply_to_user"`
}

// ExplicitFilter rejects items flagged as explicit content.
type ExplicitFilter struct {
	config ExplicitConfig
}

// NewExplicitFilter creates a new explicit content filter.
func NewExplicitFilter() *ExplicitFilter {
	return &ExplicitFilter{}
}

func (f *ExplicitFilter) Name() string {
	return "explicit_filter"
}

func (f *ExplicitFilter) Description() string {
	return "Rejects tracks flagged as explicit"
}

func (f *ExplicitFilter) ReturnCodes() []string {
	return []string{"explicit_content"}
}

func (f *ExplicitFilter) ValidateConfig(settings map[string]any) error {
	var config ExplicitConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	f.config = config
	return nil
}

func (f *ExplicitFilter) AppliesTo(source media.Source) bool {
	if source == media.SourceUser {
		return f.config.ApplyToUser
	}
	return source == media.SourceRadio
}

func (f *ExplicitFilter) Check(ctx context.Context, item media.Item) Result {
	if item.Explicit {
		return Reject("explicit_content")
	}
	return Accept()
}

func init() {
	Register("explicit_filter", func() Filter {
		return NewExplicitFilter()
	})
}
