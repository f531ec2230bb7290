package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/quaver/internal/domain/media"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the item.
// Filters are only applied if they declare they apply to the given source.
func (c *Chain) Execute(ctx context.Context, item media.Item, source media.Source) Result {
	for _, f := range c.filters {
		// Skip filters that don't apply to this source
		if !f.AppliesTo(source) {
			continue
		}

		result := f.Check(ctx, item)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Apply returns the items accepted by the chain, in order.
// Items repeating an ID earlier in the batch are dropped as well.
func (c *Chain) Apply(ctx context.Context, items []media.Item, source media.Source) []media.Item {
	seen := make(map[string]bool, len(items))
	accepted := make([]media.Item, 0, len(items))

	for _, it := range items {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true

		result := c.Execute(ctx, it, source)
		if !result.Accepted {
			zlog.Debug().Msgf("filter: candidate rejected: id=%s title=%s reason=%s", it.ID, it.Title, result.Code)
			continue
		}
		accepted = append(accepted, it)
	}
	return accepted
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
