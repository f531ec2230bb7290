package radio

import (
	"context"
	"maps"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/quaver/internal/domain/media"
)

// ErrExhausted is returned when every source of a chain is exhausted.
var ErrExhausted = errors.New("all radio sources are exhausted")

// Candidate is a radio candidate with the display name of its source.
type Candidate struct {
	Item        media.Item
	DisplayName string
}

// Continuation holds per-source paging state, keyed by display name.
type Continuation struct {
	Tokens    map[string]string
	Exhausted map[string]bool
}

// NewContinuation returns an empty continuation (first page of every source).
func NewContinuation() Continuation {
	return Continuation{
		Tokens:    make(map[string]string),
		Exhausted: make(map[string]bool),
	}
}

// Clone returns a deep copy.
func (c Continuation) Clone() Continuation {
	return Continuation{
		Tokens:    maps.Clone(c.Tokens),
		Exhausted: maps.Clone(c.Exhausted),
	}
}

// SourceWithMetadata wraps a source with its display name.
type SourceWithMetadata struct {
	Source      Source
	DisplayName string
}

// SourceChain queries every source in order and pools their candidates.
type SourceChain struct {
	sources []SourceWithMetadata
}

// NewSourceChain creates a new source chain.
func NewSourceChain(sources []SourceWithMetadata) *SourceChain {
	return &SourceChain{sources: sources}
}

// Next retrieves candidates from all sources that are not exhausted.
// All sources are tried to maximize the pool left after filtering. The
// returned continuation reflects the paging state after this call; cont is
// not modified.
func (c *SourceChain) Next(ctx context.Context, req Request, cont Continuation) ([]Candidate, Continuation, error) {
	next := cont.Clone()
	if next.Tokens == nil {
		next.Tokens = make(map[string]string)
	}
	if next.Exhausted == nil {
		next.Exhausted = make(map[string]bool)
	}

	var all []Candidate
	exclude := maps.Clone(req.ExcludeIDs)
	if exclude == nil {
		exclude = make(map[string]bool)
	}

	active, succeeded := 0, 0
	for i, sm := range c.sources {
		if next.Exhausted[sm.DisplayName] {
			continue
		}
		active++

		zlog.Debug().Msgf("radio: trying source: index=%d total=%d name=%s source_type=%s",
			i+1, len(c.sources), sm.DisplayName, sm.Source.Name())

		sreq := req
		sreq.Continuation = next.Tokens[sm.DisplayName]
		sreq.ExcludeIDs = exclude

		batch, err := sm.Source.Next(ctx, sreq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, cont, errors.Wrap(ctx.Err(), "radio fetch cancelled")
			}
			zlog.Warn().Msgf("radio: source failed, trying next: source=%s error=%v", sm.DisplayName, err)
			continue
		}

		succeeded++
		next.Tokens[sm.DisplayName] = batch.Continuation
		if batch.Exhausted {
			next.Exhausted[sm.DisplayName] = true
			zlog.Info().Msgf("radio: source exhausted: source=%s", sm.DisplayName)
		}

		added := 0
		for _, it := range batch.Items {
			if exclude[it.ID] {
				continue
			}
			// Avoid duplicates from the next source
			exclude[it.ID] = true
			all = append(all, Candidate{Item: it, DisplayName: sm.DisplayName})
			added++
		}

		if added == 0 {
			zlog.Debug().Msgf("radio: source returned no candidates: source=%s", sm.DisplayName)
			continue
		}
		zlog.Info().Msgf("radio: source returned candidates: source=%s count=%d total_so_far=%d",
			sm.DisplayName, added, len(all))
	}

	if active == 0 {
		return nil, next, ErrExhausted
	}
	if succeeded == 0 {
		return nil, cont, errors.New("all radio sources failed")
	}
	return all, next, nil
}
