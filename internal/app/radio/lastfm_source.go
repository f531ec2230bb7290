package radio

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/quaver/internal/domain/media"
	"github.com/osa030/quaver/internal/domain/song"
	"github.com/osa030/quaver/internal/infra/lastfm"
)

// LastFmClient defines the Last.fm operations used by LastFmSource.
type LastFmClient interface {
	GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.SimilarTrack, error)
	GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.Tag, error)
	GetTopTracks(ctx context.Context, tagName string, limit int) ([]lastfm.TopTrack, error)
	GetChartTopTracks(ctx context.Context, limit int) ([]lastfm.TopTrack, error)
}

type LastFmSourceConfig struct {
	APIKey        string  `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	TagCount      int     `yaml:"tag_count" mapstructure:"tag_count" default:"5" validate:"gte=1"`
	TagWeight     float64 `yaml:"tag_weight" mapstructure:"tag_weight" default:"0.4" validate:"gte=0,lte=1.0"`
	SimilarWeight float64 `yaml:"similar_weight" mapstructure:"similar_weight" default:"0.6" validate:"gte=0,lte=1.0"`
}

// LastFmSource finds related tracks through Last.fm with hybrid scoring:
// tracks sharing the seeds' top tags and tracks similar to the seeds are
// weighted and merged, then resolved against the catalog.
type LastFmSource struct {
	lastfm   LastFmClient
	searcher Searcher
	config   *LastFmSourceConfig
	shuffle  func(n int, swap func(i, j int))

	// Catalog lookups keyed by "title\x00artist"; nil marks a miss
	cacheMu     sync.RWMutex
	searchCache map[string]*song.Song
}

// ScoredItem represents a candidate with its hybrid score.
type ScoredItem struct {
	Item  media.Item
	Score float64
}

// NewLastFmSource creates a new LastFmSource.
func NewLastFmSource(searcher Searcher, settings map[string]any) (*LastFmSource, error) {
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}
	var config LastFmSourceConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}

	client, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}
	return newLastFmSource(client, searcher, &config)
}

func newLastFmSource(client LastFmClient, searcher Searcher, config *LastFmSourceConfig) (*LastFmSource, error) {
	if searcher == nil {
		return nil, errors.New("catalog searcher is required")
	}
	if diff := config.TagWeight + config.SimilarWeight - 1.0; diff > 1e-9 || diff < -1e-9 {
		return nil, errors.New("tag weight and similar weight must sum to 1.0")
	}
	return &LastFmSource{
		lastfm:      client,
		searcher:    searcher,
		config:      config,
		shuffle:     rand.Shuffle,
		searchCache: make(map[string]*song.Song),
	}, nil
}

// Next retrieves candidates related to the request seeds. Without seeds the
// global chart is used.
func (p *LastFmSource) Next(ctx context.Context, req Request) (Batch, error) {
	if req.Count <= 0 {
		return Batch{}, nil
	}

	seeds := make([]media.Item, 0, len(req.Seeds))
	for _, s := range req.Seeds {
		if s.Title != "" && len(s.Artists) > 0 {
			seeds = append(seeds, s)
		}
	}
	if len(seeds) == 0 {
		items, err := p.chartCandidates(ctx, req.Count, req.ExcludeIDs)
		if err != nil {
			return Batch{}, err
		}
		return Batch{Items: items}, nil
	}

	tagCandidates := p.tagCandidates(ctx, seeds, req.ExcludeIDs)
	similarCandidates := p.similarCandidates(ctx, seeds, req.ExcludeIDs)

	scored := p.scoreAndMerge(tagCandidates, similarCandidates)
	if len(scored) == 0 {
		return Batch{}, nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	// Pick randomly among the top 2N for variety
	pool := scored[:min(req.Count*2, len(scored))]
	p.shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	items := make([]media.Item, 0, req.Count)
	for i := 0; i < req.Count && i < len(pool); i++ {
		items = append(items, pool[i].Item)
	}
	return Batch{Items: items}, nil
}

// Name returns the source type.
func (p *LastFmSource) Name() string {
	return "lastfm"
}

// similarEntry is a resolved similar track and its Last.fm match score.
type similarEntry struct {
	item  media.Item
	match float64
}

func (p *LastFmSource) tagCandidates(ctx context.Context, seeds []media.Item, exclude map[string]bool) []media.Item {
	tagCounts := make(map[string]int)
	for _, seed := range seeds {
		tags, err := p.lastfm.GetTopTags(ctx, seed.Title, seed.Artists[0], 10)
		if err != nil {
			continue
		}
		for _, tag := range tags {
			tagCounts[strings.ToLower(tag.Name)] += tag.Count
		}
	}
	if len(tagCounts) == 0 {
		return nil
	}

	var (
		candidates []media.Item
		mu         sync.Mutex
		wg         sync.WaitGroup
	)
	for _, tagName := range topTags(tagCounts, p.config.TagCount) {
		wg.Add(1)
		go func(tag string) {
			defer wg.Done()
			tracks, err := p.lastfm.GetTopTracks(ctx, tag, 20)
			if err != nil {
				return
			}
			for _, t := range tracks {
				s := p.resolve(ctx, t.Name, t.Artist)
				if s == nil || exclude[s.ID] {
					continue
				}
				mu.Lock()
				candidates = append(candidates, media.FromSong(*s))
				mu.Unlock()
			}
		}(tagName)
	}
	wg.Wait()

	return excluded(candidates, nil)
}

func (p *LastFmSource) similarCandidates(ctx context.Context, seeds []media.Item, exclude map[string]bool) []similarEntry {
	var (
		candidates []similarEntry
		mu         sync.Mutex
		wg         sync.WaitGroup
	)
	for _, seed := range seeds {
		wg.Add(1)
		go func(s media.Item) {
			defer wg.Done()
			similar, err := p.lastfm.GetSimilarTracks(ctx, s.Title, s.Artists[0], 10)
			if err != nil {
				return
			}
			for _, sim := range similar {
				found := p.resolve(ctx, sim.Name, sim.Artist)
				if found == nil || exclude[found.ID] {
					continue
				}
				mu.Lock()
				candidates = append(candidates, similarEntry{item: media.FromSong(*found), match: sim.Match})
				mu.Unlock()
			}
		}(seed)
	}
	wg.Wait()
	return candidates
}

// scoreAndMerge weights tag and similar candidates. A similar candidate
// scores between half and all of the similar weight depending on its match;
// tracks found by both strategies add up.
func (p *LastFmSource) scoreAndMerge(tagCandidates []media.Item, similarCandidates []similarEntry) []ScoredItem {
	var order []string
	scores := make(map[string]*ScoredItem)

	for _, it := range tagCandidates {
		scores[it.ID] = &ScoredItem{Item: it, Score: p.config.TagWeight}
		order = append(order, it.ID)
	}

	bestMatch := make(map[string]float64)
	for _, sc := range similarCandidates {
		if m, ok := bestMatch[sc.item.ID]; ok && m >= sc.match {
			continue
		}
		bestMatch[sc.item.ID] = sc.match
		if _, ok := scores[sc.item.ID]; !ok {
			scores[sc.item.ID] = &ScoredItem{Item: sc.item}
			order = append(order, sc.item.ID)
		}
	}
	for id, match := range bestMatch {
		scores[id].Score += p.config.SimilarWeight * (0.5 + 0.5*clamp01(match))
	}

	result := make([]ScoredItem, 0, len(order))
	for _, id := range order {
		result = append(result, *scores[id])
	}
	return result
}

// chartCandidates picks from the global chart. Used when the queue has no
// usable seeds yet.
func (p *LastFmSource) chartCandidates(ctx context.Context, count int, exclude map[string]bool) ([]media.Item, error) {
	chart, err := p.lastfm.GetChartTopTracks(ctx, 50)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get chart top tracks")
	}

	p.shuffle(len(chart), func(i, j int) {
		chart[i], chart[j] = chart[j], chart[i]
	})

	var candidates []media.Item
	for _, t := range chart {
		s := p.resolve(ctx, t.Name, t.Artist)
		if s != nil && !exclude[s.ID] {
			candidates = append(candidates, media.FromSong(*s))
		}
		if len(candidates) >= count*2 {
			break
		}
	}
	return excluded(candidates, nil), nil
}

// resolve finds a Last.fm track in the catalog, with caching.
func (p *LastFmSource) resolve(ctx context.Context, title, artist string) *song.Song {
	key := title + "\x00" + artist

	p.cacheMu.RLock()
	cached, ok := p.searchCache[key]
	p.cacheMu.RUnlock()
	if ok {
		return cached
	}

	var found *song.Song
	results, err := p.searcher.Search(ctx, fmt.Sprintf("track:%s artist:%s", title, artist), 1)
	if err == nil && len(results) > 0 {
		found = &results[0]
	}
	if err != nil && ctx.Err() != nil {
		// Do not cache misses caused by cancellation
		return nil
	}

	p.cacheMu.Lock()
	p.searchCache[key] = found
	p.cacheMu.Unlock()
	return found
}

// topTags sorts tags by count and returns the top N names.
func topTags(tagCounts map[string]int, n int) []string {
	names := make([]string, 0, len(tagCounts))
	for name := range tagCounts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if tagCounts[names[i]] != tagCounts[names[j]] {
			return tagCounts[names[i]] > tagCounts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}

func clamp01(v float64) float64 {
	return max(0, min(v, 1))
}
