package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/quaver/internal/domain/media"
)

// DuplicateTrackFilter checks for duplicate tracks in the queue.
// Detects:
// - Exact track ID matches
// - Remasters (normalized track title + same artist)
// Excludes:
// - Cover songs (same track title but different artist)
type DuplicateTrackFilter struct {
	queue QueueReader
}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter(queue QueueReader) *DuplicateTrackFilter {
	return &DuplicateTrackFilter{
		queue: queue,
	}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects tracks already in the queue, remasters included. Covers by other artists are allowed"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// AppliesTo returns which sources this filter applies to.
func (f *DuplicateTrackFilter) AppliesTo(source media.Source) bool {
	// Users may queue the same track twice on purpose
	return source == media.SourceRadio
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the item is a duplicate of a queued one.
func (f *DuplicateTrackFilter) Check(ctx context.Context, item media.Item) Result {
	for _, queued := range f.queue.GetQueue() {
		// 1. Exact track ID match
		if queued.ID == item.ID {
			return Reject("duplicate_track")
		}

		// 2. Remaster detection: normalized title + same artist
		if isRemaster(queued, item) {
			return Reject("duplicate_track")
		}
	}

	return Accept()
}

// isRemaster checks if two items are the same song (remaster/different version).
func isRemaster(a, b media.Item) bool {
	// If normalized titles don't match, they're different songs
	if normalizeTrackName(a.Title) != normalizeTrackName(b.Title) {
		return false
	}

	// Same normalized title with different artists is a cover (allowed)
	return isSameArtist(a, b)
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}

	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),                     // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),                        // "(Radio Edit)"
		regexp.MustCompile(`\s*\((official\s+)?(music\s+)?video\)`), // "(Official Video)"
		regexp.MustCompile(`\s*\(official\s+audio\)`),               // "(Official Audio)"
		regexp.MustCompile(`\s*-?\s*live`),                          // "- Live"
		regexp.MustCompile(`\s*\(live\)`),                           // "(Live)"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),                  // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`),              // "- Single Version"
	}

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// normalizeTrackName removes remaster information and version details.
func normalizeTrackName(name string) string {
	normalized := strings.ToLower(name)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = whitespacePattern.ReplaceAllString(normalized, " ")

	// Remove trailing dashes
	return strings.TrimRight(normalized, " -")
}

// isSameArtist checks if two items have the same main artist.
func isSameArtist(a, b media.Item) bool {
	if len(a.Artists) == 0 || len(b.Artists) == 0 {
		return false
	}

	// Compare first (main) artist, case-insensitive
	return strings.EqualFold(a.Artists[0], b.Artists[0])
}
