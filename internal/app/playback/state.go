// Package playback provides playback control with integrated queue management.
package playback

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/quaver/internal/domain/media"
)

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // Nothing playing (queue empty, stopped or ended)
	StatePlaying              // Item is playing
	StatePaused               // Item is loaded and paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// RepeatMode represents the policy applied at queue boundaries.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota // Stop at the tail, clamp at both ends
	RepeatOne                   // Loop the current item, clamp on manual seeks
	RepeatAll                   // Wrap around at both ends
)

// String returns the string representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "unknown"
	}
}

// ParseRepeatMode parses a repeat mode name.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "none":
		return RepeatOff, nil
	case "one", "track":
		return RepeatOne, nil
	case "all", "queue":
		return RepeatAll, nil
	default:
		return RepeatOff, errors.Newf("unknown repeat mode: %q", s)
	}
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	Queue      []media.Item
	Index      int
	Current    *media.Item // nil when the queue is empty
	State      State
	RepeatMode RepeatMode
	Position   time.Duration // Scrub position when scrubbing, engine position otherwise
	Scrubbing  bool
}
