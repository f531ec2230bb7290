package playback

import (
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/quaver/internal/domain/media"
)

// Engine is the underlying player the controller drives.
// Load leaves the item paused at position zero. onEnded is called once when
// the loaded item plays to its end; it must not be called after a later Load
// or Stop.
type Engine interface {
	Load(item media.Item, onEnded func()) error
	Play() error
	Pause() error
	Seek(pos time.Duration) error
	Stop() error
	Position() time.Duration
}

// ClockConfig holds clock engine configuration.
type ClockConfig struct {
	GapCorrection time.Duration // Delay applied before an item starts from zero
}

// ClockEngine is an Engine that only keeps time.
// It tracks the position of the loaded item against the wall clock and
// reports the end of the item; rendering audio is left to the client.
type ClockEngine struct {
	mu sync.Mutex

	config ClockConfig

	item    *media.Item
	onEnded func()
	playing bool
	seq     uint64 // Timer sequence; a fired timer is stale once it changes

	startTime   time.Time     // Wall-clock time at which position zero was (or will be) reached
	offset      time.Duration // Position while not playing
	timerCancel func()
}

// NewClockEngine creates a new clock engine.
func NewClockEngine(config ClockConfig) *ClockEngine {
	return &ClockEngine{config: config}
}

// Load loads item paused at position zero.
func (e *ClockEngine) Load(item media.Item, onEnded func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelTimerLocked()
	e.item = &item
	e.onEnded = onEnded
	e.playing = false
	e.offset = 0
	e.startTime = time.Time{}
	return nil
}

// Play starts or resumes the loaded item.
func (e *ClockEngine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.item == nil {
		return ErrNoItem
	}
	if e.playing {
		return nil
	}

	now := toWallTime(time.Now())
	remaining := e.item.Duration - e.offset
	if e.offset == 0 && e.config.GapCorrection > 0 {
		// The item hasn't technically started on the client until the gap passes
		now = now.Add(e.config.GapCorrection)
		remaining += e.config.GapCorrection
	}
	e.startTime = now.Add(-e.offset)
	e.playing = true
	e.startTimerLocked(remaining)

	zlog.Debug().Msgf("engine: play: item=%s offset=%v gap=%v", e.item.ID, e.offset, e.config.GapCorrection)
	return nil
}

// Pause pauses the loaded item, keeping its position.
func (e *ClockEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.item == nil {
		return ErrNoItem
	}
	if !e.playing {
		return ErrNotPlaying
	}

	e.offset = e.positionLocked()
	e.playing = false
	e.cancelTimerLocked()
	return nil
}

// Seek moves the position, clamped to the item duration.
func (e *ClockEngine) Seek(pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.item == nil {
		return ErrNoItem
	}
	pos = clampPosition(pos, e.item.Duration)

	e.offset = pos
	if e.playing {
		e.startTime = toWallTime(time.Now()).Add(-pos)
		e.startTimerLocked(e.item.Duration - pos)
	}
	return nil
}

// Stop unloads the item.
func (e *ClockEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelTimerLocked()
	e.item = nil
	e.onEnded = nil
	e.playing = false
	e.offset = 0
	return nil
}

// Position returns the current position of the loaded item.
func (e *ClockEngine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

func (e *ClockEngine) positionLocked() time.Duration {
	if e.item == nil {
		return 0
	}
	if !e.playing {
		return e.offset
	}
	now := toWallTime(time.Now())
	// Still within the gap
	if now.Before(e.startTime) {
		return 0
	}
	return clampPosition(now.Sub(e.startTime), e.item.Duration)
}

func (e *ClockEngine) startTimerLocked(remaining time.Duration) {
	e.cancelTimerLocked()
	seq := e.seq
	e.timerCancel = startWallClockTimer(remaining, func() {
		e.onTimer(seq)
	})
}

func (e *ClockEngine) cancelTimerLocked() {
	e.seq++
	if e.timerCancel != nil {
		e.timerCancel()
		e.timerCancel = nil
	}
}

func (e *ClockEngine) onTimer(seq uint64) {
	e.mu.Lock()
	if seq != e.seq || e.item == nil || !e.playing {
		e.mu.Unlock()
		return
	}
	elapsed := toWallTime(time.Now()).Sub(e.startTime)
	zlog.Debug().Msgf("engine: item ended: item=%s expected_duration=%v actual_elapsed=%v",
		e.item.ID, e.item.Duration, elapsed)

	e.playing = false
	e.offset = e.item.Duration
	e.timerCancel = nil
	cb := e.onEnded
	e.mu.Unlock()

	// Called without the engine lock: the callback drives the controller
	if cb != nil {
		cb()
	}
}

func clampPosition(pos, duration time.Duration) time.Duration {
	if pos < 0 {
		return 0
	}
	if duration > 0 && pos > duration {
		return duration
	}
	return pos
}
