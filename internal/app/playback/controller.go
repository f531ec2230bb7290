package playback

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/quaver/internal/domain/media"
)

// Errors
var (
	ErrNoItem     = errors.New("no item loaded")
	ErrQueueEmpty = errors.New("queue is empty")
	ErrNotPlaying = errors.New("not playing")
	ErrNotPaused  = errors.New("not paused")
	ErrOutOfRange = errors.New("index out of range")
)

// Config holds controller configuration.
type Config struct {
	RepeatMode         RepeatMode    // Initial repeat mode
	DepletionItems     int           // Depleting when this many items or fewer remain from the cursor (0 disables)
	DepletionThreshold time.Duration // Depleting when remaining playback time drops below this (0 disables)
	EventBuffer        int           // Event channel capacity
}

const defaultEventBuffer = 64

// Controller manages the playback queue and cursor and drives an Engine.
type Controller struct {
	mu sync.RWMutex

	// Queue and cursor
	queue []media.Item
	index int
	scrub *time.Duration // Transient scrub position (nil when not scrubbing)

	state  State
	repeat RepeatMode
	ended  bool   // Last item ended with repeat off
	gen    uint64 // Load generation; a stale end callback is ignored

	engine Engine

	// Timer
	depletionTimerCancel func()
	depletionTimerSeq    uint64 // Bumped on every arm and cancel; a stale callback is ignored

	// Configuration
	config Config

	// Events
	eventCh chan Event

	// Context
	ctx    context.Context
	cancel context.CancelFunc

	// Depletion tracking
	depletionNotified bool
}

// NewController creates a new playback controller driving engine.
func NewController(config Config, engine Engine) *Controller {
	if config.EventBuffer <= 0 {
		config.EventBuffer = defaultEventBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		queue:   make([]media.Item, 0),
		state:   StateIdle,
		repeat:  config.RepeatMode,
		engine:  engine,
		config:  config,
		eventCh: make(chan Event, config.EventBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Enqueue appends items to the tail of the queue without interrupting playback.
// Enqueueing nothing is a no-op. If the queue had ended, playback continues
// with the first appended item.
func (c *Controller) Enqueue(items ...media.Item) {
	if len(items) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	wasLen := len(c.queue)
	c.queue = append(c.queue, items...)
	c.scrub = nil
	c.depletionNotified = false

	c.sendEventLocked(EventQueueChanged)

	if c.ended && wasLen > 0 {
		c.index = wasLen
		if err := c.startCurrentLocked(); err != nil {
			zlog.Warn().Err(err).Msgf("playback: failed to continue after enqueue: index=%d", c.index)
			return
		}
		c.sendEventLocked(EventItemStarted)
	}

	c.checkDepletionLocked()
}

// PlayNext inserts items right after the current item.
func (c *Controller) PlayNext(items ...media.Item) {
	if len(items) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	at := 0
	if len(c.queue) > 0 {
		at = c.index + 1
	}

	queue := make([]media.Item, 0, len(c.queue)+len(items))
	queue = append(queue, c.queue[:at]...)
	queue = append(queue, items...)
	queue = append(queue, c.queue[at:]...)
	c.queue = queue
	c.scrub = nil
	c.depletionNotified = false

	c.sendEventLocked(EventQueueChanged)
	c.checkDepletionLocked()
}

// ForcePlayAtIndex replaces the queue with items, stored as given, and starts
// playing items[index].
// An index outside [0, len(items)) is a programming error: an assertion
// failure is returned and the controller state is left untouched.
func (c *Controller) ForcePlayAtIndex(items []media.Item, index int) error {
	if index < 0 || index >= len(items) {
		return errors.AssertionFailedf("playback: force play index %d out of range [0, %d)", index, len(items))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	queue := slices.Clone(items)
	if err := c.loadLocked(queue[index]); err != nil {
		return err
	}

	c.queue = queue
	c.index = index
	c.scrub = nil
	c.ended = false
	c.depletionNotified = false
	c.sendEventLocked(EventQueueChanged)

	if err := c.playLoadedLocked(); err != nil {
		return err
	}

	zlog.Debug().Msgf("playback: force play: index=%d queue_len=%d item=%s", index, len(c.queue), c.queue[index].ID)
	c.sendEventLocked(EventItemStarted)
	c.checkDepletionLocked()
	return nil
}

// ForcePlayFromBeginning replaces the queue with items and plays the first one.
// Shuffling is up to the caller (see media.Shuffle).
func (c *Controller) ForcePlayFromBeginning(items []media.Item) error {
	return c.ForcePlayAtIndex(items, 0)
}

// SeamlessPlay makes item the only entry of the queue.
// If item is already the current item it keeps playing undisturbed;
// otherwise it is force played.
func (c *Controller) SeamlessPlay(item media.Item) error {
	c.mu.Lock()
	if len(c.queue) > 0 && c.queue[c.index].ID == item.ID {
		current := c.queue[c.index]
		c.queue = []media.Item{current}
		c.index = 0
		c.scrub = nil
		c.depletionNotified = false
		c.sendEventLocked(EventQueueChanged)
		c.checkDepletionLocked()
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.ForcePlayAtIndex([]media.Item{item}, 0)
}

// ForceSeekToNext moves the cursor to the next item and plays it.
// With RepeatAll the cursor wraps to the head; otherwise the last item
// restarts from zero.
func (c *Controller) ForceSeekToNext() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return ErrQueueEmpty
	}

	next := c.index
	switch {
	case c.index < len(c.queue)-1:
		next = c.index + 1
	case c.repeat == RepeatAll:
		next = 0
	}
	return c.seekToIndexLocked(next)
}

// ForceSeekToPrevious moves the cursor to the previous item and plays it.
// With RepeatAll the cursor wraps to the tail; otherwise the first item
// restarts from zero.
func (c *Controller) ForceSeekToPrevious() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return ErrQueueEmpty
	}

	prev := c.index
	switch {
	case c.index > 0:
		prev = c.index - 1
	case c.repeat == RepeatAll:
		prev = len(c.queue) - 1
	}
	return c.seekToIndexLocked(prev)
}

// SeekToIndex moves the cursor to index within the current queue and plays it.
func (c *Controller) SeekToIndex(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.queue) {
		return errors.Wrapf(ErrOutOfRange, "index %d, queue length %d", index, len(c.queue))
	}
	return c.seekToIndexLocked(index)
}

func (c *Controller) seekToIndexLocked(index int) error {
	c.index = index
	c.scrub = nil
	c.ended = false
	c.depletionNotified = false

	if err := c.startCurrentLocked(); err != nil {
		return err
	}
	c.sendEventLocked(EventItemStarted)
	c.checkDepletionLocked()
	return nil
}

// Play starts playback. A paused item resumes; an idle queue starts the
// item under the cursor from zero.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return ErrQueueEmpty
	}

	switch c.state {
	case StatePlaying:
		return nil
	case StatePaused:
		return c.resumeLocked()
	}

	c.ended = false
	c.scrub = nil
	c.depletionNotified = false
	if err := c.startCurrentLocked(); err != nil {
		return err
	}
	c.sendEventLocked(EventItemStarted)
	c.checkDepletionLocked()
	return nil
}

// Pause pauses the current playback.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return ErrNoItem
	}
	if c.state != StatePlaying {
		return ErrNotPlaying
	}

	if err := c.engine.Pause(); err != nil {
		return errors.Wrap(err, "failed to pause engine")
	}
	c.cancelDepletionTimerLocked()
	c.state = StatePaused
	c.scrub = nil

	c.sendEventLocked(EventStateChanged)
	return nil
}

// Resume resumes paused playback.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.resumeLocked()
}

func (c *Controller) resumeLocked() error {
	if len(c.queue) == 0 {
		return ErrNoItem
	}
	if c.state != StatePaused {
		return ErrNotPaused
	}

	if err := c.engine.Play(); err != nil {
		return errors.Wrap(err, "failed to resume engine")
	}
	c.state = StatePlaying
	c.scrub = nil

	c.checkDepletionLocked()
	c.sendEventLocked(EventStateChanged)
	return nil
}

// Stop stops playback. The queue and cursor are kept.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelDepletionTimerLocked()
	c.gen++
	if err := c.engine.Stop(); err != nil {
		return errors.Wrap(err, "failed to stop engine")
	}
	c.state = StateIdle
	c.scrub = nil

	c.sendEventLocked(EventStateChanged)
	return nil
}

// Seek moves the position of the current item.
func (c *Controller) Seek(pos time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.seekLocked(pos)
}

func (c *Controller) seekLocked(pos time.Duration) error {
	if len(c.queue) == 0 || c.state == StateIdle {
		return ErrNoItem
	}
	if err := c.engine.Seek(pos); err != nil {
		return errors.Wrap(err, "failed to seek engine")
	}
	c.scrub = nil

	c.sendEventLocked(EventSeeked)
	c.checkDepletionLocked()
	return nil
}

// Scrub sets the transient scrub position shown while the user drags the
// seek control. The engine is not touched until CommitScrub.
func (c *Controller) Scrub(pos time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return ErrNoItem
	}
	pos = clampPosition(pos, c.queue[c.index].Duration)
	c.scrub = &pos

	c.sendEventLocked(EventScrubChanged)
	return nil
}

// CommitScrub seeks the engine to the scrub position and clears it.
// Without a scrub position this is a no-op.
func (c *Controller) CommitScrub() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scrub == nil {
		return nil
	}
	return c.seekLocked(*c.scrub)
}

// CancelScrub discards the scrub position.
func (c *Controller) CancelScrub() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scrub == nil {
		return
	}
	c.scrub = nil
	c.sendEventLocked(EventScrubChanged)
}

// RemoveAt removes the item at index. Removing the current item moves
// playback to the item that takes its place.
func (c *Controller) RemoveAt(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.queue) {
		return errors.Wrapf(ErrOutOfRange, "index %d, queue length %d", index, len(c.queue))
	}

	if len(c.queue) == 1 {
		c.clearLocked()
		return nil
	}

	c.queue = append(c.queue[:index:index], c.queue[index+1:]...)
	c.scrub = nil

	switch {
	case index < c.index:
		c.index--
		c.sendEventLocked(EventQueueChanged)
	case index == c.index:
		if c.index >= len(c.queue) {
			c.index = len(c.queue) - 1
		}
		c.sendEventLocked(EventQueueChanged)
		switch c.state {
		case StatePlaying:
			if err := c.startCurrentLocked(); err != nil {
				return err
			}
			c.sendEventLocked(EventItemStarted)
		case StatePaused:
			if err := c.loadLocked(c.queue[c.index]); err != nil {
				return err
			}
		}
	default:
		c.sendEventLocked(EventQueueChanged)
	}

	c.checkDepletionLocked()
	return nil
}

// Move moves the item at from to position to. The cursor follows the
// current item.
func (c *Controller) Move(from, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.queue)
	if from < 0 || from >= n || to < 0 || to >= n {
		return errors.Wrapf(ErrOutOfRange, "move %d -> %d, queue length %d", from, to, n)
	}
	if from == to {
		return nil
	}

	item := c.queue[from]
	queue := make([]media.Item, 0, n)
	queue = append(queue, c.queue[:from]...)
	queue = append(queue, c.queue[from+1:]...)
	queue = append(queue[:to], append([]media.Item{item}, queue[to:]...)...)
	c.queue = queue

	switch {
	case c.index == from:
		c.index = to
	case from < c.index && to >= c.index:
		c.index--
	case from > c.index && to <= c.index:
		c.index++
	}
	c.scrub = nil

	c.sendEventLocked(EventQueueChanged)
	c.checkDepletionLocked()
	return nil
}

// Clear empties the queue and stops playback.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLocked()
}

func (c *Controller) clearLocked() {
	c.cancelDepletionTimerLocked()
	c.gen++
	if err := c.engine.Stop(); err != nil {
		zlog.Warn().Err(err).Msg("playback: failed to stop engine on clear")
	}
	c.queue = make([]media.Item, 0)
	c.index = 0
	c.scrub = nil
	c.ended = false
	c.state = StateIdle
	c.depletionNotified = false

	c.sendEventLocked(EventQueueEmpty)
}

// Restore replaces the queue and cursor without starting playback.
// The item under the cursor is loaded paused at zero.
func (c *Controller) Restore(items []media.Item, index int) error {
	if len(items) == 0 {
		return nil
	}
	if index < 0 || index >= len(items) {
		index = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	queue := slices.Clone(items)
	if err := c.loadLocked(queue[index]); err != nil {
		return err
	}
	c.queue = queue
	c.index = index
	c.scrub = nil
	c.ended = false
	c.state = StatePaused
	c.depletionNotified = false

	c.sendEventLocked(EventQueueChanged)
	return nil
}

// SetRepeatMode sets the repeat mode.
func (c *Controller) SetRepeatMode(mode RepeatMode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.repeat == mode {
		return
	}
	c.repeat = mode
	c.scrub = nil
	c.sendEventLocked(EventRepeatModeChanged)
}

// GetRepeatMode returns the repeat mode.
func (c *Controller) GetRepeatMode() RepeatMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repeat
}

// GetState returns the current playback state.
func (c *Controller) GetState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// GetCurrentItem returns the item under the cursor.
func (c *Controller) GetCurrentItem() (media.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.queue) == 0 {
		return media.Item{}, false
	}
	return c.queue[c.index], true
}

// GetIndex returns the cursor index.
func (c *Controller) GetIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

// GetQueue returns a copy of the queue.
func (c *Controller) GetQueue() []media.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]media.Item, len(c.queue))
	copy(result, c.queue)
	return result
}

// GetQueueSize returns the number of items in the queue.
func (c *Controller) GetQueueSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.queue)
}

// GetScrubPosition returns the scrub position, if any.
func (c *Controller) GetScrubPosition() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.scrub == nil {
		return 0, false
	}
	return *c.scrub, true
}

// GetPosition returns the position shown to the user: the scrub position
// while scrubbing, the engine position otherwise.
func (c *Controller) GetPosition() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.positionLocked()
}

func (c *Controller) positionLocked() time.Duration {
	if c.scrub != nil {
		return *c.scrub
	}
	if len(c.queue) == 0 {
		return 0
	}
	return c.engine.Position()
}

// GetRemainingDuration returns the playback time left in the queue,
// counting the rest of the current item.
func (c *Controller) GetRemainingDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.remainingDurationLocked()
}

func (c *Controller) remainingDurationLocked() time.Duration {
	if len(c.queue) == 0 {
		return 0
	}
	total := c.queue[c.index].Duration - c.engine.Position()
	if total < 0 {
		total = 0
	}
	for _, it := range c.queue[c.index+1:] {
		total += it.Duration
	}
	return total
}

// Contains reports whether an item with id is in the queue.
func (c *Controller) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, it := range c.queue {
		if it.ID == id {
			return true
		}
	}
	return false
}

// Snapshot returns a consistent copy of the controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	queue := make([]media.Item, len(c.queue))
	copy(queue, c.queue)

	s := Snapshot{
		Queue:      queue,
		Index:      c.index,
		State:      c.state,
		RepeatMode: c.repeat,
		Position:   c.positionLocked(),
		Scrubbing:  c.scrub != nil,
	}
	if len(queue) > 0 {
		current := queue[c.index]
		s.Current = &current
	}
	return s
}

// Close closes the controller and releases resources.
func (c *Controller) Close() {
	c.mu.Lock()
	c.cancelDepletionTimerLocked()
	c.gen++
	_ = c.engine.Stop()
	c.state = StateIdle
	c.cancel()
	close(c.eventCh)
	c.mu.Unlock()
}

// loadLocked loads item into the engine under a new generation.
// Must be called with lock held.
func (c *Controller) loadLocked(item media.Item) error {
	gen := c.gen + 1
	if err := c.engine.Load(item, func() { c.onItemEnded(gen) }); err != nil {
		return errors.Wrapf(err, "failed to load item %s", item.ID)
	}
	c.gen = gen
	return nil
}

// playLoadedLocked starts the loaded item.
// Must be called with lock held.
func (c *Controller) playLoadedLocked() error {
	if err := c.engine.Play(); err != nil {
		c.state = StatePaused
		return errors.Wrap(err, "failed to start engine")
	}
	c.state = StatePlaying
	c.ended = false
	return nil
}

// startCurrentLocked loads and plays the item under the cursor from zero.
// Must be called with lock held.
func (c *Controller) startCurrentLocked() error {
	if err := c.loadLocked(c.queue[c.index]); err != nil {
		return err
	}
	return c.playLoadedLocked()
}

// onItemEnded is called by the engine when the loaded item plays to its end.
func (c *Controller) onItemEnded(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || len(c.queue) == 0 || c.ctx.Err() != nil {
		return
	}

	c.sendEventLocked(EventItemEnded)

	next := c.index
	switch {
	case c.repeat == RepeatOne:
	case c.index < len(c.queue)-1:
		next = c.index + 1
	case c.repeat == RepeatAll:
		next = 0
	default:
		c.cancelDepletionTimerLocked()
		c.state = StateIdle
		c.ended = true
		c.scrub = nil
		zlog.Debug().Msgf("playback: queue ended: queue_len=%d", len(c.queue))
		c.sendEventLocked(EventQueueEnded)
		return
	}

	c.index = next
	c.scrub = nil
	c.depletionNotified = false
	if err := c.startCurrentLocked(); err != nil {
		zlog.Error().Err(err).Msgf("playback: failed to start next item: index=%d", next)
		return
	}
	c.sendEventLocked(EventItemStarted)
	c.checkDepletionLocked()
}

// checkDepletionLocked checks if the queue is depleting and sends an event.
// Must be called with lock held.
func (c *Controller) checkDepletionLocked() {
	if c.depletionNotified || len(c.queue) == 0 {
		return
	}

	c.cancelDepletionTimerLocked()

	itemsLeft := len(c.queue) - c.index
	if c.config.DepletionItems > 0 && itemsLeft <= c.config.DepletionItems {
		c.notifyDepletionLocked()
		return
	}

	threshold := c.config.DepletionThreshold
	if threshold <= 0 {
		return
	}

	totalRemaining := c.remainingDurationLocked()
	if totalRemaining < threshold {
		c.notifyDepletionLocked()
		return
	}

	// Schedule a timer to fire when remaining time drops below threshold
	if c.state == StatePlaying {
		delay := totalRemaining - threshold
		c.depletionTimerSeq++
		seq := c.depletionTimerSeq
		c.depletionTimerCancel = startWallClockTimer(delay, func() {
			c.onDepletionTimer(seq)
		})
	}
}

// onDepletionTimer re-checks depletion when the timer armed as seq fires.
func (c *Controller) onDepletionTimer(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.depletionTimerSeq || c.ctx.Err() != nil {
		return
	}
	c.depletionTimerCancel = nil
	c.checkDepletionLocked()
}

func (c *Controller) notifyDepletionLocked() {
	c.depletionNotified = true
	zlog.Debug().Msgf("playback: queue depleting: index=%d queue_len=%d", c.index, len(c.queue))
	c.sendEventLocked(EventQueueDepleting)
}

func (c *Controller) cancelDepletionTimerLocked() {
	c.depletionTimerSeq++
	if c.depletionTimerCancel != nil {
		c.depletionTimerCancel()
		c.depletionTimerCancel = nil
	}
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(t EventType) {
	e := Event{
		Type:     t,
		Index:    c.index,
		QueueLen: len(c.queue),
		State:    c.state,
	}
	if len(c.queue) > 0 {
		current := c.queue[c.index]
		e.Item = &current
	}

	// Closed, don't send
	if c.ctx.Err() != nil {
		return
	}

	select {
	case c.eventCh <- e:
	default:
		zlog.Warn().Msgf("playback: event channel full, dropping event: type=%s", t)
	}
}
