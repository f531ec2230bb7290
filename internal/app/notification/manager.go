// Package notification provides the notification manager for broadcasting
// player and library events.
package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/quaver/internal/domain/media"
)

// Kind identifies a notification.
type Kind string

const (
	KindSnapshot        Kind = "snapshot"
	KindItemStarted     Kind = "item_started"
	KindQueueChanged    Kind = "queue_changed"
	KindStateChanged    Kind = "state_changed"
	KindQueueEnded      Kind = "queue_ended"
	KindRepeatChanged   Kind = "repeat_changed"
	KindLikeChanged     Kind = "like_changed"
	KindBookmarkChanged Kind = "bookmark_changed"
	KindRadioStarted    Kind = "radio_started"
	KindRadioStopped    Kind = "radio_stopped"
)

// Notification is a single event delivered to subscribers.
type Notification struct {
	SequenceNo uint64
	Kind       Kind
	Time       time.Time
	Item       *media.Item // Current item, if any
	Index      int
	QueueLen   int
	State      string
	RepeatMode string
	TargetID   string     // Track or album ID for like/bookmark changes, session ID for radio
	Timestamp  *time.Time // LikedAt / BookmarkedAt after the change
}

// Subscription is a subscriber's channel. C is closed on Unsubscribe or Close.
type Subscription struct {
	ID string
	C  <-chan Notification

	ch      chan Notification
	dropped uint64
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	bufferSize    int
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager. Each subscriber gets a
// channel buffered to bufferSize.
func NewManager(bufferSize int) *Manager {
	if bufferSize <= 0 {
		bufferSize = 32
	}
	return &Manager{
		subscriptions: make(map[string]*Subscription),
		bufferSize:    bufferSize,
	}
}

// Subscribe adds a new subscription.
func (m *Manager) Subscribe() *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Notification, m.bufferSize)
	sub := &Subscription{
		ID: uuid.New().String(),
		C:  ch,
		ch: ch,
	}
	m.subscriptions[sub.ID] = sub
	zlog.Debug().Msgf("notification: subscribed: id=%s subscribers=%d", sub.ID, len(m.subscriptions))
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return
	}
	delete(m.subscriptions, subscriptionID)
	close(sub.ch)
	zlog.Debug().Msgf("notification: unsubscribed: id=%s dropped=%d", subscriptionID, sub.dropped)
}

// NextSequenceNo returns the next sequence number and increments the counter.
func (m *Manager) NextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Broadcast sends a notification to all subscribers and returns it with its
// sequence number. A subscriber whose buffer is full misses the notification;
// the sender never blocks.
func (m *Manager) Broadcast(n Notification) Notification {
	n.SequenceNo = m.NextSequenceNo()
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subscriptions {
		select {
		case sub.ch <- n:
		default:
			sub.dropped++
			zlog.Warn().Msgf("notification: subscriber too slow, dropped: id=%s kind=%s seq=%d", sub.ID, n.Kind, n.SequenceNo)
		}
	}
	return n
}

// Send sends a notification to a specific subscriber without blocking.
// It reports whether the notification was delivered.
func (m *Manager) Send(subscriptionID string, n Notification) bool {
	n.SequenceNo = m.NextSequenceNo()
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return false
	}
	select {
	case sub.ch <- n:
		return true
	default:
		sub.dropped++
		return false
	}
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions and closes their channels.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sub := range m.subscriptions {
		close(sub.ch)
		delete(m.subscriptions, id)
	}
}
