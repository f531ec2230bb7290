package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_BroadcastToAllSubscribers(t *testing.T) {
	m := NewManager(4)
	a := m.Subscribe()
	b := m.Subscribe()
	assert.Equal(t, 2, m.SubscriberCount())

	sent := m.Broadcast(Notification{Kind: KindQueueChanged, QueueLen: 3})
	assert.Equal(t, uint64(1), sent.SequenceNo)
	assert.False(t, sent.Time.IsZero())

	for _, sub := range []*Subscription{a, b} {
		got := <-sub.C
		assert.Equal(t, KindQueueChanged, got.Kind)
		assert.Equal(t, 3, got.QueueLen)
		assert.Equal(t, uint64(1), got.SequenceNo)
	}
}

func TestManager_SequenceNumbersIncrease(t *testing.T) {
	m := NewManager(8)
	sub := m.Subscribe()

	m.Broadcast(Notification{Kind: KindStateChanged})
	assert.True(t, m.Send(sub.ID, Notification{Kind: KindSnapshot}))
	m.Broadcast(Notification{Kind: KindItemStarted})

	var seqs []uint64
	for range 3 {
		seqs = append(seqs, (<-sub.C).SequenceNo)
	}
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
}

func TestManager_SlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewManager(2)
	slow := m.Subscribe()

	for range 5 {
		m.Broadcast(Notification{Kind: KindQueueChanged})
	}
	assert.Len(t, slow.C, 2)
	assert.False(t, m.Send(slow.ID, Notification{Kind: KindSnapshot}))
}

func TestManager_UnsubscribeClosesChannel(t *testing.T) {
	m := NewManager(1)
	sub := m.Subscribe()

	m.Unsubscribe(sub.ID)
	m.Unsubscribe(sub.ID)
	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Equal(t, 0, m.SubscriberCount())
	assert.False(t, m.Send(sub.ID, Notification{Kind: KindSnapshot}))

	// Broadcasting with no subscribers is fine
	m.Broadcast(Notification{Kind: KindQueueChanged})
}

func TestManager_Close(t *testing.T) {
	m := NewManager(1)
	a := m.Subscribe()
	b := m.Subscribe()
	m.Close()

	for _, sub := range []*Subscription{a, b} {
		_, ok := <-sub.C
		require.False(t, ok)
	}
	assert.Equal(t, 0, m.SubscriberCount())
}
