package playback

import "github.com/osa030/quaver/internal/domain/media"

// EventType represents a playback event type.
type EventType int

const (
	EventItemStarted       EventType = iota // Current item started playing
	EventItemEnded                          // Current item finished naturally
	EventQueueChanged                       // Queue contents changed
	EventStateChanged                       // Playback state changed (play/pause/stop)
	EventQueueDepleting                     // Cursor is close to the queue tail
	EventQueueEmpty                         // Queue was cleared
	EventQueueEnded                         // Last item ended with repeat off
	EventScrubChanged                       // Scrub position set or cancelled
	EventSeeked                             // Position changed by a seek
	EventRepeatModeChanged                  // Repeat mode changed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventItemStarted:
		return "item_started"
	case EventItemEnded:
		return "item_ended"
	case EventQueueChanged:
		return "queue_changed"
	case EventStateChanged:
		return "state_changed"
	case EventQueueDepleting:
		return "queue_depleting"
	case EventQueueEmpty:
		return "queue_empty"
	case EventQueueEnded:
		return "queue_ended"
	case EventScrubChanged:
		return "scrub_changed"
	case EventSeeked:
		return "seeked"
	case EventRepeatModeChanged:
		return "repeat_mode_changed"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type     EventType
	Item     *media.Item // Current item (nil when the queue is empty)
	Index    int         // Cursor index
	QueueLen int         // Queue length after the change
	State    State       // Current playback state
}
