package webhook

import (
	"encoding/json"
	"fmt"
	"time"
)

// NotificationKind selects the wire shape of an outgoing notification.
type NotificationKind string

const (
	// KindTask carries a full task snapshot for protocol-level receivers.
	KindTask NotificationKind = "task"
	// KindEvent carries a compact object status event.
	KindEvent NotificationKind = "event"
)

// Notification is the unit handed to the Sender. The body is opaque to
// the retry logic; only the reference pair is extracted for logging.
type Notification struct {
	Kind     NotificationKind
	TaskID   string
	Sequence int64

	// Task is set when Kind is KindTask.
	Task map[string]any
	// Event is set when Kind is KindEvent.
	Event *StatusEvent
}

// StatusEvent is the compact notification shape.
type StatusEvent struct {
	TaskID     string         `json:"task_id"`
	Sequence   int64          `json:"sequence"`
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id"`
	Status     string         `json:"status"`
	Timestamp  time.Time      `json:"timestamp"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// Ref returns the identifier and sequence number used for delivery logging.
func (n *Notification) Ref() (string, int64) {
	return n.TaskID, n.Sequence
}

// Body serializes the active variant.
func (n *Notification) Body() ([]byte, error) {
	switch n.Kind {
	case KindTask:
		body, err := json.Marshal(n.Task)
		if err != nil {
			return nil, fmt.Errorf("webhook.Notification.Body: marshal task: %w", err)
		}
		return body, nil
	case KindEvent:
		body, err := json.Marshal(n.Event)
		if err != nil {
			return nil, fmt.Errorf("webhook.Notification.Body: marshal event: %w", err)
		}
		return body, nil
	default:
		return nil, fmt.Errorf("webhook.Notification.Body: unknown kind %q", n.Kind)
	}
}
