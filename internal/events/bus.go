package events

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType identifies the kind of event.
type EventType string

const (
	EventRouteSuccess    EventType = "route_success"
	EventRouteError      EventType = "route_error"
	EventEscalation      EventType = "escalation"
	EventHealthChange    EventType = "health_change"
	EventDraftAccepted   EventType = "draft_accepted"
	EventDraftRejected   EventType = "draft_rejected"
	EventThresholdAdjust EventType = "threshold_adjust"
	EventBudgetForced    EventType = "budget_forced"
)

// Event is a single pipeline event published on the bus. Only the fields
// relevant to Type are populated; the rest are zero-valued.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Routing/provider fields (populated for route/escalation events).
	ModelID    string  `json:"model_id,omitempty"`
	ProviderID string  `json:"provider_id,omitempty"`
	LatencyMs  float64 `json:"latency_ms,omitempty"`
	CostUSD    float64 `json:"cost_usd,omitempty"`
	ErrorClass string  `json:"error_class,omitempty"`
	ErrorMsg   string  `json:"error_msg,omitempty"`
	Reason     string  `json:"reason,omitempty"`

	// Health fields (populated for health_change events).
	OldState string `json:"old_state,omitempty"`
	NewState string `json:"new_state,omitempty"`

	// Cascade fields (populated for draft/threshold/budget events).
	RequestID string  `json:"request_id,omitempty"`
	Domain    string  `json:"domain,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Threshold  float64 `json:"threshold,omitempty"`
	Adjustment float64 `json:"adjustment,omitempty"`
}

// JSON returns the event as a JSON byte slice.
func (e *Event) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Subscriber receives events on a channel.
type Subscriber struct {
	C    chan Event
	done chan struct{}
}

// Bus is an in-memory pub/sub event bus for routing events.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[*Subscriber]struct{}),
	}
}

// Subscribe creates a new subscriber with a buffered channel.
func (b *Bus) Subscribe(bufSize int) *Subscriber {
	if bufSize <= 0 {
		bufSize = 64
	}
	s := &Subscriber{
		C:    make(chan Event, bufSize),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.subscribers[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes a subscriber and closes its done channel; C is left
// open.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	delete(b.subscribers, s)
	b.mu.Unlock()
	close(s.done)
}

// Publish sends an event to all subscribers (non-blocking).
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subscribers {
		select {
		case s.C <- e:
		default:
			// Drop event if subscriber is slow (back-pressure).
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
