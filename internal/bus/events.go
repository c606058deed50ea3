package bus

import (
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Event is an internal notification, e.g. a link being cleaned or a message
// being skipped. Payload carries event-specific fields.
type Event struct {
	Type      string
	Source    string
	Payload   map[string]any
	Timestamp time.Time
}

// EventHandler is a callback for events.
type EventHandler func(Event)

// Well-known event types emitted by the engine and channels.
const (
	EventMessageReceived  = "message.received"
	EventLinkDetected     = "link.detected"
	EventLinkCleaned      = "link.cleaned"
	EventMessageRewritten = "message.rewritten"
	EventMessageSkipped   = "message.skipped"
	EventRulesLoaded      = "rules.loaded"
)

// subscriber pairs a handler with the ID handed back by On.
type subscriber struct {
	id string
	fn EventHandler
}

// EventBus is a topic-keyed publish/subscribe hub for internal events, with
// wildcard ("*") subscriptions and a bounded history kept for replay. The
// engine emits here; logging and debugging hooks subscribe.
type EventBus struct {
	mu         sync.RWMutex
	subs       map[string][]subscriber
	seq        int
	history    []Event
	maxHistory int
	logger     *slog.Logger
}

// NewEventBus creates an EventBus with the default history buffer.
func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		subs:       make(map[string][]subscriber),
		maxHistory: 1000,
		logger:     logger,
	}
}

// On registers a handler for an event type ("*" matches everything) and
// returns an ID usable with Off.
func (eb *EventBus) On(eventType string, handler EventHandler) string {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.seq++
	id := eventType + "#" + strconv.Itoa(eb.seq)
	eb.subs[eventType] = append(eb.subs[eventType], subscriber{id: id, fn: handler})
	return id
}

// Off removes the handler with the given ID from an event type.
func (eb *EventBus) Off(eventType, handlerID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	subs := eb.subs[eventType]
	for i, s := range subs {
		if s.id == handlerID {
			eb.subs[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Emit records the event in history and invokes matching handlers in
// registration order, wildcard handlers last. A panicking handler is logged
// and does not take down the caller.
func (eb *EventBus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.Lock()
	if len(eb.history) >= eb.maxHistory {
		eb.history = eb.history[1:]
	}
	eb.history = append(eb.history, event)
	targets := append([]subscriber(nil), eb.subs[event.Type]...)
	if event.Type != "*" {
		targets = append(targets, eb.subs["*"]...)
	}
	eb.mu.Unlock()

	for _, s := range targets {
		eb.dispatch(s, event)
	}
}

func (eb *EventBus) dispatch(s subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("event handler panic", "event", event.Type, "handler", s.id, "panic", r)
		}
	}()
	s.fn(event)
}

// EmitAsync emits the event from a new goroutine.
func (eb *EventBus) EmitAsync(event Event) {
	go eb.Emit(event)
}

// Replay returns recorded events of the given type ("*" for all) with a
// timestamp at or after since.
func (eb *EventBus) Replay(eventType string, since time.Time) []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	var out []Event
	for _, e := range eb.history {
		if e.Timestamp.Before(since) {
			continue
		}
		if eventType == "*" || e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// HistoryLen reports how many events the history buffer currently holds.
func (eb *EventBus) HistoryLen() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.history)
}
