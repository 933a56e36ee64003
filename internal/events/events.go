package events

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is published after a successful mutation, e.g. "reservations.update".
type Event struct {
	Type      string
	Entity    string
	Action    string
	ID        int64
	// VisitID is set for events about a record attached to a visit.
	VisitID   int64
	CreatedAt time.Time
}

// New builds an event for entity/action.
func New(entity, action string, id int64) Event {
	return Event{
		Type:   entity + "." + action,
		Entity: entity,
		Action: action,
		ID:     id,
	}
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// Wildcard subscribes to every event.
const Wildcard = "*"

// EventBus provides in-process pub/sub. A subscription matches an exact type,
// "<entity>.*" or "*".
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type pattern.
func (b *EventBus) Subscribe(pattern string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[pattern] = append(b.subscribers[pattern], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event Event) {
	if event.Type == "" {
		event.Type = event.Entity + "." + event.Action
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	b.mu.RLock()
	var handlers []EventHandler
	for _, pattern := range patterns(event) {
		handlers = append(handlers, b.subscribers[pattern]...)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := b.safeCall(handler, event); err != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("event handler failed")
		}
	}
}

func (b *EventBus) safeCall(handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(event)
}

func patterns(event Event) []string {
	entity := event.Entity
	if entity == "" {
		entity, _, _ = strings.Cut(event.Type, ".")
	}
	return []string{event.Type, entity + ".*", Wildcard}
}
