// Package events lets a host application intercept classified inbound
// messages instead of the default NLU round-trip. The registry is built
// once at startup and handed to the dispatcher; listeners are registered
// before dispatch begins and are never removed.
package events

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Event names the dispatcher consults, one per interceptable message kind.
const (
	TextMessage        = "textMessage"
	WelcomeMessage     = "welcomeMessage"
	PostbackMessage    = "postbackMessage"
	QuickReplyPayload  = "quickReplyPayload"
	GeoLocationMessage = "geoLocationMessage"
)

// Payload carries the intercepted message to listeners.
type Payload struct {
	SenderID string
	Text     string
	Message  json.RawMessage
}

// Listener handles an emitted event.
type Listener func(Payload)

// Registry maps event names to listeners.
type Registry struct {
	logger zerolog.Logger

	mu        sync.RWMutex
	listeners map[string][]Listener
}

// NewRegistry constructs an empty event registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		logger:    logger.With().Str("component", "events").Logger(),
		listeners: make(map[string][]Listener),
	}
}

// Register adds a listener for an event name. Multiple listeners per name
// are allowed; they run in registration order.
func (r *Registry) Register(event string, l Listener) {
	event = strings.TrimSpace(event)
	if event == "" || l == nil {
		return
	}

	r.mu.Lock()
	r.listeners[event] = append(r.listeners[event], l)
	r.mu.Unlock()

	r.logger.Debug().Str("event", event).Msg("Listener registered")
}

// IsHooked reports whether at least one listener is registered for the
// event. Pure lookup, no side effects.
func (r *Registry) IsHooked(event string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[event]) > 0
}

// Emit invokes all listeners for the event synchronously in registration
// order. A panicking listener is logged and does not prevent the rest from
// running; failures never propagate to the dispatcher.
func (r *Registry) Emit(event string, p Payload) {
	r.mu.RLock()
	listeners := append([]Listener(nil), r.listeners[event]...)
	r.mu.RUnlock()

	for i, l := range listeners {
		r.invoke(event, i, l, p)
	}
}

func (r *Registry) invoke(event string, index int, l Listener, p Payload) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("event", event).
				Int("listener", index).
				Interface("panic", rec).
				Msg("Event listener panicked")
		}
	}()
	l(p)
}
