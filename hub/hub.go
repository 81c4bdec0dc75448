// Package hub is a small in-process event bus the auth client publishes
// lifecycle events on.
package hub

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Auth events.
const (
	EventSignInWithRedirect        = "signInWithRedirect"
	EventSignInWithRedirectFailure = "signInWithRedirect_failure"
	EventCustomOAuthState          = "customOAuthState"
	EventSignedOut                 = "signedOut"
	EventTokenRefresh              = "tokenRefresh"
	EventTokenRefreshFailure       = "tokenRefresh_failure"
)

// Event is a published notification. Data is event specific, for example the
// decoded custom state for EventCustomOAuthState.
type Event struct {
	Name string
	Data any
}

// Listener receives events synchronously on the publishing goroutine.
type Listener func(Event)

type registration struct {
	id uint64
	fn Listener
}

// Hub fans events out to listeners in registration order. A nil *Hub drops
// events.
type Hub struct {
	mu        sync.RWMutex
	listeners []registration
	nextID    uint64
	logger    zerolog.Logger
}

func New() *Hub {
	return &Hub{
		logger: log.With().Str("component", "hub").Logger(),
	}
}

// Listen registers fn and returns a function that removes it.
func (h *Hub) Listen(fn Listener) (remove func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners = append(h.listeners, registration{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.listeners = slices.DeleteFunc(h.listeners, func(r registration) bool { return r.id == id })
		})
	}
}

// Dispatch delivers e to every listener in the order they registered. A
// panicking listener is logged and does not stop delivery to the others.
func (h *Hub) Dispatch(e Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	listeners := slices.Clone(h.listeners)
	h.mu.RUnlock()

	for _, r := range listeners {
		h.deliver(r.fn, e)
	}
}

func (h *Hub) deliver(fn Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().Interface("panic", r).Str("event", e.Name).Msg("hub listener panicked")
		}
	}()
	fn(e)
}
