package event

import (
	"fmt"
	"slices"
	"sync"

	"github.com/editdesk/backend/internal/domain/shared"
)

// NamedHandler is implemented by consumers that carry a stable name. The name
// identifies the consumer in logs and in delivery keys.
type NamedHandler interface {
	Name() string
}

// HandlerName returns the consumer name of h, falling back to its Go type
func HandlerName(h shared.EventHandler) string {
	if n, ok := h.(NamedHandler); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("%T", h)
}

type route struct {
	consumer string
	handler  shared.EventHandler
}

// HandlerRegistry routes event types to consumers. Consumers of one type run
// in the order they were registered; catch-all consumers run after them.
// A consumer name is registered at most once per event type.
type HandlerRegistry struct {
	mu       sync.RWMutex
	routes   map[string][]route
	catchAll []route
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{routes: make(map[string][]route)}
}

// Register routes the given event types to handler and returns the types that
// were newly bound. No event types means the handler consumes every event.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) []string {
	entry := route{consumer: HandlerName(handler), handler: handler}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		if hasConsumer(r.catchAll, entry.consumer) {
			return nil
		}
		r.catchAll = append(r.catchAll, entry)
		return []string{"*"}
	}

	bound := make([]string, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		if hasConsumer(r.routes[eventType], entry.consumer) {
			continue
		}
		r.routes[eventType] = append(r.routes[eventType], entry)
		bound = append(bound, eventType)
	}
	return bound
}

// Handlers returns the consumers of eventType in dispatch order
func (r *HandlerRegistry) Handlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typed := r.routes[eventType]
	out := make([]shared.EventHandler, 0, len(typed)+len(r.catchAll))
	for _, rt := range typed {
		out = append(out, rt.handler)
	}
	for _, rt := range r.catchAll {
		out = append(out, rt.handler)
	}
	return out
}

// Table returns consumer names per event type, sorted by event type. Catch-all
// consumers are listed under "*".
func (r *HandlerRegistry) Table() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table := make(map[string][]string, len(r.routes)+1)
	for eventType, routes := range r.routes {
		table[eventType] = consumers(routes)
	}
	if len(r.catchAll) > 0 {
		table["*"] = consumers(r.catchAll)
	}
	return table
}

// EventTypes lists the event types that have at least one typed consumer
func (r *HandlerRegistry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.routes))
	for eventType := range r.routes {
		types = append(types, eventType)
	}
	slices.Sort(types)
	return types
}

func hasConsumer(routes []route, consumer string) bool {
	return slices.ContainsFunc(routes, func(rt route) bool { return rt.consumer == consumer })
}

func consumers(routes []route) []string {
	names := make([]string, len(routes))
	for i, rt := range routes {
		names[i] = rt.consumer
	}
	return names
}
