package event

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

type decodeFunc func(data []byte) (shared.DomainEvent, error)

// EventSerializer encodes events into outbox payloads and decodes them back
// into their concrete Go type. Only registered event types pass either way.
type EventSerializer struct {
	mu       sync.RWMutex
	decoders map[string]decodeFunc
}

func NewEventSerializer() *EventSerializer {
	return &EventSerializer{decoders: make(map[string]decodeFunc)}
}

// Register makes payloads of eventType decode into a *E. Registering a type
// again replaces its decoder.
func Register[E any, P interface {
	*E
	shared.DomainEvent
}](s *EventSerializer, eventType string) {
	decode := func(data []byte) (shared.DomainEvent, error) {
		event := P(new(E))
		if err := json.Unmarshal(data, event); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return event, nil
	}
	s.mu.Lock()
	s.decoders[eventType] = decode
	s.mu.Unlock()
}

// Serialize encodes event. An unregistered type is refused, since the outbox
// processor could never replay it.
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	if !s.IsRegistered(event.EventType()) {
		return nil, fmt.Errorf("event type %s is not registered", event.EventType())
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event.EventType(), err)
	}
	return data, nil
}

// Deserialize decodes a payload stored under eventType
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	decode, ok := s.decoders[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
	return decode(data)
}

// NewEntry builds the outbox entry for an event. Order events must carry their
// sequence by now.
func (s *EventSerializer) NewEntry(event shared.DomainEvent) (*shared.OutboxEntry, error) {
	if scoped, ok := event.(shared.OrderScopedEvent); ok && scoped.OrderID() != uuid.Nil && scoped.Sequence() <= 0 {
		return nil, fmt.Errorf("event %s of order %s has no sequence", event.EventType(), scoped.OrderID())
	}
	payload, err := s.Serialize(event)
	if err != nil {
		return nil, err
	}
	return shared.NewOutboxEntry(event, payload), nil
}

func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.decoders[eventType]
	return ok
}

// RegisteredTypes returns the registered event types, sorted
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]string, 0, len(s.decoders))
	for t := range s.decoders {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
