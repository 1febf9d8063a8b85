package eventbus

import (
	"slices"
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"speechpanel/internal/domain"
	"speechpanel/internal/ports"
)

// Bus routes backend push events to the handlers subscribed to them.
//
// Events are delivered synchronously on the publishing goroutine, in
// publish order. A handler must not subscribe to a topic that has never
// been subscribed before while it runs.
type Bus struct {
	bus evbus.Bus

	// regMu is held across dispatcher registration so no subscriber returns
	// before its topic is wired into bus.
	regMu      sync.Mutex
	registered map[string]bool

	mu     sync.Mutex
	topics map[string]map[uint64]func(domain.PushEvent)
	nextID uint64
}

func New() *Bus {
	return &Bus{
		bus:        evbus.New(),
		registered: make(map[string]bool),
		topics:     make(map[string]map[uint64]func(domain.PushEvent)),
	}
}

// Subscribe registers handler for topic until the returned subscription is
// released.
func (b *Bus) Subscribe(topic string, handler func(domain.PushEvent)) ports.Subscription {
	b.regMu.Lock()
	defer b.regMu.Unlock()

	if !b.registered[topic] {
		// One dispatcher per topic. evbus unsubscribes by handler identity,
		// so per-subscriber bookkeeping stays in topics.
		if err := b.bus.Subscribe(topic, func(event domain.PushEvent) {
			b.dispatch(topic, event)
		}); err == nil {
			b.registered[topic] = true
		}
	}

	b.mu.Lock()
	handlers, ok := b.topics[topic]
	if !ok {
		handlers = make(map[uint64]func(domain.PushEvent))
		b.topics[topic] = handlers
	}
	b.nextID++
	id := b.nextID
	handlers[id] = handler
	b.mu.Unlock()

	return &subscription{bus: b, topic: topic, id: id}
}

// Publish delivers event to the subscribers of event.Name.
func (b *Bus) Publish(event domain.PushEvent) {
	if event.Name == "" {
		return
	}
	b.bus.Publish(event.Name, event)
}

// Subscribers returns how many handlers are registered for topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

func (b *Bus) dispatch(topic string, event domain.PushEvent) {
	b.mu.Lock()
	ids := make([]uint64, 0, len(b.topics[topic]))
	for id := range b.topics[topic] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]func(domain.PushEvent), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.topics[topic][id])
	}
	b.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func (b *Bus) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topics[topic], id)
}

type subscription struct {
	bus   *Bus
	topic string
	id    uint64
	once  sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s.topic, s.id)
	})
}
