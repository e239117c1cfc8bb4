package notifier

import (
	"sync"

	"github.com/digihealth/clinic-scheduler/internal/metrics"
	"github.com/digihealth/clinic-scheduler/pkg/logging"
)

// subscriptionBuffer bounds how far a subscriber may fall behind before
// events are dropped for it.
const subscriptionBuffer = 16

// Subscription is one subscriber's handle on the hub. Close is idempotent
// and safe to call concurrently with delivery.
type Subscription struct {
	hub    *Hub
	ch     chan Event
	once   sync.Once
	mu     sync.Mutex
	topics map[string]struct{}
}

// C is the event stream. It closes after Close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Add joins an extra topic.
func (s *Subscription) Add(topic string) {
	s.hub.attach(s, topic)
	s.mu.Lock()
	s.topics[topic] = struct{}{}
	s.mu.Unlock()
}

// Remove leaves a topic. Events already buffered are still delivered.
func (s *Subscription) Remove(topic string) {
	s.hub.detach(s, topic)
	s.mu.Lock()
	delete(s.topics, topic)
	s.mu.Unlock()
}

// Close detaches from every topic and closes the event channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		topics := make([]string, 0, len(s.topics))
		for t := range s.topics {
			topics = append(topics, t)
		}
		s.topics = map[string]struct{}{}
		s.mu.Unlock()

		for _, t := range topics {
			s.hub.detach(s, t)
		}
		close(s.ch)
	})
}

// Hub fans appointment events out to in-process subscribers by topic.
// Delivery is non-blocking: a subscriber that cannot keep up loses events
// rather than stalling the publisher.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*Subscription]struct{}
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

func NewHub(m *metrics.BookingMetrics, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		topics:  make(map[string]map[*Subscription]struct{}),
		metrics: m,
		logger:  logger,
	}
}

// Subscribe registers a new subscriber on the given topics.
func (h *Hub) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		hub:    h,
		ch:     make(chan Event, subscriptionBuffer),
		topics: make(map[string]struct{}, len(topics)),
	}
	for _, t := range topics {
		sub.Add(t)
	}
	return sub
}

// Publish delivers an event to every subscriber of its topic.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.topics[ev.Topic] {
		select {
		case sub.ch <- ev:
		default:
			h.metrics.ObserveDrop()
			h.logger.Warn("dropping event for slow subscriber", "topic", ev.Topic, "kind", ev.Kind)
		}
	}
}

func (h *Hub) attach(sub *Subscription, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Subscription]struct{})
	}
	h.topics[topic][sub] = struct{}{}
}

func (h *Hub) detach(sub *Subscription, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}
