// Package broker fans chat events out to live subscribers.
package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"groupchat-service/internal/models"
)

var (
	// ErrSlowConsumer ends a subscriber whose buffer filled up.
	ErrSlowConsumer = errors.New("subscriber fell behind")
	// ErrChatDeleted ends every subscriber of a deleted chat.
	ErrChatDeleted = errors.New("chat deleted")
	// ErrRemoved ends the subscriptions of a user who left or was removed from a chat.
	ErrRemoved = errors.New("removed from chat")
	// ErrClosed ends subscribers when the hub shuts down.
	ErrClosed = errors.New("broker closed")
)

// Broker is the fan-out surface used by services.
type Broker interface {
	Subscribe(chatID string) *Subscriber
	Unsubscribe(sub *Subscriber)
	Publish(ctx context.Context, event models.ChatEvent) error
}

// Subscriber receives the events of one chat through a bounded buffer.
type Subscriber struct {
	ChatID string

	events chan models.ChatEvent
	done   chan struct{}
	once   sync.Once
	err    error
}

func newSubscriber(chatID string, buffer int) *Subscriber {
	return &Subscriber{
		ChatID: chatID,
		events: make(chan models.ChatEvent, buffer),
		done:   make(chan struct{}),
	}
}

// Events yields delivered events in publish order.
func (s *Subscriber) Events() <-chan models.ChatEvent { return s.events }

// Done is closed when the hub stops delivering to the subscriber.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Err reports why delivery stopped. It is nil until Done is closed.
func (s *Subscriber) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Subscriber) terminate(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Hub maintains the subscribers of every chat topic in this process.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscriber]struct{}
	buffer int
	closed bool
	logger zerolog.Logger
}

// NewHub creates an empty hub whose subscribers buffer up to buffer events.
func NewHub(buffer int, logger zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		rooms:  make(map[string]map[*Subscriber]struct{}),
		buffer: buffer,
		logger: logger.With().Str("component", "broker").Logger(),
	}
}

// Subscribe registers a subscriber for chatID.
func (h *Hub) Subscribe(chatID string) *Subscriber {
	sub := newSubscriber(chatID, h.buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.terminate(ErrClosed)
		return sub
	}
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[*Subscriber]struct{})
	}
	h.rooms[chatID][sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub. It is safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	h.remove(sub)
	h.mu.Unlock()
	sub.terminate(context.Canceled)
}

func (h *Hub) remove(sub *Subscriber) {
	if subs, ok := h.rooms[sub.ChatID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.rooms, sub.ChatID)
		}
	}
}

// Publish delivers event to local subscribers.
func (h *Hub) Publish(_ context.Context, event models.ChatEvent) error {
	h.Deliver(event)
	return nil
}

// Deliver hands event to every subscriber of its chat without blocking.
// A subscriber with a full buffer is terminated with ErrSlowConsumer.
// A chat_deleted event terminates all subscribers of the chat.
func (h *Hub) Deliver(event models.ChatEvent) {
	if event.Type == models.EventChatDeleted {
		h.closeTopic(event.ChatID, ErrChatDeleted)
		return
	}

	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.rooms[event.ChatID]))
	for sub := range h.rooms[event.ChatID] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.events <- event:
		default:
			h.logger.Warn().Str("chat_id", sub.ChatID).Msg("dropping slow subscriber")
			h.mu.Lock()
			h.remove(sub)
			h.mu.Unlock()
			sub.terminate(ErrSlowConsumer)
		}
	}
}

func (h *Hub) closeTopic(chatID string, reason error) {
	h.mu.Lock()
	subs := h.rooms[chatID]
	delete(h.rooms, chatID)
	h.mu.Unlock()

	for sub := range subs {
		sub.terminate(reason)
	}
}

// SubscriberCount returns the number of subscribers of chatID.
func (h *Hub) SubscriberCount(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

// Close terminates every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]map[*Subscriber]struct{})
	h.closed = true
	h.mu.Unlock()

	for _, subs := range rooms {
		for sub := range subs {
			sub.terminate(ErrClosed)
		}
	}
}
