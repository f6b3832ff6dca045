/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"sync"
)

// Subscriber receives frames for the topics it is subscribed to. Send must
// not block; it reports false when the frame could not be queued.
type Subscriber interface {
	ID() string
	Send(frame any) bool
}

// Message is the frame every broadcast is wrapped in.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Bus is a topic-keyed listener registry. Topics are room codes.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[string]Subscriber

	// Dropped is called for every subscriber removed because Send failed.
	Dropped func(sub Subscriber)
}

func NewBus() *Bus {
	return &Bus{
		topics: make(map[string]map[string]Subscriber),
	}
}

func (b *Bus) Subscribe(topic string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[string]Subscriber)
		b.topics[topic] = subs
	}
	subs[sub.ID()] = sub
}

func (b *Bus) Unsubscribe(topic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.unsubscribeLocked(topic, id)
}

// UnsubscribeAll removes id from every topic.
func (b *Bus) UnsubscribeAll(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic := range b.topics {
		b.unsubscribeLocked(topic, id)
	}
}

func (b *Bus) unsubscribeLocked(topic, id string) {
	subs, ok := b.topics[topic]
	if !ok {
		return
	}

	delete(subs, id)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}

// Publish delivers event to every current subscriber of topic and returns
// how many accepted it. Subscribers that cannot keep up are dropped.
func (b *Bus) Publish(topic, event string, payload any) int {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.topics[topic]))
	for _, sub := range b.topics[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	msg := Message{Type: event, Data: payload}

	delivered := 0
	for _, sub := range subs {
		if sub.Send(msg) {
			delivered++

			continue
		}

		b.UnsubscribeAll(sub.ID())
		if b.Dropped != nil {
			b.Dropped(sub)
		}
	}

	return delivered
}

// Subscribers counts the current subscribers of topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.topics[topic])
}
