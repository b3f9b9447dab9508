package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/f3rmion/xmrsig/party"
)

// ErrUnknownRecipient is returned when a message names an ID that never
// joined the hub.
var ErrUnknownRecipient = errors.New("transport: unknown recipient")

// Filter inspects a message in flight. Returning false drops it. A filter
// may rewrite the message to simulate a malicious or faulty network.
type Filter func(msg *Message) bool

// Hub is an in-memory network connecting endpoints by party ID. It is used
// by tests and by single-process deployments.
type Hub struct {
	mu      sync.RWMutex
	inboxes map[party.ID]chan Message
	filters []Filter
	buffer  int
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBuffer sets the per-endpoint inbox capacity.
func WithBuffer(n int) HubOption {
	return func(h *Hub) { h.buffer = n }
}

// WithFilter installs a filter applied to every message.
func WithFilter(f Filter) HubOption {
	return func(h *Hub) { h.filters = append(h.filters, f) }
}

// NewHub returns an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		inboxes: make(map[party.ID]chan Message),
		buffer:  256,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddFilter installs a filter at runtime.
func (h *Hub) AddFilter(f Filter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filters = append(h.filters, f)
}

// Join registers id and returns its endpoint. Joining twice returns an
// endpoint sharing the same inbox.
func (h *Hub) Join(id party.ID) *Endpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	inbox, ok := h.inboxes[id]
	if !ok {
		inbox = make(chan Message, h.buffer)
		h.inboxes[id] = inbox
	}
	return &Endpoint{hub: h, id: id, inbox: inbox}
}

func (h *Hub) deliver(ctx context.Context, msg Message) error {
	h.mu.RLock()
	inbox, ok := h.inboxes[msg.To]
	filters := h.filters
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRecipient, msg.To)
	}
	for _, f := range filters {
		if !f(&msg) {
			return nil
		}
	}
	select {
	case inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Endpoint is a [Conn] attached to a Hub.
type Endpoint struct {
	hub   *Hub
	id    party.ID
	inbox chan Message
}

// Self implements Conn.
func (e *Endpoint) Self() party.ID { return e.id }

// Send implements Conn.
func (e *Endpoint) Send(ctx context.Context, msg Message) error {
	msg.From = e.id
	return e.hub.deliver(ctx, msg)
}

// Incoming implements Conn.
func (e *Endpoint) Incoming() <-chan Message { return e.inbox }

// DropFrom returns a filter that silently discards everything sent by ids.
func DropFrom(ids ...party.ID) Filter {
	return func(msg *Message) bool {
		for _, id := range ids {
			if msg.From == id {
				return false
			}
		}
		return true
	}
}

// DropRound returns a filter that discards messages of one round sent by id.
func DropRound(id party.ID, round Round) Filter {
	return func(msg *Message) bool {
		return msg.From != id || msg.Round != round
	}
}
