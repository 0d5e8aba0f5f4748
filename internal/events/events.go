// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package events publishes account lifecycle notifications to in-process
// subscribers.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"codeberg.org/oliverandrich/lutefisk/internal/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Kind names an account lifecycle event.
type Kind string

const (
	SignupComplete       Kind = "signup_complete"
	ActivationComplete   Kind = "activation_complete"
	ConfirmationComplete Kind = "confirmation_complete"
)

// Event is delivered to subscribers after the corresponding state change
// has been committed.
type Event struct {
	ID         uuid.UUID
	Kind       Kind
	Identity   models.Identity
	OldEmail   string // set for ConfirmationComplete only
	OccurredAt time.Time
}

// Handler receives published events.
type Handler func(ctx context.Context, ev Event)

// Publisher is what the account services depend on.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus dispatches events to handlers subscribed per kind.
type Bus struct {
	subs   map[Kind][]subscription
	nextID uint64
	mu     sync.RWMutex
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]subscription)}
}

// New builds an event with a fresh ID.
func New(kind Kind, identity models.Identity, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Kind:       kind,
		Identity:   identity,
		OccurredAt: at,
	}
}

// Subscribe registers handler for kind. The returned function removes it.
func (b *Bus) Subscribe(kind Kind, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		b.subs[kind] = lo.Reject(b.subs[kind], func(s subscription, _ int) bool {
			return s.id == id
		})
		if len(b.subs[kind]) == 0 {
			delete(b.subs, kind)
		}
	}
}

// Publish runs every handler subscribed to ev.Kind in subscription order.
// A panicking handler is logged and does not stop the others.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[ev.Kind]...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s.handler, ev)
	}
}

// SubscriberCount returns the number of handlers across all kinds.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return lo.SumBy(lo.Values(b.subs), func(subs []subscription) int {
		return len(subs)
	})
}

func (b *Bus) deliver(ctx context.Context, handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "event_handler_panic",
				"kind", string(ev.Kind),
				"event_id", ev.ID.String(),
				"panic", r,
			)
		}
	}()
	handler(ctx, ev)
}

// LogHandler logs every event it receives.
func LogHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, ev Event) {
		attrs := []any{
			"event_id", ev.ID.String(),
			"identity_id", ev.Identity.ID,
			"handle", ev.Identity.Handle,
		}
		if ev.OldEmail != "" {
			attrs = append(attrs, "old_email", ev.OldEmail, "new_email", ev.Identity.Email)
		}
		logger.InfoContext(ctx, string(ev.Kind), attrs...)
	}
}

// Discard is a Publisher that drops every event.
type Discard struct{}

// Publish does nothing.
func (Discard) Publish(context.Context, Event) {}
