// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package notify delivers templated messages to account holders.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Template identifiers.
const (
	TemplateActivation         = "activation"
	TemplateActivationReminder = "activation_reminder"
	TemplateEmailChangeOld     = "email_change_old"
	TemplateEmailChangeNew     = "email_change_new"
	TemplatePasswordReset      = "password_reset"
)

// ErrClosed is returned when notifying through a closed Dispatcher.
var ErrClosed = errors.New("dispatcher closed")

// ErrQueueFull is returned when the Dispatcher cannot take more messages.
var ErrQueueFull = errors.New("notification queue full")

// Notifier sends the message identified by templateID to recipient.
type Notifier interface {
	Notify(ctx context.Context, templateID, recipient string, data map[string]any) error
}

// LogNotifier logs notifications instead of delivering them.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the notification.
func (n LogNotifier) Notify(ctx context.Context, templateID, recipient string, data map[string]any) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		"template", templateID,
		"recipient", recipient,
		"data", data,
	)
	return nil
}

// Quietly sends through n and logs a failure instead of returning it.
// Account state changes never depend on delivery.
// A full Dispatcher queue has already been logged as notification_dropped.
func Quietly(ctx context.Context, n Notifier, templateID, recipient string, data map[string]any) {
	err := n.Notify(ctx, templateID, recipient, data)
	if err != nil && !errors.Is(err, ErrQueueFull) {
		slog.WarnContext(ctx, "notification_failed",
			"template", templateID,
			"recipient", recipient,
			"error", err,
		)
	}
}

type message struct {
	ctx        context.Context
	templateID string
	recipient  string
	data       map[string]any
}

// Dispatcher hands notifications to worker goroutines so callers never wait
// on delivery.
type Dispatcher struct {
	next    Notifier
	queue   chan message
	workers int
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started bool
}

// NewDispatcher creates a dispatcher in front of next. Call Start before use.
func NewDispatcher(next Notifier, queueSize, workers int) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		next:    next,
		queue:   make(chan message, queueSize),
		workers: workers,
	}
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true
	for range d.workers {
		d.wg.Add(1)
		go d.work()
	}
}

// Notify queues the message. The caller's cancellation is dropped but its
// values (locale, request id) travel with the message.
func (d *Dispatcher) Notify(ctx context.Context, templateID, recipient string, data map[string]any) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	msg := message{
		ctx:        context.WithoutCancel(ctx),
		templateID: templateID,
		recipient:  recipient,
		data:       data,
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		slog.WarnContext(ctx, "notification_dropped",
			"template", templateID,
			"recipient", recipient,
		)
		return ErrQueueFull
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		// drain so nothing queued before Start is silently lost
		for msg := range d.queue {
			d.deliver(msg)
		}
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg message) {
	Quietly(msg.ctx, d.next, msg.templateID, msg.recipient, msg.data)
}
