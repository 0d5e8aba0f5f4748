// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package notify_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/lutefisk/internal/notify"
	"codeberg.org/oliverandrich/lutefisk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

type blockingNotifier struct {
	release chan struct{}
}

func (b *blockingNotifier) Notify(context.Context, string, string, map[string]any) error {
	<-b.release
	return nil
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := notify.LogNotifier{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	err := n.Notify(context.Background(), notify.TemplateActivation, "a@example.com", map[string]any{"Handle": "ab12c"})

	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"template":"activation"`)
	assert.Contains(t, buf.String(), `"recipient":"a@example.com"`)
}

func TestDispatcher_DeliversAll(t *testing.T) {
	rec := &testutil.Recorder{}
	d := notify.NewDispatcher(rec, 10, 2)
	d.Start()

	for range 5 {
		require.NoError(t, d.Notify(context.Background(), notify.TemplateActivation, "a@example.com", nil))
	}
	d.Close()

	assert.Len(t, rec.Sent(), 5)
}

func TestDispatcher_KeepsValuesDropsCancellation(t *testing.T) {
	var seen context.Context
	captured := make(chan struct{})
	d := notify.NewDispatcher(notifierFunc(func(ctx context.Context) {
		seen = ctx
		close(captured)
	}), 1, 1)
	d.Start()
	defer d.Close()

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "de"))
	require.NoError(t, d.Notify(ctx, notify.TemplateActivation, "a@example.com", nil))
	cancel()
	<-captured

	assert.Equal(t, "de", seen.Value(ctxKey{}))
	assert.NoError(t, seen.Err())
}

func TestDispatcher_FailureIsSwallowed(t *testing.T) {
	rec := &testutil.Recorder{Err: testutil.ErrDeliveryFailed}
	d := notify.NewDispatcher(rec, 1, 1)
	d.Start()

	err := d.Notify(context.Background(), notify.TemplatePasswordReset, "a@example.com", nil)
	d.Close()

	require.NoError(t, err)
	assert.Len(t, rec.Sent(), 1)
}

func TestDispatcher_QueueFull(t *testing.T) {
	blocker := &blockingNotifier{release: make(chan struct{})}
	d := notify.NewDispatcher(blocker, 1, 1)

	// not started: the single slot fills up
	require.NoError(t, d.Notify(context.Background(), notify.TemplateActivation, "a@example.com", nil))
	err := d.Notify(context.Background(), notify.TemplateActivation, "b@example.com", nil)

	require.ErrorIs(t, err, notify.ErrQueueFull)
	close(blocker.release)
	d.Close()
}

func TestQuietly_QueueFullLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	blocker := &blockingNotifier{release: make(chan struct{})}
	d := notify.NewDispatcher(blocker, 1, 1)
	require.NoError(t, d.Notify(context.Background(), notify.TemplateActivation, "a@example.com", nil))

	notify.Quietly(context.Background(), d, notify.TemplateActivation, "b@example.com", nil)

	assert.Equal(t, 1, strings.Count(buf.String(), "notification_dropped"))
	assert.NotContains(t, buf.String(), "notification_failed")
	close(blocker.release)
	d.Close()
}

func TestQuietly_LogsDeliveryFailure(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	notify.Quietly(context.Background(), &testutil.Recorder{Err: testutil.ErrDeliveryFailed}, notify.TemplateActivation, "a@example.com", nil)

	assert.Contains(t, buf.String(), "notification_failed")
}

func TestDispatcher_Closed(t *testing.T) {
	d := notify.NewDispatcher(&testutil.Recorder{}, 1, 1)
	d.Start()
	d.Close()

	err := d.Notify(context.Background(), notify.TemplateActivation, "a@example.com", nil)

	assert.ErrorIs(t, err, notify.ErrClosed)
	assert.NotPanics(t, d.Close)
}

func TestDispatcher_CloseWithoutStartDrains(t *testing.T) {
	rec := &testutil.Recorder{}
	d := notify.NewDispatcher(rec, 4, 1)
	require.NoError(t, d.Notify(context.Background(), notify.TemplateActivation, "a@example.com", nil))

	d.Close()

	assert.Len(t, rec.Sent(), 1)
}

type notifierFunc func(ctx context.Context)

func (f notifierFunc) Notify(ctx context.Context, _, _ string, _ map[string]any) error {
	f(ctx)
	return nil
}

func TestQuietly(t *testing.T) {
	rec := &testutil.Recorder{Err: testutil.ErrDeliveryFailed}

	assert.NotPanics(t, func() {
		notify.Quietly(context.Background(), rec, notify.TemplateActivation, "a@example.com", nil)
	})
	assert.Len(t, rec.ByTemplate(notify.TemplateActivation), 1)
}
