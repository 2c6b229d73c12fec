package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/edgard/tickerdigest/internal/chat"
	"github.com/edgard/tickerdigest/internal/database"
	"github.com/edgard/tickerdigest/internal/ingest"
	"github.com/edgard/tickerdigest/internal/metrics"
)

type fakeStore struct {
	mu    sync.Mutex
	saved []*database.Message
	seen  map[[2]int64]bool
	err   error
	delay time.Duration
}

func (f *fakeStore) SaveMessage(ctx context.Context, m *database.Message) (database.SaveResult, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := ctx.Err(); err != nil {
		return database.SaveIgnored, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return database.SaveIgnored, f.err
	}
	if m.Text == "" {
		return database.SaveIgnored, nil
	}
	if f.seen == nil {
		f.seen = make(map[[2]int64]bool)
	}
	key := [2]int64{m.ChatID, m.MessageID}
	if f.seen[key] {
		return database.SaveIgnored, nil
	}
	f.seen[key] = true
	f.saved = append(f.saved, m)
	return database.SaveStored, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

// fakeSubscriber delivers events then blocks until ctx is cancelled.
type fakeSubscriber struct {
	events []chat.Event
	ready  chan struct{}
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, handler chat.Handler) error {
	for _, e := range f.events {
		handler(ctx, e)
	}
	if f.ready != nil {
		close(f.ready)
	}
	<-ctx.Done()
	return nil
}

func event(chatID, msgID int64, text string) chat.Event {
	return chat.Event{
		ChatID:    chatID,
		ChatTitle: "Degens",
		MessageID: msgID,
		SenderID:  99,
		Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Text:      text,
	}
}

func TestRunStoresEvents(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	ing := ingest.New(store, nil, m, 0)

	sub := &fakeSubscriber{
		events: []chat.Event{event(1, 1, "$BTC"), event(1, 1, "$BTC redelivered"), event(1, 2, "")},
		ready:  make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx, sub) }()

	<-sub.ready
	if got := ing.State(); got != ingest.Running {
		t.Errorf("State() = %v, want running", got)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := ing.State(); got != ingest.Stopped {
		t.Errorf("State() after cancel = %v, want stopped", got)
	}

	if store.count() != 1 {
		t.Fatalf("stored %d messages, want 1", store.count())
	}
	if got := testutil.ToFloat64(m.MessagesIngested.WithLabelValues(metrics.ResultIgnored)); got != 2 {
		t.Errorf("ignored counter = %v, want 2", got)
	}
}

func TestHandleWhenStopped(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	ing := ingest.New(store, nil, nil, 0)
	if err := ing.Handle(context.Background(), event(1, 1, "$BTC")); !errors.Is(err, ingest.ErrStopped) {
		t.Errorf("Handle() error = %v, want ErrStopped", err)
	}
	if store.count() != 0 {
		t.Error("message stored while stopped")
	}
}

func TestHandleStorageErrorDoesNotStopLoop(t *testing.T) {
	t.Parallel()

	store := &fakeStore{err: fmt.Errorf("%w: disk full", database.ErrStorageUnavailable)}
	var handled []error
	ing := ingest.New(store, nil, nil, 0)

	// Drive Handle through a subscriber that records each result.
	sub := subscriberFunc(func(ctx context.Context, _ chat.Handler) error {
		for _, e := range []chat.Event{event(1, 1, "$BTC"), event(1, 2, "$ETH")} {
			handled = append(handled, ing.Handle(ctx, e))
		}
		return nil
	})
	if err := ing.Run(context.Background(), sub); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(handled) != 2 {
		t.Fatalf("handled %d events, want 2", len(handled))
	}
	for i, err := range handled {
		if !errors.Is(err, database.ErrStorageUnavailable) {
			t.Errorf("event %d error = %v, want ErrStorageUnavailable", i, err)
		}
	}
}

func TestRunWaitsForInflightWrites(t *testing.T) {
	t.Parallel()

	store := &fakeStore{delay: 100 * time.Millisecond}
	ing := ingest.New(store, nil, nil, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	sub := subscriberFunc(func(ctx context.Context, handler chat.Handler) error {
		go handler(ctx, event(1, 1, "$SOL"))
		close(started)
		<-ctx.Done()
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx, sub) }()
	<-started
	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if store.count() != 1 {
		t.Errorf("in-flight write was not completed before Run returned")
	}
}

func TestRunPropagatesSubscriberError(t *testing.T) {
	t.Parallel()

	want := errors.New("disconnected")
	ing := ingest.New(&fakeStore{}, nil, nil, 0)
	err := ing.Run(context.Background(), subscriberFunc(func(context.Context, chat.Handler) error { return want }))
	if !errors.Is(err, want) {
		t.Errorf("Run() error = %v, want %v", err, want)
	}
	if ing.State() != ingest.Stopped {
		t.Error("ingestor still running after subscriber returned")
	}
}

func TestToMessage(t *testing.T) {
	t.Parallel()

	e := event(-1001, 55, "gm $WIF")
	m := ingest.ToMessage(e)
	if m.ChatID != -1001 || m.MessageID != 55 || m.Text != "gm $WIF" || !m.Timestamp.Equal(e.Timestamp) {
		t.Errorf("ToMessage() = %+v", m)
	}
	if !m.ChatTitle.Valid || m.ChatTitle.String != "Degens" || !m.SenderID.Valid || m.SenderID.Int64 != 99 {
		t.Errorf("optional fields = %+v / %+v", m.ChatTitle, m.SenderID)
	}

	bare := ingest.ToMessage(chat.Event{ChatID: 1, MessageID: 2, Text: "x"})
	if bare.ChatTitle.Valid || bare.SenderID.Valid {
		t.Errorf("absent fields should be NULL: %+v", bare)
	}
}

type subscriberFunc func(ctx context.Context, handler chat.Handler) error

func (f subscriberFunc) Subscribe(ctx context.Context, handler chat.Handler) error {
	return f(ctx, handler)
}
