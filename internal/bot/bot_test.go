package bot_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edgard/tickerdigest/internal/bot"
	"github.com/edgard/tickerdigest/internal/bot/tasks"
	"github.com/edgard/tickerdigest/internal/chat"
	"github.com/edgard/tickerdigest/internal/database"
	"github.com/edgard/tickerdigest/internal/ingest"
)

type memStore struct {
	mu    sync.Mutex
	texts []string
}

func (m *memStore) SaveMessage(_ context.Context, msg *database.Message) (database.SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, msg.Text)
	return database.SaveStored, nil
}

// blockingSubscriber delivers events, signals ready and waits for ctx.
type blockingSubscriber struct {
	events []chat.Event
	ready  chan struct{}
	err    error
}

func (s *blockingSubscriber) Subscribe(ctx context.Context, handler chat.Handler) error {
	for _, e := range s.events {
		handler(ctx, e)
	}
	close(s.ready)
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return nil
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    bot.Mode
		wantErr bool
	}{
		{in: "", want: bot.ModeSchedule},
		{in: "ingest", want: bot.ModeIngest},
		{in: " Digest ", want: bot.ModeDigest},
		{in: "SCHEDULE", want: bot.ModeSchedule},
		{in: "serve", wantErr: true},
	}
	for _, tt := range tests {
		got, err := bot.ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
	if bot.ModeIngest.NeedsDestination() || !bot.ModeDigest.NeedsDestination() || !bot.ModeSchedule.NeedsDestination() {
		t.Error("NeedsDestination() mismatch")
	}
}

func TestRunDigestMode(t *testing.T) {
	t.Parallel()

	calls := 0
	b := bot.NewBot(discardLogger(), nil, nil, nil, func(context.Context) error {
		calls++
		return nil
	})
	if err := b.Run(context.Background(), bot.ModeDigest); err != nil {
		t.Fatalf("Run(digest) error = %v", err)
	}
	if calls != 1 {
		t.Errorf("digest task ran %d times, want 1", calls)
	}

	sendErr := errors.New("chat not found")
	b = bot.NewBot(discardLogger(), nil, nil, nil, func(context.Context) error { return sendErr })
	if err := b.Run(context.Background(), bot.ModeDigest); !errors.Is(err, sendErr) {
		t.Errorf("Run(digest) error = %v, want %v", err, sendErr)
	}
}

func TestRunIngestMode(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	sub := &blockingSubscriber{
		events: []chat.Event{{ChatID: 1, MessageID: 1, Text: "$BTC"}, {ChatID: 1, MessageID: 2, Text: "$ETH"}},
		ready:  make(chan struct{}),
	}
	b := bot.NewBot(discardLogger(), sub, ingest.New(store, nil, nil, 0), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, bot.ModeIngest) }()

	<-sub.ready
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run(ingest) error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run(ingest) did not stop after cancel")
	}
	if len(store.texts) != 2 {
		t.Errorf("stored %d messages, want 2", len(store.texts))
	}
}

func TestRunScheduleMode(t *testing.T) {
	t.Parallel()

	sub := &blockingSubscriber{ready: make(chan struct{})}
	sched, err := bot.NewScheduler(discardLogger(), bot.JobSpecs(testConfig()), map[string]tasks.ScheduledTaskFunc{
		tasks.TaskDigest:         func(context.Context) error { return nil },
		tasks.TaskSQLMaintenance: func(context.Context) error { return nil },
	}, 0, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	b := bot.NewBot(discardLogger(), sub, ingest.New(&memStore{}, nil, nil, 0), sched, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, bot.ModeSchedule) }()

	<-sub.ready
	deadline := time.Now().Add(5 * time.Second)
	for len(sched.JobNames()) != 2 {
		if time.Now().After(deadline) {
			t.Fatal("scheduler jobs were not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run(schedule) error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run(schedule) did not stop after cancel")
	}
}

func TestRunSubscriberFailure(t *testing.T) {
	t.Parallel()

	disconnect := errors.New("connection reset")
	sub := &blockingSubscriber{ready: make(chan struct{}), err: disconnect}
	b := bot.NewBot(discardLogger(), sub, ingest.New(&memStore{}, nil, nil, 0), nil, nil)

	if err := b.Run(context.Background(), bot.ModeIngest); !errors.Is(err, disconnect) {
		t.Errorf("Run(ingest) error = %v, want %v", err, disconnect)
	}
}

func TestRunRequiresComponents(t *testing.T) {
	t.Parallel()

	b := bot.NewBot(discardLogger(), nil, nil, nil, nil)
	if err := b.Run(context.Background(), bot.ModeDigest); err == nil {
		t.Error("Run(digest) without task error = nil")
	}
	if err := b.Run(context.Background(), bot.ModeSchedule); err == nil {
		t.Error("Run(schedule) without scheduler error = nil")
	}
	if err := b.Run(context.Background(), bot.Mode("serve")); err == nil {
		t.Error("Run(serve) error = nil")
	}
}
