package database_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/tickerdigest/internal/database"
)

func newTestStore(t *testing.T) (database.Store, *sqlx.DB) {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	return database.NewStore(db, nil), db
}

func message(chatID, msgID int64, ts time.Time, text string) *database.Message {
	return &database.Message{
		ChatID:    chatID,
		ChatTitle: sql.NullString{String: "Alpha Calls", Valid: true},
		MessageID: msgID,
		SenderID:  sql.NullInt64{Int64: 42, Valid: true},
		Timestamp: ts,
		Text:      text,
	}
}

func TestSaveMessageIsIdempotent(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	res, err := store.SaveMessage(ctx, message(-100, 7, ts, "first $BTC"))
	if err != nil || res != database.SaveStored {
		t.Fatalf("first SaveMessage() = %v, %v; want stored, nil", res, err)
	}

	dup := message(-100, 7, ts.Add(time.Hour), "second $ETH")
	dup.ChatTitle = sql.NullString{}
	res, err = store.SaveMessage(ctx, dup)
	if err != nil || res != database.SaveIgnored {
		t.Fatalf("duplicate SaveMessage() = %v, %v; want ignored, nil", res, err)
	}

	msgs, err := store.ListMessagesSince(ctx, ts.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListMessagesSince() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d rows, want 1", len(msgs))
	}
	if msgs[0].Text != "first $BTC" || msgs[0].ChatTitle != "Alpha Calls" || !msgs[0].Timestamp.Equal(ts) {
		t.Errorf("stored row = %+v, want the first write", msgs[0])
	}
}

func TestSaveMessageSameIDDifferentChat(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, chatID := range []int64{1, 2} {
		res, err := store.SaveMessage(ctx, message(chatID, 1, ts, "hello SOL"))
		if err != nil || res != database.SaveStored {
			t.Fatalf("SaveMessage(chat %d) = %v, %v; want stored", chatID, res, err)
		}
	}
	n, err := store.CountMessages(ctx, time.Time{})
	if err != nil || n != 2 {
		t.Fatalf("CountMessages() = %d, %v; want 2", n, err)
	}
}

func TestSaveMessageEmptyTextIgnored(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	res, err := store.SaveMessage(ctx, message(1, 1, time.Now(), ""))
	if err != nil || res != database.SaveIgnored {
		t.Fatalf("SaveMessage(empty) = %v, %v; want ignored, nil", res, err)
	}
	n, err := store.CountMessages(ctx, time.Time{})
	if err != nil || n != 0 {
		t.Fatalf("CountMessages() = %d, %v; want 0", n, err)
	}
}

func TestSaveMessageNullableFields(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	msg := &database.Message{ChatID: 5, MessageID: 9, Timestamp: ts, Text: "no title"}
	if _, err := store.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("SaveMessage() error = %v", err)
	}
	if msg.ID == 0 {
		t.Error("message ID not populated after insert")
	}
	msgs, err := store.ListMessagesSince(ctx, ts)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("ListMessagesSince() = %v, %v", msgs, err)
	}
	if msgs[0].ChatTitle != "" {
		t.Errorf("ChatTitle = %q, want empty", msgs[0].ChatTitle)
	}
}

func TestListMessagesSinceWindow(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	since := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	rows := []*database.Message{
		message(1, 1, since.Add(2*time.Hour), "later"),
		message(1, 2, since.Add(-time.Nanosecond), "just before"),
		message(1, 3, since, "exactly since"),
		// Non-UTC offsets are normalized before comparison.
		message(1, 4, since.Add(time.Hour).In(time.FixedZone("UTC+3", 3*3600)), "offset zone"),
	}
	for _, m := range rows {
		if _, err := store.SaveMessage(ctx, m); err != nil {
			t.Fatalf("SaveMessage() error = %v", err)
		}
	}

	got, err := store.ListMessagesSince(ctx, since)
	if err != nil {
		t.Fatalf("ListMessagesSince() error = %v", err)
	}
	want := []string{"exactly since", "offset zone", "later"}
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Text != w {
			t.Errorf("row %d = %q, want %q", i, got[i].Text, w)
		}
	}

	n, err := store.CountMessages(ctx, since)
	if err != nil || n != 3 {
		t.Errorf("CountMessages(since) = %d, %v; want 3", n, err)
	}
}

func TestSaveMessageConcurrentDuplicates(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	const workers = 16
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		stored int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.SaveMessage(ctx, message(77, 1, ts, "$PEPE"))
			if err != nil {
				t.Errorf("SaveMessage() error = %v", err)
				return
			}
			if res == database.SaveStored {
				mu.Lock()
				stored++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if stored != 1 {
		t.Errorf("stored = %d, want exactly 1", stored)
	}
	n, err := store.CountMessages(ctx, time.Time{})
	if err != nil || n != 1 {
		t.Errorf("CountMessages() = %d, %v; want 1", n, err)
	}
}

func TestStoreUnavailable(t *testing.T) {
	t.Parallel()
	store, db := newTestStore(t)
	ctx := context.Background()
	database.CloseDB(db)

	_, err := store.SaveMessage(ctx, message(1, 1, time.Now(), "$BTC"))
	if !errors.Is(err, database.ErrStorageUnavailable) {
		t.Errorf("SaveMessage() error = %v, want ErrStorageUnavailable", err)
	}

	msgs, err := store.ListMessagesSince(ctx, time.Time{})
	if !errors.Is(err, database.ErrStorageUnavailable) {
		t.Errorf("ListMessagesSince() error = %v, want ErrStorageUnavailable", err)
	}
	if msgs != nil {
		t.Errorf("ListMessagesSince() returned %v alongside the error", msgs)
	}

	if err := store.Ping(ctx); !errors.Is(err, database.ErrStorageUnavailable) {
		t.Errorf("Ping() error = %v, want ErrStorageUnavailable", err)
	}
}

func TestNewDBUnavailable(t *testing.T) {
	t.Parallel()

	// A regular file used as a directory cannot host the database.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if db, err := database.NewDB(blocker); err != nil {
		t.Fatalf("NewDB(%s) error = %v", blocker, err)
	} else {
		database.CloseDB(db)
	}

	_, err := database.NewDB(filepath.Join(blocker, "nested", "test.db"))
	if !errors.Is(err, database.ErrStorageUnavailable) {
		t.Errorf("NewDB() error = %v, want ErrStorageUnavailable", err)
	}
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.SaveMessage(ctx, message(1, 1, time.Now(), "$BTC")); err != nil {
		t.Fatalf("SaveMessage() error = %v", err)
	}
	if err := store.RunSQLMaintenance(ctx); err != nil {
		t.Errorf("RunSQLMaintenance() error = %v", err)
	}
}

func TestExtractDBNameFromPath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"data/ticker.db":                     "data/ticker.db",
		"file:data/ticker.db?mode=rwc":       "data/ticker.db",
		"file:my%20data/ticker.db":           "my data/ticker.db",
		"/var/lib/tickerdigest/ticker.db?x=": "/var/lib/tickerdigest/ticker.db",
	}
	for in, want := range tests {
		if got := database.ExtractDBNameFromPath(in); got != want {
			t.Errorf("ExtractDBNameFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}
