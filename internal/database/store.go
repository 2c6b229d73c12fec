package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveMessage inserts message unless its text is empty or its
	// (ChatID, MessageID) pair is already stored.
	SaveMessage(ctx context.Context, message *Message) (SaveResult, error)

	// ListMessagesSince returns messages with a timestamp at or after since,
	// oldest first.
	ListMessagesSince(ctx context.Context, since time.Time) ([]WindowMessage, error)

	// CountMessages counts messages with a timestamp at or after since.
	// A zero since counts every stored message.
	CountMessages(ctx context.Context, since time.Time) (int, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    time.Now,
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// SaveMessage inserts a new message record. The uniqueness check and insert
// are a single statement; concurrent duplicates resolve to one row.
func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message) (SaveResult, error) {
	if message == nil {
		return SaveIgnored, errors.New("cannot save nil message")
	}
	if message.Text == "" {
		s.logger.DebugContext(ctx, "Skipping message without text",
			"chat_id", message.ChatID, "message_id", message.MessageID)
		return SaveIgnored, nil
	}
	if message.Timestamp.IsZero() {
		return SaveIgnored, fmt.Errorf("message %d in chat %d has a zero timestamp", message.MessageID, message.ChatID)
	}

	row := messageRow{
		ChatID:      message.ChatID,
		ChatTitle:   message.ChatTitle,
		MessageID:   message.MessageID,
		SenderID:    message.SenderID,
		MessageDate: FormatTimestamp(message.Timestamp),
		Text:        sql.NullString{String: message.Text, Valid: true},
		CreatedAt:   FormatTimestamp(s.now()),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving message",
			"chat_id", message.ChatID, "message_id", message.MessageID, "error", err)
		return SaveIgnored, unavailable("begin transaction", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	query := `
        INSERT INTO messages (chat_id, chat_title, message_id, sender_id, message_date, text, created_at)
        VALUES (:chat_id, :chat_title, :message_id, :sender_id, :message_date, :text, :created_at)
        ON CONFLICT (chat_id, message_id) DO NOTHING;
    `

	result, err := tx.NamedExecContext(ctx, query, row)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message",
			"chat_id", message.ChatID, "message_id", message.MessageID, "error", err)
		return SaveIgnored, unavailable(fmt.Sprintf("save message %d in chat %d", message.MessageID, message.ChatID), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return SaveIgnored, unavailable("read affected rows", err)
	}
	if affected == 1 {
		if id, err := result.LastInsertId(); err == nil {
			message.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction",
			"chat_id", message.ChatID, "message_id", message.MessageID, "error", err)
		return SaveIgnored, unavailable("commit transaction", err)
	}
	tx = nil

	if affected == 0 {
		s.logger.DebugContext(ctx, "Duplicate message ignored",
			"chat_id", message.ChatID, "message_id", message.MessageID)
		return SaveIgnored, nil
	}

	s.logger.DebugContext(ctx, "Message saved successfully",
		"chat_id", message.ChatID, "message_id", message.MessageID, "row_id", message.ID)
	return SaveStored, nil
}

// ListMessagesSince retrieves messages with message_date >= since ordered by
// timestamp. Rows sharing a timestamp keep insertion order.
func (s *sqlxStore) ListMessagesSince(ctx context.Context, since time.Time) ([]WindowMessage, error) {
	var rows []windowRow
	query := `
        SELECT chat_title, message_date, text
        FROM messages
        WHERE message_date >= ?
        ORDER BY message_date ASC, id ASC;
    `

	s.logger.DebugContext(ctx, "Fetching messages since", "since", since)
	if err := s.db.SelectContext(ctx, &rows, query, FormatTimestamp(since)); err != nil {
		s.logger.ErrorContext(ctx, "Error listing messages", "since", since, "error", err)
		return nil, unavailable("list messages", err)
	}

	messages := make([]WindowMessage, 0, len(rows))
	for _, r := range rows {
		ts, err := ParseTimestamp(r.MessageDate)
		if err != nil {
			return nil, fmt.Errorf("parse message_date %q: %w", r.MessageDate, err)
		}
		messages = append(messages, WindowMessage{
			ChatTitle: r.ChatTitle.String,
			Timestamp: ts,
			Text:      r.Text.String,
		})
	}

	s.logger.DebugContext(ctx, "Fetched messages successfully", "since", since, "count", len(messages))
	return messages, nil
}

// CountMessages counts stored messages at or after since.
func (s *sqlxStore) CountMessages(ctx context.Context, since time.Time) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM messages"
	var args []any
	if !since.IsZero() {
		query += " WHERE message_date >= ?"
		args = append(args, FormatTimestamp(since))
	}

	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, unavailable("count messages", err)
	}
	return count, nil
}

// RunSQLMaintenance refreshes planner statistics and runs VACUUM.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (optimize, VACUUM)...")

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
	}

	// VACUUM must run outside a transaction.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return err
	case err != nil && strings.Contains(err.Error(), "database is locked"):
		s.logger.WarnContext(ctx, "VACUUM failed because the database is locked", "error", err)
		return unavailable("vacuum", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error running VACUUM", "error", err)
		return unavailable("vacuum", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed successfully")
	return nil
}
