package database

import (
	"database/sql"
	"time"
)

// TimestampLayout is the canonical textual form of message_date. Values are
// always UTC with fixed width, so lexical order equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a value produced by FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// Message is a chat message received from a source chat. It is written once
// and never updated. (ChatID, MessageID) identifies it globally.
type Message struct {
	ID        int64          `db:"id"`
	ChatID    int64          `db:"chat_id"`
	ChatTitle sql.NullString `db:"chat_title"`
	MessageID int64          `db:"message_id"`
	SenderID  sql.NullInt64  `db:"sender_id"`
	Timestamp time.Time      `db:"-"`
	Text      string         `db:"text"`
}

// WindowMessage is the projection of a stored message used by digests.
type WindowMessage struct {
	ChatTitle string
	Timestamp time.Time
	Text      string
}

// SaveResult reports what SaveMessage did with a message.
type SaveResult int

const (
	// SaveIgnored means nothing was written: the text was empty or the
	// (chat, message) pair already existed.
	SaveIgnored SaveResult = iota
	// SaveStored means a new row was committed.
	SaveStored
)

func (r SaveResult) String() string {
	if r == SaveStored {
		return "stored"
	}
	return "ignored"
}

// messageRow mirrors the messages table.
type messageRow struct {
	ID          int64          `db:"id"`
	ChatID      int64          `db:"chat_id"`
	ChatTitle   sql.NullString `db:"chat_title"`
	MessageID   int64          `db:"message_id"`
	SenderID    sql.NullInt64  `db:"sender_id"`
	MessageDate string         `db:"message_date"`
	Text        sql.NullString `db:"text"`
	CreatedAt   string         `db:"created_at"`
}

type windowRow struct {
	ChatTitle   sql.NullString `db:"chat_title"`
	MessageDate string         `db:"message_date"`
	Text        sql.NullString `db:"text"`
}
