// Package chat defines the capabilities the pipeline needs from a chat network:
// a stream of inbound message events and a way to send text to a destination.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrSendFailure is returned, wrapped, when text could not be delivered.
var ErrSendFailure = errors.New("send failure")

// Event is an inbound chat message. ChatTitle is empty and SenderID is zero
// when the network does not provide them.
type Event struct {
	ChatID    int64
	ChatTitle string
	MessageID int64
	SenderID  int64
	Timestamp time.Time
	Text      string
}

// Handler processes one inbound event.
type Handler func(ctx context.Context, event Event)

// Subscriber delivers inbound events to a handler. Subscribe blocks until the
// connection is torn down or ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, handler Handler) error
}

// Sender delivers text to a destination such as a chat id or @channel.
type Sender interface {
	Send(ctx context.Context, destination, text string) error
}

// SplitText breaks text into parts of at most limit runes, preferring line
// boundaries. Lines longer than limit are hard-wrapped.
func SplitText(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}

	var (
		parts   []string
		current strings.Builder
		size    int
	)
	add := func(part string) {
		if part = strings.Trim(part, "\n"); part != "" {
			parts = append(parts, part)
		}
	}
	flush := func() {
		if size > 0 {
			add(current.String())
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		for len(runes) > limit {
			flush()
			add(string(runes[:limit]))
			runes = runes[limit:]
		}
		if size+len(runes) > limit {
			flush()
		}
		current.WriteString(string(runes))
		size += len(runes)
	}
	flush()

	return parts
}
