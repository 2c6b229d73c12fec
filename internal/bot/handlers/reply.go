package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"github.com/edgard/tickerdigest/internal/chat"
)

const maxMessageLength = 4096

// reply sends text to chatID, split into parts Telegram accepts.
func reply(ctx context.Context, b *bot.Bot, chatID int64, text string) error {
	for _, part := range chat.SplitText(text, maxMessageLength) {
		if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: part}); err != nil {
			return fmt.Errorf("%w: %w", chat.ErrSendFailure, err)
		}
	}
	return nil
}
