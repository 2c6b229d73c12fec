package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/tickerdigest/internal/digest"
)

// NewDigestHandler returns a handler for /digest, which replies with the
// digest of the last 24 hours without posting it to the target chat.
func NewDigestHandler(deps HandlerDeps) bot.HandlerFunc {
	return digestHandler{deps}.Handle
}

type digestHandler struct {
	deps HandlerDeps
}

func (h digestHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "digest")
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /digest command", "chat_id", chatID)

	now := h.deps.now()
	report, err := h.deps.Digest.Build(ctx, now.Add(-digest.Window), now)
	if err != nil {
		log.ErrorContext(ctx, "Failed to build digest", "error", err)
		report = h.deps.Config.Messages.GeneralError
	}

	if err := reply(ctx, b, chatID, report); err != nil {
		log.ErrorContext(ctx, "Failed to send digest reply", "error", err, "chat_id", chatID)
	}
}
