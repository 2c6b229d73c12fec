package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/tickerdigest/internal/digest"
)

// NewStatsHandler returns a handler for /stats.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.Handle
}

type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "stats")
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	text := h.deps.Config.Messages.GeneralError
	total, err := h.deps.Store.CountMessages(ctx, time.Time{})
	if err == nil {
		var recent int
		recent, err = h.deps.Store.CountMessages(ctx, h.deps.now().Add(-digest.Window))
		if err == nil {
			text = fmt.Sprintf(h.deps.Config.Messages.Stats, total, recent)
		}
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to count messages", "error", err)
	}

	if err := reply(ctx, b, chatID, text); err != nil {
		log.ErrorContext(ctx, "Failed to send stats reply", "error", err, "chat_id", chatID)
	}
}
