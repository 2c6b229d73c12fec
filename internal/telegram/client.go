package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/tickerdigest/internal/chat"
)

// MaxMessageLength is the Bot API limit for one text message, in characters.
const MaxMessageLength = 4096

// Client adapts a go-telegram bot to chat.Subscriber and chat.Sender.
type Client struct {
	bot    *bot.Bot
	logger *slog.Logger

	mu       sync.Mutex
	handler  chat.Handler
	inflight sync.WaitGroup
}

var (
	_ chat.Subscriber = (*Client)(nil)
	_ chat.Sender     = (*Client)(nil)
)

// NewClient creates the bot with opts and routes every update no command
// handler claims to the subscribed chat.Handler.
func NewClient(token string, logger *slog.Logger, opts ...bot.Option) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{logger: logger.With("component", "telegram_client")}

	opts = append(opts, bot.WithDefaultHandler(c.dispatch))
	b, err := NewTelegramBot(token, logger, opts...)
	if err != nil {
		return nil, err
	}
	c.bot = b
	return c, nil
}

// Bot returns the underlying bot, for command registration.
func (c *Client) Bot() *bot.Bot {
	return c.bot
}

// Subscribe long-polls for updates until ctx is done, delivering chat
// messages and channel posts to handler. It returns once handlers already
// dispatched have finished.
func (c *Client) Subscribe(ctx context.Context, handler chat.Handler) error {
	if handler == nil {
		return errors.New("nil handler")
	}

	c.mu.Lock()
	if c.handler != nil {
		c.mu.Unlock()
		return errors.New("telegram client already subscribed")
	}
	c.handler = handler
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Starting Telegram long polling")
	c.bot.Start(ctx)

	c.mu.Lock()
	c.handler = nil
	c.mu.Unlock()
	c.inflight.Wait()

	if ctx.Err() == nil {
		return errors.New("telegram polling stopped unexpectedly")
	}
	c.logger.InfoContext(ctx, "Telegram long polling stopped")
	return nil
}

func (c *Client) dispatch(ctx context.Context, _ *bot.Bot, update *models.Update) {
	event, ok := eventFromUpdate(update)
	if !ok {
		c.logger.DebugContext(ctx, "Ignoring update without message content", "update_id", update.ID)
		return
	}

	c.mu.Lock()
	handler := c.handler
	if handler == nil {
		c.mu.Unlock()
		c.logger.WarnContext(ctx, "Update received without subscriber, dropping", "update_id", update.ID)
		return
	}
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	handler(ctx, event)
}

// Send delivers text to destination, a numeric chat id or an @channel
// username, splitting it into parts that fit one Telegram message.
func (c *Client) Send(ctx context.Context, destination, text string) error {
	chatID, err := parseDestination(destination)
	if err != nil {
		return fmt.Errorf("%w: %w", chat.ErrSendFailure, err)
	}

	parts := chat.SplitText(text, MaxMessageLength)
	for i, part := range parts {
		if _, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: part}); err != nil {
			c.logger.ErrorContext(ctx, "Failed to send message", "destination", destination,
				"part", i+1, "parts", len(parts), "error", err)
			return fmt.Errorf("%w: send part %d/%d to %s: %w", chat.ErrSendFailure, i+1, len(parts), destination, err)
		}
	}
	c.logger.DebugContext(ctx, "Message sent", "destination", destination, "parts", len(parts))
	return nil
}

func parseDestination(destination string) (any, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, errors.New("empty destination")
	}
	if id, err := strconv.ParseInt(destination, 10, 64); err == nil {
		return id, nil
	}
	return destination, nil
}

// eventFromUpdate maps a group message or channel post to a chat event.
// Edits are not events: the first delivery of a message id wins.
func eventFromUpdate(update *models.Update) (chat.Event, bool) {
	if update == nil {
		return chat.Event{}, false
	}
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil {
		return chat.Event{}, false
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	event := chat.Event{
		ChatID:    msg.Chat.ID,
		ChatTitle: chatTitle(msg.Chat),
		MessageID: int64(msg.ID),
		Timestamp: time.Unix(int64(msg.Date), 0).UTC(),
		Text:      text,
	}
	switch {
	case msg.From != nil:
		event.SenderID = msg.From.ID
	case msg.SenderChat != nil:
		event.SenderID = msg.SenderChat.ID
	}
	return event, true
}

func chatTitle(c models.Chat) string {
	switch {
	case c.Title != "":
		return c.Title
	case c.Username != "":
		return c.Username
	default:
		return strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
}
