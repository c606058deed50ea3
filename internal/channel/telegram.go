package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"linkscrub/internal/domain"
	"linkscrub/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

// Telegram implements domain.Channel for Telegram Bot.
type Telegram struct {
	token      string
	allowFrom  []int64 // Allowed chat IDs (empty = allow all)
	groupsOnly bool    // clean only group/supergroup chats
	parseMode  string

	bot    *tgbotapi.BotAPI
	bus    domain.MessageBus
	logger *slog.Logger
}

type TelegramConfig struct {
	Token      string
	AllowFrom  []string // Chat IDs as strings
	GroupsOnly bool
	ParseMode  string
	Logger     *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = "Markdown"
	}
	return &Telegram{
		token:      cfg.Token,
		allowFrom:  allowed,
		groupsOnly: cfg.GroupsOnly,
		parseMode:  cfg.ParseMode,
		logger:     cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and begins polling for updates.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	bus.OnOutbound("telegram", t.deliver)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

// Stop shuts down the Telegram bot.
// Note: StopReceivingUpdates is already called when ctx is cancelled in Start().
// Calling it twice panics, so Stop() is a no-op.
func (t *Telegram) Stop() error {
	// No-op: the bot stops when Start's context is cancelled.
	return nil
}

func (t *Telegram) Send(ctx context.Context, chatID string, content string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}
	t.sendMessage(id, content, 0)
	return nil
}

// deliver handles a cleaned message coming back from the engine. Replace mode
// deletes the original first; when deletion fails (insufficient rights) the
// cleaned copy still goes out as a plain post.
func (t *Telegram) deliver(msg domain.OutboundMessage) {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		t.logger.Error("invalid chat ID for telegram outbound", "chatID", msg.ChatID, "err", err)
		return
	}

	mode := t.parseModeFor(msg.Format)

	if msg.ReplaceID != "" {
		if origID, err := strconv.Atoi(msg.ReplaceID); err == nil {
			del := tgbotapi.NewDeleteMessage(chatID, origID)
			if _, err := t.bot.Request(del); err != nil {
				t.logger.Warn("cannot delete original message, posting alongside",
					"chat_id", chatID, "message_id", origID, "err", err,
				)
			}
		}
		t.sendWithMode(chatID, msg.Content, 0, mode)
		return
	}

	replyTo := 0
	if msg.ReplyTo != "" {
		if id, err := strconv.Atoi(msg.ReplyTo); err == nil {
			replyTo = id
		}
	}
	t.sendWithMode(chatID, msg.Content, replyTo, mode)
}

// parseModeFor maps an outbound format to a Telegram parse mode. "text"
// forces plain delivery; cleaned URLs regularly contain characters that
// trip Markdown entity parsing.
func (t *Telegram) parseModeFor(format string) string {
	switch format {
	case "text":
		return ""
	case "markdown":
		return "Markdown"
	default:
		return t.parseMode
	}
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	chatID := msg.Chat.ID
	if !t.isAllowed(chatID) {
		t.logger.Warn("telegram chat not in allow list", "chat_id", chatID)
		return
	}

	if msg.IsCommand() {
		// Commands get answered everywhere, including private chats.
		t.handleCommand(chatID, msg)
		return
	}

	if t.groupsOnly && !msg.Chat.IsGroup() && !msg.Chat.IsSuperGroup() {
		return
	}

	// Captioned media carries its links in the caption and caption entities.
	text := msg.Text
	entities := msg.Entities
	if text == "" {
		text = msg.Caption
		entities = msg.CaptionEntities
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	t.logger.Debug("telegram message received",
		"chat_id", chatID,
		"message_id", msg.MessageID,
		"text_len", len(text),
	)

	t.bus.Publish(domain.InboundMessage{
		Channel:    "telegram",
		ChatID:     strconv.FormatInt(chatID, 10),
		MessageID:  strconv.Itoa(msg.MessageID),
		SenderID:   strconv.FormatInt(msg.From.ID, 10),
		SenderName: senderName(msg.From),
		SenderBot:  msg.From.IsBot,
		Content:    text,
		Entities:   convertEntities(entities),
		Timestamp:  time.Unix(int64(msg.Date), 0),
	})
}

// senderName prefers the @username and falls back to the first name.
func senderName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return u.FirstName
}

// convertEntities keeps the link-bearing entity types. Offsets and lengths
// stay in UTF-16 code units as Telegram reports them.
func convertEntities(entities []tgbotapi.MessageEntity) []domain.LinkEntity {
	var out []domain.LinkEntity
	for _, e := range entities {
		switch e.Type {
		case "url":
			out = append(out, domain.LinkEntity{
				Type:   domain.EntityURL,
				Offset: e.Offset,
				Length: e.Length,
			})
		case "text_link":
			out = append(out, domain.LinkEntity{
				Type:   domain.EntityTextLink,
				Offset: e.Offset,
				Length: e.Length,
				URL:    e.URL,
			})
		}
	}
	return out
}

func (t *Telegram) handleCommand(chatID int64, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		t.sendMessage(chatID, "👋 Hello! I watch this chat for YouTube and Twitter links and re-post them without tracking parameters.\n\nCommands:\n/ping — Check I'm alive\n/help — Show this message", 0)
	case "help":
		t.sendMessage(chatID, "📖 I clean tracking parameters from shared links.\n\nSupported: YouTube, Twitter/X, plus whatever extra rules my operator configured.\n\nCommands:\n/ping — Check I'm alive\n/version — Version info", 0)
	case "ping":
		t.sendMessage(chatID, "🏓 pong", 0)
	case "version":
		t.sendMessage(chatID, fmt.Sprintf("🧹 linkscrub\nBot: @%s\nChat ID: %d", t.bot.Self.UserName, chatID), 0)
	}
	// Unknown commands stay silent: in a group chat they are usually
	// addressed to some other bot.
}

func (t *Telegram) isAllowed(chatID int64) bool {
	if len(t.allowFrom) == 0 {
		return true // Empty list = allow all
	}
	for _, id := range t.allowFrom {
		if id == chatID {
			return true
		}
	}
	return false
}

func (t *Telegram) sendMessage(chatID int64, text string, replyTo int) {
	t.sendWithMode(chatID, text, replyTo, t.parseMode)
}

func (t *Telegram) sendWithMode(chatID int64, text string, replyTo int, mode string) {
	// Telegram has a 4096 char limit per message
	const maxLen = telegramMaxMsgLen
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			cutAt := strings.LastIndex(chunk[:maxLen], "\n")
			if cutAt < maxLen/2 {
				cutAt = maxLen
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}

		t.sendChunk(chatID, chunk, replyTo, mode)
		replyTo = 0 // only the first chunk replies
	}
}

// sendChunk sends a single message chunk with retry and rate limit handling.
// Strategy: try the parse mode first, on parse error fall back to plain text,
// then retry with backoff.
func (t *Telegram) sendChunk(chatID int64, text string, replyTo int, mode string) {
	const maxRetries = telegramMaxSendRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.DisableWebPagePreview = false
		if replyTo != 0 {
			msg.ReplyToMessageID = replyTo
		}
		if attempt == 0 && mode != "" {
			msg.ParseMode = mode
		}
		// On subsequent attempts: send as plain text (parse mode may be malformed).

		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}

		errStr := err.Error()

		// Handle Telegram rate limiting (HTTP 429).
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1,
			)
			time.Sleep(retryAfter)
			continue
		}

		// Markdown parse error on first attempt: immediately retry as plain text.
		if attempt == 0 && msg.ParseMode != "" &&
			strings.Contains(errStr, "can't parse entities") {
			t.logger.Warn("telegram markdown parse error, retrying as plain text",
				"err", err, "parseMode", mode,
			)
			plainMsg := tgbotapi.NewMessage(chatID, text)
			if replyTo != 0 {
				plainMsg.ReplyToMessageID = replyTo
			}
			if _, err2 := t.bot.Send(plainMsg); err2 == nil {
				return
			}
			// Plain also failed, fall through to backoff loop.
		}

		// Exponential backoff for other transient errors.
		if attempt < maxRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}

		metrics.SendFailures.Inc()
		t.logger.Error("telegram send failed after retries", "err", err, "attempts", maxRetries+1)
	}
}
