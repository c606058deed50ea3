package channel

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"linkscrub/internal/domain"
	"linkscrub/internal/metrics"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const slackMaxMsgLen = 4000

// Slack implements domain.Channel for Slack using Socket Mode.
type Slack struct {
	botToken string
	appToken string
	client   *slack.Client
	socket   *socketmode.Client
	bus      domain.MessageBus
	logger   *slog.Logger
	botUID   string // the bot's own user ID, to avoid replying to self
}

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	BotToken string
	AppToken string
	Logger   *slog.Logger
}

// NewSlack creates a new Slack channel handler.
func NewSlack(cfg SlackConfig) *Slack {
	return &Slack{
		botToken: cfg.BotToken,
		appToken: cfg.AppToken,
		logger:   cfg.Logger,
	}
}

func (s *Slack) Name() string { return "slack" }

// Start connects to Slack via Socket Mode and begins listening for events.
func (s *Slack) Start(ctx context.Context, bus domain.MessageBus) error {
	s.bus = bus

	api := slack.New(
		s.botToken,
		slack.OptionAppLevelToken(s.appToken),
	)
	s.client = api

	// Get bot user ID.
	authResp, err := api.AuthTest()
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.botUID = authResp.UserID
	s.logger.Info("slack bot connected", "user", authResp.User, "user_id", authResp.UserID)

	socketClient := socketmode.New(api)
	s.socket = socketClient

	// Register outbound handler.
	bus.OnOutbound("slack", s.deliver)

	// Event handling goroutine.
	go func() {
		for evt := range socketClient.Events {
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				socketClient.Ack(*evt.Request)
				s.handleEventsAPI(eventsAPIEvent)

			case socketmode.EventTypeSlashCommand:
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				socketClient.Ack(*evt.Request)
				s.handleSlashCommand(cmd)

			default:
				// Acknowledge unknown events to prevent Socket Mode disconnection.
				if evt.Request != nil {
					socketClient.Ack(*evt.Request)
				}
			}
		}
	}()

	// Run Socket Mode client (blocks until context is done).
	errCh := make(chan error, 1)
	go func() {
		errCh <- socketClient.RunContext(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("slack bot disconnecting")
		return nil
	case err := <-errCh:
		return fmt.Errorf("slack socket mode: %w", err)
	}
}

// Stop is a no-op; the socket client stops when Start's context is cancelled.
func (s *Slack) Stop() error { return nil }

func (s *Slack) Send(ctx context.Context, chatID string, content string) error {
	s.sendMessage(chatID, content, "")
	return nil
}

func (s *Slack) handleEventsAPI(event slackevents.EventsAPIEvent) {
	switch event.Type {
	case slackevents.CallbackEvent:
		innerEvent := event.InnerEvent
		switch ev := innerEvent.Data.(type) {
		case *slackevents.MessageEvent:
			// Ignore bot's own messages and message_changed subtypes.
			if ev.User == s.botUID || ev.User == "" {
				return
			}
			if ev.SubType != "" || ev.BotID != "" {
				return
			}

			text := unwrapSlackLinks(ev.Text)
			if strings.TrimSpace(text) == "" {
				return
			}

			s.logger.Debug("slack message received",
				"user", ev.User,
				"channel", ev.Channel,
				"content_len", len(text),
			)

			s.bus.Publish(domain.InboundMessage{
				Channel:    "slack",
				ChatID:     ev.Channel,
				MessageID:  ev.TimeStamp,
				SenderID:   ev.User,
				SenderName: "<@" + ev.User + ">",
				Content:    text,
				Timestamp:  time.Now(),
			})
		}
	}
}

// Slash commands are answered inline; they never reach the cleaner.
func (s *Slack) handleSlashCommand(cmd slack.SlashCommand) {
	var reply string
	switch cmd.Command {
	case "/ping":
		reply = "🏓 pong"
	case "/help":
		reply = "📖 I watch for YouTube and Twitter links and re-post them without tracking parameters."
	default:
		return
	}
	s.sendMessage(cmd.ChannelID, reply, "")
}

// deliver posts a cleaned message, threading under the original when replying.
// Replace mode deletes the original and degrades to a plain post on failure.
func (s *Slack) deliver(msg domain.OutboundMessage) {
	if msg.Content == "" {
		return
	}
	if msg.ReplaceID != "" {
		if _, _, err := s.client.DeleteMessage(msg.ChatID, msg.ReplaceID); err != nil {
			s.logger.Warn("cannot delete original message, posting alongside",
				"channel", msg.ChatID, "ts", msg.ReplaceID, "err", err,
			)
		}
		s.sendMessage(msg.ChatID, msg.Content, "")
		return
	}
	s.sendMessage(msg.ChatID, msg.Content, msg.ReplyTo)
}

func (s *Slack) sendMessage(channelID, content, threadTS string) {
	// Split long messages.
	chunks := splitMessage(content, slackMaxMsgLen)
	for _, chunk := range chunks {
		opts := []slack.MsgOption{
			slack.MsgOptionText(chunk, false),
			slack.MsgOptionAsUser(true),
		}
		if threadTS != "" {
			opts = append(opts, slack.MsgOptionTS(threadTS))
		}
		_, _, err := s.client.PostMessage(channelID, opts...)
		if err != nil {
			metrics.SendFailures.Inc()
			s.logger.Error("slack send failed", "channel", channelID, "err", err)
		}
	}
}

// slackLinkRE matches Slack's wrapped link syntax: <url> and <url|label>.
var slackLinkRE = regexp.MustCompile(`<(https?://[^>|]+)(?:\|[^>]*)?>`)

// unwrapSlackLinks rewrites Slack's <url> and <url|label> markup to the bare
// URL so the plain-text scanner sees the real target.
func unwrapSlackLinks(text string) string {
	return slackLinkRE.ReplaceAllString(text, "$1")
}
