package cleaner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"linkscrub/internal/bus"
	"linkscrub/internal/domain"
	"linkscrub/internal/metrics"
)

// Modes for delivering a cleaned message.
const (
	ModeReply   = "reply"   // reply to the original, leave it in place
	ModeReplace = "replace" // delete the original and post the cleaned copy
)

// Engine consumes inbound messages, rewrites their links, and emits cleaned
// replies. Messages are processed one at a time; the engine holds no mutable
// state between them.
type Engine struct {
	rules  *RuleSet
	bus    domain.MessageBus
	events *bus.EventBus
	logger *slog.Logger
	mode   string

	// echo channels get a reply even when nothing changed (interactive use).
	echo map[string]bool
}

// EngineConfig holds all dependencies for the engine.
type EngineConfig struct {
	Rules        *RuleSet
	Bus          domain.MessageBus
	Events       *bus.EventBus
	Logger       *slog.Logger
	Mode         string   // reply | replace (default: reply)
	EchoChannels []string // channels that always get a response
}

// NewEngine creates a new cleaner engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Mode == "" {
		cfg.Mode = ModeReply
	}
	echo := make(map[string]bool, len(cfg.EchoChannels))
	for _, c := range cfg.EchoChannels {
		echo[c] = true
	}
	return &Engine{
		rules:  cfg.Rules,
		bus:    cfg.Bus,
		events: cfg.Events,
		logger: cfg.Logger,
		mode:   cfg.Mode,
		echo:   echo,
	}
}

// Run consumes inbound messages until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("cleaner engine started", "mode", e.mode)
	e.emit(bus.EventRulesLoaded, map[string]any{
		"rules":   len(e.rules.Rules()),
		"unwraps": len(e.rules.Unwraps()),
	})
	inbound := e.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("cleaner engine stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			e.process(msg)
		}
	}
}

// Process rewrites a single message synchronously and returns the result.
// Exposed for the one-shot CLI path and the HTTP clean endpoint.
func (e *Engine) Process(text string, entities []domain.LinkEntity) Result {
	links := e.extract(text, entities)
	return e.rules.Rewrite(text, links)
}

func (e *Engine) process(msg domain.InboundMessage) {
	start := time.Now()
	metrics.MessagesTotal.Inc()
	e.emit(bus.EventMessageReceived, map[string]any{
		"channel": msg.Channel,
		"chat_id": msg.ChatID,
	})

	if msg.SenderBot || msg.Content == "" {
		return
	}

	links := e.extract(msg.Content, msg.Entities)
	if len(links) > 0 {
		metrics.LinksDetected.Add(int64(len(links)))
		e.emit(bus.EventLinkDetected, map[string]any{
			"channel": msg.Channel,
			"count":   len(links),
		})
	}

	res := e.rules.Rewrite(msg.Content, links)
	metrics.CleanLatency.Observe(time.Since(start).Seconds())

	if !res.Changed {
		if e.echo[msg.Channel] {
			e.bus.SendOutbound(domain.OutboundMessage{
				Channel: msg.Channel,
				ChatID:  msg.ChatID,
				Content: "✨ Nothing to clean.",
				Format:  "text",
			})
		} else {
			e.emit(bus.EventMessageSkipped, map[string]any{"channel": msg.Channel})
		}
		return
	}

	for _, l := range res.Links {
		e.logger.Info("link cleaned",
			"channel", msg.Channel,
			"chat_id", msg.ChatID,
			"original", l.Original,
			"cleaned", l.Cleaned,
		)
		e.emit(bus.EventLinkCleaned, map[string]any{
			"original": l.Original,
			"cleaned":  l.Cleaned,
		})
	}
	metrics.LinksCleaned.Add(int64(len(res.Links)))
	metrics.RewritesTotal.Inc()
	e.emit(bus.EventMessageRewritten, map[string]any{
		"channel": msg.Channel,
		"chat_id": msg.ChatID,
		"links":   len(res.Links),
	})

	// Reposts go out plain: cleaned URLs routinely carry characters that
	// platform markup parsers reject.
	out := domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: e.compose(msg, res),
		Format:  "text",
	}
	switch e.mode {
	case ModeReplace:
		out.ReplaceID = msg.MessageID
	default:
		out.ReplyTo = msg.MessageID
	}
	e.bus.SendOutbound(out)
}

// extract picks the entity path when the platform supplied entities and falls
// back to a plain-text scan otherwise.
func (e *Engine) extract(text string, entities []domain.LinkEntity) []Link {
	if len(entities) > 0 {
		return ExtractLinks(text, entities)
	}
	return FindLinks(text)
}

// compose builds the outgoing message: intro, attribution, cleaned text.
func (e *Engine) compose(msg domain.InboundMessage, res Result) string {
	author := msg.SenderName
	if author == "" {
		author = "anon"
	}
	return fmt.Sprintf("%s\nFrom %s:\n%s", pickIntro(), author, res.Text)
}

func (e *Engine) emit(eventType string, payload map[string]any) {
	if e.events == nil {
		return
	}
	e.events.Emit(bus.Event{Type: eventType, Source: "cleaner", Payload: payload})
}
