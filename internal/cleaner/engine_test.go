package cleaner

import (
	"context"
	"strings"
	"testing"
	"time"

	"linkscrub/internal/bus"
	"linkscrub/internal/domain"
)

// startEngine wires an engine to a fresh bus and returns the bus plus a
// channel receiving everything sent to the given outbound channel name.
func startEngine(t *testing.T, cfg EngineConfig, channelName string) (*bus.MemoryBus, <-chan domain.OutboundMessage) {
	t.Helper()

	b := bus.New(10, testLogger())
	out := make(chan domain.OutboundMessage, 4)
	b.OnOutbound(channelName, func(msg domain.OutboundMessage) { out <- msg })

	cfg.Bus = b
	if cfg.Rules == nil {
		cfg.Rules = Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = testLogger()
	}
	engine := NewEngine(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(b.Close)
	go engine.Run(ctx)

	return b, out
}

func waitOutbound(t *testing.T, out <-chan domain.OutboundMessage) domain.OutboundMessage {
	t.Helper()
	select {
	case msg := <-out:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no outbound message")
		return domain.OutboundMessage{}
	}
}

func TestEngine_RewritesDirtyMessage(t *testing.T) {
	b, out := startEngine(t, EngineConfig{}, "telegram")

	b.Publish(domain.InboundMessage{
		Channel:    "telegram",
		ChatID:     "42",
		MessageID:  "7",
		SenderName: "@alice",
		Content:    "watch https://youtu.be/abc?si=xyz",
	})

	msg := waitOutbound(t, out)
	if msg.ChatID != "42" {
		t.Errorf("expected chat 42, got %s", msg.ChatID)
	}
	if msg.ReplyTo != "7" {
		t.Errorf("reply mode should reply to the original, got %q", msg.ReplyTo)
	}
	if msg.ReplaceID != "" {
		t.Errorf("reply mode must not delete, got ReplaceID=%q", msg.ReplaceID)
	}
	if !strings.Contains(msg.Content, "From @alice:") {
		t.Errorf("attribution missing: %q", msg.Content)
	}
	if !strings.Contains(msg.Content, "watch https://youtu.be/abc") {
		t.Errorf("cleaned text missing: %q", msg.Content)
	}
	if strings.Contains(msg.Content, "si=xyz") {
		t.Errorf("tracking param survived: %q", msg.Content)
	}
	if msg.Format != "text" {
		t.Errorf("reposts must go out plain, got format %q", msg.Format)
	}
}

func TestEngine_CleanMessageIgnored(t *testing.T) {
	b, out := startEngine(t, EngineConfig{}, "telegram")

	b.Publish(domain.InboundMessage{
		Channel: "telegram",
		ChatID:  "42",
		Content: "already clean https://youtu.be/abc and plain text",
	})

	select {
	case msg := <-out:
		t.Fatalf("clean message must not be re-posted, got %q", msg.Content)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestEngine_BotMessagesIgnored(t *testing.T) {
	b, out := startEngine(t, EngineConfig{}, "telegram")

	b.Publish(domain.InboundMessage{
		Channel:   "telegram",
		ChatID:    "42",
		SenderBot: true,
		Content:   "https://youtu.be/abc?si=xyz",
	})

	select {
	case <-out:
		t.Fatal("bot messages must be ignored")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestEngine_ReplaceMode(t *testing.T) {
	b, out := startEngine(t, EngineConfig{Mode: ModeReplace}, "telegram")

	b.Publish(domain.InboundMessage{
		Channel:   "telegram",
		ChatID:    "42",
		MessageID: "9",
		Content:   "https://x.com/u/status/1?s=20",
	})

	msg := waitOutbound(t, out)
	if msg.ReplaceID != "9" {
		t.Errorf("replace mode should carry the original ID, got %q", msg.ReplaceID)
	}
	if msg.ReplyTo != "" {
		t.Errorf("replace mode must not also reply, got %q", msg.ReplyTo)
	}
}

func TestEngine_EchoChannelGetsNoChangeReply(t *testing.T) {
	b, out := startEngine(t, EngineConfig{EchoChannels: []string{"cli"}}, "cli")

	b.Publish(domain.InboundMessage{
		Channel: "cli",
		ChatID:  "direct",
		Content: "nothing interesting here",
	})

	msg := waitOutbound(t, out)
	if !strings.Contains(msg.Content, "Nothing to clean") {
		t.Errorf("got %q", msg.Content)
	}
}

func TestEngine_AnonymousAttribution(t *testing.T) {
	b, out := startEngine(t, EngineConfig{}, "telegram")

	b.Publish(domain.InboundMessage{
		Channel: "telegram",
		ChatID:  "42",
		Content: "https://youtu.be/abc?si=x",
	})

	msg := waitOutbound(t, out)
	if !strings.Contains(msg.Content, "From anon:") {
		t.Errorf("missing anon attribution: %q", msg.Content)
	}
}

func TestEngine_EntitiesPreferred(t *testing.T) {
	b, out := startEngine(t, EngineConfig{}, "telegram")

	// The hidden URL cleans; the visible anchor text has no URL at all.
	b.Publish(domain.InboundMessage{
		Channel: "telegram",
		ChatID:  "42",
		Content: "Click here",
		Entities: []domain.LinkEntity{
			{Type: domain.EntityTextLink, Offset: 0, Length: 10, URL: "https://x.com/u/status/5?s=20"},
		},
	})

	msg := waitOutbound(t, out)
	if !strings.Contains(msg.Content, "Cleaned links:\nhttps://x.com/u/status/5") {
		t.Errorf("got %q", msg.Content)
	}
}

func TestEngine_EventsEmitted(t *testing.T) {
	events := bus.NewEventBus(testLogger())
	cleanedEvents := make(chan bus.Event, 4)
	events.On(bus.EventLinkCleaned, func(e bus.Event) { cleanedEvents <- e })

	b, out := startEngine(t, EngineConfig{Events: events}, "telegram")

	b.Publish(domain.InboundMessage{
		Channel: "telegram",
		ChatID:  "42",
		Content: "https://youtu.be/abc?si=x",
	})

	waitOutbound(t, out)
	select {
	case e := <-cleanedEvents:
		if e.Payload["cleaned"] != "https://youtu.be/abc" {
			t.Errorf("got payload %+v", e.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("link.cleaned event not emitted")
	}
}

func TestEngine_EmitsRulesLoaded(t *testing.T) {
	events := bus.NewEventBus(testLogger())
	loaded := make(chan bus.Event, 1)
	events.On(bus.EventRulesLoaded, func(e bus.Event) { loaded <- e })

	startEngine(t, EngineConfig{Events: events}, "telegram")

	select {
	case e := <-loaded:
		if n, ok := e.Payload["rules"].(int); !ok || n == 0 {
			t.Errorf("got payload %+v", e.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("rules.loaded event not emitted at startup")
	}
}

func TestEngine_Process(t *testing.T) {
	e := NewEngine(EngineConfig{Rules: Default(), Logger: testLogger()})
	res := e.Process("see https://youtu.be/abc?si=x", nil)
	if !res.Changed || res.Text != "see https://youtu.be/abc" {
		t.Errorf("got %+v", res)
	}
}
