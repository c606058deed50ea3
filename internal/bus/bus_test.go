package bus

import (
	"testing"
	"time"

	"linkscrub/internal/domain"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	b := New(10, testEBLogger())
	defer b.Close()

	b.Publish(domain.InboundMessage{Channel: "telegram", ChatID: "1", Content: "hello"})

	select {
	case msg := <-b.Subscribe():
		if msg.Content != "hello" {
			t.Errorf("expected hello, got %s", msg.Content)
		}
		if msg.Channel != "telegram" {
			t.Errorf("expected telegram, got %s", msg.Channel)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestMemoryBus_OutboundRouting(t *testing.T) {
	b := New(10, testEBLogger())
	defer b.Close()

	got := make(chan domain.OutboundMessage, 1)
	b.OnOutbound("discord", func(msg domain.OutboundMessage) {
		got <- msg
	})

	b.SendOutbound(domain.OutboundMessage{Channel: "discord", ChatID: "c1", Content: "cleaned"})

	select {
	case msg := <-got:
		if msg.ChatID != "c1" {
			t.Errorf("expected c1, got %s", msg.ChatID)
		}
	case <-time.After(time.Second):
		t.Fatal("outbound handler not called")
	}
}

func TestMemoryBus_OutboundUnknownChannel(t *testing.T) {
	b := New(10, testEBLogger())
	defer b.Close()

	// Should log a warning, not panic.
	b.SendOutbound(domain.OutboundMessage{Channel: "nope", Content: "x"})
}

func TestMemoryBus_PublishAfterClose(t *testing.T) {
	b := New(10, testEBLogger())
	b.Close()

	// Should not panic on a closed bus.
	b.Publish(domain.InboundMessage{Channel: "cli", Content: "late"})
}

func TestMemoryBus_CloseIdempotent(t *testing.T) {
	b := New(10, testEBLogger())
	b.Close()
	b.Close()
}
