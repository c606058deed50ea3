package channel

import (
	"testing"

	"linkscrub/internal/bus"
	"linkscrub/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestConvertEntities_KeepsLinkTypes(t *testing.T) {
	in := []tgbotapi.MessageEntity{
		{Type: "bold", Offset: 0, Length: 4},
		{Type: "url", Offset: 5, Length: 20},
		{Type: "text_link", Offset: 26, Length: 4, URL: "https://youtu.be/abc?si=x"},
		{Type: "mention", Offset: 31, Length: 6},
	}
	out := convertEntities(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 link entities, got %d", len(out))
	}
	if out[0].Type != domain.EntityURL || out[0].Offset != 5 || out[0].Length != 20 {
		t.Errorf("url entity mismatch: %+v", out[0])
	}
	if out[1].Type != domain.EntityTextLink || out[1].URL != "https://youtu.be/abc?si=x" {
		t.Errorf("text_link entity mismatch: %+v", out[1])
	}
}

func TestConvertEntities_Empty(t *testing.T) {
	if got := convertEntities(nil); got != nil {
		t.Errorf("expected nil for no entities, got %v", got)
	}
}

func TestSenderName(t *testing.T) {
	if got := senderName(&tgbotapi.User{UserName: "alice", FirstName: "Alice"}); got != "@alice" {
		t.Errorf("got %q", got)
	}
	if got := senderName(&tgbotapi.User{FirstName: "Bob"}); got != "Bob" {
		t.Errorf("got %q", got)
	}
}

func TestTelegramIsAllowed(t *testing.T) {
	tg := NewTelegram(TelegramConfig{AllowFrom: []string{"-100123", " 42 ", "bogus"}, Logger: testChannelLogger()})
	if !tg.isAllowed(-100123) || !tg.isAllowed(42) {
		t.Error("listed chats should be allowed")
	}
	if tg.isAllowed(7) {
		t.Error("unlisted chat should be rejected")
	}

	open := NewTelegram(TelegramConfig{Logger: testChannelLogger()})
	if !open.isAllowed(7) {
		t.Error("empty allow list should allow all")
	}
}

func telegramUpdate(chatType string, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 1,
			From:      &tgbotapi.User{ID: 5, UserName: "alice"},
			Chat:      &tgbotapi.Chat{ID: 10, Type: chatType},
			Text:      text,
		},
	}
}

func TestTelegramGroupsOnly(t *testing.T) {
	tg := NewTelegram(TelegramConfig{GroupsOnly: true, Logger: testChannelLogger()})
	b := bus.New(4, testChannelLogger())
	defer b.Close()
	tg.bus = b

	tg.handleUpdate(telegramUpdate("private", "https://youtu.be/abc?si=x"))
	select {
	case msg := <-b.Subscribe():
		t.Fatalf("private chat message should be dropped, got %+v", msg)
	default:
	}

	tg.handleUpdate(telegramUpdate("supergroup", "https://youtu.be/abc?si=x"))
	select {
	case msg := <-b.Subscribe():
		if msg.ChatID != "10" || msg.SenderName != "@alice" {
			t.Errorf("got %+v", msg)
		}
	default:
		t.Fatal("supergroup message should be published")
	}
}

func TestTelegramGroupsOnlyDisabledAllowsPrivate(t *testing.T) {
	tg := NewTelegram(TelegramConfig{Logger: testChannelLogger()})
	b := bus.New(4, testChannelLogger())
	defer b.Close()
	tg.bus = b

	tg.handleUpdate(telegramUpdate("private", "https://youtu.be/abc?si=x"))
	select {
	case <-b.Subscribe():
	default:
		t.Fatal("private chat should pass without the groups-only flag")
	}
}

func TestTelegramParseModeFor(t *testing.T) {
	tg := NewTelegram(TelegramConfig{Logger: testChannelLogger()})
	if got := tg.parseModeFor("text"); got != "" {
		t.Errorf("text format should force plain sends, got %q", got)
	}
	if got := tg.parseModeFor("markdown"); got != "Markdown" {
		t.Errorf("got %q", got)
	}
	if got := tg.parseModeFor(""); got != "Markdown" {
		t.Errorf("empty format should use the channel default, got %q", got)
	}
}
