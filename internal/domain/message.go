package domain

import "time"

// Entity types reported by chat platforms for link-bearing message segments.
const (
	EntityURL      = "url"       // the URL is visible in the message text
	EntityTextLink = "text_link" // the URL hides behind anchor text
)

// LinkEntity marks a link-bearing span of a message, as reported by the
// platform. Offset and Length are in UTF-16 code units (Telegram convention).
// For text_link entities the URL is carried in URL and the span is anchor text.
type LinkEntity struct {
	Type   string
	Offset int
	Length int
	URL    string
}

// InboundMessage is a platform message normalized for the cleaner engine.
type InboundMessage struct {
	Channel    string
	ChatID     string
	MessageID  string
	SenderID   string
	SenderName string // display name or @handle for attribution
	SenderBot  bool   // true when the author is another bot
	Content    string // text or caption
	Entities   []LinkEntity
	Timestamp  time.Time
}

// OutboundMessage is a reply produced by the cleaner engine.
type OutboundMessage struct {
	Channel   string
	ChatID    string
	ReplyTo   string // message ID to reply to ("" = plain send)
	ReplaceID string // message ID to delete before sending (replace mode)
	Content   string
	Format    string // text | markdown
}
