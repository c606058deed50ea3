package cleaner

import (
	"strings"
	"testing"

	"linkscrub/internal/domain"
)

func TestExtractLinks_URLEntities(t *testing.T) {
	text := "Check this out: https://example.com and also https://youtu.be/dQw4w9WgXcQ?t=10"
	url1 := "https://example.com"
	url2 := "https://youtu.be/dQw4w9WgXcQ?t=10"

	entities := []domain.LinkEntity{
		{Type: domain.EntityURL, Offset: strings.Index(text, url1), Length: len(url1)},
		{Type: domain.EntityURL, Offset: strings.Index(text, url2), Length: len(url2)},
	}

	links := ExtractLinks(text, entities)
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	if links[0].URL != url1 {
		t.Errorf("got %s", links[0].URL)
	}
	if links[1].URL != url2 {
		t.Errorf("got %s", links[1].URL)
	}
}

func TestExtractLinks_TextLink(t *testing.T) {
	text := "Click here"
	entities := []domain.LinkEntity{
		{Type: domain.EntityTextLink, Offset: 0, Length: len(text), URL: "https://x.com/user/status/123?s=20"},
	}

	links := ExtractLinks(text, entities)
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].URL != "https://x.com/user/status/123?s=20" {
		t.Errorf("got %s", links[0].URL)
	}
	if !links[0].Hidden {
		t.Error("text_link should be hidden")
	}
}

func TestExtractLinks_EmojiOffsets(t *testing.T) {
	// The emoji is 2 UTF-16 code units; Telegram counts it as such.
	text := "🎬 https://youtu.be/abc"
	entities := []domain.LinkEntity{
		{Type: domain.EntityURL, Offset: 3, Length: 20},
	}

	links := ExtractLinks(text, entities)
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].URL != "https://youtu.be/abc" {
		t.Errorf("got %q", links[0].URL)
	}
}

func TestExtractLinks_IgnoresOtherEntityTypes(t *testing.T) {
	text := "bold https://youtu.be/abc"
	entities := []domain.LinkEntity{
		{Type: "bold", Offset: 0, Length: 4},
		{Type: domain.EntityURL, Offset: 5, Length: 20},
	}
	links := ExtractLinks(text, entities)
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
}

func TestFindLinks_Plain(t *testing.T) {
	links := FindLinks("see https://youtu.be/abc?si=x for details")
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].URL != "https://youtu.be/abc?si=x" {
		t.Errorf("got %s", links[0].URL)
	}
	if links[0].Offset != 4 {
		t.Errorf("expected offset 4, got %d", links[0].Offset)
	}
}

func TestFindLinks_TrailingPunctuation(t *testing.T) {
	links := FindLinks("look: https://x.com/a/status/1?s=20.")
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].URL != "https://x.com/a/status/1?s=20" {
		t.Errorf("trailing dot should be trimmed, got %s", links[0].URL)
	}
}

func TestFindLinks_UnbalancedParen(t *testing.T) {
	links := FindLinks("(see https://youtu.be/abc?t=1)")
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].URL != "https://youtu.be/abc?t=1" {
		t.Errorf("unbalanced paren should be trimmed, got %s", links[0].URL)
	}
}

func TestFindLinks_BalancedParenKept(t *testing.T) {
	links := FindLinks("https://en.wikipedia.org/wiki/Go_(programming_language)")
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].URL != "https://en.wikipedia.org/wiki/Go_(programming_language)" {
		t.Errorf("balanced paren belongs to the URL, got %s", links[0].URL)
	}
}

func TestFindLinks_Multiple(t *testing.T) {
	links := FindLinks("https://a.com/x and https://b.com/y")
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
}

func TestFindLinks_None(t *testing.T) {
	if links := FindLinks("no links here"); len(links) != 0 {
		t.Errorf("expected none, got %d", len(links))
	}
}

func TestUTF16Len(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"żółw", 4},
		{"🎬", 2},
		{"🎬 ok", 5},
	}
	for _, c := range cases {
		if got := utf16Len(c.in); got != c.want {
			t.Errorf("utf16Len(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestUTF16Slice(t *testing.T) {
	if got := utf16Slice("🎬 https://a", 3, 12); got != "https://a" {
		t.Errorf("got %q", got)
	}
	if got := utf16Slice("abc", 1, 2); got != "b" {
		t.Errorf("got %q", got)
	}
	if got := utf16Slice("abc", 2, 2); got != "" {
		t.Errorf("got %q", got)
	}
	if got := utf16Slice("abc", 0, 99); got != "abc" {
		t.Errorf("out-of-range end should clamp, got %q", got)
	}
}

func TestUTF16Splice(t *testing.T) {
	got := utf16Splice("a https://old b", 2, 11, "https://new/x")
	if got != "a https://new/x b" {
		t.Errorf("got %q", got)
	}
	got = utf16Splice("🎬 https://old", 3, 11, "X")
	if got != "🎬 X" {
		t.Errorf("got %q", got)
	}
}
