package cleaner

import (
	"strings"
	"testing"

	"linkscrub/internal/domain"
)

func findAll(text string) []Link { return FindLinks(text) }

func TestRewrite_NoRecognizedURL(t *testing.T) {
	rs := Default()
	text := "check this https://example.com/post/123?utm_source=x&ref=y"
	res := rs.Rewrite(text, findAll(text))
	if res.Changed {
		t.Fatal("unrecognized domains must not trigger a rewrite")
	}
	if res.Text != text {
		t.Errorf("text must be untouched, got %q", res.Text)
	}
}

func TestRewrite_NoLinks(t *testing.T) {
	rs := Default()
	res := rs.Rewrite("just words", nil)
	if res.Changed || res.Text != "just words" {
		t.Errorf("got %+v", res)
	}
}

func TestRewrite_DirtyURLReplacedInPlace(t *testing.T) {
	rs := Default()
	text := "check this https://youtu.be/abc?si=xyz please"
	res := rs.Rewrite(text, findAll(text))
	if !res.Changed {
		t.Fatal("expected a rewrite")
	}
	if res.Text != "check this https://youtu.be/abc please" {
		t.Errorf("got %q", res.Text)
	}
	if len(res.Links) != 1 || res.Links[0].Cleaned != "https://youtu.be/abc" {
		t.Errorf("got links %+v", res.Links)
	}
}

func TestRewrite_OnlyDirtyURLRewritten(t *testing.T) {
	rs := Default()
	text := "a https://youtu.be/clean b https://x.com/u/status/1?s=20 c"
	res := rs.Rewrite(text, findAll(text))
	if !res.Changed {
		t.Fatal("expected a rewrite")
	}
	if res.Text != "a https://youtu.be/clean b https://x.com/u/status/1 c" {
		t.Errorf("got %q", res.Text)
	}
	if len(res.Links) != 1 {
		t.Errorf("only the dirty link should be reported, got %+v", res.Links)
	}
}

func TestRewrite_MultipleDirtyURLs(t *testing.T) {
	rs := Default()
	text := "https://youtu.be/a?si=1 https://youtu.be/b?si=2"
	res := rs.Rewrite(text, findAll(text))
	if res.Text != "https://youtu.be/a https://youtu.be/b" {
		t.Errorf("got %q", res.Text)
	}
	if len(res.Links) != 2 {
		t.Errorf("expected 2 cleaned links, got %d", len(res.Links))
	}
}

func TestRewrite_HiddenLinkTrailer(t *testing.T) {
	rs := Default()
	text := "Click here"
	links := []Link{{URL: "https://x.com/user/status/123?s=20", Hidden: true}}
	res := rs.Rewrite(text, links)
	if !res.Changed {
		t.Fatal("expected a rewrite")
	}
	if !strings.HasPrefix(res.Text, "Click here") {
		t.Errorf("anchor text must stay, got %q", res.Text)
	}
	if !strings.Contains(res.Text, "Cleaned links:\nhttps://x.com/user/status/123") {
		t.Errorf("cleaned target should be listed, got %q", res.Text)
	}
}

func TestRewrite_HiddenCleanLinkNoTrailer(t *testing.T) {
	rs := Default()
	links := []Link{{URL: "https://x.com/user/status/123", Hidden: true}}
	res := rs.Rewrite("Click here", links)
	if res.Changed {
		t.Errorf("already-clean hidden link must be a no-op, got %+v", res)
	}
}

func TestRewrite_EmojiText(t *testing.T) {
	rs := Default()
	text := "🎬🎬 https://youtu.be/abc?si=x end"
	res := rs.Rewrite(text, findAll(text))
	if res.Text != "🎬🎬 https://youtu.be/abc end" {
		t.Errorf("got %q", res.Text)
	}
}

func TestRewrite_EntityPath(t *testing.T) {
	rs := Default()
	text := "watch https://www.youtube.com/watch?v=dQw4w9WgXcQ&si=ABC now"
	url := "https://www.youtube.com/watch?v=dQw4w9WgXcQ&si=ABC"
	links := ExtractLinks(text, []domain.LinkEntity{
		{Type: domain.EntityURL, Offset: strings.Index(text, url), Length: len(url)},
	})
	res := rs.Rewrite(text, links)
	if res.Text != "watch https://www.youtube.com/watch?v=dQw4w9WgXcQ now" {
		t.Errorf("got %q", res.Text)
	}
}

func TestRewrite_Idempotent(t *testing.T) {
	rs := Default()
	text := "see https://youtu.be/abc?si=x"
	first := rs.Rewrite(text, findAll(text))
	second := rs.Rewrite(first.Text, findAll(first.Text))
	if second.Changed {
		t.Errorf("rewriting a cleaned message must be a no-op, got %q", second.Text)
	}
}
