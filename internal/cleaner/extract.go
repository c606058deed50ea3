package cleaner

import (
	"regexp"
	"strings"

	"linkscrub/internal/domain"
)

// Link is a URL candidate found in a message. Offset and Length are in UTF-16
// code units and address the visible text span; Hidden links (text_link-style
// entities) have no visible span of their own.
type Link struct {
	URL    string
	Offset int
	Length int
	Hidden bool
}

var (
	urlRE           = regexp.MustCompile(`https?://[^\s<>'"` + "`" + `]+`)
	trailingPunctRE = regexp.MustCompile(`[.,!?'";:]+$`)
)

// ExtractLinks pulls URL candidates out of a message using the platform's
// entity list. Visible url entities are sliced out of the text by UTF-16
// offsets; text_link entities contribute their hidden URL.
func ExtractLinks(text string, entities []domain.LinkEntity) []Link {
	var links []Link
	for _, ent := range entities {
		switch ent.Type {
		case domain.EntityURL:
			u := utf16Slice(text, ent.Offset, ent.Offset+ent.Length)
			if u == "" {
				continue
			}
			links = append(links, Link{URL: u, Offset: ent.Offset, Length: ent.Length})
		case domain.EntityTextLink:
			if ent.URL != "" {
				links = append(links, Link{URL: ent.URL, Hidden: true})
			}
		}
	}
	return links
}

// FindLinks scans plain text for URLs when no entity metadata is available
// (Discord, Slack, webhook payloads). Trailing punctuation and unbalanced
// closing brackets are not part of the URL.
func FindLinks(text string) []Link {
	var links []Link
	for _, loc := range urlRE.FindAllStringIndex(text, -1) {
		match := trimTrailing(text[loc[0]:loc[1]])
		if match == "" {
			continue
		}
		links = append(links, Link{
			URL:    match,
			Offset: utf16Len(text[:loc[0]]),
			Length: utf16Len(match),
		})
	}
	return links
}

// trimTrailing strips punctuation that reads as sentence structure rather
// than URL. Closing parens and brackets are kept only while an opener inside
// the URL balances them.
func trimTrailing(u string) string {
	for {
		prev := u
		if strings.HasSuffix(u, ")") && strings.Count(u, ")") > strings.Count(u, "(") {
			u = u[:len(u)-1]
			continue
		}
		if strings.HasSuffix(u, "]") && strings.Count(u, "]") > strings.Count(u, "[") {
			u = u[:len(u)-1]
			continue
		}
		u = trailingPunctRE.ReplaceAllString(u, "")
		if u == prev {
			return u
		}
	}
}
