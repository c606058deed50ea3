package cleaner

import (
	"sort"
	"strings"
)

// CleanedLink records one URL that actually changed.
type CleanedLink struct {
	Original string
	Cleaned  string
}

// Result is the outcome of rewriting a message.
type Result struct {
	Text    string
	Changed bool
	Links   []CleanedLink
}

// Rewrite cleans every link independently and rebuilds the message text.
// Visible links are spliced in place; hidden links that cleaned differently
// are listed under a trailer since their anchor text stays as-is. When no
// link changes, the text comes back untouched.
func (rs *RuleSet) Rewrite(text string, links []Link) Result {
	cleaned := make(map[string]string)
	var changed []CleanedLink
	for _, l := range links {
		c, ok := rs.Clean(l.URL)
		if !ok {
			continue
		}
		if _, seen := cleaned[l.URL]; !seen {
			cleaned[l.URL] = c
			changed = append(changed, CleanedLink{Original: l.URL, Cleaned: c})
		}
	}
	if len(changed) == 0 {
		return Result{Text: text}
	}

	// Splice visible links back to front so earlier offsets stay valid.
	visible := make([]Link, 0, len(links))
	for _, l := range links {
		if !l.Hidden {
			visible = append(visible, l)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].Offset > visible[j].Offset })

	out := text
	for _, l := range visible {
		if c, ok := cleaned[l.URL]; ok {
			out = utf16Splice(out, l.Offset, l.Length, c)
		}
	}

	// Hidden links keep their anchor text; surface the cleaned targets below.
	var trailer []string
	for _, l := range links {
		if !l.Hidden {
			continue
		}
		if c, ok := cleaned[l.URL]; ok {
			trailer = append(trailer, c)
		}
	}
	if len(trailer) > 0 {
		out += "\n\nCleaned links:\n" + strings.Join(trailer, "\n")
	}

	return Result{Text: out, Changed: true, Links: changed}
}
