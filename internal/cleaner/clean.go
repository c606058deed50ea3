package cleaner

import (
	"net/url"
	"strings"
)

// maxUnwrapDepth bounds redirector unwrapping (a redirector pointing at
// another redirector is as deep as it gets in practice).
const maxUnwrapDepth = 3

// Clean canonicalizes a single URL. It returns the cleaned URL and whether it
// differs from the input. Malformed URLs, non-http(s) schemes, and
// unrecognized hosts come back untouched.
func (rs *RuleSet) Clean(raw string) (string, bool) {
	cleaned := rs.clean(raw, 0)
	return cleaned, cleaned != raw
}

func (rs *RuleSet) clean(raw string, depth int) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return raw
	}
	host := strings.ToLower(u.Host)
	if host == "" {
		return raw
	}

	// Peel redirector layers before matching platform rules. A redirector
	// whose target param holds something other than a URL is left alone
	// entirely; its query string is functional, not tracking.
	if depth < maxUnwrapDepth {
		for _, uw := range rs.unwraps[host] {
			if uw.Path != "" && u.Path != uw.Path {
				continue
			}
			target := u.Query().Get(uw.Param)
			if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
				return rs.clean(target, depth+1)
			}
			return raw
		}
	}

	rule, ok := rs.byHost[host]
	if !ok {
		return raw
	}

	filtered := filterQuery(u.RawQuery, rule.keep)
	if filtered == u.RawQuery && !u.ForceQuery {
		// Already clean; hand back the input byte-for-byte.
		return raw
	}
	u.RawQuery = filtered
	u.ForceQuery = false // a bare trailing "?" is noise too
	return u.String()
}

// filterQuery drops query pairs whose key is not in keep, preserving the
// original pair order and encoding so a clean URL round-trips unchanged.
func filterQuery(rawQuery string, keep map[string]struct{}) string {
	if rawQuery == "" || len(keep) == 0 {
		return ""
	}
	var kept []string
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if _, ok := keep[key]; ok {
			kept = append(kept, pair)
		}
	}
	return strings.Join(kept, "&")
}
