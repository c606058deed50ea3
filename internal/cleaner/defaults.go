package cleaner

// DefaultRules returns the builtin platform rules.
//
// YouTube keeps only parameters that affect playback; short youtu.be links
// keep just the timestamp. Twitter/X query parameters are all tracking, so
// everything goes.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:  "youtube",
			Hosts: []string{"youtube.com", "www.youtube.com", "m.youtube.com"},
			Keep:  []string{"v", "t", "time_continue", "list", "index"},
		},
		{
			Name:  "youtube-short",
			Hosts: []string{"youtu.be"},
			Keep:  []string{"t"},
		},
		{
			Name:  "twitter",
			Hosts: []string{"twitter.com", "www.twitter.com", "mobile.twitter.com", "x.com", "www.x.com"},
			Keep:  nil,
		},
	}
}

// DefaultUnwraps returns the builtin redirector layers whose target URL sits
// in a query parameter. Unwrapping is purely syntactic; no requests are made.
func DefaultUnwraps() []UnwrapRule {
	return []UnwrapRule{
		{Hosts: []string{"youtube.com", "www.youtube.com"}, Path: "/redirect", Param: "q"},
		{Hosts: []string{"l.facebook.com", "lm.facebook.com"}, Path: "/l.php", Param: "u"},
		{Hosts: []string{"l.instagram.com"}, Param: "u"},
		{Hosts: []string{"google.com", "www.google.com"}, Path: "/url", Param: "q"},
		{Hosts: []string{"steamcommunity.com"}, Path: "/linkfilter/", Param: "u"},
	}
}

// Default returns a RuleSet with only the builtin rules.
func Default() *RuleSet {
	return NewRuleSet(DefaultRules(), DefaultUnwraps())
}
