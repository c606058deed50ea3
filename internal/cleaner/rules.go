package cleaner

import "strings"

// Rule is a static canonicalization rule for one platform: the set of hosts it
// matches and the query parameters worth keeping. An empty Keep list means the
// whole query string is tracking baggage and gets stripped.
type Rule struct {
	Name  string   `yaml:"name"`
	Hosts []string `yaml:"hosts"`
	Keep  []string `yaml:"keep"`
}

// UnwrapRule describes a redirector layer: a host (optionally pinned to a
// path) whose named query parameter carries the real destination URL.
type UnwrapRule struct {
	Hosts []string `yaml:"hosts"`
	Path  string   `yaml:"path,omitempty"`
	Param string   `yaml:"param"`
}

// RuleSet is the compiled, read-only view of all rules. Built once at startup;
// safe for concurrent readers.
type RuleSet struct {
	rules      []Rule
	unwrapList []UnwrapRule
	byHost     map[string]*compiledRule
	unwraps    map[string][]UnwrapRule
}

type compiledRule struct {
	name string
	keep map[string]struct{}
}

// NewRuleSet compiles rules and unwrap rules into host lookup tables.
// Later rules win on host collisions, so user rules listed after the builtins
// override them.
func NewRuleSet(rules []Rule, unwraps []UnwrapRule) *RuleSet {
	rs := &RuleSet{
		rules:      rules,
		unwrapList: unwraps,
		byHost:     make(map[string]*compiledRule),
		unwraps:    make(map[string][]UnwrapRule),
	}
	for _, r := range rules {
		cr := &compiledRule{name: r.Name, keep: make(map[string]struct{}, len(r.Keep))}
		for _, k := range r.Keep {
			cr.keep[k] = struct{}{}
		}
		for _, h := range r.Hosts {
			rs.byHost[strings.ToLower(strings.TrimSpace(h))] = cr
		}
	}
	for _, u := range unwraps {
		for _, h := range u.Hosts {
			host := strings.ToLower(strings.TrimSpace(h))
			rs.unwraps[host] = append(rs.unwraps[host], u)
		}
	}
	return rs
}

// Rules returns the rules this set was built from, for display.
func (rs *RuleSet) Rules() []Rule { return rs.rules }

// Unwraps returns the redirector rules this set was built from, for display.
func (rs *RuleSet) Unwraps() []UnwrapRule { return rs.unwrapList }

// Recognizes reports whether any rule matches the given host.
func (rs *RuleSet) Recognizes(host string) bool {
	_, ok := rs.byHost[strings.ToLower(host)]
	return ok
}
