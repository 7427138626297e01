package exclusion

import (
	"fmt"
	"regexp"
)

// Rule is a single compiled exclusion pattern.
type Rule struct {
	Pattern string
	re      *regexp.Regexp
}

// Matches reports whether url is rejected by this rule.
func (r Rule) Matches(url string) bool {
	return r.re.MatchString(url)
}

// RuleSet is an ordered list of rules. The first matching rule wins.
type RuleSet struct {
	rules []Rule
}

// Compile builds a RuleSet from patterns. Patterns are matched
// case-insensitively and an invalid pattern is an error.
func Compile(patterns []string) (*RuleSet, error) {
	rs := &RuleSet{rules: make([]Rule, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile exclusion %q: %w", p, err)
		}
		rs.rules = append(rs.rules, Rule{Pattern: p, re: re})
	}
	return rs, nil
}

// MustCompile is like Compile but panics on an invalid pattern.
func MustCompile(patterns []string) *RuleSet {
	rs, err := Compile(patterns)
	if err != nil {
		panic(err)
	}
	return rs
}

// Match returns the first rule rejecting url.
func (s *RuleSet) Match(url string) (Rule, bool) {
	if s == nil {
		return Rule{}, false
	}
	for _, r := range s.rules {
		if r.Matches(url) {
			return r, true
		}
	}
	return Rule{}, false
}

// Excluded reports whether url must never enter history.
func (s *RuleSet) Excluded(url string) bool {
	_, ok := s.Match(url)
	return ok
}

// Patterns returns the source patterns in evaluation order.
func (s *RuleSet) Patterns() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Pattern
	}
	return out
}
