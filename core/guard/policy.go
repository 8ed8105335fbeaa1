// Package guard holds the two admission checks that run before any provider
// call: a sliding-window rate limiter and a pure content-policy check.
package guard

import "strings"

// Refusal is the canned reply returned when a message violates policy. The
// completion provider is never consulted for refused messages.
const Refusal = "抱歉，我无法帮助处理这个请求。如果你愿意，我可以提供更安全的替代方案或相关科普信息。"

// defaultRules is the fixed, auditable ruleset. Matching is plain substring
// search; no network, no allocation-heavy machinery, so the check stays well
// under a millisecond.
var defaultRules = []string{
	"身份证号",
	"银行卡号",
}

// Policy is a synchronous content check over user input.
type Policy struct {
	rules []string
}

// NewPolicy returns a policy over the default ruleset. Extra rules, if any,
// extend rather than replace it.
func NewPolicy(extraRules ...string) *Policy {
	rules := make([]string, 0, len(defaultRules)+len(extraRules))
	rules = append(rules, defaultRules...)
	rules = append(rules, extraRules...)
	return &Policy{rules: rules}
}

// Violates reports whether the text matches any rule. A nil policy never
// matches.
func (p *Policy) Violates(text string) bool {
	if p == nil {
		return false
	}
	for _, rule := range p.rules {
		if strings.Contains(text, rule) {
			return true
		}
	}
	return false
}
