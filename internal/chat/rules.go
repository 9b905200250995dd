package chat

import "strings"

// Greeting seeds an empty transcript the first time the panel opens.
const Greeting = "Hi there! How can I help you today?"

// Fallback is returned when no rule matches.
const Fallback = "That's interesting! Tell me more!"

// Rule maps a set of trigger substrings to a canned reply.
type Rule struct {
	Triggers []string
	Response string
}

func (r Rule) matches(lower string) bool {
	for _, t := range r.Triggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// DefaultRules returns the built-in reply table in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Triggers: []string{"hi", "hello"}, Response: "Hello! Nice to meet you!"},
		{Triggers: []string{"how are you"}, Response: "I'm doing great, thanks for asking!"},
		{Triggers: []string{"bye"}, Response: "Goodbye! Have a nice day!"},
		{Triggers: []string{"work", "project"}, Response: "Check out my portfolio projects section!"},
		{Triggers: []string{"contact"}, Response: "You can reach me through the contact page."},
	}
}

// Responder picks canned replies. The first matching rule wins.
type Responder struct {
	rules    []Rule
	fallback string
}

// NewResponder copies rules and lower-cases their triggers. An empty
// fallback falls back to Fallback.
func NewResponder(rules []Rule, fallback string) *Responder {
	if fallback == "" {
		fallback = Fallback
	}
	rs := make([]Rule, len(rules))
	for i, r := range rules {
		triggers := make([]string, 0, len(r.Triggers))
		for _, t := range r.Triggers {
			if t == "" {
				continue
			}
			triggers = append(triggers, strings.ToLower(t))
		}
		rs[i] = Rule{Triggers: triggers, Response: r.Response}
	}
	return &Responder{rules: rs, fallback: fallback}
}

// DefaultResponder uses DefaultRules and Fallback.
func DefaultResponder() *Responder {
	return NewResponder(DefaultRules(), Fallback)
}

// Match returns the index of the winning rule, or -1 when the fallback applies.
func (r *Responder) Match(text string) int {
	lower := strings.ToLower(text)
	for i, rule := range r.rules {
		if rule.matches(lower) {
			return i
		}
	}
	return -1
}

// Reply returns the canned response for text.
func (r *Responder) Reply(text string) string {
	idx := r.Match(text)
	if idx < 0 {
		return r.fallback
	}
	return r.rules[idx].Response
}
