// Package prompt recognises interactive questions asked by package-manager
// tooling and knows the canned answer for each of them.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// Kind names a category of recognised interactive question.
type Kind string

const (
	KindConffileConflict Kind = "package-config-conflict"
	KindKeyboardLayout   Kind = "keyboard-layout"
	KindPackageConfig    Kind = "package-configuration"
	KindRestartServices  Kind = "restart-services"
	KindAptContinue      Kind = "apt-continue"
	KindPressEnter       Kind = "press-enter"
	KindYesNo            Kind = "yes-no"
)

// DefaultResponse is sent for a kind that has no registered response.
// An unanswered prompt hangs the child forever, so the fallback is the
// affirmative answer that unblocks the most tools.
const DefaultResponse = "y"

// AcceptDefault is the empty response: only a line terminator is sent,
// which selects whatever default the prompt offers.
const AcceptDefault = ""

// Matcher reports whether a prompt occurs anywhere in text.
type Matcher interface {
	Find(text string) bool
	String() string
}

type regexMatcher struct {
	re *regexp.Regexp
}

func (m regexMatcher) Find(text string) bool { return m.re.MatchString(text) }
func (m regexMatcher) String() string        { return m.re.String() }

// Regex returns a case-insensitive regular expression matcher.
func Regex(pattern string) (Matcher, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("compile prompt pattern %q: %w", pattern, err)
	}
	return regexMatcher{re: re}, nil
}

// MustRegex is like Regex but panics on an invalid pattern.
// It is meant for the built-in rule table.
func MustRegex(pattern string) Matcher {
	m, err := Regex(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

type literalMatcher struct {
	folded string
	raw    string
}

func (m literalMatcher) Find(text string) bool {
	return strings.Contains(cases.Fold().String(text), m.folded)
}

func (m literalMatcher) String() string { return m.raw }

// Literal returns a matcher for a plain substring, compared with full
// Unicode case folding so Cyrillic prompts match regardless of case.
func Literal(s string) Matcher {
	return literalMatcher{folded: cases.Fold().String(s), raw: s}
}

// Rule binds a prompt kind to its recognition rule and canned response.
type Rule struct {
	Kind     Kind
	Matcher  Matcher
	Response string
}

// Registry is an ordered, immutable set of rules. It is safe for concurrent
// use by any number of sessions.
type Registry struct {
	rules     []Rule
	responses map[Kind]string
}

// NewRegistry builds a registry; rules are evaluated in the given order and
// the first registration of a kind decides its response.
func NewRegistry(rules ...Rule) *Registry {
	r := &Registry{
		rules:     make([]Rule, 0, len(rules)),
		responses: make(map[Kind]string, len(rules)),
	}
	for _, rule := range rules {
		r.rules = append(r.rules, rule)
		if _, ok := r.responses[rule.Kind]; !ok {
			r.responses[rule.Kind] = rule.Response
		}
	}
	return r
}

// With returns a new registry holding r's rules followed by extra.
func (r *Registry) With(extra ...Rule) *Registry {
	all := make([]Rule, 0, len(r.rules)+len(extra))
	all = append(all, r.rules...)
	all = append(all, extra...)
	return NewRegistry(all...)
}

// Before returns a new registry with extra inserted ahead of the first rule
// of the given kind, or appended when r has no such rule.
func (r *Registry) Before(kind Kind, extra ...Rule) *Registry {
	at := len(r.rules)
	for i, rule := range r.rules {
		if rule.Kind == kind {
			at = i
			break
		}
	}
	all := make([]Rule, 0, len(r.rules)+len(extra))
	all = append(all, r.rules[:at]...)
	all = append(all, extra...)
	all = append(all, r.rules[at:]...)
	return NewRegistry(all...)
}

// Match returns the kind of the first rule, in registration order, whose
// matcher is found anywhere in text.
func (r *Registry) Match(text string) (Kind, bool) {
	if text == "" {
		return "", false
	}
	for _, rule := range r.rules {
		if rule.Matcher.Find(text) {
			return rule.Kind, true
		}
	}
	return "", false
}

// ResponseFor returns the canned answer for kind, or DefaultResponse when
// the kind is not registered.
func (r *Registry) ResponseFor(kind Kind) string {
	if resp, ok := r.responses[kind]; ok {
		return resp
	}
	return DefaultResponse
}

// Rules returns a copy of the registered rules in evaluation order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}
