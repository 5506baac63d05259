// Package policy decides whether a request may reach its handler, based on an
// ordered table of path patterns and the principal attached to the request.
package policy

import (
	"fmt"
	"path"
	"strings"

	"github.com/upb/jwt-auth-gateway/token"
)

// Decision is the outcome of evaluating a request against the table.
type Decision int

const (
	// Permit lets the request through
	Permit Decision = iota
	// Unauthenticated means a principal is required but none is present (401)
	Unauthenticated
	// Forbidden means the principal lacks the required role (403)
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Permit:
		return "permit"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Engine evaluates requests against an immutable, ordered rule table.
// The first matching rule wins; paths matching no rule require authentication.
type Engine struct {
	rules []Rule
}

// NewEngine creates an Engine over a copy of rules.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: append([]Rule(nil), rules...)}
}

// Rules returns a copy of the table in evaluation order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Requirement returns the requirement that applies to requestPath and whether
// it came from an explicit rule.
func (e *Engine) Requirement(requestPath string) (Requirement, bool) {
	p := CleanPath(requestPath)
	for _, rule := range e.rules {
		if Match(rule.Pattern, p) {
			return rule.Requirement, true
		}
	}
	return AuthenticatedAccess(), false
}

// Decide evaluates requestPath for principal. A nil principal is anonymous.
func (e *Engine) Decide(requestPath string, principal *token.Principal) Decision {
	req, _ := e.Requirement(requestPath)
	return Evaluate(req, principal)
}

// Evaluate applies a single requirement to principal.
func Evaluate(req Requirement, principal *token.Principal) Decision {
	switch req.Kind {
	case Public:
		return Permit
	case RequiresRole:
		if principal == nil {
			return Unauthenticated
		}
		if !principal.HasRole(req.Role) {
			return Forbidden
		}
		return Permit
	default:
		if principal == nil {
			return Unauthenticated
		}
		return Permit
	}
}

// CleanPath normalizes a request path so that "/api/users/" and
// "/api/x/../users" are evaluated like "/api/users".
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// Matcher reports whether a path matches any of a list of patterns.
type Matcher struct {
	patterns []string
}

// NewMatcher validates patterns and returns a Matcher.
func NewMatcher(patterns []string) (*Matcher, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if err := ValidatePattern(p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return &Matcher{patterns: out}, nil
}

// Matches reports whether requestPath matches one of the patterns.
func (m *Matcher) Matches(requestPath string) bool {
	if m == nil {
		return false
	}
	p := CleanPath(requestPath)
	for _, pattern := range m.patterns {
		if Match(pattern, p) {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the configured patterns.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}
