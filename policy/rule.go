package policy

import (
	"fmt"
	"path"
	"strings"
)

// Kind is the class of a route requirement.
type Kind int

const (
	// Authenticated requires any valid principal. It is the zero value so an
	// unset requirement is never more permissive than intended.
	Authenticated Kind = iota
	// Public admits anonymous callers
	Public
	// RequiresRole requires a principal holding a specific role
	RequiresRole
)

// Requirement is what a route demands from the caller.
type Requirement struct {
	Kind Kind
	Role string
}

// PublicAccess admits every request.
func PublicAccess() Requirement { return Requirement{Kind: Public} }

// AuthenticatedAccess admits any authenticated principal.
func AuthenticatedAccess() Requirement { return Requirement{Kind: Authenticated} }

// RoleAccess admits principals holding role.
func RoleAccess(role string) Requirement { return Requirement{Kind: RequiresRole, Role: role} }

// String renders the requirement in the same syntax ParseRequirement accepts.
func (r Requirement) String() string {
	switch r.Kind {
	case Public:
		return "public"
	case RequiresRole:
		return "role:" + r.Role
	default:
		return "authenticated"
	}
}

// ParseRequirement parses "public", "authenticated" or "role:NAME".
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "public", "permitall", "permit_all":
		return PublicAccess(), nil
	case "authenticated", "auth":
		return AuthenticatedAccess(), nil
	}
	if i := strings.Index(s, ":"); i > 0 && strings.EqualFold(s[:i], "role") {
		role := strings.TrimSpace(s[i+1:])
		if role == "" {
			return Requirement{}, fmt.Errorf("role requirement %q has no role name", s)
		}
		return RoleAccess(role), nil
	}
	return Requirement{}, fmt.Errorf("unknown requirement %q", s)
}

// Rule binds a path pattern to a requirement.
type Rule struct {
	Pattern     string
	Requirement Requirement
}

// NewRule validates pattern and returns a rule.
func NewRule(pattern string, req Requirement) (Rule, error) {
	if err := ValidatePattern(pattern); err != nil {
		return Rule{}, err
	}
	if req.Kind == RequiresRole && req.Role == "" {
		return Rule{}, fmt.Errorf("rule %q requires a role name", pattern)
	}
	return Rule{Pattern: pattern, Requirement: req}, nil
}

// ValidatePattern reports whether pattern is usable.
//
// Supported forms:
//
//	/api/users      exact path
//	/api/admin/**   the base path and everything below it
//	/api/*/greet    '*' matches within a single segment
func ValidatePattern(pattern string) error {
	if !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("pattern %q must start with '/'", pattern)
	}
	base := strings.TrimSuffix(pattern, "/**")
	if strings.Contains(base, "**") {
		return fmt.Errorf("pattern %q: '**' is only allowed as the final segment", pattern)
	}
	if _, err := path.Match(base, "/"); err != nil {
		return fmt.Errorf("pattern %q: %w", pattern, err)
	}
	return nil
}

// Match reports whether requestPath matches pattern.
func Match(pattern, requestPath string) bool {
	if requestPath == "" {
		requestPath = "/"
	}
	if base, ok := strings.CutSuffix(pattern, "/**"); ok {
		if base == "" {
			return true
		}
		if matchSegment(base, requestPath) {
			return true
		}
		// Match base against the leading segments of the path.
		segments := strings.Split(requestPath, "/")
		n := strings.Count(base, "/") + 1
		if len(segments) <= n {
			return false
		}
		return matchSegment(base, strings.Join(segments[:n], "/"))
	}
	return matchSegment(pattern, requestPath)
}

func matchSegment(pattern, p string) bool {
	if !strings.ContainsAny(pattern, "*?[\\") {
		return pattern == p
	}
	ok, err := path.Match(pattern, p)
	return err == nil && ok
}
