package policy

import (
	"fmt"
	"strings"
)

// Role names used by the default table and the account seed.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// DefaultRules is the route table used when none is configured.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "/api/register", Requirement: PublicAccess()},
		{Pattern: "/api/login", Requirement: PublicAccess()},
		{Pattern: "/api/refresh", Requirement: PublicAccess()},
		{Pattern: "/healthz", Requirement: PublicAccess()},
		{Pattern: "/readyz", Requirement: PublicAccess()},
		{Pattern: "/metrics", Requirement: PublicAccess()},
		{Pattern: "/api/users", Requirement: RoleAccess(RoleAdmin)},
		{Pattern: "/api/greet", Requirement: AuthenticatedAccess()},
	}
}

// DefaultBypassPaths are the credential-exchange endpoints that never look at a token.
func DefaultBypassPaths() []string {
	return []string{"/api/register", "/api/login", "/api/refresh"}
}

// ParseRules parses a comma separated list of "pattern=requirement" entries,
// for example "/api/login=public,/api/admin/**=role:ADMIN".
func ParseRules(s string) ([]Rule, error) {
	var rules []Rule
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		pattern, reqText, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("route policy %q: expected pattern=requirement", entry)
		}
		req, err := ParseRequirement(reqText)
		if err != nil {
			return nil, fmt.Errorf("route policy %q: %w", entry, err)
		}
		rule, err := NewRule(strings.TrimSpace(pattern), req)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// FormatRules renders rules in the syntax accepted by ParseRules.
func FormatRules(rules []Rule) string {
	parts := make([]string, 0, len(rules))
	for _, r := range rules {
		parts = append(parts, r.Pattern+"="+r.Requirement.String())
	}
	return strings.Join(parts, ",")
}
