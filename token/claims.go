package token

import (
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the validated content of an access token.
type Claims struct {
	ID        string
	Subject   string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasRole reports whether role is one of the granted roles. Comparison is exact.
func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Principal returns the request-scoped identity carried by these claims.
func (c Claims) Principal() *Principal {
	return &Principal{Subject: c.Subject, Roles: normalizeRoles(c.Roles)}
}

// Principal is the authenticated identity of the current request.
type Principal struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles"`
}

// HasRole reports whether the principal holds role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// wireClaims is the JSON payload of a signed token:
// {"sub":..., "roles":[...], "iat":..., "exp":..., "jti":...}
type wireClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

func encodeClaims(c Claims) *wireClaims {
	return &wireClaims{
		Roles: normalizeRoles(c.Roles),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        c.ID,
			Subject:   c.Subject,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	}
}

func decodeClaims(w *wireClaims) Claims {
	c := Claims{
		ID:      w.ID,
		Subject: w.Subject,
		Roles:   normalizeRoles(w.Roles),
	}
	if w.IssuedAt != nil {
		c.IssuedAt = w.IssuedAt.Time.UTC()
	}
	if w.ExpiresAt != nil {
		c.ExpiresAt = w.ExpiresAt.Time.UTC()
	}
	return c
}

// normalizeRoles returns a sorted copy of roles without duplicates or blanks.
// It never returns nil so the JSON payload always carries an array.
func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
