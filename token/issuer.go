package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAccessTTL is used when an Issuer is built with a non-positive TTL.
const DefaultAccessTTL = 6 * time.Minute

var signingMethod = jwt.SigningMethodHS512

// Option configures an Issuer or a Validator.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Issuer signs access tokens with the keyring's current key.
type Issuer struct {
	keys      *Keyring
	accessTTL time.Duration
	now       func() time.Time
}

// NewIssuer creates a new Issuer
func NewIssuer(keys *Keyring, accessTTL time.Duration, opts ...Option) *Issuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	o := buildOptions(opts)
	return &Issuer{
		keys:      keys,
		accessTTL: accessTTL,
		now:       o.now,
	}
}

// AccessTTL returns the lifetime of issued tokens.
func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// Issue returns a signed token for subject carrying roles, and the claims it encodes.
// Every call yields a distinct token.
func (i *Issuer) Issue(subject string, roles []string) (string, Claims, error) {
	if strings.TrimSpace(subject) == "" {
		return "", Claims{}, ErrInvalidSubject
	}
	key := i.keys.Current()
	if key == nil {
		return "", Claims{}, errors.New("no signing key configured")
	}

	now := i.now()
	claims := Claims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Roles:     normalizeRoles(roles),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.accessTTL),
	}

	signed, err := jwt.NewWithClaims(signingMethod, encodeClaims(claims)).SignedString(key.bytes())
	if err != nil {
		return "", Claims{}, fmt.Errorf("failed to sign token: %w", err)
	}

	// Report what the token actually carries (second precision).
	claims.IssuedAt = jwt.NewNumericDate(claims.IssuedAt).Time.UTC()
	claims.ExpiresAt = jwt.NewNumericDate(claims.ExpiresAt).Time.UTC()
	return signed, claims, nil
}
