package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Validator checks tokens produced by an Issuer sharing the same Keyring.
//
// Checks run in a fixed order: structure, then signature, then expiry.
// Nothing in the payload is trusted before the signature has verified.
type Validator struct {
	keys   *Keyring
	parser *jwt.Parser
}

// NewValidator creates a new Validator
func NewValidator(keys *Keyring, opts ...Option) *Validator {
	o := buildOptions(opts)
	return &Validator{
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethod.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithStrictDecoding(),
			jwt.WithTimeFunc(o.now),
		),
	}
}

// Validate verifies tokenString and returns its claims.
// Errors are ErrMalformedToken, ErrInvalidSignature or ErrExpiredToken.
func (v *Validator) Validate(tokenString string) (Claims, error) {
	if tokenString == "" {
		return Claims{}, ErrMalformedToken
	}

	// One key per call, even if the keyring rotates concurrently.
	key := v.keys.Current()

	wire := &wireClaims{}
	_, err := v.parser.ParseWithClaims(tokenString, wire, func(t *jwt.Token) (interface{}, error) {
		if key == nil {
			return nil, errors.New("no verification key configured")
		}
		return key.bytes(), nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}

	if wire.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}
	return decodeClaims(wire), nil
}

// classify maps parser errors onto the package sentinels, keeping the cause.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}
