package token

import "errors"

var (
	// ErrInvalidSubject is returned by Issue when the subject is empty
	ErrInvalidSubject = errors.New("invalid subject")

	// ErrMalformedToken is returned when the token cannot be parsed into header, claims and signature
	ErrMalformedToken = errors.New("malformed token")

	// ErrInvalidSignature is returned when the signature does not verify against the current key
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrExpiredToken is returned when a correctly signed token is past its expiry
	ErrExpiredToken = errors.New("token expired")

	// ErrWeakKey is returned when key material is shorter than MinKeySize
	ErrWeakKey = errors.New("secret key too short")
)

// Reason returns a stable label for a validation error, suitable for metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, ErrExpiredToken):
		return "expired"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	default:
		return "error"
	}
}
