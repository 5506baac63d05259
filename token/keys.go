package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync/atomic"
)

const (
	// MinKeySize is the smallest accepted HMAC key, in bytes
	MinKeySize = 32

	// GeneratedKeySize matches the HS512 block size
	GeneratedKeySize = 64
)

// SecretKey is immutable HMAC key material.
type SecretKey struct {
	material []byte
}

// NewSecretKey copies material into a new key.
func NewSecretKey(material []byte) (*SecretKey, error) {
	if len(material) < MinKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrWeakKey, len(material), MinKeySize)
	}
	buf := make([]byte, len(material))
	copy(buf, material)
	return &SecretKey{material: buf}, nil
}

// GenerateSecretKey returns a fresh random key of GeneratedKeySize bytes.
func GenerateSecretKey() (*SecretKey, error) {
	buf := make([]byte, GeneratedKeySize)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to read random key material: %w", err)
	}
	return &SecretKey{material: buf}, nil
}

// ParseSecretKey decodes base64 key material (standard or URL alphabet, padded or not).
func ParseSecretKey(encoded string) (*SecretKey, error) {
	encoded = strings.TrimSpace(encoded)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if raw, err := enc.DecodeString(encoded); err == nil {
			return NewSecretKey(raw)
		}
	}
	return nil, fmt.Errorf("secret key is not valid base64")
}

// Encode returns the key as standard padded base64.
func (k *SecretKey) Encode() string {
	return base64.StdEncoding.EncodeToString(k.material)
}

// Size returns the key length in bytes.
func (k *SecretKey) Size() int {
	return len(k.material)
}

func (k *SecretKey) bytes() []byte {
	return k.material
}

// Keyring holds the current signing key. Readers take a snapshot with
// Current; Rotate replaces the key atomically, so a single Issue or
// Validate call always sees exactly one key.
type Keyring struct {
	current atomic.Pointer[SecretKey]
}

// NewKeyring creates a keyring holding key.
func NewKeyring(key *SecretKey) *Keyring {
	r := &Keyring{}
	r.current.Store(key)
	return r
}

// Current returns the active key.
func (r *Keyring) Current() *SecretKey {
	return r.current.Load()
}

// Rotate installs key and returns the previous one. Tokens signed with the
// previous key stop validating immediately.
func (r *Keyring) Rotate(key *SecretKey) *SecretKey {
	return r.current.Swap(key)
}
