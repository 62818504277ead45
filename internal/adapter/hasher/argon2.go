// Package hasher hashes passwords with argon2id.
package hasher

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/goldstream/goldstream/internal/domain"
)

const (
	timeCost   = 1
	memoryCost = 64 * 1024
	threads    = 4
	saltLen    = 16
	keyLen     = 32
)

// Argon2 implements domain.Hasher with argon2id and the PHC string format.
type Argon2 struct{}

// New constructs an Argon2 hasher.
func New() *Argon2 { return &Argon2{} }

// Hash derives an argon2id hash with a fresh random salt.
func (Argon2) Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("op=hasher.hash: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, timeCost, memoryCost, threads, keyLen)
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memoryCost, timeCost, threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// Compare checks a password against a stored hash. A mismatch returns
// domain.ErrUnauthorized.
func (Argon2) Compare(hash, password string) error {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return fmt.Errorf("op=hasher.compare: malformed hash: %w", domain.ErrUnauthorized)
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return fmt.Errorf("op=hasher.compare: %w", domain.ErrUnauthorized)
	}
	var m uint32
	var t uint32
	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return fmt.Errorf("op=hasher.compare: %w", domain.ErrUnauthorized)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("op=hasher.compare: %w", domain.ErrUnauthorized)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("op=hasher.compare: %w", domain.ErrUnauthorized)
	}
	got := argon2.IDKey([]byte(password), salt, t, m, p, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return fmt.Errorf("op=hasher.compare: %w", domain.ErrUnauthorized)
	}
	return nil
}
