package account

import (
	"fmt"
	"strings"
	"time"
)

// Hasher is the external hashing collaborator. Implementations must fail
// closed: any internal error during comparison reads as no-match.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
	// NeedsRehash reports whether the stored hash was produced with stale
	// parameters and should be regenerated on the next successful login.
	NeedsRehash(hash string) bool
}

// Credentials owns the password hash and its change timestamp.
type Credentials struct {
	Hash      string
	ChangedAt *time.Time
}

// Set hashes the plaintext through the collaborator and stamps the change
// time. The hash is never empty after a successful Set.
func (c *Credentials) Set(h Hasher, plain string, now time.Time) error {
	if strings.TrimSpace(plain) == "" {
		return fmt.Errorf("set password: empty password")
	}
	hashed, err := h.Hash(plain)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	c.Hash = hashed
	changed := now
	c.ChangedAt = &changed
	return nil
}

// Verify compares the plaintext against the stored hash.
func (c Credentials) Verify(h Hasher, plain string) bool {
	if c.Hash == "" {
		return false
	}
	return h.Verify(plain, c.Hash)
}
