package hash

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/brightcrm/brightcrm-auth/internal/account"
)

var _ account.Hasher = (*Bcrypt)(nil)

// Bcrypt implements the hashing collaborator on top of x/crypto bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt builds a hasher with the given cost. Out-of-range values fall
// back to the library default.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify fails closed: malformed hashes and internal errors read as
// no-match.
func (b *Bcrypt) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NeedsRehash reports whether the stored hash was generated with a cost
// other than the configured one.
func (b *Bcrypt) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != b.cost
}
