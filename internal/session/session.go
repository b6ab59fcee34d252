package session

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/brightcrm/brightcrm-auth/internal/account"
)

// Claims are the custom session claims carried next to the standard set.
type Claims struct {
	Email    string   `json:"email"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// Manager issues and validates signed session tokens. Session mechanics
// stay entirely outside the account core: the transport layer calls Issue
// after an admitted authentication and sets the result as a cookie.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewManager(secret, issuer string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a session token for the account.
func (m *Manager) Issue(acct *account.Account, now time.Time) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: m.secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("create signer: %w", err)
	}

	std := jwt.Claims{
		Subject:  strconv.FormatInt(acct.ID, 10),
		Issuer:   m.issuer,
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(m.ttl)),
	}
	custom := Claims{
		Email:    acct.Email,
		Username: acct.Username,
		Roles:    acct.Roles.Effective(),
	}

	token, err := jwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// Validate verifies the signature, issuer, and expiry, and returns the
// account id with the custom claims.
func (m *Manager) Validate(token string, now time.Time) (int64, *Claims, error) {
	parsed, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return 0, nil, fmt.Errorf("parse session token: %w", err)
	}

	var (
		std    jwt.Claims
		custom Claims
	)
	if err := parsed.Claims(m.secret, &std, &custom); err != nil {
		return 0, nil, fmt.Errorf("verify session token: %w", err)
	}
	if err := std.Validate(jwt.Expected{Issuer: m.issuer, Time: now}); err != nil {
		return 0, nil, fmt.Errorf("validate session claims: %w", err)
	}

	userID, err := strconv.ParseInt(std.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, nil, fmt.Errorf("invalid subject claim")
	}
	return userID, &custom, nil
}
