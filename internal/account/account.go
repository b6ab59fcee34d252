package account

import (
	"fmt"
	"hash/crc32"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/brightcrm/brightcrm-auth/internal/domain"
)

const (
	DefaultTimezone = "Europe/Moscow"
	DefaultLocale   = "ru"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^\+7\d{10}$`)
)

// Account aggregates credentials, roles, lockout state, and profile data
// for one CRM user. All state transitions go through methods; persistence
// is the caller's concern.
type Account struct {
	ID       int64
	Username string
	Email    string

	Roles       RoleSet
	Credentials Credentials
	Lockout     Lockout

	FirstName  string
	LastName   string
	Phone      string
	Position   string
	Department string
	Notes      string
	Timezone   string
	Locale     string
	Avatar     string

	IsActive   bool
	IsVerified bool

	CreatedAt   time.Time
	UpdatedAt   *time.Time
	LastLoginAt *time.Time
}

// New creates an account with defaults applied. The password must be set
// separately through ChangePassword before the account can authenticate.
func New(username, email string, now time.Time) *Account {
	return &Account{
		Username:  strings.TrimSpace(username),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		IsActive:  true,
		Timezone:  DefaultTimezone,
		Locale:    DefaultLocale,
		CreatedAt: now,
	}
}

// Validate checks identity and profile constraints.
func (a *Account) Validate() error {
	if n := len(a.Username); n < 3 || n > 180 {
		return fmt.Errorf("%w: username must be 3-180 characters", domain.ErrInvalidProfile)
	}
	if len(a.Email) > 180 || !emailPattern.MatchString(a.Email) {
		return fmt.Errorf("%w: malformed email", domain.ErrInvalidProfile)
	}
	if a.Phone != "" && !phonePattern.MatchString(a.Phone) {
		return fmt.Errorf("%w: phone must look like +79993332211", domain.ErrInvalidProfile)
	}
	if len(a.FirstName) > 100 || len(a.LastName) > 100 {
		return fmt.Errorf("%w: name must be at most 100 characters", domain.ErrInvalidProfile)
	}
	return nil
}

// Authenticate runs the full admission check at now. Check order: active
// flag first (no lockout side effects for disabled accounts), then lock
// state, then credentials. A mismatch counts a failure; a match resets the
// counter and stamps the login time.
func (a *Account) Authenticate(h Hasher, policy Policy, plain string, now time.Time) error {
	if !a.IsActive {
		return domain.ErrAccountInactive
	}
	if a.Lockout.IsLocked(now) {
		return domain.ErrAccountLocked
	}
	if !a.Credentials.Verify(h, plain) {
		a.Lockout.RecordFailure(policy, now)
		a.touch(now)
		return domain.ErrBadCredentials
	}
	a.Lockout.RecordSuccess()
	login := now
	a.LastLoginAt = &login
	a.touch(now)
	return nil
}

// ChangePassword stores a new password hash. Lock state is deliberately
// left alone.
func (a *Account) ChangePassword(h Hasher, plain string, now time.Time) error {
	if err := a.Credentials.Set(h, plain, now); err != nil {
		return err
	}
	a.touch(now)
	return nil
}

// Deactivate soft-disables the account. Roles and lock state survive.
func (a *Account) Deactivate(now time.Time) {
	a.IsActive = false
	a.touch(now)
}

// Reactivate re-enables the account.
func (a *Account) Reactivate(now time.Time) {
	a.IsActive = true
	a.touch(now)
}

// FullName joins first and last name, falling back to the username.
func (a *Account) FullName() string {
	full := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if full == "" {
		return a.Username
	}
	return full
}

// Initials returns up to two letters for avatar placeholders.
func (a *Account) Initials() string {
	var initials string
	if r := []rune(a.FirstName); len(r) > 0 {
		initials += string(r[0])
	}
	if r := []rune(a.LastName); len(r) > 0 {
		initials += string(r[0])
	}
	if initials != "" {
		return initials
	}
	r := []rune(a.Username)
	if len(r) > 2 {
		r = r[:2]
	}
	return string(r)
}

var avatarColors = []string{"FF6B6B", "4ECDC4", "45B7D1", "96CEB4", "FFEAA7"}

// AvatarURL returns the uploaded avatar path when set, otherwise a
// generated placeholder keyed off the email.
func (a *Account) AvatarURL() string {
	if a.Avatar != "" {
		return "/uploads/avatars/" + a.Avatar
	}
	color := avatarColors[int(crc32.ChecksumIEEE([]byte(a.Email)))%len(avatarColors)]
	return fmt.Sprintf(
		"https://ui-avatars.com/api/?name=%s&background=%s&color=fff&size=128",
		url.QueryEscape(a.Initials()),
		color,
	)
}

func (a *Account) touch(now time.Time) {
	updated := now
	a.UpdatedAt = &updated
}
