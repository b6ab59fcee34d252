package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brightcrm/brightcrm-auth/internal/account"
	"github.com/brightcrm/brightcrm-auth/internal/config"
	"github.com/brightcrm/brightcrm-auth/internal/domain"
	"github.com/brightcrm/brightcrm-auth/internal/repository"
)

// AuthService owns authentication and account lifecycle flows.
type AuthService struct {
	users  repository.UserRepository
	hasher account.Hasher
	policy account.Policy
	logger *zap.Logger
}

func NewAuthService(users repository.UserRepository, hasher account.Hasher, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		policy: account.Policy{
			MaxAttempts:  cfg.LockoutMaxAttempts,
			LockDuration: cfg.LockoutDuration,
		},
		logger: logger,
	}
}

// Authenticate checks credentials for the identifier (email or username)
// and returns the admitted account. Denials come back as typed errors;
// an unknown identifier reads as bad credentials so transports cannot
// leak account existence. The repository serializes the attempt against
// concurrent logins for the same account.
func (s *AuthService) Authenticate(ctx context.Context, identifier, password string) (*account.Account, error) {
	now := time.Now().UTC()
	normalized := normalizeIdentifier(identifier)

	acct, err := s.users.WithAccountLock(ctx, normalized, func(a *account.Account) error {
		if err := a.Authenticate(s.hasher, s.policy, password, now); err != nil {
			return err
		}
		// Transparent rehash when the configured cost changed.
		if s.hasher.NeedsRehash(a.Credentials.Hash) {
			if err := a.ChangePassword(s.hasher, password, now); err != nil {
				s.log().Warn("password rehash failed", zap.Int64("user_id", a.ID), zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			s.audit("login.unknown_identifier", "identifier", normalized)
			return nil, domain.ErrBadCredentials
		case errors.Is(err, domain.ErrAccountInactive):
			s.audit("login.inactive", "identifier", normalized, "user_id", acct.ID)
			return nil, err
		case errors.Is(err, domain.ErrAccountLocked):
			s.audit("login.locked", "identifier", normalized, "user_id", acct.ID)
			return nil, err
		case errors.Is(err, domain.ErrBadCredentials):
			s.audit("login.bad_credentials",
				"identifier", normalized,
				"user_id", acct.ID,
				"failed_attempts", acct.Lockout.FailedAttempts,
				"locked", acct.Lockout.IsLocked(now),
			)
			return nil, err
		default:
			return nil, err
		}
	}

	s.audit("login.success", "user_id", acct.ID)
	return acct, nil
}

// ProvisionInput carries administrative account creation parameters.
type ProvisionInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Roles     []string
}

// ProvisionResult is the confirmation payload for a created account.
type ProvisionResult struct {
	ID        int64
	Email     string
	FullName  string
	Roles     []string
	CreatedAt time.Time
}

// Provision creates an account with the given roles. The username
// defaults to the email, matching how administrators are bootstrapped.
func (s *AuthService) Provision(ctx context.Context, in ProvisionInput) (*ProvisionResult, error) {
	email := normalizeIdentifier(in.Email)

	if _, err := s.users.GetByIdentifier(ctx, email); err == nil {
		return nil, fmt.Errorf("provision %q: %w", email, domain.ErrDuplicateIdentifier)
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("check existing account: %w", err)
	}

	now := time.Now().UTC()
	acct := account.New(email, email, now)
	acct.FirstName = strings.TrimSpace(in.FirstName)
	acct.LastName = strings.TrimSpace(in.LastName)
	for _, role := range in.Roles {
		acct.Roles.Add(role)
	}
	if err := acct.Validate(); err != nil {
		return nil, err
	}
	if err := acct.ChangePassword(s.hasher, in.Password, now); err != nil {
		return nil, err
	}

	created, err := s.users.Create(ctx, acct)
	if err != nil {
		return nil, err
	}

	s.audit("account.provisioned", "user_id", created.ID, "email", created.Email, "roles", created.Roles.Effective())
	return &ProvisionResult{
		ID:        created.ID,
		Email:     created.Email,
		FullName:  created.FullName(),
		Roles:     created.Roles.Effective(),
		CreatedAt: created.CreatedAt,
	}, nil
}

// ProvisionAdmin bootstraps an administrator account.
func (s *AuthService) ProvisionAdmin(ctx context.Context, in ProvisionInput) (*ProvisionResult, error) {
	in.Roles = []string{account.RoleAdmin, account.RoleUser}
	return s.Provision(ctx, in)
}

// ChangePassword sets a new password for the account. Lock state is not
// cleared; an administrator unlocks explicitly if needed.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, newPlain string) error {
	acct, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := acct.ChangePassword(s.hasher, newPlain, now); err != nil {
		return err
	}
	if err := s.users.UpdateLoginState(ctx, acct); err != nil {
		return err
	}
	s.audit("account.password_changed", "user_id", acct.ID)
	return nil
}

// Lock imposes an administrative lock for the given duration.
func (s *AuthService) Lock(ctx context.Context, userID int64, d time.Duration) error {
	acct, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	acct.Lockout.Lock(d, time.Now().UTC())
	if err := s.users.UpdateLoginState(ctx, acct); err != nil {
		return err
	}
	s.audit("account.locked", "user_id", acct.ID, "until", acct.Lockout.LockedUntil)
	return nil
}

// Unlock lifts any lock immediately, expired or not.
func (s *AuthService) Unlock(ctx context.Context, userID int64) error {
	acct, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	acct.Lockout.Unlock()
	if err := s.users.UpdateLoginState(ctx, acct); err != nil {
		return err
	}
	s.audit("account.unlocked", "user_id", acct.ID)
	return nil
}

// Deactivate soft-disables an account. Deactivated accounts never
// authenticate; this is the terminal state instead of deletion.
func (s *AuthService) Deactivate(ctx context.Context, userID int64) error {
	return s.setActive(ctx, userID, false)
}

// Reactivate re-enables a deactivated account.
func (s *AuthService) Reactivate(ctx context.Context, userID int64) error {
	return s.setActive(ctx, userID, true)
}

func (s *AuthService) setActive(ctx context.Context, userID int64, active bool) error {
	acct, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if active {
		acct.Reactivate(now)
	} else {
		acct.Deactivate(now)
	}
	if err := s.users.Update(ctx, acct); err != nil {
		return err
	}
	s.audit("account.active_changed", "user_id", acct.ID, "is_active", active)
	return nil
}

func (s *AuthService) audit(event string, kv ...any) {
	s.log().Sugar().Infow(event, kv...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func normalizeIdentifier(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
