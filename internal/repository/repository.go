package repository

import (
	"context"

	"github.com/brightcrm/brightcrm-auth/internal/account"
	"github.com/brightcrm/brightcrm-auth/internal/domain"
)

// UserRepository is the persistence collaborator for account records.
// Implementations enforce email/username uniqueness at the storage layer
// and serialize login-state mutations per account.
type UserRepository interface {
	Create(ctx context.Context, acct *account.Account) (*account.Account, error)
	GetByID(ctx context.Context, id int64) (*account.Account, error)
	// GetByIdentifier matches email or username, case-normalized.
	GetByIdentifier(ctx context.Context, identifier string) (*account.Account, error)
	// Update persists profile, role, and flag changes.
	Update(ctx context.Context, acct *account.Account) error
	// UpdateLoginState persists credential and lockout fields only.
	UpdateLoginState(ctx context.Context, acct *account.Account) error
	// WithAccountLock loads the account under a row-level lock, runs fn,
	// and persists login-state changes before releasing the lock. fn's
	// error is returned after the state is written, so failed-attempt
	// increments survive a denied authentication.
	WithAccountLock(ctx context.Context, identifier string, fn func(*account.Account) error) (*account.Account, error)

	ListActive(ctx context.Context) ([]*account.Account, error)
	ListByRole(ctx context.Context, role string) ([]*account.Account, error)
	Statistics(ctx context.Context) (domain.Statistics, error)
}
