package service

import (
	"context"

	"github.com/brightcrm/brightcrm-auth/internal/account"
	"github.com/brightcrm/brightcrm-auth/internal/domain"
	"github.com/brightcrm/brightcrm-auth/internal/repository"
)

// DirectoryService exposes the read-side queries used by admin tooling.
type DirectoryService struct {
	users repository.UserRepository
}

func NewDirectoryService(users repository.UserRepository) *DirectoryService {
	return &DirectoryService{users: users}
}

// ActiveAccounts lists enabled accounts ordered by last then first name.
func (s *DirectoryService) ActiveAccounts(ctx context.Context) ([]*account.Account, error) {
	return s.users.ListActive(ctx)
}

// AccountsByRole lists enabled accounts holding the role, newest first.
func (s *DirectoryService) AccountsByRole(ctx context.Context, role string) ([]*account.Account, error) {
	return s.users.ListByRole(ctx, role)
}

// Admins is a shorthand for AccountsByRole(ROLE_ADMIN).
func (s *DirectoryService) Admins(ctx context.Context) ([]*account.Account, error) {
	return s.users.ListByRole(ctx, account.RoleAdmin)
}

// Managers is a shorthand for AccountsByRole(ROLE_MANAGER).
func (s *DirectoryService) Managers(ctx context.Context) ([]*account.Account, error) {
	return s.users.ListByRole(ctx, account.RoleManager)
}

// AccountByID loads a single account.
func (s *DirectoryService) AccountByID(ctx context.Context, id int64) (*account.Account, error) {
	return s.users.GetByID(ctx, id)
}

// FindByIdentifier looks an account up by email or username.
func (s *DirectoryService) FindByIdentifier(ctx context.Context, identifier string) (*account.Account, error) {
	return s.users.GetByIdentifier(ctx, identifier)
}

// Statistics returns the directory aggregate counts.
func (s *DirectoryService) Statistics(ctx context.Context) (domain.Statistics, error) {
	return s.users.Statistics(ctx)
}

// AccountView is the JSON shape served by directory endpoints.
type AccountView struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	FullName    string   `json:"fullName"`
	Roles       []string `json:"roles"`
	IsActive    bool     `json:"isActive"`
	IsVerified  bool     `json:"isVerified"`
	CreatedAt   string   `json:"createdAt"`
	LastLoginAt string   `json:"lastLoginAt,omitempty"`
	AvatarURL   string   `json:"avatarUrl"`
}

const viewTimeLayout = "2006-01-02 15:04:05"

// NewAccountView projects an account into its directory representation.
func NewAccountView(a *account.Account) AccountView {
	view := AccountView{
		ID:         a.ID,
		Username:   a.Username,
		Email:      a.Email,
		FullName:   a.FullName(),
		Roles:      a.Roles.Effective(),
		IsActive:   a.IsActive,
		IsVerified: a.IsVerified,
		CreatedAt:  a.CreatedAt.Format(viewTimeLayout),
		AvatarURL:  a.AvatarURL(),
	}
	if a.LastLoginAt != nil {
		view.LastLoginAt = a.LastLoginAt.Format(viewTimeLayout)
	}
	return view
}

// NewAccountViews projects a slice of accounts.
func NewAccountViews(accounts []*account.Account) []AccountView {
	views := make([]AccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, NewAccountView(a))
	}
	return views
}
