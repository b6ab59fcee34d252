package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightcrm/brightcrm-auth/internal/account"
	"github.com/brightcrm/brightcrm-auth/internal/config"
	"github.com/brightcrm/brightcrm-auth/internal/domain"
	"github.com/brightcrm/brightcrm-auth/internal/repository"
	"github.com/brightcrm/brightcrm-auth/internal/service"
)

// memoryRepo is an in-memory UserRepository for service tests.
type memoryRepo struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*account.Account
}

var _ repository.UserRepository = (*memoryRepo)(nil)

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, accounts: make(map[int64]*account.Account)}
}

func (m *memoryRepo) Create(_ context.Context, acct *account.Account) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == acct.Email || existing.Username == acct.Username {
			return nil, domain.ErrDuplicateIdentifier
		}
	}
	stored := *acct
	stored.ID = m.nextID
	m.nextID++
	m.accounts[stored.ID] = &stored
	copied := stored
	return &copied, nil
}

func (m *memoryRepo) GetByID(_ context.Context, id int64) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copied := *acct
	return &copied, nil
}

func (m *memoryRepo) GetByIdentifier(_ context.Context, identifier string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct := m.lookupLocked(identifier)
	if acct == nil {
		return nil, domain.ErrAccountNotFound
	}
	copied := *acct
	return &copied, nil
}

func (m *memoryRepo) Update(_ context.Context, acct *account.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acct.ID]; !ok {
		return domain.ErrAccountNotFound
	}
	copied := *acct
	m.accounts[acct.ID] = &copied
	return nil
}

func (m *memoryRepo) UpdateLoginState(_ context.Context, acct *account.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.accounts[acct.ID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	stored.Credentials = acct.Credentials
	stored.Lockout = acct.Lockout
	stored.LastLoginAt = acct.LastLoginAt
	stored.UpdatedAt = acct.UpdatedAt
	return nil
}

func (m *memoryRepo) WithAccountLock(_ context.Context, identifier string, fn func(*account.Account) error) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.lookupLocked(identifier)
	if stored == nil {
		return nil, domain.ErrAccountNotFound
	}
	working := *stored
	fnErr := fn(&working)
	// Login state is written back even when fn denies, matching the
	// row-lock transaction behavior.
	stored.Credentials = working.Credentials
	stored.Lockout = working.Lockout
	stored.LastLoginAt = working.LastLoginAt
	stored.UpdatedAt = working.UpdatedAt
	copied := working
	return &copied, fnErr
}

func (m *memoryRepo) ListActive(_ context.Context) ([]*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*account.Account
	for _, acct := range m.accounts {
		if acct.IsActive {
			copied := *acct
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListByRole(_ context.Context, role string) ([]*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*account.Account
	for _, acct := range m.accounts {
		for _, stored := range acct.Roles.Stored() {
			if stored == role {
				copied := *acct
				out = append(out, &copied)
				break
			}
		}
	}
	return out, nil
}

func (m *memoryRepo) Statistics(_ context.Context) (domain.Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats domain.Statistics
	for _, acct := range m.accounts {
		stats.Total++
		if acct.IsActive {
			stats.Active++
		}
		if acct.Roles.Has(account.RoleAdmin) {
			stats.Admins++
		}
		if acct.Roles.Has(account.RoleManager) {
			stats.Managers++
		}
	}
	return stats, nil
}

func (m *memoryRepo) lookupLocked(identifier string) *account.Account {
	for _, acct := range m.accounts {
		if strings.EqualFold(acct.Email, identifier) || strings.EqualFold(acct.Username, identifier) {
			return acct
		}
	}
	return nil
}

func testConfig() config.Config {
	return config.Config{
		BcryptCost:         4,
		LockoutMaxAttempts: 5,
		LockoutDuration:    15 * time.Minute,
	}
}

type plainHasher struct{}

var _ account.Hasher = plainHasher{}

func (plainHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }
func (plainHasher) Verify(plain, hash string) bool    { return hash == "hashed:"+plain }
func (plainHasher) NeedsRehash(string) bool           { return false }

// rehashHasher flags every stored hash as stale.
type rehashHasher struct{ plainHasher }

func (rehashHasher) NeedsRehash(hash string) bool { return hash == "hashed:old" }

func newTestService(t *testing.T, hasher account.Hasher) (*service.AuthService, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	svc := service.NewAuthService(repo, hasher, testConfig(), zap.NewNop())
	return svc, repo
}

func provisionUser(t *testing.T, svc *service.AuthService, email, password string) int64 {
	t.Helper()
	res, err := svc.Provision(context.Background(), service.ProvisionInput{
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return res.ID
}

func TestAuthenticateSuccess(t *testing.T) {
	svc, repo := newTestService(t, plainHasher{})
	id := provisionUser(t, svc, "ivanov@example.com", "secret")

	acct, err := svc.Authenticate(context.Background(), " Ivanov@Example.COM ", "secret")
	require.NoError(t, err)
	require.Equal(t, id, acct.ID)

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
}

func TestAuthenticateUnknownIdentifierReadsAsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t, plainHasher{})

	_, err := svc.Authenticate(context.Background(), "nobody@example.com", "whatever")
	require.ErrorIs(t, err, domain.ErrBadCredentials)
	require.NotErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAuthenticateLocksAfterRepeatedFailures(t *testing.T) {
	svc, repo := newTestService(t, plainHasher{})
	id := provisionUser(t, svc, "ivanov@example.com", "secret")

	for i := 0; i < 5; i++ {
		_, err := svc.Authenticate(context.Background(), "ivanov@example.com", "wrong")
		require.ErrorIs(t, err, domain.ErrBadCredentials)
	}

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, stored.Lockout.IsLocked(time.Now().UTC()))

	// Even the correct password is denied while locked.
	_, err = svc.Authenticate(context.Background(), "ivanov@example.com", "secret")
	require.ErrorIs(t, err, domain.ErrAccountLocked)
}

func TestAuthenticateFailedAttemptsSurviveDenial(t *testing.T) {
	svc, repo := newTestService(t, plainHasher{})
	id := provisionUser(t, svc, "ivanov@example.com", "secret")

	_, err := svc.Authenticate(context.Background(), "ivanov@example.com", "wrong")
	require.ErrorIs(t, err, domain.ErrBadCredentials)

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 1, stored.Lockout.FailedAttempts)
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	svc, repo := newTestService(t, plainHasher{})
	id := provisionUser(t, svc, "ivanov@example.com", "secret")
	require.NoError(t, svc.Deactivate(context.Background(), id))

	before, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "ivanov@example.com", "secret")
	require.ErrorIs(t, err, domain.ErrAccountInactive)

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 0, stored.Lockout.FailedAttempts)
	// No mutation happened, so the updated timestamp must not move.
	require.Equal(t, before.UpdatedAt, stored.UpdatedAt)

	require.NoError(t, svc.Reactivate(context.Background(), id))
	_, err = svc.Authenticate(context.Background(), "ivanov@example.com", "secret")
	require.NoError(t, err)
}

func TestAuthenticateRehashesStaleHash(t *testing.T) {
	svc, repo := newTestService(t, rehashHasher{})
	id := provisionUser(t, svc, "ivanov@example.com", "old")

	_, err := svc.Authenticate(context.Background(), "ivanov@example.com", "old")
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "hashed:old", stored.Credentials.Hash)
	require.NotNil(t, stored.Credentials.ChangedAt)
}

func TestProvisionRejectsDuplicate(t *testing.T) {
	svc, _ := newTestService(t, plainHasher{})
	provisionUser(t, svc, "admin@example.com", "secret")

	_, err := svc.Provision(context.Background(), service.ProvisionInput{
		Email:    "Admin@Example.com",
		Password: "other",
	})
	require.ErrorIs(t, err, domain.ErrDuplicateIdentifier)
}

func TestProvisionValidatesProfile(t *testing.T) {
	svc, _ := newTestService(t, plainHasher{})

	_, err := svc.Provision(context.Background(), service.ProvisionInput{
		Email:    "not-an-email",
		Password: "secret",
	})
	require.ErrorIs(t, err, domain.ErrInvalidProfile)
}

func TestProvisionAdminAssignsRoles(t *testing.T) {
	svc, repo := newTestService(t, plainHasher{})

	res, err := svc.ProvisionAdmin(context.Background(), service.ProvisionInput{
		Email:     "admin@example.com",
		Password:  "secret",
		FirstName: "Admin",
		LastName:  "Administrator",
	})
	require.NoError(t, err)
	require.Contains(t, res.Roles, account.RoleAdmin)
	require.Contains(t, res.Roles, account.RoleUser)
	require.Equal(t, "Admin Administrator", res.FullName)

	stored, err := repo.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	require.True(t, stored.Roles.Has(account.RoleAdmin))
}

func TestLockAndUnlock(t *testing.T) {
	svc, repo := newTestService(t, plainHasher{})
	id := provisionUser(t, svc, "ivanov@example.com", "secret")

	require.NoError(t, svc.Lock(context.Background(), id, 15*time.Minute))
	_, err := svc.Authenticate(context.Background(), "ivanov@example.com", "secret")
	require.ErrorIs(t, err, domain.ErrAccountLocked)

	require.NoError(t, svc.Unlock(context.Background(), id))
	_, err = svc.Authenticate(context.Background(), "ivanov@example.com", "secret")
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Nil(t, stored.Lockout.LockedUntil)
}

func TestChangePasswordKeepsLock(t *testing.T) {
	svc, repo := newTestService(t, plainHasher{})
	id := provisionUser(t, svc, "ivanov@example.com", "secret")
	require.NoError(t, svc.Lock(context.Background(), id, time.Hour))

	require.NoError(t, svc.ChangePassword(context.Background(), id, "newsecret"))

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, stored.Lockout.IsLocked(time.Now().UTC()))
	require.True(t, stored.Credentials.Verify(plainHasher{}, "newsecret"))
}
