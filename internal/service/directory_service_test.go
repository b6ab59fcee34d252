package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brightcrm/brightcrm-auth/internal/account"
	"github.com/brightcrm/brightcrm-auth/internal/service"
)

func seedDirectory(t *testing.T, repo *memoryRepo) (adminID, managerID, disabledID int64) {
	t.Helper()
	now := time.Now().UTC()

	admin := account.New("admin", "admin@example.com", now)
	admin.Roles.Add(account.RoleAdmin)
	created, err := repo.Create(context.Background(), admin)
	require.NoError(t, err)
	adminID = created.ID

	manager := account.New("manager", "manager@example.com", now)
	manager.Roles.Add(account.RoleManager)
	created, err = repo.Create(context.Background(), manager)
	require.NoError(t, err)
	managerID = created.ID

	disabled := account.New("disabled", "disabled@example.com", now)
	disabled.Deactivate(now)
	created, err = repo.Create(context.Background(), disabled)
	require.NoError(t, err)
	disabledID = created.ID

	return adminID, managerID, disabledID
}

func TestDirectoryQueries(t *testing.T) {
	repo := newMemoryRepo()
	adminID, managerID, disabledID := seedDirectory(t, repo)
	dir := service.NewDirectoryService(repo)

	active, err := dir.ActiveAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, acct := range active {
		require.NotEqual(t, disabledID, acct.ID)
	}

	admins, err := dir.Admins(context.Background())
	require.NoError(t, err)
	require.Len(t, admins, 1)
	require.Equal(t, adminID, admins[0].ID)

	managers, err := dir.Managers(context.Background())
	require.NoError(t, err)
	require.Len(t, managers, 1)
	require.Equal(t, managerID, managers[0].ID)

	found, err := dir.FindByIdentifier(context.Background(), "manager@example.com")
	require.NoError(t, err)
	require.Equal(t, managerID, found.ID)
}

func TestDirectoryStatistics(t *testing.T) {
	repo := newMemoryRepo()
	seedDirectory(t, repo)
	dir := service.NewDirectoryService(repo)

	stats, err := dir.Statistics(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.Total)
	require.EqualValues(t, 2, stats.Active)
	require.EqualValues(t, 1, stats.Admins)
	require.EqualValues(t, 1, stats.Managers)
}

func TestNewAccountView(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	acct := account.New("ivanov", "ivanov@example.com", now)
	acct.ID = 7
	acct.FirstName = "Ivan"
	acct.LastName = "Ivanov"
	acct.Roles.Add(account.RoleManager)

	view := service.NewAccountView(acct)
	require.EqualValues(t, 7, view.ID)
	require.Equal(t, "Ivan Ivanov", view.FullName)
	require.Contains(t, view.Roles, account.RoleUser)
	require.Contains(t, view.Roles, account.RoleManager)
	require.Equal(t, "2025-06-01 10:30:00", view.CreatedAt)
	require.Empty(t, view.LastLoginAt)
	require.NotEmpty(t, view.AvatarURL)

	login := now.Add(time.Hour)
	acct.LastLoginAt = &login
	view = service.NewAccountView(acct)
	require.Equal(t, "2025-06-01 11:30:00", view.LastLoginAt)
}
