package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightcrm/brightcrm-auth/internal/account"
	"github.com/brightcrm/brightcrm-auth/internal/domain"
)

// Compile-time interface assertion.
var _ UserRepository = (*PostgresUserRepo)(nil)

// PostgresUserRepo implements UserRepository on pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const accountColumns = `id, username, email, roles, password_hash,
COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(phone, ''),
COALESCE(position, ''), COALESCE(department, ''), COALESCE(notes, ''),
COALESCE(timezone, ''), COALESCE(locale, ''), COALESCE(avatar, ''),
is_active, is_verified, created_at, updated_at, last_login_at,
password_changed_at, failed_login_attempts, locked_until`

const insertUserSQL = `INSERT INTO users (username, email, roles, password_hash,
first_name, last_name, phone, position, department, notes, timezone, locale, avatar,
is_active, is_verified, created_at, password_changed_at, failed_login_attempts, locked_until)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''),
NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''),
$14, $15, $16, $17, $18, $19)
RETURNING ` + accountColumns

const getByIDSQL = `SELECT ` + accountColumns + ` FROM users WHERE id = $1`

const getByIdentifierSQL = `SELECT ` + accountColumns + `
FROM users WHERE lower(email) = $1 OR lower(username) = $1`

const getByIdentifierForUpdateSQL = getByIdentifierSQL + ` FOR UPDATE`

const updateUserSQL = `UPDATE users SET
username = $2, email = $3, roles = $4,
first_name = NULLIF($5, ''), last_name = NULLIF($6, ''), phone = NULLIF($7, ''),
position = NULLIF($8, ''), department = NULLIF($9, ''), notes = NULLIF($10, ''),
timezone = NULLIF($11, ''), locale = NULLIF($12, ''), avatar = NULLIF($13, ''),
is_active = $14, is_verified = $15, updated_at = $16
WHERE id = $1`

const updateLoginStateSQL = `UPDATE users SET
password_hash = $2, password_changed_at = $3, failed_login_attempts = $4,
locked_until = $5, last_login_at = $6, updated_at = $7
WHERE id = $1`

const listActiveSQL = `SELECT ` + accountColumns + `
FROM users WHERE is_active
ORDER BY last_name ASC NULLS LAST, first_name ASC NULLS LAST`

const listByRoleSQL = `SELECT ` + accountColumns + `
FROM users WHERE is_active AND roles @> jsonb_build_array($1::text)
ORDER BY created_at DESC`

const statisticsSQL = `SELECT
COUNT(*),
COUNT(*) FILTER (WHERE is_active),
COUNT(*) FILTER (WHERE roles @> '["ROLE_ADMIN"]'),
COUNT(*) FILTER (WHERE roles @> '["ROLE_MANAGER"]')
FROM users`

func (r *PostgresUserRepo) Create(ctx context.Context, acct *account.Account) (*account.Account, error) {
	roles, err := json.Marshal(acct.Roles.Stored())
	if err != nil {
		return nil, fmt.Errorf("encode roles: %w", err)
	}
	row := r.db.QueryRow(ctx, insertUserSQL,
		acct.Username,
		acct.Email,
		roles,
		acct.Credentials.Hash,
		acct.FirstName,
		acct.LastName,
		acct.Phone,
		acct.Position,
		acct.Department,
		acct.Notes,
		acct.Timezone,
		acct.Locale,
		acct.Avatar,
		acct.IsActive,
		acct.IsVerified,
		acct.CreatedAt,
		acct.Credentials.ChangedAt,
		acct.Lockout.FailedAttempts,
		acct.Lockout.LockedUntil,
	)
	created, err := scanAccount(row)
	if err != nil {
		return nil, mapError("create user", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	acct, err := scanAccount(r.db.QueryRow(ctx, getByIDSQL, id))
	if err != nil {
		return nil, mapError("get user by id", err)
	}
	return acct, nil
}

func (r *PostgresUserRepo) GetByIdentifier(ctx context.Context, identifier string) (*account.Account, error) {
	acct, err := scanAccount(r.db.QueryRow(ctx, getByIdentifierSQL, normalize(identifier)))
	if err != nil {
		return nil, mapError("get user by identifier", err)
	}
	return acct, nil
}

func (r *PostgresUserRepo) Update(ctx context.Context, acct *account.Account) error {
	roles, err := json.Marshal(acct.Roles.Stored())
	if err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}
	tag, err := r.db.Exec(ctx, updateUserSQL,
		acct.ID,
		acct.Username,
		acct.Email,
		roles,
		acct.FirstName,
		acct.LastName,
		acct.Phone,
		acct.Position,
		acct.Department,
		acct.Notes,
		acct.Timezone,
		acct.Locale,
		acct.Avatar,
		acct.IsActive,
		acct.IsVerified,
		acct.UpdatedAt,
	)
	if err != nil {
		return mapError("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user: %w", domain.ErrAccountNotFound)
	}
	return nil
}

func (r *PostgresUserRepo) UpdateLoginState(ctx context.Context, acct *account.Account) error {
	if err := execLoginState(ctx, r.db, acct); err != nil {
		return mapError("update login state", err)
	}
	return nil
}

func (r *PostgresUserRepo) WithAccountLock(ctx context.Context, identifier string, fn func(*account.Account) error) (*account.Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, mapError("begin", err)
	}
	defer tx.Rollback(ctx)

	acct, err := scanAccount(tx.QueryRow(ctx, getByIdentifierForUpdateSQL, normalize(identifier)))
	if err != nil {
		return nil, mapError("lock account row", err)
	}

	fnErr := fn(acct)

	// Login-state mutations are written even when fn reports a denial, so
	// failed-attempt increments and lock transitions are never lost.
	if err := execLoginState(ctx, tx, acct); err != nil {
		return nil, mapError("update login state", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapError("commit", err)
	}
	return acct, fnErr
}

func (r *PostgresUserRepo) ListActive(ctx context.Context) ([]*account.Account, error) {
	return r.list(ctx, listActiveSQL)
}

func (r *PostgresUserRepo) ListByRole(ctx context.Context, role string) ([]*account.Account, error) {
	return r.list(ctx, listByRoleSQL, strings.ToUpper(strings.TrimSpace(role)))
}

func (r *PostgresUserRepo) Statistics(ctx context.Context) (domain.Statistics, error) {
	var stats domain.Statistics
	err := r.db.QueryRow(ctx, statisticsSQL).Scan(&stats.Total, &stats.Active, &stats.Admins, &stats.Managers)
	if err != nil {
		return domain.Statistics{}, mapError("load statistics", err)
	}
	return stats, nil
}

func (r *PostgresUserRepo) list(ctx context.Context, sql string, args ...any) ([]*account.Account, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("list users", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, mapError("scan user", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list users", err)
	}
	return accounts, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func execLoginState(ctx context.Context, db execer, acct *account.Account) error {
	_, err := db.Exec(ctx, updateLoginStateSQL,
		acct.ID,
		acct.Credentials.Hash,
		acct.Credentials.ChangedAt,
		acct.Lockout.FailedAttempts,
		acct.Lockout.LockedUntil,
		acct.LastLoginAt,
		// Written as-is: a pass where the aggregate made no mutation must
		// not bump updated_at.
		acct.UpdatedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var (
		acct      account.Account
		rolesJSON []byte
		hash      string
		changedAt *time.Time
		attempts  int32
		until     *time.Time
	)
	if err := row.Scan(
		&acct.ID,
		&acct.Username,
		&acct.Email,
		&rolesJSON,
		&hash,
		&acct.FirstName,
		&acct.LastName,
		&acct.Phone,
		&acct.Position,
		&acct.Department,
		&acct.Notes,
		&acct.Timezone,
		&acct.Locale,
		&acct.Avatar,
		&acct.IsActive,
		&acct.IsVerified,
		&acct.CreatedAt,
		&acct.UpdatedAt,
		&acct.LastLoginAt,
		&changedAt,
		&attempts,
		&until,
	); err != nil {
		return nil, err
	}

	var roles []string
	if len(rolesJSON) > 0 {
		if err := json.Unmarshal(rolesJSON, &roles); err != nil {
			return nil, fmt.Errorf("decode roles: %w", err)
		}
	}
	acct.Roles = account.NewRoleSet(roles...)
	acct.Credentials = account.Credentials{Hash: hash, ChangedAt: changedAt}
	acct.Lockout = account.Lockout{FailedAttempts: int(attempts), LockedUntil: until}
	return &acct, nil
}

func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, domain.ErrAccountNotFound)
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicateIdentifier)
	default:
		return fmt.Errorf("%s: %w: %s", op, domain.ErrPersistenceUnavailable, err)
	}
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
