package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prato/pkg/platform/sentinel"
)

// PostgresStore persists accounts in PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS organizations (
    id              TEXT PRIMARY KEY,
    cnpj            TEXT NOT NULL DEFAULT '',
    name            TEXT NOT NULL,
    address         TEXT NOT NULL DEFAULT '',
    email           TEXT NOT NULL,
    registration_id TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
    id                TEXT PRIMARY KEY,
    username          TEXT NOT NULL UNIQUE,
    email             TEXT NOT NULL,
    hashed_password   TEXT NOT NULL,
    organization_id   TEXT NOT NULL DEFAULT '',
    role              TEXT NOT NULL,
    first_name        TEXT NOT NULL DEFAULT '',
    last_name         TEXT NOT NULL DEFAULT '',
    registration_type TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the account tables when absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure account schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveUser(ctx context.Context, user *User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users
			(id, username, email, hashed_password, organization_id, role, first_name, last_name, registration_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (username) DO UPDATE SET
			email = EXCLUDED.email,
			organization_id = EXCLUDED.organization_id,
			role = EXCLUDED.role`,
		user.ID, user.Username, user.Email, user.HashedPassword, user.OrganizationID,
		user.Role, user.FirstName, user.LastName, user.RegistrationType, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: save user: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, email, hashed_password, organization_id, role, first_name, last_name, registration_type, created_at
		FROM users WHERE username = $1`, username).
		Scan(&user.ID, &user.Username, &user.Email, &user.HashedPassword, &user.OrganizationID,
			&user.Role, &user.FirstName, &user.LastName, &user.RegistrationType, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%w: find user: %w", sentinel.ErrUnavailable, err)
	}
	return &user, nil
}

func (s *PostgresStore) SaveOrganization(ctx context.Context, org *Organization) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO organizations (id, cnpj, name, address, email, registration_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		org.ID, org.CNPJ, org.Name, org.Address, org.Email, org.RegistrationID, org.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: save organization: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count users: %w", sentinel.ErrUnavailable, err)
	}
	return n, nil
}

func (s *PostgresStore) CountOrganizations(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count organizations: %w", sentinel.ErrUnavailable, err)
	}
	return n, nil
}
