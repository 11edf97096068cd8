// Package postgres persists registration sessions and finalized records in
// PostgreSQL via pgx. It is the authoritative store: the unique index on
// (registration_type, document) is what ultimately guarantees that two
// concurrent finalizations for the same document cannot both succeed.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"prato/internal/registration/models"
	"prato/pkg/platform/sentinel"
	platformtx "prato/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Store implements store.SessionStore and store.RecordStore on a pgx pool.
// All queries honor a transaction carried in ctx via pkg/platform/tx.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Schema is applied at startup. TTL-style expiry of stale sessions is the
// operator's concern (a periodic DELETE on updated_at); the service never
// deletes sessions.
const Schema = `
CREATE TABLE IF NOT EXISTS registration_sessions (
    session_id        TEXT PRIMARY KEY,
    registration_type TEXT NOT NULL,
    step              INT  NOT NULL DEFAULT 1,
    is_completed      BOOLEAN NOT NULL DEFAULT FALSE,
    step1_data        JSONB,
    device            TEXT NOT NULL DEFAULT '',
    registration_id   TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS registrations (
    id                TEXT PRIMARY KEY,
    registration_type TEXT NOT NULL,
    document          TEXT NOT NULL,
    step1_data        JSONB NOT NULL,
    cep               TEXT NOT NULL,
    endereco          TEXT NOT NULL,
    bairro            TEXT NOT NULL,
    cidade            TEXT NOT NULL,
    estado            TEXT NOT NULL,
    data_nascimento   TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL,
    UNIQUE (registration_type, document)
);
`

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// querier returns the ctx transaction when one is active, else the pool.
func (s *Store) querier(ctx context.Context) querier {
	if tx, ok := platformtx.From(ctx); ok {
		return tx
	}
	return s.pool
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RunInTx executes fn inside one database transaction. The document key is
// accepted for interface compatibility with the in-memory serializer; the
// unique index makes per-key locking unnecessary here.
func (s *Store) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", sentinel.ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(platformtx.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("%w: commit tx: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, session *models.Session) error {
	var step1 []byte
	if session.Step1 != nil {
		var err error
		step1, err = json.Marshal(session.Step1)
		if err != nil {
			return fmt.Errorf("marshal step1 data: %w", err)
		}
	}
	_, err := s.querier(ctx).Exec(ctx, `
		INSERT INTO registration_sessions
			(session_id, registration_type, step, is_completed, step1_data, device, registration_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE SET
			step = EXCLUDED.step,
			is_completed = EXCLUDED.is_completed,
			step1_data = EXCLUDED.step1_data,
			registration_id = EXCLUDED.registration_id,
			updated_at = EXCLUDED.updated_at`,
		session.ID, string(session.Type), session.Step, session.Completed,
		step1, session.Device, session.CompletedID, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: save session: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.Session, error) {
	var (
		session models.Session
		regType string
		step1   []byte
	)
	err := s.querier(ctx).QueryRow(ctx, `
		SELECT session_id, registration_type, step, is_completed, step1_data, device, registration_id, created_at, updated_at
		FROM registration_sessions WHERE session_id = $1`, id).
		Scan(&session.ID, &regType, &session.Step, &session.Completed,
			&step1, &session.Device, &session.CompletedID, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%w: find session: %w", sentinel.ErrUnavailable, err)
	}
	session.Type = models.RegistrationType(regType)
	if len(step1) > 0 {
		session.Step1 = &models.Step1Data{}
		if err := json.Unmarshal(step1, session.Step1); err != nil {
			return nil, fmt.Errorf("unmarshal step1 data: %w", err)
		}
	}
	return &session, nil
}

func (s *Store) FindCompletedByDocument(ctx context.Context, document string, t models.RegistrationType) (*models.Record, error) {
	var (
		record  models.Record
		regType string
		step1   []byte
	)
	err := s.querier(ctx).QueryRow(ctx, `
		SELECT id, registration_type, document, step1_data, cep, endereco, bairro, cidade, estado, data_nascimento, created_at
		FROM registrations WHERE registration_type = $1 AND document = $2`,
		string(t), document).
		Scan(&record.ID, &regType, &record.Document, &step1,
			&record.Address.CEP, &record.Address.Endereco, &record.Address.Bairro,
			&record.Address.Cidade, &record.Address.Estado, &record.BirthDate, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%w: find registration: %w", sentinel.ErrUnavailable, err)
	}
	record.Type = models.RegistrationType(regType)
	if err := json.Unmarshal(step1, &record.Step1); err != nil {
		return nil, fmt.Errorf("unmarshal step1 data: %w", err)
	}
	return &record, nil
}

func (s *Store) Create(ctx context.Context, record *models.Record) error {
	step1, err := json.Marshal(record.Step1)
	if err != nil {
		return fmt.Errorf("marshal step1 data: %w", err)
	}
	_, err = s.querier(ctx).Exec(ctx, `
		INSERT INTO registrations
			(id, registration_type, document, step1_data, cep, endereco, bairro, cidade, estado, data_nascimento, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.ID, string(record.Type), record.Document, step1,
		record.Address.CEP, record.Address.Endereco, record.Address.Bairro,
		record.Address.Cidade, record.Address.Estado, record.BirthDate, record.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("%w: create registration: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) CountByType(ctx context.Context, t models.RegistrationType) (int, error) {
	var n int
	err := s.querier(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE registration_type = $1`, string(t)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count registrations: %w", sentinel.ErrUnavailable, err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
