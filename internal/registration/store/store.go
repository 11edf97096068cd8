// Package store defines the persistence contracts consumed by the
// registration service. Implementations wrap failures in the sentinel errors
// from pkg/platform/sentinel; the service translates those into coded domain
// errors.
package store

import (
	"context"

	"prato/internal/registration/models"
)

// SessionStore persists in-flight registration sessions. Retention is the
// store's concern: implementations may expire rows via TTL; the service never
// deletes a session.
type SessionStore interface {
	Save(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

// RecordStore persists finalized registrations.
//
// Create must reject a duplicate document for the same registration type with
// sentinel.ErrConflict, and must honor a transaction carried in ctx (see
// pkg/platform/tx) so the uniqueness gate and the insert commit atomically.
type RecordStore interface {
	// FindCompletedByDocument looks up a completed registration by normalized
	// document digits. Returns sentinel.ErrNotFound when the document is free.
	FindCompletedByDocument(ctx context.Context, document string, t models.RegistrationType) (*models.Record, error)
	Create(ctx context.Context, record *models.Record) error
	CountByType(ctx context.Context, t models.RegistrationType) (int, error)
}
