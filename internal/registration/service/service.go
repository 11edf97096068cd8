// Package service implements the two-step registration flow: session
// lifecycle, per-type field validation, document uniqueness, and atomic
// finalization.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"prato/internal/audit"
	"prato/internal/captcha"
	"prato/internal/device"
	"prato/internal/registration/metrics"
	"prato/internal/registration/models"
	"prato/internal/registration/store"
	"prato/pkg/brdoc"
	dErrors "prato/pkg/domain-errors"
	"prato/pkg/platform/sentinel"
)

// Provisioner creates login accounts from finalized registrations. It runs
// after the record commits; its failures are logged, never surfaced.
type Provisioner interface {
	ProvisionFromRecord(ctx context.Context, record *models.Record) error
}

// AccountCounter exposes the account-side totals for the stats endpoint.
type AccountCounter interface {
	CountUsers(ctx context.Context) (int, error)
	CountOrganizations(ctx context.Context) (int, error)
}

// AuditEmitter is a non-blocking sink for lifecycle events.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates registration sessions and finalization.
type Service struct {
	sessions    store.SessionStore
	records     store.RecordStore
	tx          StoreTx
	captcha     captcha.Verifier
	provisioner Provisioner
	accounts    AccountCounter
	auditor     AuditEmitter
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Service)

// WithProvisioner enables account creation on finalization.
func WithProvisioner(p Provisioner) Option {
	return func(s *Service) { s.provisioner = p }
}

// WithAccountCounter feeds user and organization totals into Stats.
func WithAccountCounter(c AccountCounter) Option {
	return func(s *Service) { s.accounts = c }
}

// WithAuditEmitter enables lifecycle audit events.
func WithAuditEmitter(e AuditEmitter) Option {
	return func(s *Service) { s.auditor = e }
}

func New(
	sessions store.SessionStore,
	records store.RecordStore,
	tx StoreTx,
	verifier captcha.Verifier,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		sessions: sessions,
		records:  records,
		tx:       tx,
		captcha:  verifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession starts a registration attempt of the given type. The session
// begins at step 1 and carries a human-readable device name parsed from the
// caller's User-Agent.
func (s *Service) CreateSession(ctx context.Context, t models.RegistrationType, userAgent string) (*models.Session, error) {
	if !t.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "registration type must be CNPJ or CPF")
	}

	now := s.now()
	session := &models.Session{
		ID:        uuid.NewString(),
		Type:      t,
		Step:      models.StepOne,
		Device:    device.ParseUserAgent(userAgent),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, s.storeError(err, "save session")
	}

	s.metrics.IncrementSessionsCreated(string(t))
	s.emitAudit(ctx, audit.Event{
		Kind:             audit.KindSessionCreated,
		SessionID:        session.ID,
		RegistrationType: string(t),
	})
	return session, nil
}

// GetSession returns the current state of a session.
func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeSessionNotFound, "registration session not found")
		}
		return nil, s.storeError(err, "load session")
	}
	return session, nil
}

// SubmitStep1 validates and stores the step-1 field set. Resubmission is
// allowed while the session is not completed; the latest valid data wins.
// The duplicate-document check here is a courtesy for the client; the
// binding check happens again inside finalization.
func (s *Service) SubmitStep1(ctx context.Context, sessionID string, t models.RegistrationType, data *models.Step1Data) (*models.SubmitResult, error) {
	session, err := s.loadSessionForType(ctx, sessionID, t)
	if err != nil {
		return nil, err
	}
	if session.Completed {
		s.metrics.IncrementStepOutcome(string(t), "1", "rejected")
		return nil, dErrors.New(dErrors.CodeSessionStateInvalid, "registration already completed")
	}

	normalizeStep1(t, data)
	if err := validateStep1(t, data); err != nil {
		s.metrics.IncrementStepOutcome(string(t), "1", "invalid")
		return nil, err
	}

	document := data.Document(t)
	if _, err := s.records.FindCompletedByDocument(ctx, document, t); err == nil {
		s.metrics.IncrementDocumentConflict("step1")
		return nil, dErrors.New(dErrors.CodeDocumentAlreadyRegistered, "document already registered")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.storeError(err, "check document")
	}

	session.Step1 = data
	session.Step = models.StepTwo
	session.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, s.storeError(err, "save session")
	}

	s.metrics.IncrementStepOutcome(string(t), "1", "accepted")
	return &models.SubmitResult{NextStep: models.StepTwo}, nil
}

// SubmitStep2 finalizes the registration: captcha, address validation, then
// an atomic uniqueness-check-and-create. Exactly one concurrent finalization
// per document can succeed; the rest see a conflict.
func (s *Service) SubmitStep2(ctx context.Context, sessionID string, t models.RegistrationType, data *models.Step2Data) (*models.SubmitResult, error) {
	started := s.now()

	session, err := s.loadSessionForType(ctx, sessionID, t)
	if err != nil {
		return nil, err
	}
	if session.Completed {
		s.metrics.IncrementStepOutcome(string(t), "2", "rejected")
		return nil, dErrors.New(dErrors.CodeSessionStateInvalid, "registration already completed")
	}
	if session.AwaitingStep1() {
		s.metrics.IncrementStepOutcome(string(t), "2", "rejected")
		return nil, dErrors.New(dErrors.CodeSessionStateInvalid, "step 1 must be completed first")
	}

	if err := validateStep2(t, data); err != nil {
		s.metrics.IncrementStepOutcome(string(t), "2", "invalid")
		return nil, err
	}

	ok, err := s.captcha.Verify(ctx, data.CaptchaToken)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "captcha verification unavailable")
	}
	if !ok {
		s.metrics.IncrementStepOutcome(string(t), "2", "bot_rejected")
		return nil, dErrors.New(dErrors.CodeBotCheckFailed, "captcha verification failed")
	}

	document := session.Step1.Document(t)
	record := &models.Record{
		ID:        uuid.NewString(),
		Type:      t,
		Document:  document,
		Step1:     *session.Step1,
		Address:   data.Address,
		BirthDate: data.DataNascimento,
		CreatedAt: s.now(),
	}

	// Record creation and session completion are one unit: both land inside
	// RunInTx so the transactional store commits them together, and the
	// session write precedes the insert so a session-store failure aborts
	// before anything is recorded.
	completed := *session
	completed.Completed = true
	completed.Step = models.StepTwo
	completed.CompletedID = record.ID
	completed.UpdatedAt = s.now()

	sessionWritten := false
	err = s.tx.RunInTx(ctx, document, func(txCtx context.Context) error {
		if _, err := s.records.FindCompletedByDocument(txCtx, document, t); err == nil {
			return dErrors.New(dErrors.CodeDocumentAlreadyRegistered, "document already registered")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return s.storeError(err, "check document")
		}
		if err := s.sessions.Save(txCtx, &completed); err != nil {
			return s.storeError(err, "save session")
		}
		sessionWritten = true
		if err := s.records.Create(txCtx, record); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeDocumentAlreadyRegistered, "document already registered")
			}
			return s.storeError(err, "create record")
		}
		return nil
	})
	if err != nil {
		// A session store that does not join the transaction (redis) may have
		// persisted the completed marker before the unit failed; restore the
		// step-2-pending state so the client can retry.
		if sessionWritten {
			if rerr := s.sessions.Save(ctx, session); rerr != nil {
				s.logger.ErrorContext(ctx, "session restore failed after aborted finalization",
					"session_id", session.ID, "error", rerr)
				s.emitAudit(ctx, audit.Event{
					Kind:      audit.KindSessionAnomaly,
					SessionID: session.ID,
					Detail:    "session restore failed after aborted finalization",
				})
			}
		}
		if dErrors.HasCode(err, dErrors.CodeDocumentAlreadyRegistered) {
			s.metrics.IncrementDocumentConflict("finalize")
		}
		return nil, err
	}
	*session = completed

	s.metrics.IncrementStepOutcome(string(t), "2", "accepted")
	s.metrics.IncrementCompleted(string(t))
	s.metrics.ObserveFinalizeLatency(s.now().Sub(started))

	if s.provisioner != nil {
		if err := s.provisioner.ProvisionFromRecord(ctx, record); err != nil {
			s.logger.ErrorContext(ctx, "account provisioning failed",
				"registration_id", record.ID, "error", err)
		}
	}

	s.emitAudit(ctx, audit.Event{
		Kind:             audit.KindRegistrationCompleted,
		SessionID:        session.ID,
		RegistrationType: string(t),
		DocumentSuffix:   audit.MaskDocument(document),
		RegistrationID:   record.ID,
	})

	s.logger.InfoContext(ctx, "registration completed",
		"session_id", session.ID,
		"registration_type", t,
		"registration_id", record.ID)

	return &models.SubmitResult{
		RegistrationID: record.ID,
		Completed:      true,
	}, nil
}

// CheckDocumentAvailability answers the live pre-check used while the user
// types. The answer is advisory; nothing is reserved.
func (s *Service) CheckDocumentAvailability(ctx context.Context, t models.RegistrationType, document string) (*models.Availability, error) {
	if !t.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "registration type must be CNPJ or CPF")
	}

	clean := brdoc.NormalizeDigits(document)
	valid := brdoc.ValidateCNPJ(clean)
	if t == models.TypeCPF {
		valid = brdoc.ValidateCPF(clean)
	}
	if !valid {
		return &models.Availability{Available: false, Reason: "invalid_document"}, nil
	}

	_, err := s.records.FindCompletedByDocument(ctx, clean, t)
	switch {
	case err == nil:
		return &models.Availability{Available: false, Reason: "already_registered"}, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return &models.Availability{Available: true}, nil
	default:
		return nil, s.storeError(err, "check document")
	}
}

// Stats aggregates dashboard counts. Account totals are zero when no account
// store is wired.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	cnpj, err := s.records.CountByType(ctx, models.TypeCNPJ)
	if err != nil {
		return nil, s.storeError(err, "count registrations")
	}
	cpf, err := s.records.CountByType(ctx, models.TypeCPF)
	if err != nil {
		return nil, s.storeError(err, "count registrations")
	}

	stats := &models.Stats{CNPJRegistrations: cnpj, CPFRegistrations: cpf}
	if s.accounts != nil {
		if stats.Users, err = s.accounts.CountUsers(ctx); err != nil {
			return nil, s.storeError(err, "count users")
		}
		if stats.Organizations, err = s.accounts.CountOrganizations(ctx); err != nil {
			return nil, s.storeError(err, "count organizations")
		}
	}
	return stats, nil
}

func (s *Service) loadSessionForType(ctx context.Context, sessionID string, t models.RegistrationType) (*models.Session, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Type != t {
		return nil, dErrors.Newf(dErrors.CodeInvalidArgument, "session belongs to the %s flow", session.Type)
	}
	return session, nil
}

func (s *Service) storeError(err error, op string) error {
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, op+" failed")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, op+" failed")
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.now()
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "kind", event.Kind, "error", err)
	}
}
