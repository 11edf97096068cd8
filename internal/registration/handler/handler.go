// Package handler exposes the registration flow over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"prato/internal/address/viacep"
	"prato/internal/platform/middleware"
	"prato/internal/registration/models"
	"prato/internal/transport/http/shared"
	dErrors "prato/pkg/domain-errors"
)

// Service defines the registration operations the handler needs.
type Service interface {
	CreateSession(ctx context.Context, t models.RegistrationType, userAgent string) (*models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	SubmitStep1(ctx context.Context, sessionID string, t models.RegistrationType, data *models.Step1Data) (*models.SubmitResult, error)
	SubmitStep2(ctx context.Context, sessionID string, t models.RegistrationType, data *models.Step2Data) (*models.SubmitResult, error)
	CheckDocumentAvailability(ctx context.Context, t models.RegistrationType, document string) (*models.Availability, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// AddressLookup resolves a CEP to an address for form pre-fill.
type AddressLookup interface {
	Lookup(ctx context.Context, cep string) (*models.Address, error)
}

// Handler handles registration endpoints.
type Handler struct {
	logger       *slog.Logger
	service      Service
	addresses    AddressLookup
	jwtValidator middleware.JWTValidator
}

// New creates a registration Handler. addresses may be nil when no CEP
// provider is configured; the lookup endpoint then answers 503.
func New(
	service Service,
	addresses AddressLookup,
	logger *slog.Logger,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		addresses:    addresses,
		jwtValidator: jwtValidator,
	}
}

// Register registers the registration routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	reg := chi.NewRouter()
	reg.Use(middleware.Timeout(30 * time.Second))
	reg.Use(middleware.ContentTypeJSON)

	reg.Post("/session", h.handleCreateSession)
	reg.Get("/session/{sessionID}", h.handleGetSession)
	reg.Post("/cnpj/step1", h.handleStep1(models.TypeCNPJ))
	reg.Post("/cnpj/step2", h.handleStep2(models.TypeCNPJ))
	reg.Post("/cpf/step1", h.handleStep1(models.TypeCPF))
	reg.Post("/cpf/step2", h.handleStep2(models.TypeCPF))
	reg.Get("/validate/document/{docType}/{document}", h.handleValidateDocument)
	reg.Get("/address/cep/{cep}", h.handleAddressLookup)

	reg.Group(func(gr chi.Router) {
		gr.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		gr.Get("/stats", h.handleStats)
	})

	r.Mount("/registration", reg)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeCreateSession(r)
	if err != nil {
		h.warn(ctx, "invalid create session request", err)
		shared.WriteError(w, err)
		return
	}

	session, err := h.service.CreateSession(ctx, req.RegistrationType, r.UserAgent())
	if err != nil {
		h.serviceError(w, r, "create session", err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := sessionIDParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	session, err := h.service.GetSession(ctx, sessionID)
	if err != nil {
		h.serviceError(w, r, "get session", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) handleStep1(t models.RegistrationType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		req, err := decodeStep1(r)
		if err != nil {
			h.warn(ctx, "invalid step1 request", err)
			shared.WriteError(w, err)
			return
		}

		res, err := h.service.SubmitStep1(ctx, req.SessionID, t, &req.Step1Data)
		if err != nil {
			h.serviceError(w, r, "submit step1", err)
			return
		}

		shared.WriteJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) handleStep2(t models.RegistrationType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		req, err := decodeStep2(r)
		if err != nil {
			h.warn(ctx, "invalid step2 request", err)
			shared.WriteError(w, err)
			return
		}

		res, err := h.service.SubmitStep2(ctx, req.SessionID, t, &req.Step2Data)
		if err != nil {
			h.serviceError(w, r, "submit step2", err)
			return
		}

		shared.WriteJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) handleValidateDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docType, document, err := documentParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	avail, err := h.service.CheckDocumentAvailability(ctx, docType, document)
	if err != nil {
		h.serviceError(w, r, "validate document", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, avail)
}

func (h *Handler) handleAddressLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cep, err := cepParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	// Lookup is a convenience pre-fill: unknown CEPs and provider outages
	// degrade to an empty address so the form never blocks on it.
	if h.addresses == nil {
		shared.WriteJSON(w, http.StatusOK, &models.Address{})
		return
	}
	addr, err := h.addresses.Lookup(ctx, cep)
	if err != nil {
		if !errors.Is(err, viacep.ErrNotFound) {
			h.logger.WarnContext(ctx, "address lookup degraded",
				"request_id", middleware.GetRequestID(ctx), "error", err)
		}
		shared.WriteJSON(w, http.StatusOK, &models.Address{})
		return
	}

	shared.WriteJSON(w, http.StatusOK, addr)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.serviceError(w, r, "stats", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) warn(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
}

// serviceError logs server-side failures and writes the mapped envelope.
// Client-caused errors pass through without the error log.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeUnavailable, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, op+" failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	default:
		h.warn(ctx, op+" rejected", err)
	}
	shared.WriteError(w, err)
}
