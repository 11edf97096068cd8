package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"prato/internal/platform/middleware"
	"prato/internal/transport/http/shared"
	dErrors "prato/pkg/domain-errors"
)

// Handler handles the auth endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	jwtValidator middleware.JWTValidator
}

func NewHandler(service *Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{logger: logger, service: service, jwtValidator: jwtValidator}
}

// Register registers the auth routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	authRouter := chi.NewRouter()
	authRouter.Use(middleware.Timeout(10 * time.Second))
	authRouter.Use(middleware.ContentTypeJSON)

	authRouter.Post("/login", h.handleLogin)
	authRouter.Group(func(gr chi.Router) {
		gr.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		gr.Get("/me", h.handleMe)
	})

	r.Mount("/auth", authRouter)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidArgument, "invalid request body"))
		return
	}
	if !govalidator.StringLength(req.Username, "1", "64") || !govalidator.StringLength(req.Password, "1", "128") {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidArgument, "username and password are required"))
		return
	}

	result, err := h.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			h.logger.ErrorContext(ctx, "login failed",
				"request_id", middleware.GetRequestID(ctx), "error", err.Error())
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, result)
}

type meResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shared.WriteJSON(w, http.StatusOK, meResponse{
		UserID:   middleware.GetUserID(ctx),
		Username: middleware.GetUsername(ctx),
		Role:     middleware.GetRole(ctx),
	})
}
