package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"

	"greencredits/internal/transport/http/shared"
	"greencredits/internal/user"
	"greencredits/pkg/domainerrors"
)

// Service defines the account operations the handler depends on.
type Service interface {
	SignUp(ctx context.Context, email, password, role string) (string, error)
	SignIn(ctx context.Context, email, password string) (user.SignInResult, error)
}

// Handler exposes the signup and signin endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the account routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/auth/signup", h.handleSignUp)
	r.Post("/api/auth/signin", h.handleSignIn)
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid request body"))
		return
	}

	if _, err := h.service.SignUp(r.Context(), req.Email, req.Password, req.Role); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "User registered successfully!",
	})
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	// Device summary is log-only context for support; it never gates access.
	ua := useragent.New(r.UserAgent())
	browser, version := ua.Browser()
	h.logger.InfoContext(r.Context(), "user signed in",
		"user_id", result.UserID,
		"os", ua.OS(),
		"browser", browser+" "+version,
		"mobile", ua.Mobile(),
	)

	shared.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Sign in successful!",
		"userId":  result.UserID,
		"token":   result.Token,
	})
}
