package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iconidentify/vodgrabba/internal/domain"
)

// TokenStore manages the saved Twitch OAuth token.
type TokenStore interface {
	SetAuthToken(ctx context.Context, token string) error
	AuthToken(ctx context.Context) (string, error)
	ClearAuthToken(ctx context.Context) error
}

// AuthTokenHandler exposes the saved token over the API.
type AuthTokenHandler struct {
	store  TokenStore
	logger *slog.Logger
}

// NewAuthTokenHandler creates a new auth token handler.
func NewAuthTokenHandler(store TokenStore, logger *slog.Logger) *AuthTokenHandler {
	return &AuthTokenHandler{
		store:  store,
		logger: logger,
	}
}

// TokenRequest is the body of PUT /api/v1/auth/token.
type TokenRequest struct {
	Token string `json:"token"`
}

// TokenResponse reports whether a token is saved. The token itself is masked.
type TokenResponse struct {
	Configured bool   `json:"configured"`
	Token      string `json:"token,omitempty"`
}

// Get handles GET /api/v1/auth/token
func (h *AuthTokenHandler) Get(w http.ResponseWriter, r *http.Request) {
	token, err := h.store.AuthToken(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrSettingNotFound) {
			writeJSON(w, http.StatusOK, TokenResponse{Configured: false})
			return
		}
		h.logger.Error("read auth token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read auth token")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		Configured: true,
		Token:      maskToken(token),
	})
}

// Put handles PUT /api/v1/auth/token
func (h *AuthTokenHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.SetAuthToken(r.Context(), req.Token); err != nil {
		if errors.Is(err, domain.ErrEmptyAuthToken) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("save auth token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save auth token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/auth/token
func (h *AuthTokenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearAuthToken(r.Context()); err != nil {
		h.logger.Error("clear auth token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear auth token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// maskToken keeps the last four characters.
func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
