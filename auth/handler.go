package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aluiziolira/bookcatalog/httpx"
)

// Handler serves the login and refresh endpoints.
type Handler struct {
	tokens *Tokens
	logger *slog.Logger
}

// NewHandler returns a Handler issuing tokens from tokens.
func NewHandler(tokens *Tokens, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{tokens: tokens, logger: logger.With(slog.String("component", "auth"))}
}

type LoginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	pair, err := h.tokens.Login(strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.logger.Warn("login rejected", slog.String("username", req.Username))
			httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid username or password", nil)
			return
		}
		h.logger.Error("issue tokens", slog.Any("error", err))
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
		return
	}
	httpx.JSON(w, r, http.StatusOK, pair, nil)
}

type RefreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "refresh_token is required",
			[]httpx.ErrorDetail{{Field: "refresh_token", Message: "required"}})
		return
	}

	access, err := h.tokens.Refresh(req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired refresh token", nil)
			return
		}
		h.logger.Error("refresh token", slog.Any("error", err))
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
		return
	}
	httpx.JSON(w, r, http.StatusOK, map[string]any{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   int(h.tokens.accessTTL.Seconds()),
	}, nil)
}

// Middleware admits only requests carrying a valid access token.
func Middleware(tokens *Tokens) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}
			claims, err := tokens.Parse(strings.TrimPrefix(header, "Bearer "), TypeAccess)
			if err != nil {
				httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(httpx.ContextWithSubject(r.Context(), claims.Subject)))
		})
	}
}
