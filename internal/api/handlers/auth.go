package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/auth"
)

// Passcode attempts allowed by default: a burst of VerifyBurst, refilled one
// every VerifyInterval.
const (
	VerifyBurst    = 5
	VerifyInterval = 12 * time.Second
)

// AuthHandler handles the passcode gate.
type AuthHandler struct {
	verifier     *auth.Verifier
	secureCookie bool
	limiter      *rate.Limiter
	log          zerolog.Logger
}

// AuthOption configures an AuthHandler.
type AuthOption func(*AuthHandler)

// WithVerifyLimiter replaces the limiter on passcode attempts.
func WithVerifyLimiter(l *rate.Limiter) AuthOption {
	return func(h *AuthHandler) {
		if l != nil {
			h.limiter = l
		}
	}
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(verifier *auth.Verifier, secureCookie bool, log zerolog.Logger, opts ...AuthOption) *AuthHandler {
	h := &AuthHandler{
		verifier:     verifier,
		secureCookie: secureCookie,
		limiter:      rate.NewLimiter(rate.Every(VerifyInterval), VerifyBurst),
		log:          log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// sessionCookie has no MaxAge so the browser drops it when it closes; the
// server side session expires on its own.
func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     auth.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// Verify handles POST /api/auth/verify
//
// Attempts are rate limited across all clients; over the limit the answer is
// 429 without checking the passcode.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if res := h.limiter.Reserve(); !res.OK() || res.Delay() > 0 {
		wait := res.Delay()
		res.Cancel()
		h.log.Warn().Str("remote_addr", r.RemoteAddr).Dur("retry_after", wait).Msg("Too many passcode attempts")
		if res.OK() {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
		middleware.WriteError(w, http.StatusTooManyRequests, "Too many attempts")
		return
	}

	var req struct {
		Passcode string `json:"passcode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.verifier.Verify(r.Context(), req.Passcode)
	switch {
	case errors.Is(err, auth.ErrNotConfigured):
		h.log.Error().Msg("DASHBOARD_PASSCODE is not configured")
		middleware.WriteError(w, http.StatusInternalServerError, "Passcode not configured on server")
		return
	case errors.Is(err, auth.ErrInvalidPasscode):
		h.log.Warn().Str("remote_addr", r.RemoteAddr).Msg("Invalid passcode")
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid passcode")
		return
	case err != nil:
		h.log.Error().Err(err).Msg("Failed to verify passcode")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to verify passcode")
		return
	}

	http.SetCookie(w, h.sessionCookie(session.Token, 0))
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
}

// Status handles GET /api/auth/verify
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	authenticated := false
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		_, err := h.verifier.Authenticate(r.Context(), cookie.Value)
		authenticated = err == nil
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"authenticated": authenticated})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		if err := h.verifier.Revoke(r.Context(), cookie.Value); err != nil {
			h.log.Error().Err(err).Msg("Failed to revoke session")
		}
	}
	http.SetCookie(w, h.sessionCookie("", -1))
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
}
