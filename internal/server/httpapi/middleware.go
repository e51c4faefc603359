package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
)

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestLogger logs each request with method, path, status code, duration
// and remote address, and feeds the HTTP metrics.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		h.metrics.ObserveHTTP(r.Method, route, rec.status, duration)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", duration,
			"remote", r.RemoteAddr,
		}
		switch {
		case rec.status >= 500:
			h.logger.Error(r.Context(), "request", args...)
		case rec.status >= 400:
			h.logger.Warn(r.Context(), "request", args...)
		default:
			h.logger.Info(r.Context(), "request", args...)
		}
	})
}

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// gateMessage is the text the session gate answers with.
func gateMessage(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrSessionAccountMissing):
		return http.StatusUnauthorized, "User not found"
	case errors.Is(err, common.ErrAccountBanned):
		return http.StatusForbidden, "Account is banned"
	case errors.Is(err, common.ErrAccountInactive):
		return http.StatusForbidden, "Account is inactive"
	case common.KindOf(err) == common.KindUnauthorized:
		return http.StatusUnauthorized, "Invalid or expired token"
	}
	return http.StatusInternalServerError, "Internal server error"
}

// authenticate admits only requests carrying a valid access token for an
// account in good standing, and puts that account into the context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			h.metrics.RecordGate(common.ErrorUnauthorized)
			writeFail(w, http.StatusUnauthorized, "No token provided")
			return
		}

		account, err := h.sessions.Authenticate(r.Context(), token)
		h.metrics.RecordGate(err)
		if err != nil {
			status, msg := gateMessage(err)
			if status >= http.StatusInternalServerError {
				h.logger.Error(r.Context(), "session gate failed", "error", err)
			}
			writeFail(w, status, msg)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithAccount(r.Context(), account)))
	})
}

// optionalAuthenticate attaches the account when the token admits it and
// otherwise lets the request through anonymously.
func (h *Handler) optionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if account := h.sessions.AuthenticateOptional(r.Context(), bearerToken(r)); account != nil {
			r = r.WithContext(auth.WithAccount(r.Context(), account))
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin must run after authenticate.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := auth.AccountFromContext(r.Context())
		if !ok || !account.IsAdmin {
			writeFail(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
