package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const (
	msgResetSent        = "If an account exists with this email, a password reset link has been sent."
	msgVerificationSent = "If an account exists with this email, a verification link has been sent."
)

// sessionData is the payload returned whenever a session is issued.
type sessionData struct {
	User         *models.Account `json:"user"`
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken"`
}

type userData struct {
	User *models.Account `json:"user"`
}

func (h *Handler) issueSession(w http.ResponseWriter, r *http.Request, status int, msg string, a *models.Account) {
	pair, err := h.sessions.Issue(a)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, status, msg, sessionData{User: a, Token: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	account, err := h.identity.SignupLocal(r.Context(), req.Name, req.Email, req.Password)
	h.metrics.RecordAuth("signup", err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.issueSession(w, r, http.StatusCreated,
		"User created successfully. Please check your email for verification.", account)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	account, err := h.identity.LoginLocal(r.Context(), req.Email, req.Password)
	h.metrics.RecordAuth("login", err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.issueSession(w, r, http.StatusOK, "Login successful", account)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeFail(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	pair, _, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	h.metrics.RecordAuth("refresh", err)
	if err != nil {
		status, msg := gateMessage(err)
		if status >= http.StatusInternalServerError {
			h.writeError(w, r, err)
			return
		}
		writeFail(w, status, msg)
		return
	}
	writeOK(w, http.StatusOK, "Token refreshed successfully", pair)
}

func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeFail(w, http.StatusBadRequest, "Verification token is required")
		return
	}

	account, err := h.tokens.VerifyEmail(r.Context(), token)
	h.metrics.RecordAuth("verify_email", err)
	if err != nil {
		if errors.Is(err, common.ErrInvalidOrExpiredToken) {
			writeFail(w, http.StatusBadRequest, "Invalid or expired verification token")
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Email verified successfully", userData{User: account})
}

func (h *Handler) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	err := h.tokens.ResendVerification(r.Context(), req.Email)
	h.metrics.RecordAuth("resend_verification", err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, msgVerificationSent, nil)
}

func (h *Handler) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	err := h.tokens.RequestPasswordReset(r.Context(), req.Email)
	h.metrics.RecordAuth("request_password_reset", err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, msgResetSent, nil)
}

// checkResetToken lets a reset form find out whether its link is still
// usable before asking for a new password.
func (h *Handler) checkResetToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeFail(w, http.StatusBadRequest, "Reset token is required")
		return
	}
	if err := h.tokens.ValidateReset(r.Context(), token); err != nil {
		if errors.Is(err, common.ErrInvalidOrExpiredToken) {
			writeFail(w, http.StatusBadRequest, "Invalid or expired reset token")
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Reset token is valid", nil)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	err := h.tokens.ConsumeReset(r.Context(), req.Token, req.Password)
	h.metrics.RecordAuth("reset_password", err)
	if err != nil {
		if errors.Is(err, common.ErrInvalidOrExpiredToken) {
			writeFail(w, http.StatusBadRequest, "Invalid or expired reset token")
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Password reset successfully", nil)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFromContext(r.Context())
	writeOK(w, http.StatusOK, "User retrieved successfully", userData{User: account})
}

type sessionState struct {
	Authenticated bool            `json:"authenticated"`
	User          *models.Account `json:"user,omitempty"`
}

// session reports who the caller is without rejecting anonymous callers.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	writeOK(w, http.StatusOK, "Session state", sessionState{Authenticated: ok, User: account})
}
