package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are already sent; a failed write means the client went away
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

var kindStatus = map[common.Kind]int{
	common.KindValidation:            http.StatusBadRequest,
	common.KindConflict:              http.StatusConflict,
	common.KindInvalidCredentials:    http.StatusUnauthorized,
	common.KindUnauthorized:          http.StatusUnauthorized,
	common.KindForbidden:             http.StatusForbidden,
	common.KindNotFound:              http.StatusNotFound,
	common.KindInvalidOrExpiredToken: http.StatusBadRequest,
	common.KindInternal:              http.StatusInternalServerError,
}

// messages holds the client-facing text for domain errors.
var messages = []struct {
	err error
	msg string
}{
	{common.ErrEmailTaken, "Email already registered"},
	{common.ErrEmailConflict, "Email already registered with different provider"},
	{common.ErrEmailInUse, "Email already in use"},
	{common.ErrInvalidCredentials, "Invalid credentials"},
	{common.ErrAccountBanned, "Your account has been banned"},
	{common.ErrAccountInactive, "Your account is inactive. Please contact support."},
	{common.ErrAccountNotFound, "User not found"},
	{common.ErrSessionAccountMissing, "User not found"},
	{common.ErrAlreadyVerified, "Email is already verified"},
	{common.ErrInvalidOrExpiredToken, "Invalid or expired token"},
	{common.ErrForbidden, "Forbidden"},
}

// statusAndMessage maps err to a status code and a message safe to show
// the caller. Validation errors carry their own text; internal errors are
// never described.
func statusAndMessage(err error) (int, string) {
	kind := common.KindOf(err)
	status := kindStatus[kind]

	for _, m := range messages {
		if errors.Is(err, m.err) {
			return status, m.msg
		}
	}
	switch kind {
	case common.KindValidation:
		return status, err.Error()
	case common.KindUnauthorized:
		return status, "Invalid or expired token"
	case common.KindInternal:
		return status, "Internal server error"
	}
	return status, http.StatusText(status)
}

// writeError reports err through the envelope, logging internal errors.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusAndMessage(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeFail(w, status, msg)
}

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}
