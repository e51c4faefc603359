package httpapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/google/uuid"
)

const (
	maxPictureBytes = 5 << 20
	pictureField    = "profilePicture"
	sniffLen        = 512
)

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.AccountFromContext(r.Context())

	var req profileUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.accounts.UpdateProfile(r.Context(), current, services.ProfileUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Profile updated successfully", userData{User: updated})
}

func (h *Handler) uploadPicture(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.AccountFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxPictureBytes+(1<<20))
	file, header, err := r.FormFile(pictureField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge), strings.Contains(err.Error(), "request body too large"):
			writeFail(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 5MB")
		default:
			writeFail(w, http.StatusBadRequest, "No file uploaded")
		}
		return
	}
	defer file.Close()

	if header.Size > maxPictureBytes {
		writeFail(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 5MB")
		return
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		h.writeError(w, r, err)
		return
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		writeFail(w, http.StatusBadRequest, "Only image files are allowed")
		return
	}

	body := io.MultiReader(bytes.NewReader(head), file)
	updated, err := h.avatars.Upload(r.Context(), current, header.Filename, contentType, body, header.Size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Profile picture updated successfully", userData{User: updated})
}

// targetID is the admin route's {userId}. Account ids are UUIDs, so anything
// else names no account.
func targetID(r *http.Request) (string, error) {
	id, err := uuid.Parse(r.PathValue("userId"))
	if err != nil {
		return "", common.ErrAccountNotFound
	}
	return id.String(), nil
}

type activeRequest struct {
	IsActive *bool `json:"isActive"`
}

type banRequest struct {
	IsBanned *bool `json:"isBanned"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, err := targetID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req activeRequest
	if err := decodeJSON(w, r, &req); err != nil || req.IsActive == nil {
		writeFail(w, http.StatusBadRequest, "isActive must be a boolean value")
		return
	}

	updated, err := h.accounts.SetActive(r.Context(), id, *req.IsActive)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	msg := "User deactivated successfully"
	if *req.IsActive {
		msg = "User activated successfully"
	}
	writeOK(w, http.StatusOK, msg, userData{User: updated})
}

func (h *Handler) setBanned(w http.ResponseWriter, r *http.Request) {
	id, err := targetID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req banRequest
	if err := decodeJSON(w, r, &req); err != nil || req.IsBanned == nil {
		writeFail(w, http.StatusBadRequest, "isBanned must be a boolean value")
		return
	}

	updated, err := h.accounts.SetBanned(r.Context(), id, *req.IsBanned)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	msg := "User unbanned successfully"
	if *req.IsBanned {
		msg = "User banned successfully"
	}
	writeOK(w, http.StatusOK, msg, userData{User: updated})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := targetID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.accounts.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "User deleted successfully", nil)
}
