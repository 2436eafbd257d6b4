package handler

import (
	"net/http"

	"github.com/go-recipes-api/internal/application/auth"
	"github.com/go-recipes-api/internal/domain"
)

// CredentialHandler completes the actions a verified challenge authorizes.
type CredentialHandler struct {
	svc auth.Service
}

func NewCredentialHandler(svc auth.Service) *CredentialHandler {
	return &CredentialHandler{svc: svc}
}

func (h *CredentialHandler) CompleteSignup(w http.ResponseWriter, r *http.Request) {
	var req domain.CompleteSignupRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res, err := h.svc.CompleteSignup(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SignupEnvelope{UserID: res.UserID, SessionToken: res.SessionToken})
}

func (h *CredentialHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKEnvelope{OK: true})
}
