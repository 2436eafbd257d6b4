package handler

import (
	"net/http"

	"github.com/go-recipes-api/internal/application/auth"
	"github.com/go-recipes-api/internal/domain"
)

// ChallengeHandler handles challenge issuance and verification endpoints.
type ChallengeHandler struct {
	svc auth.Service
}

func NewChallengeHandler(svc auth.Service) *ChallengeHandler {
	return &ChallengeHandler{svc: svc}
}

func (h *ChallengeHandler) IssueSignup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupChallengeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res, err := h.svc.IssueSignupChallenge(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toIssueEnvelope(res))
}

func (h *ChallengeHandler) IssuePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordResetChallengeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res, err := h.svc.IssuePasswordResetChallenge(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toIssueEnvelope(res))
}

func (h *ChallengeHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req domain.ResendChallengeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res, err := h.svc.ResendChallenge(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toIssueEnvelope(res))
}

func (h *ChallengeHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyChallengeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	ref, err := h.svc.VerifyChallenge(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyEnvelope{VerifiedRef: ref})
}
