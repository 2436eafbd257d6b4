package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-recipes-api/internal/domain"
)

const maxBodyBytes = 16 << 10

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// IssueEnvelope wraps challenge issuance responses.
type IssueEnvelope struct {
	Accepted     bool   `json:"accepted"`
	Notified     bool   `json:"notified"`
	FallbackCode string `json:"fallback_code,omitempty"`
}

// VerifyEnvelope wraps a successful verification.
type VerifyEnvelope struct {
	VerifiedRef *domain.VerifiedRef `json:"verified_ref"`
}

// SignupEnvelope wraps a completed signup.
type SignupEnvelope struct {
	UserID       string `json:"user_id"`
	SessionToken string `json:"session_token"`
}

// OKEnvelope wraps operations that only report success.
type OKEnvelope struct {
	OK bool `json:"ok"`
}

func toIssueEnvelope(r *domain.IssueResult) IssueEnvelope {
	return IssueEnvelope{Accepted: r.Accepted, Notified: r.Notified, FallbackCode: r.FallbackCode}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, ErrorCode: code})
}

// decode reads a single JSON object from the request body.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}
