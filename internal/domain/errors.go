package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)

// Verification flow errors.
var (
	ErrValidation             = fmt.Errorf("validation failed: %w", ErrBadRequest)
	ErrChallengeNotFound      = fmt.Errorf("challenge not found: %w", ErrNotFound)
	ErrChallengeExpired       = errors.New("challenge expired")
	ErrCodeMismatch           = fmt.Errorf("code mismatch: %w", ErrUnauthorized)
	ErrTooManyAttempts        = fmt.Errorf("too many attempts: %w", ErrForbidden)
	ErrChallengeState         = fmt.Errorf("challenge state changed: %w", ErrConflict)
	ErrChallengeNotConsumable = errors.New("challenge not consumable")
	ErrCooldownActive         = errors.New("resend cooldown active")
	ErrDownstreamUnavailable  = errors.New("downstream unavailable")
)

// User directory errors.
var (
	ErrUserExists   = fmt.Errorf("user already exists: %w", ErrConflict)
	ErrUserNotFound = fmt.Errorf("user not found: %w", ErrNotFound)
)

// CooldownError carries how long a caller must wait before another resend.
// It matches ErrCooldownActive under errors.Is.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("resend cooldown active, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *CooldownError) Unwrap() error { return ErrCooldownActive }
