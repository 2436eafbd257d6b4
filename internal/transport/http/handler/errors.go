package handler

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-recipes-api/internal/domain"
)

// httpError maps domain errors to status codes. Unrecognised errors are logged
// and reported as 500 without detail.
func httpError(w http.ResponseWriter, err error) {
	var cooldown *domain.CooldownError
	switch {
	case errors.As(err, &cooldown):
		secs := int(math.Ceil(cooldown.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeError(w, http.StatusTooManyRequests, "cooldown_active", err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrUserExists):
		writeError(w, http.StatusConflict, "user_exists", "an account already exists for this email")
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", "no account exists for this email")
	case errors.Is(err, domain.ErrChallengeNotFound):
		writeError(w, http.StatusNotFound, "challenge_not_found", "no active challenge")
	case errors.Is(err, domain.ErrChallengeExpired):
		writeError(w, http.StatusGone, "challenge_expired", "challenge expired")
	case errors.Is(err, domain.ErrCodeMismatch):
		writeError(w, http.StatusUnauthorized, "code_mismatch", err.Error())
	case errors.Is(err, domain.ErrTooManyAttempts):
		writeError(w, http.StatusForbidden, "too_many_attempts", "too many attempts")
	case errors.Is(err, domain.ErrChallengeNotConsumable):
		writeError(w, http.StatusConflict, "challenge_not_consumable", "challenge is not verified or was already used")
	case errors.Is(err, domain.ErrChallengeState), errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "challenge changed concurrently, retry")
	case errors.Is(err, domain.ErrDownstreamUnavailable):
		writeError(w, http.StatusServiceUnavailable, "downstream_unavailable", "service temporarily unavailable")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	default:
		slog.Error("unhandled error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
