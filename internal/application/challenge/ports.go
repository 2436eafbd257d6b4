// Package challenge issues and verifies one-time codes for a (email, purpose) key.
package challenge

import (
	"context"
	"time"

	"github.com/go-recipes-api/internal/domain"
)

// Store persists challenges. Every transition is a single conditional write
// keyed on the challenge ID, so a superseded issuance can never be advanced.
type Store interface {
	Upsert(ctx context.Context, draft domain.ChallengeDraft) (*domain.Challenge, error)
	Get(ctx context.Context, email string, purpose domain.Purpose) (*domain.Challenge, error)
	// RecordAttempt increments the attempt counter and returns its new value.
	// The increment that reaches limit also invalidates the challenge.
	RecordAttempt(ctx context.Context, ref domain.ChallengeRef, limit int) (int, error)
	MarkVerified(ctx context.Context, ref domain.ChallengeRef, limit int) (time.Time, error)
	MarkConsumed(ctx context.Context, ref domain.ChallengeRef) error
}

// UserLookup answers the account-existence preconditions of issuance.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Notifier delivers a templated message to an address.
type Notifier interface {
	Send(ctx context.Context, email, templateID string, payload map[string]string) error
}

// Template IDs understood by the notification gateway.
const (
	TemplateSignupCode        = "signup_code"
	TemplatePasswordResetCode = "password_reset_code"
	TemplateWelcome           = "welcome"
)

func templateFor(p domain.Purpose) string {
	if p == domain.PurposePasswordReset {
		return TemplatePasswordResetCode
	}
	return TemplateSignupCode
}
