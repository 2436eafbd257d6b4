package domain

import "time"

// Purpose is the protected action a challenge authorizes.
type Purpose string

const (
	PurposeSignup        Purpose = "signup"
	PurposePasswordReset Purpose = "password_reset"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeSignup || p == PurposePasswordReset
}

// ChallengeState is the stored lifecycle state. Expiry is never stored;
// it is derived from ExpiresAt on every read.
type ChallengeState string

const (
	StatePending     ChallengeState = "pending"
	StateVerified    ChallengeState = "verified"
	StateConsumed    ChallengeState = "consumed"
	StateInvalidated ChallengeState = "invalidated"
	StateExpired     ChallengeState = "expired"
)

// Challenge is one OTP issuance for an (email, purpose) key.
// PK: email, SK: purpose. PurgeAt is a Unix timestamp used as DynamoDB TTL.
type Challenge struct {
	Email         string         `json:"email" dynamodbav:"email"`
	Purpose       Purpose        `json:"purpose" dynamodbav:"purpose"`
	ChallengeID   string         `json:"challenge_id" dynamodbav:"challenge_id"`
	CodeHash      string         `json:"-" dynamodbav:"code_hash"`
	CodeSalt      string         `json:"-" dynamodbav:"code_salt"`
	DisplayName   string         `json:"display_name,omitempty" dynamodbav:"display_name,omitempty"`
	State         ChallengeState `json:"state" dynamodbav:"state"`
	AttemptCount  int            `json:"attempt_count" dynamodbav:"attempt_count"`
	CreatedAt     time.Time      `json:"created_at" dynamodbav:"created_at,unixtime"`
	ExpiresAt     time.Time      `json:"expires_at" dynamodbav:"expires_at,unixtime"`
	VerifiedAt    *time.Time     `json:"verified_at,omitempty" dynamodbav:"verified_at,omitempty"`
	ConsumedAt    *time.Time     `json:"consumed_at,omitempty" dynamodbav:"consumed_at,omitempty"`
	InvalidatedAt *time.Time     `json:"invalidated_at,omitempty" dynamodbav:"invalidated_at,omitempty"`
	PurgeAt       int64          `json:"-" dynamodbav:"purge_at"` // TTL (Unix seconds)
}

// ChallengeDraft carries what the issuer decides; the store fills in identity and timestamps.
type ChallengeDraft struct {
	Email       string
	Purpose     Purpose
	CodeHash    string
	CodeSalt    string
	DisplayName string
	TTL         time.Duration
}

// ChallengeRef addresses one specific issuance. Store transitions are conditioned on
// ChallengeID so a superseded issuance can never be advanced.
type ChallengeRef struct {
	ChallengeID string  `json:"challenge_id" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Purpose     Purpose `json:"purpose" validate:"required,oneof=signup password_reset"`
}

// VerifiedRef is handed out by a successful verification and later presented
// to complete the protected action.
type VerifiedRef struct {
	ChallengeRef
	VerifiedAt time.Time `json:"verified_at"`
}

// Ref returns the reference addressing this issuance.
func (c *Challenge) Ref() ChallengeRef {
	return ChallengeRef{ChallengeID: c.ChallengeID, Email: c.Email, Purpose: c.Purpose}
}

// IsExpired reports whether now is past ExpiresAt.
func (c *Challenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// StateAt returns the effective state at now, folding expiry into the stored state.
// Consumed and invalidated are terminal and take precedence over expiry.
func (c *Challenge) StateAt(now time.Time) ChallengeState {
	switch c.State {
	case StatePending, StateVerified:
		if c.IsExpired(now) {
			return StateExpired
		}
	}
	return c.State
}

// AttemptsExhausted reports whether the attempt budget is spent.
func (c *Challenge) AttemptsExhausted(limit int) bool {
	return c.State == StateInvalidated || c.AttemptCount >= limit
}

// Consumable reports whether ref may be used to complete the protected action at now.
func (c *Challenge) Consumable(ref ChallengeRef, now time.Time) bool {
	return c.ChallengeID == ref.ChallengeID &&
		c.Purpose == ref.Purpose &&
		c.StateAt(now) == StateVerified
}

// IssueResult reports the outcome of an issuance. FallbackCode is only ever
// populated by an issuer explicitly constructed in test mode.
type IssueResult struct {
	Accepted     bool   `json:"accepted"`
	Notified     bool   `json:"notified"`
	FallbackCode string `json:"fallback_code,omitempty"`
}
