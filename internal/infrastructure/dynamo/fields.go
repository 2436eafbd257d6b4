package dynamo

// DynamoDB attribute names used in key, condition and update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEmail         = "email"
	fieldPurpose       = "purpose"
	fieldChallengeID   = "challenge_id"
	fieldState         = "state"
	fieldAttemptCount  = "attempt_count"
	fieldCreatedAt     = "created_at"
	fieldExpiresAt     = "expires_at"
	fieldVerifiedAt    = "verified_at"
	fieldConsumedAt    = "consumed_at"
	fieldInvalidatedAt = "invalidated_at"
	fieldUserID        = "user_id"
	fieldPasswordHash  = "password_hash"
	fieldUpdatedAt     = "updated_at"
	fieldPurgeAt       = "purge_at"
)
