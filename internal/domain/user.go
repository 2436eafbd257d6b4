package domain

import "time"

type User struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	Email        string    `json:"email" dynamodbav:"email"`
	DisplayName  string    `json:"display_name" dynamodbav:"display_name"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

// SignupResult is returned once an account exists.
type SignupResult struct {
	UserID       string `json:"user_id"`
	SessionToken string `json:"session_token"`
}

type SignupChallengeRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=64"`
}

type PasswordResetChallengeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type ResendChallengeRequest struct {
	Email   string  `json:"email" validate:"required,email,max=254"`
	Purpose Purpose `json:"purpose" validate:"required,oneof=signup password_reset"`
}

type VerifyChallengeRequest struct {
	Email   string  `json:"email" validate:"required,email,max=254"`
	Code    string  `json:"code" validate:"required,numeric,min=6,max=10"`
	Purpose Purpose `json:"purpose" validate:"required,oneof=signup password_reset"`
}

type CompleteSignupRequest struct {
	VerifiedRef ChallengeRef `json:"verified_ref"`
	DisplayName string       `json:"display_name" validate:"required,min=1,max=64"`
	Password    string       `json:"password" validate:"required,min=8,max=72"`
}

type ResetPasswordRequest struct {
	VerifiedRef ChallengeRef `json:"verified_ref"`
	NewPassword string       `json:"new_password" validate:"required,min=8,max=72"`
}
