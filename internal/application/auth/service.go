// Package auth exposes the identity verification flows behind request validation
// and a per-operation deadline.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-recipes-api/internal/domain"
	"github.com/go-recipes-api/internal/pkg/validate"
)

type Service interface {
	IssueSignupChallenge(ctx context.Context, req domain.SignupChallengeRequest) (*domain.IssueResult, error)
	IssuePasswordResetChallenge(ctx context.Context, req domain.PasswordResetChallengeRequest) (*domain.IssueResult, error)
	ResendChallenge(ctx context.Context, req domain.ResendChallengeRequest) (*domain.IssueResult, error)
	VerifyChallenge(ctx context.Context, req domain.VerifyChallengeRequest) (*domain.VerifiedRef, error)
	CompleteSignup(ctx context.Context, req domain.CompleteSignupRequest) (*domain.SignupResult, error)
	ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error
}

// Issuer is implemented by challenge.Issuer.
type Issuer interface {
	IssueSignupChallenge(ctx context.Context, email, displayName string) (*domain.IssueResult, error)
	IssuePasswordResetChallenge(ctx context.Context, email string) (*domain.IssueResult, error)
	ResendChallenge(ctx context.Context, email string, purpose domain.Purpose) (*domain.IssueResult, error)
}

// Verifier is implemented by challenge.Verifier.
type Verifier interface {
	Verify(ctx context.Context, email, code string, purpose domain.Purpose) (*domain.VerifiedRef, error)
}

// Credentials is implemented by credential.Manager.
type Credentials interface {
	CompleteSignup(ctx context.Context, ref domain.ChallengeRef, displayName, password string) (*domain.SignupResult, error)
	ResetPassword(ctx context.Context, ref domain.ChallengeRef, newPassword string) error
}

type ServiceDeps struct {
	Issuer      Issuer
	Verifier    Verifier
	Credentials Credentials
	// OperationTimeout bounds every call, independent of the challenge TTL.
	OperationTimeout time.Duration
}

type service struct {
	issuer      Issuer
	verifier    Verifier
	credentials Credentials
	timeout     time.Duration
}

func NewService(d ServiceDeps) Service {
	if d.OperationTimeout <= 0 {
		d.OperationTimeout = 5 * time.Second
	}
	return &service{
		issuer:      d.Issuer,
		verifier:    d.Verifier,
		credentials: d.Credentials,
		timeout:     d.OperationTimeout,
	}
}

func (s *service) IssueSignupChallenge(ctx context.Context, req domain.SignupChallengeRequest) (*domain.IssueResult, error) {
	req.Email = validate.NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.issuer.IssueSignupChallenge(ctx, req.Email, req.DisplayName)
}

func (s *service) IssuePasswordResetChallenge(ctx context.Context, req domain.PasswordResetChallengeRequest) (*domain.IssueResult, error) {
	req.Email = validate.NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.issuer.IssuePasswordResetChallenge(ctx, req.Email)
}

func (s *service) ResendChallenge(ctx context.Context, req domain.ResendChallengeRequest) (*domain.IssueResult, error) {
	req.Email = validate.NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.issuer.ResendChallenge(ctx, req.Email, req.Purpose)
}

func (s *service) VerifyChallenge(ctx context.Context, req domain.VerifyChallengeRequest) (*domain.VerifiedRef, error) {
	req.Email = validate.NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.verifier.Verify(ctx, req.Email, req.Code, req.Purpose)
}

func (s *service) CompleteSignup(ctx context.Context, req domain.CompleteSignupRequest) (*domain.SignupResult, error) {
	req.VerifiedRef.Email = validate.NormalizeEmail(req.VerifiedRef.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.VerifiedRef.Purpose != domain.PurposeSignup {
		return nil, fmt.Errorf("verified_ref is for %s: %w", req.VerifiedRef.Purpose, domain.ErrChallengeNotConsumable)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.credentials.CompleteSignup(ctx, req.VerifiedRef, req.DisplayName, req.Password)
}

func (s *service) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error {
	req.VerifiedRef.Email = validate.NormalizeEmail(req.VerifiedRef.Email)
	if err := validate.Struct(req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.credentials.ResetPassword(ctx, req.VerifiedRef, req.NewPassword)
}
