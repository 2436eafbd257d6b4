package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-recipes-api/internal/domain"
	"github.com/go-recipes-api/internal/pkg/otpcode"
)

// IssuerConfig tunes issuance.
type IssuerConfig struct {
	TTL            time.Duration
	ResendCooldown time.Duration
	Digits         int
	Pepper         string
	// TestMode returns the raw code when delivery fails. It must only be set
	// outside production; config validation refuses it there.
	TestMode bool
}

type IssuerDeps struct {
	Store    Store
	Users    UserLookup
	Notifier Notifier
	Config   IssuerConfig
	Now      func() time.Time
}

// Issuer creates and replaces challenges and triggers their delivery.
type Issuer struct {
	store    Store
	users    UserLookup
	notifier Notifier
	cfg      IssuerConfig
	now      func() time.Time
}

func NewIssuer(d IssuerDeps) *Issuer {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Config.Digits == 0 {
		d.Config.Digits = otpcode.MinDigits
	}
	return &Issuer{store: d.Store, users: d.Users, notifier: d.Notifier, cfg: d.Config, now: d.Now}
}

// IssueSignupChallenge sends a code confirming that email can open an account.
// A live challenge younger than the resend cooldown blocks a new one.
func (i *Issuer) IssueSignupChallenge(ctx context.Context, email, displayName string) (*domain.IssueResult, error) {
	if err := i.checkPrecondition(ctx, email, domain.PurposeSignup); err != nil {
		return nil, err
	}
	if err := i.checkIssueCooldown(ctx, email, domain.PurposeSignup); err != nil {
		return nil, err
	}
	return i.issue(ctx, email, domain.PurposeSignup, displayName)
}

// IssuePasswordResetChallenge sends a code authorizing a password reset for email.
// A live challenge younger than the resend cooldown blocks a new one.
func (i *Issuer) IssuePasswordResetChallenge(ctx context.Context, email string) (*domain.IssueResult, error) {
	if err := i.checkPrecondition(ctx, email, domain.PurposePasswordReset); err != nil {
		return nil, err
	}
	if err := i.checkIssueCooldown(ctx, email, domain.PurposePasswordReset); err != nil {
		return nil, err
	}
	return i.issue(ctx, email, domain.PurposePasswordReset, "")
}

// ResendChallenge replaces the code of an existing, unconsumed challenge.
// The previous code stops matching as soon as the new record is written.
func (i *Issuer) ResendChallenge(ctx context.Context, email string, purpose domain.Purpose) (*domain.IssueResult, error) {
	if !purpose.Valid() {
		return nil, fmt.Errorf("unknown purpose %q: %w", purpose, domain.ErrValidation)
	}
	prev, err := i.store.Get(ctx, email, purpose)
	if err != nil {
		return nil, err
	}
	if prev.State == domain.StateConsumed {
		return nil, fmt.Errorf("challenge already used: %w", domain.ErrChallengeNotFound)
	}
	if err := i.checkPrecondition(ctx, email, purpose); err != nil {
		return nil, err
	}
	if err := i.cooldown(prev); err != nil {
		return nil, err
	}
	return i.issue(ctx, email, purpose, prev.DisplayName)
}

// checkIssueCooldown applies the resend cooldown to a fresh issuance when a
// pending or verified challenge for the pair has not expired yet.
func (i *Issuer) checkIssueCooldown(ctx context.Context, email string, purpose domain.Purpose) error {
	prev, err := i.store.Get(ctx, email, purpose)
	if errors.Is(err, domain.ErrChallengeNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load challenge: %w", err)
	}
	switch prev.StateAt(i.now()) {
	case domain.StatePending, domain.StateVerified:
		return i.cooldown(prev)
	}
	return nil
}

func (i *Issuer) cooldown(prev *domain.Challenge) error {
	if wait := prev.CreatedAt.Add(i.cfg.ResendCooldown).Sub(i.now()); wait > 0 {
		return &domain.CooldownError{RetryAfter: wait}
	}
	return nil
}

func (i *Issuer) checkPrecondition(ctx context.Context, email string, purpose domain.Purpose) error {
	_, err := i.users.GetByEmail(ctx, email)
	switch purpose {
	case domain.PurposeSignup:
		if err == nil {
			return domain.ErrUserExists
		}
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
	case domain.PurposePasswordReset:
		if err == nil || errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
	}
	return fmt.Errorf("lookup user: %w", err)
}

func (i *Issuer) issue(ctx context.Context, email string, purpose domain.Purpose, displayName string) (*domain.IssueResult, error) {
	code, err := otpcode.Generate(i.cfg.Digits)
	if err != nil {
		return nil, err
	}
	salt, err := otpcode.NewSalt()
	if err != nil {
		return nil, err
	}
	c, err := i.store.Upsert(ctx, domain.ChallengeDraft{
		Email:       email,
		Purpose:     purpose,
		CodeHash:    otpcode.Hash(code, salt, i.cfg.Pepper),
		CodeSalt:    salt,
		DisplayName: displayName,
		TTL:         i.cfg.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}

	res := &domain.IssueResult{Accepted: true, Notified: true}
	payload := map[string]string{
		"code":            code,
		"display_name":    displayName,
		"expires_minutes": strconv.Itoa(int(i.cfg.TTL.Minutes())),
	}
	if err := i.notifier.Send(ctx, email, templateFor(purpose), payload); err != nil {
		res.Notified = false
		slog.Warn("otp delivery failed", "challenge_id", c.ChallengeID, "purpose", purpose, "err", err)
		if i.cfg.TestMode {
			slog.Warn("test mode: returning otp to caller", "challenge_id", c.ChallengeID)
			res.FallbackCode = code
		}
	}
	return res, nil
}
