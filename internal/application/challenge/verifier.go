package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-recipes-api/internal/domain"
	"github.com/go-recipes-api/internal/pkg/otpcode"
)

type VerifierConfig struct {
	MaxAttempts int
	Digits      int
	Pepper      string
}

type VerifierDeps struct {
	Store  Store
	Config VerifierConfig
	Now    func() time.Time
}

// Verifier checks submitted codes against the stored challenge. It never consumes.
type Verifier struct {
	store Store
	cfg   VerifierConfig
	now   func() time.Time
}

func NewVerifier(d VerifierDeps) *Verifier {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Config.MaxAttempts < 1 {
		d.Config.MaxAttempts = 5
	}
	if d.Config.Digits == 0 {
		d.Config.Digits = otpcode.MinDigits
	}
	return &Verifier{store: d.Store, cfg: d.Config, now: d.Now}
}

// Verify checks code for the live challenge of (email, purpose). Expired and
// exhausted challenges, and malformed codes, are rejected without spending an attempt.
func (v *Verifier) Verify(ctx context.Context, email, code string, purpose domain.Purpose) (*domain.VerifiedRef, error) {
	c, err := v.store.Get(ctx, email, purpose)
	if err != nil {
		return nil, err
	}

	switch c.StateAt(v.now()) {
	case domain.StateConsumed:
		return nil, fmt.Errorf("challenge already used: %w", domain.ErrChallengeNotFound)
	case domain.StateExpired:
		return nil, domain.ErrChallengeExpired
	}
	if c.AttemptsExhausted(v.cfg.MaxAttempts) {
		return nil, domain.ErrTooManyAttempts
	}
	if !otpcode.WellFormed(code, v.cfg.Digits) {
		return nil, fmt.Errorf("code must be %d digits: %w", v.cfg.Digits, domain.ErrValidation)
	}

	ref := c.Ref()
	if !otpcode.Equal(code, c.CodeSalt, v.cfg.Pepper, c.CodeHash) {
		n, err := v.store.RecordAttempt(ctx, ref, v.cfg.MaxAttempts)
		if errors.Is(err, domain.ErrChallengeState) {
			// Superseded or exhausted concurrently; the submitted code is wrong either way.
			return nil, domain.ErrCodeMismatch
		}
		if err != nil {
			return nil, fmt.Errorf("record attempt: %w", err)
		}
		if n >= v.cfg.MaxAttempts {
			return nil, domain.ErrTooManyAttempts
		}
		return nil, fmt.Errorf("%d attempts remaining: %w", v.cfg.MaxAttempts-n, domain.ErrCodeMismatch)
	}

	verifiedAt, err := v.store.MarkVerified(ctx, ref, v.cfg.MaxAttempts)
	if err != nil {
		return nil, err
	}
	return &domain.VerifiedRef{ChallengeRef: ref, VerifiedAt: verifiedAt}, nil
}
