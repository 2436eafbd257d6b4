// Package credential applies verified challenges to user credentials.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-recipes-api/internal/application/challenge"
	"github.com/go-recipes-api/internal/domain"
	"github.com/go-recipes-api/internal/pkg/id"
)

// UserDirectory owns User records. Its writes also consume the challenge
// named by consume: either both happen or neither does. A consume that
// finds the challenge no longer live and verified fails with
// domain.ErrChallengeState. Create fails with domain.ErrUserExists when the
// email is already registered.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User, consume domain.ChallengeRef) error
	UpdatePasswordHash(ctx context.Context, userID, hash string, consume domain.ChallengeRef) error
}

// ChallengeStore is the read side of the challenge store.
type ChallengeStore interface {
	Get(ctx context.Context, email string, purpose domain.Purpose) (*domain.Challenge, error)
}

type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
}

// ErrFunc handles errors raised by background workers.
type ErrFunc func(error)

type Deps struct {
	Challenges ChallengeStore
	Users      UserDirectory
	Hasher     PasswordHasher
	Tokens     TokenIssuer
	Notifier   challenge.Notifier
	ErrHandler ErrFunc
	// WorkerTimeout bounds background work such as the welcome mail.
	WorkerTimeout time.Duration
	Now           func() time.Time
}

// Manager creates accounts and replaces passwords once a challenge is verified.
type Manager struct {
	challenges    ChallengeStore
	users         UserDirectory
	hasher        PasswordHasher
	tokens        TokenIssuer
	notifier      challenge.Notifier
	errHandler    ErrFunc
	workerTimeout time.Duration
	now           func() time.Time
	wg            sync.WaitGroup
}

func NewManager(d Deps) *Manager {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.WorkerTimeout <= 0 {
		d.WorkerTimeout = 10 * time.Second
	}
	if d.ErrHandler == nil {
		d.ErrHandler = func(err error) { slog.Error("credential worker failed", "err", err) }
	}
	return &Manager{
		challenges:    d.Challenges,
		users:         d.Users,
		hasher:        d.Hasher,
		tokens:        d.Tokens,
		notifier:      d.Notifier,
		errHandler:    d.ErrHandler,
		workerTimeout: d.WorkerTimeout,
		now:           d.Now,
	}
}

// Wait blocks until all background workers have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// CompleteSignup creates the account confirmed by ref, consuming ref in the
// same write, and returns a session token.
func (m *Manager) CompleteSignup(ctx context.Context, ref domain.ChallengeRef, displayName, password string) (*domain.SignupResult, error) {
	if ref.Purpose != domain.PurposeSignup {
		return nil, fmt.Errorf("reference is not for signup: %w", domain.ErrChallengeNotConsumable)
	}
	if err := m.requireConsumable(ctx, ref); err != nil {
		return nil, err
	}

	if _, err := m.users.GetByEmail(ctx, ref.Email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := m.hasher.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := m.now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Email:        ref.Email,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.users.Create(ctx, u, ref); err != nil {
		if errors.Is(err, domain.ErrChallengeState) {
			return nil, fmt.Errorf("challenge changed during signup: %w", domain.ErrChallengeNotConsumable)
		}
		return nil, err
	}

	m.sendWelcome(u)

	token, err := m.tokens.Issue(u.UserID)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	return &domain.SignupResult{UserID: u.UserID, SessionToken: token}, nil
}

// ResetPassword replaces the password of the account identified by ref and
// consumes ref in the same write. A failed write leaves the challenge
// verified so the call can be retried.
func (m *Manager) ResetPassword(ctx context.Context, ref domain.ChallengeRef, newPassword string) error {
	if ref.Purpose != domain.PurposePasswordReset {
		return fmt.Errorf("reference is not for password reset: %w", domain.ErrChallengeNotConsumable)
	}
	if err := m.requireConsumable(ctx, ref); err != nil {
		return err
	}

	u, err := m.users.GetByEmail(ctx, ref.Email)
	if err != nil {
		return err
	}

	hash, err := m.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := m.users.UpdatePasswordHash(ctx, u.UserID, hash, ref); err != nil {
		if errors.Is(err, domain.ErrChallengeState) {
			return fmt.Errorf("challenge changed during reset: %w", domain.ErrChallengeNotConsumable)
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// requireConsumable re-reads the challenge instead of trusting the reference.
func (m *Manager) requireConsumable(ctx context.Context, ref domain.ChallengeRef) error {
	c, err := m.challenges.Get(ctx, ref.Email, ref.Purpose)
	if errors.Is(err, domain.ErrChallengeNotFound) {
		return fmt.Errorf("no challenge for reference: %w", domain.ErrChallengeNotConsumable)
	}
	if err != nil {
		return err
	}
	if !c.Consumable(ref, m.now()) {
		return fmt.Errorf("challenge is %s: %w", c.StateAt(m.now()), domain.ErrChallengeNotConsumable)
	}
	return nil
}

func (m *Manager) sendWelcome(u *domain.User) {
	if m.notifier == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		wCtx, cancel := context.WithTimeout(context.Background(), m.workerTimeout)
		defer cancel()

		payload := map[string]string{"display_name": u.DisplayName}
		if err := m.notifier.Send(wCtx, u.Email, challenge.TemplateWelcome, payload); err != nil {
			m.errHandler(fmt.Errorf("welcome mail for %s: %w", u.UserID, err))
		}
	}()
}
