package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/go-recipes-api/internal/domain"
)

// UserDirectory is an in-memory user table with a unique email index.
// Credential writes consume a challenge from the paired ChallengeStore while
// holding its lock, so the write and the consumption are one step.
type UserDirectory struct {
	challenges *ChallengeStore

	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
}

func NewUserDirectory(challenges *ChallengeStore) *UserDirectory {
	return &UserDirectory{
		challenges: challenges,
		byID:       make(map[string]domain.User),
		byEmail:    make(map[string]string),
	}
}

func (d *UserDirectory) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	uid, ok := d.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u := d.byID[uid]
	return &u, nil
}

// Create inserts u and consumes the signup challenge, unless the email is taken
// or the challenge is no longer live and verified.
func (d *UserDirectory) Create(_ context.Context, u *domain.User, consume domain.ChallengeRef) error {
	return d.challenges.consume(consume, func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		if _, taken := d.byEmail[u.Email]; taken {
			return domain.ErrUserExists
		}
		d.byID[u.UserID] = *u
		d.byEmail[u.Email] = u.UserID
		return nil
	})
}

// UpdatePasswordHash replaces the hash and consumes the reset challenge.
func (d *UserDirectory) UpdatePasswordHash(_ context.Context, userID, hash string, consume domain.ChallengeRef) error {
	return d.challenges.consume(consume, func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		u, ok := d.byID[userID]
		if !ok {
			return domain.ErrUserNotFound
		}
		u.PasswordHash = hash
		u.UpdatedAt = time.Now().UTC()
		d.byID[userID] = u
		return nil
	})
}
