// Package memstore provides in-memory challenge and user stores for local
// development and tests. State does not survive a restart.
package memstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-recipes-api/internal/domain"
	"github.com/go-recipes-api/internal/pkg/id"
)

type challengeKey struct {
	email   string
	purpose domain.Purpose
}

// ChallengeStore keeps one challenge per (email, purpose). Each transition
// is a compare-and-set under the write lock.
type ChallengeStore struct {
	mu         sync.RWMutex
	m          map[challengeKey]domain.Challenge
	purgeGrace time.Duration
	nowF       func() time.Time
}

func NewChallengeStore(purgeGrace time.Duration) *ChallengeStore {
	return &ChallengeStore{
		m:          make(map[challengeKey]domain.Challenge),
		purgeGrace: purgeGrace,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the store's clock. Used by tests.
func (s *ChallengeStore) WithClock(now func() time.Time) *ChallengeStore {
	s.nowF = now
	return s
}

func (s *ChallengeStore) Upsert(_ context.Context, d domain.ChallengeDraft) (*domain.Challenge, error) {
	now := s.nowF()
	c := domain.Challenge{
		Email:       d.Email,
		Purpose:     d.Purpose,
		ChallengeID: id.New(),
		CodeHash:    d.CodeHash,
		CodeSalt:    d.CodeSalt,
		DisplayName: d.DisplayName,
		State:       domain.StatePending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(d.TTL),
	}
	c.PurgeAt = c.ExpiresAt.Add(s.purgeGrace).Unix()

	k := challengeKey{d.Email, d.Purpose}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.m[k]; ok && prev.CreatedAt.After(now) {
		return nil, fmt.Errorf("newer issuance exists: %w", domain.ErrChallengeState)
	}
	s.m[k] = c
	return &c, nil
}

func (s *ChallengeStore) Get(_ context.Context, email string, purpose domain.Purpose) (*domain.Challenge, error) {
	s.mu.RLock()
	c, ok := s.m[challengeKey{email, purpose}]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrChallengeNotFound
	}
	return &c, nil
}

func (s *ChallengeStore) RecordAttempt(_ context.Context, ref domain.ChallengeRef, limit int) (int, error) {
	var count int
	err := s.update(ref, func(c *domain.Challenge, now time.Time) bool {
		if c.State != domain.StatePending && c.State != domain.StateVerified {
			return false
		}
		if c.AttemptCount >= limit {
			return false
		}
		c.AttemptCount++
		if c.AttemptCount >= limit {
			c.State = domain.StateInvalidated
			c.InvalidatedAt = &now
		}
		count = c.AttemptCount
		return true
	})
	return count, err
}

func (s *ChallengeStore) MarkVerified(_ context.Context, ref domain.ChallengeRef, limit int) (time.Time, error) {
	var at time.Time
	err := s.update(ref, func(c *domain.Challenge, now time.Time) bool {
		if c.State != domain.StatePending || c.IsExpired(now) || c.AttemptCount >= limit {
			return false
		}
		c.State = domain.StateVerified
		c.VerifiedAt = &now
		at = now
		return true
	})
	return at, err
}

func (s *ChallengeStore) MarkConsumed(_ context.Context, ref domain.ChallengeRef) error {
	return s.consume(ref, nil)
}

// consume runs apply and marks the challenge consumed under the same lock.
// If the challenge is no longer live and verified, apply is not called. If
// apply fails, the challenge stays verified and apply's error is returned.
func (s *ChallengeStore) consume(ref domain.ChallengeRef, apply func() error) error {
	var applyErr error
	err := s.update(ref, func(c *domain.Challenge, now time.Time) bool {
		if c.State != domain.StateVerified || c.IsExpired(now) {
			return false
		}
		if apply != nil {
			if applyErr = apply(); applyErr != nil {
				return false
			}
		}
		c.State = domain.StateConsumed
		c.ConsumedAt = &now
		return true
	})
	if applyErr != nil {
		return applyErr
	}
	return err
}

// PurgeExpired drops challenges whose purge deadline has passed and returns how many were removed.
func (s *ChallengeStore) PurgeExpired(_ context.Context) int {
	cutoff := s.nowF().Unix()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, c := range s.m {
		if c.PurgeAt < cutoff {
			delete(s.m, k)
			n++
		}
	}
	return n
}

// update applies fn to the record addressed by ref if the challenge ID still
// matches; fn reports whether its precondition held.
func (s *ChallengeStore) update(ref domain.ChallengeRef, fn func(c *domain.Challenge, now time.Time) bool) error {
	k := challengeKey{ref.Email, ref.Purpose}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[k]
	if !ok || c.ChallengeID != ref.ChallengeID {
		return domain.ErrChallengeState
	}
	if !fn(&c, s.nowF()) {
		return domain.ErrChallengeState
	}
	s.m[k] = c
	return nil
}

// RunJanitor purges expired challenges every interval until ctx is done.
func (s *ChallengeStore) RunJanitor(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := s.PurgeExpired(ctx); n > 0 {
				slog.Debug("purged expired challenges", "count", n)
			}
		}
	}
}
