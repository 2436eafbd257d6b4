package password

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Hasher hashes passwords with bcrypt on a bounded pool so CPU-heavy hashing
// cannot starve request handling. Callers must not log or persist plaintext passwords.
type Hasher struct {
	cost int
	pool *semaphore.Weighted
}

// NewHasher returns a Hasher with the given bcrypt cost (clamped to bcrypt's
// supported range) that runs at most workers hashes at a time.
func NewHasher(cost, workers int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	if workers < 1 {
		workers = 1
	}
	return &Hasher{cost: cost, pool: semaphore.NewWeighted(int64(workers))}
}

// Hash produces a bcrypt hash of password. It waits for a free slot in the
// pool and gives up when ctx is done.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.pool.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("hash pool: %w", err)
	}
	defer h.pool.Release(1)

	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies password against the stored hash. Returns nil on match.
func (h *Hasher) Compare(ctx context.Context, hash, password string) error {
	if err := h.pool.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("hash pool: %w", err)
	}
	defer h.pool.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
