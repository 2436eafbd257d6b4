package password

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 2)

	hash, err := h.Hash(context.Background(), "correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)

	assert.NoError(t, h.Compare(context.Background(), hash, "correct horse battery"))
	assert.ErrorIs(t, h.Compare(context.Background(), hash, "wrong"), bcrypt.ErrMismatchedHashAndPassword)
}

func TestHasher_CostIsClamped(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0, 1).cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(2, 1).cost)
	assert.Equal(t, bcrypt.MaxCost, NewHasher(99, 1).cost)
}

func TestHasher_WaitsForFreeSlot(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 1)
	require.True(t, h.pool.TryAcquire(1)) // occupy the only worker

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.Hash(ctx, "correct horse battery")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	h.pool.Release(1)
	_, err = h.Hash(context.Background(), "correct horse battery")
	assert.NoError(t, err)
}
