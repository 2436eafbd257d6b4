package challenge

import (
	"context"
	"time"

	"github.com/go-recipes-api/internal/domain"
	"github.com/stretchr/testify/mock"
)

// --- mocks ---

type mockStore struct{ mock.Mock }

func (m *mockStore) Upsert(ctx context.Context, d domain.ChallengeDraft) (*domain.Challenge, error) {
	args := m.Called(ctx, d)
	if c, _ := args.Get(0).(*domain.Challenge); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) Get(ctx context.Context, email string, purpose domain.Purpose) (*domain.Challenge, error) {
	args := m.Called(ctx, email, purpose)
	if c, _ := args.Get(0).(*domain.Challenge); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) RecordAttempt(ctx context.Context, ref domain.ChallengeRef, limit int) (int, error) {
	args := m.Called(ctx, ref, limit)
	return args.Int(0), args.Error(1)
}
func (m *mockStore) MarkVerified(ctx context.Context, ref domain.ChallengeRef, limit int) (time.Time, error) {
	args := m.Called(ctx, ref, limit)
	return args.Get(0).(time.Time), args.Error(1)
}
func (m *mockStore) MarkConsumed(ctx context.Context, ref domain.ChallengeRef) error {
	return m.Called(ctx, ref).Error(0)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Send(ctx context.Context, email, templateID string, payload map[string]string) error {
	return m.Called(ctx, email, templateID, payload).Error(0)
}

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }
