package components

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/carebridge-wallet-ledger/internal/platform/security"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func accountWithPin(hash string) *wallet.Account {
	return &wallet.Account{ID: uuid.New(), OwnerID: uuid.New(), PinHash: &hash, Status: wallet.StatusActive}
}

func TestPinGuard_Verify(t *testing.T) {
	lockedUntil := fixedNow.Add(10 * time.Minute)
	elapsedLock := fixedNow.Add(-time.Minute)

	tests := []struct {
		name          string
		account       func() *wallet.Account
		setupMocks    func(h *MockPinHasher)
		expectedKind  shared.ErrorKind
		expectPlain   bool
		expectAttempt int
	}{
		{
			name:         "pin not set",
			account:      func() *wallet.Account { return &wallet.Account{ID: uuid.New()} },
			setupMocks:   func(h *MockPinHasher) {},
			expectedKind: shared.KindPinNotSet,
		},
		{
			name: "pin locked",
			account: func() *wallet.Account {
				acc := accountWithPin("hash")
				acc.PinAttempts = 3
				acc.PinLockedUntil = &lockedUntil
				return acc
			},
			setupMocks:    func(h *MockPinHasher) {},
			expectedKind:  shared.KindPinLocked,
			expectAttempt: 3,
		},
		{
			name: "mismatch",
			account: func() *wallet.Account {
				acc := accountWithPin("hash")
				acc.PinAttempts = 1
				return acc
			},
			setupMocks: func(h *MockPinHasher) {
				h.On("Compare", mock.Anything, "hash", "654321").Return(false, nil)
			},
			expectedKind:  shared.KindInvalidPin,
			expectAttempt: 1,
		},
		{
			name: "match resets attempts",
			account: func() *wallet.Account {
				acc := accountWithPin("hash")
				acc.PinAttempts = 2
				return acc
			},
			setupMocks: func(h *MockPinHasher) {
				h.On("Compare", mock.Anything, "hash", "654321").Return(true, nil)
			},
		},
		{
			name: "elapsed lock allows a check",
			account: func() *wallet.Account {
				acc := accountWithPin("hash")
				acc.PinAttempts = 3
				acc.PinLockedUntil = &elapsedLock
				return acc
			},
			setupMocks: func(h *MockPinHasher) {
				h.On("Compare", mock.Anything, "hash", "654321").Return(true, nil)
			},
		},
		{
			name:    "compare timeout",
			account: func() *wallet.Account { return accountWithPin("hash") },
			setupMocks: func(h *MockPinHasher) {
				h.On("Compare", mock.Anything, "hash", "654321").Return(false, context.DeadlineExceeded)
			},
			expectPlain: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hasher := &MockPinHasher{}
			tt.setupMocks(hasher)
			guard := NewPinGuard(&inlineTx{}, &MockAccountRepo{}, hasher, time.Second, newTestLogger())
			acc := tt.account()

			err := guard.Verify(context.Background(), acc, "654321", fixedNow)

			switch {
			case tt.expectPlain:
				assert.ErrorIs(t, err, context.DeadlineExceeded)
				assert.Empty(t, shared.KindOf(err))
			case tt.expectedKind != "":
				assert.Equal(t, tt.expectedKind, shared.KindOf(err))
				assert.Equal(t, tt.expectAttempt, acc.PinAttempts)
			default:
				require.NoError(t, err)
				assert.Zero(t, acc.PinAttempts)
				assert.Nil(t, acc.PinLockedUntil)
			}
			hasher.AssertExpectations(t)
		})
	}
}

func TestPinGuard_RecordFailure(t *testing.T) {
	t.Run("counts failures and locks on the third", func(t *testing.T) {
		acc := accountWithPin("hash")
		repo := &MockAccountRepo{}
		repo.On("WithTx", mock.Anything).Return(repo)
		repo.On("LockForUpdate", mock.Anything, acc.ID).Return(acc, nil)
		repo.On("Update", mock.Anything, acc).Return(nil)
		tx := &inlineTx{}
		guard := NewPinGuard(tx, repo, &MockPinHasher{}, time.Second, newTestLogger())

		for i := 1; i < wallet.MaxPinAttempts; i++ {
			err := guard.RecordFailure(context.Background(), acc.ID, fixedNow)
			assert.Equal(t, shared.KindInvalidPin, shared.KindOf(err))
			assert.Equal(t, i, acc.PinAttempts)
		}

		err := guard.RecordFailure(context.Background(), acc.ID, fixedNow)

		assert.Equal(t, shared.KindPinLocked, shared.KindOf(err))
		require.NotNil(t, acc.PinLockedUntil)
		assert.Equal(t, fixedNow.Add(wallet.PinLockDuration), *acc.PinLockedUntil)
		assert.Equal(t, wallet.MaxPinAttempts, tx.calls)
	})

	t.Run("storage failure", func(t *testing.T) {
		id := uuid.New()
		repo := &MockAccountRepo{}
		repo.On("WithTx", mock.Anything).Return(repo)
		repo.On("LockForUpdate", mock.Anything, id).Return(nil, errors.New("connection refused"))
		guard := NewPinGuard(&inlineTx{}, repo, &MockPinHasher{}, time.Second, newTestLogger())

		err := guard.RecordFailure(context.Background(), id, fixedNow)

		assert.Error(t, err)
		assert.Empty(t, shared.KindOf(err))
	})
}

func TestPinGuard_RecordSuccess(t *testing.T) {
	elapsedLock := fixedNow.Add(-time.Minute)

	tests := []struct {
		name        string
		attempts    int
		lockedUntil *time.Time
		expectSave  bool
	}{
		{name: "clears failed attempts", attempts: 2, expectSave: true},
		{name: "clears an elapsed lock", attempts: 3, lockedUntil: &elapsedLock, expectSave: true},
		{name: "nothing to clear", attempts: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := accountWithPin("hash")
			acc.PinAttempts = tt.attempts
			acc.PinLockedUntil = tt.lockedUntil
			repo := &MockAccountRepo{}
			repo.On("WithTx", mock.Anything).Return(repo)
			repo.On("LockForUpdate", mock.Anything, acc.ID).Return(acc, nil)
			if tt.expectSave {
				repo.On("Update", mock.Anything, acc).Return(nil)
			}
			guard := NewPinGuard(&inlineTx{}, repo, &MockPinHasher{}, time.Second, newTestLogger())

			err := guard.RecordSuccess(context.Background(), acc.ID, fixedNow)

			require.NoError(t, err)
			assert.Zero(t, acc.PinAttempts)
			assert.Nil(t, acc.PinLockedUntil)
			if !tt.expectSave {
				repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
			}
			repo.AssertExpectations(t)
		})
	}

	t.Run("storage failure", func(t *testing.T) {
		id := uuid.New()
		repo := &MockAccountRepo{}
		repo.On("WithTx", mock.Anything).Return(repo)
		repo.On("LockForUpdate", mock.Anything, id).Return(nil, errors.New("connection refused"))
		guard := NewPinGuard(&inlineTx{}, repo, &MockPinHasher{}, time.Second, newTestLogger())

		err := guard.RecordSuccess(context.Background(), id, fixedNow)

		assert.Error(t, err)
	})
}

func TestPinGuard_HashWithBcrypt(t *testing.T) {
	guard := NewPinGuard(&inlineTx{}, &MockAccountRepo{}, security.NewPinHasher(4), time.Second, newTestLogger())

	hash, err := guard.Hash("123456")
	require.NoError(t, err)

	acc := accountWithPin(hash)
	assert.NoError(t, guard.Verify(context.Background(), acc, "123456", fixedNow))
	assert.ErrorIs(t, guard.Verify(context.Background(), acc, "000000", fixedNow), shared.ErrInvalidPin)

	_, err = guard.Hash("12ab")
	assert.ErrorIs(t, err, security.ErrInvalidPinFormat)
}
