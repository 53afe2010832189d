package components

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/domain/outbox"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockAccountRepo struct {
	mock.Mock
}

func (m *MockAccountRepo) EnsureForOwner(ctx context.Context, acc *wallet.Account) (*wallet.Account, error) {
	args := m.Called(ctx, acc)
	if fn, ok := args.Get(0).(func(context.Context, *wallet.Account) *wallet.Account); ok {
		return fn(ctx, acc), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Account), args.Error(1)
}

func (m *MockAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Account), args.Error(1)
}

func (m *MockAccountRepo) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*wallet.Account, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Account), args.Error(1)
}

func (m *MockAccountRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*wallet.Account, error) {
	args := m.Called(ctx, id)
	if fn, ok := args.Get(0).(func(context.Context, uuid.UUID) *wallet.Account); ok {
		return fn(ctx, id), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Account), args.Error(1)
}

func (m *MockAccountRepo) Update(ctx context.Context, acc *wallet.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepo) WithTx(tx pgx.Tx) wallet.Repository {
	args := m.Called(tx)
	return args.Get(0).(wallet.Repository)
}

type MockLedgerRepo struct {
	mock.Mock
}

func (m *MockLedgerRepo) Create(ctx context.Context, t *ledger.Transaction) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockLedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerRepo) GetByTransactionID(ctx context.Context, transactionID string) (*ledger.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerRepo) Finalize(ctx context.Context, t *ledger.Transaction) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockLedgerRepo) MarkReversed(ctx context.Context, t *ledger.Transaction) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockLedgerRepo) List(ctx context.Context, filter ledger.Filter) ([]*ledger.Transaction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerRepo) Count(ctx context.Context, filter ledger.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepo) WithTx(tx pgx.Tx) ledger.Repository {
	args := m.Called(tx)
	return args.Get(0).(ledger.Repository)
}

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) PurgeProcessed(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	args := m.Called(tx)
	return args.Get(0).(outbox.Repository)
}

type MockPinHasher struct {
	mock.Mock
}

func (m *MockPinHasher) Hash(pin string) (string, error) {
	args := m.Called(pin)
	return args.String(0), args.Error(1)
}

func (m *MockPinHasher) Compare(ctx context.Context, hash, pin string) (bool, error) {
	args := m.Called(ctx, hash, pin)
	return args.Bool(0), args.Error(1)
}

// inlineTx runs the callback with a nil transaction and reports its error
type inlineTx struct {
	calls int
}

func (r *inlineTx) ExecuteTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	r.calls++
	return fn(nil)
}
