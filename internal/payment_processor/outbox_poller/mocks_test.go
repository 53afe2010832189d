package outbox_poller

import (
	"context"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/activity"
	"github.com/carebridge-wallet-ledger/internal/domain/outbox"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

// MockOutboxRepo for testing
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

// MockActivityRepo for testing
type MockActivityRepo struct {
	mock.Mock
}

func (m *MockActivityRepo) Append(ctx context.Context, a *activity.Activity) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockActivityRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*activity.Activity, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*activity.Activity), args.Error(1)
}

func (m *MockActivityRepo) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

// MockNotifier for testing
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, ownerID string, event shared.EventType, payload []byte) error {
	args := m.Called(ctx, ownerID, event, payload)
	return args.Error(0)
}

func (m *MockNotifier) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockEventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}
