package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var intentColumnNames = []string{
	"id", "owner_id", "account_id", "appointment_id", "transaction_id", "external_transaction_id",
	"ledger_transaction_id", "payment_type", "payment_method",
	"amount", "platform_fee", "payment_gateway_fee", "net_amount", "status",
	"failure_reason", "gateway_response", "refund_amount", "refund_reason",
	"bank_code", "bank_account_number", "bank_account_name",
	"expired_at", "paid_at", "refunded_at", "retry_count", "max_retry", "next_retry_at", "auto_retry",
	"created_at", "updated_at",
}

func newTestIntent() *payment.Intent {
	now := time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC)
	expires := now.Add(time.Hour)
	ledgerID := uuid.New()
	return &payment.Intent{
		ID:                  uuid.New(),
		OwnerID:             uuid.New(),
		AccountID:           uuid.New(),
		TransactionID:       "PAY20250610100000Z9Y8X7",
		LedgerTransactionID: &ledgerID,
		Type:                payment.TypeWithdrawal,
		Method:              payment.MethodBankTransfer,
		Amount:              decimal.NewFromInt(75000),
		PlatformFee:         decimal.Zero,
		GatewayFee:          decimal.Zero,
		NetAmount:           decimal.NewFromInt(75000),
		Status:              payment.StatusProcessing,
		GatewayResponse:     json.RawMessage(`{"id":"po_1"}`),
		BankAccount: &payment.BankAccount{
			BankCode:      "BCA",
			AccountNumber: "1234567890",
			AccountName:   "Dr. Sari",
		},
		ExpiredAt: &expires,
		MaxRetry:  3,
		AutoRetry: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func intentRows(i *payment.Intent) *pgxmock.Rows {
	var bankCode, bankNumber, bankName *string
	if i.BankAccount != nil {
		bankCode = &i.BankAccount.BankCode
		bankNumber = &i.BankAccount.AccountNumber
		bankName = &i.BankAccount.AccountName
	}
	return pgxmock.NewRows(intentColumnNames).AddRow(
		i.ID, i.OwnerID, i.AccountID, i.AppointmentID, i.TransactionID, i.ExternalTransactionID,
		i.LedgerTransactionID, i.Type, i.Method,
		i.Amount, i.PlatformFee, i.GatewayFee, i.NetAmount, i.Status,
		i.FailureReason, i.GatewayResponse, i.RefundAmount, i.RefundReason,
		bankCode, bankNumber, bankName,
		i.ExpiredAt, i.PaidAt, i.RefundedAt, i.RetryCount, i.MaxRetry, i.NextRetryAt, i.AutoRetry,
		i.CreatedAt, i.UpdatedAt,
	)
}

func TestPaymentRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &PaymentRepository{querier: mock, logger: newTestLogger()}
	query := regexp.QuoteMeta(insertIntentQuery)
	insertArgs := anyArgs(30)

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(insertArgs...).WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.Create(ctx, newTestIntent()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate", func(t *testing.T) {
		intent := newTestIntent()
		mock.ExpectExec(query).WithArgs(insertArgs...).WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.Create(ctx, intent)
		assert.ErrorIs(t, err, payment.ErrDuplicateIntent{TransactionID: intent.TransactionID})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict skipped", func(t *testing.T) {
		intent := newTestIntent()
		mock.ExpectExec(query).WithArgs(insertArgs...).WillReturnResult(pgxmock.NewResult("INSERT", 0))

		err := repo.Create(ctx, intent)
		assert.ErrorIs(t, err, payment.ErrDuplicateIntent{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("insert failed")
		mock.ExpectExec(query).WithArgs(insertArgs...).WillReturnError(dbErr)

		err := repo.Create(ctx, newTestIntent())
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to create payment intent")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentRepository_Get(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &PaymentRepository{querier: mock, logger: newTestLogger()}
	expected := newTestIntent()

	t.Run("by id with bank account", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectIntentByIDQuery)).
			WithArgs(expected.ID).
			WillReturnRows(intentRows(expected))

		got, err := repo.GetByID(ctx, expected.ID)
		require.NoError(t, err)
		assert.Equal(t, expected, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lock by transaction id without bank account", func(t *testing.T) {
		topUp := newTestIntent()
		topUp.Type = payment.TypeWalletTopUp
		topUp.BankAccount = nil
		mock.ExpectQuery(regexp.QuoteMeta(lockIntentByRefQuery)).
			WithArgs(topUp.TransactionID).
			WillReturnRows(intentRows(topUp))

		got, err := repo.LockByTransactionID(ctx, topUp.TransactionID)
		require.NoError(t, err)
		assert.Nil(t, got.BankAccount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectIntentByRefQuery)).
			WithArgs("PAY-missing").
			WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetByTransactionID(ctx, "PAY-missing")
		assert.Nil(t, got)
		assert.ErrorIs(t, err, payment.ErrIntentNotFound{Ref: "PAY-missing"})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lock db error", func(t *testing.T) {
		dbErr := errors.New("lock failed")
		mock.ExpectQuery(regexp.QuoteMeta(lockIntentQuery)).
			WithArgs(expected.ID).
			WillReturnError(dbErr)

		got, err := repo.LockForUpdate(ctx, expected.ID)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentRepository_Update(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &PaymentRepository{querier: mock, logger: newTestLogger()}
	query := regexp.QuoteMeta(updateIntentQuery)
	intent := newTestIntent()
	args := []interface{}{
		intent.ExternalTransactionID, intent.LedgerTransactionID, intent.Status,
		intent.FailureReason, intent.GatewayResponse, intent.RefundAmount, intent.RefundReason,
		intent.PaidAt, intent.RefundedAt, intent.RetryCount, intent.NextRetryAt, intent.UpdatedAt,
		intent.ID,
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(args...).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.Update(ctx, intent))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(args...).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, repo.Update(ctx, intent), payment.ErrIntentNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentRepository_ListDueRetries(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &PaymentRepository{querier: mock, logger: newTestLogger()}
	now := time.Date(2025, 6, 10, 5, 0, 0, 0, time.UTC)

	t.Run("returns due intents", func(t *testing.T) {
		due := newTestIntent()
		due.Status = payment.StatusFailed
		due.RetryCount = 1
		next := now.Add(-time.Minute)
		due.NextRetryAt = &next

		mock.ExpectQuery(regexp.QuoteMeta(selectDueRetriesQuery)).
			WithArgs(now, 10).
			WillReturnRows(intentRows(due))

		got, err := repo.ListDueRetries(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, due, got[0])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("none due", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectDueRetriesQuery)).
			WithArgs(now, 10).
			WillReturnRows(pgxmock.NewRows(intentColumnNames))

		got, err := repo.ListDueRetries(ctx, now, 10)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(selectDueRetriesQuery)).
			WithArgs(now, 10).
			WillReturnError(errors.New("timeout"))

		_, err := repo.ListDueRetries(ctx, now, 10)
		assert.ErrorContains(t, err, "failed to list due payment retries")
	})
}
