package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/carebridge-wallet-ledger/internal/wallet/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountService_PinLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := uuid.New()

	acc, err := h.services.Accounts.GetWallet(ctx, owner)
	require.NoError(t, err)
	assert.False(t, acc.HasPin())
	assert.Equal(t, wallet.StatusActive, acc.Status)

	err = h.services.Accounts.SetPin(ctx, owner, "12a456")
	assert.Equal(t, shared.KindInvalidRequest, shared.KindOf(err))

	require.NoError(t, h.services.Accounts.SetPin(ctx, owner, "246810"))
	err = h.services.Accounts.SetPin(ctx, owner, "135790")
	assert.Equal(t, shared.KindInvalidState, shared.KindOf(err))

	err = h.services.Accounts.ChangePin(ctx, owner, "111111", "135790")
	assert.Equal(t, shared.KindInvalidPin, shared.KindOf(err))
	assert.Equal(t, 1, h.store.account(acc.ID).PinAttempts)

	require.NoError(t, h.services.Accounts.ChangePin(ctx, owner, "246810", "135790"))
	assert.Zero(t, h.store.account(acc.ID).PinAttempts)

	recipient := h.seedWallet(t, 0)
	h.store.dataMu.Lock()
	funded := h.store.accounts[acc.ID]
	funded.Balance = dec(10000)
	h.store.accounts[acc.ID] = funded
	h.store.dataMu.Unlock()

	_, err = h.services.Transfers.Transfer(ctx, service.TransferRequest{SenderOwnerID: owner, RecipientOwnerID: recipient.OwnerID, Amount: dec(1000), Pin: "135790"})
	assert.NoError(t, err)
}

func TestAccountService_ChangeStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	funded := h.seedWallet(t, 5000)

	updated, err := h.services.Accounts.ChangeStatus(ctx, funded.OwnerID, wallet.StatusFrozen)
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusFrozen, updated.Status)

	_, err = h.services.Accounts.ChangeStatus(ctx, funded.OwnerID, wallet.StatusClosed)
	assert.Equal(t, shared.KindInvalidState, shared.KindOf(err))

	_, err = h.services.Accounts.ChangeStatus(ctx, funded.OwnerID, wallet.Status("deleted"))
	assert.Equal(t, shared.KindInvalidState, shared.KindOf(err))
}

func TestAccountService_GetWalletShowsRolledOverCounters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sender := h.seedWallet(t, 100000)
	recipient := h.seedWallet(t, 0)

	_, err := h.services.Transfers.Transfer(ctx, service.TransferRequest{SenderOwnerID: sender.OwnerID, RecipientOwnerID: recipient.OwnerID, Amount: dec(20000), Pin: testPin})
	require.NoError(t, err)

	h.clock.Advance(24 * time.Hour)
	acc, err := h.services.Accounts.GetWallet(ctx, sender.OwnerID)
	require.NoError(t, err)
	requireDecimal(t, 0, acc.DailySpent)
	requireDecimal(t, 20000, acc.MonthlySpent)

	// display only, nothing persisted
	requireDecimal(t, 20000, h.store.account(sender.ID).DailySpent)
}

func TestAccountService_SetLimits(t *testing.T) {
	h := newHarness(t)
	owner := h.seedWallet(t, 0)

	acc, err := h.services.Accounts.SetLimits(context.Background(), owner.OwnerID,
		decimal.NewNullDecimal(dec(100000)), decimal.NewNullDecimal(dec(1000000)))
	require.NoError(t, err)
	assert.True(t, acc.DailyLimit.Valid)
	assert.True(t, acc.MonthlyLimit.Decimal.Equal(dec(1000000)))

	_, err = h.services.Accounts.SetLimits(context.Background(), owner.OwnerID,
		decimal.NewNullDecimal(dec(-1)), decimal.NullDecimal{})
	assert.Error(t, err)
}

func TestHistoryService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sender := h.seedWallet(t, 100000)
	recipient := h.seedWallet(t, 0)

	for i := 0; i < 3; i++ {
		_, err := h.services.Transfers.Transfer(ctx, service.TransferRequest{SenderOwnerID: sender.OwnerID, RecipientOwnerID: recipient.OwnerID, Amount: dec(1000), Pin: testPin})
		require.NoError(t, err)
		h.clock.Advance(time.Minute)
	}

	page, err := h.services.History.ListTransactions(ctx, sender.OwnerID, service.TransactionQuery{PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 1, page.Page)
	assert.True(t, page.Items[0].CreatedAt.After(page.Items[1].CreatedAt))

	page, err = h.services.History.ListTransactions(ctx, recipient.OwnerID, service.TransactionQuery{Type: ledger.TypeTransferIn})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 20, page.PerPage)

	from := h.clock.Now()
	to := from.Add(-time.Hour)
	_, err = h.services.History.ListTransactions(ctx, sender.OwnerID, service.TransactionQuery{From: &from, To: &to})
	assert.Equal(t, shared.KindInvalidRequest, shared.KindOf(err))

	first := page.Items[0]
	got, err := h.services.History.GetTransaction(ctx, recipient.OwnerID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.TransactionID, got.TransactionID)

	_, err = h.services.History.GetTransaction(ctx, sender.OwnerID, first.ID)
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
}
