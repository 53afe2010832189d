package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/activity"
	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// TransactionQuery filters an owner's transaction history
type TransactionQuery struct {
	Type     ledger.Type
	Status   ledger.Status
	Category ledger.Category
	From     *time.Time
	To       *time.Time
	Page     int
	PerPage  int
}

// TransactionPage is one page of history
type TransactionPage struct {
	Items   []*ledger.Transaction
	Total   int64
	Page    int
	PerPage int
}

// ActivityPage is one page of the activity feed
type ActivityPage struct {
	Items   []*activity.Activity
	Total   int64
	Page    int
	PerPage int
}

// HistoryService answers owner-scoped read queries
type HistoryService struct {
	accounts AccountManager
	ledger   ledger.Repository
	activity activity.Repository
	logger   *slog.Logger
}

func NewHistoryService(
	accounts AccountManager,
	ledgerRepo ledger.Repository,
	activityRepo activity.Repository,
	logger *slog.Logger,
) *HistoryService {
	return &HistoryService{
		accounts: accounts,
		ledger:   ledgerRepo,
		activity: activityRepo,
		logger:   logger,
	}
}

// ListTransactions returns the owner's transactions, newest first
func (s *HistoryService) ListTransactions(ctx context.Context, ownerID uuid.UUID, q TransactionQuery) (*TransactionPage, error) {
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, shared.NewError(shared.KindInvalidRequest, "to must not be before from")
	}

	acc, err := s.accounts.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	page, perPage, limit, offset := pageBounds(q.Page, q.PerPage)
	filter := ledger.Filter{
		AccountID: acc.ID,
		Type:      q.Type,
		Status:    q.Status,
		Category:  q.Category,
		From:      q.From,
		To:        q.To,
		Limit:     limit,
		Offset:    offset,
	}

	items, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.ledger.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &TransactionPage{Items: items, Total: total, Page: page, PerPage: perPage}, nil
}

// GetTransaction returns one transaction if it belongs to ownerID
func (s *HistoryService) GetTransaction(ctx context.Context, ownerID, id uuid.UUID) (*ledger.Transaction, error) {
	t, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, asNotFound(err)
	}
	if t.OwnerID != ownerID {
		return nil, asNotFound(ledger.ErrTransactionNotFound{ID: id})
	}
	return t, nil
}

// ListActivity returns the owner's projected notification feed
func (s *HistoryService) ListActivity(ctx context.Context, ownerID uuid.UUID, page, perPage int) (*ActivityPage, error) {
	page, perPage, limit, offset := pageBounds(page, perPage)

	items, err := s.activity.ListByOwner(ctx, ownerID.String(), limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.activity.CountByOwner(ctx, ownerID.String())
	if err != nil {
		return nil, err
	}

	return &ActivityPage{Items: items, Total: total, Page: page, PerPage: perPage}, nil
}
