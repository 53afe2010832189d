package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/carebridge-wallet-ledger/internal/config"
	"github.com/carebridge-wallet-ledger/internal/domain/activity"
	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/domain/outbox"
	"github.com/carebridge-wallet-ledger/internal/domain/payment"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/carebridge-wallet-ledger/internal/platform/gateway"
	"github.com/carebridge-wallet-ledger/internal/platform/security"
	"github.com/carebridge-wallet-ledger/internal/wallet/components"
	"github.com/carebridge-wallet-ledger/internal/wallet/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory stand-in for Postgres. Transactions are serialized
// and rolled back by restoring a snapshot.
type memStore struct {
	txMu   sync.Mutex
	dataMu sync.Mutex

	accounts   map[uuid.UUID]wallet.Account
	ledger     map[uuid.UUID]ledger.Transaction
	ledgerRefs map[string]uuid.UUID
	intents    map[uuid.UUID]payment.Intent
	intentRefs map[string]uuid.UUID
	outbox     []outbox.Message
}

func newMemStore() *memStore {
	return &memStore{
		accounts:   map[uuid.UUID]wallet.Account{},
		ledger:     map[uuid.UUID]ledger.Transaction{},
		ledgerRefs: map[string]uuid.UUID{},
		intents:    map[uuid.UUID]payment.Intent{},
		intentRefs: map[string]uuid.UUID{},
	}
}

type snapshot struct {
	accounts   map[uuid.UUID]wallet.Account
	ledger     map[uuid.UUID]ledger.Transaction
	ledgerRefs map[string]uuid.UUID
	intents    map[uuid.UUID]payment.Intent
	intentRefs map[string]uuid.UUID
	outbox     []outbox.Message
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() snapshot {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	return snapshot{
		accounts:   copyMap(s.accounts),
		ledger:     copyMap(s.ledger),
		ledgerRefs: copyMap(s.ledgerRefs),
		intents:    copyMap(s.intents),
		intentRefs: copyMap(s.intentRefs),
		outbox:     append([]outbox.Message(nil), s.outbox...),
	}
}

func (s *memStore) restore(snap snapshot) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.accounts = snap.accounts
	s.ledger = snap.ledger
	s.ledgerRefs = snap.ledgerRefs
	s.intents = snap.intents
	s.intentRefs = snap.intentRefs
	s.outbox = snap.outbox
}

func (s *memStore) ExecuteTx(_ context.Context, fn func(tx pgx.Tx) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()
	return fn(nil)
}

func (s *memStore) account(id uuid.UUID) wallet.Account {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	return s.accounts[id]
}

func (s *memStore) ledgerFor(accountID uuid.UUID) []ledger.Transaction {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	var out []ledger.Transaction
	for _, t := range s.ledger {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *memStore) events(event shared.EventType) []outbox.Message {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	var out []outbox.Message
	for _, m := range s.outbox {
		if m.EventType == event {
			out = append(out, m)
		}
	}
	return out
}

// accountRepo

type memAccountRepo struct {
	store *memStore
	inTx  bool
	// afterOwnerRead runs once an owner lookup has returned its copy
	afterOwnerRead func(acc *wallet.Account)
}

func (r *memAccountRepo) EnsureForOwner(_ context.Context, acc *wallet.Account) (*wallet.Account, error) {
	if !r.inTx {
		r.store.txMu.Lock()
		defer r.store.txMu.Unlock()
	}
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	for _, existing := range r.store.accounts {
		if existing.OwnerID == acc.OwnerID {
			cp := existing
			return &cp, nil
		}
	}
	r.store.accounts[acc.ID] = *acc
	cp := *acc
	return &cp, nil
}

func (r *memAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*wallet.Account, error) {
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	acc, ok := r.store.accounts[id]
	if !ok {
		return nil, wallet.ErrAccountNotFound{ID: id}
	}
	return &acc, nil
}

func (r *memAccountRepo) GetByOwnerID(_ context.Context, ownerID uuid.UUID) (*wallet.Account, error) {
	acc, err := r.findByOwner(ownerID)
	if err == nil && r.afterOwnerRead != nil {
		r.afterOwnerRead(acc)
	}
	return acc, err
}

func (r *memAccountRepo) findByOwner(ownerID uuid.UUID) (*wallet.Account, error) {
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	for _, acc := range r.store.accounts {
		if acc.OwnerID == ownerID {
			cp := acc
			return &cp, nil
		}
	}
	return nil, wallet.ErrAccountNotFound{OwnerID: ownerID}
}

func (r *memAccountRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*wallet.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *memAccountRepo) Update(_ context.Context, acc *wallet.Account) error {
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	stored, ok := r.store.accounts[acc.ID]
	if !ok {
		return wallet.ErrAccountNotFound{ID: acc.ID}
	}
	if stored.Version != acc.Version {
		return wallet.ErrConcurrentModification{AccountID: acc.ID}
	}
	acc.Version++
	r.store.accounts[acc.ID] = *acc
	return nil
}

func (r *memAccountRepo) WithTx(_ pgx.Tx) wallet.Repository {
	return &memAccountRepo{store: r.store, inTx: true}
}

// ledgerRepo

type memLedgerRepo struct {
	store *memStore
}

func (r *memLedgerRepo) Create(_ context.Context, t *ledger.Transaction) error {
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	if _, dup := r.store.ledgerRefs[t.TransactionID]; dup {
		return ledger.ErrDuplicateTransactionID{TransactionID: t.TransactionID}
	}
	r.store.ledger[t.ID] = *t
	r.store.ledgerRefs[t.TransactionID] = t.ID
	return nil
}

func (r *memLedgerRepo) GetByID(_ context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	t, ok := r.store.ledger[id]
	if !ok {
		return nil, ledger.ErrTransactionNotFound{ID: id}
	}
	return &t, nil
}

func (r *memLedgerRepo) GetByTransactionID(ctx context.Context, transactionID string) (*ledger.Transaction, error) {
	r.store.dataMu.Lock()
	id, ok := r.store.ledgerRefs[transactionID]
	r.store.dataMu.Unlock()
	if !ok {
		return nil, ledger.ErrTransactionNotFound{}
	}
	return r.GetByID(ctx, id)
}

func (r *memLedgerRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r *memLedgerRepo) Finalize(_ context.Context, t *ledger.Transaction) error {
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	stored, ok := r.store.ledger[t.ID]
	if !ok || stored.Status != ledger.StatusPending {
		return ledger.ErrStaleTransaction{ID: t.ID}
	}
	r.store.ledger[t.ID] = *t
	return nil
}

func (r *memLedgerRepo) MarkReversed(_ context.Context, t *ledger.Transaction) error {
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	stored, ok := r.store.ledger[t.ID]
	if !ok || stored.Status != ledger.StatusCompleted || stored.ReversalTransactionID != nil {
		return ledger.ErrStaleTransaction{ID: t.ID}
	}
	stored.Status = ledger.StatusReversed
	stored.ReversalTransactionID = t.ReversalTransactionID
	r.store.ledger[t.ID] = stored
	return nil
}

func (r *memLedgerRepo) matching(filter ledger.Filter) []*ledger.Transaction {
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	var out []*ledger.Transaction
	for _, t := range r.store.ledger {
		if t.AccountID != filter.AccountID ||
			(filter.Type != "" && t.Type != filter.Type) ||
			(filter.Status != "" && t.Status != filter.Status) ||
			(filter.Category != "" && t.Category != filter.Category) ||
			(filter.From != nil && t.CreatedAt.Before(*filter.From)) ||
			(filter.To != nil && t.CreatedAt.After(*filter.To)) {
			continue
		}
		cp := t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memLedgerRepo) List(_ context.Context, filter ledger.Filter) ([]*ledger.Transaction, error) {
	all := r.matching(filter)
	if filter.Offset >= len(all) {
		return []*ledger.Transaction{}, nil
	}
	end := len(all)
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return all[filter.Offset:end], nil
}

func (r *memLedgerRepo) Count(_ context.Context, filter ledger.Filter) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

func (r *memLedgerRepo) WithTx(_ pgx.Tx) ledger.Repository {
	return r
}

// paymentRepo

type memPaymentRepo struct {
	store *memStore
}

func (r *memPaymentRepo) Create(_ context.Context, intent *payment.Intent) error {
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	if _, dup := r.store.intentRefs[intent.TransactionID]; dup {
		return payment.ErrDuplicateIntent{TransactionID: intent.TransactionID}
	}
	r.store.intents[intent.ID] = *intent
	r.store.intentRefs[intent.TransactionID] = intent.ID
	return nil
}

func (r *memPaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*payment.Intent, error) {
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	intent, ok := r.store.intents[id]
	if !ok {
		return nil, payment.ErrIntentNotFound{Ref: id.String()}
	}
	return &intent, nil
}

func (r *memPaymentRepo) GetByTransactionID(ctx context.Context, transactionID string) (*payment.Intent, error) {
	r.store.dataMu.Lock()
	id, ok := r.store.intentRefs[transactionID]
	r.store.dataMu.Unlock()
	if !ok {
		return nil, payment.ErrIntentNotFound{Ref: transactionID}
	}
	return r.GetByID(ctx, id)
}

func (r *memPaymentRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*payment.Intent, error) {
	return r.GetByID(ctx, id)
}

func (r *memPaymentRepo) LockByTransactionID(ctx context.Context, transactionID string) (*payment.Intent, error) {
	return r.GetByTransactionID(ctx, transactionID)
}

func (r *memPaymentRepo) Update(_ context.Context, intent *payment.Intent) error {
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	if _, ok := r.store.intents[intent.ID]; !ok {
		return payment.ErrIntentNotFound{Ref: intent.ID.String()}
	}
	r.store.intents[intent.ID] = *intent
	return nil
}

func (r *memPaymentRepo) ListDueRetries(_ context.Context, now time.Time, limit int) ([]*payment.Intent, error) {
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	var out []*payment.Intent
	for _, intent := range r.store.intents {
		if intent.CanRetry(now) {
			cp := intent
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRetryAt.Before(*out[j].NextRetryAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memPaymentRepo) WithTx(_ pgx.Tx) payment.Repository {
	return r
}

// outboxRepo

type memOutboxRepo struct {
	store *memStore
}

func (r *memOutboxRepo) Create(_ context.Context, message *outbox.Message) error {
	r.store.dataMu.Lock()
	defer r.store.dataMu.Unlock()
	message.ID = int64(len(r.store.outbox) + 1)
	r.store.outbox = append(r.store.outbox, *message)
	return nil
}

func (r *memOutboxRepo) GetPending(context.Context, int) ([]*outbox.Message, error) {
	return nil, errors.New("not used")
}

func (r *memOutboxRepo) UpdateStatus(context.Context, int64, shared.OutboxStatus) error {
	return errors.New("not used")
}

func (r *memOutboxRepo) IncrementAttempts(context.Context, int64) error {
	return errors.New("not used")
}

func (r *memOutboxRepo) PurgeProcessed(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *memOutboxRepo) WithTx(_ pgx.Tx) outbox.Repository {
	return r
}

// activityRepo

type memActivityRepo struct {
	mu    sync.Mutex
	items []*activity.Activity
}

func (r *memActivityRepo) Append(_ context.Context, a *activity.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, a)
	return nil
}

func (r *memActivityRepo) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]*activity.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*activity.Activity
	for _, a := range r.items {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	if offset >= len(out) {
		return []*activity.Activity{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memActivityRepo) CountByOwner(_ context.Context, ownerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.items {
		if a.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

// fakeGateway answers charges and payouts from programmable functions
type fakeGateway struct {
	mu      sync.Mutex
	charge  func(gateway.ChargeRequest) (*gateway.Result, error)
	payout  func(gateway.PayoutRequest) (*gateway.Result, error)
	charges []gateway.ChargeRequest
	payouts []gateway.PayoutRequest
}

func (g *fakeGateway) Charge(_ context.Context, req gateway.ChargeRequest) (*gateway.Result, error) {
	g.mu.Lock()
	g.charges = append(g.charges, req)
	fn := g.charge
	g.mu.Unlock()
	if fn == nil {
		return &gateway.Result{Status: gateway.StatusSuccess, ExternalID: "ch_" + req.Reference}, nil
	}
	return fn(req)
}

func (g *fakeGateway) Payout(_ context.Context, req gateway.PayoutRequest) (*gateway.Result, error) {
	g.mu.Lock()
	g.payouts = append(g.payouts, req)
	fn := g.payout
	g.mu.Unlock()
	if fn == nil {
		return &gateway.Result{Status: gateway.StatusSuccess, ExternalID: "po_" + req.Reference}, nil
	}
	return fn(req)
}

// testClock is a settable clock shared by every service of a harness
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const testPin = "123456"

var jakarta = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		panic(err)
	}
	return loc
}()

// harness wires the real services over the in-memory store
type harness struct {
	store    *memStore
	gateway  *fakeGateway
	activity *memActivityRepo
	clock    *testClock
	services *service.Services
	accounts wallet.Repository
	pinHash  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := newMemStore()
	h := &harness{
		store:    store,
		gateway:  &fakeGateway{},
		activity: &memActivityRepo{},
		// 10:00 in Jakarta on a Tuesday
		clock:    &testClock{now: time.Date(2025, 6, 10, 10, 0, 0, 0, jakarta)},
		accounts: &memAccountRepo{store: store},
	}

	cfg := &config.Config{
		Ledger: config.LedgerConfig{
			Timezone:            "Asia/Jakarta",
			MinWithdrawal:       decimal.NewFromInt(10000),
			LowBalanceThreshold: decimal.NewFromInt(10000),
			PinCompareTimeout:   5 * time.Second,
		},
		Payment: config.PaymentConfig{IntentTTL: 24 * time.Hour, MaxRetry: 3},
	}

	hasher := security.NewPinHasher(4)
	hash, err := hasher.Hash(testPin)
	require.NoError(t, err)
	h.pinHash = hash

	services, err := components.CreateServices(
		store,
		components.Repositories{
			Accounts: h.accounts,
			Ledger:   &memLedgerRepo{store: store},
			Payments: &memPaymentRepo{store: store},
			Outbox:   &memOutboxRepo{store: store},
			Activity: h.activity,
		},
		h.gateway,
		hasher,
		h.clock.Now,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg,
	)
	require.NoError(t, err)
	h.services = services
	return h
}

// seedWallet stores an active wallet with balance and the test PIN
func (h *harness) seedWallet(t *testing.T, balance int64) *wallet.Account {
	t.Helper()
	policy := wallet.NewLimitPolicy(jakarta)
	acc := wallet.NewAccount(uuid.New(), policy, decimal.NewFromInt(10000), h.clock.Now())
	acc.Balance = decimal.NewFromInt(balance)
	hash := h.pinHash
	acc.PinHash = &hash

	stored, err := h.accounts.EnsureForOwner(context.Background(), acc)
	require.NoError(t, err)
	return stored
}

func (h *harness) balance(id uuid.UUID) decimal.Decimal {
	return h.store.account(id).Balance
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// requireDecimal compares decimals by value
func requireDecimal(t *testing.T, expected int64, actual decimal.Decimal) {
	t.Helper()
	require.Truef(t, actual.Equal(dec(expected)), "expected %d, got %s", expected, actual.String())
}
