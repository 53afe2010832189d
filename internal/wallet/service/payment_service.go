package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/domain/payment"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/carebridge-wallet-ledger/internal/platform/gateway"
	"github.com/carebridge-wallet-ledger/internal/platform/idgen"
	"github.com/carebridge-wallet-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const maxReferenceAttempts = 5

// PaymentSettings are the payment knobs taken from configuration
type PaymentSettings struct {
	IntentTTL     time.Duration
	MaxRetry      int
	MinWithdrawal decimal.Decimal
}

// TopUpRequest adds funds to a wallet through the gateway
type TopUpRequest struct {
	OwnerID uuid.UUID
	Amount  decimal.Decimal
	Method  payment.Method
}

// WithdrawRequest pays wallet funds out to a bank account
type WithdrawRequest struct {
	OwnerID     uuid.UUID
	Amount      decimal.Decimal
	BankAccount payment.BankAccount
	Pin         string
}

// AppointmentPaymentRequest pays an appointment from the wallet balance
type AppointmentPaymentRequest struct {
	OwnerID       uuid.UUID
	AppointmentID string
	Amount        decimal.Decimal
	PlatformFee   decimal.Decimal
}

// GatewayEvent is an asynchronous gateway verdict for an intent
type GatewayEvent struct {
	TransactionID string
	ExternalID    string
	Success       bool
	Reason        string
	Raw           json.RawMessage
}

// PaymentService drives payment intents through the gateway and applies their wallet effects
type PaymentService struct {
	db       persistence.TxRunner
	accounts AccountManager
	journal  Journal
	events   EventRecorder
	pins     PinGuard
	payments payment.Repository
	gateway  gateway.Client
	settings PaymentSettings
	clock    Clock
	logger   *slog.Logger
}

func NewPaymentService(
	db persistence.TxRunner,
	accounts AccountManager,
	journal Journal,
	events EventRecorder,
	pins PinGuard,
	payments payment.Repository,
	gatewayClient gateway.Client,
	settings PaymentSettings,
	clock Clock,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		db:       db,
		accounts: accounts,
		journal:  journal,
		events:   events,
		pins:     pins,
		payments: payments,
		gateway:  gatewayClient,
		settings: settings,
		clock:    clock,
		logger:   logger,
	}
}

// GetPayment returns an intent owned by ownerID
func (s *PaymentService) GetPayment(ctx context.Context, ownerID, id uuid.UUID) (*payment.Intent, error) {
	intent, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, asNotFound(err)
	}
	if intent.OwnerID != ownerID {
		return nil, asNotFound(payment.ErrIntentNotFound{Ref: id.String()})
	}
	return intent, nil
}

// TopUp opens a top-up intent with a pending credit. Card and e-wallet top-ups are
// charged right away; bank transfers stay pending until the gateway calls back.
func (s *PaymentService) TopUp(ctx context.Context, req TopUpRequest) (*payment.Intent, error) {
	if req.Method == payment.MethodWallet || !req.Method.Valid() {
		return nil, shared.NewError(shared.KindInvalidRequest, "unsupported top-up method %q", req.Method)
	}

	acc, err := s.accounts.GetOrCreate(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	intent, err := payment.NewIntent(payment.Params{
		OwnerID:   req.OwnerID,
		AccountID: acc.ID,
		Type:      payment.TypeWalletTopUp,
		Method:    req.Method,
		Amount:    req.Amount,
		TTL:       s.settings.IntentTTL,
		MaxRetry:  s.settings.MaxRetry,
		AutoRetry: req.Method != payment.MethodBankTransfer,
	}, now)
	if err != nil {
		return nil, err
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.accounts.Lock(ctx, tx, acc.ID)
		if err != nil {
			return err
		}
		if locked.Status != wallet.StatusActive {
			return shared.NewError(shared.KindInvalidState, "wallet is %s", locked.Status)
		}
		credit, err := ledger.NewTransaction(ledger.Params{
			AccountID:     locked.ID,
			OwnerID:       locked.OwnerID,
			Direction:     ledger.DirectionCredit,
			Category:      ledger.CategoryTopUp,
			Amount:        req.Amount,
			ReferenceType: ledger.ReferenceTopUp,
			Description:   "Wallet top-up via " + string(req.Method),
		}, now)
		if err != nil {
			return err
		}
		return s.createIntent(ctx, tx, intent, credit)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Top-up intent created",
		"transaction_id", intent.TransactionID,
		"owner_id", req.OwnerID.String(),
		"method", string(req.Method),
		"amount", req.Amount.String(),
	)

	if req.Method == payment.MethodBankTransfer {
		return intent, nil
	}
	return s.charge(ctx, intent)
}

// Withdraw verifies the PIN, freezes the amount and asks the gateway for a payout.
// A failed payout releases the hold. An ambiguous one keeps it until the gateway calls back.
func (s *PaymentService) Withdraw(ctx context.Context, req WithdrawRequest) (*payment.Intent, error) {
	if err := shared.CheckAmount(req.Amount); err != nil {
		return nil, err
	}

	acc, err := s.accounts.GetOrCreate(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	bank := req.BankAccount
	intent, err := payment.NewIntent(payment.Params{
		OwnerID:     req.OwnerID,
		AccountID:   acc.ID,
		Type:        payment.TypeWithdrawal,
		Method:      payment.MethodBankTransfer,
		Amount:      req.Amount,
		BankAccount: &bank,
		TTL:         s.settings.IntentTTL,
		MaxRetry:    s.settings.MaxRetry,
		AutoRetry:   true,
	}, now)
	if err != nil {
		return nil, err
	}

	var check pinCheck
	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.accounts.Lock(ctx, tx, acc.ID)
		if err != nil {
			return err
		}
		if err := check.verify(ctx, s.pins, locked, req.Pin, now); err != nil {
			return err
		}

		wasLow := locked.IsLowBalance()
		if err := locked.HoldForWithdrawal(req.Amount, s.settings.MinWithdrawal, s.accounts.Policy(), now); err != nil {
			return err
		}

		debit, err := ledger.NewTransaction(ledger.Params{
			AccountID:     locked.ID,
			OwnerID:       locked.OwnerID,
			Direction:     ledger.DirectionDebit,
			Category:      ledger.CategoryWithdrawal,
			Amount:        req.Amount,
			ReferenceType: ledger.ReferenceWithdrawal,
			Description:   "Withdrawal to " + bank.BankCode + " " + bank.AccountNumber,
		}, now)
		if err != nil {
			return err
		}
		if err := intent.MarkProcessing(now); err != nil {
			return err
		}
		if err := s.createIntent(ctx, tx, intent, debit); err != nil {
			return err
		}
		if err := s.accounts.Save(ctx, tx, locked); err != nil {
			return err
		}
		return s.events.RecordLowBalance(ctx, tx, locked, wasLow)
	})
	if err != nil {
		return nil, afterPinCheck(ctx, s.pins, check, err, acc.ID, now)
	}

	s.logger.Info("Withdrawal hold placed",
		"transaction_id", intent.TransactionID,
		"owner_id", req.OwnerID.String(),
		"amount", req.Amount.String(),
	)
	return s.dispatch(ctx, intent)
}

// PayAppointment debits the wallet for an appointment and records a completed intent
func (s *PaymentService) PayAppointment(ctx context.Context, req AppointmentPaymentRequest) (*payment.Intent, error) {
	if req.AppointmentID == "" {
		return nil, shared.NewError(shared.KindInvalidRequest, "appointment id is required")
	}

	acc, err := s.accounts.GetOrCreate(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	appointmentID := req.AppointmentID
	intent, err := payment.NewIntent(payment.Params{
		OwnerID:       req.OwnerID,
		AccountID:     acc.ID,
		AppointmentID: &appointmentID,
		Type:          payment.TypeAppointment,
		Method:        payment.MethodWallet,
		Amount:        req.Amount,
		PlatformFee:   req.PlatformFee,
	}, now)
	if err != nil {
		return nil, err
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.accounts.Lock(ctx, tx, acc.ID)
		if err != nil {
			return err
		}

		wasLow := locked.IsLowBalance()
		before := locked.Balance
		if err := locked.Debit(req.Amount, s.accounts.Policy(), now); err != nil {
			return err
		}

		debit, err := ledger.NewTransaction(ledger.Params{
			AccountID:     locked.ID,
			OwnerID:       locked.OwnerID,
			Direction:     ledger.DirectionDebit,
			Category:      ledger.CategorySpending,
			Amount:        req.Amount,
			ReferenceType: ledger.ReferenceAppointment,
			ReferenceID:   req.AppointmentID,
			Description:   "Appointment payment",
		}, now)
		if err != nil {
			return err
		}
		if err := debit.Complete(before, locked.Balance, now); err != nil {
			return err
		}
		if _, err := intent.MarkPaid("", nil, now); err != nil {
			return err
		}
		if err := s.createIntent(ctx, tx, intent, debit); err != nil {
			return err
		}
		if err := s.accounts.Save(ctx, tx, locked); err != nil {
			return err
		}

		if err := s.events.RecordTransaction(ctx, tx, shared.EventWalletDebited, debit); err != nil {
			return err
		}
		if err := s.events.RecordPayment(ctx, tx, shared.EventPaymentCompleted, intent); err != nil {
			return err
		}
		return s.events.RecordLowBalance(ctx, tx, locked, wasLow)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Appointment paid from wallet",
		"transaction_id", intent.TransactionID,
		"appointment_id", req.AppointmentID,
		"amount", req.Amount.String(),
	)
	return intent, nil
}

// Cancel ends the owner's pending intent. Nothing was credited or held yet.
func (s *PaymentService) Cancel(ctx context.Context, ownerID, id uuid.UUID) (*payment.Intent, error) {
	now := s.clock()
	var (
		intent     *payment.Intent
		expiredErr error
	)

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		payments := s.payments.WithTx(tx)
		locked, err := payments.LockForUpdate(ctx, id)
		if err != nil {
			return asNotFound(err)
		}
		if locked.OwnerID != ownerID {
			return asNotFound(payment.ErrIntentNotFound{Ref: id.String()})
		}

		if locked.Status == payment.StatusPending && locked.IsExpired(now) {
			if err := locked.Expire(now); err != nil {
				return err
			}
			expiredErr = shared.NewError(shared.KindInvalidState, "payment %s has expired", locked.TransactionID)
		} else if err := locked.Cancel(now); err != nil {
			return err
		}

		if err := s.closePendingLedger(ctx, tx, locked, now); err != nil {
			return err
		}
		if err := payments.Update(ctx, locked); err != nil {
			return err
		}
		intent = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expiredErr != nil {
		return nil, expiredErr
	}

	s.logger.Info("Payment cancelled", "transaction_id", intent.TransactionID, "owner_id", ownerID.String())
	return intent, nil
}

// Refund reverses the wallet effect of a completed intent once. A missing amount refunds in full.
func (s *PaymentService) Refund(ctx context.Context, id uuid.UUID, amount decimal.NullDecimal, reason string) (*payment.Intent, error) {
	now := s.clock()
	var intent *payment.Intent

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		payments := s.payments.WithTx(tx)
		locked, err := payments.LockForUpdate(ctx, id)
		if err != nil {
			return asNotFound(err)
		}
		if err := locked.ProcessRefund(amount, reason, now); err != nil {
			return err
		}

		acc, err := s.accounts.Lock(ctx, tx, locked.AccountID)
		if err != nil {
			return err
		}
		wasLow := acc.IsLowBalance()
		before := acc.Balance
		refund := locked.RefundAmount.Decimal

		direction := ledger.DirectionCredit
		event := shared.EventWalletCredited
		if locked.Type == payment.TypeWalletTopUp {
			// a refunded top-up takes the credited funds back out
			direction = ledger.DirectionDebit
			event = shared.EventWalletDebited
			err = acc.RemoveRefunded(refund, now)
		} else {
			err = acc.CreditRefund(refund, now)
		}
		if err != nil {
			return err
		}

		entry, err := ledger.NewTransaction(ledger.Params{
			AccountID:     acc.ID,
			OwnerID:       acc.OwnerID,
			Direction:     direction,
			Category:      ledger.CategoryRefund,
			Amount:        refund,
			ReferenceType: ledger.ReferenceRefund,
			ReferenceID:   locked.TransactionID,
			Description:   reason,
		}, now)
		if err != nil {
			return err
		}
		if err := entry.Complete(before, acc.Balance, now); err != nil {
			return err
		}
		if err := s.journal.Append(ctx, tx, entry); err != nil {
			return err
		}
		if err := s.accounts.Save(ctx, tx, acc); err != nil {
			return err
		}
		if err := payments.Update(ctx, locked); err != nil {
			return err
		}

		if err := s.events.RecordTransaction(ctx, tx, event, entry); err != nil {
			return err
		}
		if err := s.events.RecordPayment(ctx, tx, shared.EventPaymentRefunded, locked); err != nil {
			return err
		}
		if err := s.events.RecordLowBalance(ctx, tx, acc, wasLow); err != nil {
			return err
		}
		intent = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment refunded",
		"transaction_id", intent.TransactionID,
		"refund_amount", intent.RefundAmount.Decimal.String(),
	)
	return intent, nil
}

// Retry re-attempts a failed intent whose retry is due. Withdrawals place a new hold first.
func (s *PaymentService) Retry(ctx context.Context, id uuid.UUID) (*payment.Intent, error) {
	now := s.clock()
	var (
		intent  *payment.Intent
		holdErr error
	)

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		payments := s.payments.WithTx(tx)
		locked, err := payments.LockForUpdate(ctx, id)
		if err != nil {
			return asNotFound(err)
		}
		if err := locked.Retry(now); err != nil {
			return err
		}

		if locked.Type == payment.TypeWithdrawal {
			acc, err := s.accounts.Lock(ctx, tx, locked.AccountID)
			if err != nil {
				return err
			}
			holdErr = acc.HoldForWithdrawal(locked.Amount, s.settings.MinWithdrawal, s.accounts.Policy(), now)
			if holdErr != nil {
				// funds are gone; burn this attempt instead of looping on it
				if err := s.failIntent(ctx, tx, locked, holdErr.Error(), nil, false, now); err != nil {
					return err
				}
			} else if err := s.accounts.Save(ctx, tx, acc); err != nil {
				return err
			}
		}

		if err := payments.Update(ctx, locked); err != nil {
			return err
		}
		intent = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	if holdErr != nil {
		s.logger.Warn("Retry could not hold funds", "transaction_id", intent.TransactionID, "error", holdErr)
		return intent, holdErr
	}

	s.logger.Info("Retrying payment", "transaction_id", intent.TransactionID, "retry_count", intent.RetryCount)
	return s.dispatch(ctx, intent)
}

// ProcessDueRetries retries up to limit failed intents whose backoff has elapsed
func (s *PaymentService) ProcessDueRetries(ctx context.Context, limit int) (int, error) {
	due, err := s.payments.ListDueRetries(ctx, s.clock(), limit)
	if err != nil {
		return 0, err
	}

	retried := 0
	for _, intent := range due {
		if ctx.Err() != nil {
			return retried, ctx.Err()
		}
		if _, err := s.Retry(ctx, intent.ID); err != nil {
			s.logger.Warn("Scheduled retry failed", "transaction_id", intent.TransactionID, "error", err)
			continue
		}
		retried++
	}
	return retried, nil
}

// HandleGatewayEvent applies an asynchronous gateway verdict. Replays are no-ops.
func (s *PaymentService) HandleGatewayEvent(ctx context.Context, ev GatewayEvent) (*payment.Intent, error) {
	return s.applyOutcome(ctx, ev)
}

func (s *PaymentService) charge(ctx context.Context, intent *payment.Intent) (*payment.Intent, error) {
	now := s.clock()
	var expiredErr error

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		payments := s.payments.WithTx(tx)
		locked, err := payments.LockForUpdate(ctx, intent.ID)
		if err != nil {
			return err
		}
		if err := locked.MarkProcessing(now); err != nil {
			if locked.Status != payment.StatusExpired {
				return err
			}
			expiredErr = err
			if err := s.closePendingLedger(ctx, tx, locked, now); err != nil {
				return err
			}
		}
		if err := payments.Update(ctx, locked); err != nil {
			return err
		}
		intent = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expiredErr != nil {
		return nil, expiredErr
	}
	return s.dispatch(ctx, intent)
}

// dispatch calls the gateway for a processing intent. No row lock is held here.
func (s *PaymentService) dispatch(ctx context.Context, intent *payment.Intent) (*payment.Intent, error) {
	logger := s.logger.With("transaction_id", intent.TransactionID)

	var (
		result *gateway.Result
		err    error
	)
	switch intent.Type {
	case payment.TypeWalletTopUp:
		result, err = s.gateway.Charge(ctx, gateway.ChargeRequest{
			Reference: intent.TransactionID,
			OwnerID:   intent.OwnerID.String(),
			Amount:    intent.Amount,
			Method:    string(intent.Method),
		})
	case payment.TypeWithdrawal:
		bank := payment.BankAccount{}
		if intent.BankAccount != nil {
			bank = *intent.BankAccount
		}
		result, err = s.gateway.Payout(ctx, gateway.PayoutRequest{
			Reference:     intent.TransactionID,
			OwnerID:       intent.OwnerID.String(),
			Amount:        intent.NetAmount,
			BankCode:      bank.BankCode,
			AccountNumber: bank.AccountNumber,
			AccountName:   bank.AccountName,
		})
	default:
		return nil, shared.NewError(shared.KindInvalidState, "payment type %s is not gateway backed", intent.Type)
	}

	if err != nil {
		if errors.Is(err, gateway.ErrAmbiguous) {
			logger.Warn("Gateway outcome unknown, awaiting callback", "error", err)
			return intent, nil
		}
		return nil, fmt.Errorf("gateway call for %s: %w", intent.TransactionID, err)
	}

	if result.Status == gateway.StatusPending {
		logger.Info("Gateway accepted payment, awaiting callback", "external_id", result.ExternalID)
		return intent, nil
	}

	updated, err := s.applyOutcome(ctx, GatewayEvent{
		TransactionID: intent.TransactionID,
		ExternalID:    result.ExternalID,
		Success:       result.Success(),
		Reason:        result.Reason,
		Raw:           result.Raw,
	})
	if err != nil {
		return nil, err
	}
	if updated.Status == payment.StatusFailed && updated.NextRetryAt == nil {
		return updated, shared.NewError(shared.KindGatewayError, "payment %s failed: %s", updated.TransactionID, updated.FailureReason)
	}
	return updated, nil
}

func (s *PaymentService) applyOutcome(ctx context.Context, ev GatewayEvent) (*payment.Intent, error) {
	logger := s.logger.With("transaction_id", ev.TransactionID)
	now := s.clock()
	var (
		intent     *payment.Intent
		expiredErr error
	)

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		payments := s.payments.WithTx(tx)
		locked, err := payments.LockByTransactionID(ctx, ev.TransactionID)
		if err != nil {
			return asNotFound(err)
		}
		intent = locked

		if ev.Success {
			applied, err := locked.MarkPaid(ev.ExternalID, ev.Raw, now)
			if err != nil {
				if locked.Status != payment.StatusExpired {
					return err
				}
				expiredErr = err
				if err := s.closePendingLedger(ctx, tx, locked, now); err != nil {
					return err
				}
				return payments.Update(ctx, locked)
			}
			if !applied {
				logger.Info("Payment already completed, ignoring replay")
				return nil
			}
			if err := s.settle(ctx, tx, locked, now); err != nil {
				return err
			}
			return payments.Update(ctx, locked)
		}

		if locked.Status != payment.StatusPending && locked.Status != payment.StatusProcessing {
			logger.Info("Ignoring failure for settled payment", "status", string(locked.Status))
			return nil
		}
		if err := s.failIntent(ctx, tx, locked, ev.Reason, ev.Raw, locked.Type == payment.TypeWithdrawal, now); err != nil {
			return err
		}
		return payments.Update(ctx, locked)
	})
	if err != nil {
		return nil, err
	}
	if expiredErr != nil {
		return nil, expiredErr
	}

	logger.Info("Gateway outcome applied", "status", string(intent.Status))
	return intent, nil
}

// settle applies the wallet effect of a just completed gateway intent
func (s *PaymentService) settle(ctx context.Context, tx pgx.Tx, intent *payment.Intent, now time.Time) error {
	acc, err := s.accounts.Lock(ctx, tx, intent.AccountID)
	if err != nil {
		return err
	}
	entry, err := s.pendingLedger(ctx, tx, intent)
	if err != nil {
		return err
	}

	wasLow := acc.IsLowBalance()
	before := acc.Balance
	event := shared.EventWalletCredited
	switch intent.Type {
	case payment.TypeWalletTopUp:
		err = acc.Credit(entry.Effect(), now)
	case payment.TypeWithdrawal:
		event = shared.EventWalletDebited
		err = acc.SettleHold(entry.Effect(), now)
	default:
		err = shared.NewError(shared.KindInvalidState, "payment type %s is not gateway backed", intent.Type)
	}
	if err != nil {
		return err
	}

	if err := entry.Complete(before, acc.Balance, now); err != nil {
		return err
	}
	if err := s.journal.Finalize(ctx, tx, entry); err != nil {
		return err
	}
	if err := s.accounts.Save(ctx, tx, acc); err != nil {
		return err
	}

	if err := s.events.RecordTransaction(ctx, tx, event, entry); err != nil {
		return err
	}
	if err := s.events.RecordPayment(ctx, tx, shared.EventPaymentCompleted, intent); err != nil {
		return err
	}
	return s.events.RecordLowBalance(ctx, tx, acc, wasLow)
}

// failIntent records a failed attempt. A withdrawal hold is released when releaseHold
// is set; the ledger entry fails only once no retry remains.
func (s *PaymentService) failIntent(ctx context.Context, tx pgx.Tx, intent *payment.Intent, reason string, raw json.RawMessage, releaseHold bool, now time.Time) error {
	heldAt := intent.UpdatedAt
	if err := intent.MarkFailed(reason, raw, now); err != nil {
		return err
	}

	if releaseHold {
		acc, err := s.accounts.Lock(ctx, tx, intent.AccountID)
		if err != nil {
			return err
		}
		if err := acc.ReleaseHold(intent.Amount, heldAt, s.accounts.Policy(), now); err != nil {
			return err
		}
		if err := s.accounts.Save(ctx, tx, acc); err != nil {
			return err
		}
	}

	if intent.NextRetryAt != nil {
		s.logger.Info("Payment failed, retry scheduled",
			"transaction_id", intent.TransactionID,
			"retry_count", intent.RetryCount,
			"next_retry_at", intent.NextRetryAt,
		)
		return nil
	}

	entry, err := s.pendingLedger(ctx, tx, intent)
	if err != nil {
		return err
	}
	if err := entry.Fail(reason, now); err != nil {
		return err
	}
	if err := s.journal.Finalize(ctx, tx, entry); err != nil {
		return err
	}
	return s.events.RecordPayment(ctx, tx, shared.EventPaymentFailed, intent)
}

// closePendingLedger cancels the pending entry of an intent that ended without money moving
func (s *PaymentService) closePendingLedger(ctx context.Context, tx pgx.Tx, intent *payment.Intent, now time.Time) error {
	if intent.LedgerTransactionID == nil {
		return nil
	}
	entry, err := s.journal.Lock(ctx, tx, *intent.LedgerTransactionID)
	if err != nil {
		return err
	}
	if entry.Status != ledger.StatusPending {
		return nil
	}
	if err := entry.Cancel(now); err != nil {
		return err
	}
	return s.journal.Finalize(ctx, tx, entry)
}

func (s *PaymentService) pendingLedger(ctx context.Context, tx pgx.Tx, intent *payment.Intent) (*ledger.Transaction, error) {
	if intent.LedgerTransactionID == nil {
		return nil, shared.NewError(shared.KindInvalidState, "payment %s has no ledger entry", intent.TransactionID)
	}
	return s.journal.Lock(ctx, tx, *intent.LedgerTransactionID)
}

// createIntent stores intent under a fresh unique reference, then appends its ledger entry
func (s *PaymentService) createIntent(ctx context.Context, tx pgx.Tx, intent *payment.Intent, entry *ledger.Transaction) error {
	payments := s.payments.WithTx(tx)
	intent.LedgerTransactionID = &entry.ID

	for attempt := 1; ; attempt++ {
		intent.TransactionID = idgen.New(payment.IDPrefix, intent.CreatedAt)
		err := payments.Create(ctx, intent)
		if err == nil {
			break
		}
		if !errors.Is(err, payment.ErrDuplicateIntent{}) || attempt >= maxReferenceAttempts {
			return err
		}
		s.logger.Warn("Payment reference collision, regenerating", "transaction_id", intent.TransactionID)
	}

	if entry.ReferenceType != ledger.ReferenceAppointment {
		entry.ReferenceID = intent.TransactionID
	}
	return s.journal.Append(ctx, tx, entry)
}
