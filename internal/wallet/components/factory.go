package components

import (
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/config"
	"github.com/carebridge-wallet-ledger/internal/domain/activity"
	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/domain/outbox"
	"github.com/carebridge-wallet-ledger/internal/domain/payment"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	"github.com/carebridge-wallet-ledger/internal/platform/gateway"
	"github.com/carebridge-wallet-ledger/internal/platform/persistence"
	"github.com/carebridge-wallet-ledger/internal/wallet/service"
)

// Repositories are the stores the wallet services are built on
type Repositories struct {
	Accounts wallet.Repository
	Ledger   ledger.Repository
	Payments payment.Repository
	Outbox   outbox.Repository
	Activity activity.Repository
}

// CreateServices wires the wallet services with all their dependencies.
// A nil clock defaults to UTC wall time.
func CreateServices(
	db persistence.TxRunner,
	repos Repositories,
	gatewayClient gateway.Client,
	hasher PinHasher,
	clock service.Clock,
	logger *slog.Logger,
	cfg *config.Config,
) (*service.Services, error) {
	loc, err := cfg.Ledger.Location()
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	policy := wallet.NewLimitPolicy(loc)
	accounts := NewAccountManager(repos.Accounts, policy, cfg.Ledger.LowBalanceThreshold, clock, logger.With("component", "account_manager"))
	journal := NewJournal(repos.Ledger, logger.With("component", "journal"))
	events := NewEventRecorder(repos.Outbox, logger.With("component", "event_recorder"))
	pins := NewPinGuard(db, repos.Accounts, hasher, cfg.Ledger.PinCompareTimeout, logger.With("component", "pin_guard"))

	settings := service.PaymentSettings{
		IntentTTL:     cfg.Payment.IntentTTL,
		MaxRetry:      cfg.Payment.MaxRetry,
		MinWithdrawal: cfg.Ledger.MinWithdrawal,
	}

	logger.Info("Created wallet services", "timezone", loc.String(), "max_retry", settings.MaxRetry)
	return &service.Services{
		Accounts:  service.NewAccountService(db, accounts, pins, clock, logger.With("service", "account")),
		History:   service.NewHistoryService(accounts, repos.Ledger, repos.Activity, logger.With("service", "history")),
		Transfers: service.NewTransferService(db, accounts, journal, events, pins, clock, logger.With("service", "transfer")),
		Payments:  service.NewPaymentService(db, accounts, journal, events, pins, repos.Payments, gatewayClient, settings, clock, logger.With("service", "payment")),
		Reversals: service.NewReversalService(db, accounts, journal, events, clock, logger.With("service", "reversal")),
	}, nil
}
