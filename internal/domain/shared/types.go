package shared

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// EventType names a terminal state change that owners are notified about
type EventType string

const (
	EventWalletCredited      EventType = "wallet.credited"
	EventWalletDebited       EventType = "wallet.debited"
	EventTransferSent        EventType = "wallet.transfer_sent"
	EventTransferReceived    EventType = "wallet.transfer_received"
	EventTransactionReversed EventType = "wallet.transaction_reversed"
	EventLowBalance          EventType = "wallet.low_balance"
	EventPaymentCompleted    EventType = "payment.completed"
	EventPaymentFailed       EventType = "payment.failed"
	EventPaymentRefunded     EventType = "payment.refunded"
)
