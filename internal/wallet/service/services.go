package service

// Services bundles the wallet use cases served by the HTTP API and the payment processor
type Services struct {
	Accounts  *AccountService
	History   *HistoryService
	Transfers *TransferService
	Payments  *PaymentService
	Reversals *ReversalService
}
