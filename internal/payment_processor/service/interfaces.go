package service

import (
	"context"

	"github.com/carebridge-wallet-ledger/internal/domain/payment"
	"github.com/carebridge-wallet-ledger/internal/platform/gateway"
	walletservice "github.com/carebridge-wallet-ledger/internal/wallet/service"
)

// EventProcessor applies one decoded gateway callback
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *gateway.Event, raw []byte) error
}

// GatewayEventService settles or fails the payment intent a callback refers to
type GatewayEventService interface {
	HandleGatewayEvent(ctx context.Context, ev walletservice.GatewayEvent) (*payment.Intent, error)
}
