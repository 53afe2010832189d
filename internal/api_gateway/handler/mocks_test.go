package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/carebridge-wallet-ledger/internal/api_gateway/middleware"
	"github.com/carebridge-wallet-ledger/internal/domain/ledger"
	"github.com/carebridge-wallet-ledger/internal/domain/payment"
	"github.com/carebridge-wallet-ledger/internal/domain/wallet"
	walletservice "github.com/carebridge-wallet-ledger/internal/wallet/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) GetWallet(ctx context.Context, ownerID uuid.UUID) (*wallet.Account, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Account), args.Error(1)
}

func (m *MockWalletService) SetPin(ctx context.Context, ownerID uuid.UUID, pin string) error {
	return m.Called(ctx, ownerID, pin).Error(0)
}

func (m *MockWalletService) ChangePin(ctx context.Context, ownerID uuid.UUID, currentPin, newPin string) error {
	return m.Called(ctx, ownerID, currentPin, newPin).Error(0)
}

func (m *MockWalletService) SetLimits(ctx context.Context, ownerID uuid.UUID, daily, monthly decimal.NullDecimal) (*wallet.Account, error) {
	args := m.Called(ctx, ownerID, daily, monthly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Account), args.Error(1)
}

func (m *MockWalletService) ChangeStatus(ctx context.Context, ownerID uuid.UUID, status wallet.Status) (*wallet.Account, error) {
	args := m.Called(ctx, ownerID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Account), args.Error(1)
}

type MockHistoryService struct {
	mock.Mock
}

func (m *MockHistoryService) ListTransactions(ctx context.Context, ownerID uuid.UUID, q walletservice.TransactionQuery) (*walletservice.TransactionPage, error) {
	args := m.Called(ctx, ownerID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*walletservice.TransactionPage), args.Error(1)
}

func (m *MockHistoryService) GetTransaction(ctx context.Context, ownerID, id uuid.UUID) (*ledger.Transaction, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockHistoryService) ListActivity(ctx context.Context, ownerID uuid.UUID, page, perPage int) (*walletservice.ActivityPage, error) {
	args := m.Called(ctx, ownerID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*walletservice.ActivityPage), args.Error(1)
}

type MockTransferService struct {
	mock.Mock
}

func (m *MockTransferService) Transfer(ctx context.Context, req walletservice.TransferRequest) (*walletservice.TransferResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*walletservice.TransferResult), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) intent(args mock.Arguments) (*payment.Intent, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, ownerID, id uuid.UUID) (*payment.Intent, error) {
	return m.intent(m.Called(ctx, ownerID, id))
}

func (m *MockPaymentService) TopUp(ctx context.Context, req walletservice.TopUpRequest) (*payment.Intent, error) {
	return m.intent(m.Called(ctx, req))
}

func (m *MockPaymentService) Withdraw(ctx context.Context, req walletservice.WithdrawRequest) (*payment.Intent, error) {
	return m.intent(m.Called(ctx, req))
}

func (m *MockPaymentService) PayAppointment(ctx context.Context, req walletservice.AppointmentPaymentRequest) (*payment.Intent, error) {
	return m.intent(m.Called(ctx, req))
}

func (m *MockPaymentService) Cancel(ctx context.Context, ownerID, id uuid.UUID) (*payment.Intent, error) {
	return m.intent(m.Called(ctx, ownerID, id))
}

func (m *MockPaymentService) Refund(ctx context.Context, id uuid.UUID, amount decimal.NullDecimal, reason string) (*payment.Intent, error) {
	return m.intent(m.Called(ctx, id, amount, reason))
}

func (m *MockPaymentService) Retry(ctx context.Context, id uuid.UUID) (*payment.Intent, error) {
	return m.intent(m.Called(ctx, id))
}

type MockReversalService struct {
	mock.Mock
}

func (m *MockReversalService) Reverse(ctx context.Context, id uuid.UUID, reason string) (*ledger.Transaction, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

// newTestRouter authenticates every request as owner, or leaves it anonymous for uuid.Nil
func newTestRouter(t *testing.T, owner uuid.UUID) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())

	router := gin.New()
	router.Use(middleware.CorrelationID())
	if owner != uuid.Nil {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.OwnerIDKey, owner)
			c.Next()
		})
	}
	return router
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Data          json.RawMessage `json:"data"`
	Error         *ErrorInfo      `json:"error"`
	CorrelationID string          `json:"correlation_id"`
	Meta          *MetaInfo       `json:"meta"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &data))
	return data
}

func decodeJSON(raw json.RawMessage, v interface{}) error {
	return json.Unmarshal(raw, v)
}
