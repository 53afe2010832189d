package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carebridge-wallet-ledger/internal/platform/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(ratelimit.Decision), args.Error(1)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	owner := uuid.New()

	tests := []struct {
		name            string
		withOwner       bool
		setupMocks      func(m *MockRateLimiter)
		expectedStatus  int
		expectedHeaders map[string]string
	}{
		{
			name:      "allowed per owner",
			withOwner: true,
			setupMocks: func(m *MockRateLimiter) {
				m.On("Allow", mock.Anything, "pin:owner:"+owner.String()).
					Return(ratelimit.Decision{Allowed: true, Limit: 5, Remaining: 4}, nil).Once()
			},
			expectedStatus:  http.StatusOK,
			expectedHeaders: map[string]string{"X-RateLimit-Limit": "5", "X-RateLimit-Remaining": "4"},
		},
		{
			name: "anonymous callers are keyed by ip",
			setupMocks: func(m *MockRateLimiter) {
				m.On("Allow", mock.Anything, "pin:ip:192.0.2.1").
					Return(ratelimit.Decision{Allowed: true, Limit: 5, Remaining: 0}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:      "rejected",
			withOwner: true,
			setupMocks: func(m *MockRateLimiter) {
				m.On("Allow", mock.Anything, mock.Anything).
					Return(ratelimit.Decision{Allowed: false, Limit: 5, RetryAfter: 1500 * time.Millisecond}, nil).Once()
			},
			expectedStatus:  http.StatusTooManyRequests,
			expectedHeaders: map[string]string{"Retry-After": "2", "X-RateLimit-Remaining": "0"},
		},
		{
			name:      "limiter outage fails open",
			withOwner: true,
			setupMocks: func(m *MockRateLimiter) {
				m.On("Allow", mock.Anything, mock.Anything).
					Return(ratelimit.Decision{}, errors.New("redis down")).Once()
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := &MockRateLimiter{}
			tt.setupMocks(limiter)

			router := gin.New()
			if tt.withOwner {
				router.Use(func(c *gin.Context) {
					c.Set(OwnerIDKey, owner)
					c.Next()
				})
			}
			router.Use(RateLimit(limiter, "pin", slog.Default()))
			router.POST("/wallet/transfers", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodPost, "/wallet/transfers", nil)
			req.RemoteAddr = "192.0.2.1:1234"
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			for k, v := range tt.expectedHeaders {
				assert.Equal(t, v, rr.Header().Get(k), k)
			}
			if tt.expectedStatus == http.StatusTooManyRequests {
				assert.Contains(t, rr.Body.String(), `"RATE_LIMITED"`)
			}
			limiter.AssertExpectations(t)
		})
	}
}
