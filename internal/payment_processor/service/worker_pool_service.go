package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/carebridge-wallet-ledger/internal/platform/gateway"
	"github.com/panjf2000/ants/v2"
)

// WorkerPoolProcessingService bounds how many callbacks are applied at once
type WorkerPoolProcessingService struct {
	baseService EventProcessor
	pool        *ants.Pool
	logger      *slog.Logger
	// callbacks currently applying, by reference
	mu       sync.Mutex
	inFlight map[string]int
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolProcessingService(
	baseService EventProcessor,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolProcessingService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolProcessingService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
		inFlight:    make(map[string]int),
	}, nil
}

// ProcessEvent runs the callback on a pool worker and waits for its result
func (s *WorkerPoolProcessingService) ProcessEvent(ctx context.Context, event *gateway.Event, raw []byte) error {
	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Debug("Submitting gateway event to worker pool", "reference", event.Reference)

	resultChan := make(chan error, 1)
	eventCopy := *event
	s.track(event.Reference, 1)

	err := s.pool.Submit(func() {
		defer s.track(eventCopy.Reference, -1)
		resultChan <- s.baseService.ProcessEvent(ctx, &eventCopy, raw)
	})
	if err != nil {
		s.track(event.Reference, -1)
		logger.Error("Failed to submit gateway event to worker pool",
			"reference", event.Reference,
			"error", err,
		)
		return err
	}

	return <-resultChan
}

func (s *WorkerPoolProcessingService) track(reference string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight[reference] += delta
	if s.inFlight[reference] <= 0 {
		delete(s.inFlight, reference)
	}
}

// InFlight returns how many distinct references are being applied
func (s *WorkerPoolProcessingService) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolProcessingService) Shutdown() {
	s.logger.Info("Shutting down worker pool",
		"running_workers", s.pool.Running(),
		"in_flight_references", s.InFlight(),
	)
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolProcessingService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolProcessingService) Capacity() int {
	return s.pool.Cap()
}
