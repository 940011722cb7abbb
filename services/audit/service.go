package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Service layers an asynchronous queue over a Writer. Grant and deny
// decisions are written synchronously so their chain order matches decision
// order; workflow events (approvals, tool calls, safety interventions) are
// queued and written in the background, with failures counted rather than
// propagated.
type Service struct {
	writer Writer
	logger *zap.Logger

	eventChan    chan *Event
	failedWrites atomic.Int64

	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

// Config holds queue sizing for the audit service. A single background
// worker drains the queue so chain order matches enqueue order.
type Config struct {
	BufferSize int
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{BufferSize: 4096}
}

// NewService creates an audit service over the given writer.
func NewService(writer Writer, logger *zap.Logger, config Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}

	return &Service{
		writer:    writer,
		logger:    logger,
		eventChan: make(chan *Event, config.BufferSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the background writer worker.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	s.wg.Add(1)
	go s.worker()
	s.started = true
	s.logger.Info("started audit service", zap.Int("buffer_size", cap(s.eventChan)))
	return nil
}

// Stop drains pending events and stops the worker.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))
	close(s.eventChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// WriteDecision writes a grant or deny event synchronously. Decision events
// must land before the caller sees the response.
func (s *Service) WriteDecision(ctx context.Context, event *Event) (WriteResult, error) {
	result, err := s.writer.Write(ctx, event)
	if err != nil {
		s.failedWrites.Add(1)
		s.logger.Error("failed to write decision audit event",
			zap.String("event_type", event.EventType),
			zap.String("lease_id", event.LeaseID),
			zap.Error(err))
	}
	return result, err
}

// Enqueue queues a workflow event for background writing. A full queue drops
// the event and bumps the failure counter.
func (s *Service) Enqueue(event *Event) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		s.failedWrites.Add(1)
		return
	}

	select {
	case s.eventChan <- event:
	default:
		s.failedWrites.Add(1)
		s.logger.Warn("audit event queue full, dropping event",
			zap.String("event_type", event.EventType),
			zap.String("lease_id", event.LeaseID))
	}
}

// FailedWrites returns the count of dropped or failed audit writes.
func (s *Service) FailedWrites() int64 {
	return s.failedWrites.Load()
}

func (s *Service) worker() {
	defer s.wg.Done()

	for event := range s.eventChan {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := s.writer.Write(ctx, event); err != nil {
			s.failedWrites.Add(1)
			s.logger.Error("failed to write audit event",
				zap.String("event_type", event.EventType),
				zap.Error(err))
		}
		cancel()
	}
}
