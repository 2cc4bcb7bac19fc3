// Package audit persists one record per access attempt without putting the
// write on the read path.
package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/leads-guard/internal/observability"
	"github.com/upb/leads-guard/models"
	"github.com/upb/leads-guard/repositories"
	"github.com/upb/leads-guard/services"
	"go.uber.org/zap"
)

// Auditor accepts records for asynchronous persistence. Record never blocks
// and never fails the caller.
type Auditor interface {
	Record(record *models.AuditRecord)
	Health() error
}

// AuditService handles asynchronous audit writes
type AuditService struct {
	auditRepo       repositories.AuditRepository
	logger          *zap.Logger
	recordChan      chan *models.AuditRecord
	workerCount     int
	bufferSize      int
	writeTimeout    time.Duration
	unhealthyWindow time.Duration
	wg              sync.WaitGroup
	started         bool
	stopped         bool
	mu              sync.RWMutex

	written      atomic.Int64
	failedWrites atomic.Int64
	dropped      atomic.Int64
	lastFailure  atomic.Int64 // unix nanos, 0 when never failed

	now func() time.Time
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize      int           // Size of the record buffer channel
	WorkerCount     int           // Number of concurrent writers
	WriteTimeout    time.Duration // Per-insert deadline
	UnhealthyWindow time.Duration // How long a failure keeps Health failing
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:      10000,
		WorkerCount:     5,
		WriteTimeout:    5 * time.Second,
		UnhealthyWindow: 5 * time.Minute,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *AuditService {
	def := DefaultConfig()
	if config.WorkerCount <= 0 {
		config.WorkerCount = def.WorkerCount
	}
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.UnhealthyWindow <= 0 {
		config.UnhealthyWindow = def.UnhealthyWindow
	}

	return &AuditService{
		auditRepo:       auditRepo,
		logger:          logger,
		recordChan:      make(chan *models.AuditRecord, config.BufferSize),
		workerCount:     config.WorkerCount,
		bufferSize:      config.BufferSize,
		writeTimeout:    config.WriteTimeout,
		unhealthyWindow: config.UnhealthyWindow,
		now:             time.Now,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}
	if s.stopped {
		return fmt.Errorf("audit service already stopped")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop stops accepting records and waits for queued ones to be written.
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.recordChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_records", len(s.recordChan)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record queues record for persistence. A full buffer or a service that is
// not running drops the record; the loss is logged and counted.
func (s *AuditService) Record(record *models.AuditRecord) {
	if record == nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		s.drop(record, observability.AuditNotRunning)
		return
	}

	select {
	case s.recordChan <- record:
	default:
		s.drop(record, observability.AuditBufferFull)
	}
}

func (s *AuditService) drop(record *models.AuditRecord, reason string) {
	s.dropped.Add(1)
	s.markFailure()
	observability.ObserveAuditFailure(reason)
	s.logger.Error("audit record dropped",
		zap.Error(services.ErrAuditWriteFailed),
		zap.String("reason", reason),
		zap.String("audit_id", record.ID.String()),
		zap.Int64("user_id", record.UserID),
		zap.String("action", string(record.Action)),
		zap.String("outcome", string(record.Outcome)))
}

// worker writes records from the channel until it is closed
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for record := range s.recordChan {
		if err := s.processRecord(record); err != nil {
			s.markFailure()
			s.failedWrites.Add(1)
			observability.ObserveAuditFailure(observability.AuditInsertError)
			s.logger.Error("failed to write audit record",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("audit_id", record.ID.String()),
				zap.Int64("user_id", record.UserID),
				zap.String("action", string(record.Action)),
				zap.String("outcome", string(record.Outcome)))
			continue
		}
		s.written.Add(1)
		observability.ObserveAuditWrite()
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *AuditService) processRecord(record *models.AuditRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, record); err != nil {
		return fmt.Errorf("%w: %v", services.ErrAuditWriteFailed, err)
	}
	return nil
}

func (s *AuditService) markFailure() {
	s.lastFailure.Store(s.now().UnixNano())
}

// Health returns an audit_write_failed error while a write has failed within
// the unhealthy window, or when the service is not running.
func (s *AuditService) Health() error {
	s.mu.RLock()
	running := s.started && !s.stopped
	s.mu.RUnlock()
	if !running {
		return services.NewDomainError(services.ErrorTypeAuditWriteFailed, "audit service is not running", nil)
	}

	last := s.lastFailure.Load()
	if last == 0 {
		return nil
	}
	since := s.now().Sub(time.Unix(0, last))
	if since < s.unhealthyWindow {
		return services.NewDomainError(services.ErrorTypeAuditWriteFailed,
			fmt.Sprintf("last write failed %s ago", since.Round(time.Second)), nil)
	}
	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:     s.bufferSize,
		PendingRecords: len(s.recordChan),
		WorkerCount:    s.workerCount,
		Started:        s.started && !s.stopped,
		Written:        s.written.Load(),
		FailedWrites:   s.failedWrites.Load(),
		DroppedEvents:  s.dropped.Load(),
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize     int   `json:"buffer_size"`
	PendingRecords int   `json:"pending_records"`
	WorkerCount    int   `json:"worker_count"`
	Started        bool  `json:"started"`
	Written        int64 `json:"written"`
	FailedWrites   int64 `json:"failed_writes"`
	DroppedEvents  int64 `json:"dropped_events"`
}
