// Package scheduler runs the in-process polling loops that drive change
// detection and queue housekeeping.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	transferapp "github.com/ledgerbridge/backend/internal/application/transfer"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/domain/transfer"
	"github.com/ledgerbridge/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Job names reported to the run recorder
const (
	JobSweep   = "transfer_sweep"
	JobCleanup = "queue_cleanup"
)

// QueueSweeper is the part of the transfer queue service the scheduler drives
type QueueSweeper interface {
	ProcessChanges(ctx context.Context, tenantID uuid.UUID) (*transferapp.ProcessResult, error)
	GetQueueSummary(ctx context.Context, tenantID uuid.UUID) (*transferapp.QueueSummary, error)
	CleanupOldEntries(ctx context.Context, tenantID uuid.UUID, olderThanDays int) (*transferapp.CleanupResult, error)
}

// TenantLister lists the tenants that have an active configuration for a platform
type TenantLister interface {
	ListActiveTenants(ctx context.Context, platform integration.Platform) ([]uuid.UUID, error)
}

// RunRecorder receives run timings and queue gauges
type RunRecorder interface {
	SetBacklog(byStatus map[transfer.Status]int64)
	ObserveRun(job string, d time.Duration, err error)
	AddCleanupDeleted(n int64)
}

// SweepReport summarizes one sweep over all tenants
type SweepReport struct {
	Tenants        int
	FailedTenants  int
	NewEntries     int
	CascadeEntries int
	Duration       time.Duration
}

// TransferSweepScheduler periodically runs change detection for every tenant
// connected to the accounting platform and purges finished queue entries.
// Runs of the same job never overlap within a process.
type TransferSweepScheduler struct {
	queue         QueueSweeper
	tenants       TenantLister
	recorder      RunRecorder
	logger        *zap.Logger
	config        config.SchedulerConfig
	retentionDays int

	sweeping atomic.Bool
	cleaning atomic.Bool

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// DefaultSchedulerConfig returns the default sweep settings
func DefaultSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:         true,
		SweepInterval:   5 * time.Minute,
		SweepTimeout:    4 * time.Minute,
		CleanupInterval: 24 * time.Hour,
	}
}

// NewTransferSweepScheduler creates a scheduler. A nil recorder disables
// metrics; a non-positive retention uses the queue default.
func NewTransferSweepScheduler(
	queue QueueSweeper,
	tenants TenantLister,
	recorder RunRecorder,
	logger *zap.Logger,
	cfg config.SchedulerConfig,
	retentionDays int,
) *TransferSweepScheduler {
	d := DefaultSchedulerConfig()
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = d.SweepInterval
	}
	if cfg.SweepTimeout <= 0 {
		cfg.SweepTimeout = d.SweepTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = d.CleanupInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferSweepScheduler{
		queue:         queue,
		tenants:       tenants,
		recorder:      recorder,
		logger:        logger.Named("transfer_sweep"),
		config:        cfg,
		retentionDays: retentionDays,
	}
}

// Start launches the sweep and cleanup loops
func (s *TransferSweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Transfer sweep scheduler is disabled")
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(2)
	go s.loop(ctx, s.config.SweepInterval, func(ctx context.Context) { _, _ = s.runSweep(ctx) })
	go s.loop(ctx, s.config.CleanupInterval, func(ctx context.Context) { _, _ = s.runCleanup(ctx) })

	s.logger.Info("Transfer sweep scheduler started",
		zap.Duration("sweep_interval", s.config.SweepInterval),
		zap.Duration("cleanup_interval", s.config.CleanupInterval),
	)
	return nil
}

// Stop cancels the loops and waits for in-flight runs, bounded by ctx
func (s *TransferSweepScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Transfer sweep scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Transfer sweep scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the loops are active
func (s *TransferSweepScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// TriggerSweep runs a sweep immediately and waits for it
func (s *TransferSweepScheduler) TriggerSweep(ctx context.Context) (*SweepReport, error) {
	if !s.IsRunning() {
		return nil, ErrSchedulerNotRunning
	}
	return s.runSweep(ctx)
}

// TriggerCleanup runs a cleanup immediately and returns the deleted count
func (s *TransferSweepScheduler) TriggerCleanup(ctx context.Context) (int64, error) {
	if !s.IsRunning() {
		return 0, ErrSchedulerNotRunning
	}
	return s.runCleanup(ctx)
}

func (s *TransferSweepScheduler) loop(ctx context.Context, every time.Duration, run func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

// runSweep processes changes for every connected tenant. One tenant's
// failure is logged and does not stop the others.
func (s *TransferSweepScheduler) runSweep(ctx context.Context) (*SweepReport, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Debug("Skipping sweep, previous run still in progress")
		return nil, ErrRunInProgress
	}
	defer s.sweeping.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	start := time.Now()
	report := &SweepReport{}
	err := s.sweep(ctx, report)
	report.Duration = time.Since(start)
	if s.recorder != nil {
		s.recorder.ObserveRun(JobSweep, report.Duration, err)
	}
	if err != nil {
		s.logger.Error("Transfer sweep failed", zap.Error(err))
		return report, err
	}

	s.logger.Info("Transfer sweep completed",
		zap.Int("tenants", report.Tenants),
		zap.Int("failed_tenants", report.FailedTenants),
		zap.Int("new_entries", report.NewEntries),
		zap.Int("cascade_entries", report.CascadeEntries),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (s *TransferSweepScheduler) sweep(ctx context.Context, report *SweepReport) error {
	tenantIDs, err := s.tenants.ListActiveTenants(ctx, integration.PlatformAccounting)
	if err != nil {
		return err
	}
	report.Tenants = len(tenantIDs)

	backlog := make(map[transfer.Status]int64, len(transfer.AllStatuses()))
	for _, tenantID := range tenantIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res, err := s.queue.ProcessChanges(ctx, tenantID)
		if err != nil {
			report.FailedTenants++
			s.logger.Warn("Change detection failed for tenant",
				zap.String("tenant_id", tenantID.String()), zap.Error(err))
		} else {
			report.NewEntries += res.NewEntries
			report.CascadeEntries += res.CascadeEntries
		}

		summary, err := s.queue.GetQueueSummary(ctx, tenantID)
		if err != nil {
			s.logger.Warn("Queue summary failed for tenant",
				zap.String("tenant_id", tenantID.String()), zap.Error(err))
			continue
		}
		for status, n := range summary.ByStatus {
			backlog[transfer.Status(status)] += n
		}
	}
	if s.recorder != nil {
		s.recorder.SetBacklog(backlog)
	}
	if report.Tenants > 0 && report.FailedTenants == report.Tenants {
		return errors.New("change detection failed for every tenant")
	}
	return nil
}

func (s *TransferSweepScheduler) runCleanup(ctx context.Context) (int64, error) {
	if !s.cleaning.CompareAndSwap(false, true) {
		return 0, ErrRunInProgress
	}
	defer s.cleaning.Store(false)

	start := time.Now()
	res, err := s.queue.CleanupOldEntries(ctx, uuid.Nil, s.retentionDays)
	if s.recorder != nil {
		s.recorder.ObserveRun(JobCleanup, time.Since(start), err)
	}
	if err != nil {
		s.logger.Error("Queue cleanup failed", zap.Error(err))
		return 0, err
	}
	if s.recorder != nil {
		s.recorder.AddCleanupDeleted(res.Deleted)
	}
	s.logger.Info("Queue cleanup completed",
		zap.Int64("deleted", res.Deleted),
		zap.Time("cutoff", res.Cutoff),
	)
	return res.Deleted, nil
}
