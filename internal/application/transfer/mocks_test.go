package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/audit"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/domain/transfer"
	"github.com/stretchr/testify/mock"
)

// MockQueueRepository is a mock implementation of transfer.QueueRepository
type MockQueueRepository struct {
	mock.Mock
}

func (m *MockQueueRepository) Create(ctx context.Context, entry *transfer.QueueEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockQueueRepository) Update(ctx context.Context, entry *transfer.QueueEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockQueueRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*transfer.QueueEntry, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.QueueEntry), args.Error(1)
}

func (m *MockQueueRepository) FindActiveByEntity(ctx context.Context, tenantID uuid.UUID, entityType transfer.EntityType, entityID string) (*transfer.QueueEntry, error) {
	args := m.Called(ctx, tenantID, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.QueueEntry), args.Error(1)
}

func (m *MockQueueRepository) FindPending(ctx context.Context, tenantID uuid.UUID, filter transfer.PendingFilter) ([]*transfer.QueueEntry, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]*transfer.QueueEntry), args.Error(1)
}

func (m *MockQueueRepository) FindDueApproved(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]*transfer.QueueEntry, error) {
	args := m.Called(ctx, tenantID, now, limit)
	return args.Get(0).([]*transfer.QueueEntry), args.Error(1)
}

func (m *MockQueueRepository) Stats(ctx context.Context, tenantID uuid.UUID) (*transfer.QueueStats, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.QueueStats), args.Error(1)
}

func (m *MockQueueRepository) DeleteFinishedBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, tenantID, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockAuditRepository is a mock implementation of audit.Repository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Create(ctx context.Context, entry *audit.LogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*audit.LogEntry, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.LogEntry), args.Error(1)
}

func (m *MockAuditRepository) List(ctx context.Context, tenantID uuid.UUID, filter audit.Filter) ([]*audit.LogEntry, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]*audit.LogEntry), args.Get(1).(int64), args.Error(2)
}

func (m *MockAuditRepository) ListPendingReview(ctx context.Context, tenantID uuid.UUID, limit int) ([]*audit.LogEntry, error) {
	args := m.Called(ctx, tenantID, limit)
	return args.Get(0).([]*audit.LogEntry), args.Error(1)
}

func (m *MockAuditRepository) SaveReview(ctx context.Context, entry *audit.LogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockChangeDetector is a mock implementation of transfer.ChangeDetector
type MockChangeDetector struct {
	mock.Mock
}

func (m *MockChangeDetector) DetectChangesAndCascadeImpacts(ctx context.Context, tenantID uuid.UUID) (*transfer.DetectionResult, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.DetectionResult), args.Error(1)
}

// MockEntityDataProvider is a mock implementation of transfer.EntityDataProvider
type MockEntityDataProvider struct {
	mock.Mock
}

func (m *MockEntityDataProvider) GetContact(ctx context.Context, tenantID uuid.UUID, id string) (*transfer.ContactSnapshot, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.ContactSnapshot), args.Error(1)
}

func (m *MockEntityDataProvider) GetCompany(ctx context.Context, tenantID uuid.UUID, id string) (*transfer.CompanySnapshot, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.CompanySnapshot), args.Error(1)
}

func (m *MockEntityDataProvider) GetInvoice(ctx context.Context, tenantID uuid.UUID, id string) (*transfer.InvoiceSnapshot, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.InvoiceSnapshot), args.Error(1)
}

func (m *MockEntityDataProvider) GetLineItem(ctx context.Context, tenantID uuid.UUID, id string) (*transfer.LineItemSnapshot, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.LineItemSnapshot), args.Error(1)
}

// MockOutcomeRecorder is a mock implementation of OutcomeRecorder
type MockOutcomeRecorder struct {
	mock.Mock
}

func (m *MockOutcomeRecorder) RecordIntegrationOutcome(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, success bool) error {
	args := m.Called(ctx, tenantID, platform, success)
	return args.Error(0)
}

// capturePublisher keeps every published event
type capturePublisher struct {
	events []shared.DomainEvent
}

func (p *capturePublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

func (p *capturePublisher) types() []string {
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// passthroughTx runs fn directly
var passthroughTx = shared.TxRunnerFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})
