package integration

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/audit"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// MockConfigRepository is a mock implementation of integration.ConfigRepository
type MockConfigRepository struct {
	mock.Mock
}

func (m *MockConfigRepository) FindByKey(ctx context.Context, key integration.ConfigKey) (*integration.IntegrationConfig, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.IntegrationConfig), args.Error(1)
}

func (m *MockConfigRepository) FindActive(ctx context.Context, tenantID uuid.UUID, platform integration.Platform) (*integration.IntegrationConfig, error) {
	args := m.Called(ctx, tenantID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.IntegrationConfig), args.Error(1)
}

func (m *MockConfigRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*integration.IntegrationConfig, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.IntegrationConfig), args.Error(1)
}

func (m *MockConfigRepository) Create(ctx context.Context, cfg *integration.IntegrationConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockConfigRepository) Update(ctx context.Context, cfg *integration.IntegrationConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockConfigRepository) ClearPrimary(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, exceptID uuid.UUID) error {
	args := m.Called(ctx, tenantID, platform, exceptID)
	return args.Error(0)
}

func (m *MockConfigRepository) ListActiveTenants(ctx context.Context, platform integration.Platform) ([]uuid.UUID, error) {
	args := m.Called(ctx, platform)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockWebhookRepository is a mock implementation of integration.WebhookRepository
type MockWebhookRepository struct {
	mock.Mock
}

func (m *MockWebhookRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*integration.WebhookConfig, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.WebhookConfig), args.Error(1)
}

func (m *MockWebhookRepository) FindByPlatform(ctx context.Context, tenantID uuid.UUID, platform integration.Platform) (*integration.WebhookConfig, error) {
	args := m.Called(ctx, tenantID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.WebhookConfig), args.Error(1)
}

func (m *MockWebhookRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*integration.WebhookConfig, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]*integration.WebhookConfig), args.Error(1)
}

func (m *MockWebhookRepository) Create(ctx context.Context, w *integration.WebhookConfig) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockWebhookRepository) Update(ctx context.Context, w *integration.WebhookConfig) error {
	args := m.Called(ctx, w)
	return args.Error(0)
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

// MockHealthProbe is a mock implementation of integration.HealthProbe
type MockHealthProbe struct {
	mock.Mock
}

func (m *MockHealthProbe) Probe(ctx context.Context, cfg *integration.IntegrationConfig, creds integration.Credentials) (integration.ProbeResult, error) {
	args := m.Called(ctx, cfg, creds)
	return args.Get(0).(integration.ProbeResult), args.Error(1)
}

// prefixCipher seals values reversibly so tests can inspect what was stored
type prefixCipher struct {
	calls int
}

func (c *prefixCipher) Encrypt(plaintext string) (integration.EncryptedValue, error) {
	c.calls++
	return integration.EncryptedValue{Ciphertext: "sealed:" + plaintext, IV: "iv"}, nil
}

func (c *prefixCipher) Decrypt(v integration.EncryptedValue) (string, error) {
	plain, ok := strings.CutPrefix(v.Ciphertext, "sealed:")
	if !ok {
		return "", shared.NewDomainError(shared.CodeDecryptionFailed, "decryption failed: authentication tag mismatch")
	}
	return plain, nil
}

// capturePublisher keeps every published event
type capturePublisher struct {
	events []shared.DomainEvent
}

func (p *capturePublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

var passthroughTx = shared.TxRunnerFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})

var errProbeRefused = errors.New("dial tcp: connection refused")

func strPtr(s string) *string { return &s }
