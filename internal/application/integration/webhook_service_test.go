package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/audit"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type webhookFixture struct {
	repo      *MockWebhookRepository
	auditRepo *MockAuditRepository
	cipher    *prefixCipher
	events    *capturePublisher
	svc       *WebhookService
	tenantID  uuid.UUID
}

func newWebhookFixture() *webhookFixture {
	f := &webhookFixture{
		repo:      new(MockWebhookRepository),
		auditRepo: new(MockAuditRepository),
		cipher:    &prefixCipher{},
		events:    &capturePublisher{},
		tenantID:  uuid.New(),
	}
	f.svc = NewWebhookService(f.repo, f.auditRepo, passthroughTx, f.cipher, Settings{BreakerThreshold: 2, BreakerResetAfter: time.Minute})
	f.svc.SetEventPublisher(f.events)
	return f
}

func (f *webhookFixture) webhook(t *testing.T) *integration.WebhookConfig {
	t.Helper()
	w, err := integration.NewWebhookConfig(f.tenantID, integration.PlatformPayments, "https://hooks.example.com/payments",
		[]string{"invoice.paid"}, integration.NewCircuitBreaker(2, time.Minute))
	require.NoError(t, err)
	return w
}

func TestWebhookService_UpsertWebhookConfig_Create(t *testing.T) {
	f := newWebhookFixture()
	f.repo.On("FindByPlatform", mock.Anything, f.tenantID, integration.PlatformPayments).Return(nil, nil)
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(w *integration.WebhookConfig) bool {
		return w.SigningSecret.Ciphertext == "sealed:whsec_1"
	})).Return(nil)
	var logged *audit.LogEntry
	f.auditRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		logged = args.Get(1).(*audit.LogEntry)
	}).Return(nil)

	resp, err := f.svc.UpsertWebhookConfig(context.Background(), f.tenantID, UpsertWebhookRequest{
		Platform:      "payments",
		URL:           "https://hooks.example.com/payments",
		Events:        []string{"invoice.paid", "invoice.paid", ""},
		SigningSecret: strPtr("whsec_1"),
	}, "admin")

	require.NoError(t, err)
	assert.True(t, resp.HasSigningSecret)
	assert.Equal(t, []string{"invoice.paid"}, resp.Events)
	require.NotNil(t, logged)
	assert.Equal(t, audit.ActionCreate, logged.Action)
	assert.Equal(t, audit.RiskMedium, logged.RiskLevel)
	assert.Equal(t, integration.AggregateTypeWebhookConfig, logged.EntityType)
}

func TestWebhookService_UpsertWebhookConfig_UpdateKeepsSecret(t *testing.T) {
	f := newWebhookFixture()
	w := f.webhook(t)
	w.SigningSecret = integration.EncryptedValue{Ciphertext: "sealed:old", IV: "iv"}
	f.repo.On("FindByPlatform", mock.Anything, f.tenantID, integration.PlatformPayments).Return(w, nil)
	f.repo.On("Update", mock.Anything, w).Return(nil)
	f.auditRepo.On("Create", mock.Anything, mock.MatchedBy(func(e *audit.LogEntry) bool {
		return e.Action == audit.ActionUpdate && e.RiskLevel == audit.RiskLow
	})).Return(nil)

	inactive := false
	resp, err := f.svc.UpsertWebhookConfig(context.Background(), f.tenantID, UpsertWebhookRequest{
		Platform: "PAYMENTS",
		URL:      "https://hooks.example.com/v2",
		IsActive: &inactive,
	}, "admin")

	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/v2", resp.URL)
	assert.False(t, resp.IsActive)
	assert.Equal(t, "sealed:old", w.SigningSecret.Ciphertext)
	assert.Zero(t, f.cipher.calls)
	f.auditRepo.AssertExpectations(t)
}

func TestWebhookService_UpsertWebhookConfig_InvalidURL(t *testing.T) {
	f := newWebhookFixture()
	f.repo.On("FindByPlatform", mock.Anything, f.tenantID, integration.PlatformCRM).Return(nil, nil)

	_, err := f.svc.UpsertWebhookConfig(context.Background(), f.tenantID, UpsertWebhookRequest{
		Platform: "CRM", URL: "ftp://nope",
	}, "admin")

	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestWebhookService_GetWebhookSigningSecret(t *testing.T) {
	ctx := context.Background()

	t.Run("decrypts", func(t *testing.T) {
		f := newWebhookFixture()
		w := f.webhook(t)
		w.SigningSecret = integration.EncryptedValue{Ciphertext: "sealed:whsec_2", IV: "iv"}
		f.repo.On("FindByID", mock.Anything, f.tenantID, w.ID).Return(w, nil)

		secret, err := f.svc.GetWebhookSigningSecret(ctx, f.tenantID, w.ID)

		require.NoError(t, err)
		assert.Equal(t, "whsec_2", secret)
	})

	t.Run("corrupted secret fails loudly", func(t *testing.T) {
		f := newWebhookFixture()
		w := f.webhook(t)
		w.SigningSecret = integration.EncryptedValue{Ciphertext: "garbage", IV: "iv"}
		f.repo.On("FindByID", mock.Anything, f.tenantID, w.ID).Return(w, nil)

		_, err := f.svc.GetWebhookSigningSecret(ctx, f.tenantID, w.ID)

		assert.ErrorIs(t, err, shared.ErrConfigDecryption)
	})

	t.Run("unknown webhook is not found", func(t *testing.T) {
		f := newWebhookFixture()
		id := uuid.New()
		f.repo.On("FindByID", mock.Anything, f.tenantID, id).Return(nil, shared.ErrNotFound)

		_, err := f.svc.GetWebhookSigningSecret(ctx, f.tenantID, id)

		assert.True(t, shared.IsNotFound(err))
	})
}

func TestWebhookService_RecordWebhookOutcome(t *testing.T) {
	f := newWebhookFixture()
	w := f.webhook(t)
	f.repo.On("FindByID", mock.Anything, f.tenantID, w.ID).Return(w, nil)
	f.repo.On("Update", mock.Anything, w).Return(nil)

	_, err := f.svc.RecordWebhookOutcome(context.Background(), f.tenantID, w.ID, OutcomeRequest{Success: false, Error: "502"})
	require.NoError(t, err)
	resp, err := f.svc.RecordWebhookOutcome(context.Background(), f.tenantID, w.ID, OutcomeRequest{Success: false, Error: "504"})
	require.NoError(t, err)

	assert.Equal(t, "OPEN", resp.Breaker.Status)
	assert.Equal(t, int64(2), resp.TriggerCount)
	assert.Equal(t, "504", resp.LastError)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, integration.EventTypeBreakerTransitioned, f.events.events[0].EventType())
}

func TestWebhookService_ListWebhooks(t *testing.T) {
	f := newWebhookFixture()
	w := f.webhook(t)
	f.repo.On("ListByTenant", mock.Anything, f.tenantID).Return([]*integration.WebhookConfig{w}, nil)

	list, err := f.svc.ListWebhooks(context.Background(), f.tenantID)

	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "PAYMENTS", list[0].Platform)
	assert.False(t, list[0].HasSigningSecret)
}
