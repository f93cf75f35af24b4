package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/audit"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// WebhookService manages outbound webhook configurations and the breakers
// guarding their delivery
type WebhookService struct {
	repo      integration.WebhookRepository
	auditRepo audit.Repository
	tx        shared.TxRunner
	cipher    integration.SecretCipher
	settings  Settings

	events shared.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewWebhookService creates a WebhookService
func NewWebhookService(
	repo integration.WebhookRepository,
	auditRepo audit.Repository,
	tx shared.TxRunner,
	cipher integration.SecretCipher,
	settings Settings,
) *WebhookService {
	return &WebhookService{
		repo:      repo,
		auditRepo: auditRepo,
		tx:        tx,
		cipher:    cipher,
		settings:  settings.withDefaults(),
		events:    shared.NoopEventPublisher{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
}

// SetEventPublisher sets the publisher for breaker transitions
func (s *WebhookService) SetEventPublisher(p shared.EventPublisher) {
	s.events = p
}

// SetLogger sets the fallback logger
func (s *WebhookService) SetLogger(l *zap.Logger) {
	s.logger = l.Named("webhook_config")
}

// ListWebhooks returns the tenant's webhooks with breakers evaluated as of now
func (s *WebhookService) ListWebhooks(ctx context.Context, tenantID uuid.UUID) ([]WebhookResponse, error) {
	hooks, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]WebhookResponse, len(hooks))
	for i, w := range hooks {
		w.EvaluateBreaker(now)
		out[i] = ToWebhookResponse(w)
	}
	return out, nil
}

// UpsertWebhookConfig creates or updates the webhook of a platform. The
// signing secret is stored encrypted; an empty string clears it.
func (s *WebhookService) UpsertWebhookConfig(ctx context.Context, tenantID uuid.UUID, req UpsertWebhookRequest, actor string) (*WebhookResponse, error) {
	platform, err := integration.ParsePlatform(req.Platform)
	if err != nil {
		return nil, err
	}

	var resp WebhookResponse
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		w, err := s.repo.FindByPlatform(ctx, tenantID, platform)
		if err != nil {
			return err
		}
		created := w == nil
		if created {
			w, err = integration.NewWebhookConfig(tenantID, platform, req.URL, req.Events,
				integration.NewCircuitBreaker(s.settings.BreakerThreshold, s.settings.BreakerResetAfter))
			if err != nil {
				return err
			}
		} else {
			if err := w.SetURL(req.URL); err != nil {
				return err
			}
			if req.Events != nil {
				w.SetEvents(req.Events)
			}
		}
		if req.IsActive != nil {
			w.IsActive = *req.IsActive
		}

		secretChanged := req.SigningSecret != nil
		if secretChanged {
			if *req.SigningSecret == "" {
				w.SigningSecret = integration.EncryptedValue{}
			} else {
				sealed, err := s.cipher.Encrypt(*req.SigningSecret)
				if err != nil {
					return fmt.Errorf("encrypt signing secret: %w", err)
				}
				w.SigningSecret = sealed
			}
		}
		w.LastModifiedBy = actor

		if created {
			err = s.repo.Create(ctx, w)
		} else {
			err = s.repo.Update(ctx, w)
		}
		if err != nil {
			return err
		}

		action := audit.ActionUpdate
		if created {
			action = audit.ActionCreate
		}
		risk := audit.ClassifyRisk(audit.ChangeFacts{Action: action, SecretsProvided: secretChanged})
		entry, err := audit.NewLogEntry(tenantID, integration.AggregateTypeWebhookConfig, w.ID, action, actor, risk, string(platform),
			map[string]any{"url": w.URL, "events": w.Events, "signing_secret_changed": secretChanged, "is_active": w.IsActive})
		if err != nil {
			return err
		}
		if err := s.auditRepo.Create(ctx, entry); err != nil {
			return fmt.Errorf("write audit entry: %w", err)
		}
		resp = ToWebhookResponse(w)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetWebhookSigningSecret decrypts the signing secret of a webhook. An
// empty string means none is stored; a secret that cannot be decrypted
// fails the call.
func (s *WebhookService) GetWebhookSigningSecret(ctx context.Context, tenantID, webhookID uuid.UUID) (string, error) {
	w, err := s.repo.FindByID(ctx, tenantID, webhookID)
	if err != nil {
		return "", err
	}
	if !w.SigningSecret.IsSet() {
		return "", nil
	}
	secret, err := s.cipher.Decrypt(w.SigningSecret)
	if err != nil {
		logger.FromContextOr(ctx, s.logger).Error("webhook signing secret could not be decrypted",
			zap.String("webhook_id", w.ID.String()), zap.Error(err))
		return "", shared.NewDomainError(shared.CodeConfigDecryption,
			fmt.Sprintf("failed to decrypt signing secret of %s webhook", w.Platform))
	}
	return secret, nil
}

// RecordWebhookOutcome counts a delivery attempt and updates the breaker
func (s *WebhookService) RecordWebhookOutcome(ctx context.Context, tenantID, webhookID uuid.UUID, req OutcomeRequest) (*WebhookResponse, error) {
	for attempt := 1; ; attempt++ {
		w, err := s.repo.FindByID(ctx, tenantID, webhookID)
		if err != nil {
			return nil, err
		}
		now := s.now()
		w.EvaluateBreaker(now)
		w.RecordOutcome(req.Success, req.Error, now)

		err = s.repo.Update(ctx, w)
		if errors.Is(err, shared.ErrConcurrencyConflict) && attempt < outcomeAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}
		if events := w.GetDomainEvents(); len(events) > 0 {
			if err := s.events.Publish(ctx, events...); err != nil {
				logger.FromContextOr(ctx, s.logger).Warn("publish breaker events", zap.Error(err))
			}
			w.ClearDomainEvents()
		}
		resp := ToWebhookResponse(w)
		return &resp, nil
	}
}
