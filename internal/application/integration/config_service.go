package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/audit"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/infrastructure/logger"
	"github.com/ledgerbridge/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// outcomeAttempts bounds the optimistic-lock retries of breaker bookkeeping
const outcomeAttempts = 3

// Settings holds the breaker and probe defaults of new configurations
type Settings struct {
	BreakerThreshold  int
	BreakerResetAfter time.Duration
	ProbeTimeout      time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.BreakerThreshold <= 0 {
		s.BreakerThreshold = integration.DefaultBreakerThreshold
	}
	if s.BreakerResetAfter <= 0 {
		s.BreakerResetAfter = integration.DefaultBreakerResetAfter
	}
	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = 10 * time.Second
	}
	return s
}

// ConfigService manages integration configurations: encrypted credentials,
// health validation, circuit breaker bookkeeping and rate limits
type ConfigService struct {
	repo      integration.ConfigRepository
	auditRepo audit.Repository
	tx        shared.TxRunner
	cipher    integration.SecretCipher
	settings  Settings
	probes    map[integration.Platform]integration.HealthProbe

	events shared.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewConfigService creates a ConfigService
func NewConfigService(
	repo integration.ConfigRepository,
	auditRepo audit.Repository,
	tx shared.TxRunner,
	cipher integration.SecretCipher,
	settings Settings,
) *ConfigService {
	return &ConfigService{
		repo:      repo,
		auditRepo: auditRepo,
		tx:        tx,
		cipher:    cipher,
		settings:  settings.withDefaults(),
		probes:    make(map[integration.Platform]integration.HealthProbe),
		events:    shared.NoopEventPublisher{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
}

// SetHealthProbe registers the probe used by ValidateConfig for a platform
func (s *ConfigService) SetHealthProbe(platform integration.Platform, probe integration.HealthProbe) {
	s.probes[platform] = probe
}

// SetEventPublisher sets the publisher for breaker transitions
func (s *ConfigService) SetEventPublisher(p shared.EventPublisher) {
	s.events = p
}

// SetLogger sets the fallback logger
func (s *ConfigService) SetLogger(l *zap.Logger) {
	s.logger = l.Named("integration_config")
}

func (s *ConfigService) log(ctx context.Context) *zap.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// GetActiveConfig returns the active configuration of a platform with its
// credentials decrypted, or nil when the tenant has none. A secret that
// cannot be decrypted fails the call.
func (s *ConfigService) GetActiveConfig(ctx context.Context, tenantID uuid.UUID, platform integration.Platform) (*ActiveConfig, error) {
	cfg, err := s.repo.FindActive(ctx, tenantID, platform)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, nil
	}
	creds, err := s.decrypt(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// report the lazily evaluated breaker without persisting it
	cfg.EvaluateBreaker(s.now())
	return &ActiveConfig{Config: ToConfigResponse(cfg), Credentials: creds}, nil
}

// UpsertConfig creates or updates a configuration and writes one audit entry
// with the computed risk level, all in a single transaction
func (s *ConfigService) UpsertConfig(ctx context.Context, tenantID uuid.UUID, req UpsertConfigRequest, actor string) (res *UpsertConfigResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "integration_config", "upsert",
		attribute.String(telemetry.AttrTenantID, tenantID.String()),
		attribute.String(telemetry.AttrPlatform, req.Platform))
	defer func() { telemetry.End(span, err) }()

	platform, err := integration.ParsePlatform(req.Platform)
	if err != nil {
		return nil, err
	}
	key := integration.ConfigKey{
		TenantID:    tenantID,
		Platform:    platform,
		ConfigType:  integration.ConfigType(req.ConfigType),
		Environment: integration.Environment(req.Environment),
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByKey(ctx, key)
		if err != nil {
			return err
		}
		cfg := existing
		created := cfg == nil
		if created {
			cfg, err = integration.NewIntegrationConfig(key, integration.NewCircuitBreaker(s.settings.BreakerThreshold, s.settings.BreakerResetAfter))
			if err != nil {
				return err
			}
			cfg.IsPrimary = true
		}

		changed, err := s.apply(cfg, req, created)
		if err != nil {
			return err
		}
		cfg.LastModifiedBy = actor

		if created {
			err = s.repo.Create(ctx, cfg)
		} else {
			err = s.repo.Update(ctx, cfg)
		}
		if err != nil {
			return err
		}
		if cfg.IsPrimary {
			if err := s.repo.ClearPrimary(ctx, tenantID, platform, cfg.ID); err != nil {
				return fmt.Errorf("demote other primary configs: %w", err)
			}
		}

		action := audit.ActionUpdate
		if created {
			action = audit.ActionCreate
		}
		facts := audit.ChangeFacts{
			Action:               action,
			SecretsProvided:      len(changed.secrets) > 0,
			SyncDirectionChanged: changed.syncDirection,
			EnvironmentChanged:   created,
			Production:           key.Environment.IsProduction(),
		}
		risk := audit.ClassifyRisk(facts)
		meta := map[string]any{
			"config_type":    string(key.ConfigType),
			"environment":    string(key.Environment),
			"fields_changed": changed.fields,
		}
		if len(changed.secrets) > 0 {
			meta["secret_fields"] = changed.secrets
		}
		if err := s.writeAudit(ctx, tenantID, integration.AggregateTypeIntegrationConfig, cfg.ID, action, actor, risk, platform, meta); err != nil {
			return err
		}

		res = &UpsertConfigResult{Config: ToConfigResponse(cfg), Created: created, RiskLevel: string(risk)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx).Info("integration config saved",
		zap.String("platform", string(platform)),
		zap.String("environment", req.Environment),
		zap.Bool("created", res.Created),
		zap.String("risk_level", res.RiskLevel))
	return res, nil
}

type upsertChanges struct {
	fields        []string
	secrets       []string
	syncDirection bool
}

func (s *ConfigService) apply(cfg *integration.IntegrationConfig, req UpsertConfigRequest, created bool) (upsertChanges, error) {
	var ch upsertChanges

	if req.SyncDirection != "" {
		d := integration.SyncDirection(req.SyncDirection)
		if created || d != cfg.SyncDirection {
			if err := cfg.SetSyncDirection(d); err != nil {
				return ch, err
			}
			ch.syncDirection = true
			ch.fields = append(ch.fields, "sync_direction")
		}
	}
	if req.BaseURL != nil && *req.BaseURL != cfg.BaseURL {
		cfg.SetBaseURL(*req.BaseURL)
		ch.fields = append(ch.fields, "base_url")
	}
	if req.ExternalAccountID != nil && *req.ExternalAccountID != cfg.ExternalAccountID {
		cfg.ExternalAccountID = *req.ExternalAccountID
		ch.fields = append(ch.fields, "external_account_id")
	}
	if req.Settings != nil {
		cfg.Settings = req.Settings
		ch.fields = append(ch.fields, "settings")
	}
	if req.IsPrimary != nil && *req.IsPrimary != cfg.IsPrimary {
		cfg.IsPrimary = *req.IsPrimary
		ch.fields = append(ch.fields, "is_primary")
	}

	for field, value := range req.secrets() {
		if *value == "" {
			cfg.SetSecret(field, integration.EncryptedValue{})
		} else {
			sealed, err := s.cipher.Encrypt(*value)
			if err != nil {
				return ch, fmt.Errorf("encrypt %s: %w", field, err)
			}
			cfg.SetSecret(field, sealed)
		}
		ch.secrets = append(ch.secrets, string(field))
	}
	sort.Strings(ch.secrets)
	ch.fields = append(ch.fields, ch.secrets...)
	return ch, nil
}

// ValidateConfig probes the platform with the active configuration and
// records the resulting health. Probe failures become UNHEALTHY; they are
// never returned as errors. Returns nil when the tenant has no configuration.
func (s *ConfigService) ValidateConfig(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, actor string) (res *ValidateResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "integration_config", "validate",
		attribute.String(telemetry.AttrTenantID, tenantID.String()),
		attribute.String(telemetry.AttrPlatform, string(platform)))
	defer func() { telemetry.End(span, err) }()

	cfg, err := s.repo.FindActive(ctx, tenantID, platform)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, nil
	}
	creds, err := s.decrypt(ctx, cfg)
	if err != nil {
		return nil, err
	}

	result := s.probe(ctx, cfg, creds)
	checkedAt := s.now()
	cfg.RecordHealth(result.Status, result.Message, checkedAt)

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, cfg); err != nil {
			return err
		}
		risk := audit.ClassifyRisk(audit.ChangeFacts{Action: audit.ActionValidate})
		return s.writeAudit(ctx, tenantID, integration.AggregateTypeIntegrationConfig, cfg.ID, audit.ActionValidate, actor, risk, platform,
			map[string]any{"health_status": string(result.Status), "message": result.Message})
	})
	if err != nil {
		return nil, err
	}

	return &ValidateResult{
		ConfigID:  cfg.ID,
		Platform:  string(platform),
		Status:    string(cfg.HealthStatus),
		Message:   cfg.HealthMessage,
		CheckedAt: checkedAt,
	}, nil
}

func (s *ConfigService) probe(ctx context.Context, cfg *integration.IntegrationConfig, creds integration.Credentials) integration.ProbeResult {
	probe, ok := s.probes[cfg.Platform]
	if !ok {
		return integration.ProbeResult{Status: integration.HealthStatusUnknown, Message: "no health probe registered for platform"}
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.settings.ProbeTimeout)
	defer cancel()

	result, err := probe.Probe(probeCtx, cfg, creds)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("health probe timed out after %s", s.settings.ProbeTimeout)
		}
		s.log(ctx).Warn("health probe failed",
			zap.String("platform", string(cfg.Platform)),
			zap.String("code", shared.CodeProbeFailed),
			zap.String("error", msg))
		return integration.ProbeResult{Status: integration.HealthStatusUnhealthy, Message: msg}
	}
	return result
}

// GetBreakerState returns the breaker of the active configuration after
// applying the lazy Open->HalfOpen timeout. A transition is persisted.
func (s *ConfigService) GetBreakerState(ctx context.Context, tenantID uuid.UUID, platform integration.Platform) (*BreakerStateResponse, error) {
	cfg, err := s.repo.FindActive(ctx, tenantID, platform)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, nil
	}
	if cfg.EvaluateBreaker(s.now()) {
		if err := s.repo.Update(ctx, cfg); err != nil {
			// another writer got there first; the reported state is still correct
			if !errors.Is(err, shared.ErrConcurrencyConflict) {
				return nil, err
			}
		} else {
			s.publish(ctx, cfg.GetDomainEvents())
		}
		cfg.ClearDomainEvents()
	}
	return &BreakerStateResponse{
		ConfigID:        cfg.ID,
		Platform:        string(cfg.Platform),
		BreakerResponse: ToBreakerResponse(cfg.Breaker),
	}, nil
}

// RecordIntegrationOutcome feeds one platform call result into the breaker
// of the active configuration. A tenant without configuration is a no-op.
func (s *ConfigService) RecordIntegrationOutcome(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, success bool) error {
	for attempt := 1; ; attempt++ {
		cfg, err := s.repo.FindActive(ctx, tenantID, platform)
		if err != nil || cfg == nil {
			return err
		}
		now := s.now()
		cfg.EvaluateBreaker(now)
		cfg.RecordOutcome(success, now)

		err = s.repo.Update(ctx, cfg)
		if errors.Is(err, shared.ErrConcurrencyConflict) && attempt < outcomeAttempts {
			continue
		}
		if err != nil {
			return err
		}
		s.publish(ctx, cfg.GetDomainEvents())
		cfg.ClearDomainEvents()
		return nil
	}
}

// UpdateRateLimit records the rate-limit window the platform advertised
func (s *ConfigService) UpdateRateLimit(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, req RateLimitRequest) (*ConfigResponse, error) {
	cfg, err := s.repo.FindActive(ctx, tenantID, platform)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, shared.ErrNotFound
	}
	if err := cfg.UpdateRateLimit(req.PerMinute, req.Remaining, req.ResetAt); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, cfg); err != nil {
		return nil, err
	}
	resp := ToConfigResponse(cfg)
	return &resp, nil
}

// DeactivateConfig soft-deletes the active configuration of a platform
func (s *ConfigService) DeactivateConfig(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, actor string) (resp *ConfigResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "integration_config", "deactivate",
		attribute.String(telemetry.AttrTenantID, tenantID.String()),
		attribute.String(telemetry.AttrPlatform, string(platform)))
	defer func() { telemetry.End(span, err) }()

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cfg, err := s.repo.FindActive(ctx, tenantID, platform)
		if err != nil {
			return err
		}
		if cfg == nil {
			return shared.ErrNotFound
		}
		if err := cfg.Deactivate(s.now()); err != nil {
			return err
		}
		cfg.LastModifiedBy = actor
		if err := s.repo.Update(ctx, cfg); err != nil {
			return err
		}
		risk := audit.ClassifyRisk(audit.ChangeFacts{Action: audit.ActionDelete, Production: cfg.Environment.IsProduction()})
		if err := s.writeAudit(ctx, tenantID, integration.AggregateTypeIntegrationConfig, cfg.ID, audit.ActionDelete, actor, risk, platform,
			map[string]any{"environment": string(cfg.Environment), "config_type": string(cfg.ConfigType)}); err != nil {
			return err
		}
		r := ToConfigResponse(cfg)
		resp = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Warn("integration config deactivated",
		zap.String("platform", string(platform)), zap.String("actor", actor))
	return resp, nil
}

// RevokeCredentials wipes every stored secret of the active configuration
func (s *ConfigService) RevokeCredentials(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, actor string) (resp *ConfigResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "integration_config", "revoke",
		attribute.String(telemetry.AttrTenantID, tenantID.String()),
		attribute.String(telemetry.AttrPlatform, string(platform)))
	defer func() { telemetry.End(span, err) }()

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cfg, err := s.repo.FindActive(ctx, tenantID, platform)
		if err != nil {
			return err
		}
		if cfg == nil {
			return shared.ErrNotFound
		}
		cleared := cfg.ClearSecrets()
		cfg.LastModifiedBy = actor
		if err := s.repo.Update(ctx, cfg); err != nil {
			return err
		}
		fields := make([]string, len(cleared))
		for i, f := range cleared {
			fields[i] = string(f)
		}
		risk := audit.ClassifyRisk(audit.ChangeFacts{Action: audit.ActionRevoke, Production: cfg.Environment.IsProduction()})
		if err := s.writeAudit(ctx, tenantID, integration.AggregateTypeIntegrationConfig, cfg.ID, audit.ActionRevoke, actor, risk, platform,
			map[string]any{"secret_fields": fields, "environment": string(cfg.Environment)}); err != nil {
			return err
		}
		r := ToConfigResponse(cfg)
		resp = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Warn("integration credentials revoked",
		zap.String("platform", string(platform)), zap.String("actor", actor))
	return resp, nil
}

// decrypt opens every stored secret. Any failure is reported as a
// configuration decryption error; the credentials are never defaulted.
func (s *ConfigService) decrypt(ctx context.Context, cfg *integration.IntegrationConfig) (integration.Credentials, error) {
	var creds integration.Credentials
	for _, f := range cfg.StoredSecretFields() {
		plain, err := s.cipher.Decrypt(cfg.Secret(f))
		if err != nil {
			s.log(ctx).Error("integration secret could not be decrypted",
				zap.String("config_id", cfg.ID.String()),
				zap.String("field", string(f)),
				zap.Error(err))
			return integration.Credentials{}, shared.NewDomainError(shared.CodeConfigDecryption,
				fmt.Sprintf("failed to decrypt %s of %s integration config", f, cfg.Platform))
		}
		creds.Set(f, plain)
	}
	return creds, nil
}

func (s *ConfigService) writeAudit(
	ctx context.Context,
	tenantID uuid.UUID,
	entityType string,
	entityID uuid.UUID,
	action audit.Action,
	actor string,
	risk audit.RiskLevel,
	platform integration.Platform,
	meta map[string]any,
) error {
	entry, err := audit.NewLogEntry(tenantID, entityType, entityID, action, actor, risk, string(platform), meta)
	if err != nil {
		return err
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	if entry.RequiresReview {
		s.log(ctx).Warn("configuration change requires review",
			zap.String("audit_id", entry.ID.String()),
			zap.String("action", string(action)),
			zap.String("risk_level", string(risk)))
	}
	return nil
}

func (s *ConfigService) publish(ctx context.Context, events []shared.DomainEvent) {
	if len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.log(ctx).Warn("publish breaker events", zap.Error(err))
	}
}
