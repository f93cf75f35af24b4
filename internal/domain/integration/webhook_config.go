package integration

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/shared"
)

// AggregateTypeWebhookConfig is the aggregate type used on domain events and audit entries
const AggregateTypeWebhookConfig = "webhook_config"

// WebhookConfig is an outbound webhook endpoint for one platform
type WebhookConfig struct {
	shared.TenantAggregateRoot
	Platform      Platform
	URL           string
	SigningSecret EncryptedValue
	Events        []string
	IsActive      bool

	Breaker CircuitBreaker

	TriggerCount    int64
	LastTriggeredAt *time.Time
	LastError       string
	LastModifiedBy  string
}

// NewWebhookConfig creates an active webhook configuration
func NewWebhookConfig(tenantID uuid.UUID, platform Platform, rawURL string, events []string, breaker CircuitBreaker) (*WebhookConfig, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError("tenant ID is required")
	}
	if !platform.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("unsupported platform %q", platform))
	}
	w := &WebhookConfig{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Platform:            platform,
		IsActive:            true,
		Breaker:             breaker,
	}
	if err := w.SetURL(rawURL); err != nil {
		return nil, err
	}
	w.SetEvents(events)
	return w, nil
}

// SetURL validates and stores the endpoint URL
func (w *WebhookConfig) SetURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return shared.NewValidationError(fmt.Sprintf("invalid webhook URL %q", rawURL))
	}
	w.URL = u.String()
	w.Touch()
	return nil
}

// SetEvents replaces the subscribed event list, dropping blanks and duplicates
func (w *WebhookConfig) SetEvents(events []string) {
	seen := make(map[string]struct{}, len(events))
	out := make([]string, 0, len(events))
	for _, e := range events {
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	w.Events = out
	w.Touch()
}

// Subscribes reports whether the webhook receives eventType
func (w *WebhookConfig) Subscribes(eventType string) bool {
	for _, e := range w.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}

// RecordOutcome counts a delivery attempt and feeds the breaker
func (w *WebhookConfig) RecordOutcome(success bool, errMsg string, now time.Time) bool {
	from := w.Breaker.Status
	w.TriggerCount++
	w.LastTriggeredAt = &now
	var changed bool
	if success {
		w.LastError = ""
		changed = w.Breaker.RecordSuccess(now)
	} else {
		w.LastError = errMsg
		changed = w.Breaker.RecordFailure(now)
	}
	w.UpdatedAt = now
	if changed {
		w.AddDomainEvent(NewBreakerTransitionedEvent(w.ID, w.TenantID, w.Platform, AggregateTypeWebhookConfig, from, w.Breaker.Status))
	}
	return changed
}

// EvaluateBreaker applies the lazy Open->HalfOpen timeout
func (w *WebhookConfig) EvaluateBreaker(now time.Time) bool {
	from := w.Breaker.Status
	if !w.Breaker.Evaluate(now) {
		return false
	}
	w.UpdatedAt = now
	w.AddDomainEvent(NewBreakerTransitionedEvent(w.ID, w.TenantID, w.Platform, AggregateTypeWebhookConfig, from, w.Breaker.Status))
	return true
}
