package event

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/integration"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/domain/transfer"
)

func breakerEvent(tenantID uuid.UUID) shared.DomainEvent {
	return integration.NewBreakerTransitionedEvent(uuid.New(), tenantID, integration.PlatformAccounting,
		"IntegrationConfig", integration.BreakerClosed, integration.BreakerOpen)
}

func queueEvent(eventType string, tenantID uuid.UUID) shared.DomainEvent {
	base := shared.NewBaseDomainEvent(eventType, transfer.AggregateTypeQueueEntry, uuid.New(), tenantID)
	return &transfer.EntryRejectedEvent{BaseDomainEvent: base, EntityType: transfer.EntityTypeInvoice}
}

// recordingHandler remembers what it was handed
type recordingHandler struct {
	mu      sync.Mutex
	types   []string
	handled []shared.DomainEvent
	err     error
	panics  bool
}

func newRecordingHandler(types ...string) *recordingHandler {
	return &recordingHandler{types: types}
}

func (h *recordingHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, evt)
	if h.panics {
		panic("boom")
	}
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.handled))
	for _, e := range h.handled {
		out = append(out, e.EventType())
	}
	return out
}
