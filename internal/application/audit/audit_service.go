// Package audit contains the application service over the audit trail.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/audit"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuditService reads the audit trail and records reviewer sign-off. Entries
// are written by the services whose changes they describe.
type AuditService struct {
	repo   audit.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditService creates an AuditService
func NewAuditService(repo audit.Repository) *AuditService {
	return &AuditService{repo: repo, logger: zap.NewNop(), now: time.Now}
}

// SetLogger sets the fallback logger
func (s *AuditService) SetLogger(l *zap.Logger) {
	s.logger = l.Named("audit")
}

// List returns audit entries newest first, at most audit.MaxListLimit per page
func (s *AuditService) List(ctx context.Context, tenantID uuid.UUID, q ListQuery) (*ListResult, error) {
	filter := q.ToFilter()
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, shared.NewValidationError("from must not be after to")
	}
	entries, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]LogEntryResponse, len(entries))
	for i, e := range entries {
		items[i] = ToLogEntryResponse(e)
	}
	return &ListResult{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// GetEntry returns one entry, or nil when it does not exist
func (s *AuditService) GetEntry(ctx context.Context, tenantID, id uuid.UUID) (*LogEntryResponse, error) {
	e, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	resp := ToLogEntryResponse(e)
	return &resp, nil
}

// ListPendingReview returns HIGH and CRITICAL entries awaiting sign-off, oldest first
func (s *AuditService) ListPendingReview(ctx context.Context, tenantID uuid.UUID, limit int) ([]LogEntryResponse, error) {
	if limit <= 0 || limit > audit.MaxListLimit {
		limit = audit.DefaultListLimit
	}
	entries, err := s.repo.ListPendingReview(ctx, tenantID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]LogEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = ToLogEntryResponse(e)
	}
	return out, nil
}

// MarkReviewed signs off an entry that requires review
func (s *AuditService) MarkReviewed(ctx context.Context, tenantID, id uuid.UUID, reviewer string) (*LogEntryResponse, error) {
	e, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !e.RequiresReview {
		return nil, shared.NewInvalidStateError(fmt.Sprintf("%s risk audit entries do not require review", strings.ToLower(string(e.RiskLevel))))
	}
	if err := e.MarkReviewed(reviewer, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.SaveReview(ctx, e); err != nil {
		return nil, err
	}
	logger.FromContextOr(ctx, s.logger).Info("audit entry reviewed",
		zap.String("audit_id", e.ID.String()),
		zap.String("risk_level", string(e.RiskLevel)),
		zap.String("reviewer", reviewer))
	resp := ToLogEntryResponse(e)
	return &resp, nil
}
