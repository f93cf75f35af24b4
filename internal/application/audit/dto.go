package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/audit"
)

// LogEntryResponse is the read model of an audit entry
type LogEntryResponse struct {
	ID             uuid.UUID      `json:"id"`
	TenantID       uuid.UUID      `json:"tenant_id"`
	EntityType     string         `json:"entity_type"`
	EntityID       uuid.UUID      `json:"entity_id"`
	Action         string         `json:"action"`
	PerformedBy    string         `json:"performed_by"`
	RiskLevel      string         `json:"risk_level"`
	Platform       string         `json:"platform,omitempty"`
	Metadata       map[string]any `json:"metadata"`
	RequiresReview bool           `json:"requires_review"`
	ReviewedAt     *time.Time     `json:"reviewed_at,omitempty"`
	ReviewedBy     string         `json:"reviewed_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ToLogEntryResponse maps a domain entry
func ToLogEntryResponse(e *audit.LogEntry) LogEntryResponse {
	return LogEntryResponse{
		ID:             e.ID,
		TenantID:       e.TenantID,
		EntityType:     e.EntityType,
		EntityID:       e.EntityID,
		Action:         string(e.Action),
		PerformedBy:    e.PerformedBy,
		RiskLevel:      string(e.RiskLevel),
		Platform:       e.Platform,
		Metadata:       e.Metadata,
		RequiresReview: e.RequiresReview,
		ReviewedAt:     e.ReviewedAt,
		ReviewedBy:     e.ReviewedBy,
		CreatedAt:      e.CreatedAt,
	}
}

// ListQuery is the HTTP filter of the audit log listing
type ListQuery struct {
	EntityType  string     `form:"entity_type" binding:"omitempty,max=100"`
	Action      string     `form:"action" binding:"omitempty,oneof=CREATE UPDATE DELETE VALIDATE REVOKE"`
	PerformedBy string     `form:"performed_by" binding:"omitempty,max=255"`
	RiskLevel   string     `form:"risk_level" binding:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	Platform    string     `form:"platform" binding:"omitempty,platform"`
	From        *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To          *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit       int        `form:"limit" binding:"omitempty,min=1"`
	Offset      int        `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the query into a normalized domain filter
func (q ListQuery) ToFilter() audit.Filter {
	return audit.Filter{
		EntityType:  q.EntityType,
		Action:      audit.Action(q.Action),
		PerformedBy: q.PerformedBy,
		RiskLevel:   audit.RiskLevel(q.RiskLevel),
		Platform:    q.Platform,
		From:        q.From,
		To:          q.To,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}.Normalize()
}

// ListResult is one page of audit entries
type ListResult struct {
	Items  []LogEntryResponse `json:"items"`
	Total  int64              `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// ReviewRequest signs off an audit entry
type ReviewRequest struct {
	ReviewedBy string `json:"reviewed_by"`
}
