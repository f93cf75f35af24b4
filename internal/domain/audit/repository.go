package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Listing limits
const (
	DefaultListLimit = 100
	MaxListLimit     = 100
)

// Filter narrows an audit log listing. Results are newest first.
type Filter struct {
	EntityType  string
	Action      Action
	PerformedBy string
	RiskLevel   RiskLevel
	Platform    string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// Normalize clamps the limit to (0, MaxListLimit] and the offset to >= 0
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Repository persists audit entries
type Repository interface {
	Create(ctx context.Context, entry *LogEntry) error
	// FindByID returns shared.ErrNotFound when absent
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*LogEntry, error)
	// List returns one page of entries and the total match count
	List(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]*LogEntry, int64, error)
	// ListPendingReview returns unreviewed entries that require review, oldest first
	ListPendingReview(ctx context.Context, tenantID uuid.UUID, limit int) ([]*LogEntry, error)
	// SaveReview persists ReviewedAt/ReviewedBy and nothing else
	SaveReview(ctx context.Context, entry *LogEntry) error
}
