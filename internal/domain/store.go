package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// CycleStore persists cycle reports.
type CycleStore interface {
	Save(ctx context.Context, report CycleReport) error
	ListRecent(ctx context.Context, instrument string, opts ListOpts) ([]CycleReport, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	// List returns entries newest first. An empty event matches every event.
	List(ctx context.Context, event string, opts ListOpts) ([]AuditEntry, error)
}
