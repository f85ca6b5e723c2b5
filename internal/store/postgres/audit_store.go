package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// AuditStore keeps the audit_log table: one row per failed cycle, failed
// venue operation or position guard intervention.
type AuditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log appends one entry. pgx encodes detail into the JSONB column.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (event, detail) VALUES ($1, $2)`, event, detail,
	); err != nil {
		return fmt.Errorf("postgres: audit %s: %w", event, err)
	}
	return nil
}

// List pages through entries newest first, optionally narrowed to one event.
func (s *AuditStore) List(ctx context.Context, event string, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	query, args := auditListQuery(event, opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit: %w", err)
	}
	// Column order matches the AuditEntry fields.
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.AuditEntry])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan audit: %w", err)
	}
	return entries, nil
}

func auditListQuery(event string, opts domain.ListOpts) (string, []any) {
	base := `SELECT id, event, detail, created_at FROM audit_log WHERE TRUE`
	var args []any
	if event != "" {
		base = `SELECT id, event, detail, created_at FROM audit_log WHERE event = $1`
		args = append(args, event)
	}
	return listQuery(base, "created_at", args, opts)
}

var _ domain.AuditStore = (*AuditStore)(nil)
