package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// CycleStore implements domain.CycleStore. The full report is kept as JSONB
// next to a few summary columns for ad-hoc queries.
type CycleStore struct {
	pool *pgxpool.Pool
}

// NewCycleStore creates a new CycleStore backed by the given connection pool.
func NewCycleStore(pool *pgxpool.Pool) *CycleStore {
	return &CycleStore{pool: pool}
}

// Save inserts report. Saving the same cycle id twice is a no-op.
func (s *CycleStore) Save(ctx context.Context, report domain.CycleReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("postgres: marshal cycle %s: %w", report.ID, err)
	}

	const query = `
		INSERT INTO grid_cycles (
			id, instrument, started_at, duration_ms, reference_price, trend, spread,
			placed, cancelled, failed, guard_action, error, report
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		report.ID,
		report.Instrument,
		report.StartedAt,
		report.Duration.Milliseconds(),
		report.ReferencePrice,
		report.Trend,
		report.Spread,
		report.Execution.Count(domain.OpPlaced),
		report.Execution.Count(domain.OpCancelled),
		report.Execution.Count(domain.OpFailed),
		string(report.Guard.Action),
		report.Error,
		payload,
	)
	if err != nil {
		return fmt.Errorf("postgres: save cycle %s: %w", report.ID, err)
	}
	return nil
}

// ListRecent returns reports for instrument, newest first.
func (s *CycleStore) ListRecent(ctx context.Context, instrument string, opts domain.ListOpts) ([]domain.CycleReport, error) {
	query, args := listQuery(
		`SELECT report FROM grid_cycles WHERE instrument = $1`,
		"started_at", []any{instrument}, opts,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cycles: %w", err)
	}
	defer rows.Close()

	var out []domain.CycleReport
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres: scan cycle: %w", err)
		}
		var r domain.CycleReport
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal cycle: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list cycles rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.CycleStore = (*CycleStore)(nil)
