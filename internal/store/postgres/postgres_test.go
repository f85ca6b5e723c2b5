package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))

	dsn := DSN(ClientConfig{Host: "db", User: "grid", Password: "p@ss/word", Database: "bot"})
	assert.Equal(t, "postgres://grid:p%40ss%2Fword@db:5432/bot?sslmode=disable", dsn)
}

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_audit_event.sql": {Data: []byte("SELECT 2")},
		"migrations/001_init.sql":        {Data: []byte("SELECT 1")},
		"migrations/README.md":           {Data: []byte("notes")},
	}

	pending, err := pendingMigrations(fsys, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_audit_event.sql"}, pending)

	pending, err = pendingMigrations(fsys, []string{"001_init.sql"})
	require.NoError(t, err)
	assert.Equal(t, []string{"002_audit_event.sql"}, pending)

	embedded, err := pendingMigrations(migrationsFS, nil)
	require.NoError(t, err)
	assert.Contains(t, embedded, "001_init.sql")
}

func TestListQuery(t *testing.T) {
	since := time.Unix(100, 0)
	q, args := listQuery("SELECT report FROM grid_cycles WHERE instrument = $1", "started_at",
		[]any{"BTC_USDT_Perp"}, domain.ListOpts{Since: &since, Limit: 10, Offset: 5})

	assert.Equal(t,
		"SELECT report FROM grid_cycles WHERE instrument = $1 AND started_at >= $2 ORDER BY started_at DESC LIMIT $3 OFFSET $4",
		q)
	assert.Equal(t, []any{"BTC_USDT_Perp", since, 10, 5}, args)
}

func TestAuditListQueryFiltersEvent(t *testing.T) {
	q, args := auditListQuery(EventOrderFailed, domain.ListOpts{Limit: 20})
	assert.Equal(t,
		"SELECT id, event, detail, created_at FROM audit_log WHERE event = $1 ORDER BY created_at DESC LIMIT $2",
		q)
	assert.Equal(t, []any{EventOrderFailed, 20}, args)

	q, args = auditListQuery("", domain.ListOpts{})
	assert.Equal(t, "SELECT id, event, detail, created_at FROM audit_log WHERE TRUE ORDER BY created_at DESC", q)
	assert.Empty(t, args)
}

func TestAuditEvents(t *testing.T) {
	report := domain.CycleReport{
		ID:         "c1",
		Instrument: "BTC_USDT_Perp",
		Execution: domain.ExecutionReport{Results: []domain.OpResult{
			{Kind: domain.OpPlaced, Reason: domain.ReasonMissing, Side: domain.SideBuy, Level: 64900},
			{Kind: domain.OpFailed, Reason: domain.ReasonMissing, Side: domain.SideSell, Level: 65100, Error: "rejected"},
			{Kind: domain.OpFailed, Reason: domain.ReasonStale, OrderID: 7, Error: "timeout"},
		}},
		Guard: domain.GuardResult{Action: domain.GuardFlattened, Size: "0.002"},
	}

	events := AuditEvents(report)
	require.Len(t, events, 3)
	assert.Equal(t, EventOrderFailed, events[0].Event)
	assert.Equal(t, int64(65100), events[0].Detail["level"])
	assert.NotContains(t, events[0].Detail, "order_id")
	assert.Equal(t, "7", events[1].Detail["order_id"])
	assert.Equal(t, EventPositionClosed, events[2].Event)
	assert.Equal(t, "c1", events[2].Detail["cycle_id"])

	failed := AuditEvents(domain.CycleReport{ID: "c2", Error: "no reference price", Guard: domain.GuardResult{Action: domain.GuardSkipped}})
	require.Len(t, failed, 1)
	assert.Equal(t, EventCycleFailed, failed[0].Event)
}

type memCycles struct {
	saved []domain.CycleReport
	err   error
}

func (m *memCycles) Save(_ context.Context, r domain.CycleReport) error {
	m.saved = append(m.saved, r)
	return m.err
}

func (m *memCycles) ListRecent(context.Context, string, domain.ListOpts) ([]domain.CycleReport, error) {
	return m.saved, nil
}

type memAudit struct{ events []string }

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) List(context.Context, string, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestRecorderWritesAuditEvenWhenSaveFails(t *testing.T) {
	cycles := &memCycles{err: errors.New("disk full")}
	audit := &memAudit{}
	rec := NewRecorder(cycles, audit)

	err := rec.Observe(context.Background(), domain.CycleReport{ID: "c", Error: "boom"})
	assert.ErrorContains(t, err, "disk full")
	assert.Len(t, cycles.saved, 1)
	assert.Equal(t, []string{EventCycleFailed}, audit.events)

	require.NoError(t, NewRecorder(&memCycles{}, nil).Observe(context.Background(), domain.CycleReport{ID: "d"}))
}

// TestCycleStoreRoundTrip needs a database and runs only when
// GRIDBOT_TEST_POSTGRES_DSN is set.
func TestCycleStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("GRIDBOT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GRIDBOT_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	c, err := New(ctx, ClientConfig{DSN: dsn, MaxConns: 2})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	require.NoError(t, c.RunMigrations(ctx))

	store := NewCycleStore(c.Pool())
	instrument := "TEST_" + uuid.NewString()[:8]
	trend := 31.5
	report := domain.CycleReport{
		ID:         uuid.NewString(),
		Instrument: instrument,
		StartedAt:  time.Now().UTC().Truncate(time.Millisecond),
		Duration:   250 * time.Millisecond,
		Trend:      &trend,
		Target:     domain.LevelSet{Buy: []domain.PriceLevel{100}, Sell: []domain.PriceLevel{200}},
		Guard:      domain.GuardResult{Action: domain.GuardFlat},
	}
	require.NoError(t, store.Save(ctx, report))
	require.NoError(t, store.Save(ctx, report), "duplicate ids are ignored")

	got, err := store.ListRecent(ctx, instrument, domain.ListOpts{Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, report.ID, got[0].ID)
	assert.Equal(t, report.Target, got[0].Target)
	require.NotNil(t, got[0].Trend)
	assert.InDelta(t, trend, *got[0].Trend, 1e-9)

	audit := NewAuditStore(c.Pool())
	require.NoError(t, audit.Log(ctx, EventCycleFailed, map[string]any{"instrument": instrument}))
	require.NoError(t, audit.Log(ctx, EventOrderFailed, map[string]any{"instrument": instrument, "level": 65100}))

	entries, err := audit.List(ctx, "", domain.ListOpts{Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EventOrderFailed, entries[0].Event)

	entries, err = audit.List(ctx, EventCycleFailed, domain.ListOpts{Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, instrument, entries[0].Detail["instrument"])
}
