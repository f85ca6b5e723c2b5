package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

const contentTypeJSONL = "application/x-ndjson"

// ArchiverConfig configures an Archiver.
type ArchiverConfig struct {
	Prefix        string
	FlushInterval time.Duration
	// MaxBuffered triggers an early flush once this many reports are queued.
	MaxBuffered int
}

// Archiver buffers cycle reports in memory and uploads them to object storage
// as JSONL batches, one object per flush. Buffered reports survive a failed
// upload and are retried on the next flush.
type Archiver struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
	cfg    ArchiverConfig
	logger *slog.Logger

	mu      sync.Mutex
	pending []domain.CycleReport
	kick    chan struct{}
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, audit domain.AuditStore, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	if cfg.Prefix == "" {
		cfg.Prefix = "cycles"
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 15 * time.Minute
	}
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = 1000
	}
	return &Archiver{
		writer: writer,
		audit:  audit,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "archiver")),
		kick:   make(chan struct{}, 1),
	}
}

// Name identifies the sink in logs.
func (a *Archiver) Name() string { return "s3" }

// Observe queues report for the next upload.
func (a *Archiver) Observe(_ context.Context, report domain.CycleReport) error {
	a.mu.Lock()
	a.pending = append(a.pending, report)
	full := len(a.pending) >= a.cfg.MaxBuffered
	a.mu.Unlock()

	if full {
		select {
		case a.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// Run flushes on every interval tick or when the buffer fills, and once more
// on shutdown. It returns ctx.Err().
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			if _, err := a.Flush(flushCtx); err != nil {
				a.logger.Error("final archive flush failed", slog.String("error", err.Error()))
			}
			cancel()
			return ctx.Err()
		case <-ticker.C:
		case <-a.kick:
		}
		if _, err := a.Flush(ctx); err != nil {
			a.logger.Warn("archive flush failed", slog.String("error", err.Error()))
		}
	}
}

// Flush uploads every queued report as one object and returns the number
// archived. On failure the reports are put back at the head of the queue.
func (a *Archiver) Flush(ctx context.Context) (int, error) {
	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(batch)
	if err != nil {
		a.requeue(batch)
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	path := archivePath(a.cfg.Prefix, batch[0])
	if int64(len(buf)) > minPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), contentTypeJSONL)
	}
	if err != nil {
		a.requeue(batch)
		return 0, fmt.Errorf("s3blob: archive upload %s: %w", path, err)
	}

	a.logger.Info("cycles archived", slog.String("path", path), slog.Int("count", len(batch)))

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.cycles", map[string]any{
			"path":  path,
			"count": len(batch),
			"from":  batch[0].StartedAt.Format(time.RFC3339),
			"to":    batch[len(batch)-1].StartedAt.Format(time.RFC3339),
		}); err != nil {
			return len(batch), fmt.Errorf("s3blob: archive audit log: %w", err)
		}
	}
	return len(batch), nil
}

// Pending returns the number of queued reports.
func (a *Archiver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (a *Archiver) requeue(batch []domain.CycleReport) {
	a.mu.Lock()
	a.pending = append(batch, a.pending...)
	a.mu.Unlock()
}

// archivePath builds the object key for a batch, partitioned by instrument
// and the UTC day of its first cycle.
//
//	cycles/BTC_USDT_Perp/2025/01/31/20250131T120000Z-<cycle id>.jsonl
func archivePath(prefix string, first domain.CycleReport) string {
	ts := first.StartedAt.UTC()
	return fmt.Sprintf("%s/%s/%s/%s-%s.jsonl",
		prefix, first.Instrument, ts.Format("2006/01/02"), ts.Format("20060102T150405Z"), first.ID)
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
