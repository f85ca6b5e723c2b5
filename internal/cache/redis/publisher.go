package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// Publisher fans finished cycle reports out on a Pub/Sub channel and appends
// them to a bounded stream that backs the cycle history endpoint.
type Publisher struct {
	bus     domain.SignalBus
	channel string
	stream  string
}

// NewPublisher creates a Publisher writing to channel and stream.
func NewPublisher(bus domain.SignalBus, channel, stream string) *Publisher {
	return &Publisher{bus: bus, channel: channel, stream: stream}
}

// Name identifies the sink in logs.
func (p *Publisher) Name() string { return "redis" }

// Observe publishes report. Both writes are attempted even if one fails.
func (p *Publisher) Observe(ctx context.Context, report domain.CycleReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("redis: marshal cycle %s: %w", report.ID, err)
	}
	return errors.Join(
		p.bus.Publish(ctx, p.channel, payload),
		p.bus.StreamAppend(ctx, p.stream, payload),
	)
}

// Recent returns up to limit of the newest reports for instrument, newest
// first. Entries that fail to decode are skipped.
func (p *Publisher) Recent(ctx context.Context, instrument string, limit int) ([]domain.CycleReport, error) {
	msgs, err := p.bus.StreamTail(ctx, p.stream, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CycleReport, 0, len(msgs))
	for _, m := range msgs {
		var r domain.CycleReport
		if err := json.Unmarshal(m.Payload, &r); err != nil {
			continue
		}
		if instrument != "" && r.Instrument != instrument {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// ListRecent serves the cycle history from the stream. The stream is bounded
// so offset and limit are applied over at most limit+offset entries.
func (p *Publisher) ListRecent(ctx context.Context, instrument string, opts domain.ListOpts) ([]domain.CycleReport, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	reports, err := p.Recent(ctx, instrument, limit+opts.Offset)
	if err != nil {
		return nil, err
	}
	if opts.Offset >= len(reports) {
		return []domain.CycleReport{}, nil
	}
	reports = reports[opts.Offset:]
	if len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}
