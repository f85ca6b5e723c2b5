package redis

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/gridbot/internal/domain"
)

// memBus is an in-memory domain.SignalBus.
type memBus struct {
	published  map[string][][]byte
	stream     []domain.StreamMessage
	publishErr error
}

func newMemBus() *memBus {
	return &memBus{published: make(map[string][][]byte)}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, domain.ErrNotImplemented
}

func (b *memBus) StreamAppend(_ context.Context, _ string, payload []byte) error {
	b.stream = append(b.stream, domain.StreamMessage{ID: time.Now().String(), Payload: payload})
	return nil
}

func (b *memBus) StreamTail(_ context.Context, _ string, count int) ([]domain.StreamMessage, error) {
	var out []domain.StreamMessage
	for i := len(b.stream) - 1; i >= 0 && len(out) < count; i-- {
		out = append(out, b.stream[i])
	}
	return out, nil
}

func TestPublisherObserveAndRecent(t *testing.T) {
	bus := newMemBus()
	p := NewPublisher(bus, "grid:cycles", "grid:cycles:stream")
	ctx := context.Background()

	for i, inst := range []string{"BTC_USDT_Perp", "ETH_USDT_Perp", "BTC_USDT_Perp"} {
		require.NoError(t, p.Observe(ctx, domain.CycleReport{ID: string(rune('a' + i)), Instrument: inst}))
	}
	require.Len(t, bus.published["grid:cycles"], 3)

	var first domain.CycleReport
	require.NoError(t, json.Unmarshal(bus.published["grid:cycles"][0], &first))
	assert.Equal(t, "a", first.ID)

	recent, err := p.Recent(ctx, "BTC_USDT_Perp", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID, "newest first")
	assert.Equal(t, "a", recent[1].ID)
}

func TestPublisherListRecentPages(t *testing.T) {
	bus := newMemBus()
	p := NewPublisher(bus, "ch", "st")
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, p.Observe(ctx, domain.CycleReport{ID: id, Instrument: "BTC_USDT_Perp"}))
	}

	page, err := p.ListRecent(ctx, "BTC_USDT_Perp", domain.ListOpts{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
	assert.Equal(t, "b", page[1].ID)

	empty, err := p.ListRecent(ctx, "BTC_USDT_Perp", domain.ListOpts{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPublisherStillAppendsWhenPublishFails(t *testing.T) {
	bus := newMemBus()
	bus.publishErr = errors.New("connection reset")
	p := NewPublisher(bus, "ch", "st")

	err := p.Observe(context.Background(), domain.CycleReport{ID: "x"})
	assert.ErrorContains(t, err, "connection reset")
	assert.Len(t, bus.stream, 1)
}

// The tests below need a reachable Redis and run only when
// GRIDBOT_TEST_REDIS_ADDR is set.
func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("GRIDBOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GRIDBOT_TEST_REDIS_ADDR not set")
	}
	c, err := New(context.Background(), ClientConfig{Addr: addr, PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLockManagerExclusive(t *testing.T) {
	c := testClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()
	key := "test:" + t.Name() + ":" + time.Now().Format(time.RFC3339Nano)

	unlock, err := lm.Acquire(ctx, key, 10*time.Second)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, key, 10*time.Second)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()

	again, err := lm.Acquire(ctx, key, 10*time.Second)
	require.NoError(t, err)
	again()
}

func TestSignalBusStreamTail(t *testing.T) {
	c := testClient(t)
	bus := NewSignalBus(c, 100)
	ctx := context.Background()
	stream := "test:stream:" + time.Now().Format(time.RFC3339Nano)

	for _, p := range []string{"one", "two", "three"} {
		require.NoError(t, bus.StreamAppend(ctx, stream, []byte(p)))
	}
	msgs, err := bus.StreamTail(ctx, stream, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "three", string(msgs[0].Payload))
	assert.Equal(t, "two", string(msgs[1].Payload))
}
