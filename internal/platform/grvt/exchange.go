package grvt

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/big"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/gridbot/internal/crypto"
	"github.com/alanyoungcy/gridbot/internal/domain"
)

// priceDecimals is the fixed-point scale of signed limit prices.
const priceDecimals = 9

// signatureTTL bounds how long a signed order stays valid on the venue.
const signatureTTL = 29 * 24 * time.Hour

// OrderSigner signs order payloads.
type OrderSigner interface {
	SignOrder(o crypto.OrderPayload) (crypto.Signature, error)
}

type instrumentInfo struct {
	assetID      *big.Int
	baseDecimals int32
}

// Exchange adapts Client to domain.Exchange and domain.CandleSource.
type Exchange struct {
	client *Client
	signer OrderSigner
	subAcc uint64
	now    func() time.Time
	logger *slog.Logger

	mu          sync.Mutex
	instruments map[string]instrumentInfo
}

// NewExchange creates an Exchange. signer may be nil for read-only use; order
// placement then fails with ErrSigningFailed.
func NewExchange(client *Client, signer OrderSigner, logger *slog.Logger) *Exchange {
	return &Exchange{
		client:      client,
		signer:      signer,
		subAcc:      client.cfg.SubAccountID,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "grvt_exchange")),
		instruments: make(map[string]instrumentInfo),
	}
}

// Name implements domain.Exchange.
func (e *Exchange) Name() string { return "grvt" }

// Ticker implements domain.Exchange.
func (e *Exchange) Ticker(ctx context.Context, instrument string) (domain.Ticker, error) {
	var resp envelope[apiTicker]
	if err := e.client.postPublic(ctx, "/full/v1/ticker", map[string]string{"instrument": instrument}, &resp); err != nil {
		return domain.Ticker{}, fmt.Errorf("grvt: ticker %s: %w", instrument, err)
	}
	t := resp.Result.toDomain()
	if t.Instrument == "" {
		t.Instrument = instrument
	}
	return t, nil
}

// Candles implements domain.CandleSource. Bars are returned oldest first.
func (e *Exchange) Candles(ctx context.Context, instrument, interval string, limit int) ([]domain.Candle, error) {
	ci, ok := klineIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("grvt: candles: interval %q: %w", interval, domain.ErrInvalidParameter)
	}
	req := map[string]any{
		"instrument": instrument,
		"interval":   ci,
		"type":       "TRADE",
		"limit":      limit,
	}
	var resp envelope[[]apiCandle]
	if err := e.client.postPublic(ctx, "/full/v1/kline", req, &resp); err != nil {
		return nil, fmt.Errorf("grvt: candles %s: %w", instrument, err)
	}
	out := make([]domain.Candle, 0, len(resp.Result))
	for _, c := range resp.Result {
		out = append(out, c.toDomain())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out, nil
}

// OpenOrders implements domain.Exchange.
func (e *Exchange) OpenOrders(ctx context.Context, instrument string) ([]domain.Order, error) {
	base, quote, err := splitInstrument(instrument)
	if err != nil {
		return nil, err
	}
	req := map[string]any{
		"sub_account_id": e.subAccount(),
		"kind":           []string{"PERPETUAL"},
		"base":           []string{base},
		"quote":          []string{quote},
	}
	var resp envelope[[]apiOrder]
	if err := e.client.postPrivate(ctx, "/full/v1/open_orders", req, &resp); err != nil {
		return nil, fmt.Errorf("grvt: open orders %s: %w", instrument, err)
	}
	out := make([]domain.Order, 0, len(resp.Result))
	for _, o := range resp.Result {
		order, ok := o.toDomain()
		if !ok || order.Instrument != instrument {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

// PlaceOrder implements domain.Exchange. The returned order carries the
// client order id, which is how the venue addresses it for cancels.
func (e *Exchange) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	if e.signer == nil {
		return domain.Order{}, fmt.Errorf("grvt: place order: no signer: %w", domain.ErrSigningFailed)
	}
	if !req.Quantity.IsPositive() {
		return domain.Order{}, fmt.Errorf("grvt: place order: quantity %s: %w", req.Quantity, domain.ErrInvalidParameter)
	}
	info, err := e.instrument(ctx, req.Instrument)
	if err != nil {
		return domain.Order{}, err
	}

	isMarket := req.Type == domain.OrderTypeMarket
	price := req.Price
	if isMarket {
		price = decimal.Zero
	} else if !price.IsPositive() {
		return domain.Order{}, fmt.Errorf("grvt: place order: price %s: %w", price, domain.ErrInvalidParameter)
	}

	tif, tifName := timeInForce(req.TimeInForce, isMarket)
	clientID := req.ClientOrderID
	if clientID == 0 {
		clientID = newClientOrderID()
	}
	now := e.now()
	payload := crypto.OrderPayload{
		SubAccountID: e.subAccount(),
		IsMarket:     isMarket,
		TimeInForce:  tif,
		ReduceOnly:   req.ReduceOnly,
		Legs: []crypto.OrderLeg{{
			AssetID:          info.assetID,
			ContractSize:     scaled(req.Quantity, info.baseDecimals),
			LimitPrice:       scaled(price, priceDecimals),
			IsBuyingContract: req.Side == domain.SideBuy,
		}},
		Nonce:      rand.Uint32(),
		Expiration: now.Add(signatureTTL).UnixNano(),
	}
	sig, err := e.signer.SignOrder(payload)
	if err != nil {
		return domain.Order{}, fmt.Errorf("grvt: place order: %w: %v", domain.ErrSigningFailed, err)
	}

	body := map[string]apiOrder{"order": {
		SubAccountID: strconv.FormatUint(payload.SubAccountID, 10),
		IsMarket:     isMarket,
		TimeInForce:  tifName,
		ReduceOnly:   req.ReduceOnly,
		Legs: []apiLeg{{
			Instrument:    req.Instrument,
			Size:          req.Quantity.String(),
			LimitPrice:    price.String(),
			IsBuyingAsset: req.Side == domain.SideBuy,
		}},
		Signature: sig,
		Metadata:  apiOrderMetadata{ClientOrderID: clientID.String()},
	}}

	var resp envelope[apiOrder]
	if err := e.client.postPrivate(ctx, "/full/v1/create_order", body, &resp); err != nil {
		return domain.Order{}, fmt.Errorf("grvt: place order: %w", err)
	}

	order, ok := resp.Result.toDomain()
	if !ok {
		order = domain.Order{Instrument: req.Instrument, Side: req.Side, Type: req.Type, Quantity: req.Quantity, Status: domain.OrderStatusPending}
		if !isMarket {
			order.Price = decimal.NewNullDecimal(price)
		}
	}
	if order.ID == "" {
		order.ID = clientID.String()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	return order, nil
}

// CancelOrder implements domain.Exchange.
func (e *Exchange) CancelOrder(ctx context.Context, instrument string, id domain.OrderID) error {
	req := map[string]string{
		"sub_account_id":  strconv.FormatUint(e.subAccount(), 10),
		"client_order_id": id.String(),
	}
	if err := e.client.postPrivate(ctx, "/full/v1/cancel_order", req, nil); err != nil {
		return fmt.Errorf("grvt: cancel order %s: %w", id, err)
	}
	return nil
}

// CancelOrders is not offered for an explicit id list; callers fall back to
// CancelOrder per id.
func (e *Exchange) CancelOrders(context.Context, string, []domain.OrderID) error {
	return fmt.Errorf("grvt: bulk cancel: %w", domain.ErrNotImplemented)
}

// Position implements domain.Exchange.
func (e *Exchange) Position(ctx context.Context, instrument string) (domain.Position, error) {
	base, quote, err := splitInstrument(instrument)
	if err != nil {
		return domain.Position{}, err
	}
	req := map[string]any{
		"sub_account_id": e.subAccount(),
		"kind":           []string{"PERPETUAL"},
		"base":           []string{base},
		"quote":          []string{quote},
	}
	var resp envelope[[]apiPosition]
	if err := e.client.postPrivate(ctx, "/full/v1/positions", req, &resp); err != nil {
		return domain.Position{}, fmt.Errorf("grvt: positions %s: %w", instrument, err)
	}
	for _, p := range resp.Result {
		if p.Instrument != instrument {
			continue
		}
		size, err := decimal.NewFromString(p.Size)
		if err != nil {
			return domain.Position{}, fmt.Errorf("grvt: position size %q: %w", p.Size, err)
		}
		entry, _ := decimal.NewFromString(p.EntryPrice)
		return domain.Position{Instrument: instrument, Size: size, EntryPrice: entry}, nil
	}
	return domain.Position{}, fmt.Errorf("grvt: position %s: %w", instrument, domain.ErrNotFound)
}

// ClosePosition has no dedicated endpoint; callers submit a reduce-only order.
func (e *Exchange) ClosePosition(context.Context, string, domain.OrderType) error {
	return fmt.Errorf("grvt: close position: %w", domain.ErrNotImplemented)
}

func (e *Exchange) subAccount() uint64 { return e.subAcc }

// instrument returns cached signing metadata for name.
func (e *Exchange) instrument(ctx context.Context, name string) (instrumentInfo, error) {
	e.mu.Lock()
	info, ok := e.instruments[name]
	e.mu.Unlock()
	if ok {
		return info, nil
	}

	var resp envelope[apiInstrument]
	if err := e.client.postPublic(ctx, "/full/v1/instrument", map[string]string{"instrument": name}, &resp); err != nil {
		return instrumentInfo{}, fmt.Errorf("grvt: instrument %s: %w", name, err)
	}
	assetID, ok := new(big.Int).SetString(strings.TrimPrefix(resp.Result.InstrumentHash, "0x"), 16)
	if !ok {
		return instrumentInfo{}, fmt.Errorf("grvt: instrument %s: bad hash %q: %w", name, resp.Result.InstrumentHash, domain.ErrInvalidParameter)
	}
	info = instrumentInfo{
		assetID:      assetID,
		baseDecimals: resp.Result.BaseDecimals,
	}
	e.mu.Lock()
	e.instruments[name] = info
	e.mu.Unlock()
	e.logger.Debug("instrument metadata loaded",
		slog.String("instrument", name),
		slog.Int("base_decimals", int(info.baseDecimals)),
	)
	return info, nil
}

// splitInstrument parses "BTC_USDT_Perp" into its base and quote.
func splitInstrument(instrument string) (string, string, error) {
	parts := strings.Split(instrument, "_")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("grvt: instrument %q: %w", instrument, domain.ErrInvalidParameter)
	}
	return parts[0], parts[1], nil
}

func timeInForce(tif domain.TimeInForce, isMarket bool) (uint8, string) {
	if isMarket {
		return crypto.TIFImmediateOrCancel, "IMMEDIATE_OR_CANCEL"
	}
	switch tif {
	case domain.TimeInForceIOC:
		return crypto.TIFImmediateOrCancel, "IMMEDIATE_OR_CANCEL"
	case domain.TimeInForceFOK:
		return crypto.TIFFillOrKill, "FILL_OR_KILL"
	}
	return crypto.TIFGoodTillTime, "GOOD_TILL_TIME"
}

// scaled converts d to a fixed-point integer with the given decimals.
func scaled(d decimal.Decimal, decimals int32) uint64 {
	return d.Shift(decimals).Truncate(0).BigInt().Uint64()
}

// newClientOrderID draws an id from the upper half of the uint64 range, which
// the venue reserves for API clients.
func newClientOrderID() domain.OrderID {
	u := uuid.New()
	return domain.OrderID(binary.BigEndian.Uint64(u[:8]) | 1<<63)
}
