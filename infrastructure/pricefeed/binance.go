package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"collateralcombat/domain/entities"
)

// PriceDecimals is the fixed-point scale of every price the engine handles
const PriceDecimals = 8

var priceScale = decimal.New(1, PriceDecimals)

// BinanceFeed streams trade prices for a set of symbols over the Binance
// WebSocket API and serves the latest value per symbol. GetPrice marks a
// snapshot unverified once its age exceeds maxAge, which the engine treats
// as price-unavailable.
type BinanceFeed struct {
	url     string
	symbols []string
	maxAge  time.Duration

	mu     sync.RWMutex
	latest map[string]cachedPrice
}

type cachedPrice struct {
	price      int64
	receivedAt time.Time
}

// binanceTrade is the subset of the trade stream payload the feed consumes
type binanceTrade struct {
	Symbol string `json:"s"`
	Price  string `json:"p"`
}

// NewBinanceFeed creates a feed for the given symbols. Run must be started
// before GetPrice returns anything verified.
func NewBinanceFeed(url string, symbols []string, maxAge time.Duration) *BinanceFeed {
	return &BinanceFeed{
		url:     url,
		symbols: symbols,
		maxAge:  maxAge,
		latest:  make(map[string]cachedPrice),
	}
}

// GetPrice returns the latest snapshot for a symbol. A symbol never seen
// returns an error; a stale one returns Verified false.
func (f *BinanceFeed) GetPrice(ctx context.Context, symbol string) (*entities.PriceSnapshot, error) {
	f.mu.RLock()
	cached, ok := f.latest[symbol]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no price observed for symbol %s", symbol)
	}

	age := time.Since(cached.receivedAt)
	return &entities.PriceSnapshot{
		Symbol:    symbol,
		Price:     cached.price,
		Timestamp: cached.receivedAt,
		Verified:  age <= f.maxAge,
		Source:    "binance",
	}, nil
}

// Run connects and consumes until the context ends, reconnecting with a
// fixed delay on any stream failure.
func (f *BinanceFeed) Run(ctx context.Context) error {
	for {
		if err := f.connect(ctx); err != nil {
			log.WithError(err).Warn("Price feed disconnected")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			log.Info("Price feed reconnecting")
		}
	}
}

func (f *BinanceFeed) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := f.subscribe(conn); err != nil {
		return err
	}

	log.WithField("symbols", f.symbols).Info("Price feed connected")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var trade binanceTrade
		if err := json.Unmarshal(msg, &trade); err != nil || trade.Symbol == "" {
			continue
		}

		price, err := parsePrice(trade.Price)
		if err != nil {
			continue
		}
		f.setPrice(trade.Symbol, price)
	}
}

func (f *BinanceFeed) subscribe(conn *websocket.Conn) error {
	streams := make([]string, len(f.symbols))
	for i, symbol := range f.symbols {
		streams[i] = strings.ToLower(symbol) + "@trade"
	}
	request := map[string]any{
		"method": "SUBSCRIBE",
		"params": streams,
		"id":     1,
	}
	return conn.WriteJSON(request)
}

func (f *BinanceFeed) setPrice(symbol string, price int64) {
	f.mu.Lock()
	f.latest[symbol] = cachedPrice{price: price, receivedAt: time.Now()}
	f.mu.Unlock()
}

// parsePrice converts a decimal string to the fixed-point representation
func parsePrice(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("non-positive price %s", s)
	}
	return d.Mul(priceScale).IntPart(), nil
}
