package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Tick is one observed market price
type Tick struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
}

// PriceFeed streams market prices for the symbols the guardian watches
type PriceFeed interface {
	// Start connects and begins delivering ticks until ctx is cancelled
	Start(ctx context.Context) error

	// Ticks returns the stream of observed prices
	Ticks() <-chan Tick

	// Close tears the feed down
	Close() error
}

const (
	mainnetStreamURL = "wss://stream.bybit.com/v5/public/linear"
	testnetStreamURL = "wss://stream-testnet.bybit.com/v5/public/linear"

	pingInterval     = 20 * time.Second
	reconnectBackoff = 5 * time.Second
)

// WebSocketFeed subscribes to the Bybit public ticker stream over a
// gorilla/websocket connection. Read errors trigger a reconnect with the
// same subscriptions, so a dropped connection only pauses the tick stream.
type WebSocketFeed struct {
	url     string
	symbols []string

	mu   sync.Mutex
	conn *websocket.Conn

	ticks         chan Tick
	reconnectChan chan struct{}
	cancel        context.CancelFunc
}

// NewWebSocketFeed builds a ticker feed for the given symbols
func NewWebSocketFeed(symbols []string, testnet bool) *WebSocketFeed {
	url := mainnetStreamURL
	if testnet {
		url = testnetStreamURL
	}
	return &WebSocketFeed{
		url:           url,
		symbols:       symbols,
		ticks:         make(chan Tick, 256),
		reconnectChan: make(chan struct{}, 1),
	}
}

// Start connects, subscribes, and launches the read, ping and reconnect
// loops. It returns once the initial connection is established.
func (f *WebSocketFeed) Start(ctx context.Context) error {
	ctx, f.cancel = context.WithCancel(ctx)

	if err := f.connect(ctx); err != nil {
		return err
	}

	go f.pingLoop(ctx)
	go f.handleReconnection(ctx)
	return nil
}

// Ticks returns the stream of observed prices
func (f *WebSocketFeed) Ticks() <-chan Tick {
	return f.ticks
}

// Close stops all loops and closes the connection
func (f *WebSocketFeed) Close() error {
	if f.cancel != nil {
		f.cancel()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *WebSocketFeed) connect(ctx context.Context) error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to price stream: %w", err)
	}

	args := make([]string, 0, len(f.symbols))
	for _, symbol := range f.symbols {
		args = append(args, "tickers."+symbol)
	}
	subscribeMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	}
	if err := conn.WriteJSON(subscribeMsg); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	go f.readMessages(ctx, conn)
	return nil
}

func (f *WebSocketFeed) readMessages(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := conn.ReadMessage()
			if err != nil {
				f.triggerReconnect()
				return
			}
			if tick, ok := parseTickerMessage(message); ok {
				select {
				case f.ticks <- tick:
				default:
					// A slow consumer drops the oldest view of the market,
					// never blocks the read loop
				}
			}
		}
	}
}

func (f *WebSocketFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			conn := f.conn
			f.mu.Unlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteJSON(map[string]string{"op": "ping"}); err != nil {
				f.triggerReconnect()
			}
		}
	}
}

func (f *WebSocketFeed) triggerReconnect() {
	select {
	case f.reconnectChan <- struct{}{}:
	default:
	}
}

func (f *WebSocketFeed) handleReconnection(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.reconnectChan:
			time.Sleep(reconnectBackoff)
			if ctx.Err() != nil {
				return
			}
			if err := f.connect(ctx); err != nil {
				f.triggerReconnect()
			}
		}
	}
}

// parseTickerMessage extracts a tick from a Bybit v5 public ticker push.
// Subscription acks, pong frames and delta updates without a price are
// not ticks.
func parseTickerMessage(message []byte) (Tick, bool) {
	var push struct {
		Topic string `json:"topic"`
		TS    int64  `json:"ts"`
		Data  struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &push); err != nil {
		return Tick{}, false
	}
	if push.Data.Symbol == "" || push.Data.LastPrice == "" {
		return Tick{}, false
	}

	price := parseFloat64(push.Data.LastPrice)
	if price <= 0 {
		return Tick{}, false
	}

	ts := time.Now()
	if push.TS > 0 {
		ts = time.UnixMilli(push.TS)
	}
	return Tick{Symbol: push.Data.Symbol, Price: price, Timestamp: ts}, true
}
