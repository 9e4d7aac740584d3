package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/trunghm/trade-guardian/internal/sizing"
)

// Client wraps the Bybit REST API for the two things the guardian needs
// from the venue: a spot price on demand and the lot-size constraints that
// bound order quantities.
type Client struct {
	httpClient *bybit_api.Client
	category   string

	mu          sync.RWMutex
	constraints map[string]sizing.Constraints
	lastUpdate  time.Time
	cacheTTL    time.Duration
}

// Config holds the configuration for the Bybit client
type Config struct {
	APIKey    string
	APISecret string
	Category  string // "linear" or "spot"
	Testnet   bool
	Demo      bool
}

// NewClient creates a new Bybit client
func NewClient(config Config) *Client {
	var baseURL string
	if config.Demo {
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	category := config.Category
	if category == "" {
		category = "linear"
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Client{
		httpClient:  httpClient,
		category:    category,
		constraints: make(map[string]sizing.Constraints),
		cacheTTL:    1 * time.Hour,
	}
}

// GetLatestPrice gets the latest traded price for a symbol
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest price: %w", err)
	}

	price, err := parseLatestPriceResponse(result)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price response: %w", err)
	}
	return price, nil
}

// GetConstraints returns the sizing constraints for a symbol, fetching from
// the instrument-info endpoint and caching for cacheTTL
func (c *Client) GetConstraints(ctx context.Context, symbol string) (sizing.Constraints, error) {
	c.mu.RLock()
	if cons, exists := c.constraints[symbol]; exists && time.Since(c.lastUpdate) < c.cacheTTL {
		c.mu.RUnlock()
		return cons, nil
	}
	c.mu.RUnlock()

	cons, err := c.fetchConstraints(ctx, symbol)
	if err != nil {
		return sizing.Constraints{}, err
	}

	c.mu.Lock()
	c.constraints[symbol] = cons
	c.lastUpdate = time.Now()
	c.mu.Unlock()

	return cons, nil
}

func (c *Client) fetchConstraints(ctx context.Context, symbol string) (sizing.Constraints, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	if err != nil {
		return sizing.Constraints{}, fmt.Errorf("failed to fetch instrument info: %w", err)
	}

	cons, err := parseConstraintsResponse(result, symbol)
	if err != nil {
		return sizing.Constraints{}, fmt.Errorf("failed to parse instrument info: %w", err)
	}
	return cons, nil
}

// parseLatestPriceResponse parses the ticker response to extract the latest price
func parseLatestPriceResponse(response interface{}) (float64, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return 0, fmt.Errorf("invalid response type")
	}

	if serverResp.RetCode != 0 {
		return 0, fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal result: %w", err)
	}

	var tickerResult struct {
		Category string `json:"category"`
		List     []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}

	if err := json.Unmarshal(resultBytes, &tickerResult); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ticker result: %w", err)
	}

	if len(tickerResult.List) == 0 {
		return 0, fmt.Errorf("no ticker data found")
	}
	return parseFloat64(tickerResult.List[0].LastPrice), nil
}

// parseConstraintsResponse extracts the lot-size filter for the target
// symbol from the instrument-info response
func parseConstraintsResponse(response interface{}, targetSymbol string) (sizing.Constraints, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return sizing.Constraints{}, fmt.Errorf("invalid response type")
	}

	if serverResp.RetCode != 0 {
		return sizing.Constraints{}, fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return sizing.Constraints{}, fmt.Errorf("failed to marshal result: %w", err)
	}

	var instrumentResult struct {
		Category string `json:"category"`
		List     []struct {
			Symbol        string `json:"symbol"`
			LotSizeFilter struct {
				MinNotionalValue string `json:"minNotionalValue"`
				MinOrderQty      string `json:"minOrderQty"`
				QtyStep          string `json:"qtyStep"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	}

	if err := json.Unmarshal(resultBytes, &instrumentResult); err != nil {
		return sizing.Constraints{}, fmt.Errorf("failed to unmarshal instrument result: %w", err)
	}

	for _, item := range instrumentResult.List {
		if item.Symbol != targetSymbol {
			continue
		}
		return sizing.Constraints{
			MinNotional: parseFloat64(item.LotSizeFilter.MinNotionalValue),
			MinOrderQty: parseFloat64(item.LotSizeFilter.MinOrderQty),
			QtyStep:     parseFloat64(item.LotSizeFilter.QtyStep),
		}, nil
	}
	return sizing.Constraints{}, fmt.Errorf("instrument %s not found", targetSymbol)
}

func parseFloat64(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
