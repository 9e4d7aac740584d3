package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

type HealthChecker struct {
	mu            sync.RWMutex
	lastTick      time.Time
	lastPrice     float64
	feedConnected bool
	openPositions int
	errors        []string
}

type HealthStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	LastTick      time.Time `json:"last_tick"`
	LastPrice     float64   `json:"last_price"`
	FeedConnected bool      `json:"feed_connected"`
	OpenPositions int       `json:"open_positions"`
	Uptime        string    `json:"uptime"`
	Errors        []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// SetFeedConnected marks the price feed up or down
func (h *HealthChecker) SetFeedConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.feedConnected = connected
}

// ObserveTick records the latest price observation
func (h *HealthChecker) ObserveTick(price float64, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTick = at
	h.lastPrice = price
}

// SetOpenPositions records the current open-position count
func (h *HealthChecker) SetOpenPositions(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.openPositions = n
}

// RecordError appends an error to the health report
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 20 {
		h.errors = h.errors[len(h.errors)-20:]
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.feedConnected || time.Since(h.lastTick) > 5*time.Minute {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	health := HealthStatus{
		Status:        status,
		Timestamp:     time.Now(),
		LastTick:      h.lastTick,
		LastPrice:     h.lastPrice,
		FeedConnected: h.feedConnected,
		OpenPositions: h.openPositions,
		Uptime:        time.Since(startTime).String(),
		Errors:        h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}
