package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trade lifecycle metrics
	positionsOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_guardian_positions_opened_total",
			Help: "Total number of positions opened",
		},
		[]string{"symbol", "side", "confidence"},
	)

	positionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_guardian_positions_closed_total",
			Help: "Total number of positions closed, labelled by grade",
		},
		[]string{"symbol", "exit_type", "grade"},
	)

	trailingUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_guardian_trailing_updates_total",
			Help: "Total number of trailing-stop moves",
		},
		[]string{"symbol"},
	)

	tradesGraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_guardian_trades_graded_total",
			Help: "Total number of graded trades by confidence tier and grade",
		},
		[]string{"confidence", "grade"},
	)

	tierWinRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trade_guardian_tier_win_rate",
			Help: "Win rate per confidence tier over all graded trades",
		},
		[]string{"confidence"},
	)

	rejectedDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_guardian_rejected_decisions_total",
			Help: "Decisions rejected before opening a position",
		},
		[]string{"symbol", "reason"},
	)

	// Sizing metrics
	positionNotional = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trade_guardian_position_notional_usd",
			Help:    "Distribution of opened position notionals in USD",
			Buckets: prometheus.ExponentialBuckets(100, 2, 12),
		},
		[]string{"symbol"},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trade_guardian_current_price",
			Help: "Last observed price per symbol",
		},
		[]string{"symbol"},
	)

	exposure = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trade_guardian_open_exposure_usd",
			Help: "Sum of open position notionals in USD",
		},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trade_guardian_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(positionsOpened)
	prometheus.MustRegister(positionsClosed)
	prometheus.MustRegister(trailingUpdates)
	prometheus.MustRegister(tradesGraded)
	prometheus.MustRegister(tierWinRate)
	prometheus.MustRegister(rejectedDecisions)
	prometheus.MustRegister(positionNotional)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(exposure)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordPositionOpened records an opened position
func RecordPositionOpened(symbol, side, confidence string, notional float64) {
	positionsOpened.WithLabelValues(symbol, side, confidence).Inc()
	positionNotional.WithLabelValues(symbol).Observe(notional)
}

// RecordPositionClosed records a closed, graded position
func RecordPositionClosed(symbol, exitType, grade string) {
	positionsClosed.WithLabelValues(symbol, exitType, grade).Inc()
}

// RecordTradeGraded records a graded trade outcome
func RecordTradeGraded(confidence, grade string) {
	tradesGraded.WithLabelValues(confidence, grade).Inc()
}

// UpdateTierWinRate updates the win-rate gauge for a confidence tier
func UpdateTierWinRate(confidence string, winRate float64) {
	tierWinRate.WithLabelValues(confidence).Set(winRate)
}

// RecordTrailingUpdate records a trailing-stop move
func RecordTrailingUpdate(symbol string) {
	trailingUpdates.WithLabelValues(symbol).Inc()
}

// RecordRejection records a decision rejected before opening
func RecordRejection(symbol, reason string) {
	rejectedDecisions.WithLabelValues(symbol, reason).Inc()
}

// UpdatePrice updates the last observed price
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdateExposure updates the open-exposure gauge
func UpdateExposure(value float64) {
	exposure.Set(value)
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
