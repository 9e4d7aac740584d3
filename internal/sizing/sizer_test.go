package sizing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trunghm/trade-guardian/internal/account"
	"github.com/trunghm/trade-guardian/internal/decision"
	gerrors "github.com/trunghm/trade-guardian/internal/errors"
)

func testDecision(confidence decision.Confidence, price float64) *decision.Decision {
	return &decision.Decision{
		Symbol:       "BTCUSDT",
		Side:         decision.SideLong,
		Confidence:   confidence,
		CurrentPrice: price,
	}
}

func testSnapshot(equity float64, leverage int, ratio, used float64) account.Snapshot {
	return account.Snapshot{
		Equity:               equity,
		Leverage:             leverage,
		MaxPositionRatio:     ratio,
		CurrentPositionValue: used,
	}
}

// $10k equity, ratio 0.5, leverage 5x, HIGH tier at $50k:
// capacity $25,000, target $20,000, quantity 0.4
func TestSizeHighConfidence(t *testing.T) {
	sizer, err := NewSizer(DefaultConfig())
	assert.NoError(t, err)

	result, err := sizer.Size(
		testSnapshot(10000, 5, 0.5, 0),
		testDecision(decision.ConfidenceHigh, 50000),
		Constraints{MinNotional: 100, QtyStep: 0.001},
	)

	assert.NoError(t, err)
	assert.Equal(t, 25000.0, result.CapacityUSD)
	assert.Equal(t, 20000.0, result.TargetUSD)
	assert.InDelta(t, 0.4, result.Quantity, 1e-9)
	assert.InDelta(t, 20000.0, result.Notional, 1e-6)
}

func TestSizeClampedToCapacity(t *testing.T) {
	sizer, _ := NewSizer(DefaultConfig())

	// $22k of the $25k ceiling already used; HIGH would want $20k but only
	// $3k remains. Accumulation never exceeds the ceiling.
	result, err := sizer.Size(
		testSnapshot(10000, 5, 0.5, 22000),
		testDecision(decision.ConfidenceHigh, 50000),
		Constraints{MinNotional: 100, QtyStep: 0.001},
	)

	assert.NoError(t, err)
	assert.Equal(t, 3000.0, result.TargetUSD)
	assert.LessOrEqual(t, result.Notional, result.CapacityUSD)
}

func TestSizeInsufficientCapacity(t *testing.T) {
	sizer, _ := NewSizer(DefaultConfig())

	_, err := sizer.Size(
		testSnapshot(10000, 5, 0.5, 25000),
		testDecision(decision.ConfidenceHigh, 50000),
		Constraints{MinNotional: 100, QtyStep: 0.001},
	)

	assert.True(t, errors.Is(err, gerrors.ErrInsufficientCapacity))
	assert.True(t, gerrors.IsRejection(err))
}

func TestSizeBelowMinNotional(t *testing.T) {
	sizer, _ := NewSizer(DefaultConfig())

	_, err := sizer.Size(
		testSnapshot(100, 1, 0.1, 0), // ceiling $10, LOW target $3
		testDecision(decision.ConfidenceLow, 50000),
		Constraints{MinNotional: 100, QtyStep: 0.001},
	)

	assert.True(t, errors.Is(err, gerrors.ErrBelowMinNotional))
	assert.True(t, gerrors.IsRejection(err))
}

func TestSizeQuantityFlooredToStep(t *testing.T) {
	sizer, _ := NewSizer(DefaultConfig())

	result, err := sizer.Size(
		testSnapshot(10000, 5, 0.5, 0),
		testDecision(decision.ConfidenceMedium, 30000), // $12,500 -> 0.41666...
		Constraints{MinNotional: 100, QtyStep: 0.01},
	)

	assert.NoError(t, err)
	assert.InDelta(t, 0.41, result.Quantity, 1e-9)
	assert.LessOrEqual(t, result.Notional, result.CapacityUSD)
}

func TestSizeBelowMinOrderQty(t *testing.T) {
	sizer, _ := NewSizer(DefaultConfig())

	_, err := sizer.Size(
		testSnapshot(1000, 1, 0.5, 0), // HIGH target $400 -> 0.008 BTC
		testDecision(decision.ConfidenceHigh, 50000),
		Constraints{MinNotional: 100, MinOrderQty: 0.01, QtyStep: 0.001},
	)

	assert.True(t, errors.Is(err, gerrors.ErrBelowMinNotional))
}

// Allocation is monotonically non-decreasing in confidence tier for
// identical capacity and price.
func TestSizeMonotonicInConfidence(t *testing.T) {
	sizer, _ := NewSizer(DefaultConfig())
	snap := testSnapshot(10000, 5, 0.5, 0)
	cons := Constraints{MinNotional: 100, QtyStep: 0.001}

	prices := []float64{100, 2500, 50000}
	for _, price := range prices {
		high, err := sizer.Size(snap, testDecision(decision.ConfidenceHigh, price), cons)
		assert.NoError(t, err)
		medium, err := sizer.Size(snap, testDecision(decision.ConfidenceMedium, price), cons)
		assert.NoError(t, err)
		low, err := sizer.Size(snap, testDecision(decision.ConfidenceLow, price), cons)
		assert.NoError(t, err)

		assert.GreaterOrEqual(t, high.Quantity, medium.Quantity, "price %.2f", price)
		assert.GreaterOrEqual(t, medium.Quantity, low.Quantity, "price %.2f", price)
	}
}

// Sizer output never exceeds remaining account capacity.
func TestSizeNeverExceedsCapacity(t *testing.T) {
	sizer, _ := NewSizer(DefaultConfig())

	cases := []struct {
		used  float64
		price float64
		tier  decision.Confidence
	}{
		{0, 50000, decision.ConfidenceHigh},
		{5000, 123.45, decision.ConfidenceHigh},
		{12000, 1.2345, decision.ConfidenceMedium},
		{20000, 67890, decision.ConfidenceLow},
	}

	for _, tc := range cases {
		snap := testSnapshot(10000, 5, 0.5, tc.used)
		result, err := sizer.Size(snap, testDecision(tc.tier, tc.price), Constraints{MinNotional: 10, QtyStep: 0.0001})
		if err != nil {
			continue // rejection is fine, over-allocation is not
		}
		assert.LessOrEqual(t, result.Notional, snap.Capacity()+1e-6,
			"used=%.0f price=%.4f tier=%s", tc.used, tc.price, tc.tier)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		shouldErr bool
	}{
		{"default config", DefaultConfig(), false},
		{"zero multiplier", Config{HighMultiplier: 0.8, MediumMultiplier: 0, LowMultiplier: 0.3}, true},
		{"above one", Config{HighMultiplier: 1.5, MediumMultiplier: 0.5, LowMultiplier: 0.3}, true},
		{"non-monotonic", Config{HighMultiplier: 0.3, MediumMultiplier: 0.5, LowMultiplier: 0.8}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSizer(tt.config)
			if (err != nil) != tt.shouldErr {
				t.Errorf("NewSizer() error = %v, shouldErr %v", err, tt.shouldErr)
			}
		})
	}
}
