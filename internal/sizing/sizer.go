package sizing

import (
	"fmt"
	"math"

	"github.com/trunghm/trade-guardian/internal/account"
	"github.com/trunghm/trade-guardian/internal/decision"
	gerrors "github.com/trunghm/trade-guardian/internal/errors"
)

// Config holds the per-tier allocation multipliers. The multiplier scales
// the intended allocation against the account ceiling; the result is always
// clamped to remaining capacity so adding to an existing position never
// exceeds the account limit.
type Config struct {
	HighMultiplier   float64
	MediumMultiplier float64
	LowMultiplier    float64
}

// DefaultConfig returns the standard tier multipliers
func DefaultConfig() Config {
	return Config{
		HighMultiplier:   0.8,
		MediumMultiplier: 0.5,
		LowMultiplier:    0.3,
	}
}

// Validate checks the multipliers are usable and monotonic in tier strength
func (c Config) Validate() error {
	for name, m := range map[string]float64{
		"high":   c.HighMultiplier,
		"medium": c.MediumMultiplier,
		"low":    c.LowMultiplier,
	} {
		if m <= 0 || m > 1 {
			return fmt.Errorf("%s multiplier must be in (0, 1], got %.4f", name, m)
		}
	}
	if c.HighMultiplier < c.MediumMultiplier || c.MediumMultiplier < c.LowMultiplier {
		return fmt.Errorf("multipliers must be non-decreasing in tier strength (high=%.2f medium=%.2f low=%.2f)",
			c.HighMultiplier, c.MediumMultiplier, c.LowMultiplier)
	}
	return nil
}

// Constraints carries the exchange-imposed instrument limits, supplied
// externally (see exchange.InstrumentSource).
type Constraints struct {
	MinNotional float64 // minimum order value in USD
	MinOrderQty float64 // minimum tradable quantity
	QtyStep     float64 // minimum tradable increment
}

// Result is the computed capital allocation for a decision
type Result struct {
	Quantity    float64 // instrument quantity, floored to QtyStep
	Notional    float64 // Quantity x CurrentPrice
	TargetUSD   float64 // intended allocation before quantity rounding
	CapacityUSD float64 // remaining account capacity at sizing time
	Multiplier  float64 // tier multiplier that was applied
}

// Sizer converts a directional decision plus a confidence tier into a
// capital allocation. Size is a pure function: the caller updates the
// account state only after the order is actually filled.
type Sizer struct {
	config Config
}

// NewSizer creates a sizer with the given tier multipliers
func NewSizer(config Config) (*Sizer, error) {
	if err := config.Validate(); err != nil {
		return nil, gerrors.NewConfigurationError("sizer", "new", err.Error())
	}
	return &Sizer{config: config}, nil
}

// Multiplier returns the allocation multiplier for a confidence tier
func (s *Sizer) Multiplier(confidence decision.Confidence) (float64, error) {
	switch confidence {
	case decision.ConfidenceHigh:
		return s.config.HighMultiplier, nil
	case decision.ConfidenceMedium:
		return s.config.MediumMultiplier, nil
	case decision.ConfidenceLow:
		return s.config.LowMultiplier, nil
	default:
		return 0, gerrors.NewValidationError("sizer", "multiplier",
			fmt.Sprintf("unknown confidence tier %q", confidence))
	}
}

// Size computes the quantity to allocate for the decision against the given
// account snapshot. Returns ErrInsufficientCapacity when the account is
// full and ErrBelowMinNotional when the intended allocation is too small
// for the exchange; both mean "skip this decision".
func (s *Sizer) Size(acct account.Snapshot, dec *decision.Decision, cons Constraints) (*Result, error) {
	if err := dec.Validate(); err != nil {
		return nil, gerrors.Wrap(err, gerrors.ErrorCategoryValidation, "sizer", "size")
	}

	capacityUSD := acct.Capacity()
	if capacityUSD <= 0 {
		return nil, fmt.Errorf("sizing %s: capacity $%.2f: %w", dec.Symbol, capacityUSD, gerrors.ErrInsufficientCapacity)
	}

	multiplier, err := s.Multiplier(dec.Confidence)
	if err != nil {
		return nil, err
	}

	targetUSD := math.Min(capacityUSD, acct.Ceiling()*multiplier)
	if targetUSD < cons.MinNotional {
		return nil, fmt.Errorf("sizing %s: target $%.2f below minimum $%.2f: %w",
			dec.Symbol, targetUSD, cons.MinNotional, gerrors.ErrBelowMinNotional)
	}

	quantity := targetUSD / dec.CurrentPrice
	quantity = floorToStep(quantity, cons.QtyStep)

	if quantity <= 0 || (cons.MinOrderQty > 0 && quantity < cons.MinOrderQty) {
		return nil, fmt.Errorf("sizing %s: quantity %.8f below instrument minimum %.8f: %w",
			dec.Symbol, quantity, cons.MinOrderQty, gerrors.ErrBelowMinNotional)
	}

	return &Result{
		Quantity:    quantity,
		Notional:    quantity * dec.CurrentPrice,
		TargetUSD:   targetUSD,
		CapacityUSD: capacityUSD,
		Multiplier:  multiplier,
	}, nil
}

// floorToStep rounds a quantity down to the instrument's tradable increment.
// Rounding is always down: rounding up could push the notional past the
// remaining capacity.
func floorToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	steps := math.Floor(qty/step + 1e-9)
	return steps * step
}
