package planner

import (
	"fmt"

	"github.com/trunghm/trade-guardian/internal/decision"
	gerrors "github.com/trunghm/trade-guardian/internal/errors"
)

// Config holds the stop/target derivation parameters
type Config struct {
	// BufferPct is applied below support (LONG) or above resistance (SHORT)
	// when a technical level exists, and to the entry price as the fallback
	// stop distance when it does not.
	BufferPct float64

	// Take-profit distance from entry per confidence tier.
	HighTPPct   float64
	MediumTPPct float64
	LowTPPct    float64
}

// DefaultConfig returns the standard planner parameters
func DefaultConfig() Config {
	return Config{
		BufferPct:   0.02,
		HighTPPct:   0.03,
		MediumTPPct: 0.02,
		LowTPPct:    0.01,
	}
}

// Validate checks the parameters are usable
func (c Config) Validate() error {
	if c.BufferPct <= 0 || c.BufferPct >= 1 {
		return fmt.Errorf("buffer pct must be in (0, 1), got %.4f", c.BufferPct)
	}
	for name, p := range map[string]float64{
		"high":   c.HighTPPct,
		"medium": c.MediumTPPct,
		"low":    c.LowTPPct,
	} {
		if p <= 0 || p >= 1 {
			return fmt.Errorf("%s tp pct must be in (0, 1), got %.4f", name, p)
		}
	}
	return nil
}

// Plan is the planned protective and target price pair
type Plan struct {
	StopLoss   float64
	TakeProfit float64

	// UsedTechnicalLevel records whether the stop came from a support or
	// resistance level rather than the percentage fallback.
	UsedTechnicalLevel bool
}

// Planner derives protective and target price levels for a decision
type Planner struct {
	config Config
}

// NewPlanner creates a planner with the given parameters
func NewPlanner(config Config) (*Planner, error) {
	if err := config.Validate(); err != nil {
		return nil, gerrors.NewConfigurationError("planner", "new", err.Error())
	}
	return &Planner{config: config}, nil
}

// TakeProfitPct returns the target distance for a confidence tier
func (p *Planner) TakeProfitPct(confidence decision.Confidence) (float64, error) {
	switch confidence {
	case decision.ConfidenceHigh:
		return p.config.HighTPPct, nil
	case decision.ConfidenceMedium:
		return p.config.MediumTPPct, nil
	case decision.ConfidenceLow:
		return p.config.LowTPPct, nil
	default:
		return 0, gerrors.NewValidationError("planner", "tp_pct",
			fmt.Sprintf("unknown confidence tier %q", confidence))
	}
}

// Plan derives the stop-loss and take-profit for a decision at the given
// entry price. A technical level on the protective side is preferred for
// the stop; if the level sits on the wrong side of entry the percentage
// fallback is used instead. ErrInvalidLevelGeometry is returned only when
// the fallback itself produces an inverted ordering, which cannot happen
// with a positive buffer and indicates broken configuration.
func (p *Planner) Plan(dec *decision.Decision, entryPrice float64) (*Plan, error) {
	if err := dec.Validate(); err != nil {
		return nil, gerrors.Wrap(err, gerrors.ErrorCategoryValidation, "planner", "plan")
	}
	if entryPrice <= 0 {
		return nil, gerrors.NewValidationError("planner", "plan",
			fmt.Sprintf("entry price must be positive, got %.8f", entryPrice))
	}

	tpPct, err := p.TakeProfitPct(dec.Confidence)
	if err != nil {
		return nil, err
	}

	tp := entryPrice * (1 + dec.Side.Sign()*tpPct)
	fallbackSL := entryPrice * (1 - dec.Side.Sign()*p.config.BufferPct)

	sl := fallbackSL
	usedLevel := false
	if level, ok := dec.ProtectiveLevel(); ok {
		sl = level * (1 - dec.Side.Sign()*p.config.BufferPct)
		usedLevel = true
	}

	if !validGeometry(dec.Side, sl, entryPrice, tp) {
		// Technical level on the wrong side of entry: discard it and
		// recompute from the percentage buffer.
		sl = fallbackSL
		usedLevel = false
		if !validGeometry(dec.Side, sl, entryPrice, tp) {
			return nil, fmt.Errorf("planning %s %s: sl=%.8f entry=%.8f tp=%.8f: %w",
				dec.Symbol, dec.Side, sl, entryPrice, tp, gerrors.ErrInvalidLevelGeometry)
		}
	}

	return &Plan{StopLoss: sl, TakeProfit: tp, UsedTechnicalLevel: usedLevel}, nil
}

// validGeometry checks the ordering invariant: sl < entry < tp for LONG,
// tp < entry < sl for SHORT.
func validGeometry(side decision.Side, sl, entry, tp float64) bool {
	if side == decision.SideShort {
		return tp < entry && entry < sl
	}
	return sl < entry && entry < tp
}
