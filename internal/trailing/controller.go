package trailing

import (
	"fmt"
	"time"

	"github.com/trunghm/trade-guardian/internal/decision"
	gerrors "github.com/trunghm/trade-guardian/internal/errors"
	"github.com/trunghm/trade-guardian/internal/position"
)

// Config holds the trailing-stop parameters
type Config struct {
	// ActivationPct is the unrealized profit at which trailing arms.
	ActivationPct float64

	// Distance is the gap kept between price and the trailing stop:
	// stop = price x (1 - Distance) for LONG, x (1 + Distance) for SHORT.
	Distance float64

	// UpdateThreshold is the minimum relative improvement over the current
	// stop required before the stop is actually moved. Hysteresis against
	// amending the resting order on every tick.
	UpdateThreshold float64
}

// DefaultConfig returns the standard trailing parameters
func DefaultConfig() Config {
	return Config{
		ActivationPct:   0.01,
		Distance:        0.005,
		UpdateThreshold: 0.002,
	}
}

// Validate checks the parameters are usable
func (c Config) Validate() error {
	if c.ActivationPct <= 0 || c.ActivationPct >= 1 {
		return fmt.Errorf("activation pct must be in (0, 1), got %.4f", c.ActivationPct)
	}
	if c.Distance <= 0 || c.Distance >= 1 {
		return fmt.Errorf("trailing distance must be in (0, 1), got %.4f", c.Distance)
	}
	if c.UpdateThreshold < 0 || c.UpdateThreshold >= 1 {
		return fmt.Errorf("update threshold must be in [0, 1), got %.4f", c.UpdateThreshold)
	}
	return nil
}

// Update is an accepted stop move. It is the authoritative new protective
// price; the order-management boundary amends the resting stop order, this
// component only computes the target.
type Update struct {
	RecordID  string
	Symbol    string
	StopPrice float64
	Activated bool // true on the INACTIVE -> ACTIVE transition
	Timestamp time.Time
}

// Controller ratchets the protective stop of open positions as profit
// accrues. Per record it is a two-state machine: INACTIVE (no trailing
// stop) until unrealized profit reaches the activation threshold, then
// ACTIVE, where the stop only ever moves in the protective direction.
type Controller struct {
	config Config
}

// NewController creates a controller with the given parameters
func NewController(config Config) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, gerrors.NewConfigurationError("trailing", "new", err.Error())
	}
	return &Controller{config: config}, nil
}

// OnTick processes one price update for an open record. It returns a
// non-nil Update when the resting stop order should be amended, nil when
// nothing changed. Ticks for records that are not OPEN are ignored.
func (c *Controller) OnTick(rec *position.Record, price float64, ts time.Time) (*Update, error) {
	if price <= 0 {
		return nil, gerrors.NewValidationError("trailing", "on_tick",
			fmt.Sprintf("price must be positive, got %.8f", price))
	}
	if rec.Status() != position.StatusOpen {
		return nil, nil
	}

	pnl := rec.ObservePrice(price)
	candidate := c.candidate(rec.Side(), price)

	current, active := rec.TrailingStop()
	if !active {
		if pnl < c.config.ActivationPct {
			return nil, nil
		}
		if err := rec.SetTrailingStop(candidate); err != nil {
			return nil, gerrors.Wrap(err, gerrors.ErrorCategoryPosition, "trailing", "activate")
		}
		return &Update{
			RecordID:  rec.ID(),
			Symbol:    rec.Symbol(),
			StopPrice: candidate,
			Activated: true,
			Timestamp: ts,
		}, nil
	}

	if !c.improvesEnough(rec.Side(), current, candidate) {
		return nil, nil
	}
	if err := rec.SetTrailingStop(candidate); err != nil {
		return nil, gerrors.Wrap(err, gerrors.ErrorCategoryPosition, "trailing", "ratchet")
	}
	return &Update{
		RecordID:  rec.ID(),
		Symbol:    rec.Symbol(),
		StopPrice: candidate,
		Timestamp: ts,
	}, nil
}

// candidate computes the stop price the current tick would imply
func (c *Controller) candidate(side decision.Side, price float64) float64 {
	return price * (1 - side.Sign()*c.config.Distance)
}

// improvesEnough reports whether the candidate is strictly more protective
// than the current stop AND the improvement clears the hysteresis
// threshold. The stop is never loosened.
func (c *Controller) improvesEnough(side decision.Side, current, candidate float64) bool {
	var improvement float64
	if side == decision.SideLong {
		improvement = candidate - current
	} else {
		improvement = current - candidate
	}
	if improvement <= 0 {
		return false
	}
	return improvement/current > c.config.UpdateThreshold
}
