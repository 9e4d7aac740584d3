package decision

import (
	"fmt"
	"time"
)

// Side represents the direction of a trading decision
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Sign returns +1 for LONG and -1 for SHORT, used to sign PnL math
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// IsValid returns whether the side is a known value
func (s Side) IsValid() bool {
	return s == SideLong || s == SideShort
}

// Confidence represents the ordinal signal-strength tier attached to a decision
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// IsValid returns whether the confidence tier is a known value
func (c Confidence) IsValid() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceLow
}

// Tiers lists all confidence tiers from strongest to weakest
func Tiers() []Confidence {
	return []Confidence{ConfidenceHigh, ConfidenceMedium, ConfidenceLow}
}

// Decision is a directional trading decision produced by the upstream
// decision process (LLM debate, indicator stack, whatever). It is immutable
// once produced; the risk core only reads it.
type Decision struct {
	Symbol       string     `json:"symbol"`
	Side         Side       `json:"side"`
	Confidence   Confidence `json:"confidence"`
	CurrentPrice float64    `json:"current_price"`

	// Optional technical levels. Nil when the upstream process did not
	// identify one.
	Support    *float64 `json:"support,omitempty"`
	Resistance *float64 `json:"resistance,omitempty"`

	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks that the decision carries everything the risk core needs
func (d *Decision) Validate() error {
	if d == nil {
		return fmt.Errorf("nil decision")
	}
	if d.Symbol == "" {
		return fmt.Errorf("decision has no symbol")
	}
	if !d.Side.IsValid() {
		return fmt.Errorf("unknown side %q", d.Side)
	}
	if !d.Confidence.IsValid() {
		return fmt.Errorf("unknown confidence %q", d.Confidence)
	}
	if d.CurrentPrice <= 0 {
		return fmt.Errorf("current price must be positive, got %.8f", d.CurrentPrice)
	}
	if d.Support != nil && *d.Support <= 0 {
		return fmt.Errorf("support level must be positive, got %.8f", *d.Support)
	}
	if d.Resistance != nil && *d.Resistance <= 0 {
		return fmt.Errorf("resistance level must be positive, got %.8f", *d.Resistance)
	}
	return nil
}

// ProtectiveLevel returns the technical level on the protective side of the
// decision: support for LONG, resistance for SHORT. The second return value
// is false when no such level was supplied.
func (d *Decision) ProtectiveLevel() (float64, bool) {
	switch d.Side {
	case SideLong:
		if d.Support != nil {
			return *d.Support, true
		}
	case SideShort:
		if d.Resistance != nil {
			return *d.Resistance, true
		}
	}
	return 0, false
}
