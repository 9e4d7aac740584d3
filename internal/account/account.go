package account

import (
	"fmt"
	"sync"
)

// State holds the account equity and capacity limits read by the position
// sizer. It is owned by the execution boundary: capacity is consumed or
// released only after confirmed fills, under a single-writer lock, so two
// decisions computed concurrently can never allocate against the same
// stale capacity snapshot.
type State struct {
	mu                   sync.Mutex
	equity               float64
	leverage             int
	maxPositionRatio     float64
	currentPositionValue float64
}

// Snapshot is a point-in-time, read-only copy of the account state
type Snapshot struct {
	Equity               float64 `json:"equity"`
	Leverage             int     `json:"leverage"`
	MaxPositionRatio     float64 `json:"max_position_ratio"`
	CurrentPositionValue float64 `json:"current_position_value"`
}

// Ceiling returns the maximum total position value the account may carry:
// equity x max_position_ratio x leverage
func (s Snapshot) Ceiling() float64 {
	return s.Equity * s.MaxPositionRatio * float64(s.Leverage)
}

// Capacity returns the remaining USD capacity for new allocations
func (s Snapshot) Capacity() float64 {
	return s.Ceiling() - s.CurrentPositionValue
}

// New creates an account state and validates its parameters
func New(equity float64, leverage int, maxPositionRatio float64) (*State, error) {
	if equity <= 0 {
		return nil, fmt.Errorf("equity must be positive, got %.2f", equity)
	}
	if leverage < 1 {
		return nil, fmt.Errorf("leverage must be at least 1, got %d", leverage)
	}
	if maxPositionRatio <= 0 || maxPositionRatio > 1 {
		return nil, fmt.Errorf("max position ratio must be in (0, 1], got %.4f", maxPositionRatio)
	}
	return &State{
		equity:           equity,
		leverage:         leverage,
		maxPositionRatio: maxPositionRatio,
	}, nil
}

// Snapshot returns a consistent copy of the current state
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Equity:               s.equity,
		Leverage:             s.leverage,
		MaxPositionRatio:     s.maxPositionRatio,
		CurrentPositionValue: s.currentPositionValue,
	}
}

// ApplyFill consumes capacity for a confirmed fill. The read and write
// happen under one lock acquisition so the capacity check cannot race
// with another fill.
func (s *State) ApplyFill(notional float64) error {
	if notional <= 0 {
		return fmt.Errorf("fill notional must be positive, got %.2f", notional)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ceiling := s.equity * s.maxPositionRatio * float64(s.leverage)
	if s.currentPositionValue+notional > ceiling {
		return fmt.Errorf("fill of $%.2f would exceed account ceiling $%.2f (current $%.2f)",
			notional, ceiling, s.currentPositionValue)
	}
	s.currentPositionValue += notional
	return nil
}

// ReleaseFill returns capacity when a position closes or shrinks
func (s *State) ReleaseFill(notional float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentPositionValue -= notional
	if s.currentPositionValue < 0 {
		s.currentPositionValue = 0
	}
}

// SetEquity updates the equity after settlement. Fails if the new equity
// would break the position-value invariant.
func (s *State) SetEquity(equity float64) error {
	if equity <= 0 {
		return fmt.Errorf("equity must be positive, got %.2f", equity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ceiling := equity * s.maxPositionRatio * float64(s.leverage)
	if s.currentPositionValue > ceiling {
		return fmt.Errorf("equity $%.2f would put current position value $%.2f above ceiling $%.2f",
			equity, s.currentPositionValue, ceiling)
	}
	s.equity = equity
	return nil
}
