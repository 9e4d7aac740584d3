package position

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trunghm/trade-guardian/internal/decision"
	gerrors "github.com/trunghm/trade-guardian/internal/errors"
)

// Status represents the lifecycle state of a trade record
type Status string

const (
	StatusPending Status = "PENDING"
	StatusOpen    Status = "OPEN"
	StatusClosed  Status = "CLOSED"
)

// ExitType represents how a position was closed
type ExitType string

const (
	ExitTakeProfit ExitType = "TAKE_PROFIT"
	ExitStopLoss   ExitType = "STOP_LOSS"
	ExitManual     ExitType = "MANUAL"
	ExitReversal   ExitType = "REVERSAL"
)

// IsValid returns whether the exit type is a known value
func (e ExitType) IsValid() bool {
	switch e {
	case ExitTakeProfit, ExitStopLoss, ExitManual, ExitReversal:
		return true
	}
	return false
}

// Record is the shared trade record that every component of the risk core
// consumes or produces. All mutation goes through its methods under a
// single mutex: the trailing controller is the only writer of the trailing
// stop while OPEN, and the grader is the only writer of the grade after
// CLOSED. Closed records are immutable.
type Record struct {
	mu sync.Mutex

	id         string
	symbol     string
	side       decision.Side
	confidence decision.Confidence

	quantity   float64
	entryPrice float64
	entryTime  time.Time

	plannedStopLoss   float64
	plannedTakeProfit float64

	status       Status
	trailingStop *float64
	peakPnLPct   float64
	worstPnLPct  float64

	exitPrice      float64
	exitTime       time.Time
	exitType       ExitType
	realizedPnLPct float64

	grade string
}

// Snapshot is a plain, copyable view of a record used by the grader,
// journal and reporting layers.
type Snapshot struct {
	ID         string              `json:"id"`
	Symbol     string              `json:"symbol"`
	Side       decision.Side       `json:"side"`
	Confidence decision.Confidence `json:"confidence"`

	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`

	PlannedStopLoss   float64 `json:"planned_sl"`
	PlannedTakeProfit float64 `json:"planned_tp"`

	Status       Status   `json:"status"`
	TrailingStop *float64 `json:"trailing_stop,omitempty"`
	PeakPnLPct   float64  `json:"peak_pnl_pct"`
	WorstPnLPct  float64  `json:"worst_pnl_pct"`

	ExitPrice      float64   `json:"exit_price,omitempty"`
	ExitTime       time.Time `json:"exit_time,omitempty"`
	ExitType       ExitType  `json:"exit_type,omitempty"`
	RealizedPnLPct float64   `json:"realized_pnl_pct"`

	Grade string `json:"grade,omitempty"`
}

// Params carries everything needed to create a pending record
type Params struct {
	Symbol            string
	Side              decision.Side
	Confidence        decision.Confidence
	Quantity          float64
	PlannedStopLoss   float64
	PlannedTakeProfit float64
}

// NewRecord creates a PENDING record for an allocation that has been sized
// and planned but not yet filled
func NewRecord(p Params) (*Record, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("record has no symbol")
	}
	if !p.Side.IsValid() {
		return nil, fmt.Errorf("unknown side %q", p.Side)
	}
	if !p.Confidence.IsValid() {
		return nil, fmt.Errorf("unknown confidence %q", p.Confidence)
	}
	if p.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %.8f", p.Quantity)
	}
	if p.PlannedStopLoss <= 0 || p.PlannedTakeProfit <= 0 {
		return nil, fmt.Errorf("planned levels must be positive (sl=%.8f tp=%.8f)",
			p.PlannedStopLoss, p.PlannedTakeProfit)
	}

	return &Record{
		id:                uuid.NewString(),
		symbol:            p.Symbol,
		side:              p.Side,
		confidence:        p.Confidence,
		quantity:          p.Quantity,
		plannedStopLoss:   p.PlannedStopLoss,
		plannedTakeProfit: p.PlannedTakeProfit,
		status:            StatusPending,
	}, nil
}

// ID returns the record identity
func (r *Record) ID() string { return r.id }

// Symbol returns the instrument symbol
func (r *Record) Symbol() string { return r.symbol }

// Side returns the position direction
func (r *Record) Side() decision.Side { return r.side }

// Status returns the current lifecycle state
func (r *Record) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// MarkOpen transitions PENDING -> OPEN once the entry order is confirmed
// filled. The ordering invariant of the planned levels is checked against
// the actual fill price: a fill through the planned stop must not open.
func (r *Record) MarkOpen(entryPrice float64, entryTime time.Time) error {
	if entryPrice <= 0 {
		return fmt.Errorf("entry price must be positive, got %.8f", entryPrice)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusPending {
		return fmt.Errorf("cannot open record %s in status %s", r.id, r.status)
	}

	if r.side == decision.SideLong {
		if !(r.plannedStopLoss < entryPrice && entryPrice < r.plannedTakeProfit) {
			return fmt.Errorf("long fill %.8f outside planned levels (sl=%.8f tp=%.8f)",
				entryPrice, r.plannedStopLoss, r.plannedTakeProfit)
		}
	} else {
		if !(r.plannedTakeProfit < entryPrice && entryPrice < r.plannedStopLoss) {
			return fmt.Errorf("short fill %.8f outside planned levels (sl=%.8f tp=%.8f)",
				entryPrice, r.plannedStopLoss, r.plannedTakeProfit)
		}
	}

	r.entryPrice = entryPrice
	r.entryTime = entryTime
	r.status = StatusOpen
	return nil
}

// UnrealizedPnLPct returns the signed unrealized move at the given price,
// positive meaning profit for the record's side. Zero before the record
// opens.
func (r *Record) UnrealizedPnLPct(price float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unrealizedLocked(price)
}

func (r *Record) unrealizedLocked(price float64) float64 {
	if r.entryPrice <= 0 {
		return 0
	}
	return (price - r.entryPrice) / r.entryPrice * r.side.Sign()
}

// ObservePrice updates the peak and worst excursion while the record is
// OPEN and returns the current unrealized move
func (r *Record) ObservePrice(price float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	pnl := r.unrealizedLocked(price)
	if r.status != StatusOpen {
		return pnl
	}
	if pnl > r.peakPnLPct {
		r.peakPnLPct = pnl
	}
	if pnl < r.worstPnLPct {
		r.worstPnLPct = pnl
	}
	return pnl
}

// TrailingStop returns the active trailing stop, if any
func (r *Record) TrailingStop() (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trailingStop == nil {
		return 0, false
	}
	return *r.trailingStop, true
}

// SetTrailingStop replaces the trailing stop while the record is OPEN.
// The monotonicity of moves is the trailing controller's responsibility;
// the record only enforces lifecycle state.
func (r *Record) SetTrailingStop(price float64) error {
	if price <= 0 {
		return fmt.Errorf("trailing stop must be positive, got %.8f", price)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusOpen {
		return fmt.Errorf("cannot set trailing stop on record %s in status %s", r.id, r.status)
	}
	p := price
	r.trailingStop = &p
	return nil
}

// Close transitions OPEN -> CLOSED exactly once and freezes the closing
// fields. The realized PnL is signed by side so positive means profit.
func (r *Record) Close(exitPrice float64, exitTime time.Time, exitType ExitType) error {
	if exitPrice <= 0 {
		return fmt.Errorf("exit price must be positive, got %.8f", exitPrice)
	}
	if !exitType.IsValid() {
		return fmt.Errorf("unknown exit type %q", exitType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusOpen {
		return fmt.Errorf("cannot close record %s in status %s", r.id, r.status)
	}

	r.exitPrice = exitPrice
	r.exitTime = exitTime
	r.exitType = exitType
	r.realizedPnLPct = r.unrealizedLocked(exitPrice)
	r.status = StatusClosed
	return nil
}

// SetGrade writes the grade exactly once after the record is CLOSED.
// A second call fails with ErrAlreadyGraded.
func (r *Record) SetGrade(grade string) error {
	if grade == "" {
		return fmt.Errorf("grade must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusClosed {
		return fmt.Errorf("cannot grade record %s in status %s", r.id, r.status)
	}
	if r.grade != "" {
		return fmt.Errorf("record %s already graded %s: %w", r.id, r.grade, gerrors.ErrAlreadyGraded)
	}
	r.grade = grade
	return nil
}

// Snapshot returns a consistent copy of the record
func (r *Record) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		ID:                r.id,
		Symbol:            r.symbol,
		Side:              r.side,
		Confidence:        r.confidence,
		Quantity:          r.quantity,
		EntryPrice:        r.entryPrice,
		EntryTime:         r.entryTime,
		PlannedStopLoss:   r.plannedStopLoss,
		PlannedTakeProfit: r.plannedTakeProfit,
		Status:            r.status,
		PeakPnLPct:        r.peakPnLPct,
		WorstPnLPct:       r.worstPnLPct,
		ExitPrice:         r.exitPrice,
		ExitTime:          r.exitTime,
		ExitType:          r.exitType,
		RealizedPnLPct:    r.realizedPnLPct,
		Grade:             r.grade,
	}
	if r.trailingStop != nil {
		ts := *r.trailingStop
		snap.TrailingStop = &ts
	}
	return snap
}

// Notional returns the position value at the given price
func (s Snapshot) Notional(price float64) float64 {
	return s.Quantity * price
}

// HoldDuration returns how long the position was held. Zero until closed.
func (s Snapshot) HoldDuration() time.Duration {
	if s.Status != StatusClosed || s.EntryTime.IsZero() {
		return 0
	}
	return s.ExitTime.Sub(s.EntryTime)
}
