package grading

import (
	"fmt"
	"math"
	"time"

	"github.com/trunghm/trade-guardian/internal/decision"
	gerrors "github.com/trunghm/trade-guardian/internal/errors"
	"github.com/trunghm/trade-guardian/internal/position"
)

// Grade is the discrete quality label assigned to a closed trade
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// Config holds the grading thresholds
type Config struct {
	// R/R cutoffs for winning trades.
	APlusRR float64
	ARR     float64
	BRR     float64

	// StopSlippageTolerance is how far past the planned risk a loss may
	// slip and still count as a controlled (D) loss. 0.2 = 20%.
	StopSlippageTolerance float64

	// ExecutionQualityCap caps actual/planned R/R so one outlier trade
	// cannot dominate averages.
	ExecutionQualityCap float64
}

// DefaultConfig returns the standard grading thresholds
func DefaultConfig() Config {
	return Config{
		APlusRR:               2.5,
		ARR:                   1.5,
		BRR:                   1.0,
		StopSlippageTolerance: 0.2,
		ExecutionQualityCap:   2.0,
	}
}

// Validate checks the thresholds are usable
func (c Config) Validate() error {
	if c.BRR <= 0 || c.ARR < c.BRR || c.APlusRR < c.ARR {
		return fmt.Errorf("rr cutoffs must be positive and non-decreasing (a+=%.2f a=%.2f b=%.2f)",
			c.APlusRR, c.ARR, c.BRR)
	}
	if c.StopSlippageTolerance < 0 {
		return fmt.Errorf("stop slippage tolerance must be non-negative, got %.4f", c.StopSlippageTolerance)
	}
	if c.ExecutionQualityCap <= 0 {
		return fmt.Errorf("execution quality cap must be positive, got %.4f", c.ExecutionQualityCap)
	}
	return nil
}

// Result is the graded outcome of a closed trade
type Result struct {
	RecordID   string              `json:"record_id"`
	Symbol     string              `json:"symbol"`
	Side       decision.Side       `json:"side"`
	Confidence decision.Confidence `json:"confidence"`
	ExitType   position.ExitType   `json:"exit_type"`

	Grade            Grade    `json:"grade"`
	RealizedPnLPct   float64  `json:"realized_pnl_pct"`
	DirectionCorrect bool     `json:"direction_correct"`
	PlannedRR        *float64 `json:"planned_rr,omitempty"`
	ActualRR         *float64 `json:"actual_rr,omitempty"`
	ExecutionQuality *float64 `json:"execution_quality,omitempty"`

	HoldDuration time.Duration `json:"hold_duration"`
	GradedAt     time.Time     `json:"graded_at"`
}

// Grader converts a closed trade record into a quality score. Grade is
// invoked exactly once per record, at the moment it transitions to CLOSED;
// a second invocation fails with ErrAlreadyGraded and must be surfaced,
// never swallowed.
type Grader struct {
	config Config
}

// NewGrader creates a grader with the given thresholds
func NewGrader(config Config) (*Grader, error) {
	if err := config.Validate(); err != nil {
		return nil, gerrors.NewConfigurationError("grader", "new", err.Error())
	}
	return &Grader{config: config}, nil
}

// Grade scores a closed record and writes the grade into it. The write
// happens once; the computed metrics are deterministic in the record's
// closing snapshot.
func (g *Grader) Grade(rec *position.Record) (*Result, error) {
	snap := rec.Snapshot()
	if snap.Status != position.StatusClosed {
		return nil, gerrors.NewInvariantError("grader", "grade",
			fmt.Errorf("record %s is %s, not CLOSED", snap.ID, snap.Status))
	}

	result := g.Score(snap)

	if err := rec.SetGrade(string(result.Grade)); err != nil {
		return nil, err
	}
	return result, nil
}

// Score computes the graded result for a closed-record snapshot without
// touching the record. Scoring the same snapshot twice yields identical
// output.
func (g *Grader) Score(snap position.Snapshot) *Result {
	plannedRisk := math.Abs(snap.EntryPrice - snap.PlannedStopLoss)
	plannedReward := math.Abs(snap.PlannedTakeProfit - snap.EntryPrice)

	// Signed move in the direction of the trade: positive = profit.
	favorableMove := (snap.ExitPrice - snap.EntryPrice) * snap.Side.Sign()
	realizedPnLPct := favorableMove / snap.EntryPrice

	result := &Result{
		RecordID:         snap.ID,
		Symbol:           snap.Symbol,
		Side:             snap.Side,
		Confidence:       snap.Confidence,
		ExitType:         snap.ExitType,
		RealizedPnLPct:   realizedPnLPct,
		DirectionCorrect: realizedPnLPct > 0,
		HoldDuration:     snap.HoldDuration(),
		GradedAt:         time.Now().UTC(),
	}

	if plannedRisk > 0 {
		plannedRR := plannedReward / plannedRisk
		actualRR := favorableMove / plannedRisk
		result.PlannedRR = &plannedRR
		result.ActualRR = &actualRR
		if plannedRR > 0 {
			quality := math.Min(actualRR/plannedRR, g.config.ExecutionQualityCap)
			result.ExecutionQuality = &quality
		}
	}

	result.Grade = g.decide(realizedPnLPct, result.ActualRR, plannedRisk, favorableMove)
	return result
}

// decide applies the grade decision table in a fixed order of checks
func (g *Grader) decide(realizedPnLPct float64, actualRR *float64, plannedRisk, favorableMove float64) Grade {
	if realizedPnLPct > 0 {
		if actualRR == nil {
			return GradeC
		}
		// The upper tiers require exceeding their cutoff: hitting a 1.5R
		// plan exactly is a B, beating it is an A.
		switch {
		case *actualRR > g.config.APlusRR:
			return GradeAPlus
		case *actualRR > g.config.ARR:
			return GradeA
		case *actualRR >= g.config.BRR:
			return GradeB
		default:
			return GradeC
		}
	}

	// Losing or breakeven trade: D when stop discipline was honored within
	// the slippage tolerance, F when there was no planned stop or the loss
	// blew through it.
	loss := -favorableMove
	if plannedRisk > 0 && loss <= plannedRisk*(1+g.config.StopSlippageTolerance) {
		return GradeD
	}
	return GradeF
}
