package journal

import (
	"context"
	"time"

	"github.com/trunghm/trade-guardian/internal/decision"
	"github.com/trunghm/trade-guardian/internal/grading"
	"github.com/trunghm/trade-guardian/internal/performance"
	"github.com/trunghm/trade-guardian/internal/position"
)

// Entry is one closed, graded trade in the append-only journal. It carries
// everything needed to rebuild the per-tier statistics by replay.
type Entry struct {
	RecordID   string              `json:"record_id"`
	Symbol     string              `json:"symbol"`
	Side       decision.Side       `json:"side"`
	Confidence decision.Confidence `json:"confidence"`

	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`

	PlannedStopLoss   float64 `json:"planned_sl"`
	PlannedTakeProfit float64 `json:"planned_tp"`

	ExitPrice float64           `json:"exit_price"`
	ExitTime  time.Time         `json:"exit_time"`
	ExitType  position.ExitType `json:"exit_type"`

	PeakPnLPct     float64 `json:"peak_pnl_pct"`
	WorstPnLPct    float64 `json:"worst_pnl_pct"`
	RealizedPnLPct float64 `json:"realized_pnl_pct"`

	Grade            grading.Grade `json:"grade"`
	PlannedRR        *float64      `json:"planned_rr,omitempty"`
	ActualRR         *float64      `json:"actual_rr,omitempty"`
	ExecutionQuality *float64      `json:"execution_quality,omitempty"`
	HoldMinutes      float64       `json:"hold_minutes"`
}

// NewEntry builds a journal entry from a closed-record snapshot and its
// graded result
func NewEntry(snap position.Snapshot, result *grading.Result) Entry {
	return Entry{
		RecordID:          snap.ID,
		Symbol:            snap.Symbol,
		Side:              snap.Side,
		Confidence:        snap.Confidence,
		Quantity:          snap.Quantity,
		EntryPrice:        snap.EntryPrice,
		EntryTime:         snap.EntryTime,
		PlannedStopLoss:   snap.PlannedStopLoss,
		PlannedTakeProfit: snap.PlannedTakeProfit,
		ExitPrice:         snap.ExitPrice,
		ExitTime:          snap.ExitTime,
		ExitType:          snap.ExitType,
		PeakPnLPct:        snap.PeakPnLPct,
		WorstPnLPct:       snap.WorstPnLPct,
		RealizedPnLPct:    result.RealizedPnLPct,
		Grade:             result.Grade,
		PlannedRR:         result.PlannedRR,
		ActualRR:          result.ActualRR,
		ExecutionQuality:  result.ExecutionQuality,
		HoldMinutes:       result.HoldDuration.Minutes(),
	}
}

// Result reconstructs the graded result a replay needs for aggregation
func (e Entry) Result() *grading.Result {
	return &grading.Result{
		RecordID:         e.RecordID,
		Symbol:           e.Symbol,
		Side:             e.Side,
		Confidence:       e.Confidence,
		ExitType:         e.ExitType,
		Grade:            e.Grade,
		RealizedPnLPct:   e.RealizedPnLPct,
		DirectionCorrect: e.RealizedPnLPct > 0,
		PlannedRR:        e.PlannedRR,
		ActualRR:         e.ActualRR,
		ExecutionQuality: e.ExecutionQuality,
		HoldDuration:     time.Duration(e.HoldMinutes * float64(time.Minute)),
	}
}

// Store is the append-only journal backend. Entries are written once at
// close time and never edited.
type Store interface {
	// Append writes one closed trade to the journal
	Append(ctx context.Context, entry Entry) error

	// ReadAll returns every journaled trade in append order
	ReadAll(ctx context.Context) ([]Entry, error)

	// Close releases the backend resources
	Close() error
}

// Replay rebuilds per-tier statistics from the journal by folding every
// entry through the aggregator
func Replay(ctx context.Context, store Store, agg *performance.Aggregator) (int, error) {
	entries, err := store.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		agg.Update(entry.Result())
	}
	return len(entries), nil
}
