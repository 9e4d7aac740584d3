package performance

import (
	"sync"

	"github.com/trunghm/trade-guardian/internal/decision"
	"github.com/trunghm/trade-guardian/internal/grading"
)

// TierStats holds the rolling per-confidence-tier counters derived from
// graded trades. It is a value type: Apply returns a new value, nothing is
// edited in place.
type TierStats struct {
	TradeCount     int     `json:"trade_count"`
	WinCount       int     `json:"win_count"`
	SumActualRR    float64 `json:"sum_actual_rr"`
	SumHoldMinutes float64 `json:"sum_hold_minutes"`

	GradeCounts map[grading.Grade]int `json:"grade_counts,omitempty"`
}

// WinRate returns wins over total trades, zero when no trades were graded
func (s TierStats) WinRate() float64 {
	if s.TradeCount == 0 {
		return 0
	}
	return float64(s.WinCount) / float64(s.TradeCount)
}

// AvgRR returns the cumulative realized R/R over total trades. Trades
// with an undefined R/R (zero planned risk) contribute nothing to the sum.
func (s TierStats) AvgRR() float64 {
	if s.TradeCount == 0 {
		return 0
	}
	return s.SumActualRR / float64(s.TradeCount)
}

// AvgHoldMinutes returns the average holding time in minutes
func (s TierStats) AvgHoldMinutes() float64 {
	if s.TradeCount == 0 {
		return 0
	}
	return s.SumHoldMinutes / float64(s.TradeCount)
}

// Apply folds one graded result into the stats and returns the updated
// value. Pure and incremental: replaying a journal through Apply rebuilds
// the same stats.
func (s TierStats) Apply(result *grading.Result) TierStats {
	next := s
	next.GradeCounts = make(map[grading.Grade]int, len(s.GradeCounts)+1)
	for g, n := range s.GradeCounts {
		next.GradeCounts[g] = n
	}

	next.TradeCount++
	if result.DirectionCorrect {
		next.WinCount++
	}
	if result.ActualRR != nil {
		next.SumActualRR += *result.ActualRR
	}
	next.SumHoldMinutes += result.HoldDuration.Minutes()
	next.GradeCounts[result.Grade]++
	return next
}

// Aggregator maintains per-tier statistics over graded trades. Consumers
// read point-in-time snapshots; the aggregator never blocks on or mutates
// anything outside its own state.
type Aggregator struct {
	mu    sync.RWMutex
	tiers map[decision.Confidence]TierStats
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{
		tiers: make(map[decision.Confidence]TierStats),
	}
}

// Update folds one graded result into the tier it belongs to
func (a *Aggregator) Update(result *grading.Result) {
	if result == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tiers[result.Confidence] = a.tiers[result.Confidence].Apply(result)
}

// Tier returns a snapshot of one confidence tier's stats
func (a *Aggregator) Tier(confidence decision.Confidence) TierStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return copyStats(a.tiers[confidence])
}

// Snapshot returns a deep copy of all tier stats
func (a *Aggregator) Snapshot() map[decision.Confidence]TierStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[decision.Confidence]TierStats, len(a.tiers))
	for tier, stats := range a.tiers {
		out[tier] = copyStats(stats)
	}
	return out
}

func copyStats(s TierStats) TierStats {
	out := s
	if s.GradeCounts != nil {
		out.GradeCounts = make(map[grading.Grade]int, len(s.GradeCounts))
		for g, n := range s.GradeCounts {
			out.GradeCounts[g] = n
		}
	}
	return out
}
