package performance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trunghm/trade-guardian/internal/decision"
	"github.com/trunghm/trade-guardian/internal/grading"
)

func gradedResult(tier decision.Confidence, grade grading.Grade, rr float64, win bool, hold time.Duration) *grading.Result {
	return &grading.Result{
		RecordID:         "test",
		Symbol:           "BTCUSDT",
		Side:             decision.SideLong,
		Confidence:       tier,
		Grade:            grade,
		ActualRR:         &rr,
		DirectionCorrect: win,
		HoldDuration:     hold,
	}
}

func TestApplyIsPure(t *testing.T) {
	initial := TierStats{}
	next := initial.Apply(gradedResult(decision.ConfidenceHigh, grading.GradeA, 1.8, true, 30*time.Minute))

	assert.Equal(t, 0, initial.TradeCount, "fold must not edit the input")
	assert.Equal(t, 1, next.TradeCount)
	assert.Equal(t, 1, next.WinCount)
	assert.InDelta(t, 1.8, next.SumActualRR, 1e-9)
	assert.InDelta(t, 30.0, next.SumHoldMinutes, 1e-9)
	assert.Equal(t, 1, next.GradeCounts[grading.GradeA])
}

func TestDerivedRatios(t *testing.T) {
	stats := TierStats{}
	stats = stats.Apply(gradedResult(decision.ConfidenceHigh, grading.GradeA, 2.0, true, time.Hour))
	stats = stats.Apply(gradedResult(decision.ConfidenceHigh, grading.GradeD, -1.0, false, 30*time.Minute))
	stats = stats.Apply(gradedResult(decision.ConfidenceHigh, grading.GradeB, 1.1, true, 90*time.Minute))

	assert.Equal(t, 3, stats.TradeCount)
	assert.Equal(t, 2, stats.WinCount)
	assert.InDelta(t, 2.0/3.0, stats.WinRate(), 1e-9)
	assert.InDelta(t, 2.1/3.0, stats.AvgRR(), 1e-9)
	assert.InDelta(t, 60.0, stats.AvgHoldMinutes(), 1e-9)
}

func TestUndefinedRRContributesNothing(t *testing.T) {
	result := gradedResult(decision.ConfidenceLow, grading.GradeC, 0, true, time.Minute)
	result.ActualRR = nil

	stats := TierStats{}.Apply(result)
	assert.Equal(t, 1, stats.TradeCount)
	assert.Equal(t, 0.0, stats.SumActualRR)
}

func TestAggregatorKeepsTiersSeparate(t *testing.T) {
	agg := NewAggregator()
	agg.Update(gradedResult(decision.ConfidenceHigh, grading.GradeA, 2.0, true, time.Hour))
	agg.Update(gradedResult(decision.ConfidenceLow, grading.GradeF, -2.0, false, time.Minute))

	assert.Equal(t, 1, agg.Tier(decision.ConfidenceHigh).TradeCount)
	assert.Equal(t, 1, agg.Tier(decision.ConfidenceLow).TradeCount)
	assert.Equal(t, 0, agg.Tier(decision.ConfidenceMedium).TradeCount)
	assert.Equal(t, 1.0, agg.Tier(decision.ConfidenceHigh).WinRate())
	assert.Equal(t, 0.0, agg.Tier(decision.ConfidenceLow).WinRate())
}

// Snapshots are point-in-time copies: later updates and caller mutation
// must not leak through.
func TestSnapshotIsolation(t *testing.T) {
	agg := NewAggregator()
	agg.Update(gradedResult(decision.ConfidenceHigh, grading.GradeA, 2.0, true, time.Hour))

	snap := agg.Snapshot()
	snap[decision.ConfidenceHigh].GradeCounts[grading.GradeA] = 99

	agg.Update(gradedResult(decision.ConfidenceHigh, grading.GradeB, 1.2, true, time.Hour))

	fresh := agg.Tier(decision.ConfidenceHigh)
	assert.Equal(t, 1, fresh.GradeCounts[grading.GradeA])
	assert.Equal(t, 2, fresh.TradeCount)
	assert.Equal(t, 1, snap[decision.ConfidenceHigh].TradeCount)
}
