package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trunghm/trade-guardian/internal/decision"
	"github.com/trunghm/trade-guardian/internal/grading"
	"github.com/trunghm/trade-guardian/internal/performance"
	"github.com/trunghm/trade-guardian/internal/position"
)

func floatPtr(v float64) *float64 { return &v }

func testEntry(id string, confidence decision.Confidence, grade grading.Grade, actualRR *float64, winner bool) Entry {
	entryTime := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	exitTime := entryTime.Add(90 * time.Minute)
	pnl := -0.012
	if winner {
		pnl = 0.02
	}
	return Entry{
		RecordID:          id,
		Symbol:            "BTCUSDT",
		Side:              decision.SideLong,
		Confidence:        confidence,
		Quantity:          0.4,
		EntryPrice:        50000,
		EntryTime:         entryTime,
		PlannedStopLoss:   49000,
		PlannedTakeProfit: 51500,
		ExitPrice:         50000 * (1 + pnl),
		ExitTime:          exitTime,
		ExitType:          position.ExitTakeProfit,
		PeakPnLPct:        0.021,
		WorstPnLPct:       -0.002,
		RealizedPnLPct:    pnl,
		Grade:             grade,
		PlannedRR:         floatPtr(1.5),
		ActualRR:          actualRR,
		HoldMinutes:       90,
	}
}

func TestFileStoreAppendAndReadAll(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal", "trades.jsonl")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	first := testEntry("rec-1", decision.ConfidenceHigh, grading.GradeA, floatPtr(2.0), true)
	second := testEntry("rec-2", decision.ConfidenceMedium, grading.GradeF, nil, false)

	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))
	require.NoError(t, store.Close())

	// Reopen the way a restarted process would
	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "rec-1", entries[0].RecordID)
	assert.Equal(t, grading.GradeA, entries[0].Grade)
	assert.Equal(t, decision.SideLong, entries[0].Side)
	require.NotNil(t, entries[0].ActualRR)
	assert.InDelta(t, 2.0, *entries[0].ActualRR, 1e-9)

	assert.Equal(t, "rec-2", entries[1].RecordID)
	assert.Nil(t, entries[1].ActualRR)
	assert.Equal(t, 90.0, entries[1].HoldMinutes)
}

func TestFileStoreReadAllEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.jsonl")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	defer store.Close()

	entries, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStoreAppendAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.jsonl")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	err = store.Append(context.Background(), testEntry("rec-1", decision.ConfidenceLow, grading.GradeC, nil, true))
	assert.Error(t, err)
}

func TestEntryResultRoundTrip(t *testing.T) {
	entry := testEntry("rec-9", decision.ConfidenceHigh, grading.GradeAPlus, floatPtr(2.7), true)

	result := entry.Result()
	assert.Equal(t, "rec-9", result.RecordID)
	assert.Equal(t, grading.GradeAPlus, result.Grade)
	assert.Equal(t, decision.ConfidenceHigh, result.Confidence)
	assert.True(t, result.DirectionCorrect)
	assert.Equal(t, 90*time.Minute, result.HoldDuration)
	require.NotNil(t, result.ActualRR)
	assert.InDelta(t, 2.7, *result.ActualRR, 1e-9)
}

func TestReplayRebuildsTierStats(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trades.jsonl")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(ctx, testEntry("rec-1", decision.ConfidenceHigh, grading.GradeA, floatPtr(2.0), true)))
	require.NoError(t, store.Append(ctx, testEntry("rec-2", decision.ConfidenceHigh, grading.GradeF, floatPtr(-1.2), false)))
	require.NoError(t, store.Append(ctx, testEntry("rec-3", decision.ConfidenceLow, grading.GradeB, floatPtr(1.1), true)))

	agg := performance.NewAggregator()
	count, err := Replay(ctx, store, agg)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	high := agg.Tier(decision.ConfidenceHigh)
	assert.Equal(t, 2, high.TradeCount)
	assert.Equal(t, 1, high.WinCount)
	assert.InDelta(t, 0.5, high.WinRate(), 1e-9)
	assert.InDelta(t, 0.4, high.AvgRR(), 1e-9)
	assert.Equal(t, 1, high.GradeCounts[grading.GradeA])
	assert.Equal(t, 1, high.GradeCounts[grading.GradeF])

	low := agg.Tier(decision.ConfidenceLow)
	assert.Equal(t, 1, low.TradeCount)
	assert.Equal(t, 1, low.GradeCounts[grading.GradeB])

	medium := agg.Tier(decision.ConfidenceMedium)
	assert.Equal(t, 0, medium.TradeCount)
}
