package position

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trunghm/trade-guardian/internal/decision"
	gerrors "github.com/trunghm/trade-guardian/internal/errors"
)

func longParams() Params {
	return Params{
		Symbol:            "BTCUSDT",
		Side:              decision.SideLong,
		Confidence:        decision.ConfidenceHigh,
		Quantity:          0.4,
		PlannedStopLoss:   98,
		PlannedTakeProfit: 104,
	}
}

func TestNewRecordValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Params)
		shouldErr bool
	}{
		{"valid", func(p *Params) {}, false},
		{"no symbol", func(p *Params) { p.Symbol = "" }, true},
		{"bad side", func(p *Params) { p.Side = "SIDEWAYS" }, true},
		{"bad confidence", func(p *Params) { p.Confidence = "MAYBE" }, true},
		{"zero quantity", func(p *Params) { p.Quantity = 0 }, true},
		{"zero stop", func(p *Params) { p.PlannedStopLoss = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := longParams()
			tt.mutate(&p)
			_, err := NewRecord(p)
			if (err != nil) != tt.shouldErr {
				t.Errorf("NewRecord() error = %v, shouldErr %v", err, tt.shouldErr)
			}
		})
	}
}

func TestLifecycleTransitions(t *testing.T) {
	rec, err := NewRecord(longParams())
	assert.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status())
	assert.NotEmpty(t, rec.ID())

	// Cannot close or trail before open.
	assert.Error(t, rec.Close(101, time.Now(), ExitManual))
	assert.Error(t, rec.SetTrailingStop(99))

	assert.NoError(t, rec.MarkOpen(100, time.Now()))
	assert.Equal(t, StatusOpen, rec.Status())

	// Cannot open twice.
	assert.Error(t, rec.MarkOpen(100, time.Now()))

	assert.NoError(t, rec.Close(103, time.Now(), ExitTakeProfit))
	assert.Equal(t, StatusClosed, rec.Status())

	// Closed records are frozen.
	assert.Error(t, rec.Close(105, time.Now(), ExitManual))
	assert.Error(t, rec.SetTrailingStop(102))

	snap := rec.Snapshot()
	assert.Equal(t, 103.0, snap.ExitPrice)
	assert.Equal(t, ExitTakeProfit, snap.ExitType)
	assert.InDelta(t, 0.03, snap.RealizedPnLPct, 1e-9)
}

// A fill that lands outside the planned level ordering must not open.
func TestMarkOpenRejectsBadFill(t *testing.T) {
	rec, _ := NewRecord(longParams())
	assert.Error(t, rec.MarkOpen(97, time.Now())) // through the stop

	short, _ := NewRecord(Params{
		Symbol: "BTCUSDT", Side: decision.SideShort,
		Confidence: decision.ConfidenceLow, Quantity: 1,
		PlannedStopLoss: 102, PlannedTakeProfit: 99,
	})
	assert.Error(t, short.MarkOpen(103, time.Now()))
	assert.NoError(t, short.MarkOpen(100.5, time.Now()))
}

func TestObservePriceTracksExcursions(t *testing.T) {
	rec, _ := NewRecord(longParams())
	assert.NoError(t, rec.MarkOpen(100, time.Now()))

	rec.ObservePrice(102)
	rec.ObservePrice(99)
	rec.ObservePrice(101)

	snap := rec.Snapshot()
	assert.InDelta(t, 0.02, snap.PeakPnLPct, 1e-9)
	assert.InDelta(t, -0.01, snap.WorstPnLPct, 1e-9)
}

func TestUnrealizedPnLSignedBySide(t *testing.T) {
	short, _ := NewRecord(Params{
		Symbol: "ETHUSDT", Side: decision.SideShort,
		Confidence: decision.ConfidenceMedium, Quantity: 2,
		PlannedStopLoss: 210, PlannedTakeProfit: 190,
	})
	assert.NoError(t, short.MarkOpen(200, time.Now()))

	assert.InDelta(t, 0.05, short.UnrealizedPnLPct(190), 1e-9)
	assert.InDelta(t, -0.05, short.UnrealizedPnLPct(210), 1e-9)
}

func TestSetGradeOnce(t *testing.T) {
	rec, _ := NewRecord(longParams())
	assert.NoError(t, rec.MarkOpen(100, time.Now()))

	// Grading an open record is an ordering bug.
	assert.Error(t, rec.SetGrade("A"))

	assert.NoError(t, rec.Close(103, time.Now(), ExitTakeProfit))
	assert.NoError(t, rec.SetGrade("B"))

	err := rec.SetGrade("A")
	assert.True(t, errors.Is(err, gerrors.ErrAlreadyGraded))
	assert.Equal(t, "B", rec.Snapshot().Grade)
}

func TestHoldDuration(t *testing.T) {
	rec, _ := NewRecord(longParams())
	opened := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	closed := opened.Add(92 * time.Minute)

	assert.NoError(t, rec.MarkOpen(100, opened))
	assert.Equal(t, time.Duration(0), rec.Snapshot().HoldDuration())

	assert.NoError(t, rec.Close(101, closed, ExitManual))
	assert.Equal(t, 92*time.Minute, rec.Snapshot().HoldDuration())
}
