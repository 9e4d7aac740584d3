package guardian

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trunghm/trade-guardian/internal/account"
	"github.com/trunghm/trade-guardian/internal/decision"
	gerrors "github.com/trunghm/trade-guardian/internal/errors"
	"github.com/trunghm/trade-guardian/internal/exchange"
	"github.com/trunghm/trade-guardian/internal/grading"
	"github.com/trunghm/trade-guardian/internal/journal"
	"github.com/trunghm/trade-guardian/internal/monitoring"
	"github.com/trunghm/trade-guardian/internal/performance"
	"github.com/trunghm/trade-guardian/internal/planner"
	"github.com/trunghm/trade-guardian/internal/position"
	"github.com/trunghm/trade-guardian/internal/sizing"
	"github.com/trunghm/trade-guardian/internal/trailing"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []string
}

func (n *recordingNotifier) SendAlert(level, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, level+": "+message)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func newTestGuardian(t *testing.T, equity float64) (*Guardian, *recordingNotifier, journal.Store) {
	t.Helper()

	acct, err := account.New(equity, 1, 0.5)
	require.NoError(t, err)

	sizer, err := sizing.NewSizer(sizing.DefaultConfig())
	require.NoError(t, err)

	plnr, err := planner.NewPlanner(planner.DefaultConfig())
	require.NoError(t, err)

	trailer, err := trailing.NewController(trailing.DefaultConfig())
	require.NoError(t, err)

	grader, err := grading.NewGrader(grading.DefaultConfig())
	require.NoError(t, err)

	store, err := journal.NewFileStore(filepath.Join(t.TempDir(), "trades.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	notifier := &recordingNotifier{}

	g, err := New(Deps{
		Account:    acct,
		Sizer:      sizer,
		Planner:    plnr,
		Trailer:    trailer,
		Grader:     grader,
		Aggregator: performance.NewAggregator(),
		Store:      store,
		Notifier:   notifier,
		Health:     monitoring.NewHealthChecker(),
	})
	require.NoError(t, err)
	return g, notifier, store
}

func testDecision(price float64, support float64) *decision.Decision {
	return &decision.Decision{
		Symbol:       "BTCUSDT",
		Side:         decision.SideLong,
		Confidence:   decision.ConfidenceHigh,
		CurrentPrice: price,
		Support:      &support,
		Reason:       "breakout retest",
		Timestamp:    time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestGuardianFullLifecycle(t *testing.T) {
	ctx := context.Background()
	g, notifier, store := newTestGuardian(t, 50000)
	cons := sizing.Constraints{MinNotional: 10, MinOrderQty: 0.001, QtyStep: 0.001}

	// Decision: ceiling 25000, HIGH multiplier 0.8 -> 20000 USD at 50000
	req, err := g.HandleDecision(ctx, testDecision(50000, 49000), cons)
	require.NoError(t, err)
	assert.Equal(t, 0.4, req.Quantity)
	assert.InDelta(t, 48020.0, req.StopLoss, 1e-9)   // 49000 * 0.98
	assert.InDelta(t, 51500.0, req.TakeProfit, 1e-9) // 50000 * 1.03
	assert.Equal(t, 0, g.OpenCount())

	// Fill confirmation opens the record and reserves its notional
	openedAt := time.Date(2026, 3, 10, 9, 0, 5, 0, time.UTC)
	require.NoError(t, g.ConfirmFill(req.RecordID, 50000, openedAt))
	assert.Equal(t, 1, g.OpenCount())

	// A second identical decision now sees reduced capacity
	second, err := g.HandleDecision(ctx, testDecision(50000, 49000), cons)
	require.NoError(t, err)
	assert.InDelta(t, 5000.0, second.Notional, 1e-6) // 25000 ceiling - 20000 open

	// Price climbs past activation: trailing stop appears and ratchets
	tickAt := openedAt.Add(30 * time.Minute)
	updates := g.OnTick(exchange.Tick{Symbol: "BTCUSDT", Price: 51000, Timestamp: tickAt})
	require.Len(t, updates, 1)
	assert.True(t, updates[0].Activated)
	assert.InDelta(t, 50745.0, updates[0].StopPrice, 1e-9) // 51000 * 0.995

	updates = g.OnTick(exchange.Tick{Symbol: "BTCUSDT", Price: 51500, Timestamp: tickAt.Add(time.Minute)})
	require.Len(t, updates, 1)
	assert.False(t, updates[0].Activated)
	assert.InDelta(t, 51242.5, updates[0].StopPrice, 1e-9)

	// Ticks for other symbols do not touch this record
	assert.Empty(t, g.OnTick(exchange.Tick{Symbol: "ETHUSDT", Price: 3000, Timestamp: tickAt}))

	// Close at the trailing stop
	closedAt := openedAt.Add(2 * time.Hour)
	result, err := g.OnClose(ctx, req.RecordID, 51242.5, closedAt, position.ExitStopLoss)
	require.NoError(t, err)
	assert.Equal(t, 0, g.OpenCount())
	assert.True(t, result.DirectionCorrect)
	require.NotNil(t, result.ActualRR)
	assert.Greater(t, *result.ActualRR, 0.0)

	// Aggregator saw the trade
	stats := g.Stats()
	assert.Equal(t, 1, stats[decision.ConfidenceHigh].TradeCount)
	assert.Equal(t, 1, stats[decision.ConfidenceHigh].WinCount)
	assert.Equal(t, 1.0, stats[decision.ConfidenceHigh].WinRate())

	// Journal holds the close
	entries, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, req.RecordID, entries[0].RecordID)
	assert.Equal(t, result.Grade, entries[0].Grade)

	// Open + close alerts went out
	assert.GreaterOrEqual(t, notifier.count(), 2)

	// Capacity is fully released after the close
	third, err := g.HandleDecision(ctx, testDecision(50000, 49000), cons)
	require.NoError(t, err)
	assert.InDelta(t, 20000.0, third.Notional, 1e-6)
}

func TestGuardianRejectsWhenCapacityExhausted(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGuardian(t, 50000)
	cons := sizing.Constraints{MinNotional: 10, MinOrderQty: 0.001, QtyStep: 0.001}

	req, err := g.HandleDecision(ctx, testDecision(50000, 49000), cons)
	require.NoError(t, err)
	require.NoError(t, g.ConfirmFill(req.RecordID, 50000, time.Now()))

	second, err := g.HandleDecision(ctx, testDecision(50000, 49000), cons)
	require.NoError(t, err)
	require.NoError(t, g.ConfirmFill(second.RecordID, 50000, time.Now()))

	// Ceiling is consumed; the next decision is a rejection, not an error state
	_, err = g.HandleDecision(ctx, testDecision(50000, 49000), cons)
	require.Error(t, err)
	assert.ErrorIs(t, err, gerrors.ErrInsufficientCapacity)
	assert.True(t, gerrors.IsRejection(err))
	assert.Equal(t, 2, g.OpenCount())
}

func TestGuardianConfirmFillOutsideLevels(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGuardian(t, 50000)
	cons := sizing.Constraints{MinNotional: 10, MinOrderQty: 0.001, QtyStep: 0.001}

	req, err := g.HandleDecision(ctx, testDecision(50000, 49000), cons)
	require.NoError(t, err)

	// Fill gapped through the planned stop: the record must not open and
	// the reservation must be released
	err = g.ConfirmFill(req.RecordID, 48000, time.Now())
	require.Error(t, err)
	assert.Equal(t, 0, g.OpenCount())

	next, err := g.HandleDecision(ctx, testDecision(50000, 49000), cons)
	require.NoError(t, err)
	assert.InDelta(t, 20000.0, next.Notional, 1e-6)
}

func TestGuardianRejectPending(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGuardian(t, 50000)
	cons := sizing.Constraints{MinNotional: 10, MinOrderQty: 0.001, QtyStep: 0.001}

	req, err := g.HandleDecision(ctx, testDecision(50000, 49000), cons)
	require.NoError(t, err)

	g.RejectPending(req.RecordID, "order cancelled")

	err = g.ConfirmFill(req.RecordID, 50000, time.Now())
	assert.Error(t, err)
}

func TestGuardianCloseUnknownRecord(t *testing.T) {
	g, _, _ := newTestGuardian(t, 50000)

	_, err := g.OnClose(context.Background(), "no-such-id", 50000, time.Now(), position.ExitManual)
	assert.Error(t, err)
}

// A failing journal append never blocks the close, but it must show up in
// the health report.
func TestGuardianJournalFailureSurfacesInHealth(t *testing.T) {
	ctx := context.Background()
	g, _, store := newTestGuardian(t, 50000)
	cons := sizing.Constraints{MinNotional: 10, MinOrderQty: 0.001, QtyStep: 0.001}

	req, err := g.HandleDecision(ctx, testDecision(50000, 49000), cons)
	require.NoError(t, err)
	require.NoError(t, g.ConfirmFill(req.RecordID, 50000, time.Now()))

	// Journal backend goes away before the close
	require.NoError(t, store.Close())

	_, err = g.OnClose(ctx, req.RecordID, 51500, time.Now(), position.ExitTakeProfit)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	g.health.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "unhealthy")
	assert.Contains(t, rr.Body.String(), "journal append")
}

func TestGuardianOpenPositionsSnapshots(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGuardian(t, 50000)
	cons := sizing.Constraints{MinNotional: 10, MinOrderQty: 0.001, QtyStep: 0.001}

	req, err := g.HandleDecision(ctx, testDecision(50000, 49000), cons)
	require.NoError(t, err)
	require.NoError(t, g.ConfirmFill(req.RecordID, 50000, time.Now()))

	snaps := g.OpenPositions()
	require.Len(t, snaps, 1)
	assert.Equal(t, req.RecordID, snaps[0].ID)
	assert.Equal(t, position.StatusOpen, snaps[0].Status)
	assert.Equal(t, 0.4, snaps[0].Quantity)
}
