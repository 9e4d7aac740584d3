package guardian

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trunghm/trade-guardian/internal/account"
	"github.com/trunghm/trade-guardian/internal/decision"
	gerrors "github.com/trunghm/trade-guardian/internal/errors"
	"github.com/trunghm/trade-guardian/internal/exchange"
	"github.com/trunghm/trade-guardian/internal/grading"
	"github.com/trunghm/trade-guardian/internal/journal"
	"github.com/trunghm/trade-guardian/internal/logger"
	"github.com/trunghm/trade-guardian/internal/monitoring"
	"github.com/trunghm/trade-guardian/internal/notifications"
	"github.com/trunghm/trade-guardian/internal/performance"
	"github.com/trunghm/trade-guardian/internal/planner"
	"github.com/trunghm/trade-guardian/internal/position"
	"github.com/trunghm/trade-guardian/internal/sizing"
	"github.com/trunghm/trade-guardian/internal/trailing"
)

// OpenRequest is the order the guardian wants placed for an accepted
// decision. The caller owns execution; the guardian hears back through
// ConfirmFill or RejectPending.
type OpenRequest struct {
	RecordID   string
	Symbol     string
	Side       decision.Side
	Quantity   float64
	Notional   float64
	StopLoss   float64
	TakeProfit float64
}

// Guardian coordinates the full lifecycle of protected trades: sizing and
// planning accepted decisions, trailing open positions on every tick, and
// grading, journaling and aggregating closes exactly once.
type Guardian struct {
	account    *account.State
	sizer      *sizing.Sizer
	planner    *planner.Planner
	trailer    *trailing.Controller
	grader     *grading.Grader
	aggregator *performance.Aggregator
	store      journal.Store
	logger     *logger.Logger
	notifier   notifications.Notifier
	health     *monitoring.HealthChecker

	mu       sync.RWMutex
	pending  map[string]*position.Record
	open     map[string]*position.Record
	notional map[string]float64 // record id -> reserved notional
}

// Deps carries the collaborators the guardian needs
type Deps struct {
	Account    *account.State
	Sizer      *sizing.Sizer
	Planner    *planner.Planner
	Trailer    *trailing.Controller
	Grader     *grading.Grader
	Aggregator *performance.Aggregator
	Store      journal.Store
	Logger     *logger.Logger
	Notifier   notifications.Notifier
	Health     *monitoring.HealthChecker
}

// New creates a guardian from its collaborators
func New(deps Deps) (*Guardian, error) {
	if deps.Account == nil || deps.Sizer == nil || deps.Planner == nil ||
		deps.Trailer == nil || deps.Grader == nil || deps.Aggregator == nil {
		return nil, fmt.Errorf("guardian requires account, sizer, planner, trailer, grader and aggregator")
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NopNotifier{}
	}

	return &Guardian{
		account:    deps.Account,
		sizer:      deps.Sizer,
		planner:    deps.Planner,
		trailer:    deps.Trailer,
		grader:     deps.Grader,
		aggregator: deps.Aggregator,
		store:      deps.Store,
		logger:     deps.Logger,
		notifier:   deps.Notifier,
		health:     deps.Health,
		pending:    make(map[string]*position.Record),
		open:       make(map[string]*position.Record),
		notional:   make(map[string]float64),
	}, nil
}

// HandleDecision sizes and plans an accepted decision, creating a PENDING
// record and the order request to execute it. A rejection (insufficient
// capacity, below minimum, broken level geometry with no fallback) returns
// an error satisfying errors.IsRejection and leaves no record behind.
func (g *Guardian) HandleDecision(ctx context.Context, dec *decision.Decision, cons sizing.Constraints) (*OpenRequest, error) {
	if dec == nil {
		return nil, gerrors.NewValidationError("guardian", "handle_decision", "nil decision")
	}
	if err := dec.Validate(); err != nil {
		g.reject(dec, "invalid_decision", err)
		return nil, err
	}

	sized, err := g.sizer.Size(g.account.Snapshot(), dec, cons)
	if err != nil {
		g.reject(dec, "sizing", err)
		return nil, err
	}

	plan, err := g.planner.Plan(dec, dec.CurrentPrice)
	if err != nil {
		g.reject(dec, "planning", err)
		return nil, err
	}

	rec, err := position.NewRecord(position.Params{
		Symbol:            dec.Symbol,
		Side:              dec.Side,
		Confidence:        dec.Confidence,
		Quantity:          sized.Quantity,
		PlannedStopLoss:   plan.StopLoss,
		PlannedTakeProfit: plan.TakeProfit,
	})
	if err != nil {
		return nil, gerrors.Wrap(err, gerrors.ErrorCategoryValidation, "guardian", "handle_decision")
	}

	g.mu.Lock()
	g.pending[rec.ID()] = rec
	g.mu.Unlock()

	if g.logger != nil {
		g.logger.Info("Decision accepted: %s %s %s qty=%.6f sl=%.4f tp=%.4f (technical level used: %t)",
			dec.Symbol, dec.Side, dec.Confidence, sized.Quantity, plan.StopLoss, plan.TakeProfit, plan.UsedTechnicalLevel)
	}

	return &OpenRequest{
		RecordID:   rec.ID(),
		Symbol:     dec.Symbol,
		Side:       dec.Side,
		Quantity:   sized.Quantity,
		Notional:   sized.Notional,
		StopLoss:   plan.StopLoss,
		TakeProfit: plan.TakeProfit,
	}, nil
}

// ConfirmFill transitions a pending record to OPEN at the actual fill
// price and reserves its notional against the account ceiling. The
// reservation happens first so a fill that would breach the ceiling never
// opens; a fill outside the planned levels releases the reservation and
// drops the record.
func (g *Guardian) ConfirmFill(recordID string, entryPrice float64, at time.Time) error {
	g.mu.Lock()
	rec, exists := g.pending[recordID]
	g.mu.Unlock()
	if !exists {
		return fmt.Errorf("no pending record %s", recordID)
	}

	snap := rec.Snapshot()
	fillNotional := snap.Quantity * entryPrice

	if err := g.account.ApplyFill(fillNotional); err != nil {
		g.dropPending(recordID)
		monitoring.RecordRejection(snap.Symbol, "account_ceiling")
		return fmt.Errorf("fill for %s rejected: %w", recordID, err)
	}

	if err := rec.MarkOpen(entryPrice, at); err != nil {
		g.account.ReleaseFill(fillNotional)
		g.dropPending(recordID)
		monitoring.RecordRejection(snap.Symbol, "fill_outside_levels")
		return fmt.Errorf("fill for %s rejected: %w", recordID, err)
	}

	g.mu.Lock()
	delete(g.pending, recordID)
	g.open[recordID] = rec
	g.notional[recordID] = fillNotional
	openExposure := g.exposureLocked()
	g.mu.Unlock()

	monitoring.RecordPositionOpened(snap.Symbol, string(snap.Side), string(snap.Confidence), fillNotional)
	monitoring.UpdateExposure(openExposure)

	if g.logger != nil {
		g.logger.LogPositionOpened(snap.Symbol, string(snap.Side), string(snap.Confidence),
			snap.Quantity, entryPrice, snap.PlannedStopLoss, snap.PlannedTakeProfit)
	}
	if err := g.notifier.SendAlert("success", notifications.FormatOpenAlert(
		snap.Symbol, string(snap.Side), string(snap.Confidence),
		snap.Quantity, entryPrice, snap.PlannedStopLoss, snap.PlannedTakeProfit)); err != nil && g.logger != nil {
		g.logger.LogError("Open notification", err)
	}
	return nil
}

// RejectPending drops a pending record whose entry order was cancelled or
// never filled
func (g *Guardian) RejectPending(recordID, reason string) {
	g.mu.Lock()
	rec, exists := g.pending[recordID]
	delete(g.pending, recordID)
	g.mu.Unlock()

	if exists && g.logger != nil {
		g.logger.Info("Pending record %s (%s) dropped: %s", recordID, rec.Symbol(), reason)
	}
}

// OnTick routes a price observation to every open record on the tick's
// symbol and returns the trailing-stop updates that resulted
func (g *Guardian) OnTick(tick exchange.Tick) []trailing.Update {
	monitoring.UpdatePrice(tick.Symbol, tick.Price)

	g.mu.RLock()
	records := make([]*position.Record, 0, len(g.open))
	for _, rec := range g.open {
		if rec.Symbol() == tick.Symbol {
			records = append(records, rec)
		}
	}
	g.mu.RUnlock()

	var updates []trailing.Update
	for _, rec := range records {
		update, err := g.trailer.OnTick(rec, tick.Price, tick.Timestamp)
		if err != nil {
			if g.logger != nil {
				g.logger.LogError("Trailing update", err)
			}
			monitoring.RecordError("trailing")
			if g.health != nil {
				g.health.RecordError(fmt.Sprintf("trailing %s: %v", rec.ID(), err))
			}
			continue
		}
		if update == nil {
			continue
		}

		updates = append(updates, *update)
		monitoring.RecordTrailingUpdate(update.Symbol)
		if g.logger != nil {
			g.logger.LogTrailingUpdate(update.Symbol, update.Activated, update.StopPrice)
		}
		if update.Activated {
			if err := g.notifier.SendAlert("info", notifications.FormatTrailingAlert(
				update.Symbol, true, update.StopPrice)); err != nil && g.logger != nil {
				g.logger.LogError("Trailing notification", err)
			}
		}
	}
	return updates
}

// OnClose applies an exit fill: the record closes, is graded exactly once,
// feeds the aggregator and the journal, releases its notional, and the
// close is announced. A grading failure on a closed record is fatal and is
// returned to the caller.
func (g *Guardian) OnClose(ctx context.Context, recordID string, exitPrice float64, at time.Time, exitType position.ExitType) (*grading.Result, error) {
	g.mu.Lock()
	rec, exists := g.open[recordID]
	reserved := g.notional[recordID]
	g.mu.Unlock()
	if !exists {
		return nil, fmt.Errorf("no open record %s", recordID)
	}

	if err := rec.Close(exitPrice, at, exitType); err != nil {
		return nil, fmt.Errorf("failed to close record %s: %w", recordID, err)
	}

	result, err := g.grader.Grade(rec)
	if err != nil {
		return nil, err
	}

	g.aggregator.Update(result)

	snap := rec.Snapshot()
	monitoring.RecordTradeGraded(string(snap.Confidence), string(result.Grade))
	if tier, ok := g.aggregator.Snapshot()[snap.Confidence]; ok {
		monitoring.UpdateTierWinRate(string(snap.Confidence), tier.WinRate())
	}

	g.mu.Lock()
	delete(g.open, recordID)
	delete(g.notional, recordID)
	openExposure := g.exposureLocked()
	g.mu.Unlock()

	g.account.ReleaseFill(reserved)
	monitoring.UpdateExposure(openExposure)
	monitoring.RecordPositionClosed(rec.Symbol(), string(exitType), string(result.Grade))

	if g.store != nil {
		if err := g.store.Append(ctx, journal.NewEntry(snap, result)); err != nil {
			if g.logger != nil {
				g.logger.LogError("Journal append", err)
			}
			monitoring.RecordError("journal")
			if g.health != nil {
				g.health.RecordError(fmt.Sprintf("journal append %s: %v", recordID, err))
			}
		}
	}

	if g.logger != nil {
		g.logger.LogTradeClosed(snap.Symbol, string(snap.Side), string(exitType), string(result.Grade),
			exitPrice, result.RealizedPnLPct)
	}

	level := "success"
	if result.RealizedPnLPct < 0 {
		level = "warning"
	}
	if err := g.notifier.SendAlert(level, notifications.FormatCloseAlert(
		snap.Symbol, string(snap.Side), string(exitType), string(result.Grade),
		exitPrice, result.RealizedPnLPct)); err != nil && g.logger != nil {
		g.logger.LogError("Close notification", err)
	}

	return result, nil
}

// OpenPositions returns snapshots of every open record
func (g *Guardian) OpenPositions() []position.Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snaps := make([]position.Snapshot, 0, len(g.open))
	for _, rec := range g.open {
		snaps = append(snaps, rec.Snapshot())
	}
	return snaps
}

// OpenCount returns the number of open records
func (g *Guardian) OpenCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.open)
}

// Stats returns the per-tier performance snapshot
func (g *Guardian) Stats() map[decision.Confidence]performance.TierStats {
	return g.aggregator.Snapshot()
}

func (g *Guardian) reject(dec *decision.Decision, reason string, err error) {
	monitoring.RecordRejection(dec.Symbol, reason)
	if g.logger != nil {
		g.logger.Warning("Decision rejected (%s %s): %v", dec.Symbol, reason, err)
	}
}

func (g *Guardian) dropPending(recordID string) {
	g.mu.Lock()
	delete(g.pending, recordID)
	g.mu.Unlock()
}

// exposureLocked sums reserved notionals; callers hold g.mu
func (g *Guardian) exposureLocked() float64 {
	total := 0.0
	for _, n := range g.notional {
		total += n
	}
	return total
}
