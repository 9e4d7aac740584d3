package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/trunghm/trade-guardian/internal/decision"
	"github.com/trunghm/trade-guardian/internal/grading"
	"github.com/trunghm/trade-guardian/internal/journal"
	"github.com/trunghm/trade-guardian/internal/performance"
	"github.com/trunghm/trade-guardian/internal/position"
)

// gradeOrder fixes the rendering order of grade columns
var gradeOrder = []grading.Grade{
	grading.GradeAPlus, grading.GradeA, grading.GradeB,
	grading.GradeC, grading.GradeD, grading.GradeF,
}

// ConsoleReporter renders guardian state as terminal tables
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a reporter writing to stdout
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stdout}
}

// NewConsoleReporterTo creates a reporter writing to the given writer
func NewConsoleReporterTo(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// PrintTierStats renders the per-confidence-tier performance table
func (r *ConsoleReporter) PrintTierStats(stats map[decision.Confidence]performance.TierStats) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("PERFORMANCE BY CONFIDENCE TIER")
	t.SetStyle(table.StyleRounded)

	header := table.Row{"Tier", "Trades", "Win Rate", "Avg R/R", "Avg Hold"}
	for _, g := range gradeOrder {
		header = append(header, string(g))
	}
	t.AppendHeader(header)

	for _, tier := range decision.Tiers() {
		s := stats[tier]
		row := table.Row{
			string(tier),
			s.TradeCount,
			fmt.Sprintf("%.1f%%", s.WinRate()*100),
			fmt.Sprintf("%.2f", s.AvgRR()),
			fmt.Sprintf("%.0f min", s.AvgHoldMinutes()),
		}
		for _, g := range gradeOrder {
			row = append(row, s.GradeCounts[g])
		}
		t.AppendRow(row)
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	t.Render()
	fmt.Fprintln(r.out)
}

// PrintTradeHistory renders the journaled trades, oldest first
func (r *ConsoleReporter) PrintTradeHistory(entries []journal.Entry) {
	sorted := make([]journal.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ExitTime.Before(sorted[j].ExitTime)
	})

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("TRADE HISTORY")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Closed", "Symbol", "Side", "Tier", "Entry", "Exit", "Exit Type", "PnL %", "Actual R/R", "Grade"})

	for _, e := range sorted {
		actualRR := "-"
		if e.ActualRR != nil {
			actualRR = fmt.Sprintf("%.2f", *e.ActualRR)
		}
		t.AppendRow(table.Row{
			e.ExitTime.Format("2006-01-02 15:04"),
			e.Symbol,
			string(e.Side),
			string(e.Confidence),
			fmt.Sprintf("%.4f", e.EntryPrice),
			fmt.Sprintf("%.4f", e.ExitPrice),
			string(e.ExitType),
			fmt.Sprintf("%+.2f%%", e.RealizedPnLPct*100),
			actualRR,
			string(e.Grade),
		})
	}

	t.Render()
	fmt.Fprintln(r.out)
}

// PrintOpenPositions renders the currently protected positions
func (r *ConsoleReporter) PrintOpenPositions(snaps []position.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("OPEN POSITIONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Side", "Tier", "Qty", "Entry", "Planned SL", "Planned TP", "Trailing Stop", "Peak PnL %"})

	for _, s := range snaps {
		trailingStop := "-"
		if s.TrailingStop != nil {
			trailingStop = fmt.Sprintf("%.4f", *s.TrailingStop)
		}
		t.AppendRow(table.Row{
			s.Symbol,
			string(s.Side),
			string(s.Confidence),
			fmt.Sprintf("%.6f", s.Quantity),
			fmt.Sprintf("%.4f", s.EntryPrice),
			fmt.Sprintf("%.4f", s.PlannedStopLoss),
			fmt.Sprintf("%.4f", s.PlannedTakeProfit),
			trailingStop,
			fmt.Sprintf("%+.2f%%", s.PeakPnLPct*100),
		})
	}

	t.Render()
	fmt.Fprintln(r.out)
}
