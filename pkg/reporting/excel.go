package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/trunghm/trade-guardian/internal/decision"
	"github.com/trunghm/trade-guardian/internal/journal"
	"github.com/trunghm/trade-guardian/internal/performance"
)

// ExcelReporter exports the journal and tier stats to a workbook
type ExcelReporter struct{}

// NewExcelReporter creates a new Excel reporter
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

type excelStyles struct {
	header  int
	price   int
	percent int
}

// WriteJournalXLSX writes one sheet of journaled trades and one sheet of
// per-tier statistics
func (r *ExcelReporter) WriteJournalXLSX(entries []journal.Entry, stats map[decision.Confidence]performance.TierStats, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const tradesSheet = "Trades"
	const statsSheet = "Tier Stats"

	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	if _, err := fx.NewSheet(statsSheet); err != nil {
		return err
	}

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeTradesSheet(fx, tradesSheet, entries, styles); err != nil {
		return err
	}
	if err := r.writeStatsSheet(fx, statsSheet, stats, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) createStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	styles.header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.price, err = fx.NewStyle(&excelize.Style{
		NumFmt: 4, // #,##0.00
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.percent, err = fx.NewStyle(&excelize.Style{
		NumFmt: 10, // 0.00%
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	return styles, err
}

func (r *ExcelReporter) writeTradesSheet(fx *excelize.File, sheet string, entries []journal.Entry, styles excelStyles) error {
	headers := []string{
		"Record ID", "Symbol", "Side", "Confidence",
		"Quantity", "Entry Price", "Entry Time",
		"Planned SL", "Planned TP",
		"Exit Price", "Exit Time", "Exit Type",
		"Realized PnL %", "Planned R/R", "Actual R/R", "Execution Quality",
		"Hold (min)", "Grade",
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
	}

	lastCol, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A1", lastCol, styles.header); err != nil {
		return err
	}

	for i, e := range entries {
		row := i + 2
		values := []interface{}{
			e.RecordID, e.Symbol, string(e.Side), string(e.Confidence),
			e.Quantity, e.EntryPrice, e.EntryTime.Format("2006-01-02 15:04:05"),
			e.PlannedStopLoss, e.PlannedTakeProfit,
			e.ExitPrice, e.ExitTime.Format("2006-01-02 15:04:05"), string(e.ExitType),
			e.RealizedPnLPct, ptrOrEmpty(e.PlannedRR), ptrOrEmpty(e.ActualRR), ptrOrEmpty(e.ExecutionQuality),
			e.HoldMinutes, string(e.Grade),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := fx.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}

		pnlCell, err := excelize.CoordinatesToCellName(13, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, pnlCell, pnlCell, styles.percent); err != nil {
			return err
		}
	}

	return fx.SetColWidth(sheet, "A", "A", 38)
}

func (r *ExcelReporter) writeStatsSheet(fx *excelize.File, sheet string, stats map[decision.Confidence]performance.TierStats, styles excelStyles) error {
	headers := []string{"Tier", "Trades", "Wins", "Win Rate", "Avg R/R", "Avg Hold (min)"}
	for _, g := range gradeOrder {
		headers = append(headers, string(g))
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
	}

	lastCol, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A1", lastCol, styles.header); err != nil {
		return err
	}

	for i, tier := range decision.Tiers() {
		s := stats[tier]
		row := i + 2
		values := []interface{}{
			string(tier), s.TradeCount, s.WinCount, s.WinRate(), s.AvgRR(), s.AvgHoldMinutes(),
		}
		for _, g := range gradeOrder {
			values = append(values, s.GradeCounts[g])
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := fx.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}

		rateCell, err := excelize.CoordinatesToCellName(4, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, rateCell, rateCell, styles.percent); err != nil {
			return err
		}
	}

	return nil
}

func ptrOrEmpty(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
