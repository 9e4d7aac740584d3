package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trunghm/trade-guardian/internal/decision"
	"github.com/trunghm/trade-guardian/internal/grading"
	"github.com/trunghm/trade-guardian/internal/position"
)

// PostgresStore persists journal entries in a single append-only table.
// It shares the same Store interface as the file backend so the guardian
// and the report tool do not care which one is configured.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// PoolConfig tunes the pgx connection pool
type PoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// DefaultPoolConfig returns conservative pool limits suitable for a
// single guardian process
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:          10,
		MinConns:          2,
		MaxConnLifetime:   30 * time.Minute,
		MaxConnIdleTime:   5 * time.Minute,
		HealthCheckPeriod: 30 * time.Second,
	}
}

// NewPostgresStore connects to databaseURL and ensures the journal table
// exists
func NewPostgresStore(ctx context.Context, databaseURL string, cfg PoolConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// ensureSchema creates the journal table if it does not exist. No external
// migration tool, the schema is one table and two indexes.
func (ps *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`create table if not exists trade_journal (
			record_id text primary key,
			symbol text not null,
			side text not null,
			confidence text not null,
			quantity double precision not null,
			entry_price double precision not null,
			entry_time timestamptz not null,
			planned_sl double precision not null,
			planned_tp double precision not null,
			exit_price double precision not null,
			exit_time timestamptz not null,
			exit_type text not null,
			peak_pnl_pct double precision not null,
			worst_pnl_pct double precision not null,
			realized_pnl_pct double precision not null,
			grade text not null,
			planned_rr double precision null,
			actual_rr double precision null,
			execution_quality double precision null,
			hold_minutes double precision not null
		);`,
		`create index if not exists trade_journal_symbol_exit_time_idx on trade_journal(symbol, exit_time desc);`,
		`create index if not exists trade_journal_confidence_idx on trade_journal(confidence);`,
	}

	for _, stmt := range stmts {
		if _, err := ps.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure journal schema: %w", err)
		}
	}
	return nil
}

// Append inserts one closed trade
func (ps *PostgresStore) Append(ctx context.Context, entry Entry) error {
	_, err := ps.pool.Exec(ctx, `
		insert into trade_journal(
			record_id, symbol, side, confidence,
			quantity, entry_price, entry_time,
			planned_sl, planned_tp,
			exit_price, exit_time, exit_type,
			peak_pnl_pct, worst_pnl_pct, realized_pnl_pct,
			grade, planned_rr, actual_rr, execution_quality, hold_minutes
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`,
		entry.RecordID,
		entry.Symbol,
		string(entry.Side),
		string(entry.Confidence),
		entry.Quantity,
		entry.EntryPrice,
		entry.EntryTime,
		entry.PlannedStopLoss,
		entry.PlannedTakeProfit,
		entry.ExitPrice,
		entry.ExitTime,
		string(entry.ExitType),
		entry.PeakPnLPct,
		entry.WorstPnLPct,
		entry.RealizedPnLPct,
		string(entry.Grade),
		entry.PlannedRR,
		entry.ActualRR,
		entry.ExecutionQuality,
		entry.HoldMinutes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// ReadAll returns every journaled trade ordered by exit time
func (ps *PostgresStore) ReadAll(ctx context.Context) ([]Entry, error) {
	rows, err := ps.pool.Query(ctx, `
		select record_id, symbol, side, confidence,
			quantity, entry_price, entry_time,
			planned_sl, planned_tp,
			exit_price, exit_time, exit_type,
			peak_pnl_pct, worst_pnl_pct, realized_pnl_pct,
			grade, planned_rr, actual_rr, execution_quality, hold_minutes
		from trade_journal
		order by exit_time asc
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var side, confidence, exitType, grade string
		if err := rows.Scan(
			&e.RecordID, &e.Symbol, &side, &confidence,
			&e.Quantity, &e.EntryPrice, &e.EntryTime,
			&e.PlannedStopLoss, &e.PlannedTakeProfit,
			&e.ExitPrice, &e.ExitTime, &exitType,
			&e.PeakPnLPct, &e.WorstPnLPct, &e.RealizedPnLPct,
			&grade, &e.PlannedRR, &e.ActualRR, &e.ExecutionQuality, &e.HoldMinutes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Side = decision.Side(side)
		e.Confidence = decision.Confidence(confidence)
		e.ExitType = position.ExitType(exitType)
		e.Grade = grading.Grade(grade)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal rows: %w", err)
	}
	return entries, nil
}

// Close releases the connection pool
func (ps *PostgresStore) Close() error {
	ps.pool.Close()
	return nil
}
