// Package db implements the persistence store over Postgres via pgx, the
// only authority pool identities, trades, and positions are read from or
// written through.
package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/lpagent/pkg/models"
)

// PostgresStore is the Postgres-backed implementation of the narrow store
// interfaces collaborators depend on (identity.Store, execution.Store,
// epoch.OpenPositionSource).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect opens the pool and verifies connectivity.
func Connect(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	log.Println("connected to postgres for lpagent")
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes schema.sql, idempotent via IF NOT EXISTS.
func (s *PostgresStore) InitSchema(ctx context.Context, schemaPath string) error {
	b, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(b)); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}
	return nil
}

// UpsertPool auto-registers a resolved pool identity, idempotent on pool
// address (spec §4.10 step 2: "never fabricate symbolic identities" — this
// is only ever called with a PoolIdentity that already passed preflight).
func (s *PostgresStore) UpsertPool(ctx context.Context, ident models.PoolIdentity, isMemecoin bool) error {
	sql := `
		INSERT INTO pools (pool, base_mint, quote_mint, base_decimals, quote_decimals, base_symbol, quote_symbol, source, resolved_at, is_memecoin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (pool) DO UPDATE SET
			base_mint = EXCLUDED.base_mint, quote_mint = EXCLUDED.quote_mint,
			base_decimals = EXCLUDED.base_decimals, quote_decimals = EXCLUDED.quote_decimals,
			base_symbol = EXCLUDED.base_symbol, quote_symbol = EXCLUDED.quote_symbol
	`
	_, err := s.pool.Exec(ctx, sql,
		ident.Pool, ident.BaseMint, ident.QuoteMint, ident.BaseDecimals, ident.QuoteDecimals,
		ident.BaseSymbol, ident.QuoteSymbol, ident.Source, ident.ResolvedAt, isMemecoin)
	return err
}

// IsBlacklisted reports whether persistence already has this pool flagged.
func (s *PostgresStore) IsBlacklisted(ctx context.Context, pool models.PoolAddress) (bool, error) {
	var blacklisted bool
	err := s.pool.QueryRow(ctx, `SELECT blacklisted FROM pools WHERE pool = $1`, pool).Scan(&blacklisted)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	return blacklisted, err
}

// LookupIdentity serves the Identity Resolver's persistence-tier lookup.
func (s *PostgresStore) LookupIdentity(ctx context.Context, pool models.PoolAddress) (*models.PoolIdentity, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT pool, base_mint, quote_mint, base_decimals, quote_decimals, base_symbol, quote_symbol, source, resolved_at
		FROM pools WHERE pool = $1`, pool)

	var ident models.PoolIdentity
	err := row.Scan(&ident.Pool, &ident.BaseMint, &ident.QuoteMint, &ident.BaseDecimals, &ident.QuoteDecimals,
		&ident.BaseSymbol, &ident.QuoteSymbol, &ident.Source, &ident.ResolvedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ident, nil
}

// LoadPoolIdentity adapts LookupIdentity to the identity.Store interface.
func (s *PostgresStore) LoadPoolIdentity(ctx context.Context, pool models.PoolAddress) (models.PoolIdentity, bool, error) {
	ident, err := s.LookupIdentity(ctx, pool)
	if err != nil {
		return models.PoolIdentity{}, false, err
	}
	if ident == nil {
		return models.PoolIdentity{}, false, nil
	}
	return *ident, true, nil
}

// SavePoolIdentity adapts UpsertPool to the identity.Store interface.
func (s *PostgresStore) SavePoolIdentity(ctx context.Context, ident models.PoolIdentity) error {
	return s.UpsertPool(ctx, ident, false)
}

// InsertTrade inserts a Trade row and returns the persistence-assigned id
// (spec §4.10 step 3 — application code never fabricates the id).
func (s *PostgresStore) InsertTrade(ctx context.Context, t models.Trade) (int64, error) {
	sql := `
		INSERT INTO trades (pool, mode, size_usd, entry_price, entry_bin, entry_score, tier, regime_at_entry,
			entry_timestamp, entry_fees_usd, entry_slippage_usd, entry_asset_value, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'open')
		RETURNING id
	`
	var id int64
	err := s.pool.QueryRow(ctx, sql, t.Pool, t.Mode, t.SizeUSD, t.EntryPrice, t.EntryBin, t.EntryScore,
		t.Tier, t.RegimeAtEntry, t.EntryTimestamp, t.EntryFeesUSD, t.EntrySlippageUSD, t.EntryAssetValue).Scan(&id)
	return id, err
}

// InsertPosition inserts a Position row carrying the DB-assigned trade id
// and the current run id (spec §4.10 step 4).
func (s *PostgresStore) InsertPosition(ctx context.Context, p models.Position) error {
	sql := `
		INSERT INTO positions (trade_id, pool, entry_price, size_usd, entry_timestamp, current_bin, health_score, risk_tier, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.pool.Exec(ctx, sql, p.TradeID, p.Pool, p.EntryPrice, p.SizeUSD, p.EntryTimestamp,
		p.CurrentBin, p.HealthScore, p.RiskTier, p.RunID)
	return err
}

// EnterPosition wraps trade insert + position insert in one transaction,
// grounded on the teacher's begin/defer-rollback/commit idiom
// (SaveAnalysisResult in internal/db/postgres.go). Step 3 must succeed
// before step 4 is attempted; either both rows exist or neither does.
func (s *PostgresStore) EnterPosition(ctx context.Context, t models.Trade, runID string) (models.Position, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Position{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO trades (pool, mode, size_usd, entry_price, entry_bin, entry_score, tier, regime_at_entry,
			entry_timestamp, entry_fees_usd, entry_slippage_usd, entry_asset_value, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'open')
		RETURNING id
	`, t.Pool, t.Mode, t.SizeUSD, t.EntryPrice, t.EntryBin, t.EntryScore,
		t.Tier, t.RegimeAtEntry, t.EntryTimestamp, t.EntryFeesUSD, t.EntrySlippageUSD, t.EntryAssetValue).Scan(&id)
	if err != nil {
		return models.Position{}, fmt.Errorf("insert trade: %w", err)
	}

	pos := models.Position{
		TradeID: id, Pool: t.Pool, EntryPrice: t.EntryPrice, SizeUSD: t.SizeUSD,
		EntryTimestamp: t.EntryTimestamp, CurrentBin: t.EntryBin, RunID: runID,
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO positions (trade_id, pool, entry_price, size_usd, entry_timestamp, current_bin, health_score, risk_tier, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, pos.TradeID, pos.Pool, pos.EntryPrice, pos.SizeUSD, pos.EntryTimestamp, pos.CurrentBin, pos.HealthScore, pos.RiskTier, pos.RunID)
	if err != nil {
		return models.Position{}, fmt.Errorf("insert position: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Position{}, err
	}
	return pos, nil
}

// ExitPosition closes out a trade and its position row in one transaction.
func (s *PostgresStore) ExitPosition(ctx context.Context, tradeID int64, exit models.Trade, at models.Position) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		UPDATE trades SET status = 'closed', exit_price = $1, exit_timestamp = $2, exit_fees_usd = $3,
			exit_slippage_usd = $4, realized_pnl_usd = $5, realized_pnl_pct = $6, exit_reason = $7
		WHERE id = $8
	`, exit.ExitPrice, exit.ExitTimestamp, exit.ExitFeesUSD, exit.ExitSlippageUSD,
		exit.RealizedPnLUSD, exit.RealizedPnLPct, exit.ExitReason, tradeID)
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE positions SET closed_at = $1, exit_reason = $2, pnl_usd = $3 WHERE trade_id = $4
	`, at.ClosedAt, at.ExitReason, at.PnLUSD, tradeID)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}

	return tx.Commit(ctx)
}

// ListPositions returns every position recorded for a run, open or closed,
// most recent entry first — the dashboard's position table.
func (s *PostgresStore) ListPositions(ctx context.Context, runID string) ([]models.Position, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT trade_id, pool, entry_price, size_usd, entry_timestamp, current_bin, health_score, risk_tier, run_id, closed_at, exit_reason, pnl_usd
		FROM positions WHERE run_id = $1 ORDER BY entry_timestamp DESC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.TradeID, &p.Pool, &p.EntryPrice, &p.SizeUSD, &p.EntryTimestamp,
			&p.CurrentBin, &p.HealthScore, &p.RiskTier, &p.RunID, &p.ClosedAt, &p.ExitReason, &p.PnLUSD); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListTrades returns the most recent closed trades, newest first, capped at
// limit — the dashboard's trade history table.
func (s *PostgresStore) ListTrades(ctx context.Context, limit int) ([]models.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pool, mode, size_usd, entry_price, entry_bin, entry_score, tier, regime_at_entry, entry_timestamp,
			entry_fees_usd, entry_slippage_usd, entry_asset_value, status, exit_price, exit_timestamp,
			exit_fees_usd, exit_slippage_usd, realized_pnl_usd, realized_pnl_pct, exit_reason
		FROM trades WHERE status = 'closed' ORDER BY exit_timestamp DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var t models.Trade
		if err := rows.Scan(&t.ID, &t.Pool, &t.Mode, &t.SizeUSD, &t.EntryPrice, &t.EntryBin, &t.EntryScore,
			&t.Tier, &t.RegimeAtEntry, &t.EntryTimestamp, &t.EntryFeesUSD, &t.EntrySlippageUSD, &t.EntryAssetValue,
			&t.Status, &t.ExitPrice, &t.ExitTimestamp, &t.ExitFeesUSD, &t.ExitSlippageUSD,
			&t.RealizedPnLUSD, &t.RealizedPnLPct, &t.ExitReason); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RunPnL sums realized P&L across every closed position for a run, read
// straight from positions, which carry the run id.
func (s *PostgresStore) RunPnL(ctx context.Context, runID string) (totalPnL float64, closedCount int, err error) {
	row := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(p.pnl_usd), 0), COUNT(*)
		FROM positions p WHERE p.run_id = $1 AND p.closed_at IS NOT NULL
	`, runID)
	err = row.Scan(&totalPnL, &closedCount)
	return totalPnL, closedCount, err
}

// AverageWin computes the mean of strictly-positive realized P&L across a
// run's closed positions — the resolved reading of "average win size"
// (see DESIGN.md's Open Question decision on avgWin).
func (s *PostgresStore) AverageWin(ctx context.Context, runID string) (float64, error) {
	var avg *float64
	row := s.pool.QueryRow(ctx, `
		SELECT AVG(pnl_usd) FROM positions WHERE run_id = $1 AND closed_at IS NOT NULL AND pnl_usd > 0
	`, runID)
	if err := row.Scan(&avg); err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

// OpenPositions returns every currently-open position for the given run,
// the reconciliation seal's source of truth at startup.
func (s *PostgresStore) OpenPositions(ctx context.Context, runID string) ([]models.Position, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT trade_id, pool, entry_price, size_usd, entry_timestamp, current_bin, health_score, risk_tier, run_id
		FROM positions WHERE run_id = $1 AND closed_at IS NULL
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.TradeID, &p.Pool, &p.EntryPrice, &p.SizeUSD, &p.EntryTimestamp,
			&p.CurrentBin, &p.HealthScore, &p.RiskTier, &p.RunID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
