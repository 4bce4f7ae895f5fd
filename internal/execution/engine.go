// Package execution implements the Execution Engine (spec §4.10): the
// single authorized writer of Trade and Position rows, exposing exactly
// one entry path and one exit path as required by the resolved Open
// Question on duplicate write pathways (see DESIGN.md).
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/rawblock/lpagent/internal/identity"
	"github.com/rawblock/lpagent/pkg/models"
)

// Store is the subset of PersistenceStore the engine depends on, accepted
// as an interface so tests can supply an in-memory fake instead of a live
// Postgres connection.
type Store interface {
	UpsertPool(ctx context.Context, ident models.PoolIdentity, isMemecoin bool) error
	EnterPosition(ctx context.Context, t models.Trade, runID string) (models.Position, error)
	ExitPosition(ctx context.Context, tradeID int64, exit models.Trade, at models.Position) error
}

// Engine ties the Identity Resolver's preflight gate to persistence.
type Engine struct {
	resolver *identity.Resolver
	store    Store
}

func New(resolver *identity.Resolver, store Store) *Engine {
	return &Engine{resolver: resolver, store: store}
}

// EntryRequest is the caller-assembled intent to open a position.
type EntryRequest struct {
	Pool           models.PoolAddress
	Mode           models.TradeMode
	SizeUSD        float64
	EntryPrice     float64
	EntryBin       int64
	EntryScore     float64
	Tier           string
	RegimeAtEntry  string
	EntryFeesUSD   float64
	EntrySlippageUSD float64
	EntryAssetValue  float64
	IsMemecoin     bool
	Now            time.Time
}

// Enter executes spec §4.10's five entry steps in order, rejecting if any
// of steps 1-4 fail. Step 3 (trade insert) is required before step 4
// (position insert) — EnterPosition enforces that transactionally.
func (e *Engine) Enter(ctx context.Context, runID string, req EntryRequest) (models.Position, error) {
	ident, err := e.resolver.Resolve(ctx, req.Pool, models.IdentityHints{})
	if err != nil {
		return models.Position{}, fmt.Errorf("entry rejected, identity resolution failed: %w", err)
	}
	if err := identity.Check(ident); err != nil {
		return models.Position{}, fmt.Errorf("entry rejected, preflight failed: %w", err)
	}

	if err := e.store.UpsertPool(ctx, ident, req.IsMemecoin); err != nil {
		return models.Position{}, fmt.Errorf("entry rejected, pool registration failed: %w", err)
	}

	trade := models.Trade{
		Pool: req.Pool, Mode: req.Mode, SizeUSD: req.SizeUSD,
		EntryPrice: req.EntryPrice, EntryBin: req.EntryBin, EntryScore: req.EntryScore,
		Tier: req.Tier, RegimeAtEntry: req.RegimeAtEntry, EntryTimestamp: req.Now,
		EntryFeesUSD: req.EntryFeesUSD, EntrySlippageUSD: req.EntrySlippageUSD,
		EntryAssetValue: req.EntryAssetValue, Status: models.TradeOpen,
	}

	pos, err := e.store.EnterPosition(ctx, trade, runID)
	if err != nil {
		return models.Position{}, fmt.Errorf("entry rejected, persistence failed: %w", err)
	}
	return pos, nil
}

// ExitRequest is the caller-assembled intent to close a position.
type ExitRequest struct {
	TradeID         int64
	ExitPrice       float64
	ExitFeesUSD     float64
	ExitSlippageUSD float64
	RealizedPnLUSD  float64
	RealizedPnLPct  float64
	ExitReason      string
	Now             time.Time
}

// Exit updates the Trade and Position rows. Both updates are idempotent on
// retry, keyed by trade id — calling Exit twice with the same request
// re-applies the same values rather than double-counting P&L.
func (e *Engine) Exit(ctx context.Context, req ExitRequest) error {
	exitTrade := models.Trade{
		ExitPrice: req.ExitPrice, ExitTimestamp: req.Now, ExitFeesUSD: req.ExitFeesUSD,
		ExitSlippageUSD: req.ExitSlippageUSD, RealizedPnLUSD: req.RealizedPnLUSD,
		RealizedPnLPct: req.RealizedPnLPct, ExitReason: req.ExitReason,
	}
	closedAt := req.Now
	pos := models.Position{ClosedAt: &closedAt, ExitReason: req.ExitReason, PnLUSD: req.RealizedPnLUSD}

	if err := e.store.ExitPosition(ctx, req.TradeID, exitTrade, pos); err != nil {
		return fmt.Errorf("exit failed for trade %d: %w", req.TradeID, err)
	}
	return nil
}
