package execution

import (
	"context"
	"testing"
	"time"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/internal/identity"
	"github.com/rawblock/lpagent/pkg/models"
)

type fakeDecoder struct {
	ident models.PoolIdentity
	err   error
}

func (f fakeDecoder) ResolveOnChainIdentity(ctx context.Context, pool models.PoolAddress) (models.PoolIdentity, error) {
	return f.ident, f.err
}

type fakeStore struct {
	upserted  []models.PoolIdentity
	positions map[int64]models.Position
	nextID    int64
}

func newFakeStore() *fakeStore { return &fakeStore{positions: make(map[int64]models.Position)} }

func (f *fakeStore) UpsertPool(ctx context.Context, ident models.PoolIdentity, isMemecoin bool) error {
	f.upserted = append(f.upserted, ident)
	return nil
}

func (f *fakeStore) EnterPosition(ctx context.Context, t models.Trade, runID string) (models.Position, error) {
	f.nextID++
	pos := models.Position{
		TradeID: f.nextID, Pool: t.Pool, EntryPrice: t.EntryPrice, SizeUSD: t.SizeUSD,
		EntryTimestamp: t.EntryTimestamp, CurrentBin: t.EntryBin, RunID: runID,
	}
	f.positions[pos.TradeID] = pos
	return pos, nil
}

func (f *fakeStore) ExitPosition(ctx context.Context, tradeID int64, exit models.Trade, at models.Position) error {
	pos, ok := f.positions[tradeID]
	if !ok {
		return nil
	}
	pos.ClosedAt = at.ClosedAt
	pos.ExitReason = at.ExitReason
	pos.PnLUSD = at.PnLUSD
	f.positions[tradeID] = pos
	return nil
}

func TestEnterSucceedsWithValidIdentity(t *testing.T) {
	decoder := fakeDecoder{ident: models.PoolIdentity{
		Pool: "poolA", BaseMint: "BASE", QuoteMint: "QUOTE", BaseDecimals: 6, QuoteDecimals: 9,
	}}
	resolver := identity.New(config.Default().Identity, decoder, nil)
	store := newFakeStore()
	engine := New(resolver, store)

	pos, err := engine.Enter(context.Background(), "run1", EntryRequest{
		Pool: "poolA", Mode: models.ModePaper, SizeUSD: 100, EntryPrice: 1, EntryBin: 10, Now: time.Now(),
	})
	if err != nil {
		t.Fatalf("expected entry to succeed, got %v", err)
	}
	if pos.TradeID == 0 {
		t.Fatal("expected a persistence-assigned trade id")
	}
	if len(store.upserted) != 1 {
		t.Fatalf("expected exactly one pool upsert, got %d", len(store.upserted))
	}
}

func TestEnterRejectedOnPreflightFailure(t *testing.T) {
	decoder := fakeDecoder{ident: models.PoolIdentity{Pool: "poolB", BaseMint: "", QuoteMint: "QUOTE"}}
	resolver := identity.New(config.Default().Identity, decoder, nil)
	store := newFakeStore()
	engine := New(resolver, store)

	_, err := engine.Enter(context.Background(), "run1", EntryRequest{Pool: "poolB", Now: time.Now()})
	if err == nil {
		t.Fatal("expected entry to be rejected for missing mints")
	}
	if len(store.upserted) != 0 {
		t.Fatal("expected no pool registration on preflight failure")
	}
}

func TestExitUpdatesPosition(t *testing.T) {
	decoder := fakeDecoder{ident: models.PoolIdentity{
		Pool: "poolC", BaseMint: "BASE", QuoteMint: "QUOTE", BaseDecimals: 6, QuoteDecimals: 9,
	}}
	resolver := identity.New(config.Default().Identity, decoder, nil)
	store := newFakeStore()
	engine := New(resolver, store)

	pos, err := engine.Enter(context.Background(), "run1", EntryRequest{Pool: "poolC", SizeUSD: 100, Now: time.Now()})
	if err != nil {
		t.Fatalf("setup entry failed: %v", err)
	}

	err = engine.Exit(context.Background(), ExitRequest{
		TradeID: pos.TradeID, ExitPrice: 1.1, RealizedPnLUSD: 10, ExitReason: "manual", Now: time.Now(),
	})
	if err != nil {
		t.Fatalf("expected exit to succeed, got %v", err)
	}
	if store.positions[pos.TradeID].ClosedAt == nil {
		t.Fatal("expected position to be marked closed")
	}
}
