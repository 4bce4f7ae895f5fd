package discovery

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/pkg/models"
)

type staticSource struct {
	name string
	body string
}

func (s staticSource) Name() string { return s.name }
func (s staticSource) Stream(ctx context.Context, w io.Writer) error {
	_, err := io.Copy(w, strings.NewReader(s.body))
	return err
}

type failingSource struct{}

func (failingSource) Name() string                                  { return "failing" }
func (failingSource) Stream(ctx context.Context, w io.Writer) error { return errors.New("upstream unreachable") }

type fakeSnapshots struct {
	snap models.BinSnapshot
	err  error
}

func (f fakeSnapshots) FetchPoolSnapshot(ctx context.Context, pool models.PoolAddress) (models.BinSnapshot, error) {
	return f.snap, f.err
}

// sequencedSnapshots returns one snapshot per call (from snaps, in order),
// repeating the last once exhausted — used to exercise Stage 2's
// across-call liquidity flow computation.
type sequencedSnapshots struct {
	snaps []models.BinSnapshot
	calls int
}

func (s *sequencedSnapshots) FetchPoolSnapshot(ctx context.Context, pool models.PoolAddress) (models.BinSnapshot, error) {
	idx := s.calls
	if idx >= len(s.snaps) {
		idx = len(s.snaps) - 1
	}
	s.calls++
	return s.snaps[idx], nil
}

func TestStage1FiltersAndDeduplicates(t *testing.T) {
	src1 := staticSource{name: "native", body: `[
		{"pool":"poolA","baseMint":"BASE","quoteMint":"QUOTE","tvlUsd":50000,"volume24hUsd":20000},
		{"pool":"poolB","baseMint":"USDC","quoteMint":"USDT","tvlUsd":1000000,"volume24hUsd":500000}
	]`}
	src2 := staticSource{name: "indexer", body: `[
		{"pool":"poolA","baseMint":"BASE","quoteMint":"QUOTE","tvlUsd":50000,"volume24hUsd":20000},
		{"pool":"poolC","baseMint":"DUST","quoteMint":"QUOTE","tvlUsd":100,"volume24hUsd":50}
	]`}

	cfg := config.Default().Funnel
	f := New(cfg, []Source{src1, src2}, nil, nil, map[string]bool{"USDC": true, "USDT": true})
	ranked := f.stage1(context.Background())

	if len(ranked) != 1 {
		t.Fatalf("expected only poolA to survive (stable-stable and below-floor filtered, dedup across sources), got %d: %+v", len(ranked), ranked)
	}
	if ranked[0].Pool != "poolA" {
		t.Fatalf("expected poolA, got %s", ranked[0].Pool)
	}
}

func TestStage1ToleratesFailingSource(t *testing.T) {
	src := staticSource{name: "native", body: `[{"pool":"poolA","baseMint":"BASE","quoteMint":"QUOTE","tvlUsd":50000,"volume24hUsd":20000}]`}
	cfg := config.Default().Funnel
	f := New(cfg, []Source{src, failingSource{}}, nil, nil, map[string]bool{})
	ranked := f.stage1(context.Background())
	if len(ranked) != 1 {
		t.Fatalf("expected the healthy source's survivor despite the failing source, got %d", len(ranked))
	}
}

func TestStage1RespectsRawCap(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 10; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"pool":"pool`)
		sb.WriteString(string(rune('A' + i)))
		sb.WriteString(`","baseMint":"B","quoteMint":"Q","tvlUsd":100000,"volume24hUsd":1000}`)
	}
	sb.WriteString("]")

	cfg := config.Default().Funnel
	cfg.RawCap = 3
	f := New(cfg, []Source{staticSource{name: "src", body: sb.String()}}, nil, nil, map[string]bool{})
	ranked := f.stage1(context.Background())
	if len(ranked) != 3 {
		t.Fatalf("expected raw cap of 3, got %d", len(ranked))
	}
}

func TestRunReturnsEmptyNotNilWhenNoSources(t *testing.T) {
	cfg := config.Default().Funnel
	f := New(cfg, nil, nil, nil, map[string]bool{})
	scored := f.Run(context.Background())
	if scored == nil {
		t.Fatal("expected an empty non-nil slice")
	}
	if len(scored) != 0 {
		t.Fatalf("expected zero survivors, got %d", len(scored))
	}
}

func TestStage2And3ProduceScoredCandidates(t *testing.T) {
	src := staticSource{name: "native", body: `[{"pool":"poolA","baseMint":"BASE","quoteMint":"QUOTE","tvlUsd":50000,"volume24hUsd":20000}]`}
	snapshots := &sequencedSnapshots{snaps: []models.BinSnapshot{
		{Timestamp: time.Unix(0, 0), LiquidityUSD: 100000, TradeCount: 30, InventoryBase: 40000, InventoryQuote: 60000},
		{Timestamp: time.Unix(60, 0), LiquidityUSD: 140000, TradeCount: 30, InventoryBase: 40000, InventoryQuote: 60000},
	}}

	cfg := config.Default().Funnel
	cfg.RelaxedSwapVelocityFloor = 0.1
	cfg.RelaxedEntropyFloor = 0.1

	f := New(cfg, []Source{src}, snapshots, nil, map[string]bool{})

	// Cold start: only one snapshot has ever been seen for poolA, so the
	// liquidity flow ratio has no delta to measure yet and Stage 2 rejects it.
	if scored := f.Run(context.Background()); len(scored) != 0 {
		t.Fatalf("expected no survivors on the first tick (no liquidity flow history yet), got %d", len(scored))
	}

	// Second tick: poolA's liquidity moved 100000 -> 140000, a real,
	// nonzero LiquidityFlowRatio that clears the relaxed floor.
	scored := f.Run(context.Background())
	if len(scored) != 1 {
		t.Fatalf("expected one scored candidate once liquidity flow is computable, got %d", len(scored))
	}
	if scored[0].DiscoveryScore <= 0 {
		t.Fatalf("expected a positive discovery score, got %f", scored[0].DiscoveryScore)
	}
}

func TestDeriveSignalComputesLiquidityFlowAcrossTicks(t *testing.T) {
	f := New(config.Default().Funnel, nil, nil, nil, map[string]bool{})

	first := f.deriveSignal(context.Background(), "poolA", models.BinSnapshot{
		Timestamp: time.Unix(0, 0), LiquidityUSD: 100000,
	})
	if first.liquidityFlow != 0 {
		t.Fatalf("expected zero liquidity flow on the first snapshot, got %f", first.liquidityFlow)
	}

	second := f.deriveSignal(context.Background(), "poolA", models.BinSnapshot{
		Timestamp: time.Unix(60, 0), LiquidityUSD: 150000,
	})
	want := 50000.0 / 150000.0
	if second.liquidityFlow != want {
		t.Fatalf("expected liquidity flow ratio %f, got %f", want, second.liquidityFlow)
	}
}
