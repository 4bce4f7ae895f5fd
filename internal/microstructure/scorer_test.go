package microstructure

import (
	"testing"
	"time"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/internal/telemetry"
	"github.com/rawblock/lpagent/pkg/models"
)

func buildHistory(t *testing.T) *telemetry.History {
	t.Helper()
	h := telemetry.NewHistory(config.HistoryConfig{RingSize: 20, MinInterval: 8 * time.Second})
	base := time.Now()
	bins := []int64{100, 102, 104}
	for i, b := range bins {
		h.Record(models.BinSnapshot{
			Timestamp:      base.Add(time.Duration(i*8) * time.Second),
			ActiveBin:      b,
			LiquidityUSD:   1_000_000,
			InventoryBase:  500_000 + float64(i)*20_000,
			InventoryQuote: 500_000 - float64(i)*20_000,
			FeeRateBps:     30,
			TradeCount:     5,
			Bins: []models.BinLiquidity{
				{BinIndex: b, LiquidityUSD: 50_000, RefillTimeMillis: 1800},
			},
		})
	}
	return h
}

func TestScenarioAComposite(t *testing.T) {
	scorer := New(config.Default().Scorer)
	h := buildHistory(t)
	v := scorer.Score("poolA", h)

	if v.BinVelocityScore != 100 {
		t.Fatalf("expected bin velocity score clamped to 100, got %f", v.BinVelocityScore)
	}
	if v.SwapVelocityScore < 60 || v.SwapVelocityScore > 65 {
		t.Fatalf("expected swap velocity score ~62, got %f", v.SwapVelocityScore)
	}
	if v.Composite <= 60 {
		t.Fatalf("expected composite > 60, got %f", v.Composite)
	}
}

func TestGatingReasonsNonEmptyWhenNotAlive(t *testing.T) {
	scorer := New(config.Default().Scorer)
	h := telemetry.NewHistory(config.HistoryConfig{RingSize: 20, MinInterval: 0})
	base := time.Now()
	// Flat, motionless pool: every floor fails.
	for i := 0; i < 3; i++ {
		h.Record(models.BinSnapshot{
			Timestamp: base.Add(time.Duration(i) * time.Second), ActiveBin: 100,
			LiquidityUSD: 1_000_000, InventoryBase: 500_000, InventoryQuote: 500_000,
			TradeCount: 0, Bins: []models.BinLiquidity{{BinIndex: 100, LiquidityUSD: 10}},
		})
	}
	v := scorer.Score("poolB", h)
	if v.MarketAlive {
		t.Fatal("expected market not alive for a motionless pool")
	}
	if len(v.GatingReasons) == 0 {
		t.Fatal("expected non-empty gating reasons when market is not alive")
	}
	for _, r := range v.GatingReasons {
		if r == "" {
			t.Fatal("gating reason must not be empty")
		}
	}
}

func TestNoNaNEmitted(t *testing.T) {
	scorer := New(config.Default().Scorer)
	h := telemetry.NewHistory(config.HistoryConfig{RingSize: 20, MinInterval: 0})
	base := time.Now()
	// Zero liquidity snapshot followed by another zero: forces zero denominators.
	for i := 0; i < 3; i++ {
		h.Record(models.BinSnapshot{
			Timestamp: base.Add(time.Duration(i) * time.Second), ActiveBin: 0,
			LiquidityUSD: 0, Bins: []models.BinLiquidity{{BinIndex: 0, LiquidityUSD: 0}},
		})
	}
	v := scorer.Score("poolC", h)
	for _, f := range []float64{v.BinVelocityScore, v.LiquidityFlowScore, v.SwapVelocityScore, v.FeeIntensityScore, v.PoolEntropy, v.Composite} {
		if f != f { // NaN check
			t.Fatal("NaN must never be emitted")
		}
	}
}
