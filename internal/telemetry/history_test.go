package telemetry

import (
	"testing"
	"time"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/pkg/models"
)

func snap(t time.Time, bin int64, liq float64, trades int) models.BinSnapshot {
	return models.BinSnapshot{
		Timestamp: t, ActiveBin: bin, LiquidityUSD: liq, TradeCount: trades,
		Bins: []models.BinLiquidity{{BinIndex: bin, LiquidityUSD: liq}},
	}
}

func TestHistoryRecordRespectsMinInterval(t *testing.T) {
	h := NewHistory(config.HistoryConfig{RingSize: 20, MinInterval: 8 * time.Second})
	base := time.Now()

	if !h.Record(snap(base, 100, 1_000_000, 5)) {
		t.Fatal("first record should be accepted")
	}
	if h.Record(snap(base.Add(3*time.Second), 101, 1_000_000, 5)) {
		t.Fatal("record within min_interval should be a no-op")
	}
	if !h.Record(snap(base.Add(8*time.Second), 102, 1_000_000, 5)) {
		t.Fatal("record at exactly min_interval should be accepted")
	}
	if h.Len() != 2 {
		t.Fatalf("expected 2 retained entries, got %d", h.Len())
	}
}

func TestHistoryEvictsOldestWhenFull(t *testing.T) {
	h := NewHistory(config.HistoryConfig{RingSize: 2, MinInterval: 0})
	base := time.Now()
	h.Record(snap(base, 1, 100, 1))
	h.Record(snap(base.Add(time.Second), 2, 100, 1))
	h.Record(snap(base.Add(2*time.Second), 3, 100, 1))

	if h.Len() != 2 {
		t.Fatalf("expected ring size 2, got %d", h.Len())
	}
	if h.entries[0].ActiveBin != 2 {
		t.Fatalf("expected oldest entry evicted, got bin %d as head", h.entries[0].ActiveBin)
	}
}

func TestScenarioABinVelocity(t *testing.T) {
	// Scenario A from spec §8: bins 100,102,104 at t, t+8s, t+16s.
	h := NewHistory(config.HistoryConfig{RingSize: 20, MinInterval: 8 * time.Second})
	base := time.Now()
	h.Record(snap(base, 100, 1_000_000, 5))
	h.Record(snap(base.Add(8*time.Second), 102, 1_000_000, 5))
	h.Record(snap(base.Add(16*time.Second), 104, 1_000_000, 5))

	if v := h.BinVelocity(); v < 0.24 || v > 0.26 {
		t.Fatalf("expected bin velocity ~0.25/s, got %f", v)
	}
	if v := h.SwapsPerSecond(); v < 0.6 || v > 0.63 {
		t.Fatalf("expected swap velocity ~0.625/s, got %f", v)
	}
}
