package cyclephase

import (
	"testing"
	"time"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/internal/telemetry"
	"github.com/rawblock/lpagent/pkg/models"
)

func historyWithLatencies(latencies []float64) *telemetry.History {
	h := telemetry.NewHistory(config.HistoryConfig{RingSize: 20, MinInterval: 0})
	base := time.Now()
	for i, l := range latencies {
		h.Record(models.BinSnapshot{
			Timestamp: base.Add(time.Duration(i) * time.Second), ActiveBin: 1, LiquidityUSD: 1,
			Bins: []models.BinLiquidity{{BinIndex: 1, RefillTimeMillis: int64(l * 1000)}},
		})
	}
	return h
}

func TestPrePhaseRequiresRisingLatency(t *testing.T) {
	cfg := config.Default().CyclePhase
	h := historyWithLatencies([]float64{0.8, 1.0, 1.3})
	c := Classify(cfg, h, 0.05, 0)
	if c.Phase != PhasePre {
		t.Fatalf("expected PRE phase, got %s", c.Phase)
	}
	if !c.EntryPermitted {
		t.Fatal("expected entry permitted in PRE with low migration/bins-crossed")
	}
}

func TestActivePhaseWindow(t *testing.T) {
	cfg := config.Default().CyclePhase
	h := historyWithLatencies([]float64{1.0, 1.5, 1.9})
	c := Classify(cfg, h, 0, 0)
	if c.Phase != PhaseActive {
		t.Fatalf("expected ACTIVE phase, got %s", c.Phase)
	}
}

func TestEndPhaseMandatesExit(t *testing.T) {
	cfg := config.Default().CyclePhase
	h := historyWithLatencies([]float64{1.0, 2.0, 1.0})
	c := Classify(cfg, h, 0, 0)
	if c.Phase != PhaseEnd {
		t.Fatalf("expected END phase, got %s", c.Phase)
	}
	if !c.ExitMandated {
		t.Fatal("expected exit mandated in END phase")
	}
}

func TestEntryBlockedByMigration(t *testing.T) {
	cfg := config.Default().CyclePhase
	h := historyWithLatencies([]float64{1.0, 1.5, 1.9})
	c := Classify(cfg, h, 0.30, 0)
	if c.EntryPermitted {
		t.Fatal("expected entry blocked by high migration")
	}
}
