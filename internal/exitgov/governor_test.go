package exitgov

import (
	"testing"
	"time"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/pkg/models"
)

func freshState(id int64) *models.ExitGovernorState {
	return &models.ExitGovernorState{TradeID: id}
}

func TestCriticalIntentAlwaysExecutes(t *testing.T) {
	g := New(config.Default().ExitGov)
	state := freshState(1)
	in := PositionInputs{SizeUSD: 1000, PositionShare: 1, HoldTime: time.Second}
	d := g.Evaluate(state, Intent{Reason: "whale_sweep", Critical: true}, in, time.Now())
	if !d.Execute || d.Suppressed {
		t.Fatalf("expected critical intent to execute unsuppressed, got %+v", d)
	}
}

func TestCostNotAmortizedSuppresses(t *testing.T) {
	g := New(config.Default().ExitGov)
	state := freshState(1)
	in := PositionInputs{SizeUSD: 10_000, PositionShare: 1, HoldTime: time.Hour, EstimatedFeeIntensity: 0}
	d := g.Evaluate(state, Intent{Reason: "generic"}, in, time.Now())
	if d.Execute || d.SuppressReason != ReasonCostNotAmortized {
		t.Fatalf("expected COST_NOT_AMORTIZED suppression, got %+v", d)
	}
}

func TestMinHoldSuppressesWhenAmortizedButTooYoung(t *testing.T) {
	g := New(config.Default().ExitGov)
	state := freshState(1)
	velocity := 6000.0
	in := PositionInputs{
		SizeUSD: 10_000, PositionShare: 1, HoldTime: time.Minute,
		ActualFeeVelocity: &velocity,
	}
	d := g.Evaluate(state, Intent{Reason: "generic"}, in, time.Now())
	if d.AmortizationPct < 100 {
		t.Fatalf("test setup should amortize fully, got %f", d.AmortizationPct)
	}
	if d.Execute || d.SuppressReason != ReasonMinHold {
		t.Fatalf("expected MIN_HOLD suppression, got %+v", d)
	}
}

func TestDefenseModeSuppresses(t *testing.T) {
	g := New(config.Default().ExitGov)
	state := freshState(1)
	velocity := 1000.0
	in := PositionInputs{
		SizeUSD: 10_000, PositionShare: 1, HoldTime: time.Hour,
		ActualFeeVelocity: &velocity, GlobalRegimeDefense: true,
	}
	d := g.Evaluate(state, Intent{Reason: "generic"}, in, time.Now())
	if d.Execute || d.SuppressReason != ReasonDefenseMode {
		t.Fatalf("expected DEFENSE_MODE suppression, got %+v", d)
	}
}

func TestHoldModeSuppresses(t *testing.T) {
	g := New(config.Default().ExitGov)
	state := freshState(1)
	velocity := 1000.0
	in := PositionInputs{
		SizeUSD: 10_000, PositionShare: 1, HoldTime: time.Hour,
		ActualFeeVelocity: &velocity, HoldModeActive: true,
	}
	d := g.Evaluate(state, Intent{Reason: "generic"}, in, time.Now())
	if d.Execute || d.SuppressReason != ReasonHoldMode {
		t.Fatalf("expected HOLD_MODE suppression, got %+v", d)
	}
}

func TestEscapeHatchOnTTLExpiry(t *testing.T) {
	cfg := config.Default().ExitGov
	cfg.ExitTTL = time.Minute
	g := New(cfg)
	state := freshState(1)
	in := PositionInputs{SizeUSD: 10_000, PositionShare: 1, HoldTime: time.Hour}

	now := time.Now()
	d := g.Evaluate(state, Intent{Reason: "generic"}, in, now)
	if d.Execute {
		t.Fatal("expected first suppression not to force execution")
	}
	if state.FirstTrigger == nil {
		t.Fatal("expected FirstTrigger to be set on first suppression")
	}

	d = g.Evaluate(state, Intent{Reason: "generic"}, in, now.Add(2*time.Minute))
	if !d.Execute || !d.Forced {
		t.Fatalf("expected forced execution after TTL elapses, got %+v", d)
	}
}

func TestEscapeHatchOnSuppressionCountOverflow(t *testing.T) {
	cfg := config.Default().ExitGov
	cfg.MaxSuppressions = 3
	g := New(cfg)
	state := freshState(1)
	in := PositionInputs{SizeUSD: 10_000, PositionShare: 1, HoldTime: time.Hour}
	now := time.Now()

	var last Decision
	for i := 0; i < 3; i++ {
		last = g.Evaluate(state, Intent{Reason: "generic"}, in, now.Add(time.Duration(i)*time.Second))
	}
	if !last.Execute || !last.Forced {
		t.Fatalf("expected forced execution once suppression count hits the cap, got %+v", last)
	}
}

func TestEscapeHatchOnConsecutiveEconomicStaleness(t *testing.T) {
	cfg := config.Default().ExitGov
	cfg.MaxTimeToAmortize = time.Minute
	g := New(cfg)
	state := freshState(1)
	in := PositionInputs{SizeUSD: 100_000, PositionShare: 1, HoldTime: time.Minute, EstimatedFeeIntensity: 0.0001}
	now := time.Now()

	d1 := g.Evaluate(state, Intent{Reason: "generic"}, in, now)
	if d1.Execute {
		t.Fatalf("first stale evaluation should not force execution yet, got %+v", d1)
	}
	d2 := g.Evaluate(state, Intent{Reason: "generic"}, in, now.Add(time.Second))
	if !d2.Execute || d2.ForcedReason != "economic_staleness" {
		t.Fatalf("expected forced execution on second consecutive stale tick, got %+v", d2)
	}
}

func TestAmortizationBucketing(t *testing.T) {
	if bucket(100) != "green" || bucket(99) != "yellow" || bucket(50) != "yellow" || bucket(49) != "red" {
		t.Fatal("bucket thresholds do not match spec §4.9")
	}
}
