package regime

import (
	"context"
	"testing"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/pkg/models"
)

type fixedSentiment struct {
	score float64
	ok    bool
}

func (f fixedSentiment) MarketSentiment(ctx context.Context) (float64, bool) { return f.score, f.ok }

func healthyAggregate() models.RegimeAggregate {
	return models.RegimeAggregate{
		Consistency: 0.9, Entropy: 0.2, MigrationDirectionConfidence: 0.8,
		LiquidityFlowScore: 0.9, VelocityScore: 0.9,
	}
}

func TestNoTriggersNotBlocked(t *testing.T) {
	g := New(config.Default().Regime, fixedSentiment{50, true})
	v := g.Evaluate(context.Background(), healthyAggregate())
	if v.Blocked {
		t.Fatalf("expected not blocked, got triggers %v", v.Triggers)
	}
}

func TestConsistencyTriggerBlocks(t *testing.T) {
	g := New(config.Default().Regime, fixedSentiment{50, true})
	agg := healthyAggregate()
	agg.Consistency = 0.1
	v := g.Evaluate(context.Background(), agg)
	if !v.Blocked {
		t.Fatal("expected blocked on low consistency")
	}
	found := false
	for _, tr := range v.Triggers {
		if tr == "unreliable_signals" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unreliable_signals trigger, got %v", v.Triggers)
	}
}

func TestWeakRegimeFiresWhenNoIndividualTrigger(t *testing.T) {
	g := New(config.Default().Regime, fixedSentiment{50, true})
	agg := models.RegimeAggregate{
		Consistency: 0.36, Entropy: 0.79, MigrationDirectionConfidence: 0.26,
		LiquidityFlowScore: 0.21, VelocityScore: 0.21,
	}
	v := g.Evaluate(context.Background(), agg)
	if !v.Blocked {
		t.Fatal("expected weak regime block")
	}
	if v.Reason != "weak_regime" {
		t.Fatalf("expected weak_regime reason, got %s", v.Reason)
	}
}

func TestSentimentGateBlocksIndependently(t *testing.T) {
	g := New(config.Default().Regime, fixedSentiment{5, true})
	v := g.Evaluate(context.Background(), healthyAggregate())
	if !v.Blocked {
		t.Fatal("expected sentiment gate to block")
	}
	found := false
	for _, tr := range v.Triggers {
		if tr == "sentiment_gate" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected sentiment_gate trigger, got %v", v.Triggers)
	}
}

func TestNilSourceDegradesToNeutral(t *testing.T) {
	g := New(config.Default().Regime, nil)
	v := g.Evaluate(context.Background(), healthyAggregate())
	if v.Blocked {
		t.Fatal("expected neutral sentiment not to block a healthy aggregate")
	}
}

// TestScenarioEFiresExactlyFourTriggers exercises the literal worked example:
// entropy 0.85, consistency 0.30, migration confidence 0.20, liquidity flow
// 0.15, velocity 0.05 — four of the five independent checks should fire
// (velocity sits exactly at its floor, not below it).
func TestScenarioEFiresExactlyFourTriggers(t *testing.T) {
	g := New(config.Default().Regime, fixedSentiment{50, true})
	agg := models.RegimeAggregate{
		Consistency: 0.30, Entropy: 0.85, MigrationDirectionConfidence: 0.20,
		LiquidityFlowScore: 0.15, VelocityScore: 0.05,
	}
	v := g.Evaluate(context.Background(), agg)
	if !v.Blocked {
		t.Fatal("expected blocked")
	}
	want := []string{"unreliable_signals", "chaos", "unclear_direction", "thin"}
	if len(v.Triggers) != len(want) {
		t.Fatalf("expected exactly %d triggers, got %d: %v", len(want), len(v.Triggers), v.Triggers)
	}
	for _, w := range want {
		if !contains(v.Triggers, w) {
			t.Fatalf("expected trigger %q among %v", w, v.Triggers)
		}
	}
	if contains(v.Triggers, "dead") {
		t.Fatalf("velocity sits at its floor and should not trigger, got %v", v.Triggers)
	}
}

func TestCooldownScalesAndCaps(t *testing.T) {
	g := New(config.Default().Regime, fixedSentiment{50, true})
	agg := models.RegimeAggregate{
		Consistency: 0.1, Entropy: 0.95, MigrationDirectionConfidence: 0.1,
		LiquidityFlowScore: 0.1, VelocityScore: 0.1,
	}
	v := g.Evaluate(context.Background(), agg)
	maxSec := int(config.Default().Regime.CooldownCap.Seconds())
	if v.CooldownSec > maxSec {
		t.Fatalf("expected cooldown capped at %d, got %d", maxSec, v.CooldownSec)
	}
	if v.CooldownSec == 0 {
		t.Fatal("expected non-zero cooldown when triggers fired")
	}
}
