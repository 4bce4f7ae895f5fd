// Package regime implements the No-Trade Regime and market-sentiment gates
// (spec §4.6): a market-wide circuit breaker evaluated once per tick against
// the aggregate state of the active pool set, independent of any single
// pool's own lifecycle.
package regime

import (
	"context"
	"time"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/pkg/models"
)

// SentimentSource is the external collaborator supplying a marketwide
// sentiment composite. Implementations may call out to an off-chain
// aggregator; a nil source degrades to a neutral midpoint so the gate never
// blocks entries solely for want of sentiment data.
type SentimentSource interface {
	MarketSentiment(ctx context.Context) (float64, bool)
}

const neutralSentiment = 50.0

// Gate evaluates the five independent triggers, the combined weak-regime
// check, and the separate sentiment floor, returning a single verdict.
type Gate struct {
	cfg    config.RegimeConfig
	source SentimentSource
}

func New(cfg config.RegimeConfig, source SentimentSource) *Gate {
	return &Gate{cfg: cfg, source: source}
}

// Evaluate computes the regime verdict from the caller-supplied aggregate
// signals (consistency, entropy, migration-direction confidence,
// liquidity-flow, velocity — all already averaged across the active pool
// set by the Scheduler) plus sentiment fetched from the configured source.
func (g *Gate) Evaluate(ctx context.Context, agg models.RegimeAggregate) models.RegimeVerdict {
	sentiment, ok := neutralSentiment, false
	if g.source != nil {
		if s, fetched := g.source.MarketSentiment(ctx); fetched {
			sentiment, ok = s, true
		}
	}
	if !ok {
		sentiment = neutralSentiment
	}
	agg.SentimentScore = sentiment

	var triggers []string
	if agg.Consistency < g.cfg.ConsistencyFloor {
		triggers = append(triggers, "unreliable_signals")
	}
	if agg.Entropy > g.cfg.EntropyCeiling {
		triggers = append(triggers, "chaos")
	}
	if agg.MigrationDirectionConfidence < g.cfg.MigrationConfidenceFloor {
		triggers = append(triggers, "unclear_direction")
	}
	if agg.LiquidityFlowScore < g.cfg.LiquidityFlowFloor {
		triggers = append(triggers, "thin")
	}
	if agg.VelocityScore < g.cfg.VelocityFloor {
		triggers = append(triggers, "dead")
	}

	v := models.RegimeVerdict{Aggregate: agg}

	if len(triggers) == 0 {
		if weak, reason := g.weakRegime(agg); weak {
			triggers = append(triggers, reason)
		}
	}

	if len(triggers) > 0 {
		v.Blocked = true
		v.Triggers = triggers
		v.Reason = triggers[0]
		v.CooldownSec = g.cooldown(len(triggers))
	}

	if agg.SentimentScore < g.cfg.SentimentFloor {
		v.Blocked = true
		v.Reason = "sentiment_gate"
		if !contains(v.Triggers, "sentiment_gate") {
			v.Triggers = append(v.Triggers, "sentiment_gate")
		}
		if v.CooldownSec == 0 {
			v.CooldownSec = g.cooldown(1)
		}
	}

	return v
}

// weakRegime fires the combined check when no individual trigger fired but
// the mean of the five normalized signals (entropy inverted, since a high
// entropy is bad rather than good) falls below a floor.
func (g *Gate) weakRegime(agg models.RegimeAggregate) (bool, string) {
	invertedEntropy := clamp01(1 - agg.Entropy)
	mean := (agg.Consistency + invertedEntropy + agg.MigrationDirectionConfidence +
		agg.LiquidityFlowScore + agg.VelocityScore) / 5
	if mean < g.cfg.WeakRegimeFloor {
		return true, "weak_regime"
	}
	return false, ""
}

// cooldown scales with trigger count and is capped.
func (g *Gate) cooldown(n int) int {
	d := g.cfg.CooldownUnit * time.Duration(n)
	if d > g.cfg.CooldownCap {
		d = g.cfg.CooldownCap
	}
	return int(d.Seconds())
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
