// Package exitgov implements the Exit Governor (spec §4.9): given a
// position in POSITIONED with a computed exit intent, decides execute vs
// suppress. This is the most heavily tested layer of the agent — every
// suppression rule and escape-hatch condition is exercised independently.
package exitgov

import (
	"time"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/internal/ring"
	"github.com/rawblock/lpagent/pkg/models"
)

// Suppression reasons (spec §4.9, applied in this order).
const (
	ReasonCostNotAmortized = "COST_NOT_AMORTIZED"
	ReasonMinHold          = "MIN_HOLD"
	ReasonDefenseMode      = "DEFENSE_MODE"
	ReasonHoldMode         = "HOLD_MODE"
)

// Intent is the caller-computed exit trigger under evaluation.
type Intent struct {
	Reason   string
	Critical bool // whale sweep, migration >= 0.30, max-bins-crossed >= 6, LP-rug
}

// PositionInputs are the per-position derived quantities the caller
// supplies; the cost model itself (fees accrued, amortization %, time to
// cost target) is computed here from them.
type PositionInputs struct {
	SizeUSD              float64
	PositionShare        float64
	HoldTime             time.Duration
	EstimatedFeeIntensity float64 // USD/hour/USD notional, used unless ActualFeeVelocity is set
	ActualFeeVelocity    *float64 // USD/hour, preferred over the estimate when present
	GlobalRegimeDefense  bool
	HoldModeActive       bool
}

// Decision is the governor's verdict for one evaluation.
type Decision struct {
	Execute           bool
	Suppressed        bool
	SuppressReason    string
	AmortizationPct    float64
	AmortizationBucket string // green, yellow, red
	TimeToCostTarget   time.Duration
	EconomicStale      bool
	Forced             bool
	ForcedReason       string
}

// Governor owns the per-position suppression counters, keyed by trade id.
type Governor struct {
	cfg     config.ExitGovConfig
	windows map[int64]*ring.Window
}

func New(cfg config.ExitGovConfig) *Governor {
	return &Governor{cfg: cfg, windows: make(map[int64]*ring.Window)}
}

func (g *Governor) windowFor(tradeID int64) *ring.Window {
	w, ok := g.windows[tradeID]
	if !ok {
		w = ring.New(g.cfg.SuppressionWindow, 0)
		g.windows[tradeID] = w
	}
	return w
}

// Evaluate runs the full suppression ladder and escape hatch for one tick.
func (g *Governor) Evaluate(state *models.ExitGovernorState, intent Intent, in PositionInputs, now time.Time) Decision {
	costTarget := (g.cfg.EntryFeesPct + g.cfg.ExitFeesPct + g.cfg.SlippagePct) * g.cfg.AmortizationFactor * in.SizeUSD

	feeVelocity := in.EstimatedFeeIntensity * in.SizeUSD
	if in.ActualFeeVelocity != nil {
		feeVelocity = *in.ActualFeeVelocity
	}
	state.FeeVelocityUSDPerHour = feeVelocity

	feesAccrued := in.HoldTime.Hours() * in.EstimatedFeeIntensity * in.SizeUSD * in.PositionShare
	if in.ActualFeeVelocity != nil {
		feesAccrued = in.HoldTime.Hours() * feeVelocity
	}

	var amortizationPct float64
	if costTarget > 0 {
		amortizationPct = feesAccrued / costTarget * 100
	}

	timeToTarget := models.InfiniteDuration
	if feeVelocity > g.cfg.MinFeeVelocity {
		remaining := costTarget - feesAccrued
		if remaining <= 0 {
			timeToTarget = 0
		} else {
			timeToTarget = time.Duration(remaining / feeVelocity * float64(time.Hour))
		}
	}
	state.TimeToCostTarget = timeToTarget

	economicStale := timeToTarget > g.cfg.MaxTimeToAmortize
	if economicStale {
		state.StalenessStreak++
	} else {
		state.StalenessStreak = 0
	}

	d := Decision{
		AmortizationPct:    amortizationPct,
		AmortizationBucket: bucket(amortizationPct),
		TimeToCostTarget:   timeToTarget,
		EconomicStale:      economicStale,
	}

	if intent.Critical {
		d.Execute = true
		return d
	}

	reason := g.suppressionReason(amortizationPct, in)
	if reason == "" {
		d.Execute = true
		return d
	}

	d.Suppressed = true
	d.SuppressReason = reason
	g.recordSuppression(state, intent, now)

	if forced, forcedReason := g.escapeHatch(state, now, economicStale); forced {
		d.Execute = true
		d.Forced = true
		d.ForcedReason = forcedReason
		state.State = models.ExitForcedPending
	}

	return d
}

// suppressionReason applies the four rules in order; the first that fires
// wins.
func (g *Governor) suppressionReason(amortizationPct float64, in PositionInputs) string {
	if amortizationPct < 100 {
		return ReasonCostNotAmortized
	}
	if in.HoldTime < g.cfg.MinHold {
		return ReasonMinHold
	}
	if in.GlobalRegimeDefense {
		return ReasonDefenseMode
	}
	if in.HoldModeActive {
		return ReasonHoldMode
	}
	return ""
}

// recordSuppression increments the rolling counter and, on the first
// suppression for this exit intent, starts the TTL countdown.
func (g *Governor) recordSuppression(state *models.ExitGovernorState, intent Intent, now time.Time) {
	w := g.windowFor(state.TradeID)
	w.Record(now)
	state.SuppressionsInWindow = w.Count(now)

	if state.FirstTrigger == nil {
		t := now
		state.FirstTrigger = &t
		state.State = models.ExitTriggered
	}
}

// escapeHatch forces execution bypassing suppression (except critical-
// safety, which already exits upstream) on TTL expiry, suppression-count
// overflow, or two consecutive economically-stale evaluations.
func (g *Governor) escapeHatch(state *models.ExitGovernorState, now time.Time, economicStale bool) (bool, string) {
	if state.FirstTrigger != nil && now.Sub(*state.FirstTrigger) >= g.cfg.ExitTTL {
		return true, "exit_ttl_elapsed"
	}
	if state.SuppressionsInWindow >= g.cfg.MaxSuppressions {
		return true, "max_suppressions_reached"
	}
	if economicStale && state.StalenessStreak >= 2 {
		return true, "economic_staleness"
	}
	return false, ""
}

func bucket(pct float64) string {
	switch {
	case pct >= 100:
		return "green"
	case pct >= 50:
		return "yellow"
	default:
		return "red"
	}
}
