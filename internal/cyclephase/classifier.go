// Package cyclephase implements the refill-latency cycle FSM from spec
// §4.5 — a simpler, separate state machine over recent snapshot history
// that identifies whether a pool is in a tradeable "refill cycle" window.
package cyclephase

import (
	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/internal/telemetry"
)

// Phase is the cycle-phase FSM state.
type Phase int

const (
	PhaseNone Phase = iota
	PhasePre
	PhaseActive
	PhaseEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "NONE"
	case PhasePre:
		return "PRE"
	case PhaseActive:
		return "ACTIVE"
	case PhaseEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// Classification is the result of classifying a pool's recent latency
// history, plus the entry/exit directives derived from it.
type Classification struct {
	Phase         Phase
	CurrentLatency float64
	PeakLatency    float64
	EntryPermitted bool
	ExitMandated   bool
	ExitReason     string
}

// Classify inspects the mean-refill-time series in history (spec §4.5's
// "latency is the mean bin refill time in seconds") plus the migration and
// max-bins-crossed signals supplied by the caller, and returns the current
// phase with its entry/exit directives.
func Classify(cfg config.CyclePhaseConfig, h *telemetry.History, migration float64, maxBinsCrossed int) Classification {
	entries := h.Entries()
	latencies := make([]float64, len(entries))
	for i, e := range entries {
		latencies[i] = e.MeanRefillSeconds()
	}

	c := Classification{Phase: PhaseNone}
	if len(latencies) == 0 {
		return c
	}

	current := latencies[len(latencies)-1]
	peak := latencies[0]
	for _, v := range latencies {
		if v > peak {
			peak = v
		}
	}
	c.CurrentLatency = current
	c.PeakLatency = peak

	switch {
	case isEnd(cfg, current, peak):
		c.Phase = PhaseEnd
	case isActive(cfg, current):
		c.Phase = PhaseActive
	case isPre(cfg, latencies, current):
		c.Phase = PhasePre
	default:
		c.Phase = PhaseNone
	}

	c.EntryPermitted = (c.Phase == PhasePre || c.Phase == PhaseActive) &&
		migration < cfg.EntryMigrationBlock &&
		maxBinsCrossed <= cfg.EntryMaxBinsBlock

	c.ExitMandated, c.ExitReason = exitMandate(cfg, c.Phase, migration, maxBinsCrossed, current, peak)

	return c
}

func isPre(cfg config.CyclePhaseConfig, latencies []float64, current float64) bool {
	if len(latencies) < 3 {
		return false
	}
	if current < cfg.PreLatencyFloor {
		return false
	}
	n := len(latencies)
	for i := n - 3; i < n-1; i++ {
		if latencies[i+1] <= latencies[i] {
			return false
		}
	}
	return true
}

func isActive(cfg config.CyclePhaseConfig, current float64) bool {
	return current >= cfg.ActiveLow && current <= cfg.ActiveHigh
}

func isEnd(cfg config.CyclePhaseConfig, current, peak float64) bool {
	return peak >= cfg.EndPeakFloor && current <= cfg.EndDropRatio*peak
}

func exitMandate(cfg config.CyclePhaseConfig, phase Phase, migration float64, maxBinsCrossed int, current, peak float64) (bool, string) {
	if phase == PhaseEnd {
		return true, "cycle phase END"
	}
	if migration >= cfg.ExitMigrationForce {
		return true, "migration exceeds exit force floor"
	}
	if maxBinsCrossed >= cfg.ExitMaxBinsForce {
		return true, "max bins crossed exceeds exit force floor"
	}
	if peak >= cfg.ActiveLow && current < peak*cfg.EndDropRatio {
		return true, "latency collapse from peak"
	}
	return false, ""
}
