package models

import "time"

// RegimeAggregate is the five-signal snapshot the No-Trade Regime gate
// evaluates each tick (spec §4.6), aggregated by the Scheduler across the
// active pool set's MicrostructureVerdicts.
type RegimeAggregate struct {
	Consistency               float64
	Entropy                   float64
	MigrationDirectionConfidence float64
	LiquidityFlowScore        float64
	VelocityScore             float64
	SentimentScore            float64
	ComputedAt                time.Time
}

// RegimeVerdict is the No-Trade Regime gate's output.
type RegimeVerdict struct {
	Blocked     bool
	Reason      string
	Triggers    []string
	CooldownSec int
	Aggregate   RegimeAggregate
}
