package models

import "time"

// MicrostructureVerdict is computed per pool per tick by the Microstructure
// Scorer from a SnapshotHistory of length >= 3.
type MicrostructureVerdict struct {
	Pool PoolAddress

	BinVelocityScore    float64 // normalized [0,100]
	LiquidityFlowScore  float64
	SwapVelocityScore   float64
	FeeIntensityScore   float64

	BinVelocityRaw   float64 // |Δactive_bin|/Δt
	LiquidityFlowRaw float64 // |ΔliquidityUSD|/liquidityUSD
	SwapVelocityRaw  float64 // swaps/s
	FeeIntensityRaw  float64 // rawFees/liquidityUSD

	PoolEntropy float64 // [0,1]
	Composite   float64 // [0,100]

	MarketAlive    bool
	GatingReasons  []string

	SnapshotCount int
	WindowStart   time.Time
	WindowEnd     time.Time
}

// GatingReason names exactly one floor, with the observed value and the
// threshold it failed against — spec §8 property 9 requires this round-trip.
func GatingReason(name string, observed, threshold float64, cmp string) string {
	return name + ": observed=" + formatFloat(observed) + " " + cmp + " threshold=" + formatFloat(threshold)
}
