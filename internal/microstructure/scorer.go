// Package microstructure computes the per-tick MicrostructureVerdict from a
// pool's Snapshot History: normalized component scores, pool entropy, the
// composite score, and the market-alive gating verdict (spec §4.4).
package microstructure

import (
	"math"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/internal/telemetry"
	"github.com/rawblock/lpagent/pkg/models"
)

// Scorer computes MicrostructureVerdicts from a calibration configuration.
type Scorer struct {
	cfg config.ScorerConfig
}

func New(cfg config.ScorerConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score requires a history of length >= 3 (spec §4.4's stated input floor).
// Callers filter shorter histories for themselves; Score itself does not
// special-case them beyond the formulas degrading to zero/zero-entropy when
// fewer than two snapshots are present, matching the teacher's style of
// pushing input validation to the caller boundary (scanner.ScanRange checks
// vin/vout counts before invoking the heuristics engine).
func (s *Scorer) Score(pool models.PoolAddress, h *telemetry.History) models.MicrostructureVerdict {
	entries := h.Entries()
	n := len(entries)

	v := models.MicrostructureVerdict{
		Pool:          pool,
		SnapshotCount: n,
	}
	if n > 0 {
		v.WindowStart = entries[0].Timestamp
		v.WindowEnd = entries[n-1].Timestamp
	}

	binVelRaw := h.BinVelocity()
	liqFlowRaw := h.LiquidityFlowRatio()
	swapVelRaw := h.SwapsPerSecond()
	feeIntensityRaw := s.feeIntensity(entries)

	v.BinVelocityRaw = binVelRaw
	v.LiquidityFlowRaw = liqFlowRaw
	v.SwapVelocityRaw = swapVelRaw
	v.FeeIntensityRaw = feeIntensityRaw

	v.BinVelocityScore = normalize(binVelRaw, s.cfg.BinVelocityCalib)
	v.LiquidityFlowScore = normalize(liqFlowRaw, s.cfg.LiquidityFlowCalib)
	v.SwapVelocityScore = normalize(swapVelRaw, s.cfg.SwapVelocityCalib)
	v.FeeIntensityScore = normalize(feeIntensityRaw, s.cfg.FeeIntensityCalib)

	v.PoolEntropy = s.entropy(entries)

	v.Composite = v.BinVelocityScore*s.cfg.WeightBinVelocity +
		v.LiquidityFlowScore*s.cfg.WeightLiquidityFlow +
		v.SwapVelocityScore*s.cfg.WeightSwapVelocity +
		v.FeeIntensityScore*s.cfg.WeightFeeIntensity

	v.MarketAlive, v.GatingReasons = s.gate(binVelRaw, swapVelRaw, v.PoolEntropy, liqFlowRaw)

	return v
}

// feeIntensity computes rawFees/liquidityUSD for the most recent window.
func (s *Scorer) feeIntensity(entries []models.BinSnapshot) float64 {
	n := len(entries)
	if n < 2 {
		return 0
	}
	b := entries[n-1]
	if b.LiquidityUSD == 0 {
		return 0
	}
	notional := float64(b.TradeCount) * b.LiquidityUSD / 100.0
	rawFees := (b.FeeRateBps / 10000.0) * notional
	return clampNonNeg(rawFees / b.LiquidityUSD)
}

// entropy blends inventory-ratio variance with mean |Δbin| across history
// (spec §4.4: weights 0.6/0.4).
func (s *Scorer) entropy(entries []models.BinSnapshot) float64 {
	if len(entries) < 2 {
		return 0
	}

	ratios := make([]float64, 0, len(entries))
	for _, e := range entries {
		total := e.InventoryBase + e.InventoryQuote
		if total == 0 {
			ratios = append(ratios, 0.5)
			continue
		}
		ratios = append(ratios, e.InventoryBase/total)
	}
	variance := sampleVariance(ratios)
	varianceComponent := clamp01(variance / s.cfg.EntropyVarianceCalib)

	var sumAbsDelta float64
	for i := 1; i < len(entries); i++ {
		sumAbsDelta += math.Abs(float64(entries[i].ActiveBin - entries[i-1].ActiveBin))
	}
	meanAbsDelta := sumAbsDelta / float64(len(entries)-1)
	binDeltaComponent := clamp01(meanAbsDelta / s.cfg.EntropyBinDeltaCalib)

	e := s.cfg.EntropyWeightVariance*varianceComponent + s.cfg.EntropyWeightBinDelta*binDeltaComponent
	return clamp01(e)
}

// gate evaluates the four floors and returns the market-alive verdict with
// human-legible reasons for every floor that failed (spec §8 property 9).
func (s *Scorer) gate(binVelRaw, swapVelRaw, entropy, liqFlowRaw float64) (bool, []string) {
	var reasons []string

	if binVelRaw < s.cfg.GateBinVelocityFloor {
		reasons = append(reasons, models.GatingReason("bin_velocity", binVelRaw, s.cfg.GateBinVelocityFloor, "<"))
	}
	if swapVelRaw < s.cfg.GateSwapVelocityFloor {
		reasons = append(reasons, models.GatingReason("swap_velocity", swapVelRaw, s.cfg.GateSwapVelocityFloor, "<"))
	}
	if entropy < s.cfg.GateEntropyFloor {
		reasons = append(reasons, models.GatingReason("pool_entropy", entropy, s.cfg.GateEntropyFloor, "<"))
	}
	if liqFlowRaw < s.cfg.GateLiquidityFlowFloor {
		reasons = append(reasons, models.GatingReason("liquidity_flow", liqFlowRaw, s.cfg.GateLiquidityFlowFloor, "<"))
	}

	return len(reasons) == 0, reasons
}

func normalize(raw, calib float64) float64 {
	if calib == 0 {
		return 0
	}
	return clamp(raw/calib*100, 0, 100)
}

func clamp01(v float64) float64  { return clamp(v, 0, 1) }
func clampNonNeg(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sampleVariance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs)-1)
}
