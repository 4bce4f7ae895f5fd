// Package congestion implements the Congestion Governor (spec §4.7): a
// rolling aggregate of recent network/broadcast samples that throttles or
// blocks trading when the chain is under observed stress.
package congestion

import (
	"sync"
	"time"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/pkg/models"
)

// Governor holds the rolling sample buffer and a short-lived cached
// aggregate, mirroring the teacher's RateLimiter cleanup-on-access idiom
// generalized in internal/ring but specialized here since samples carry
// values, not just timestamps.
type Governor struct {
	mu      sync.Mutex
	cfg     config.CongestionConfig
	samples []models.CongestionSample

	cached    models.CongestionVerdict
	cachedAt  time.Time
	hasCached bool
}

func New(cfg config.CongestionConfig) *Governor {
	return &Governor{cfg: cfg}
}

// Record appends a sample and compacts anything outside the window.
func (g *Governor) Record(s models.CongestionSample) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.samples = append(g.samples, s)
	g.compactLocked(s.Timestamp)
}

func (g *Governor) compactLocked(now time.Time) {
	cutoff := now.Add(-g.cfg.Window)
	i := 0
	for i < len(g.samples) && g.samples[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		g.samples = append(g.samples[:0], g.samples[i:]...)
	}
	if g.cfg.MaxSamples > 0 && len(g.samples) > g.cfg.MaxSamples {
		excess := len(g.samples) - g.cfg.MaxSamples
		g.samples = append(g.samples[:0], g.samples[excess:]...)
	}
}

// Evaluate returns the current congestion verdict, serving a cached result
// when it is still within AggregateCacheTTL (spec §4.7: "cached aggregates
// expire after 5 s").
func (g *Governor) Evaluate(now time.Time) models.CongestionVerdict {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.hasCached && now.Sub(g.cachedAt) < g.cfg.AggregateCacheTTL {
		return g.cached
	}

	g.compactLocked(now)
	score := g.score()

	v := models.CongestionVerdict{
		Score:              score,
		ComputedAt:         now,
		SizeMultiplier:     1.0,
		ScanFreqMultiplier: 1.0,
	}

	switch {
	case score >= g.cfg.BlockThreshold:
		v.BlockTrading = true
		v.SizeMultiplier = 0
		v.ScanFreqMultiplier = 0
	case score >= g.cfg.HalfSizeThreshold:
		v.SizeMultiplier = interpolate(score, g.cfg.HalfSizeThreshold, g.cfg.BlockThreshold, 0.5, 0)
		v.ScanFreqMultiplier = interpolate(score, g.cfg.HalfSizeThreshold, g.cfg.BlockThreshold, 0.75, 0)
	case score >= g.cfg.ReduceFreqThreshold:
		v.ScanFreqMultiplier = interpolate(score, g.cfg.ReduceFreqThreshold, g.cfg.HalfSizeThreshold, 0.75, 0.75)
	}

	g.cached, g.cachedAt, g.hasCached = v, now, true
	return v
}

// score combines the five normalized metrics as a weighted sum.
func (g *Governor) score() float64 {
	if len(g.samples) == 0 {
		return 0
	}

	var confirmSum, rpcSum, blocktimeSum, pendingSum float64
	var confirmN, rpcN, blocktimeN, pendingN int
	var failN int

	for _, s := range g.samples {
		if s.ConfirmationMs != nil {
			confirmSum += float64(*s.ConfirmationMs)
			confirmN++
		}
		if s.RPCLatencyMs != nil {
			rpcSum += float64(*s.RPCLatencyMs)
			rpcN++
		}
		if s.BlocktimeDeviation != nil {
			blocktimeSum += *s.BlocktimeDeviation
			blocktimeN++
		}
		if s.PendingSigDepth != nil {
			pendingSum += float64(*s.PendingSigDepth)
			pendingN++
		}
		if !s.Success {
			failN++
		}
	}

	confirmNorm := normalize(meanOrZero(confirmSum, confirmN), g.cfg.ConfirmationBaselineMs, g.cfg.ConfirmationMaxMs)
	rpcNorm := normalize(meanOrZero(rpcSum, rpcN), g.cfg.RPCLatencyBaselineMs, g.cfg.RPCLatencyMaxMs)
	blocktimeNorm := normalize(meanOrZero(blocktimeSum, blocktimeN), g.cfg.BlocktimeBaseline, g.cfg.BlocktimeMax)
	pendingNorm := normalize(meanOrZero(pendingSum, pendingN), g.cfg.PendingBaseline, g.cfg.PendingMax)
	failRate := float64(failN) / float64(len(g.samples))

	return confirmNorm*g.cfg.WeightConfirmation +
		failRate*g.cfg.WeightFailRate +
		blocktimeNorm*g.cfg.WeightBlocktime +
		pendingNorm*g.cfg.WeightPending +
		rpcNorm*g.cfg.WeightRPC
}

func meanOrZero(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func normalize(v, baseline, max float64) float64 {
	if max <= baseline {
		return 0
	}
	n := (v - baseline) / (max - baseline)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// interpolate maps score linearly from [loScore, hiScore] onto [loVal, hiVal].
func interpolate(score, loScore, hiScore, loVal, hiVal float64) float64 {
	if hiScore == loScore {
		return loVal
	}
	t := (score - loScore) / (hiScore - loScore)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return loVal + t*(hiVal-loVal)
}
