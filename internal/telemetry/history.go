package telemetry

import (
	"math"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/pkg/models"
)

// History is a bounded per-pool ring of recent BinSnapshots (spec §3).
// Owned exclusively by the scheduler — no locking, matching the
// single-threaded cooperative model of spec §5.
type History struct {
	cfg     config.HistoryConfig
	entries []models.BinSnapshot
}

func NewHistory(cfg config.HistoryConfig) *History {
	return &History{cfg: cfg, entries: make([]models.BinSnapshot, 0, cfg.RingSize)}
}

// Record appends snap if at least MinInterval has passed since the last
// retained sample; otherwise it is a no-op (spec §8 idempotence 8b). The
// oldest entry is evicted when the ring is full.
func (h *History) Record(snap models.BinSnapshot) bool {
	if n := len(h.entries); n > 0 {
		last := h.entries[n-1]
		if snap.Timestamp.Before(last.Timestamp) {
			return false // timestamps must be non-decreasing
		}
		if snap.Timestamp.Sub(last.Timestamp) < h.cfg.MinInterval {
			return false
		}
	}

	if len(h.entries) >= h.cfg.RingSize {
		h.entries = append(h.entries[:0], h.entries[1:]...)
	}
	h.entries = append(h.entries, snap)
	return true
}

// Len returns the number of retained snapshots.
func (h *History) Len() int { return len(h.entries) }

// Entries returns the retained snapshots, oldest first.
func (h *History) Entries() []models.BinSnapshot { return h.entries }

// Last returns the most recent snapshot, if any.
func (h *History) Last() (models.BinSnapshot, bool) {
	if len(h.entries) == 0 {
		return models.BinSnapshot{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// BinVelocity returns |Δactive_bin|/Δt between the two most recent
// snapshots. With exactly 3 snapshots the tie-break in spec §4.4 uses the
// last pair, which is what indexing entries[n-2], entries[n-1] already does.
func (h *History) BinVelocity() float64 {
	n := len(h.entries)
	if n < 2 {
		return 0
	}
	a, b := h.entries[n-2], h.entries[n-1]
	dt := b.Timestamp.Sub(a.Timestamp).Seconds()
	if dt <= 0 {
		return 0
	}
	db := float64(b.ActiveBin - a.ActiveBin)
	v := math.Abs(db) / dt
	return safe(v)
}

// LiquidityFlowRatio returns |ΔliquidityUSD|/liquidityUSD between the two
// most recent snapshots; 0 on a zero denominator.
func (h *History) LiquidityFlowRatio() float64 {
	n := len(h.entries)
	if n < 2 {
		return 0
	}
	a, b := h.entries[n-2], h.entries[n-1]
	if b.LiquidityUSD == 0 {
		return 0
	}
	v := math.Abs(b.LiquidityUSD-a.LiquidityUSD) / b.LiquidityUSD
	return safe(v)
}

// SwapsPerSecond infers swap velocity from observed trade counts between
// the two most recent snapshots.
func (h *History) SwapsPerSecond() float64 {
	n := len(h.entries)
	if n < 2 {
		return 0
	}
	a, b := h.entries[n-2], h.entries[n-1]
	dt := b.Timestamp.Sub(a.Timestamp).Seconds()
	if dt <= 0 {
		return 0
	}
	v := float64(b.TradeCount) / dt
	return safe(v)
}

// FeeIntensity returns rawFees/liquidityUSD over the most recent window,
// approximating rawFees as feeRateBps (in decimal) times observed trade
// notional proxied by liquidityUSD — see microstructure.Score for the
// authoritative computation; this helper exists for callers that only
// need the raw ratio without the full verdict.
func (h *History) FeeIntensity() float64 {
	n := len(h.entries)
	if n < 2 {
		return 0
	}
	b := h.entries[n-1]
	if b.LiquidityUSD == 0 {
		return 0
	}
	rawFees := (b.FeeRateBps / 10000.0) * float64(b.TradeCount) * b.LiquidityUSD / 100.0
	v := rawFees / b.LiquidityUSD
	return safe(v)
}

// safe clamps NaN/Inf to 0 — spec §4.4: "NaN is never emitted — clamp to 0".
func safe(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < 0 {
		return -v // all of the above are magnitudes; guard against sign slip
	}
	return v
}
