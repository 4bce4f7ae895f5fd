package models

import "time"

// BinLiquidity describes the liquidity and refill behavior observed for a
// single bin near the active price.
type BinLiquidity struct {
	BinIndex          int64
	LiquidityUSD      float64
	RefillTimeMillis  int64
}

// BinSnapshot is a point-in-time observation of a pool's bin state.
// The Telemetry Fetcher never fabricates a partial snapshot: any field
// missing from the source is a failure, not a zero value wearing a mask.
type BinSnapshot struct {
	Pool             PoolAddress
	Timestamp        time.Time
	ActiveBin        int64
	LiquidityUSD     float64
	InventoryBase    float64
	InventoryQuote   float64
	FeeRateBps       float64
	TradeCount       int
	Bins             []BinLiquidity
}

// Neighborhood returns the bin liquidity entries within span bins of the
// active bin, sorted as provided by the fetcher.
func (s BinSnapshot) Neighborhood(span int64) []BinLiquidity {
	out := make([]BinLiquidity, 0, len(s.Bins))
	for _, b := range s.Bins {
		d := b.BinIndex - s.ActiveBin
		if d < 0 {
			d = -d
		}
		if d <= span {
			out = append(out, b)
		}
	}
	return out
}

// MeanRefillSeconds averages RefillTimeMillis across the recorded bins,
// in seconds. Used by the Cycle-Phase Classifier's latency signal.
func (s BinSnapshot) MeanRefillSeconds() float64 {
	if len(s.Bins) == 0 {
		return 0
	}
	var sum float64
	for _, b := range s.Bins {
		sum += float64(b.RefillTimeMillis) / 1000.0
	}
	return sum / float64(len(s.Bins))
}

// InvalidTelemetryKind enumerates why a fetch attempt failed to produce a
// usable snapshot.
type InvalidTelemetryKind string

const (
	TelemetryMissingField   InvalidTelemetryKind = "MISSING_FIELD"
	TelemetryTimeout        InvalidTelemetryKind = "TIMEOUT"
	TelemetryPreflightFail  InvalidTelemetryKind = "PREFLIGHT_FAIL"
	TelemetryDecodeError    InvalidTelemetryKind = "DECODE_ERROR"
)

// InvalidTelemetry is the typed failure returned instead of a BinSnapshot
// when any required field is unavailable.
type InvalidTelemetry struct {
	Kind InvalidTelemetryKind
	Pool PoolAddress
	Err  error
}

func (f *InvalidTelemetry) Error() string {
	if f.Err != nil {
		return string(f.Kind) + ": " + string(f.Pool) + ": " + f.Err.Error()
	}
	return string(f.Kind) + ": " + string(f.Pool)
}

func (f *InvalidTelemetry) Unwrap() error { return f.Err }
