package models

import "time"

// CongestionSample is one observed network/broadcast outcome backing the
// Congestion Governor's rolling window (spec §4.7, up to ~500 samples).
// Any metric pointer left nil is excluded from that metric's aggregate
// rather than treated as zero.
type CongestionSample struct {
	Timestamp          time.Time
	ConfirmationMs     *int64
	Success            bool
	RPCLatencyMs       *int64
	BlocktimeDeviation *float64
	PendingSigDepth    *int
}

// CongestionVerdict is the governor's computed aggregate plus the trading
// directives it implies.
type CongestionVerdict struct {
	Score             float64
	BlockTrading       bool
	SizeMultiplier     float64
	ScanFreqMultiplier float64
	ComputedAt         time.Time
}
