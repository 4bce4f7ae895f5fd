package models

import "time"

// ExitState is the Exit Governor's own small FSM per position, distinct
// from the pool lifecycle FSM (spec §9: no back-pointers between the two,
// they communicate only through the scheduler's index-keyed tables).
type ExitState int

const (
	ExitHold ExitState = iota
	ExitTriggered
	ExitForcedPending
)

func (s ExitState) String() string {
	switch s {
	case ExitHold:
		return "HOLD"
	case ExitTriggered:
		return "EXIT_TRIGGERED"
	case ExitForcedPending:
		return "FORCED_EXIT_PENDING"
	default:
		return "UNKNOWN"
	}
}

// ExitGovernorState is the per-position bookkeeping the Exit Governor owns.
type ExitGovernorState struct {
	TradeID               int64
	State                 ExitState
	FirstTrigger          *time.Time
	SuppressionsInWindow  int
	FeeVelocityUSDPerHour float64
	TimeToCostTarget      time.Duration // models.InfiniteDuration if velocity <= 0.01
	StalenessStreak       int           // consecutive ticks with economic staleness
}

// InfiniteDuration stands in for "infinite" time-to-cost-target when fee
// velocity is at or below the floor defined in spec §4.9.
const InfiniteDuration = time.Duration(1<<63 - 1)
