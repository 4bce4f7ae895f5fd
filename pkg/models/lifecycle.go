package models

import "time"

// PoolState is the FSM state for a pool's lifecycle. Represented as a
// closed, Go-native enum rather than a string key (spec §9 redesign flag).
type PoolState int

const (
	StateIdle PoolState = iota
	StateObserve
	StateReady
	StatePositioned
	StateExited
	StateCooldown
)

func (s PoolState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateObserve:
		return "OBSERVE"
	case StateReady:
		return "READY"
	case StatePositioned:
		return "POSITIONED"
	case StateExited:
		return "EXITED"
	case StateCooldown:
		return "COOLDOWN"
	default:
		return "UNKNOWN"
	}
}

// EntrySnapshot records the state of the world at the moment a position
// was opened.
type EntrySnapshot struct {
	Price     float64
	Bin       int64
	SizeUSD   float64
	Verdict   MicrostructureVerdict
	Timestamp time.Time
}

// ExitSnapshot records why and when a position closed.
type ExitSnapshot struct {
	Timestamp time.Time
	Reason    string
}

// PoolLifecycleState is the per-pool FSM record. Fields are present iff the
// current State requires them — see the invariant in spec §3.
type PoolLifecycleState struct {
	Pool             PoolAddress
	State            PoolState
	ConsecutiveGood  int
	Entry            *EntrySnapshot
	Exit             *ExitSnapshot
	CooldownExpiry   time.Time
	IsMemecoin       bool
}
