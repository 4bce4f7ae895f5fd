// Package lifecycle implements the Pool Lifecycle FSM (spec §4.8): the
// single authority over which state mutations a pool may undergo, with a
// total transition function that rejects illegal transitions rather than
// coercing them.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/pkg/models"
)

// ErrIllegalTransition is returned for any transition attempt the FSM does
// not permit from the current state.
var ErrIllegalTransition = errors.New("lifecycle: illegal transition")

// FSM drives one pool's lifecycle state.
type FSM struct {
	cfg config.LifecycleConfig
}

func New(cfg config.LifecycleConfig) *FSM {
	return &FSM{cfg: cfg}
}

// Seed creates a fresh IDLE record for a pool that has never been observed.
func Seed(pool models.PoolAddress, isMemecoin bool) models.PoolLifecycleState {
	return models.PoolLifecycleState{Pool: pool, State: models.StateIdle, IsMemecoin: isMemecoin}
}

// OnSnapshot transitions IDLE → OBSERVE on the first snapshot pushed for a
// pool. A no-op for every other state.
func (f *FSM) OnSnapshot(s models.PoolLifecycleState) models.PoolLifecycleState {
	if s.State == models.StateIdle {
		s.State = models.StateObserve
	}
	return s
}

// OnVerdict feeds one MicrostructureVerdict through the OBSERVE → READY
// gate. The consecutive-good counter resets whenever the verdict fails any
// criterion; it never decays across calls in any other state.
func (f *FSM) OnVerdict(s models.PoolLifecycleState, v models.MicrostructureVerdict, whaleImpact, migration float64, crowdCount int) models.PoolLifecycleState {
	if s.State != models.StateObserve {
		return s
	}

	passes := v.Composite >= f.cfg.EntryCompositeThreshold &&
		whaleImpact <= f.cfg.EntryWhaleImpactCeiling &&
		migration < f.cfg.EntryMigrationCeiling &&
		crowdCount >= f.cfg.EntryCrowdFloor

	if !passes {
		s.ConsecutiveGood = 0
		return s
	}

	s.ConsecutiveGood++
	if s.ConsecutiveGood >= f.cfg.ConsecutiveGoodRequired {
		s.State = models.StateReady
	}
	return s
}

// Enter executes a single entry. Re-entry attempts while not in READY are
// rejected per spec §4.8 ("no DCA, no stacking").
func (f *FSM) Enter(s models.PoolLifecycleState, entry models.EntrySnapshot) (models.PoolLifecycleState, error) {
	if s.State != models.StateReady {
		return s, fmt.Errorf("%w: enter requires READY, pool %s is %s", ErrIllegalTransition, s.Pool, s.State)
	}
	s.State = models.StatePositioned
	s.Entry = &entry
	return s, nil
}

// Exit transitions POSITIONED → EXITED. Exit is always total; partial exit
// does not exist in this FSM.
func (f *FSM) Exit(s models.PoolLifecycleState, reason string, at time.Time) (models.PoolLifecycleState, error) {
	if s.State != models.StatePositioned {
		return s, fmt.Errorf("%w: exit requires POSITIONED, pool %s is %s", ErrIllegalTransition, s.Pool, s.State)
	}
	s.State = models.StateExited
	s.Exit = &models.ExitSnapshot{Timestamp: at, Reason: reason}
	return s, nil
}

// ForceCooldown is called immediately after Exit. Cooldown cannot be
// shortened once set.
func (f *FSM) ForceCooldown(s models.PoolLifecycleState, now time.Time) (models.PoolLifecycleState, error) {
	if s.State != models.StateExited {
		return s, fmt.Errorf("%w: cooldown requires EXITED, pool %s is %s", ErrIllegalTransition, s.Pool, s.State)
	}
	d := f.cfg.CooldownStandard
	if s.IsMemecoin {
		d = f.cfg.CooldownMemecoin
	}
	expiry := now.Add(d)
	if !s.CooldownExpiry.IsZero() && expiry.Before(s.CooldownExpiry) {
		expiry = s.CooldownExpiry
	}
	s.State = models.StateCooldown
	s.CooldownExpiry = expiry
	return s, nil
}

// ExpireCooldown transitions COOLDOWN → IDLE once the timer has elapsed,
// clearing all position-specific fields and resetting the validation
// counter.
func (f *FSM) ExpireCooldown(s models.PoolLifecycleState, now time.Time) (models.PoolLifecycleState, error) {
	if s.State != models.StateCooldown {
		return s, fmt.Errorf("%w: cooldown expiry requires COOLDOWN, pool %s is %s", ErrIllegalTransition, s.Pool, s.State)
	}
	if now.Before(s.CooldownExpiry) {
		return s, fmt.Errorf("%w: cooldown for pool %s has not elapsed", ErrIllegalTransition, s.Pool)
	}
	s.State = models.StateIdle
	s.ConsecutiveGood = 0
	s.Entry = nil
	s.Exit = nil
	s.CooldownExpiry = time.Time{}
	return s, nil
}
