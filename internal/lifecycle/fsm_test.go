package lifecycle

import (
	"testing"
	"time"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/pkg/models"
)

func goodVerdict() models.MicrostructureVerdict {
	return models.MicrostructureVerdict{Composite: 75}
}

func TestIdleToObserveOnFirstSnapshot(t *testing.T) {
	f := New(config.Default().Lifecycle)
	s := Seed("poolA", false)
	s = f.OnSnapshot(s)
	if s.State != models.StateObserve {
		t.Fatalf("expected OBSERVE, got %s", s.State)
	}
}

func TestObserveToReadyRequiresConsecutiveGoodVerdicts(t *testing.T) {
	f := New(config.Default().Lifecycle)
	s := Seed("poolA", false)
	s = f.OnSnapshot(s)

	s = f.OnVerdict(s, goodVerdict(), 10, 0.05, 10)
	if s.State != models.StateObserve {
		t.Fatalf("expected still OBSERVE after one good verdict, got %s", s.State)
	}
	s = f.OnVerdict(s, goodVerdict(), 10, 0.05, 10)
	if s.State != models.StateReady {
		t.Fatalf("expected READY after two consecutive good verdicts, got %s", s.State)
	}
}

func TestFailingVerdictResetsCounter(t *testing.T) {
	f := New(config.Default().Lifecycle)
	s := Seed("poolA", false)
	s = f.OnSnapshot(s)
	s = f.OnVerdict(s, goodVerdict(), 10, 0.05, 10)
	s = f.OnVerdict(s, models.MicrostructureVerdict{Composite: 10}, 10, 0.05, 10)
	if s.ConsecutiveGood != 0 {
		t.Fatalf("expected counter reset to 0, got %d", s.ConsecutiveGood)
	}
	s = f.OnVerdict(s, goodVerdict(), 10, 0.05, 10)
	if s.State != models.StateObserve {
		t.Fatalf("expected still OBSERVE, counter must restart from zero, got %s", s.State)
	}
}

func TestEnterRejectedOutsideReady(t *testing.T) {
	f := New(config.Default().Lifecycle)
	s := Seed("poolA", false)
	_, err := f.Enter(s, models.EntrySnapshot{})
	if err == nil {
		t.Fatal("expected enter to be rejected from IDLE")
	}
}

func TestFullLifecycleRoundTrip(t *testing.T) {
	f := New(config.Default().Lifecycle)
	now := time.Now()
	s := Seed("poolA", false)
	s = f.OnSnapshot(s)
	s = f.OnVerdict(s, goodVerdict(), 10, 0.05, 10)
	s = f.OnVerdict(s, goodVerdict(), 10, 0.05, 10)

	s, err := f.Enter(s, models.EntrySnapshot{SizeUSD: 100, Timestamp: now})
	if err != nil || s.State != models.StatePositioned {
		t.Fatalf("expected POSITIONED, got state=%s err=%v", s.State, err)
	}

	if _, err := f.Enter(s, models.EntrySnapshot{}); err == nil {
		t.Fatal("expected re-entry while POSITIONED to be rejected")
	}

	s, err = f.Exit(s, "manual", now)
	if err != nil || s.State != models.StateExited {
		t.Fatalf("expected EXITED, got state=%s err=%v", s.State, err)
	}

	s, err = f.ForceCooldown(s, now)
	if err != nil || s.State != models.StateCooldown {
		t.Fatalf("expected COOLDOWN, got state=%s err=%v", s.State, err)
	}
	expectedExpiry := now.Add(config.Default().Lifecycle.CooldownStandard)
	if !s.CooldownExpiry.Equal(expectedExpiry) {
		t.Fatalf("expected expiry %v, got %v", expectedExpiry, s.CooldownExpiry)
	}

	if _, err := f.ExpireCooldown(s, now); err == nil {
		t.Fatal("expected cooldown expiry to be rejected before the timer elapses")
	}

	s, err = f.ExpireCooldown(s, s.CooldownExpiry.Add(time.Second))
	if err != nil || s.State != models.StateIdle {
		t.Fatalf("expected IDLE after cooldown elapses, got state=%s err=%v", s.State, err)
	}
	if s.ConsecutiveGood != 0 || s.Entry != nil || s.Exit != nil {
		t.Fatal("expected all position-specific fields cleared on return to IDLE")
	}
}

func TestMemecoinCooldownDuration(t *testing.T) {
	f := New(config.Default().Lifecycle)
	now := time.Now()
	s := Seed("poolA", true)
	s.State = models.StateExited

	s, err := f.ForceCooldown(s, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := now.Add(config.Default().Lifecycle.CooldownMemecoin)
	if !s.CooldownExpiry.Equal(expected) {
		t.Fatalf("expected memecoin cooldown expiry %v, got %v", expected, s.CooldownExpiry)
	}
}
