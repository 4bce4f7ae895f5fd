package epoch

import (
	"context"
	"testing"
	"time"

	"github.com/rawblock/lpagent/pkg/models"
)

type fakeOpenPositions struct {
	positions []models.Position
	err       error
	calls     int
}

func (f *fakeOpenPositions) OpenPositions(ctx context.Context, runID string) ([]models.Position, error) {
	f.calls++
	return f.positions, f.err
}

func TestStartEpochOnlyRunsOnce(t *testing.T) {
	c := New()
	first := c.StartEpoch("", 1000, time.Now())
	second := c.StartEpoch("ignored-run-id", 9999, time.Now().Add(time.Hour))

	if first.RunID != second.RunID {
		t.Fatalf("expected run id to stay fixed across calls, got %s then %s", first.RunID, second.RunID)
	}
	if second.StartingCapital != 1000 {
		t.Fatalf("expected starting capital from the first call to stick, got %f", second.StartingCapital)
	}
}

func TestReconcileSealsAuthorizedTradeIDs(t *testing.T) {
	c := New()
	c.StartEpoch("run1", 1000, time.Now())
	store := &fakeOpenPositions{positions: []models.Position{{TradeID: 1}, {TradeID: 2}}}

	seal, err := c.Reconcile(context.Background(), store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seal.Sealed || seal.OpenCount != 2 {
		t.Fatalf("expected sealed set of 2, got %+v", seal)
	}
	if !c.AuthorizeHydration(1) || !c.AuthorizeHydration(2) {
		t.Fatal("expected both trade ids authorized")
	}
	if c.AuthorizeHydration(3) {
		t.Fatal("expected trade id 3 to be unauthorized")
	}
}

func TestReconcileOnlyQueriesOnce(t *testing.T) {
	c := New()
	c.StartEpoch("run1", 1000, time.Now())
	store := &fakeOpenPositions{positions: []models.Position{{TradeID: 1}}}

	c.Reconcile(context.Background(), store)
	c.Reconcile(context.Background(), store)

	if store.calls != 1 {
		t.Fatalf("expected exactly one reconciliation query, got %d", store.calls)
	}
}
