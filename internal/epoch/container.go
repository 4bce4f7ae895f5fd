// Package epoch implements the Run Epoch and Reconciliation Seal
// singletons (spec §4.11). Both are constructed once at startup and
// threaded explicitly through the Scheduler and API handler constructors —
// never accessed via a package-level global — per spec §9's
// "initialize-once values guarded by a one-shot container" direction.
package epoch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/lpagent/pkg/models"
)

// OpenPositionSource is the persistence query the reconciliation phase
// runs before the Scheduler begins ticking.
type OpenPositionSource interface {
	OpenPositions(ctx context.Context, runID string) ([]models.Position, error)
}

// Container owns the process-wide RunEpoch and ReconciliationSeal. Each is
// set exactly once; later calls to StartEpoch or Reconcile are no-ops that
// return the already-established value.
type Container struct {
	mu sync.Mutex

	epochOnce sync.Once
	epoch     models.RunEpoch

	sealOnce sync.Once
	seal     models.ReconciliationSeal
}

func New() *Container {
	return &Container{}
}

// StartEpoch chooses or generates a run id and captures starting capital.
// If runID is empty, a new uuid is generated.
func (c *Container) StartEpoch(runID string, startingCapital float64, now time.Time) models.RunEpoch {
	c.epochOnce.Do(func() {
		if runID == "" {
			runID = uuid.New().String()
		}
		c.mu.Lock()
		c.epoch = models.RunEpoch{RunID: runID, StartingCapital: startingCapital, StartedAt: now}
		c.mu.Unlock()
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Epoch returns the established run epoch. Callers must invoke StartEpoch
// first; a zero-value RunEpoch is returned otherwise.
func (c *Container) Epoch() models.RunEpoch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Reconcile examines the persisted set of open positions for the current
// run and locks the authoritative hydration set. Positions found in
// persistence are all authorized; nothing is dropped at this stage — later
// hydration requests outside this set are what gets dropped (spec §4.11).
func (c *Container) Reconcile(ctx context.Context, store OpenPositionSource) (models.ReconciliationSeal, error) {
	var retErr error
	c.sealOnce.Do(func() {
		epoch := c.Epoch()
		positions, err := store.OpenPositions(ctx, epoch.RunID)
		if err != nil {
			retErr = fmt.Errorf("reconciliation query failed: %w", err)
			return
		}
		authorized := make(map[int64]bool, len(positions))
		for _, p := range positions {
			authorized[p.TradeID] = true
		}
		c.mu.Lock()
		c.seal = models.ReconciliationSeal{Sealed: true, AuthorizedTradeIDs: authorized, OpenCount: len(positions)}
		c.mu.Unlock()
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seal, retErr
}

// Seal returns the established reconciliation seal.
func (c *Container) Seal() models.ReconciliationSeal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seal
}

// AuthorizeHydration reports whether a trade id found in persistence but
// requested for hydration after the Seal locked is permitted. Per spec
// §4.11, positions in persistence but not in the Seal are dropped with a
// warning by the caller; this method only answers the authorization
// question.
func (c *Container) AuthorizeHydration(tradeID int64) bool {
	return c.Seal().Authorizes(tradeID)
}
