// Package scheduler implements the single-threaded cooperative tick loop
// (spec §4.12) that ties every other component together: discovery,
// telemetry, scoring, the two FSMs, the regime and congestion governors,
// and the execution engine. Grounded on the teacher's
// mempool.Poller.Run(ctx) — a time.Ticker plus select over ctx.Done(),
// with an explicit per-tick cap on how much work is attempted.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/internal/congestion"
	"github.com/rawblock/lpagent/internal/cyclephase"
	"github.com/rawblock/lpagent/internal/exitgov"
	"github.com/rawblock/lpagent/internal/execution"
	"github.com/rawblock/lpagent/internal/identity"
	"github.com/rawblock/lpagent/internal/lifecycle"
	"github.com/rawblock/lpagent/internal/microstructure"
	"github.com/rawblock/lpagent/internal/regime"
	"github.com/rawblock/lpagent/internal/telemetry"
	"github.com/rawblock/lpagent/pkg/models"
)

// PoolSignals carries the per-pool signals no package in this tree derives
// on its own — whale impact, migration direction, bin-crossing depth, crowd
// count, and (optionally) a directly observed fee velocity. These are
// external collaborator data per spec §6; a concrete implementation (an
// on-chain indexer, a crowd-tracking service) lives outside this module.
type PoolSignals struct {
	WhaleImpact           float64
	Migration             float64
	MaxBinsCrossed        int
	CrowdCount            int
	ActualFeeVelocityUSDPerHour *float64
}

// PoolSignalSource supplies PoolSignals for one pool at tick time.
type PoolSignalSource interface {
	Signals(ctx context.Context, pool models.PoolAddress) (PoolSignals, error)
}

// NetworkSampleSource supplies one Congestion Governor sample per tick —
// the chain-level confirmation/fail-rate/RPC-latency observation the
// governor's rolling window is built from.
type NetworkSampleSource interface {
	Sample(ctx context.Context) (models.CongestionSample, error)
}

// TickEvent is the run-status snapshot broadcast to dashboard clients after
// every tick (spec §4.12 step 7) — a typed event rather than a raw byte
// payload, so transport (internal/api's Hub) never needs to know this
// package's internal aggregate types.
type TickEvent struct {
	RunID               string    `json:"runId"`
	At                  time.Time `json:"at"`
	PositionedCount     int       `json:"positionedCount"`
	HoldModeActive      bool      `json:"holdModeActive"`
	CongestionScore     float64   `json:"congestionScore"`
	CongestionBlocked   bool      `json:"congestionBlocked"`
	RegimeBlocked       bool      `json:"regimeBlocked"`
	RegimeReason        string    `json:"regimeReason"`
	PositionsAlignedPct float64   `json:"positionsAlignedPct"`
}

// Broadcaster fans a TickEvent out to connected dashboard clients. Optional:
// a nil Broadcaster simply means no one is listening for live updates.
type Broadcaster interface {
	Broadcast(TickEvent)
}

// HydrationAuthority is the reconciliation seal's per-trade authorization
// check (internal/epoch.Container.AuthorizeHydration), consulted once per
// persisted open position before Hydrate re-admits it to runtime state.
type HydrationAuthority interface {
	AuthorizeHydration(tradeID int64) bool
}

// poolRuntime is the scheduler's private per-pool bookkeeping, separate
// from the lifecycle FSM's own record because it holds collaborator
// results (history, exit-governor state, trade id) the FSM itself must
// not reach into (spec §9: no back-pointers between the two FSMs).
type poolRuntime struct {
	history        *telemetry.History
	lastSnapshot   models.BinSnapshot
	lifecycle      models.PoolLifecycleState
	tradeID        int64
	exitState      models.ExitGovernorState
	lastClassified cyclephase.Classification
}

// Scheduler owns the tick loop and every pool's runtime bookkeeping.
type Scheduler struct {
	cfg config.Config

	funnel    FunnelRunner
	resolver  *identity.Resolver
	fetcher   *telemetry.Fetcher
	scorer    *microstructure.Scorer
	regime    *regime.Gate
	congestion *congestion.Governor
	lifecycleFSM *lifecycle.FSM
	exitGov   *exitgov.Governor
	execEngine *execution.Engine

	signals     PoolSignalSource
	network     NetworkSampleSource
	broadcaster Broadcaster

	runID           string
	startingCapital float64
	holdModeActive  bool

	pools          map[models.PoolAddress]*poolRuntime
	lastCongestion models.CongestionVerdict
	lastRegime     models.RegimeVerdict
}

// SetHoldMode toggles the operator-controlled hold-mode suppression input
// consulted by the Exit Governor. Set from the dashboard API.
func (s *Scheduler) SetHoldMode(active bool) {
	s.holdModeActive = active
}

// HoldMode reports the current operator hold-mode setting.
func (s *Scheduler) HoldMode() bool {
	return s.holdModeActive
}

// Status summarizes the scheduler's state for the dashboard API — a single
// read the routes layer can serve without reaching into tick internals.
type Status struct {
	RunID               string
	HoldModeActive      bool
	PositionedCount     int
	CongestionScore     float64
	CongestionBlocked   bool
	RegimeBlocked       bool
	RegimeReason        string
	PositionsAlignedPct float64
}

// Status returns a snapshot of the scheduler's state as of its last tick.
// PositionsAlignedPct is computed live (spec's resolved Open Question
// decision: not cached at entry time) as the fraction of currently
// positioned pools whose most recent cycle-phase classification did not
// mandate an exit — i.e. still aligned with the regime that admitted them.
func (s *Scheduler) Status() Status {
	positioned := 0
	aligned := 0
	for _, rt := range s.pools {
		if rt.lifecycle.State != models.StatePositioned {
			continue
		}
		positioned++
		if !rt.lastClassified.ExitMandated {
			aligned++
		}
	}
	pct := 0.0
	if positioned > 0 {
		pct = float64(aligned) / float64(positioned)
	}
	return Status{
		RunID:               s.runID,
		HoldModeActive:      s.holdModeActive,
		PositionedCount:     positioned,
		CongestionScore:     s.lastCongestion.Score,
		CongestionBlocked:   s.lastCongestion.BlockTrading,
		RegimeBlocked:       s.lastRegime.Blocked,
		RegimeReason:        s.lastRegime.Reason,
		PositionsAlignedPct: pct,
	}
}

// FunnelRunner is the discovery collaborator — narrowed to what the
// scheduler needs so tests can supply a fake candidate list directly.
type FunnelRunner interface {
	Run(ctx context.Context) []models.ScoredCandidate
}

// Deps bundles every collaborator the scheduler is constructed with.
type Deps struct {
	Funnel     FunnelRunner
	Resolver   *identity.Resolver
	Fetcher    *telemetry.Fetcher
	Scorer     *microstructure.Scorer
	Regime     *regime.Gate
	Congestion *congestion.Governor
	Lifecycle  *lifecycle.FSM
	ExitGov    *exitgov.Governor
	Execution  *execution.Engine
	Signals     PoolSignalSource
	Network     NetworkSampleSource
	Broadcaster Broadcaster
}

func New(cfg config.Config, runID string, startingCapital float64, d Deps) *Scheduler {
	return &Scheduler{
		cfg: cfg, runID: runID, startingCapital: startingCapital,
		funnel: d.Funnel, resolver: d.Resolver, fetcher: d.Fetcher, scorer: d.Scorer,
		regime: d.Regime, congestion: d.Congestion, lifecycleFSM: d.Lifecycle,
		exitGov: d.ExitGov, execEngine: d.Execution,
		signals: d.Signals, network: d.Network, broadcaster: d.Broadcaster,
		pools: make(map[models.PoolAddress]*poolRuntime),
	}
}

// Run drives the tick loop until ctx is cancelled, mirroring the teacher's
// ticker/select pattern.
func (s *Scheduler) Run(ctx context.Context) {
	log.Println("[Scheduler] starting tick loop")
	ticker := time.NewTicker(s.cfg.Scheduler.BaseTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Scheduler] stopping tick loop")
			return
		case <-ticker.C:
			s.Tick(ctx, time.Now())
		}
	}
}

// Tick runs the seven numbered steps from spec §4.12 exactly once. Exported
// so tests (and an operator CLI) can single-step it deterministically.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	congestionVerdict := s.evaluateCongestion(ctx, now)
	s.lastCongestion = congestionVerdict

	discoverCtx, cancel := context.WithTimeout(ctx, s.cfg.Scheduler.DiscoveryTimeout)
	candidates := s.funnel.Run(discoverCtx)
	cancel()

	activeSet := s.buildActiveSet(candidates)

	verdicts := make(map[models.PoolAddress]models.MicrostructureVerdict, len(activeSet))
	classifications := make(map[models.PoolAddress]cyclephase.Classification, len(activeSet))

	for _, pool := range activeSet {
		rt := s.runtimeFor(pool)
		snap, ok := s.fetchSnapshot(ctx, pool)
		if !ok {
			continue
		}
		rt.history.Record(snap)
		rt.lastSnapshot = snap

		sig, err := s.fetchSignals(ctx, pool)
		if err != nil {
			log.Printf("[Scheduler] pool %s: signal source failed: %v", pool, err)
			sig = PoolSignals{}
		}

		classification := cyclephase.Classify(s.cfg.CyclePhase, rt.history, sig.Migration, sig.MaxBinsCrossed)
		classifications[pool] = classification
		rt.lastClassified = classification

		rt.lifecycle = s.lifecycleFSM.OnSnapshot(rt.lifecycle)

		if rt.history.Len() < s.cfg.Scheduler.MinHistoryForVerdict {
			continue
		}
		verdict := s.scorer.Score(pool, rt.history)
		verdicts[pool] = verdict

		rt.lifecycle = s.lifecycleFSM.OnVerdict(rt.lifecycle, verdict, sig.WhaleImpact, sig.Migration, sig.CrowdCount)
	}

	regimeVerdict := s.evaluateRegime(ctx, verdicts, now)
	s.lastRegime = regimeVerdict

	openPositions := s.countPositioned()
	for _, pool := range activeSet {
		rt := s.pools[pool]
		if rt == nil || rt.lifecycle.State != models.StateReady {
			continue
		}
		s.attemptEntry(ctx, pool, rt, verdicts[pool], classifications[pool], regimeVerdict, congestionVerdict, &openPositions, now)
	}

	for pool, rt := range s.pools {
		if rt.lifecycle.State != models.StatePositioned {
			continue
		}
		s.evaluateExit(ctx, pool, rt, verdicts[pool], classifications[pool], regimeVerdict, now)
	}

	s.advanceCooldowns(now)

	log.Printf("[Scheduler] tick complete: active=%d positioned=%d congestion=%.2f regimeBlocked=%v",
		len(activeSet), openPositions, congestionVerdict.Score, regimeVerdict.Blocked)

	if s.broadcaster != nil {
		status := s.Status()
		s.broadcaster.Broadcast(TickEvent{
			RunID: s.runID, At: now,
			PositionedCount: status.PositionedCount, HoldModeActive: status.HoldModeActive,
			CongestionScore: status.CongestionScore, CongestionBlocked: status.CongestionBlocked,
			RegimeBlocked: status.RegimeBlocked, RegimeReason: status.RegimeReason,
			PositionsAlignedPct: status.PositionsAlignedPct,
		})
	}
}

// Hydrate loads positions open from a prior run into runtime state at
// startup, so the in-memory active set matches the reconciliation seal
// (spec §4.11). Each position is checked individually against auth; one
// the seal does not authorize is dropped with a warning rather than
// hydrated. If fewer positions hydrate than the seal authorized, a
// seal-authorized trade id went missing from persistence between
// reconciliation and hydration — fatal, not a warning, since the agent
// would otherwise manage less capital than the seal accounts for.
func (s *Scheduler) Hydrate(positions []models.Position, seal models.ReconciliationSeal, auth HydrationAuthority) {
	loaded := 0
	for _, p := range positions {
		if !auth.AuthorizeHydration(p.TradeID) {
			log.Printf("[Scheduler] dropping unauthorized persisted position: trade %d pool %s", p.TradeID, p.Pool)
			continue
		}
		rt := s.runtimeFor(p.Pool)
		rt.tradeID = p.TradeID
		rt.lifecycle.Pool = p.Pool
		rt.lifecycle.State = models.StatePositioned
		rt.lifecycle.Entry = &models.EntrySnapshot{
			Price: p.EntryPrice, Bin: p.CurrentBin, SizeUSD: p.SizeUSD, Timestamp: p.EntryTimestamp,
		}
		loaded++
		log.Printf("[Scheduler] hydrated trade %d for pool %s from reconciliation seal", p.TradeID, p.Pool)
	}

	if want := len(seal.AuthorizedTradeIDs); loaded != want {
		log.Fatalf("fatal-reconciliation: seal authorized %d open positions but only %d hydrated into runtime state", want, loaded)
	}
}

func (s *Scheduler) runtimeFor(pool models.PoolAddress) *poolRuntime {
	rt, ok := s.pools[pool]
	if !ok {
		rt = &poolRuntime{
			history:   telemetry.NewHistory(s.cfg.History),
			lifecycle: lifecycle.Seed(pool, false),
		}
		s.pools[pool] = rt
	}
	return rt
}

// buildActiveSet is candidates ∪ currently-positioned pools (spec §4.12
// step 2), deduplicated.
func (s *Scheduler) buildActiveSet(candidates []models.ScoredCandidate) []models.PoolAddress {
	seen := make(map[models.PoolAddress]bool)
	out := make([]models.PoolAddress, 0, len(candidates)+len(s.pools))
	for _, c := range candidates {
		if !seen[c.Pool] {
			seen[c.Pool] = true
			out = append(out, c.Pool)
		}
	}
	for pool, rt := range s.pools {
		if rt.lifecycle.State == models.StatePositioned && !seen[pool] {
			seen[pool] = true
			out = append(out, pool)
		}
	}
	return out
}

func (s *Scheduler) fetchSnapshot(ctx context.Context, pool models.PoolAddress) (models.BinSnapshot, bool) {
	identCtx, cancel := context.WithTimeout(ctx, s.cfg.Scheduler.TelemetryTimeout)
	defer cancel()
	ident, err := s.resolver.Resolve(identCtx, pool, models.IdentityHints{})
	if err != nil {
		log.Printf("[Scheduler] pool %s: identity resolution failed: %v", pool, err)
		return models.BinSnapshot{}, false
	}

	fetchCtx, cancel2 := context.WithTimeout(ctx, s.cfg.Scheduler.TelemetryTimeout)
	defer cancel2()
	snap, err := s.fetcher.Fetch(fetchCtx, ident, telemetry.CommitmentConfirmed)
	if err != nil {
		log.Printf("[Scheduler] pool %s: telemetry fetch failed: %v", pool, err)
		return models.BinSnapshot{}, false
	}
	return snap, true
}

func (s *Scheduler) fetchSignals(ctx context.Context, pool models.PoolAddress) (PoolSignals, error) {
	if s.signals == nil {
		return PoolSignals{}, nil
	}
	pairCtx, cancel := context.WithTimeout(ctx, s.cfg.Scheduler.PairOverviewTimeout)
	defer cancel()
	return s.signals.Signals(pairCtx, pool)
}

func (s *Scheduler) evaluateCongestion(ctx context.Context, now time.Time) models.CongestionVerdict {
	if s.network != nil {
		if sample, err := s.network.Sample(ctx); err == nil {
			s.congestion.Record(sample)
		} else {
			log.Printf("[Scheduler] network sample source failed: %v", err)
		}
	}
	return s.congestion.Evaluate(now)
}

// evaluateRegime builds the market-wide RegimeAggregate by averaging the
// signals already computed for this tick's active set (spec §4.6: the
// regime gate evaluates "the aggregate state of the active pool set", not
// any single pool in isolation).
func (s *Scheduler) evaluateRegime(ctx context.Context, verdicts map[models.PoolAddress]models.MicrostructureVerdict, now time.Time) models.RegimeVerdict {
	if len(verdicts) == 0 {
		return s.regime.Evaluate(ctx, models.RegimeAggregate{ComputedAt: now})
	}

	var entropySum, liquiditySum, velocitySum float64
	var aliveCount int
	for _, v := range verdicts {
		entropySum += v.PoolEntropy
		liquiditySum += v.LiquidityFlowScore
		velocitySum += v.SwapVelocityScore
		if v.MarketAlive {
			aliveCount++
		}
	}
	n := float64(len(verdicts))

	// LiquidityFlowScore/SwapVelocityScore come off the Microstructure Scorer
	// on a 0-100 scale (pkg/models/verdict.go); RegimeAggregate's fields are
	// compared against 0-1-scaled floors in regime/gate.go, so they're
	// rescaled here before the gate ever sees them.
	agg := models.RegimeAggregate{
		Consistency:                  float64(aliveCount) / n,
		Entropy:                      entropySum / n,
		MigrationDirectionConfidence: clamp01(1 - (entropySum / n)),
		LiquidityFlowScore:           (liquiditySum / n) / 100,
		VelocityScore:                (velocitySum / n) / 100,
		ComputedAt:                   now,
	}
	return s.regime.Evaluate(ctx, agg)
}

func (s *Scheduler) countPositioned() int {
	n := 0
	for _, rt := range s.pools {
		if rt.lifecycle.State == models.StatePositioned {
			n++
		}
	}
	return n
}

func (s *Scheduler) attemptEntry(ctx context.Context, pool models.PoolAddress, rt *poolRuntime, verdict models.MicrostructureVerdict, cls cyclephase.Classification, rv models.RegimeVerdict, cv models.CongestionVerdict, openPositions *int, now time.Time) {
	if rv.Blocked {
		log.Printf("[Scheduler] pool %s: entry blocked by regime gate (%s)", pool, rv.Reason)
		return
	}
	if cv.BlockTrading {
		log.Printf("[Scheduler] pool %s: entry blocked by congestion governor", pool)
		return
	}
	if !cls.EntryPermitted {
		log.Printf("[Scheduler] pool %s: entry blocked by cycle phase %s", pool, cls.Phase)
		return
	}
	if *openPositions >= s.cfg.Scheduler.MaxConcurrentPositions {
		log.Printf("[Scheduler] pool %s: entry blocked, concurrent position cap reached", pool)
		return
	}

	sizeUSD := s.cfg.Scheduler.BaseSizeUSD * cv.SizeMultiplier
	if sizeUSD <= 0 {
		return
	}

	req := execution.EntryRequest{
		Pool: pool, Mode: models.ModePaper, SizeUSD: sizeUSD,
		EntryPrice: estimatePrice(rt.lastSnapshot), EntryBin: rt.lastSnapshot.ActiveBin,
		EntryScore: verdict.Composite, Tier: bucketTier(verdict.Composite),
		RegimeAtEntry: rv.Reason, Now: now,
	}
	pos, err := s.execEngine.Enter(ctx, s.runID, req)
	if err != nil {
		log.Printf("[Scheduler] pool %s: entry attempt failed: %v", pool, err)
		return
	}

	entered, err := s.lifecycleFSM.Enter(rt.lifecycle, models.EntrySnapshot{
		Price: req.EntryPrice, Bin: req.EntryBin, SizeUSD: sizeUSD, Verdict: verdict, Timestamp: now,
	})
	if err != nil {
		log.Printf("[Scheduler] pool %s: lifecycle entry rejected after execution succeeded: %v", pool, err)
		return
	}
	rt.lifecycle = entered
	rt.tradeID = pos.TradeID
	rt.exitState = models.ExitGovernorState{TradeID: pos.TradeID}
	*openPositions++
	log.Printf("[Scheduler] pool %s: entered trade %d at size $%.2f", pool, pos.TradeID, sizeUSD)
}

func (s *Scheduler) evaluateExit(ctx context.Context, pool models.PoolAddress, rt *poolRuntime, verdict models.MicrostructureVerdict, cls cyclephase.Classification, rv models.RegimeVerdict, now time.Time) {
	if rt.lifecycle.Entry == nil {
		return
	}

	intent := exitgov.Intent{Reason: "evaluation"}
	if cls.ExitMandated {
		intent = exitgov.Intent{Reason: cls.ExitReason, Critical: true}
	}

	holdTime := now.Sub(rt.lifecycle.Entry.Timestamp)
	positionShare := 0.0
	if s.startingCapital > 0 {
		positionShare = rt.lifecycle.Entry.SizeUSD / s.startingCapital
	}

	in := exitgov.PositionInputs{
		SizeUSD:               rt.lifecycle.Entry.SizeUSD,
		PositionShare:         positionShare,
		HoldTime:              holdTime,
		EstimatedFeeIntensity: verdict.FeeIntensityRaw,
		GlobalRegimeDefense:   rv.Blocked,
		HoldModeActive:        s.holdModeActive,
	}
	if sig, err := s.fetchSignals(ctx, pool); err == nil {
		in.ActualFeeVelocity = sig.ActualFeeVelocityUSDPerHour
	}

	decision := s.exitGov.Evaluate(&rt.exitState, intent, in, now)
	if !decision.Execute {
		log.Printf("[Scheduler] pool %s: exit suppressed (%s)", pool, decision.SuppressReason)
		return
	}

	reason := intent.Reason
	if decision.Forced {
		reason = decision.ForcedReason
	}

	exitPrice, exitFeesUSD, exitSlippageUSD, realizedPnLUSD, realizedPnLPct := s.computeExitPnL(rt)

	if err := s.execEngine.Exit(ctx, execution.ExitRequest{
		TradeID: rt.tradeID, ExitReason: reason, Now: now,
		ExitPrice: exitPrice, ExitFeesUSD: exitFeesUSD, ExitSlippageUSD: exitSlippageUSD,
		RealizedPnLUSD: realizedPnLUSD, RealizedPnLPct: realizedPnLPct,
	}); err != nil {
		log.Printf("[Scheduler] pool %s: exit execution failed: %v", pool, err)
		return
	}

	exited, err := s.lifecycleFSM.Exit(rt.lifecycle, reason, now)
	if err != nil {
		log.Printf("[Scheduler] pool %s: lifecycle exit rejected after execution succeeded: %v", pool, err)
		return
	}
	cooled, err := s.lifecycleFSM.ForceCooldown(exited, now)
	if err != nil {
		log.Printf("[Scheduler] pool %s: cooldown transition failed: %v", pool, err)
		return
	}
	rt.lifecycle = cooled
	log.Printf("[Scheduler] pool %s: exited trade %d (%s)", pool, rt.tradeID, reason)
}

func (s *Scheduler) advanceCooldowns(now time.Time) {
	for pool, rt := range s.pools {
		if rt.lifecycle.State != models.StateCooldown {
			continue
		}
		if now.Before(rt.lifecycle.CooldownExpiry) {
			continue
		}
		expired, err := s.lifecycleFSM.ExpireCooldown(rt.lifecycle, now)
		if err != nil {
			continue
		}
		rt.lifecycle = expired
		log.Printf("[Scheduler] pool %s: cooldown expired, returned to IDLE", pool)
	}
}

// computeExitPnL prices the exit off the pool's latest snapshot and nets out
// the same entry/exit fee and slippage cost model the Exit Governor already
// uses for its cost-target estimate (cfg.ExitGov), rather than inventing a
// second cost convention. If no current snapshot is available the price is
// held flat at entry (no phantom price movement is realized).
func (s *Scheduler) computeExitPnL(rt *poolRuntime) (exitPrice, exitFeesUSD, exitSlippageUSD, realizedPnLUSD, realizedPnLPct float64) {
	entry := rt.lifecycle.Entry
	exitPrice = estimatePrice(rt.lastSnapshot)
	if exitPrice <= 0 {
		exitPrice = entry.Price
	}

	entryFeesUSD := s.cfg.ExitGov.EntryFeesPct * entry.SizeUSD
	exitFeesUSD = s.cfg.ExitGov.ExitFeesPct * entry.SizeUSD
	exitSlippageUSD = s.cfg.ExitGov.SlippagePct * entry.SizeUSD

	priceChangeRatio := 0.0
	if entry.Price > 0 {
		priceChangeRatio = (exitPrice - entry.Price) / entry.Price
	}
	grossPnLUSD := entry.SizeUSD * priceChangeRatio
	realizedPnLUSD = grossPnLUSD - entryFeesUSD - exitFeesUSD - exitSlippageUSD
	if entry.SizeUSD > 0 {
		realizedPnLPct = realizedPnLUSD / entry.SizeUSD
	}
	return exitPrice, exitFeesUSD, exitSlippageUSD, realizedPnLUSD, realizedPnLPct
}

// estimatePrice derives a quote-per-base price from pool inventory since no
// concrete chain SDK ships with this module to read an authoritative price
// directly (spec §6 scopes that out as an external collaborator).
func estimatePrice(snap models.BinSnapshot) float64 {
	if snap.InventoryBase <= 0 {
		return 0
	}
	return snap.InventoryQuote / snap.InventoryBase
}

func bucketTier(composite float64) string {
	switch {
	case composite >= 80:
		return "A"
	case composite >= 60:
		return "B"
	case composite >= 40:
		return "C"
	default:
		return "D"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
