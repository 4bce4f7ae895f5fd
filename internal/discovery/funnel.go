// Package discovery implements the three-stage Discovery Funnel (spec
// §4.3). The funnel never holds the full upstream response in memory:
// Stage 1 decodes each source's JSON array body with json-iterator/go's
// streaming Iterator, applying the TVL/volume/stable-pair filter inline in
// the array-element callback so only survivors are ever retained.
package discovery

import (
	"context"
	"io"
	"log"
	"math"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/internal/telemetry"
	"github.com/rawblock/lpagent/pkg/models"
)

// Source is one upstream discovery collaborator (spec §6's
// DiscoverySource): it streams its raw JSON array body into w rather than
// returning a decoded slice, so the funnel can parse it incrementally.
type Source interface {
	Name() string
	Stream(ctx context.Context, w io.Writer) error
}

// SnapshotSource is the Stage-2 telemetry collaborator. Deliberately
// narrower than telemetry.Source: discovery candidates have not yet passed
// through Identity Resolution, so no PoolIdentity/preflight gate applies
// here — that happens later, only for pools the Execution Engine actually
// enters.
type SnapshotSource interface {
	FetchPoolSnapshot(ctx context.Context, pool models.PoolAddress) (models.BinSnapshot, error)
}

// SentimentEnrichment is the optional Stage-2 enrichment collaborator
// supplying "real" (non-default) per-pool signal used to pick strict vs
// relaxed pre-tier thresholds.
type SentimentEnrichment interface {
	Enrich(ctx context.Context, pool models.PoolAddress) (volume24hUSD float64, ok bool)
}

// rawUpstreamElement is the wire shape of one upstream candidate object,
// decoded field-by-field from the streaming iterator.
type rawUpstreamElement struct {
	Pool         string  `json:"pool"`
	BaseMint     string  `json:"baseMint"`
	QuoteMint    string  `json:"quoteMint"`
	TVLUSD       float64 `json:"tvlUsd"`
	Volume24hUSD float64 `json:"volume24hUsd"`
	BinStep      *int    `json:"binStep"`
	Price        *float64 `json:"price"`
	Hidden       bool    `json:"hidden"`
}

// Funnel runs the three stages against its configured sources.
type Funnel struct {
	cfg         config.FunnelConfig
	sources     []Source
	snapshots   SnapshotSource
	enrichment  SentimentEnrichment
	stableMints map[string]bool

	// history holds a 2-entry snapshot ring per candidate pool so Stage 2
	// can derive a real LiquidityFlowRatio across successive Run calls
	// instead of a single isolated snapshot (which carries no delta to
	// measure). Cold pools score 0 on liquidity flow until their second
	// appearance, the same cold-start shape as the Microstructure Scorer.
	history map[models.PoolAddress]*telemetry.History
}

func New(cfg config.FunnelConfig, sources []Source, snapshots SnapshotSource, enrichment SentimentEnrichment, stableMints map[string]bool) *Funnel {
	return &Funnel{
		cfg: cfg, sources: sources, snapshots: snapshots, enrichment: enrichment, stableMints: stableMints,
		history: make(map[models.PoolAddress]*telemetry.History),
	}
}

// Run executes all three stages and returns the final scored candidates.
// Source failures are non-fatal (spec §4.3): a failing source contributes
// nothing and the funnel proceeds with whatever the others returned. A
// funnel invocation that produces zero survivors returns an empty, non-nil
// slice rather than an error.
func (f *Funnel) Run(ctx context.Context) []models.ScoredCandidate {
	ranked := f.stage1(ctx)
	hydrated := f.stage2(ctx, ranked)
	return f.stage3(hydrated)
}

// stage1 fans out one goroutine per source (grounded on the teacher's
// go poller.Run(ctx) / go blockScanner... pattern), streams and filters
// each source's body inline, deduplicates by pool address, ranks by
// tvl+volume24h, and truncates to the raw cap.
func (f *Funnel) stage1(ctx context.Context) []models.RankedCandidate {
	type sourceResult struct {
		candidates []models.RawPoolCandidate
	}

	results := make(chan sourceResult, len(f.sources))
	var wg sync.WaitGroup
	for _, src := range f.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			cands, err := f.streamSource(ctx, src)
			if err != nil {
				log.Printf("[DiscoveryFunnel] source %s failed: %v", src.Name(), err)
				results <- sourceResult{}
				return
			}
			results <- sourceResult{candidates: cands}
		}(src)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	seen := make(map[models.PoolAddress]models.RawPoolCandidate)
	for r := range results {
		for _, c := range r.candidates {
			if _, ok := seen[c.Pool]; !ok {
				seen[c.Pool] = c
			}
		}
	}

	survivors := make([]models.RankedCandidate, 0, len(seen))
	for _, c := range seen {
		survivors = append(survivors, models.RankedCandidate{
			RawPoolCandidate: c,
			RankScore:        c.TVLUSD + c.Volume24hUSD,
		})
	}
	sort.Slice(survivors, func(i, j int) bool { return survivors[i].RankScore > survivors[j].RankScore })

	if len(survivors) > f.cfg.RawCap {
		survivors = survivors[:f.cfg.RawCap]
	}
	return survivors
}

// streamSource pipes one source's body through a streaming JSON decoder so
// the full ~150k-element upstream array is never materialized.
func (f *Funnel) streamSource(ctx context.Context, src Source) ([]models.RawPoolCandidate, error) {
	pr, pw := io.Pipe()
	var streamErr error
	go func() {
		streamErr = src.Stream(ctx, pw)
		pw.CloseWithError(streamErr)
	}()

	var out []models.RawPoolCandidate
	iter := jsoniter.Parse(jsoniter.ConfigFastest, pr, 4096)
	iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
		var e rawUpstreamElement
		it.ReadVal(&e)
		if it.Error != nil && it.Error != io.EOF {
			return false
		}
		cand := models.RawPoolCandidate{
			Pool: models.PoolAddress(e.Pool), BaseMint: e.BaseMint, QuoteMint: e.QuoteMint,
			TVLUSD: e.TVLUSD, Volume24hUSD: e.Volume24hUSD, BinStep: e.BinStep,
			Price: e.Price, Hidden: e.Hidden, Source: src.Name(),
		}
		if f.passesUpstreamFilter(cand) {
			out = append(out, cand)
		}
		return true
	})
	if iter.Error != nil && iter.Error != io.EOF {
		return out, iter.Error
	}
	return out, streamErr
}

// passesUpstreamFilter screens memecoin carcasses: stable-stable pairs and
// pools failing both the TVL and volume floors.
func (f *Funnel) passesUpstreamFilter(c models.RawPoolCandidate) bool {
	if c.IsStableStablePair(f.stableMints) {
		return false
	}
	return c.TVLUSD >= f.cfg.MinTVLUSD || c.Volume24hUSD >= f.cfg.MinVolume24hUSD
}

// candidateSignal is the Stage-2 proxy verdict derived from the latest
// BinSnapshot, plus the funnel's short per-pool history for liquidity flow
// only — the full Microstructure Scorer (which requires ≥3 snapshots) does
// not apply here.
type candidateSignal struct {
	swapVelocity   float64
	entropy        float64
	liquidityFlow  float64
	volume24hUSD   float64
	enriched       bool
}

// stage2 fetches one snapshot per ranked candidate, derives a proxy
// signal, applies the strict/relaxed pre-tier filter, ranks survivors by
// swap velocity, and truncates to the telemetry cap.
func (f *Funnel) stage2(ctx context.Context, ranked []models.RankedCandidate) []models.HydratedCandidate {
	if f.snapshots == nil {
		return nil
	}

	survivors := make([]models.HydratedCandidate, 0, len(ranked))
	for _, rc := range ranked {
		snap, err := f.snapshots.FetchPoolSnapshot(ctx, rc.Pool)
		if err != nil {
			continue
		}

		sig := f.deriveSignal(ctx, rc.Pool, snap)
		if !f.passesPreTier(sig) {
			continue
		}

		verdict := models.MicrostructureVerdict{
			Pool:             rc.Pool,
			SwapVelocityRaw:  sig.swapVelocity,
			PoolEntropy:      sig.entropy,
			LiquidityFlowRaw: sig.liquidityFlow,
			SnapshotCount:    1,
			WindowEnd:        snap.Timestamp,
		}
		survivors = append(survivors, models.HydratedCandidate{
			RankedCandidate: rc,
			Verdict:         verdict,
			Enriched:        sig.enriched,
		})
	}

	sort.Slice(survivors, func(i, j int) bool {
		return survivors[i].Verdict.SwapVelocityRaw > survivors[j].Verdict.SwapVelocityRaw
	})
	if len(survivors) > f.cfg.TelemetryCap {
		survivors = survivors[:f.cfg.TelemetryCap]
	}
	return survivors
}

func (f *Funnel) deriveSignal(ctx context.Context, pool models.PoolAddress, snap models.BinSnapshot) candidateSignal {
	sig := candidateSignal{volume24hUSD: 0}

	if snap.LiquidityUSD > 0 {
		sig.swapVelocity = clampNonNeg(float64(snap.TradeCount) / 60.0)
	}

	total := snap.InventoryBase + snap.InventoryQuote
	if total > 0 {
		ratio := snap.InventoryBase / total
		sig.entropy = clamp01(math.Abs(ratio-0.5) * 2)
	}

	h := f.historyFor(pool)
	h.Record(snap)
	sig.liquidityFlow = h.LiquidityFlowRatio()

	if f.enrichment != nil {
		if vol, ok := f.enrichment.Enrich(ctx, pool); ok {
			sig.volume24hUSD = vol
			sig.enriched = true
		}
	}

	return sig
}

// historyFor returns this pool's 2-entry snapshot ring, creating it on
// first sight. Stage 2 runs sequentially within one Run call (no goroutine
// fan-out, unlike stage1), so this map needs no locking.
func (f *Funnel) historyFor(pool models.PoolAddress) *telemetry.History {
	h, ok := f.history[pool]
	if !ok {
		h = telemetry.NewHistory(config.HistoryConfig{RingSize: 2, MinInterval: 0})
		f.history[pool] = h
	}
	return h
}

func (f *Funnel) passesPreTier(sig candidateSignal) bool {
	if sig.enriched {
		return sig.swapVelocity >= f.cfg.StrictSwapVelocityFloor &&
			sig.entropy >= f.cfg.StrictEntropyFloor &&
			sig.liquidityFlow >= f.cfg.StrictLiquidityFlowFloor &&
			sig.volume24hUSD >= f.cfg.StrictVolume24hFloor
	}
	return sig.swapVelocity >= f.cfg.RelaxedSwapVelocityFloor &&
		sig.entropy >= f.cfg.RelaxedEntropyFloor &&
		sig.liquidityFlow >= f.cfg.RelaxedLiquidityFlowFloor
}

// stage3 computes the final composite discovery score and truncates to the
// final cap.
func (f *Funnel) stage3(hydrated []models.HydratedCandidate) []models.ScoredCandidate {
	scored := make([]models.ScoredCandidate, 0, len(hydrated))
	for _, h := range hydrated {
		microSignal := clamp01((h.Verdict.SwapVelocityRaw + h.Verdict.PoolEntropy + h.Verdict.LiquidityFlowRaw) / 3)
		score := f.cfg.WeightLogVolume*math.Log1p(h.Volume24hUSD) +
			f.cfg.WeightLogTVL*math.Log1p(h.TVLUSD) +
			f.cfg.WeightMicroSignals*microSignal*10

		if !h.Enriched && h.TVLUSD < f.cfg.SoftTVLThreshold {
			score *= f.cfg.SoftPenaltyMultiplier
		}

		scored = append(scored, models.ScoredCandidate{HydratedCandidate: h, DiscoveryScore: score})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].DiscoveryScore > scored[j].DiscoveryScore })
	if len(scored) > f.cfg.FinalCap {
		scored = scored[:f.cfg.FinalCap]
	}
	return scored
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

func clampNonNeg(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
