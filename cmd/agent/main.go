package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rawblock/lpagent/internal/api"
	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/internal/congestion"
	"github.com/rawblock/lpagent/internal/db"
	"github.com/rawblock/lpagent/internal/discovery"
	"github.com/rawblock/lpagent/internal/epoch"
	"github.com/rawblock/lpagent/internal/exitgov"
	"github.com/rawblock/lpagent/internal/execution"
	"github.com/rawblock/lpagent/internal/identity"
	"github.com/rawblock/lpagent/internal/lifecycle"
	"github.com/rawblock/lpagent/internal/microstructure"
	"github.com/rawblock/lpagent/internal/regime"
	"github.com/rawblock/lpagent/internal/scheduler"
	"github.com/rawblock/lpagent/internal/telemetry"
	"github.com/rawblock/lpagent/pkg/models"
)

func main() {
	log.Println("starting lpagent (liquidity deployment agent)...")

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading configuration from the environment")
	}

	dbURL := requireEnv("DATABASE_URL")
	cfgPath := getEnvOrDefault("CONFIG_PATH", "")
	startingCapital := parseFloatOrDefault(getEnvOrDefault("STARTING_CAPITAL_USD", "50000"), 50000)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("fatal-config: %v", err)
	}
	cfg.OverrideFunnelCapsFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("fatal-config: %v", err)
	}
	defer store.Close()

	if err := store.InitSchema(ctx, getEnvOrDefault("SCHEMA_PATH", "internal/db/schema.sql")); err != nil {
		log.Fatalf("fatal-config: schema init failed: %v", err)
	}

	epochContainer := epoch.New()
	runEpoch := epochContainer.StartEpoch(os.Getenv("RUN_ID"), startingCapital, time.Now())
	log.Printf("run epoch started: run_id=%s starting_capital=$%.2f", runEpoch.RunID, runEpoch.StartingCapital)

	seal, err := epochContainer.Reconcile(ctx, store)
	if err != nil {
		log.Fatalf("reconciliation-mismatch: %v", err)
	}
	log.Printf("reconciliation sealed: open_count=%d", seal.OpenCount)

	openPositions, err := store.OpenPositions(ctx, runEpoch.RunID)
	if err != nil {
		log.Fatalf("reconciliation-mismatch: hydration query failed: %v", err)
	}

	collab := newUnconfiguredCollaborators()

	resolver := identity.New(cfg.Identity, collab, store)
	fetcher := telemetry.New(collab)
	scorer := microstructure.New(cfg.Scorer)
	regimeGate := regime.New(cfg.Regime, collab)
	congestionGov := congestion.New(cfg.Congestion)
	lifecycleFSM := lifecycle.New(cfg.Lifecycle)
	exitGov := exitgov.New(cfg.ExitGov)
	execEngine := execution.New(resolver, store)

	funnel := discovery.New(cfg.Funnel, nil, discoverySnapshotAdapter{collab}, collab, stableMintSet())

	hub := api.NewHub()
	go hub.Run()

	sched := scheduler.New(cfg, runEpoch.RunID, runEpoch.StartingCapital, scheduler.Deps{
		Funnel:      funnel,
		Resolver:    resolver,
		Fetcher:     fetcher,
		Scorer:      scorer,
		Regime:      regimeGate,
		Congestion:  congestionGov,
		Lifecycle:   lifecycleFSM,
		ExitGov:     exitGov,
		Execution:   execEngine,
		Signals:     collab,
		Network:     collab,
		Broadcaster: hub,
	})
	sched.Hydrate(openPositions, seal, epochContainer)

	handler := &api.Handler{
		Store:     store,
		Epoch:     epochContainer,
		Scheduler: sched,
		Hub:       hub,
	}
	router := api.SetupRouter(handler)

	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	go sched.Run(schedulerCtx)

	port := getEnvOrDefault("PORT", "8080")
	go func() {
		log.Printf("dashboard listening on :%s", port)
		if err := router.Run(":" + port); err != nil {
			log.Printf("dashboard server stopped: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Println("shutdown signal received, stopping tick loop...")
	stopScheduler()
	cancel()
}

// requireEnv reads a required environment variable and exits if it is not
// set — fatal-config per spec §7, exit code 1.
func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("fatal-config: required environment variable %s is not set", key)
	}
	return v
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseFloatOrDefault(raw string, fallback float64) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func stableMintSet() map[string]bool {
	return map[string]bool{
		"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": true, // USDC
		"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": true, // USDT
	}
}

// unconfiguredCollaborators is the local fixture/mock implementation spec
// §6 asks for in place of a concrete chain RPC SDK, pool-metadata client,
// or signing/broadcast integration — none of which ship with this module.
// Every method fails closed with an upstream-source-failure error rather
// than fabricating data, and discovery/sentiment degrade to "nothing
// found" so the agent still boots and serves the dashboard in API-only
// mode. Wire a real implementation of the exported interfaces (identity.
// ChainDecoder, telemetry.Source, discovery.Source/SentimentEnrichment,
// regime.SentimentSource, scheduler.PoolSignalSource/NetworkSampleSource)
// in place of this type once a concrete integration exists.
type unconfiguredCollaborators struct{}

func newUnconfiguredCollaborators() *unconfiguredCollaborators {
	log.Println("WARNING: no chain/indexer integration configured — running with no-op collaborators (discovery, telemetry, and signal sources are all degraded to empty/failure responses)")
	return &unconfiguredCollaborators{}
}

func (c *unconfiguredCollaborators) ResolveOnChainIdentity(ctx context.Context, pool models.PoolAddress) (models.PoolIdentity, error) {
	return models.PoolIdentity{}, upstreamFailure("on-chain identity resolution")
}

func (c *unconfiguredCollaborators) FetchPoolSnapshot(ctx context.Context, pool models.PoolAddress, commitment telemetry.Commitment) (models.BinSnapshot, error) {
	return models.BinSnapshot{}, upstreamFailure("chain telemetry fetch")
}

func (c *unconfiguredCollaborators) Enrich(ctx context.Context, pool models.PoolAddress) (float64, bool) {
	return 0, false
}

func (c *unconfiguredCollaborators) MarketSentiment(ctx context.Context) (float64, bool) {
	return 0, false
}

func (c *unconfiguredCollaborators) Signals(ctx context.Context, pool models.PoolAddress) (scheduler.PoolSignals, error) {
	return scheduler.PoolSignals{}, upstreamFailure("pool signal source")
}

func (c *unconfiguredCollaborators) Sample(ctx context.Context) (models.CongestionSample, error) {
	return models.CongestionSample{}, upstreamFailure("network congestion sample")
}

// discoverySnapshotAdapter narrows unconfiguredCollaborators' three-arg
// telemetry.Source method to discovery.SnapshotSource's two-arg shape —
// the two interfaces share a method name but not an argument list, so
// they can't both be satisfied by one method set directly.
type discoverySnapshotAdapter struct {
	c *unconfiguredCollaborators
}

func (a discoverySnapshotAdapter) FetchPoolSnapshot(ctx context.Context, pool models.PoolAddress) (models.BinSnapshot, error) {
	return a.c.FetchPoolSnapshot(ctx, pool, telemetry.CommitmentConfirmed)
}

func upstreamFailure(what string) error {
	return &upstreamError{what: what}
}

type upstreamError struct {
	what string
}

func (e *upstreamError) Error() string {
	return "upstream-source-failure: " + e.what + " has no configured integration"
}
