// Package config centralizes the numeric defaults scattered through the
// component specs (funnel caps, calibration constants, governor
// thresholds) into one structured value, loadable from a YAML file with
// individual keys overridable by environment variables — the same
// env-var convention the teacher uses for PORT/ALLOWED_ORIGINS, just
// applied to a larger defaults table instead of a handful of literals.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

// FunnelConfig holds the Discovery Funnel's stage caps and per-stage
// filter thresholds (spec §4.3).
type FunnelConfig struct {
	RawCap       int     `yaml:"raw_cap"`
	TelemetryCap int     `yaml:"telemetry_cap"`
	FinalCap     int     `yaml:"final_cap"`
	MinTVLUSD    float64 `yaml:"min_tvl_usd"`
	MinVolume24hUSD float64 `yaml:"min_volume_24h_usd"`
	SoftTVLThreshold float64 `yaml:"soft_tvl_threshold"`
	SoftPenaltyMultiplier float64 `yaml:"soft_penalty_multiplier"`

	// Stage 2 pre-tier filters: strict applies when an enrichment source
	// returned real data for the pool, relaxed otherwise.
	StrictSwapVelocityFloor   float64 `yaml:"strict_swap_velocity_floor"`
	StrictEntropyFloor        float64 `yaml:"strict_entropy_floor"`
	StrictLiquidityFlowFloor  float64 `yaml:"strict_liquidity_flow_floor"`
	StrictVolume24hFloor      float64 `yaml:"strict_volume_24h_floor"`
	RelaxedSwapVelocityFloor  float64 `yaml:"relaxed_swap_velocity_floor"`
	RelaxedEntropyFloor       float64 `yaml:"relaxed_entropy_floor"`
	RelaxedLiquidityFlowFloor float64 `yaml:"relaxed_liquidity_flow_floor"`
	RelaxedVolume24hFloor     float64 `yaml:"relaxed_volume_24h_floor"`

	// Stage 3 composite discovery score weights.
	WeightLogVolume    float64 `yaml:"weight_log_volume"`
	WeightLogTVL       float64 `yaml:"weight_log_tvl"`
	WeightMicroSignals float64 `yaml:"weight_micro_signals"`
}

// HistoryConfig holds the Snapshot History bounds (spec §4.2/§3).
type HistoryConfig struct {
	RingSize       int           `yaml:"ring_size"`
	MinInterval    time.Duration `yaml:"min_interval"`
}

// ScorerConfig holds the Microstructure Scorer's calibration constants,
// composite weights, and gating floors (spec §4.4).
type ScorerConfig struct {
	BinVelocityCalib   float64 `yaml:"bin_velocity_calib"`
	LiquidityFlowCalib float64 `yaml:"liquidity_flow_calib"`
	SwapVelocityCalib  float64 `yaml:"swap_velocity_calib"`
	FeeIntensityCalib  float64 `yaml:"fee_intensity_calib"`

	EntropyVarianceCalib float64 `yaml:"entropy_variance_calib"`
	EntropyBinDeltaCalib float64 `yaml:"entropy_bin_delta_calib"`
	EntropyWeightVariance float64 `yaml:"entropy_weight_variance"`
	EntropyWeightBinDelta float64 `yaml:"entropy_weight_bin_delta"`

	WeightBinVelocity   float64 `yaml:"weight_bin_velocity"`
	WeightLiquidityFlow float64 `yaml:"weight_liquidity_flow"`
	WeightSwapVelocity  float64 `yaml:"weight_swap_velocity"`
	WeightFeeIntensity  float64 `yaml:"weight_fee_intensity"`

	GateBinVelocityFloor   float64 `yaml:"gate_bin_velocity_floor"`
	GateSwapVelocityFloor  float64 `yaml:"gate_swap_velocity_floor"`
	GateEntropyFloor       float64 `yaml:"gate_entropy_floor"`
	GateLiquidityFlowFloor float64 `yaml:"gate_liquidity_flow_floor"`
}

// CyclePhaseConfig holds the latency-cycle classifier thresholds (spec §4.5).
type CyclePhaseConfig struct {
	PreLatencyFloor      float64 `yaml:"pre_latency_floor"`
	ActiveLow            float64 `yaml:"active_low"`
	ActiveHigh           float64 `yaml:"active_high"`
	EndDropRatio         float64 `yaml:"end_drop_ratio"`
	EndPeakFloor         float64 `yaml:"end_peak_floor"`
	EntryMigrationBlock  float64 `yaml:"entry_migration_block"`
	EntryMaxBinsBlock    int     `yaml:"entry_max_bins_block"`
	ExitMigrationForce   float64 `yaml:"exit_migration_force"`
	ExitMaxBinsForce     int     `yaml:"exit_max_bins_force"`
}

// RegimeConfig holds the No-Trade Regime's trigger floors and cooldown
// scaling (spec §4.6).
type RegimeConfig struct {
	ConsistencyFloor         float64       `yaml:"consistency_floor"`
	EntropyCeiling           float64       `yaml:"entropy_ceiling"`
	MigrationConfidenceFloor float64       `yaml:"migration_confidence_floor"`
	LiquidityFlowFloor       float64       `yaml:"liquidity_flow_floor"`
	VelocityFloor            float64       `yaml:"velocity_floor"`
	WeakRegimeFloor          float64       `yaml:"weak_regime_floor"`
	CooldownUnit             time.Duration `yaml:"cooldown_unit"`
	CooldownCap              time.Duration `yaml:"cooldown_cap"`
	SentimentFloor           float64       `yaml:"sentiment_floor"`
}

// CongestionConfig holds the Congestion Governor's window, weights, and
// thresholds (spec §4.7).
type CongestionConfig struct {
	MaxSamples       int           `yaml:"max_samples"`
	Window           time.Duration `yaml:"window"`
	AggregateCacheTTL time.Duration `yaml:"aggregate_cache_ttl"`

	ConfirmationBaselineMs float64 `yaml:"confirmation_baseline_ms"`
	ConfirmationMaxMs      float64 `yaml:"confirmation_max_ms"`
	RPCLatencyBaselineMs   float64 `yaml:"rpc_latency_baseline_ms"`
	RPCLatencyMaxMs        float64 `yaml:"rpc_latency_max_ms"`
	BlocktimeBaseline      float64 `yaml:"blocktime_baseline"`
	BlocktimeMax           float64 `yaml:"blocktime_max"`
	PendingBaseline        float64 `yaml:"pending_baseline"`
	PendingMax             float64 `yaml:"pending_max"`

	WeightConfirmation float64 `yaml:"weight_confirmation"`
	WeightFailRate     float64 `yaml:"weight_fail_rate"`
	WeightBlocktime    float64 `yaml:"weight_blocktime"`
	WeightPending      float64 `yaml:"weight_pending"`
	WeightRPC          float64 `yaml:"weight_rpc"`

	BlockThreshold      float64 `yaml:"block_threshold"`
	HalfSizeThreshold   float64 `yaml:"half_size_threshold"`
	ReduceFreqThreshold float64 `yaml:"reduce_freq_threshold"`
}

// LifecycleConfig holds the Pool Lifecycle FSM's entry gate and cooldown
// durations (spec §4.8).
type LifecycleConfig struct {
	EntryCompositeThreshold float64       `yaml:"entry_composite_threshold"`
	EntryWhaleImpactCeiling float64       `yaml:"entry_whale_impact_ceiling"`
	EntryMigrationCeiling   float64       `yaml:"entry_migration_ceiling"`
	EntryCrowdFloor         int           `yaml:"entry_crowd_floor"`
	ConsecutiveGoodRequired int           `yaml:"consecutive_good_required"`
	CooldownStandard        time.Duration `yaml:"cooldown_standard"`
	CooldownMemecoin        time.Duration `yaml:"cooldown_memecoin"`
}

// ExitGovConfig holds the Exit Governor's cost model and escape hatch
// constants (spec §4.9).
type ExitGovConfig struct {
	EntryFeesPct       float64       `yaml:"entry_fees_pct"`
	ExitFeesPct        float64       `yaml:"exit_fees_pct"`
	SlippagePct        float64       `yaml:"slippage_pct"`
	AmortizationFactor float64       `yaml:"amortization_factor"`
	MinHold            time.Duration `yaml:"min_hold"`
	ExitTTL            time.Duration `yaml:"exit_ttl"`
	MaxSuppressions    int           `yaml:"max_suppressions"`
	SuppressionWindow  time.Duration `yaml:"suppression_window"`
	MaxTimeToAmortize  time.Duration `yaml:"max_time_to_amortize"`
	MinFeeVelocity     float64       `yaml:"min_fee_velocity"` // USD/hour floor before "infinite"
}

// IdentityConfig holds the Identity Resolver's cache/blacklist durations
// (spec §4.1).
type IdentityConfig struct {
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	BlacklistDuration time.Duration `yaml:"blacklist_duration"`
}

// SchedulerConfig holds the tick cadence and per-call timeouts (spec §4.12/§5).
type SchedulerConfig struct {
	BaseTickInterval       time.Duration `yaml:"base_tick_interval"`
	DiscoveryTimeout       time.Duration `yaml:"discovery_timeout"`
	TelemetryTimeout       time.Duration `yaml:"telemetry_timeout"`
	PairOverviewTimeout    time.Duration `yaml:"pair_overview_timeout"`
	MaxConcurrentPositions int           `yaml:"max_concurrent_positions"`
	BaseSizeUSD            float64       `yaml:"base_size_usd"`
	MinHistoryForVerdict   int           `yaml:"min_history_for_verdict"`
}

// Config is the complete set of tunable component defaults.
type Config struct {
	Funnel     FunnelConfig     `yaml:"funnel"`
	History    HistoryConfig    `yaml:"history"`
	Scorer     ScorerConfig     `yaml:"scorer"`
	CyclePhase CyclePhaseConfig `yaml:"cycle_phase"`
	Regime     RegimeConfig     `yaml:"regime"`
	Congestion CongestionConfig `yaml:"congestion"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle"`
	ExitGov    ExitGovConfig    `yaml:"exit_gov"`
	Identity   IdentityConfig   `yaml:"identity"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

// Default returns the spec's documented defaults. This is the fallback
// when no YAML file is present, and the base that a loaded file merges
// onto (an on-disk file may specify only the keys it wants to change).
func Default() Config {
	return Config{
		Funnel: FunnelConfig{
			RawCap: 50, TelemetryCap: 30, FinalCap: 12,
			MinTVLUSD: 10_000, MinVolume24hUSD: 5_000,
			SoftTVLThreshold: 25_000, SoftPenaltyMultiplier: 0.6,
			StrictSwapVelocityFloor: 0.15, StrictEntropyFloor: 0.70,
			StrictLiquidityFlowFloor: 0.01, StrictVolume24hFloor: 10_000,
			RelaxedSwapVelocityFloor: 0.10, RelaxedEntropyFloor: 0.60,
			RelaxedLiquidityFlowFloor: 0.005, RelaxedVolume24hFloor: 5_000,
			WeightLogVolume: 0.35, WeightLogTVL: 0.25, WeightMicroSignals: 0.40,
		},
		History: HistoryConfig{
			RingSize: 20, MinInterval: 8 * time.Second,
		},
		Scorer: ScorerConfig{
			BinVelocityCalib: 0.1, LiquidityFlowCalib: 0.05,
			SwapVelocityCalib: 1.0, FeeIntensityCalib: 0.001,
			EntropyVarianceCalib: 0.25, EntropyBinDeltaCalib: 5,
			EntropyWeightVariance: 0.6, EntropyWeightBinDelta: 0.4,
			WeightBinVelocity: 0.30, WeightLiquidityFlow: 0.30,
			WeightSwapVelocity: 0.25, WeightFeeIntensity: 0.15,
			GateBinVelocityFloor: 0.03, GateSwapVelocityFloor: 0.10,
			GateEntropyFloor: 0.65, GateLiquidityFlowFloor: 0.005,
		},
		CyclePhase: CyclePhaseConfig{
			PreLatencyFloor: 1.25, ActiveLow: 1.6, ActiveHigh: 2.3,
			EndDropRatio: 0.80, EndPeakFloor: 1.6,
			EntryMigrationBlock: 0.25, EntryMaxBinsBlock: 3,
			ExitMigrationForce: 0.30, ExitMaxBinsForce: 6,
		},
		Regime: RegimeConfig{
			ConsistencyFloor: 0.35, EntropyCeiling: 0.80,
			MigrationConfidenceFloor: 0.25, LiquidityFlowFloor: 0.20,
			VelocityFloor: 0.05, WeakRegimeFloor: 0.40,
			CooldownUnit: 5 * time.Minute, CooldownCap: 30 * time.Minute,
			SentimentFloor: 10,
		},
		Congestion: CongestionConfig{
			MaxSamples: 500, Window: 5 * time.Minute, AggregateCacheTTL: 5 * time.Second,
			ConfirmationBaselineMs: 500, ConfirmationMaxMs: 30_000,
			RPCLatencyBaselineMs: 100, RPCLatencyMaxMs: 5_000,
			BlocktimeBaseline: 0.05, BlocktimeMax: 0.50,
			PendingBaseline: 0, PendingMax: 50,
			WeightConfirmation: 0.30, WeightFailRate: 0.30,
			WeightBlocktime: 0.15, WeightPending: 0.10, WeightRPC: 0.15,
			BlockThreshold: 0.85, HalfSizeThreshold: 0.70, ReduceFreqThreshold: 0.60,
		},
		Lifecycle: LifecycleConfig{
			EntryCompositeThreshold: 60, EntryWhaleImpactCeiling: 25,
			EntryMigrationCeiling: 0.20, EntryCrowdFloor: 8,
			ConsecutiveGoodRequired: 2,
			CooldownStandard: 5 * time.Minute, CooldownMemecoin: 15 * time.Minute,
		},
		ExitGov: ExitGovConfig{
			EntryFeesPct: 0.003, ExitFeesPct: 0.003, SlippagePct: 0.002,
			AmortizationFactor: 1.10,
			MinHold: 3 * time.Minute, ExitTTL: 45 * time.Minute,
			MaxSuppressions: 60, SuppressionWindow: 30 * time.Minute,
			MaxTimeToAmortize: 90 * time.Minute, MinFeeVelocity: 0.01,
		},
		Identity: IdentityConfig{
			CacheTTL: time.Hour, BlacklistDuration: 30 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			BaseTickInterval: 15 * time.Second,
			DiscoveryTimeout: 120 * time.Second,
			TelemetryTimeout: 10 * time.Second,
			PairOverviewTimeout: 5 * time.Second,
			MaxConcurrentPositions: 8,
			BaseSizeUSD: 500,
			MinHistoryForVerdict: 3,
		},
	}
}

// Load reads a YAML file at path and overlays it onto Default(). A missing
// file is not an error — the caller runs on pure defaults, matching the
// teacher's getEnvOrDefault fallback idiom at the config layer instead of
// the env layer.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// OverrideFunnelCapsFromEnv lets an operator tune the three funnel caps
// without editing the YAML file — mirrors PORT/ALLOWED_ORIGINS being
// env-settable in the teacher while the bulk of config stays file-based.
func (c *Config) OverrideFunnelCapsFromEnv() {
	if v, ok := envInt("FUNNEL_RAW_CAP"); ok {
		c.Funnel.RawCap = v
	}
	if v, ok := envInt("FUNNEL_TELEMETRY_CAP"); ok {
		c.Funnel.TelemetryCap = v
	}
	if v, ok := envInt("FUNNEL_FINAL_CAP"); ok {
		c.Funnel.FinalCap = v
	}
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
