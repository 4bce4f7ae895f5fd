package models

// RawPoolCandidate is a single upstream discovery element, already filtered
// inline during the Stage-1 streaming parse (spec §4.3) — it never exists
// in a materialized slice of the full upstream payload.
type RawPoolCandidate struct {
	Pool         PoolAddress
	BaseMint     string
	QuoteMint    string
	TVLUSD       float64
	Volume24hUSD float64
	BinStep      *int
	Price        *float64
	Hidden       bool
	Source       string
}

// IsStableStablePair reports whether both sides look like stablecoins —
// the "memecoin carcass" filter also screens the inverse case, but
// stable-stable pairs are excluded outright because they cannot produce
// the bin-contest behavior this engine scores.
func (c RawPoolCandidate) IsStableStablePair(stableMints map[string]bool) bool {
	return stableMints[c.BaseMint] && stableMints[c.QuoteMint]
}

// RankedCandidate is a Stage-1 survivor carrying its ranking score.
type RankedCandidate struct {
	RawPoolCandidate
	RankScore float64
}

// HydratedCandidate is a Stage-2 survivor: a ranked candidate plus its
// telemetry-derived verdict and whether an enrichment source supplied
// real (non-default) data for it.
type HydratedCandidate struct {
	RankedCandidate
	Verdict   MicrostructureVerdict
	Enriched  bool
}

// ScoredCandidate is the Stage-3 final output.
type ScoredCandidate struct {
	HydratedCandidate
	DiscoveryScore float64
}
