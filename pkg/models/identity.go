package models

import "time"

// PoolAddress is the opaque handle a venue uses to identify a bin pool.
type PoolAddress string

// ResolutionSource records where a PoolIdentity's fields came from.
type ResolutionSource string

const (
	ResolutionCache    ResolutionSource = "cache"
	ResolutionPersist  ResolutionSource = "persisted"
	ResolutionHint     ResolutionSource = "hint"
	ResolutionOnChain  ResolutionSource = "onchain"
)

// PoolIdentity is immutable once resolved. Every field except the symbols
// must be present or the identity does not exist — see preflight.Check.
type PoolIdentity struct {
	Pool           PoolAddress
	BaseMint       string
	QuoteMint      string
	BaseDecimals   int
	QuoteDecimals  int
	BaseSymbol     string
	QuoteSymbol    string
	Source         ResolutionSource
	ResolvedAt     time.Time
}

// PairKey is the canonical "baseMint:quoteMint" identity key.
func (p PoolIdentity) PairKey() string {
	return p.BaseMint + ":" + p.QuoteMint
}

// IdentityFailureKind enumerates the typed resolution failures from spec §4.1.
type IdentityFailureKind string

const (
	FailMissingPool     IdentityFailureKind = "MISSING_POOL"
	FailMissingMints    IdentityFailureKind = "MISSING_MINTS"
	FailMissingDecimals IdentityFailureKind = "MISSING_DECIMALS"
	FailFetchFailed     IdentityFailureKind = "FETCH_FAILED"
	FailBlacklisted     IdentityFailureKind = "BLACKLISTED"
)

// IdentityFailure is a typed resolution error.
type IdentityFailure struct {
	Kind IdentityFailureKind
	Pool PoolAddress
	Err  error
}

func (f *IdentityFailure) Error() string {
	if f.Err != nil {
		return string(f.Kind) + ": " + string(f.Pool) + ": " + f.Err.Error()
	}
	return string(f.Kind) + ": " + string(f.Pool)
}

func (f *IdentityFailure) Unwrap() error { return f.Err }

// IdentityHints are optional caller-supplied values, consulted after cache
// and persistence miss and before the on-chain decode.
type IdentityHints struct {
	BaseMint      string
	QuoteMint     string
	BaseDecimals  *int
	QuoteDecimals *int
	BaseSymbol    string
	QuoteSymbol   string
}
