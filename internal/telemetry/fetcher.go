// Package telemetry fetches point-in-time bin snapshots and accumulates
// them into a bounded per-pool history, deriving the raw velocity/flow
// quantities the Microstructure Scorer consumes.
package telemetry

import (
	"context"

	"github.com/rawblock/lpagent/internal/identity"
	"github.com/rawblock/lpagent/pkg/models"
)

// Commitment mirrors the chain-RPC commitment level parameter from spec §6.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
)

// Source is the external chain-telemetry collaborator (spec §6). A
// concrete implementation lives outside this module's scope — only the
// interface is shipped here.
type Source interface {
	FetchPoolSnapshot(ctx context.Context, pool models.PoolAddress, commitment Commitment) (models.BinSnapshot, error)
}

// Fetcher wraps a Source with the preflight requirement from spec §4.2:
// telemetry is never fetched for a pool whose identity fails preflight.
type Fetcher struct {
	source Source
}

func New(source Source) *Fetcher {
	return &Fetcher{source: source}
}

// Fetch returns a single BinSnapshot, or a typed InvalidTelemetry failure.
// It never fabricates values on partial data.
func (f *Fetcher) Fetch(ctx context.Context, ident models.PoolIdentity, commitment Commitment) (models.BinSnapshot, error) {
	if err := identity.Check(ident); err != nil {
		return models.BinSnapshot{}, &models.InvalidTelemetry{
			Kind: models.TelemetryPreflightFail, Pool: ident.Pool, Err: err,
		}
	}

	snap, err := f.source.FetchPoolSnapshot(ctx, ident.Pool, commitment)
	if err != nil {
		return models.BinSnapshot{}, &models.InvalidTelemetry{
			Kind: models.TelemetryDecodeError, Pool: ident.Pool, Err: err,
		}
	}

	if err := validate(snap); err != nil {
		return models.BinSnapshot{}, &models.InvalidTelemetry{
			Kind: models.TelemetryMissingField, Pool: ident.Pool, Err: err,
		}
	}

	return snap, nil
}

func validate(s models.BinSnapshot) error {
	if s.Timestamp.IsZero() {
		return missingField("timestamp")
	}
	if s.LiquidityUSD <= 0 {
		return missingField("liquidityUSD")
	}
	if len(s.Bins) == 0 {
		return missingField("bins")
	}
	return nil
}

type missingFieldError string

func (e missingFieldError) Error() string { return "missing field: " + string(e) }

func missingField(name string) error { return missingFieldError(name) }
