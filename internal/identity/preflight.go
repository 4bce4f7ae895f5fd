package identity

import "github.com/rawblock/lpagent/pkg/models"

// Check is the absolute preflight gate from spec §4.1: no downstream
// component may operate on a PoolIdentity with missing mints or negative
// decimals. It is a pure function with no side effects so every caller —
// sizing, FSM entry, persistence — can run it independently without
// sharing state with the Resolver.
func Check(ident models.PoolIdentity) error {
	if ident.BaseMint == "" || ident.QuoteMint == "" {
		return &models.IdentityFailure{Kind: models.FailMissingMints, Pool: ident.Pool}
	}
	if ident.BaseDecimals < 0 || ident.QuoteDecimals < 0 {
		return &models.IdentityFailure{Kind: models.FailMissingDecimals, Pool: ident.Pool}
	}
	return nil
}

// Passes is a convenience boolean wrapper around Check for call sites that
// only need a yes/no answer.
func Passes(ident models.PoolIdentity) bool {
	return Check(ident) == nil
}
