package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/pkg/models"
)

type stubDecoder struct {
	ident models.PoolIdentity
	err   error
	calls int
}

func (d *stubDecoder) ResolveOnChainIdentity(ctx context.Context, pool models.PoolAddress) (models.PoolIdentity, error) {
	d.calls++
	return d.ident, d.err
}

func testCfg() config.IdentityConfig {
	return config.IdentityConfig{CacheTTL: time.Hour, BlacklistDuration: 30 * time.Minute}
}

func TestResolveFromDecoderThenCacheHit(t *testing.T) {
	dec := &stubDecoder{ident: models.PoolIdentity{
		Pool: "poolA", BaseMint: "B", QuoteMint: "Q", BaseDecimals: 9, QuoteDecimals: 6,
	}}
	r := New(testCfg(), dec, nil)

	ident, err := r.Resolve(context.Background(), "poolA", models.IdentityHints{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ident.PairKey() != "B:Q" {
		t.Fatalf("unexpected pair key: %s", ident.PairKey())
	}

	// Second call within TTL must not hit the decoder again (spec §8 idempotence 8a).
	if _, err := r.Resolve(context.Background(), "poolA", models.IdentityHints{}); err != nil {
		t.Fatalf("unexpected error on cached resolve: %v", err)
	}
	if dec.calls != 1 {
		t.Fatalf("expected exactly 1 decoder call, got %d", dec.calls)
	}
}

func TestResolveFailureBlacklists(t *testing.T) {
	dec := &stubDecoder{err: errors.New("rpc down")}
	r := New(testCfg(), dec, nil)

	_, err := r.Resolve(context.Background(), "poolB", models.IdentityHints{})
	if err == nil {
		t.Fatal("expected failure")
	}

	_, err = r.Resolve(context.Background(), "poolB", models.IdentityHints{})
	var failure *models.IdentityFailure
	if !errors.As(err, &failure) || failure.Kind != models.FailBlacklisted {
		t.Fatalf("expected blacklisted failure on second call, got %v", err)
	}
	if dec.calls != 1 {
		t.Fatalf("decoder should be short-circuited while blacklisted, got %d calls", dec.calls)
	}
}

func TestPreflightRejectsMissingMints(t *testing.T) {
	bad := models.PoolIdentity{Pool: "poolC", BaseMint: "", QuoteMint: "Q", BaseDecimals: 6, QuoteDecimals: 6}
	if err := Check(bad); err == nil {
		t.Fatal("expected preflight rejection for missing base mint")
	}
}

func TestPreflightRejectsNegativeDecimals(t *testing.T) {
	bad := models.PoolIdentity{Pool: "poolD", BaseMint: "B", QuoteMint: "Q", BaseDecimals: -1, QuoteDecimals: 6}
	if err := Check(bad); err == nil {
		t.Fatal("expected preflight rejection for negative decimals")
	}
}
