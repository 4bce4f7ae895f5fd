// Package identity resolves a pool address into its canonical
// PoolIdentity, following the priority order in spec §4.1: in-memory
// cache, persisted record, caller-supplied hints, on-chain decode. A
// resolution failure blacklists the pool for a configurable duration.
//
// Grounded on the teacher's sync.RWMutex-guarded map idiom
// (heuristics.InvestigationManager, the global taint map).
package identity

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/rawblock/lpagent/internal/config"
	"github.com/rawblock/lpagent/pkg/models"
)

// ChainDecoder resolves on-chain identity — the out-of-scope external
// collaborator from spec §6, specified here only as an interface.
type ChainDecoder interface {
	ResolveOnChainIdentity(ctx context.Context, pool models.PoolAddress) (models.PoolIdentity, error)
}

// Store is the subset of persistence the resolver needs.
type Store interface {
	LoadPoolIdentity(ctx context.Context, pool models.PoolAddress) (models.PoolIdentity, bool, error)
	SavePoolIdentity(ctx context.Context, ident models.PoolIdentity) error
}

type cacheEntry struct {
	identity  models.PoolIdentity
	expiresAt time.Time
}

// Resolver implements the cache -> persistence -> hints -> on-chain
// priority chain with a cooldown blacklist on failure.
type Resolver struct {
	cfg     config.IdentityConfig
	decoder ChainDecoder
	store   Store // may be nil: degrades to cache+hints+decode only

	mu        sync.RWMutex
	cache     map[models.PoolAddress]cacheEntry
	blacklist map[models.PoolAddress]time.Time
}

func New(cfg config.IdentityConfig, decoder ChainDecoder, store Store) *Resolver {
	return &Resolver{
		cfg:       cfg,
		decoder:   decoder,
		store:     store,
		cache:     make(map[models.PoolAddress]cacheEntry),
		blacklist: make(map[models.PoolAddress]time.Time),
	}
}

// Resolve returns the canonical identity for pool, or a typed
// IdentityFailure. hints are only consulted if cache and persistence miss.
func (r *Resolver) Resolve(ctx context.Context, pool models.PoolAddress, hints models.IdentityHints) (models.PoolIdentity, error) {
	if until, blocked := r.blacklisted(pool); blocked {
		return models.PoolIdentity{}, &models.IdentityFailure{
			Kind: models.FailBlacklisted, Pool: pool,
			Err: blacklistError{until: until},
		}
	}

	if ident, ok := r.fromCache(pool); ok {
		return ident, nil
	}

	if r.store != nil {
		if ident, ok, err := r.store.LoadPoolIdentity(ctx, pool); err == nil && ok {
			r.writeCache(ident)
			return ident, nil
		}
	}

	if ident, ok := r.fromHints(pool, hints); ok {
		if err := Check(ident); err != nil {
			r.blacklistPool(pool)
			return models.PoolIdentity{}, err
		}
		r.writeCache(ident)
		r.persist(ctx, ident)
		return ident, nil
	}

	if r.decoder == nil {
		r.blacklistPool(pool)
		return models.PoolIdentity{}, &models.IdentityFailure{Kind: models.FailFetchFailed, Pool: pool}
	}

	ident, err := r.decoder.ResolveOnChainIdentity(ctx, pool)
	if err != nil {
		r.blacklistPool(pool)
		return models.PoolIdentity{}, &models.IdentityFailure{Kind: models.FailFetchFailed, Pool: pool, Err: err}
	}
	ident.Source = models.ResolutionOnChain
	ident.ResolvedAt = time.Now()

	if err := Check(ident); err != nil {
		r.blacklistPool(pool)
		return models.PoolIdentity{}, err
	}

	r.writeCache(ident)
	r.persist(ctx, ident)
	return ident, nil
}

func (r *Resolver) persist(ctx context.Context, ident models.PoolIdentity) {
	if r.store == nil {
		return
	}
	if err := r.store.SavePoolIdentity(ctx, ident); err != nil {
		log.Printf("[IdentityResolver] failed to persist identity for %s: %v", ident.Pool, err)
	}
}

func (r *Resolver) fromCache(pool models.PoolAddress) (models.PoolIdentity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[pool]
	if !ok || time.Now().After(entry.expiresAt) {
		return models.PoolIdentity{}, false
	}
	return entry.identity, true
}

func (r *Resolver) writeCache(ident models.PoolIdentity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[ident.Pool] = cacheEntry{identity: ident, expiresAt: time.Now().Add(r.cfg.CacheTTL)}
}

func (r *Resolver) fromHints(pool models.PoolAddress, hints models.IdentityHints) (models.PoolIdentity, bool) {
	if hints.BaseMint == "" || hints.QuoteMint == "" || hints.BaseDecimals == nil || hints.QuoteDecimals == nil {
		return models.PoolIdentity{}, false
	}
	return models.PoolIdentity{
		Pool:          pool,
		BaseMint:      hints.BaseMint,
		QuoteMint:     hints.QuoteMint,
		BaseDecimals:  *hints.BaseDecimals,
		QuoteDecimals: *hints.QuoteDecimals,
		BaseSymbol:    hints.BaseSymbol,
		QuoteSymbol:   hints.QuoteSymbol,
		Source:        models.ResolutionHint,
		ResolvedAt:    time.Now(),
	}, true
}

func (r *Resolver) blacklisted(pool models.PoolAddress) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	until, ok := r.blacklist[pool]
	if !ok {
		return time.Time{}, false
	}
	if time.Now().After(until) {
		return time.Time{}, false
	}
	return until, true
}

func (r *Resolver) blacklistPool(pool models.PoolAddress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blacklist[pool] = time.Now().Add(r.cfg.BlacklistDuration)
	log.Printf("[IdentityResolver] blacklisting %s for %s", pool, r.cfg.BlacklistDuration)
}

type blacklistError struct{ until time.Time }

func (e blacklistError) Error() string {
	return "blacklisted until " + e.until.Format(time.RFC3339)
}
