// Package credentials implements the hierarchical credential resolution
// algorithm from spec.md §4.3: processor scope narrows to campaign, then
// tenant, then system, each checked in turn until one yields a usable
// value. Values are encrypted at rest with internal/crypto's envelope
// cipher and cached read-through with a per-entry TTL.
package credentials

import (
	"context"
	"time"

	"github.com/docuflow/enginecore/internal/core"
	"github.com/docuflow/enginecore/internal/crypto"
	"github.com/docuflow/enginecore/internal/domain/credential"
	"github.com/docuflow/enginecore/internal/storage"
	gocache "github.com/patrickmn/go-cache"
)

// Resolver walks the scope hierarchy for one tenant database.
type Resolver struct {
	store      storage.CredentialStore
	masterKey  []byte
	cache      *gocache.Cache
}

// New builds a Resolver. masterKey must be 32 bytes (AES-256); ttl and
// cleanupInterval size the read-through cache, per SPEC_FULL §5.
func New(store storage.CredentialStore, masterKey []byte, ttl, cleanupInterval time.Duration) *Resolver {
	return &Resolver{
		store:     store,
		masterKey: masterKey,
		cache:     gocache.New(ttl, cleanupInterval),
	}
}

// Resolve implements the five-step narrowest-to-broadest lookup from
// spec.md §4.3. processorID, campaignID and tenantID are all optional: each
// scope whose id is empty is skipped, and the system scope is always tried
// last.
func (r *Resolver) Resolve(ctx context.Context, key, processorID, campaignID, tenantID string) (string, error) {
	type lookup struct {
		scope    credential.Scope
		scopeRef string
	}
	candidates := make([]lookup, 0, 4)
	if processorID != "" {
		candidates = append(candidates, lookup{credential.ScopeProcessor, processorID})
	}
	if campaignID != "" {
		candidates = append(candidates, lookup{credential.ScopeCampaign, campaignID})
	}
	if tenantID != "" {
		candidates = append(candidates, lookup{credential.ScopeTenant, tenantID})
	}
	candidates = append(candidates, lookup{credential.ScopeSystem, ""})

	now := time.Now().UTC()
	for _, c := range candidates {
		cacheKey := cacheKeyFor(key, c.scope, c.scopeRef)
		if cached, ok := r.cache.Get(cacheKey); ok {
			if cached == "" {
				continue // negative cache entry: known absent at this scope
			}
			return cached.(string), nil
		}

		cred, err := r.store.Find(ctx, key, c.scope, c.scopeRef)
		if err != nil {
			r.cache.SetDefault(cacheKey, "")
			continue
		}
		if cred == nil || !cred.IsUsable(now) {
			r.cache.SetDefault(cacheKey, "")
			continue
		}

		plaintext, err := crypto.DecryptEnvelope(r.masterKey, subjectFor(c.scope, c.scopeRef), key, cred.EncryptedValue)
		if err != nil {
			return "", err
		}
		_ = r.store.TouchLastUsed(ctx, cred.ID)
		r.cache.SetDefault(cacheKey, string(plaintext))
		return string(plaintext), nil
	}

	return "", &core.CredentialNotFoundError{Key: key}
}

// Put encrypts and persists a credential at the given scope, invalidating
// any cached negative/positive entry for that (key, scope, scopeRef).
func (r *Resolver) Put(ctx context.Context, key, value string, scope credential.Scope, scopeRef string) error {
	ciphertext, err := crypto.EncryptEnvelope(r.masterKey, subjectFor(scope, scopeRef), key, []byte(value))
	if err != nil {
		return err
	}
	c := &credential.Credential{
		Key:            key,
		EncryptedValue: ciphertext,
		Scope:          scope,
		ScopeRef:       scopeRef,
	}
	if err := r.store.Put(ctx, c); err != nil {
		return err
	}
	r.cache.Delete(cacheKeyFor(key, scope, scopeRef))
	return nil
}

func subjectFor(scope credential.Scope, scopeRef string) []byte {
	return []byte(string(scope) + ":" + scopeRef)
}

func cacheKeyFor(key string, scope credential.Scope, scopeRef string) string {
	return string(scope) + "|" + scopeRef + "|" + key
}
