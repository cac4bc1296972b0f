package tenant

import (
	"context"

	"github.com/docuflow/enginecore/internal/core"
	"github.com/docuflow/enginecore/internal/domain/tenant"
)

type ctxKey struct{}

// Current returns the tenant bound to ctx, or (nil, false) if none.
// The storage implementations do not call it: a repository method runs
// whether or not ctx carries a tenant binding.
func Current(ctx context.Context) (*tenant.Tenant, bool) {
	t, ok := ctx.Value(ctxKey{}).(*tenant.Tenant)
	return t, ok
}

// Require returns the bound tenant or a MissingTenantContext error. No
// repository method in internal/storage calls it.
func Require(ctx context.Context) (*tenant.Tenant, error) {
	t, ok := Current(ctx)
	if !ok {
		return nil, core.ErrMissingTenantContext
	}
	return t, nil
}

// Run pushes t onto ctx, invokes fn, and implicitly pops the binding on
// return by virtue of the derived context going out of scope — nested Run
// calls therefore always restore the outer binding once the inner one
// returns, per spec.md §4.1's "nested run calls restore the outer binding".
func Run[T any](ctx context.Context, t *tenant.Tenant, fn func(context.Context) (T, error)) (T, error) {
	scoped := context.WithValue(ctx, ctxKey{}, t)
	return fn(scoped)
}

// Bind is the non-generic form of Run, used by call sites that don't need a
// typed result (queue workers, HTTP middleware).
func Bind(ctx context.Context, t *tenant.Tenant) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}
