// Package flagstore implements per-tenant feature flag lookup: per-tenant
// value, falling back to a global-tenant override, falling back to a
// caller-supplied default. All flags are booleans drawn from the closed set
// in internal/domain/flags.
package flagstore

import (
	"context"

	"ridecore/internal/domain/flags"
)

// Store is the feature flag contract. Reads are best-effort and
// non-transactional.
type Store interface {
	// Get resolves flag for tenant: tenant override, then global-tenant
	// override, then def.
	Get(ctx context.Context, tenant string, flag flags.Flag, def bool) (bool, error)

	// Set writes an explicit per-tenant override.
	Set(ctx context.Context, tenant string, flag flags.Flag, value bool) error

	// InitDefaults writes flags.Defaults for tenant, but only the fields
	// still missing — an existing override is never clobbered.
	InitDefaults(ctx context.Context, tenant string) error
}

// Key is the KV hash key holding a tenant's flags.
func Key(tenant string) string {
	return "feature-flags:" + tenant
}
