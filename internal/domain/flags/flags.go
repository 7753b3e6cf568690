// Package flags defines the closed set of feature flags recognized by the
// core. Adding a flag is a code change, not a data change.
package flags

// Flag is a recognized feature-flag name.
type Flag string

const (
	// SurgePricingEnabled: when false, the Surge Calculator returns 1.0
	// unconditionally regardless of the demand window.
	SurgePricingEnabled Flag = "surge_pricing_enabled"

	// AutoPaymentCharge: when false, the Payment Orchestrator writes the
	// PENDING row and outbox entry but skips the async PSP charge.
	AutoPaymentCharge Flag = "auto_payment_charge"

	// NewScoringAlgo: when false, the Dispatch Engine uses the standard
	// scoring weights rather than the A/B variant.
	NewScoringAlgo Flag = "new_scoring_algo"

	// DispatchKillSwitch: when true, the Dispatch Engine rejects all new
	// ride creations with SERVICE_UNAVAILABLE.
	DispatchKillSwitch Flag = "dispatch_kill_switch"

	// RealTimeTracking is reserved; not consumed by the core.
	RealTimeTracking Flag = "real_time_tracking"
)

// Defaults holds the value init_defaults(tenant) writes for missing fields.
var Defaults = map[Flag]bool{
	SurgePricingEnabled: true,
	AutoPaymentCharge:   true,
	NewScoringAlgo:      false,
	DispatchKillSwitch:  false,
	RealTimeTracking:    false,
}

// GlobalTenant is the fallback namespace consulted when a tenant has no
// explicit override for a flag.
const GlobalTenant = "__global__"

// Known reports whether name is a recognized flag.
func Known(name Flag) bool {
	_, ok := Defaults[name]
	return ok
}

// All returns the closed set of recognized flags.
func All() []Flag {
	out := make([]Flag, 0, len(Defaults))
	for f := range Defaults {
		out = append(out, f)
	}
	return out
}
