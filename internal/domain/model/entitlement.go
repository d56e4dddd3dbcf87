package model

import (
	"time"

	"langtest-practice/internal/domain"
)

const (
	// DemoLimit is the number of consumptions a non-premium account gets.
	DemoLimit = 1
	// UnlimitedDemo is the DemoRemaining sentinel for premium accounts.
	UnlimitedDemo = -1
)

type EntitlementReason string

const (
	ReasonPremium         EntitlementReason = "premium"
	ReasonDemoAvailable   EntitlementReason = "demo_available"
	ReasonDemoExhausted   EntitlementReason = "demo_exhausted"
	ReasonUnauthenticated EntitlementReason = "unauthenticated"
)

// EffectiveEntitlement is what an account may do right now.
type EffectiveEntitlement struct {
	AccountID     string
	IsPremium     bool
	DemoRemaining int // UnlimitedDemo for premium
	Allowed       bool
	Reason        EntitlementReason
	PremiumUntil  *time.Time
}

// Unlimited reports whether DemoRemaining carries the unlimited sentinel.
func (e EffectiveEntitlement) Unlimited() bool { return e.DemoRemaining == UnlimitedDemo }

// Err returns the typed denial for a disallowed entitlement, nil otherwise.
func (e EffectiveEntitlement) Err() error {
	if e.Allowed {
		return nil
	}
	if e.Reason == ReasonUnauthenticated {
		return domain.ErrUnauthenticated
	}
	return domain.ErrEntitlementExhausted
}

// Correction is the lazy-expiry write the caller must apply to the store.
type Correction struct {
	AccountID string
	ExpireAt  time.Time
}

// ComputeEffectiveState derives the entitlement of acc at now. It performs no I/O;
// a non-nil Correction means the stored premium flag is stale and must be cleared.
func ComputeEffectiveState(acc *AccountRecord, now time.Time) (EffectiveEntitlement, *Correction) {
	if acc.IsZero() {
		return EffectiveEntitlement{
			Allowed: false,
			Reason:  ReasonUnauthenticated,
		}, nil
	}

	var corr *Correction
	premium := acc.IsPremium
	if premium && acc.PremiumUntil != nil && !acc.PremiumUntil.After(now) {
		premium = false
		corr = &Correction{AccountID: acc.ID, ExpireAt: now}
	}

	if premium {
		return EffectiveEntitlement{
			AccountID:     acc.ID,
			IsPremium:     true,
			DemoRemaining: UnlimitedDemo,
			Allowed:       true,
			Reason:        ReasonPremium,
			PremiumUntil:  acc.PremiumUntil,
		}, corr
	}

	remaining := DemoLimit - acc.DemoTasksUsed
	if remaining < 0 {
		remaining = 0
	}
	ent := EffectiveEntitlement{
		AccountID:     acc.ID,
		IsPremium:     false,
		DemoRemaining: remaining,
		Allowed:       remaining > 0,
		Reason:        ReasonDemoAvailable,
	}
	if !ent.Allowed {
		ent.Reason = ReasonDemoExhausted
	}
	return ent, corr
}
