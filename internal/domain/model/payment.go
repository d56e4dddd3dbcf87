package model

import (
	"strings"
	"time"
)

type PlanType string

const (
	PlanMonthly  PlanType = "monthly"
	PlanYearly   PlanType = "yearly"
	PlanLifetime PlanType = "lifetime"
)

// LifetimePremiumUntil is the far-future expiry stored for lifetime purchases.
var LifetimePremiumUntil = time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)

// ParsePlanType normalizes a plan name. Unknown values fall back to monthly.
func ParsePlanType(s string) PlanType {
	switch PlanType(strings.ToLower(strings.TrimSpace(s))) {
	case PlanLifetime:
		return PlanLifetime
	case PlanYearly:
		return PlanYearly
	default:
		return PlanMonthly
	}
}

// IsKnownPlan reports whether s names a purchasable plan exactly.
func IsKnownPlan(s string) bool {
	switch PlanType(s) {
	case PlanMonthly, PlanYearly, PlanLifetime:
		return true
	}
	return false
}

// PremiumUntilFor returns the expiry granted by a purchase of plan at grantedAt.
func PremiumUntilFor(plan PlanType, grantedAt time.Time) time.Time {
	switch ParsePlanType(string(plan)) {
	case PlanLifetime:
		return LifetimePremiumUntil
	case PlanYearly:
		return grantedAt.Add(365 * 24 * time.Hour)
	default:
		return grantedAt.Add(30 * 24 * time.Hour)
	}
}

// MergePremiumUntil keeps the later of a still-active entitlement and a new grant,
// so a redelivered or reordered purchase never shortens premium.
func MergePremiumUntil(acc *AccountRecord, granted, now time.Time) time.Time {
	if acc == nil || !acc.IsPremium {
		return granted
	}
	if acc.PremiumUntil == nil {
		return LifetimePremiumUntil
	}
	if acc.PremiumUntil.After(now) && acc.PremiumUntil.After(granted) {
		return *acc.PremiumUntil
	}
	return granted
}

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
)

// PaymentEvent is the append-only ledger row for one completed transaction.
// ExternalPaymentID is the idempotency key.
type PaymentEvent struct {
	ID                string
	AccountID         string
	ExternalPaymentID string
	Amount            int64 // minor units
	Currency          string
	Status            PaymentStatus
	PlanType          PlanType
	CreatedAt         time.Time
}

type BillingEventType string

const (
	BillingCheckoutCompleted     BillingEventType = "checkout.session.completed"
	BillingSubscriptionCancelled BillingEventType = "customer.subscription.deleted"
)

// BillingEvent is a processor webhook normalized to what reconciliation needs.
type BillingEvent struct {
	ID                string // processor event id, for logs
	Type              BillingEventType
	AccountID         string
	CustomerRef       string
	PlanType          PlanType
	ExternalPaymentID string
	Amount            int64
	Currency          string
	Status            string
	OccurredAt        time.Time
}
