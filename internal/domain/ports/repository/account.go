package repository

import (
	"context"
	"time"

	"langtest-practice/internal/domain/model"
)

// -----------------------------
// Accounts
// -----------------------------

// AccountRepository is the only writer of the account row. Every mutation is a
// single atomic statement so evaluator, ledger and reconciler never lose updates.
type AccountRepository interface {
	Create(ctx context.Context, tx Tx, acc *model.AccountRecord) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.AccountRecord, error)
	// FindByIDForUpdate row-locks the account when tx is a transaction.
	FindByIDForUpdate(ctx context.Context, tx Tx, id string) (*model.AccountRecord, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.AccountRecord, error)
	FindByCustomerRef(ctx context.Context, tx Tx, ref string) (*model.AccountRecord, error)

	// ExpirePremium clears is_premium only while premium_until <= now; it reports
	// whether this call performed the correction.
	ExpirePremium(ctx context.Context, tx Tx, id string, now time.Time) (bool, error)
	// IncrementDemoUsed adds one to demo_tasks_used, clears any demo reservation
	// and returns the new value.
	IncrementDemoUsed(ctx context.Context, tx Tx, id string) (int, error)
	// ReserveDemo marks the demo slot held until until. It succeeds only while
	// demo_tasks_used < limit and no unexpired reservation exists at now.
	ReserveDemo(ctx context.Context, tx Tx, id string, until, now time.Time, limit int) (bool, error)
	// ReleaseDemo drops the reservation made with until; other holders are untouched.
	ReleaseDemo(ctx context.Context, tx Tx, id string, until time.Time) error
	GrantPremium(ctx context.Context, tx Tx, id string, until time.Time, grantedAt time.Time) error
	RevokePremium(ctx context.Context, tx Tx, id string) error
	// UpdateProfile sets name and password hash; empty values keep the stored ones.
	UpdateProfile(ctx context.Context, tx Tx, id, name, passwordHash string) error
	// SetCustomerRefIfAbsent stores ref unless one exists, returning the stored ref.
	SetCustomerRefIfAbsent(ctx context.Context, tx Tx, id, ref string) (string, error)

	ListLapsedPremium(ctx context.Context, tx Tx, now time.Time, limit int) ([]string, error)
}
