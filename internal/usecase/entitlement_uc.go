// File: internal/usecase/entitlement_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/repository"
	"langtest-practice/internal/infra/logging"
	"langtest-practice/internal/infra/metrics"
)

// Compile-time check
var _ EntitlementUseCase = (*entitlementUC)(nil)

// EntitlementUseCase answers "may this account consume a task right now".
type EntitlementUseCase interface {
	// Evaluate returns the effective entitlement at now, applying lazy expiry to
	// the stored record when premium has lapsed.
	Evaluate(ctx context.Context, accountID string, now time.Time) (model.EffectiveEntitlement, error)
	// Require is Evaluate plus the typed denial for disallowed callers.
	Require(ctx context.Context, accountID string, now time.Time) (model.EffectiveEntitlement, error)
	// Account loads the record and its entitlement in one read.
	Account(ctx context.Context, accountID string, now time.Time) (*model.AccountRecord, model.EffectiveEntitlement, error)
	// ExpireLapsed clears premium on up to batch accounts whose expiry has
	// passed and returns how many it flipped.
	ExpireLapsed(ctx context.Context, now time.Time, batch int) (int, error)
}

type entitlementUC struct {
	accounts repository.AccountRepository
	log      *zerolog.Logger
}

func NewEntitlementUseCase(accounts repository.AccountRepository, logger *zerolog.Logger) *entitlementUC {
	return &entitlementUC{accounts: accounts, log: logger}
}

func (u *entitlementUC) Evaluate(ctx context.Context, accountID string, now time.Time) (model.EffectiveEntitlement, error) {
	_, ent, err := u.Account(ctx, accountID, now)
	return ent, err
}

func (u *entitlementUC) Require(ctx context.Context, accountID string, now time.Time) (model.EffectiveEntitlement, error) {
	ent, err := u.Evaluate(ctx, accountID, now)
	if err != nil {
		return ent, err
	}
	return ent, ent.Err()
}

func (u *entitlementUC) Account(ctx context.Context, accountID string, now time.Time) (*model.AccountRecord, model.EffectiveEntitlement, error) {
	defer logging.TraceDuration(u.log, "EntitlementUC.Evaluate")()

	var acc *model.AccountRecord
	if accountID != "" {
		found, err := u.accounts.FindByID(ctx, repository.NoTX, accountID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// a token for a deleted account is treated like no token
		case err != nil:
			return nil, model.EffectiveEntitlement{}, fmt.Errorf("%w: load account: %v", domain.ErrTransientDependency, err)
		default:
			acc = found
		}
	}

	ent, corr := model.ComputeEffectiveState(acc, now)
	if corr != nil {
		u.applyCorrection(ctx, corr)
		acc.IsPremium = false
	}
	metrics.IncEntitlementDecision(string(ent.Reason))
	return acc, ent, nil
}

// applyCorrection persists lazy expiry. The evaluation result never depends on
// the write: a failed or lost CAS is retried by the next read.
func (u *entitlementUC) applyCorrection(ctx context.Context, corr *model.Correction) {
	applied, err := u.accounts.ExpirePremium(ctx, repository.NoTX, corr.AccountID, corr.ExpireAt)
	if err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Str("account_id", corr.AccountID).Msg("lazy expiry write failed")
		return
	}
	if applied {
		metrics.IncPremiumExpired("lazy", 1)
		logging.With(ctx, u.log).Info().Str("account_id", corr.AccountID).Msg("premium expired")
	}
}

func (u *entitlementUC) ExpireLapsed(ctx context.Context, now time.Time, batch int) (int, error) {
	defer logging.TraceDuration(u.log, "EntitlementUC.ExpireLapsed")()

	ids, err := u.accounts.ListLapsedPremium(ctx, repository.NoTX, now, batch)
	if err != nil {
		return 0, fmt.Errorf("%w: list lapsed: %v", domain.ErrTransientDependency, err)
	}
	n := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		applied, err := u.accounts.ExpirePremium(ctx, repository.NoTX, id, now)
		if err != nil {
			logging.With(ctx, u.log).Warn().Err(err).Str("account_id", id).Msg("sweep expiry write failed")
			continue
		}
		if applied {
			n++
		}
	}
	if n > 0 {
		metrics.IncPremiumExpired("sweep", n)
	}
	return n, nil
}
