// File: internal/usecase/usage_uc.go
package usecase

import (
	"context"
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
var _ UsageUseCase = (*usageUC)(nil)

type UsageUseCase interface {
	// RecordConsumption appends a usage event for ent and, for demo use, bumps the
	// demo counter in the same transaction. Failures wrap domain.ErrLedgerWrite.
	RecordConsumption(ctx context.Context, ent model.EffectiveEntitlement, task model.TaskSummary) error
	// ReserveDemo holds the account's demo slot for ttl. It reports false when the
	// demo is spent or another request holds the slot. Store failures wrap
	// domain.ErrTransientDependency.
	ReserveDemo(ctx context.Context, accountID string, ttl time.Duration) (time.Time, bool, error)
	// ReleaseDemo drops a reservation returned by ReserveDemo.
	ReleaseDemo(ctx context.Context, accountID string, until time.Time) error
}

type usageUC struct {
	accounts repository.AccountRepository
	usage    repository.UsageRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewUsageUseCase(accounts repository.AccountRepository, usage repository.UsageRepository, tm repository.TransactionManager, logger *zerolog.Logger) *usageUC {
	return &usageUC{accounts: accounts, usage: usage, tm: tm, log: logger}
}

func (u *usageUC) RecordConsumption(ctx context.Context, ent model.EffectiveEntitlement, task model.TaskSummary) error {
	defer logging.TraceDuration(u.log, "UsageUC.RecordConsumption")()

	if err := task.Validate(); err != nil {
		return err
	}
	if ent.AccountID == "" {
		return domain.ErrUnauthenticated
	}

	isDemo := !ent.IsPremium
	ev := model.NewUsageEvent(ent.AccountID, task, isDemo, time.Now())

	var used int
	err := u.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := u.usage.Append(ctx, tx, ev); err != nil {
			return fmt.Errorf("append usage: %w", err)
		}
		if !isDemo {
			return nil
		}
		n, err := u.accounts.IncrementDemoUsed(ctx, tx, ent.AccountID)
		if err != nil {
			return fmt.Errorf("increment demo counter: %w", err)
		}
		used = n
		return nil
	})
	if err != nil {
		metrics.IncLedgerWriteFailure()
		logging.With(ctx, u.log).Error().Err(err).
			Str("account_id", ent.AccountID).
			Str("task_type", task.Type).
			Bool("demo", isDemo).
			Msg("usage ledger write failed")
		return fmt.Errorf("%w: %v", domain.ErrLedgerWrite, err)
	}

	metrics.IncUsageRecorded(string(task.Mode), isDemo)
	if isDemo && used > model.DemoLimit {
		logging.With(ctx, u.log).Warn().
			Str("account_id", ent.AccountID).
			Int("demo_tasks_used", used).
			Msg("demo allowance overrun")
	}
	return nil
}

func (u *usageUC) ReserveDemo(ctx context.Context, accountID string, ttl time.Duration) (time.Time, bool, error) {
	defer logging.TraceDuration(u.log, "UsageUC.ReserveDemo")()

	if accountID == "" {
		return time.Time{}, false, domain.ErrUnauthenticated
	}
	// Postgres keeps microseconds; release matches on the stored value.
	now := time.Now().UTC().Truncate(time.Microsecond)
	until := now.Add(ttl)
	ok, err := u.accounts.ReserveDemo(ctx, repository.NoTX, accountID, until, now, model.DemoLimit)
	if err != nil {
		metrics.IncDemoClaim("store_error")
		logging.With(ctx, u.log).Error().Err(err).Str("account_id", accountID).Msg("demo reservation failed")
		return time.Time{}, false, fmt.Errorf("%w: reserve demo: %v", domain.ErrTransientDependency, err)
	}
	if !ok {
		metrics.IncDemoClaim("store_busy")
		return time.Time{}, false, nil
	}
	metrics.IncDemoClaim("store_reserved")
	return until, true, nil
}

func (u *usageUC) ReleaseDemo(ctx context.Context, accountID string, until time.Time) error {
	if err := u.accounts.ReleaseDemo(ctx, repository.NoTX, accountID, until); err != nil {
		return fmt.Errorf("%w: release demo: %v", domain.ErrTransientDependency, err)
	}
	return nil
}
