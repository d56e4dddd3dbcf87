//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/repository"
	"langtest-practice/internal/usecase"
)

func TestUsageUseCase_RecordConsumption(t *testing.T) {
	ctx := context.Background()
	writing := model.TaskSummary{Type: "TASK_1_EMAIL", Mode: model.TaskModeWriting}

	t.Run("demo use appends and increments", func(t *testing.T) {
		accounts, usage := NewMockAccountRepo(), NewMockUsageRepo()
		accounts.Put(&model.AccountRecord{ID: "a1"})
		uc := usecase.NewUsageUseCase(accounts, usage, NewMockTxManager(), newTestLogger())

		ent := model.EffectiveEntitlement{AccountID: "a1", Allowed: true, DemoRemaining: 1}
		if err := uc.RecordConsumption(ctx, ent, writing); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := accounts.Get("a1").DemoTasksUsed; got != 1 {
			t.Errorf("expected counter 1, got %d", got)
		}
		if usage.Count() != 1 || !usage.Events[0].IsDemo {
			t.Errorf("expected one demo event, got %+v", usage.Events)
		}
	})

	t.Run("premium use leaves the counter alone", func(t *testing.T) {
		accounts, usage := NewMockAccountRepo(), NewMockUsageRepo()
		accounts.Put(&model.AccountRecord{ID: "p1", IsPremium: true})
		uc := usecase.NewUsageUseCase(accounts, usage, NewMockTxManager(), newTestLogger())

		ent := model.EffectiveEntitlement{AccountID: "p1", IsPremium: true, Allowed: true, DemoRemaining: model.UnlimitedDemo}
		for i := 0; i < 3; i++ {
			if err := uc.RecordConsumption(ctx, ent, writing); err != nil {
				t.Fatal(err)
			}
		}
		if got := accounts.Get("p1").DemoTasksUsed; got != 0 {
			t.Errorf("expected counter untouched, got %d", got)
		}
		if usage.Count() != 3 || usage.Events[0].IsDemo {
			t.Errorf("expected three premium events")
		}
	})

	t.Run("append failure is a ledger error and skips the increment", func(t *testing.T) {
		accounts, usage := NewMockAccountRepo(), NewMockUsageRepo()
		accounts.Put(&model.AccountRecord{ID: "a2"})
		usage.AppendFunc = func(ctx context.Context, tx repository.Tx, ev *model.UsageEvent) error {
			return errors.New("disk full")
		}
		uc := usecase.NewUsageUseCase(accounts, usage, NewMockTxManager(), newTestLogger())

		err := uc.RecordConsumption(ctx, model.EffectiveEntitlement{AccountID: "a2", Allowed: true}, writing)
		if !errors.Is(err, domain.ErrLedgerWrite) {
			t.Fatalf("expected ErrLedgerWrite, got %v", err)
		}
		if got := accounts.Get("a2").DemoTasksUsed; got != 0 {
			t.Errorf("expected counter unchanged, got %d", got)
		}
	})

	t.Run("increment failure is a ledger error", func(t *testing.T) {
		accounts := NewMockAccountRepo()
		accounts.IncrementDemoUsedFunc = func(ctx context.Context, tx repository.Tx, id string) (int, error) {
			return 0, errors.New("deadlock")
		}
		uc := usecase.NewUsageUseCase(accounts, NewMockUsageRepo(), NewMockTxManager(), newTestLogger())

		err := uc.RecordConsumption(ctx, model.EffectiveEntitlement{AccountID: "a3", Allowed: true}, writing)
		if !errors.Is(err, domain.ErrLedgerWrite) {
			t.Fatalf("expected ErrLedgerWrite, got %v", err)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		uc := usecase.NewUsageUseCase(NewMockAccountRepo(), NewMockUsageRepo(), NewMockTxManager(), newTestLogger())
		if err := uc.RecordConsumption(ctx, model.EffectiveEntitlement{AccountID: "x"}, model.TaskSummary{Type: "T"}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for missing mode, got %v", err)
		}
		if err := uc.RecordConsumption(ctx, model.EffectiveEntitlement{}, writing); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Errorf("expected ErrUnauthenticated for empty account, got %v", err)
		}
	})
}

func TestUsageUseCase_DemoReservation(t *testing.T) {
	ctx := context.Background()
	writing := model.TaskSummary{Type: "TASK_1_EMAIL", Mode: model.TaskModeWriting}

	t.Run("one holder at a time", func(t *testing.T) {
		accounts := NewMockAccountRepo()
		accounts.Put(&model.AccountRecord{ID: "a1"})
		uc := usecase.NewUsageUseCase(accounts, NewMockUsageRepo(), NewMockTxManager(), newTestLogger())

		until, ok, err := uc.ReserveDemo(ctx, "a1", time.Minute)
		if err != nil || !ok {
			t.Fatalf("expected reservation, got %v %v", ok, err)
		}
		if _, ok, _ := uc.ReserveDemo(ctx, "a1", time.Minute); ok {
			t.Fatal("second reservation must be refused while the first is held")
		}
		if err := uc.ReleaseDemo(ctx, "a1", until); err != nil {
			t.Fatal(err)
		}
		if _, ok, _ := uc.ReserveDemo(ctx, "a1", time.Minute); !ok {
			t.Fatal("expected reservation after release")
		}
	})

	t.Run("ledger write clears the hold and spends the demo", func(t *testing.T) {
		accounts := NewMockAccountRepo()
		accounts.Put(&model.AccountRecord{ID: "a2"})
		uc := usecase.NewUsageUseCase(accounts, NewMockUsageRepo(), NewMockTxManager(), newTestLogger())

		if _, ok, _ := uc.ReserveDemo(ctx, "a2", time.Minute); !ok {
			t.Fatal("expected reservation")
		}
		if err := uc.RecordConsumption(ctx, model.EffectiveEntitlement{AccountID: "a2", Allowed: true}, writing); err != nil {
			t.Fatal(err)
		}
		if accounts.Reserved("a2") {
			t.Error("expected hold cleared")
		}
		if _, ok, _ := uc.ReserveDemo(ctx, "a2", time.Minute); ok {
			t.Error("spent demo must not be reservable")
		}
	})

	t.Run("expired hold can be taken over", func(t *testing.T) {
		accounts := NewMockAccountRepo()
		accounts.Put(&model.AccountRecord{ID: "a3"})
		uc := usecase.NewUsageUseCase(accounts, NewMockUsageRepo(), NewMockTxManager(), newTestLogger())

		stale, ok, _ := uc.ReserveDemo(ctx, "a3", -time.Second)
		if !ok {
			t.Fatal("expected reservation")
		}
		fresh, ok, _ := uc.ReserveDemo(ctx, "a3", time.Minute)
		if !ok {
			t.Fatal("expected takeover of the expired hold")
		}
		// Releasing the stale hold must not drop the new holder.
		_ = uc.ReleaseDemo(ctx, "a3", stale)
		if !accounts.Reserved("a3") {
			t.Fatal("stale release dropped the current hold")
		}
		_ = uc.ReleaseDemo(ctx, "a3", fresh)
		if accounts.Reserved("a3") {
			t.Error("expected hold released")
		}
	})

	t.Run("store failure is transient", func(t *testing.T) {
		accounts := NewMockAccountRepo()
		accounts.ReserveDemoFunc = func(ctx context.Context, tx repository.Tx, id string, until, now time.Time, limit int) (bool, error) {
			return false, errors.New("timeout")
		}
		uc := usecase.NewUsageUseCase(accounts, NewMockUsageRepo(), NewMockTxManager(), newTestLogger())
		if _, _, err := uc.ReserveDemo(ctx, "a4", time.Minute); !errors.Is(err, domain.ErrTransientDependency) {
			t.Errorf("expected ErrTransientDependency, got %v", err)
		}
		if _, _, err := uc.ReserveDemo(ctx, "", time.Minute); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Errorf("expected ErrUnauthenticated, got %v", err)
		}
	})
}
