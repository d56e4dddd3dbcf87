//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/repository"
)

func newTestAccount(t *testing.T, repo *PostgresAccountRepo, email string) *model.AccountRecord {
	t.Helper()
	acc, err := model.NewAccount("", email, "Test User", "hash")
	if err != nil {
		t.Fatalf("model.NewAccount() failed: %v", err)
	}
	if err := repo.Create(context.Background(), nil, acc); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	return acc
}

func TestAccountRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewPostgresAccountRepo(testPool)
	tm := NewTxManager(testPool)
	ctx := context.Background()

	t.Run("should create and find an account", func(t *testing.T) {
		cleanup(t)
		acc := newTestAccount(t, repo, "A@Example.com")

		found, err := repo.FindByEmail(ctx, nil, "a@example.com")
		if err != nil {
			t.Fatalf("FindByEmail failed: %v", err)
		}
		if found.ID != acc.ID || found.IsPremium || found.DemoTasksUsed != 0 {
			t.Errorf("unexpected account %+v", found)
		}
		if err := repo.Create(ctx, nil, acc); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists on duplicate, got %v", err)
		}
		if _, err := repo.FindByID(ctx, nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("expire premium is a compare-and-set", func(t *testing.T) {
		cleanup(t)
		acc := newTestAccount(t, repo, "exp@example.com")
		now := time.Now().UTC()
		if err := repo.GrantPremium(ctx, nil, acc.ID, now.Add(-time.Minute), now.Add(-time.Hour)); err != nil {
			t.Fatalf("GrantPremium failed: %v", err)
		}

		applied, err := repo.ExpirePremium(ctx, nil, acc.ID, now)
		if err != nil || !applied {
			t.Fatalf("expected first expiry to apply, got %v %v", applied, err)
		}
		applied, err = repo.ExpirePremium(ctx, nil, acc.ID, now)
		if err != nil || applied {
			t.Fatalf("expected second expiry to be a no-op, got %v %v", applied, err)
		}

		// A grant that lands after the read must not be undone by a late correction.
		if err := repo.GrantPremium(ctx, nil, acc.ID, now.Add(24*time.Hour), now); err != nil {
			t.Fatalf("GrantPremium failed: %v", err)
		}
		if applied, _ := repo.ExpirePremium(ctx, nil, acc.ID, now); applied {
			t.Fatal("expiry must not clear a renewed grant")
		}
	})

	t.Run("concurrent demo increments are not lost", func(t *testing.T) {
		cleanup(t)
		acc := newTestAccount(t, repo, "demo@example.com")

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.IncrementDemoUsed(ctx, nil, acc.ID); err != nil {
					t.Errorf("IncrementDemoUsed failed: %v", err)
				}
			}()
		}
		wg.Wait()

		found, _ := repo.FindByID(ctx, nil, acc.ID)
		if found.DemoTasksUsed != 20 {
			t.Errorf("expected 20 increments, got %d", found.DemoTasksUsed)
		}
	})

	t.Run("demo reservation has a single holder", func(t *testing.T) {
		cleanup(t)
		acc := newTestAccount(t, repo, "hold@example.com")
		now := time.Now().UTC().Truncate(time.Microsecond)
		until := now.Add(time.Minute)

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			won int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.ReserveDemo(ctx, nil, acc.ID, until, now, model.DemoLimit)
				if err != nil {
					t.Errorf("ReserveDemo failed: %v", err)
					return
				}
				if ok {
					mu.Lock()
					won++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if won != 1 {
			t.Fatalf("expected exactly one reservation, got %d", won)
		}

		if err := repo.ReleaseDemo(ctx, nil, acc.ID, until); err != nil {
			t.Fatalf("ReleaseDemo failed: %v", err)
		}
		if ok, _ := repo.ReserveDemo(ctx, nil, acc.ID, until, now, model.DemoLimit); !ok {
			t.Fatal("expected reservation after release")
		}
		if _, err := repo.IncrementDemoUsed(ctx, nil, acc.ID); err != nil {
			t.Fatal(err)
		}
		if ok, _ := repo.ReserveDemo(ctx, nil, acc.ID, until, now, model.DemoLimit); ok {
			t.Fatal("spent demo must not be reservable")
		}
	})

	t.Run("customer ref keeps the first writer", func(t *testing.T) {
		cleanup(t)
		acc := newTestAccount(t, repo, "cus@example.com")

		ref, err := repo.SetCustomerRefIfAbsent(ctx, nil, acc.ID, "cus_1")
		if err != nil || ref != "cus_1" {
			t.Fatalf("expected cus_1, got %q %v", ref, err)
		}
		ref, err = repo.SetCustomerRefIfAbsent(ctx, nil, acc.ID, "cus_2")
		if err != nil || ref != "cus_1" {
			t.Fatalf("expected stored cus_1 to win, got %q %v", ref, err)
		}
		found, err := repo.FindByCustomerRef(ctx, nil, "cus_1")
		if err != nil || found.ID != acc.ID {
			t.Fatalf("FindByCustomerRef failed: %v", err)
		}
	})

	t.Run("revoke inside a transaction with row lock", func(t *testing.T) {
		cleanup(t)
		acc := newTestAccount(t, repo, "rev@example.com")
		now := time.Now().UTC()
		_ = repo.GrantPremium(ctx, nil, acc.ID, model.LifetimePremiumUntil, now)

		err := tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			locked, err := repo.FindByIDForUpdate(ctx, tx, acc.ID)
			if err != nil {
				return err
			}
			if !locked.IsPremium {
				t.Error("expected premium before revoke")
			}
			return repo.RevokePremium(ctx, tx, acc.ID)
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}
		found, _ := repo.FindByID(ctx, nil, acc.ID)
		if found.IsPremium || found.PremiumUntil != nil {
			t.Errorf("expected revoked account, got %+v", found)
		}
	})

	t.Run("list lapsed premium", func(t *testing.T) {
		cleanup(t)
		now := time.Now().UTC()
		lapsed := newTestAccount(t, repo, "lapsed@example.com")
		active := newTestAccount(t, repo, "active@example.com")
		_ = repo.GrantPremium(ctx, nil, lapsed.ID, now.Add(-time.Hour), now.Add(-48*time.Hour))
		_ = repo.GrantPremium(ctx, nil, active.ID, now.Add(time.Hour), now)

		ids, err := repo.ListLapsedPremium(ctx, nil, now, 10)
		if err != nil {
			t.Fatalf("ListLapsedPremium failed: %v", err)
		}
		if len(ids) != 1 || ids[0] != lapsed.ID {
			t.Errorf("expected only the lapsed account, got %v", ids)
		}
	})
}
