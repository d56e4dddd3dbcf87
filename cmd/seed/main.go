package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"langtest-practice/internal/config"
	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/repository"
	pg "langtest-practice/internal/infra/db/postgres"
	"langtest-practice/internal/infra/db/sqlite"
	"langtest-practice/internal/infra/logging"
	"langtest-practice/internal/usecase"
)

// seed creates a demo account and a premium account for local testing.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	password := flag.String("password", "password123", "password for the seeded accounts")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var accounts repository.AccountRepository
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Database.Path)
		if err != nil {
			log.Fatalf("sqlite: %v", err)
		}
		defer db.Close()
		accounts = sqlite.NewAccountRepo(db)
	default:
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		accounts = pg.NewPostgresAccountRepo(pool)
	}

	logger := logging.Nop()
	accountUC := usecase.NewAccountUseCase(accounts, usecase.NewEntitlementUseCase(accounts, logger), logger)

	seed := []struct {
		Email   string
		Name    string
		Premium bool
	}{
		{"demo@example.com", "Demo Learner", false},
		{"premium@example.com", "Premium Learner", true},
	}

	for _, s := range seed {
		acc, err := accountUC.Register(ctx, s.Email, *password, s.Name)
		if errors.Is(err, domain.ErrAlreadyExists) {
			fmt.Printf("exists: %s\n", s.Email)
			continue
		}
		if err != nil {
			log.Fatalf("register %q: %v", s.Email, err)
		}
		if s.Premium {
			now := time.Now()
			if err := accounts.GrantPremium(ctx, repository.NoTX, acc.ID, model.PremiumUntilFor(model.PlanYearly, now), now); err != nil {
				log.Fatalf("grant premium %q: %v", s.Email, err)
			}
		}
		fmt.Printf("seeded: %s (id=%s, premium=%t)\n", s.Email, acc.ID, s.Premium)
	}

	fmt.Println("Seeding complete.")
}
