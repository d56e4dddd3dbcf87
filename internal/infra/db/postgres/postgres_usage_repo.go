package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/repository"
)

var _ repository.UsageRepository = (*PostgresUsageRepo)(nil)

type PostgresUsageRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUsageRepo(pool *pgxpool.Pool) *PostgresUsageRepo {
	return &PostgresUsageRepo{pool: pool}
}

func (r *PostgresUsageRepo) Append(ctx context.Context, tx repository.Tx, ev *model.UsageEvent) error {
	const q = `
INSERT INTO usage_events (id, account_id, task_type, task_mode, is_demo, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, ev.ID, ev.AccountID, ev.TaskType, string(ev.TaskMode), ev.IsDemo, ev.CreatedAt); err != nil {
		return fmt.Errorf("append usage event: %w", err)
	}
	return nil
}
