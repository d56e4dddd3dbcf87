package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/repository"
)

var _ repository.UsageRepository = (*UsageRepo)(nil)

type UsageRepo struct {
	db *sql.DB
}

func NewUsageRepo(db *sql.DB) *UsageRepo { return &UsageRepo{db: db} }

func (r *UsageRepo) Append(ctx context.Context, tx repository.Tx, ev *model.UsageEvent) error {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return err
	}
	var accountID sql.NullString
	if ev.AccountID != nil {
		accountID = sql.NullString{String: *ev.AccountID, Valid: true}
	}
	if _, err := ex.ExecContext(ctx, `INSERT INTO usage_events (id, account_id, task_type, task_mode, is_demo, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, ev.ID, accountID, ev.TaskType, string(ev.TaskMode), ev.IsDemo, toNanos(ev.CreatedAt)); err != nil {
		return fmt.Errorf("append usage event: %w", err)
	}
	return nil
}
