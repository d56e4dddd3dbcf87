package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*PostgresPaymentRepo)(nil)

type PostgresPaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPaymentRepo(pool *pgxpool.Pool) *PostgresPaymentRepo {
	return &PostgresPaymentRepo{pool: pool}
}

const paymentColumns = `id, COALESCE(account_id, ''), external_payment_id, amount, currency, status, plan_type, created_at`

func scanPayment(row pgx.Row) (*model.PaymentEvent, error) {
	var p model.PaymentEvent
	var status, plan string
	if err := row.Scan(&p.ID, &p.AccountID, &p.ExternalPaymentID, &p.Amount, &p.Currency, &status, &plan, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	p.PlanType = model.PlanType(plan)
	return &p, nil
}

// Insert relies on the unique external_payment_id: a redelivery affects zero rows.
func (r *PostgresPaymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.PaymentEvent) (bool, error) {
	const q = `
INSERT INTO payment_events (id, account_id, external_payment_id, amount, currency, status, plan_type, created_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8)
ON CONFLICT (external_payment_id) DO NOTHING;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	tag, err := ex.Exec(ctx, q, p.ID, p.AccountID, p.ExternalPaymentID, p.Amount, p.Currency,
		string(p.Status), string(p.PlanType), p.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert payment event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresPaymentRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit int) ([]*model.PaymentEvent, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payment_events
 WHERE account_id=$1 ORDER BY created_at DESC LIMIT $2;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []*model.PaymentEvent
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
