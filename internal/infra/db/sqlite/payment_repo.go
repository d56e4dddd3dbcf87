package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*PaymentRepo)(nil)

type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, COALESCE(account_id, ''), external_payment_id, amount, currency, status, plan_type, created_at`

func scanPayment(row rowScanner) (*model.PaymentEvent, error) {
	var (
		p            model.PaymentEvent
		status, plan string
		createdAt    int64
	)
	if err := row.Scan(&p.ID, &p.AccountID, &p.ExternalPaymentID, &p.Amount, &p.Currency, &status, &plan, &createdAt); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	p.PlanType = model.PlanType(plan)
	p.CreatedAt = fromNanos(createdAt)
	return &p, nil
}

func (r *PaymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.PaymentEvent) (bool, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return false, err
	}
	res, err := ex.ExecContext(ctx, `INSERT INTO payment_events
		(id, account_id, external_payment_id, amount, currency, status, plan_type, created_at)
		VALUES (?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_payment_id) DO NOTHING`,
		p.ID, p.AccountID, p.ExternalPaymentID, p.Amount, p.Currency, string(p.Status), string(p.PlanType), toNanos(p.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("insert payment event: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *PaymentRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit int) ([]*model.PaymentEvent, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payment_events
		WHERE account_id = ? ORDER BY created_at DESC LIMIT ?`, accountID, limit)
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
