package repository

import (
	"context"

	"langtest-practice/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	// Insert appends a payment event. It returns false without error when a row
	// with the same external payment id already exists.
	Insert(ctx context.Context, tx Tx, p *model.PaymentEvent) (bool, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string, limit int) ([]*model.PaymentEvent, error)
}
