package repository

import (
	"context"

	"langtest-practice/internal/domain/model"
)

type UsageRepository interface {
	Append(ctx context.Context, tx Tx, ev *model.UsageEvent) error
}
