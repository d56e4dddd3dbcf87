package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*PostgresAccountRepo)(nil)

type PostgresAccountRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepo(pool *pgxpool.Pool) *PostgresAccountRepo {
	return &PostgresAccountRepo{pool: pool}
}

const accountColumns = `id, email, name, password_hash, is_premium, premium_until,
       premium_granted_at, demo_tasks_used, customer_ref, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.AccountRecord, error) {
	var a model.AccountRecord
	if err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.IsPremium, &a.PremiumUntil,
		&a.PremiumGrantedAt, &a.DemoTasksUsed, &a.CustomerRef, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *PostgresAccountRepo) Create(ctx context.Context, tx repository.Tx, a *model.AccountRecord) error {
	const q = `
INSERT INTO accounts (id, email, name, password_hash, is_premium, premium_until,
                      premium_granted_at, demo_tasks_used, customer_ref, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, a.ID, a.Email, a.Name, a.PasswordHash, a.IsPremium, a.PremiumUntil,
		a.PremiumGrantedAt, a.DemoTasksUsed, a.CustomerRef, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *PostgresAccountRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg any) (*model.AccountRecord, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanAccount(ex.QueryRow(ctx, q, arg))
}

func (r *PostgresAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AccountRecord, error) {
	return r.findOne(ctx, tx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1;`, id)
}

func (r *PostgresAccountRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.AccountRecord, error) {
	if _, ok := tx.(pgx.Tx); !ok {
		return r.FindByID(ctx, tx, id)
	}
	return r.findOne(ctx, tx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 FOR UPDATE;`, id)
}

func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.AccountRecord, error) {
	return r.findOne(ctx, tx, `SELECT `+accountColumns+` FROM accounts WHERE email=$1;`, model.NormalizeEmail(email))
}

func (r *PostgresAccountRepo) FindByCustomerRef(ctx context.Context, tx repository.Tx, ref string) (*model.AccountRecord, error) {
	return r.findOne(ctx, tx, `SELECT `+accountColumns+` FROM accounts WHERE customer_ref=$1;`, ref)
}

func (r *PostgresAccountRepo) ExpirePremium(ctx context.Context, tx repository.Tx, id string, now time.Time) (bool, error) {
	const q = `
UPDATE accounts SET is_premium=FALSE, updated_at=$2
 WHERE id=$1 AND is_premium AND premium_until IS NOT NULL AND premium_until <= $2;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	tag, err := ex.Exec(ctx, q, id, now)
	if err != nil {
		return false, fmt.Errorf("expire premium: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresAccountRepo) IncrementDemoUsed(ctx context.Context, tx repository.Tx, id string) (int, error) {
	const q = `
UPDATE accounts SET demo_tasks_used = demo_tasks_used + 1, demo_claim_until = NULL, updated_at = NOW()
 WHERE id=$1 RETURNING demo_tasks_used;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, q, id).Scan(&n); err != nil {
		return 0, notFound(err)
	}
	return n, nil
}

func (r *PostgresAccountRepo) ReserveDemo(ctx context.Context, tx repository.Tx, id string, until, now time.Time, limit int) (bool, error) {
	const q = `
UPDATE accounts SET demo_claim_until=$2
 WHERE id=$1 AND demo_tasks_used < $4 AND (demo_claim_until IS NULL OR demo_claim_until <= $3);`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	tag, err := ex.Exec(ctx, q, id, until.UTC(), now.UTC(), limit)
	if err != nil {
		return false, fmt.Errorf("reserve demo: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresAccountRepo) ReleaseDemo(ctx context.Context, tx repository.Tx, id string, until time.Time) error {
	const q = `UPDATE accounts SET demo_claim_until=NULL WHERE id=$1 AND demo_claim_until=$2;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, id, until.UTC()); err != nil {
		return fmt.Errorf("release demo: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepo) GrantPremium(ctx context.Context, tx repository.Tx, id string, until, grantedAt time.Time) error {
	const q = `
UPDATE accounts SET is_premium=TRUE, premium_until=$2, premium_granted_at=$3, updated_at=$3
 WHERE id=$1;`
	return r.execOne(ctx, tx, q, id, until.UTC(), grantedAt.UTC())
}

func (r *PostgresAccountRepo) RevokePremium(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE accounts SET is_premium=FALSE, premium_until=NULL, updated_at=NOW() WHERE id=$1;`
	return r.execOne(ctx, tx, q, id)
}

func (r *PostgresAccountRepo) UpdateProfile(ctx context.Context, tx repository.Tx, id, name, passwordHash string) error {
	const q = `
UPDATE accounts
SET name = COALESCE(NULLIF($2, ''), name),
    password_hash = COALESCE(NULLIF($3, ''), password_hash),
    updated_at = NOW()
WHERE id = $1;`
	return r.execOne(ctx, tx, q, id, name, passwordHash)
}

func (r *PostgresAccountRepo) execOne(ctx context.Context, tx repository.Tx, q string, args ...any) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresAccountRepo) SetCustomerRefIfAbsent(ctx context.Context, tx repository.Tx, id, ref string) (string, error) {
	const q = `
UPDATE accounts SET customer_ref = COALESCE(customer_ref, $2), updated_at = NOW()
 WHERE id=$1 RETURNING customer_ref;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return "", err
	}
	var stored string
	if err := ex.QueryRow(ctx, q, id, ref).Scan(&stored); err != nil {
		if isUniqueViolation(err) {
			return "", domain.ErrAlreadyExists
		}
		return "", notFound(err)
	}
	return stored, nil
}

func (r *PostgresAccountRepo) ListLapsedPremium(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	const q = `
SELECT id FROM accounts
 WHERE is_premium AND premium_until IS NOT NULL AND premium_until <= $1
 ORDER BY premium_until LIMIT $2;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list lapsed premium: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
