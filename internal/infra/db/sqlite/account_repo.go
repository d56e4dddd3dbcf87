package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*AccountRepo)(nil)

type AccountRepo struct {
	db *sql.DB
}

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

const accountColumns = `id, email, name, password_hash, is_premium, premium_until,
	premium_granted_at, demo_tasks_used, customer_ref, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.AccountRecord, error) {
	var (
		a                  model.AccountRecord
		until, grantedAt   sql.NullInt64
		customerRef        sql.NullString
		createdAt, updated int64
	)
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.IsPremium, &until,
		&grantedAt, &a.DemoTasksUsed, &customerRef, &createdAt, &updated); err != nil {
		return nil, notFound(err)
	}
	a.PremiumUntil = fromNullNanos(until)
	a.PremiumGrantedAt = fromNullNanos(grantedAt)
	if customerRef.Valid {
		ref := customerRef.String
		a.CustomerRef = &ref
	}
	a.CreatedAt = fromNanos(createdAt)
	a.UpdatedAt = fromNanos(updated)
	return &a, nil
}

func (r *AccountRepo) Create(ctx context.Context, tx repository.Tx, a *model.AccountRecord) error {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return err
	}
	var ref sql.NullString
	if a.CustomerRef != nil {
		ref = sql.NullString{String: *a.CustomerRef, Valid: true}
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.Name, a.PasswordHash, a.IsPremium, toNullNanos(a.PremiumUntil),
		toNullNanos(a.PremiumGrantedAt), a.DemoTasksUsed, ref, toNanos(a.CreatedAt), toNanos(a.UpdatedAt))
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *AccountRepo) findOne(ctx context.Context, tx repository.Tx, where string, arg any) (*model.AccountRecord, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return nil, err
	}
	return scanAccount(ex.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg))
}

func (r *AccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AccountRecord, error) {
	return r.findOne(ctx, tx, `id = ?`, id)
}

// FindByIDForUpdate needs no extra clause: transactions start with BEGIN IMMEDIATE.
func (r *AccountRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.AccountRecord, error) {
	return r.findOne(ctx, tx, `id = ?`, id)
}

func (r *AccountRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.AccountRecord, error) {
	return r.findOne(ctx, tx, `email = ?`, model.NormalizeEmail(email))
}

func (r *AccountRepo) FindByCustomerRef(ctx context.Context, tx repository.Tx, ref string) (*model.AccountRecord, error) {
	return r.findOne(ctx, tx, `customer_ref = ?`, ref)
}

func (r *AccountRepo) ExpirePremium(ctx context.Context, tx repository.Tx, id string, now time.Time) (bool, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return false, err
	}
	res, err := ex.ExecContext(ctx, `UPDATE accounts SET is_premium = 0, updated_at = ?
		WHERE id = ? AND is_premium = 1 AND premium_until IS NOT NULL AND premium_until <= ?`,
		toNanos(now), id, toNanos(now))
	if err != nil {
		return false, fmt.Errorf("expire premium: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *AccountRepo) IncrementDemoUsed(ctx context.Context, tx repository.Tx, id string) (int, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return 0, err
	}
	var n int
	err = ex.QueryRowContext(ctx, `UPDATE accounts SET demo_tasks_used = demo_tasks_used + 1, demo_claim_until = NULL, updated_at = ?
		WHERE id = ? RETURNING demo_tasks_used`, toNanos(time.Now()), id).Scan(&n)
	if err != nil {
		return 0, notFound(err)
	}
	return n, nil
}

func (r *AccountRepo) ReserveDemo(ctx context.Context, tx repository.Tx, id string, until, now time.Time, limit int) (bool, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return false, err
	}
	res, err := ex.ExecContext(ctx, `UPDATE accounts SET demo_claim_until = ?
		WHERE id = ? AND demo_tasks_used < ? AND (demo_claim_until IS NULL OR demo_claim_until <= ?)`,
		toNanos(until), id, limit, toNanos(now))
	if err != nil {
		return false, fmt.Errorf("reserve demo: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *AccountRepo) ReleaseDemo(ctx context.Context, tx repository.Tx, id string, until time.Time) error {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, `UPDATE accounts SET demo_claim_until = NULL
		WHERE id = ? AND demo_claim_until = ?`, id, toNanos(until)); err != nil {
		return fmt.Errorf("release demo: %w", err)
	}
	return nil
}

func (r *AccountRepo) GrantPremium(ctx context.Context, tx repository.Tx, id string, until, grantedAt time.Time) error {
	return r.execOne(ctx, tx, `UPDATE accounts SET is_premium = 1, premium_until = ?, premium_granted_at = ?, updated_at = ?
		WHERE id = ?`, toNanos(until), toNanos(grantedAt), toNanos(grantedAt), id)
}

func (r *AccountRepo) RevokePremium(ctx context.Context, tx repository.Tx, id string) error {
	return r.execOne(ctx, tx, `UPDATE accounts SET is_premium = 0, premium_until = NULL, updated_at = ?
		WHERE id = ?`, toNanos(time.Now()), id)
}

func (r *AccountRepo) UpdateProfile(ctx context.Context, tx repository.Tx, id, name, passwordHash string) error {
	return r.execOne(ctx, tx, `UPDATE accounts
		SET name = COALESCE(NULLIF(?, ''), name),
		    password_hash = COALESCE(NULLIF(?, ''), password_hash),
		    updated_at = ?
		WHERE id = ?`, name, passwordHash, toNanos(time.Now()), id)
}

func (r *AccountRepo) execOne(ctx context.Context, tx repository.Tx, q string, args ...any) error {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AccountRepo) SetCustomerRefIfAbsent(ctx context.Context, tx repository.Tx, id, ref string) (string, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return "", err
	}
	var stored string
	err = ex.QueryRowContext(ctx, `UPDATE accounts SET customer_ref = COALESCE(customer_ref, ?), updated_at = ?
		WHERE id = ? RETURNING customer_ref`, ref, toNanos(time.Now()), id).Scan(&stored)
	if err != nil {
		if isUniqueViolation(err) {
			return "", domain.ErrAlreadyExists
		}
		return "", notFound(err)
	}
	return stored, nil
}

func (r *AccountRepo) ListLapsedPremium(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx, `SELECT id FROM accounts
		WHERE is_premium = 1 AND premium_until IS NOT NULL AND premium_until <= ?
		ORDER BY premium_until LIMIT ?`, toNanos(now), limit)
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
