// File: internal/usecase/account_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/repository"
	"langtest-practice/internal/infra/logging"
)

// Compile-time check
var _ AccountUseCase = (*accountUC)(nil)

// ProfileUpdate carries optional profile changes. NewPassword requires
// CurrentPassword.
type ProfileUpdate struct {
	Name            string
	CurrentPassword string
	NewPassword     string
}

type AccountUseCase interface {
	Register(ctx context.Context, email, password, name string) (*model.AccountRecord, error)
	// Login checks credentials and returns the account with its entitlement; a
	// lapsed premium is expired here as on any other read.
	Login(ctx context.Context, email, password string) (*model.AccountRecord, model.EffectiveEntitlement, error)
	Profile(ctx context.Context, accountID string) (*model.AccountRecord, model.EffectiveEntitlement, error)
	UpdateProfile(ctx context.Context, accountID string, upd ProfileUpdate) error
}

type accountUC struct {
	accounts repository.AccountRepository
	ents     EntitlementUseCase
	log      *zerolog.Logger
	cost     int
}

func NewAccountUseCase(accounts repository.AccountRepository, ents EntitlementUseCase, logger *zerolog.Logger) *accountUC {
	return &accountUC{accounts: accounts, ents: ents, log: logger, cost: bcrypt.DefaultCost}
}

func (u *accountUC) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: password too long", domain.ErrInvalidArgument)
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (u *accountUC) Register(ctx context.Context, email, password, name string) (*model.AccountRecord, error) {
	defer logging.TraceDuration(u.log, "AccountUC.Register")()

	if strings.TrimSpace(email) == "" || password == "" || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: email, password and name are required", domain.ErrInvalidArgument)
	}
	hash, err := u.hash(password)
	if err != nil {
		return nil, err
	}
	acc, err := model.NewAccount("", email, name, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email", err)
	}
	if err := u.accounts.Create(ctx, repository.NoTX, acc); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: email already registered", domain.ErrAlreadyExists)
		}
		return nil, err
	}
	logging.With(ctx, u.log).Info().Str("account_id", acc.ID).Msg("account registered")
	return acc, nil
}

func (u *accountUC) Login(ctx context.Context, email, password string) (*model.AccountRecord, model.EffectiveEntitlement, error) {
	defer logging.TraceDuration(u.log, "AccountUC.Login")()

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, model.EffectiveEntitlement{}, fmt.Errorf("%w: email and password required", domain.ErrInvalidArgument)
	}
	acc, err := u.accounts.FindByEmail(ctx, repository.NoTX, model.NormalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, model.EffectiveEntitlement{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, model.EffectiveEntitlement{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return nil, model.EffectiveEntitlement{}, domain.ErrInvalidCredentials
	}
	return u.Profile(ctx, acc.ID)
}

func (u *accountUC) Profile(ctx context.Context, accountID string) (*model.AccountRecord, model.EffectiveEntitlement, error) {
	acc, ent, err := u.ents.Account(ctx, accountID, time.Now())
	if err != nil {
		return nil, ent, err
	}
	if acc == nil {
		return nil, ent, domain.ErrUnauthenticated
	}
	return acc, ent, nil
}

func (u *accountUC) UpdateProfile(ctx context.Context, accountID string, upd ProfileUpdate) error {
	defer logging.TraceDuration(u.log, "AccountUC.UpdateProfile")()

	if accountID == "" {
		return domain.ErrUnauthenticated
	}
	name := strings.TrimSpace(upd.Name)
	if name == "" && upd.NewPassword == "" {
		return fmt.Errorf("%w: nothing to update", domain.ErrInvalidArgument)
	}

	var hash string
	if upd.NewPassword != "" {
		acc, err := u.accounts.FindByID(ctx, repository.NoTX, accountID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUnauthenticated
		}
		if err != nil {
			return err
		}
		if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(upd.CurrentPassword)) != nil {
			return domain.ErrInvalidCredentials
		}
		if hash, err = u.hash(upd.NewPassword); err != nil {
			return err
		}
	}
	return u.accounts.UpdateProfile(ctx, repository.NoTX, accountID, name, hash)
}
