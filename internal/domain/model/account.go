package model

import (
	"net/mail"
	"strings"
	"time"

	"langtest-practice/internal/domain"

	"github.com/google/uuid"
)

// AccountRecord is the durable entitlement state of one registered user.
// IsPremium is a cached projection; PremiumUntil decides whether it still holds.
type AccountRecord struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     string
	IsPremium        bool
	PremiumUntil     *time.Time // nil while premium means lifetime
	PremiumGrantedAt *time.Time
	DemoTasksUsed    int
	CustomerRef      *string // payment processor customer, created on first checkout
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewAccount validates registration input and returns a fresh non-premium account.
func NewAccount(id, email, name, passwordHash string) (*AccountRecord, error) {
	if id == "" {
		id = uuid.NewString()
	}
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || name == "" || passwordHash == "" {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &AccountRecord{
		ID:            id,
		Email:         email,
		Name:          name,
		PasswordHash:  passwordHash,
		IsPremium:     false,
		DemoTasksUsed: 0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (a *AccountRecord) IsZero() bool { return a == nil || a.ID == "" }

// HasCustomerRef reports whether a processor customer is already linked.
func (a *AccountRecord) HasCustomerRef() bool {
	return a != nil && a.CustomerRef != nil && *a.CustomerRef != ""
}
