// File: internal/usecase/billing_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/adapter"
	"langtest-practice/internal/domain/ports/repository"
	"langtest-practice/internal/infra/logging"
	"langtest-practice/internal/infra/metrics"
)

// HistoryLimit is how many payment events History returns.
const HistoryLimit = 10

// Compile-time check
var _ BillingUseCase = (*billingUC)(nil)

// VerifyResult is what the checkout success page polls for.
type VerifyResult struct {
	Success      bool
	IsPremium    bool
	PremiumUntil *time.Time
	Message      string
}

type BillingUseCase interface {
	Plans() []model.Plan
	// EnsureCustomerLinked returns the processor customer of the account, creating
	// it on first use. A concurrently stored reference wins over ours.
	EnsureCustomerLinked(ctx context.Context, accountID, email string) (string, error)
	StartCheckout(ctx context.Context, accountID, plan string) (*adapter.CheckoutSession, error)
	PortalURL(ctx context.Context, accountID string) (string, error)
	History(ctx context.Context, accountID string) ([]*model.PaymentEvent, error)
	Verify(ctx context.Context, accountID, sessionID string) (*VerifyResult, error)

	// HandleWebhook parses a raw processor delivery and reconciles it.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	HandleEvent(ctx context.Context, ev *model.BillingEvent) error
	OnCheckoutCompleted(ctx context.Context, ev *model.BillingEvent, now time.Time) error
	OnSubscriptionCancelled(ctx context.Context, ev *model.BillingEvent) error
}

type billingUC struct {
	accounts repository.AccountRepository
	payments repository.PaymentRepository
	tm       repository.TransactionManager
	gateway  adapter.PaymentGateway // nil when payments are disabled
	ents     EntitlementUseCase
	log      *zerolog.Logger
}

func NewBillingUseCase(
	accounts repository.AccountRepository,
	payments repository.PaymentRepository,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	ents EntitlementUseCase,
	logger *zerolog.Logger,
) *billingUC {
	return &billingUC{accounts: accounts, payments: payments, tm: tm, gateway: gateway, ents: ents, log: logger}
}

func (u *billingUC) Plans() []model.Plan { return model.Plans() }

func (u *billingUC) EnsureCustomerLinked(ctx context.Context, accountID, email string) (string, error) {
	defer logging.TraceDuration(u.log, "BillingUC.EnsureCustomerLinked")()

	if u.gateway == nil {
		return "", domain.ErrPaymentsDisabled
	}
	acc, err := u.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return "", err
	}
	if acc.HasCustomerRef() {
		return *acc.CustomerRef, nil
	}
	if email == "" {
		email = acc.Email
	}

	ref, err := u.gateway.CreateCustomer(ctx, accountID, email)
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %v", domain.ErrTransientDependency, err)
	}
	stored, err := u.accounts.SetCustomerRefIfAbsent(ctx, repository.NoTX, accountID, ref)
	if err != nil {
		return "", err
	}
	if stored != ref {
		logging.With(ctx, u.log).Warn().
			Str("account_id", accountID).
			Str("orphan_customer", ref).
			Msg("customer already linked by a concurrent request")
	}
	return stored, nil
}

func (u *billingUC) StartCheckout(ctx context.Context, accountID, plan string) (*adapter.CheckoutSession, error) {
	defer logging.TraceDuration(u.log, "BillingUC.StartCheckout")()

	if accountID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if !model.IsKnownPlan(plan) {
		return nil, fmt.Errorf("%w: unknown plan %q", domain.ErrInvalidArgument, plan)
	}
	if u.gateway == nil {
		return nil, domain.ErrPaymentsDisabled
	}

	ref, err := u.EnsureCustomerLinked(ctx, accountID, "")
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}
	sess, err := u.gateway.CreateCheckout(ctx, ref, accountID, model.PlanType(plan))
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout: %v", domain.ErrTransientDependency, err)
	}
	logging.With(ctx, u.log).Info().
		Str("account_id", accountID).
		Str("plan", plan).
		Str("session_id", sess.ID).
		Msg("checkout started")
	return sess, nil
}

func (u *billingUC) PortalURL(ctx context.Context, accountID string) (string, error) {
	if accountID == "" {
		return "", domain.ErrUnauthenticated
	}
	if u.gateway == nil {
		return "", domain.ErrPaymentsDisabled
	}
	acc, err := u.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return "", err
	}
	if !acc.HasCustomerRef() {
		return "", fmt.Errorf("%w: no billing customer for account", domain.ErrNotFound)
	}
	url, err := u.gateway.PortalURL(ctx, *acc.CustomerRef)
	if err != nil {
		return "", fmt.Errorf("%w: portal: %v", domain.ErrTransientDependency, err)
	}
	return url, nil
}

func (u *billingUC) History(ctx context.Context, accountID string) ([]*model.PaymentEvent, error) {
	if accountID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return u.payments.ListByAccount(ctx, repository.NoTX, accountID, HistoryLimit)
}

// Verify reports the account's premium state after a checkout redirect. The
// grant itself only ever arrives through the webhook.
func (u *billingUC) Verify(ctx context.Context, accountID, sessionID string) (*VerifyResult, error) {
	if accountID == "" {
		return nil, domain.ErrUnauthenticated
	}
	ent, err := u.ents.Evaluate(ctx, accountID, time.Now())
	if err != nil {
		return nil, err
	}
	logging.With(ctx, u.log).Debug().Str("session_id", sessionID).Bool("premium", ent.IsPremium).Msg("checkout verify")
	if ent.IsPremium {
		return &VerifyResult{
			Success:      true,
			IsPremium:    true,
			PremiumUntil: ent.PremiumUntil,
			Message:      "Payment successful! You now have premium access.",
		}, nil
	}
	return &VerifyResult{Message: "Payment is being processed. Please wait a moment."}, nil
}

func (u *billingUC) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	defer logging.TraceDuration(u.log, "BillingUC.HandleWebhook")()

	if u.gateway == nil {
		return domain.ErrPaymentsDisabled
	}
	ev, err := u.gateway.ParseWebhook(payload, signature)
	if err != nil {
		metrics.IncBillingEvent("unparsed", "malformed")
		return err
	}
	if ev == nil {
		metrics.IncBillingEvent("other", "ignored")
		return nil
	}
	return u.HandleEvent(ctx, ev)
}

func (u *billingUC) HandleEvent(ctx context.Context, ev *model.BillingEvent) error {
	if ev == nil {
		return domain.ErrMalformedEvent
	}
	var err error
	switch ev.Type {
	case model.BillingCheckoutCompleted:
		err = u.OnCheckoutCompleted(ctx, ev, time.Now().UTC())
	case model.BillingSubscriptionCancelled:
		err = u.OnSubscriptionCancelled(ctx, ev)
	default:
		metrics.IncBillingEvent(string(ev.Type), "ignored")
		return nil
	}
	metrics.IncBillingEvent(string(ev.Type), billingOutcome(err))
	return err
}

func billingOutcome(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, domain.ErrDuplicatePaymentEvent):
		return "duplicate"
	case errors.Is(err, domain.ErrUnknownCustomerReference):
		return "unknown_customer"
	case errors.Is(err, domain.ErrMalformedEvent):
		return "malformed"
	default:
		return "error"
	}
}

// OnCheckoutCompleted records the payment and grants premium in one transaction.
// The payment insert is the idempotency gate: a redelivered event inserts nothing
// and leaves the account untouched.
func (u *billingUC) OnCheckoutCompleted(ctx context.Context, ev *model.BillingEvent, now time.Time) error {
	defer logging.TraceDuration(u.log, "BillingUC.OnCheckoutCompleted")()
	log := logging.With(ctx, u.log)

	if ev.ExternalPaymentID == "" {
		return fmt.Errorf("%w: checkout without payment id", domain.ErrMalformedEvent)
	}
	plan := model.ParsePlanType(string(ev.PlanType))
	pay := &model.PaymentEvent{
		ID:                uuid.NewString(),
		AccountID:         ev.AccountID,
		ExternalPaymentID: ev.ExternalPaymentID,
		Amount:            ev.Amount,
		Currency:          ev.Currency,
		Status:            model.PaymentStatusCompleted,
		PlanType:          plan,
		CreatedAt:         now,
	}

	var (
		unknown bool
		until   time.Time
	)
	err := u.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		inserted, err := u.payments.Insert(ctx, tx, pay)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if !inserted {
			return domain.ErrDuplicatePaymentEvent
		}
		if ev.AccountID == "" {
			unknown = true
			return nil
		}

		acc, err := u.accounts.FindByIDForUpdate(ctx, tx, ev.AccountID)
		if errors.Is(err, domain.ErrNotFound) {
			unknown = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		until = model.MergePremiumUntil(acc, model.PremiumUntilFor(plan, now), now)
		if err := u.accounts.GrantPremium(ctx, tx, acc.ID, until, now); err != nil {
			return fmt.Errorf("grant premium: %w", err)
		}
		if ev.CustomerRef != "" && !acc.HasCustomerRef() {
			if _, err := u.accounts.SetCustomerRefIfAbsent(ctx, tx, acc.ID, ev.CustomerRef); err != nil {
				return fmt.Errorf("link customer: %w", err)
			}
		}
		return nil
	})
	if errors.Is(err, domain.ErrDuplicatePaymentEvent) {
		log.Info().Str("payment_id", ev.ExternalPaymentID).Str("event_id", ev.ID).Msg("duplicate checkout ignored")
		return err
	}
	if err != nil {
		log.Error().Err(err).Str("payment_id", ev.ExternalPaymentID).Msg("checkout reconciliation failed")
		return fmt.Errorf("%w: %v", domain.ErrTransientDependency, err)
	}

	metrics.AddPaymentRevenue(ev.Currency, ev.Amount)
	if unknown {
		log.Warn().
			Str("account_id", ev.AccountID).
			Str("payment_id", ev.ExternalPaymentID).
			Msg("checkout for unknown account recorded without grant")
		return nil
	}
	metrics.IncPremiumGranted(string(plan))
	log.Info().
		Str("account_id", ev.AccountID).
		Str("plan", string(plan)).
		Time("premium_until", until).
		Msg("premium granted")
	return nil
}

// OnSubscriptionCancelled revokes premium for the customer, clearing both the
// flag and premium_until whatever plan granted it. Only cancellations older
// than the latest grant are ignored.
func (u *billingUC) OnSubscriptionCancelled(ctx context.Context, ev *model.BillingEvent) error {
	defer logging.TraceDuration(u.log, "BillingUC.OnSubscriptionCancelled")()
	log := logging.With(ctx, u.log)

	if ev.CustomerRef == "" {
		return fmt.Errorf("%w: cancellation without customer", domain.ErrMalformedEvent)
	}

	var skipped string
	var accountID string
	err := u.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		found, err := u.accounts.FindByCustomerRef(ctx, tx, ev.CustomerRef)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUnknownCustomerReference
		}
		if err != nil {
			return fmt.Errorf("find customer: %w", err)
		}
		acc, err := u.accounts.FindByIDForUpdate(ctx, tx, found.ID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		accountID = acc.ID

		if acc.PremiumGrantedAt != nil && !ev.OccurredAt.IsZero() && ev.OccurredAt.Before(*acc.PremiumGrantedAt) {
			skipped = "stale"
			return nil
		}
		return u.accounts.RevokePremium(ctx, tx, acc.ID)
	})
	if errors.Is(err, domain.ErrUnknownCustomerReference) {
		log.Warn().Str("customer", ev.CustomerRef).Str("event_id", ev.ID).Msg("cancellation for unknown customer")
		return err
	}
	if err != nil {
		log.Error().Err(err).Str("customer", ev.CustomerRef).Msg("cancellation reconciliation failed")
		return fmt.Errorf("%w: %v", domain.ErrTransientDependency, err)
	}
	if skipped != "" {
		log.Info().Str("account_id", accountID).Str("reason", skipped).Msg("cancellation ignored")
		return nil
	}
	metrics.IncPremiumRevoked()
	log.Info().Str("account_id", accountID).Msg("premium revoked")
	return nil
}
