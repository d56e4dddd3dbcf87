package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"langtest-practice/internal/config"
	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*StripeGateway)(nil)

// StripeGateway creates customers, hosted checkouts and portal sessions, and
// normalizes Stripe webhook deliveries.
type StripeGateway struct {
	sc            *client.API
	webhookSecret string
	frontendURL   string
	prices        map[model.PlanType]string
}

func NewStripeGateway(cfg config.StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, domain.ErrPaymentsDisabled
	}
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return &StripeGateway{
		sc:            sc,
		webhookSecret: cfg.WebhookSecret,
		frontendURL:   strings.TrimRight(cfg.FrontendURL, "/"),
		prices: map[model.PlanType]string{
			model.PlanMonthly:  cfg.PriceMonthly,
			model.PlanYearly:   cfg.PriceYearly,
			model.PlanLifetime: cfg.PriceLifetime,
		},
	}, nil
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) CreateCustomer(ctx context.Context, accountID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email:    stripe.String(email),
		Metadata: map[string]string{"userId": accountID},
	}
	params.Context = ctx
	cust, err := g.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckout uses one-time payment mode for lifetime and subscription mode
// otherwise. Metadata carries the account and plan back through the webhook.
func (g *StripeGateway) CreateCheckout(ctx context.Context, customerRef, accountID string, plan model.PlanType) (*adapter.CheckoutSession, error) {
	priceID := g.prices[plan]
	if priceID == "" {
		return nil, fmt.Errorf("no price configured for plan %q: %w", plan, domain.ErrInvalidArgument)
	}
	mode := stripe.CheckoutSessionModeSubscription
	if plan == model.PlanLifetime {
		mode = stripe.CheckoutSessionModePayment
	}
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(mode)),
		Customer: stripe.String(customerRef),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(g.frontendURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(g.frontendURL + "/payment/cancel"),
		Metadata: map[string]string{
			metaAccountID: accountID,
			metaPlanType:  string(plan),
		},
	}
	params.Context = ctx
	sess, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &adapter.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) PortalURL(ctx context.Context, customerRef string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerRef),
		ReturnURL: stripe.String(g.frontendURL + "/dashboard"),
	}
	params.Context = ctx
	sess, err := g.sc.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe portal session: %w", err)
	}
	return sess.URL, nil
}

// ParseWebhook verifies the signature when a webhook secret is configured.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*model.BillingEvent, error) {
	return parseStripeEvent(payload, signature, g.webhookSecret)
}
