package adapter

import (
	"context"

	"langtest-practice/internal/domain/model"
)

// CheckoutSession is the processor-hosted checkout the client is redirected to.
type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentGateway is the hex port for the payment processor.
type PaymentGateway interface {
	Name() string

	// CreateCustomer registers the account at the processor and returns its reference.
	CreateCustomer(ctx context.Context, accountID, email string) (string, error)
	// CreateCheckout starts a hosted checkout for plan, tagged with the account id.
	CreateCheckout(ctx context.Context, customerRef, accountID string, plan model.PlanType) (*CheckoutSession, error)
	// PortalURL returns a self-service billing portal link for the customer.
	PortalURL(ctx context.Context, customerRef string) (string, error)

	// ParseWebhook turns a raw webhook delivery into a normalized event. It returns
	// domain.ErrMalformedEvent for bodies that cannot be parsed or verified and
	// (nil, nil) for event types reconciliation does not handle.
	ParseWebhook(payload []byte, signature string) (*model.BillingEvent, error)
}
