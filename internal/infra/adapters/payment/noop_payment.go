package payment

import (
	"context"
	"fmt"
	"sync"

	"langtest-practice/internal/domain/model"
	"langtest-practice/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for dev mode and tests. Webhooks
// are accepted unsigned in the Stripe event format, so a local run can be
// driven with curl.
type NoopPaymentGateway struct {
	mu  sync.Mutex
	seq int64
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s_noop_%d", prefix, g.seq)
}

func (g *NoopPaymentGateway) CreateCustomer(ctx context.Context, accountID, email string) (string, error) {
	return g.next("cus"), nil
}

func (g *NoopPaymentGateway) CreateCheckout(ctx context.Context, customerRef, accountID string, plan model.PlanType) (*adapter.CheckoutSession, error) {
	id := g.next("cs")
	return &adapter.CheckoutSession{ID: id, URL: "https://example.test/checkout/" + id}, nil
}

func (g *NoopPaymentGateway) PortalURL(ctx context.Context, customerRef string) (string, error) {
	return "https://example.test/portal/" + customerRef, nil
}

func (g *NoopPaymentGateway) ParseWebhook(payload []byte, signature string) (*model.BillingEvent, error) {
	return parseStripeEvent(payload, "", "")
}
