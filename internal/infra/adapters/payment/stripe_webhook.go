package payment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/domain/model"
)

const (
	metaAccountID = "userId"
	metaPlanType  = "planType"
)

func parseStripeEvent(payload []byte, signature, secret string) (*model.BillingEvent, error) {
	var event stripe.Event
	if secret != "" {
		ev, err := webhook.ConstructEventWithOptions(payload, signature, secret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
		}
		event = ev
	} else if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if event.Type == "" || event.Data == nil {
		return nil, fmt.Errorf("%w: missing type or data", domain.ErrMalformedEvent)
	}

	occurred := time.Now().UTC()
	if event.Created > 0 {
		occurred = time.Unix(event.Created, 0).UTC()
	}

	switch model.BillingEventType(event.Type) {
	case model.BillingCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: checkout session: %v", domain.ErrMalformedEvent, err)
		}
		return checkoutEvent(event.ID, &sess, occurred)

	case model.BillingSubscriptionCancelled:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: subscription: %v", domain.ErrMalformedEvent, err)
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			return nil, fmt.Errorf("%w: subscription without customer", domain.ErrMalformedEvent)
		}
		return &model.BillingEvent{
			ID:          event.ID,
			Type:        model.BillingSubscriptionCancelled,
			CustomerRef: sub.Customer.ID,
			OccurredAt:  occurred,
		}, nil

	default:
		return nil, nil
	}
}

// checkoutEvent uses the payment intent, then the subscription, then the
// session id as the idempotency key.
func checkoutEvent(eventID string, sess *stripe.CheckoutSession, occurred time.Time) (*model.BillingEvent, error) {
	ev := &model.BillingEvent{
		ID:         eventID,
		Type:       model.BillingCheckoutCompleted,
		AccountID:  strings.TrimSpace(sess.Metadata[metaAccountID]),
		PlanType:   model.ParsePlanType(sess.Metadata[metaPlanType]),
		Amount:     sess.AmountTotal,
		Currency:   string(sess.Currency),
		Status:     string(sess.PaymentStatus),
		OccurredAt: occurred,
	}
	if sess.Customer != nil {
		ev.CustomerRef = sess.Customer.ID
	}
	switch {
	case sess.PaymentIntent != nil && sess.PaymentIntent.ID != "":
		ev.ExternalPaymentID = sess.PaymentIntent.ID
	case sess.Subscription != nil && sess.Subscription.ID != "":
		ev.ExternalPaymentID = sess.Subscription.ID
	default:
		ev.ExternalPaymentID = sess.ID
	}
	if ev.ExternalPaymentID == "" {
		return nil, fmt.Errorf("%w: checkout without payment reference", domain.ErrMalformedEvent)
	}
	return ev, nil
}
