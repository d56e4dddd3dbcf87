package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"langtest-practice/internal/domain"
	"langtest-practice/internal/infra/logging"
	"langtest-practice/internal/infra/metrics"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": s.billing.Plans()})
}

type checkoutRequest struct {
	PlanType string `json:"planType"`
}

func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	sess, err := s.billing.StartCheckout(r.Context(), AccountID(r.Context()), req.PlanType)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sess.ID, "url": sess.URL})
}

type verifyResponse struct {
	Success      bool       `json:"success"`
	IsPremium    bool       `json:"isPremium"`
	PremiumUntil *time.Time `json:"premiumUntil,omitempty"`
	Message      string     `json:"message"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	res, err := s.billing.Verify(r.Context(), AccountID(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		Success:      res.Success,
		IsPremium:    res.IsPremium,
		PremiumUntil: res.PremiumUntil,
		Message:      res.Message,
	})
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request) {
	url, err := s.billing.PortalURL(r.Context(), AccountID(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

type paymentView struct {
	ID                string    `json:"id"`
	ExternalPaymentID string    `json:"externalPaymentId"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	PlanType          string    `json:"planType"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	payments, err := s.billing.History(r.Context(), AccountID(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]paymentView, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentView{
			ID:                p.ID,
			ExternalPaymentID: p.ExternalPaymentID,
			Amount:            p.Amount,
			Currency:          p.Currency,
			Status:            string(p.Status),
			PlanType:          string(p.PlanType),
			CreatedAt:         p.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": out})
}

// handleWebhook answers 200 to every well-formed delivery and 400 to malformed
// ones. Reconciliation failures are logged and counted for manual repair; the
// processor is never asked to redeliver.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Webhook failed"})
		return
	}
	err = s.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	log := logging.With(r.Context(), s.log)
	switch {
	case err == nil,
		errors.Is(err, domain.ErrDuplicatePaymentEvent),
		errors.Is(err, domain.ErrUnknownCustomerReference):
	case errors.Is(err, domain.ErrPaymentsDisabled):
		log.Warn().Msg("webhook received while payments are disabled")
	case errors.Is(err, domain.ErrMalformedEvent):
		log.Warn().Err(err).Msg("rejected webhook")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Webhook failed"})
		return
	default:
		metrics.IncWebhookReconcileFailure()
		log.Error().Err(err).Msg("webhook acknowledged but not reconciled; manual reconciliation required")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
