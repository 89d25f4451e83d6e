package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/metrics"
	"buildInPublicAPI/internal/response"
	"buildInPublicAPI/internal/types/sponsor"
)

const eventTypeSubscriptionCanceled = "subscription.canceled"

// RequestVerifier checks a signed HTTP request; *paddle.WebhookVerifier satisfies it.
type RequestVerifier interface {
	Verify(req *http.Request) (bool, error)
}

type PaddleHandler struct {
	sponsors SponsorEvents
	verifier RequestVerifier
}

// NewPaddleHandler returns a handler that refuses every delivery when secret is empty.
func NewPaddleHandler(sponsors SponsorEvents, secret string) *PaddleHandler {
	h := &PaddleHandler{sponsors: sponsors}
	if secret != "" {
		h.verifier = paddle.NewWebhookVerifier(secret)
	}
	return h
}

// POST /webhooks/paddle
func (h *PaddleHandler) PaddleWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		log.Error("webhooks: PADDLE_WEBHOOK_SECRET missing")
		response.Fail(w, apperr.CodeUnexpected, "Configuration Error")
		return
	}

	payload, ok := readWebhookBody(w, r)
	if !ok {
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(payload))

	valid, err := h.verifier.Verify(r)
	if err != nil {
		log.WithError(err).Error("webhooks: paddle verification failed")
		response.Fail(w, apperr.CodeUnexpected, "Verification failed")
		return
	}
	if !valid {
		metrics.WebhookEvents.WithLabelValues(string(sponsor.ProcessorPaddle), "unknown", "invalid_signature").Inc()
		response.Fail(w, apperr.CodeForbidden, "Invalid signature")
		return
	}

	if !gjson.ValidBytes(payload) {
		response.Fail(w, apperr.CodeValidation, "Unable to parse JSON")
		return
	}
	event := gjson.ParseBytes(payload)
	eventID := event.Get("event_id").String()
	eventType := event.Get("event_type").String()
	data := event.Get("data")

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	var outcome *sponsor.Outcome
	switch eventType {
	case string(paddle.EventTypeNameTransactionPaid):
		outcome, err = h.sponsors.ApplyOrderPaid(ctx, paddleOrderPaid(eventID, data))
	case string(paddle.EventTypeNameSubscriptionCreated):
		outcome, err = h.sponsors.ApplySubscriptionCreated(ctx, sponsor.SubscriptionCreated{
			Processor:      sponsor.ProcessorPaddle,
			EventID:        eventID,
			SubscriptionID: data.Get("id").String(),
			OrderID:        data.Get("transaction_id").String(),
			CustomerID:     data.Get("customer_id").String(),
		})
	case eventTypeSubscriptionCanceled:
		outcome, err = h.sponsors.ApplySubscriptionCanceled(ctx, sponsor.SubscriptionCanceled{
			Processor:      sponsor.ProcessorPaddle,
			EventID:        eventID,
			SubscriptionID: data.Get("id").String(),
		})
	}

	writeOutcome(w, string(sponsor.ProcessorPaddle), eventType, outcome, err)
}

// paddleOrderPaid maps a transaction.paid payload. Totals are strings in the
// currency's minor unit; payer details come from the checkout custom data.
func paddleOrderPaid(eventID string, txn gjson.Result) sponsor.OrderPaid {
	custom := txn.Get("custom_data")

	plan := custom.Get("planType").String()
	if plan == "" {
		plan = sponsor.PlanOneTime
		if interval := txn.Get("items.0.price.billing_cycle.interval"); interval.Exists() && interval.Type != gjson.Null {
			plan = sponsor.PlanFromInterval(interval.String())
		}
	}

	email := custom.Get("email").String()
	if email == "" {
		email = txn.Get("customer.email").String()
	}

	ev := sponsor.OrderPaid{
		Processor:         sponsor.ProcessorPaddle,
		EventID:           eventID,
		OrderID:           txn.Get("id").String(),
		CustomerID:        txn.Get("customer_id").String(),
		SubscriptionID:    txn.Get("subscription_id").String(),
		Email:             email,
		Name:              custom.Get("name").String(),
		SponsoredUsername: custom.Get("sponsoredUsername").String(),
		PlanType:          plan,
		AmountCents:       txn.Get("details.totals.grand_total").Int(),
		Currency:          txn.Get("currency_code").String(),
	}

	if ends := txn.Get("billing_period.ends_at").String(); ends != "" {
		if t, err := time.Parse(time.RFC3339, ends); err == nil {
			ev.NextBillingDate = &t
		}
	}
	return ev
}
