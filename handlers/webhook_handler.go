package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	svix "github.com/svix/svix-webhooks/go"
	"github.com/tidwall/gjson"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/metrics"
	"buildInPublicAPI/internal/response"
	"buildInPublicAPI/internal/types/clerk"
	"buildInPublicAPI/internal/types/sponsor"
	"buildInPublicAPI/internal/types/user"
)

// SponsorEvents applies processor-neutral payment events.
type SponsorEvents interface {
	ApplyOrderPaid(ctx context.Context, ev sponsor.OrderPaid) (*sponsor.Outcome, error)
	ApplySubscriptionCreated(ctx context.Context, ev sponsor.SubscriptionCreated) (*sponsor.Outcome, error)
	ApplySubscriptionCanceled(ctx context.Context, ev sponsor.SubscriptionCanceled) (*sponsor.Outcome, error)
}

// readWebhookBody reads the raw payload; signatures are computed over these exact bytes.
func readWebhookBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.WithError(err).Warn("webhooks: reading body failed")
		response.Fail(w, apperr.CodeValidation, "Unable to read body")
		return nil, false
	}
	return payload, true
}

// writeOutcome acknowledges a verified delivery. Authentic events that cannot
// be applied are logged and acknowledged so the processor stops retrying;
// storage failures return 500 so it tries again.
func writeOutcome(w http.ResponseWriter, processor, eventType string, outcome *sponsor.Outcome, err error) {
	fields := log.Fields{"processor": processor, "event_type": eventType}

	switch {
	case err != nil && (apperr.Is(err, apperr.CodeValidation) || apperr.Is(err, apperr.CodeNotFound)):
		metrics.WebhookEvents.WithLabelValues(processor, eventType, "rejected").Inc()
		log.WithError(err).WithFields(fields).Warn("webhooks: event not applied")
		response.OK(w, map[string]any{"received": true, "applied": false})
	case err != nil:
		metrics.WebhookEvents.WithLabelValues(processor, eventType, "failed").Inc()
		log.WithError(err).WithFields(fields).Error("webhooks: event failed")
		response.Error(w, err)
	case outcome == nil:
		metrics.WebhookEvents.WithLabelValues(processor, eventType, "ignored").Inc()
		log.WithFields(fields).Debug("webhooks: unhandled event type")
		response.OK(w, map[string]any{"received": true, "applied": false})
	case outcome.Duplicate:
		metrics.WebhookEvents.WithLabelValues(processor, eventType, "duplicate").Inc()
		log.WithFields(fields).Info("webhooks: duplicate delivery")
		response.OK(w, map[string]any{"received": true, "applied": false, "outcome": outcome})
	default:
		metrics.WebhookEvents.WithLabelValues(processor, eventType, "applied").Inc()
		log.WithFields(fields).Info("webhooks: event applied")
		response.OK(w, map[string]any{"received": true, "applied": true, "outcome": outcome})
	}
}

// PayloadVerifier checks a signed delivery; *svix.Webhook satisfies it.
type PayloadVerifier interface {
	Verify(payload []byte, headers http.Header) error
}

// IdentitySync applies identity-provider user events.
type IdentitySync interface {
	SyncIdentity(ctx context.Context, identity *user.Identity) (*user.User, error)
	DeleteUserByClerkID(ctx context.Context, clerkID string) error
}

// ConstructEventFunc verifies a Stripe-Signature header and decodes the event.
type ConstructEventFunc func(payload []byte, header, secret string) (stripe.Event, error)

func constructStripeEvent(payload []byte, header, secret string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

type WebhookHandler struct {
	identities   IdentitySync
	clerkVerify  PayloadVerifier
	sponsors     SponsorEvents
	stripeSecret string
	construct    ConstructEventFunc
}

// NewWebhookHandler builds the Clerk and Stripe receivers. An empty Clerk
// secret disables signature checks on that endpoint; an empty Stripe secret
// disables the Stripe endpoint.
func NewWebhookHandler(identities IdentitySync, clerkSecret string, sponsors SponsorEvents, stripeSecret string) (*WebhookHandler, error) {
	h := &WebhookHandler{
		identities:   identities,
		sponsors:     sponsors,
		stripeSecret: stripeSecret,
		construct:    constructStripeEvent,
	}
	if clerkSecret != "" {
		wh, err := svix.NewWebhook(clerkSecret)
		if err != nil {
			return nil, err
		}
		h.clerkVerify = wh
	}
	return h, nil
}

// POST /webhooks/clerk
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	payload, ok := readWebhookBody(w, r)
	if !ok {
		return
	}

	if h.clerkVerify == nil {
		log.Debug("webhooks: CLERK_WEBHOOK_SECRET not set, skipping signature verification")
	} else if err := h.clerkVerify.Verify(payload, r.Header); err != nil {
		metrics.WebhookEvents.WithLabelValues("clerk", "unknown", "invalid_signature").Inc()
		log.WithError(err).Warn("webhooks: invalid clerk signature")
		response.Fail(w, apperr.CodeUnauthorized, "Invalid signature")
		return
	}

	var event clerk.ClerkWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		response.Fail(w, apperr.CodeValidation, "Error parsing webhook")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	err := h.applyClerkEvent(ctx, event)
	fields := log.Fields{"processor": "clerk", "event_type": event.Type}
	switch {
	case err == nil:
		metrics.WebhookEvents.WithLabelValues("clerk", event.Type, "applied").Inc()
		log.WithFields(fields).Info("webhooks: event applied")
	case apperr.Is(err, apperr.CodeValidation) || apperr.Is(err, apperr.CodeNotFound) || apperr.Is(err, apperr.CodeConflict):
		metrics.WebhookEvents.WithLabelValues("clerk", event.Type, "rejected").Inc()
		log.WithError(err).WithFields(fields).Warn("webhooks: event not applied")
	default:
		metrics.WebhookEvents.WithLabelValues("clerk", event.Type, "failed").Inc()
		log.WithError(err).WithFields(fields).Error("webhooks: event failed")
		response.Error(w, err)
		return
	}

	response.OK(w, map[string]bool{"received": true})
}

func (h *WebhookHandler) applyClerkEvent(ctx context.Context, event clerk.ClerkWebhookEvent) error {
	switch event.Type {
	case "user.created", "user.updated":
		var data clerk.ClerkUserData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return apperr.Validation("Invalid user payload", nil)
		}
		if data.ID == "" {
			return apperr.Validation("Invalid user payload", map[string]string{"id": "is required"})
		}
		_, err := h.identities.SyncIdentity(ctx, data.Identity())
		return err

	case "user.deleted":
		var data struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil || data.ID == "" {
			return apperr.Validation("Invalid user payload", nil)
		}
		return h.identities.DeleteUserByClerkID(ctx, data.ID)
	}

	log.WithField("event_type", event.Type).Debug("webhooks: unhandled clerk event type")
	return nil
}

// POST /webhooks/stripe
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.stripeSecret == "" {
		log.Error("webhooks: STRIPE_WEBHOOK_SECRET is not set")
		response.Fail(w, apperr.CodeUnexpected, "Configuration Error")
		return
	}

	payload, ok := readWebhookBody(w, r)
	if !ok {
		return
	}

	event, err := h.construct(payload, r.Header.Get("Stripe-Signature"), h.stripeSecret)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("stripe", "unknown", "invalid_signature").Inc()
		log.WithError(err).Warn("webhooks: invalid stripe signature")
		response.Fail(w, apperr.CodeValidation, "Invalid signature")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	var raw []byte
	if event.Data != nil {
		raw = event.Data.Raw
	}
	data := gjson.ParseBytes(raw)
	eventType := string(event.Type)

	var outcome *sponsor.Outcome
	switch eventType {
	case "checkout.session.completed":
		outcome, err = h.sponsors.ApplyOrderPaid(ctx, stripeOrderPaid(event.ID, data))
	case "customer.subscription.created":
		outcome, err = h.sponsors.ApplySubscriptionCreated(ctx, sponsor.SubscriptionCreated{
			Processor:      sponsor.ProcessorStripe,
			EventID:        event.ID,
			SubscriptionID: data.Get("id").String(),
			OrderID:        data.Get("metadata.orderId").String(),
			CustomerID:     stripeID(data.Get("customer")),
		})
	case "customer.subscription.deleted":
		outcome, err = h.sponsors.ApplySubscriptionCanceled(ctx, sponsor.SubscriptionCanceled{
			Processor:      sponsor.ProcessorStripe,
			EventID:        event.ID,
			SubscriptionID: data.Get("id").String(),
		})
	}

	writeOutcome(w, string(sponsor.ProcessorStripe), eventType, outcome, err)
}

// stripeID reads an expandable field, which is either an id or an object.
func stripeID(field gjson.Result) string {
	if field.IsObject() {
		return field.Get("id").String()
	}
	return field.String()
}

func stripeOrderPaid(eventID string, session gjson.Result) sponsor.OrderPaid {
	plan := session.Get("metadata.planType").String()
	if plan == "" {
		plan = sponsor.PlanOneTime
		if session.Get("mode").String() == "subscription" {
			plan = sponsor.PlanMonthly
		}
	}

	email := session.Get("customer_details.email").String()
	if email == "" {
		email = session.Get("customer_email").String()
	}

	return sponsor.OrderPaid{
		Processor:         sponsor.ProcessorStripe,
		EventID:           eventID,
		OrderID:           session.Get("id").String(),
		CustomerID:        stripeID(session.Get("customer")),
		SubscriptionID:    stripeID(session.Get("subscription")),
		Email:             email,
		Name:              session.Get("customer_details.name").String(),
		SponsoredUsername: session.Get("metadata.sponsoredUsername").String(),
		PlanType:          plan,
		AmountCents:       session.Get("amount_total").Int(),
		Currency:          strings.ToUpper(session.Get("currency").String()),
	}
}
