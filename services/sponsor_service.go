package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/mailer"
	"buildInPublicAPI/internal/notification"
	"buildInPublicAPI/internal/types/sponsor"
)

// PaddleClient is the subset of *paddle.SDK used for checkout.
type PaddleClient interface {
	ListPrices(ctx context.Context, req *paddle.ListPricesRequest) (*paddle.Collection[*paddle.Price], error)
	CreateTransaction(ctx context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error)
}

const subscriptionColumns = `s.id, s.sponsor_user_id, s.sponsored_user_id::text, s.processor, s.order_id,
	s.processor_customer_id, s.processor_subscription_id, s.plan_type, s.amount_cents, s.currency,
	s.status, s.next_billing_date, s.created_at, s.updated_at`

func scanSubscription(row pgx.Row) (*sponsor.Subscription, error) {
	sub := &sponsor.Subscription{}
	err := row.Scan(
		&sub.ID,
		&sub.SponsorUserID,
		&sub.SponsoredUserID,
		&sub.Processor,
		&sub.OrderID,
		&sub.ProcessorCustomerID,
		&sub.ProcessorSubscriptionID,
		&sub.PlanType,
		&sub.AmountCents,
		&sub.Currency,
		&sub.Status,
		&sub.NextBillingDate,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Amount = FormatCents(sub.AmountCents)
	return sub, nil
}

type SponsorService struct {
	db           DB
	paddle       PaddleClient
	sandbox      bool
	successURL   string
	mail         mailer.Mailer
	notifier     Notifier
	achievements AchievementTrigger
	now          Clock
}

type SponsorServiceOptions struct {
	Paddle       PaddleClient
	Sandbox      bool
	SuccessURL   string
	Mailer       mailer.Mailer
	Notifier     Notifier
	Achievements AchievementTrigger
	Now          Clock
}

func NewSponsorService(db DB, opts SponsorServiceOptions) *SponsorService {
	if opts.Mailer == nil {
		opts.Mailer = mailer.NoopMailer{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SponsorService{
		db:           db,
		paddle:       opts.Paddle,
		sandbox:      opts.Sandbox,
		successURL:   opts.SuccessURL,
		mail:         opts.Mailer,
		notifier:     opts.Notifier,
		achievements: opts.Achievements,
		now:          opts.Now,
	}
}

// claimEvent records the delivery; false means it was already processed.
func claimEvent(ctx context.Context, tx pgx.Tx, processor sponsor.Processor, eventID, eventType string) (bool, error) {
	if eventID == "" {
		return false, apperr.Validation("Webhook event id is required", map[string]string{"eventId": "is required"})
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO webhook_events (processor, event_id, event_type)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, string(processor), eventID, eventType)
	if err != nil {
		return false, dbError("record webhook event", err)
	}
	return tag.RowsAffected() == 1, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ApplyOrderPaid finds or creates the payer by email and opens an ACTIVE
// subscription. Receipt email and push run after commit and never fail it.
func (s *SponsorService) ApplyOrderPaid(ctx context.Context, ev sponsor.OrderPaid) (*sponsor.Outcome, error) {
	ev.Email = strings.ToLower(strings.TrimSpace(ev.Email))
	if ev.Email == "" {
		return nil, apperr.Validation("Payer email is required", map[string]string{"email": "is required"})
	}
	if ev.PlanType == "" {
		ev.PlanType = sponsor.PlanOneTime
	}
	if ev.Currency == "" {
		ev.Currency = defaultCurrency
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, dbError("begin order transaction", err)
	}
	defer tx.Rollback(ctx)

	fresh, err := claimEvent(ctx, tx, ev.Processor, ev.EventID, "order.paid")
	if err != nil {
		return nil, err
	}
	if !fresh {
		log.WithFields(log.Fields{"processor": ev.Processor, "event_id": ev.EventID}).Info("sponsors: duplicate order event")
		return &sponsor.Outcome{Duplicate: true}, nil
	}

	outcome := &sponsor.Outcome{}

	var sponsorID string
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE LOWER(email) = $1`, ev.Email).Scan(&sponsorID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		sponsorID, err = s.createPayer(ctx, tx, ev.Email, ev.Name)
		if err != nil {
			return nil, err
		}
		outcome.CreatedUser = true
	case err != nil:
		return nil, dbError("look up payer", err)
	}

	var sponsoredID *string
	if ev.SponsoredUsername != "" {
		var id string
		err := tx.QueryRow(ctx, `SELECT id FROM users WHERE LOWER(username) = LOWER($1)`, ev.SponsoredUsername).Scan(&id)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			log.WithField("username", ev.SponsoredUsername).Warn("sponsors: sponsored builder not found, recording platform sponsorship")
		case err != nil:
			return nil, dbError("look up sponsored builder", err)
		default:
			sponsoredID = &id
		}
	}

	next := ev.NextBillingDate
	if next == nil {
		next = sponsor.NextBillingDate(ev.PlanType, s.now())
	}

	sub := &sponsor.Subscription{
		ID:                      uuid.New().String(),
		SponsorUserID:           sponsorID,
		SponsoredUserID:         sponsoredID,
		Processor:               ev.Processor,
		OrderID:                 ev.OrderID,
		ProcessorCustomerID:     ev.CustomerID,
		ProcessorSubscriptionID: nullable(ev.SubscriptionID),
		PlanType:                ev.PlanType,
		AmountCents:             ev.AmountCents,
		Amount:                  FormatCents(ev.AmountCents),
		Currency:                strings.ToUpper(ev.Currency),
		Status:                  sponsor.StatusActive,
		NextBillingDate:         next,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO sponsor_subscriptions (
			id, sponsor_user_id, sponsored_user_id, processor, order_id, processor_customer_id,
			processor_subscription_id, plan_type, amount_cents, currency, status, next_billing_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, sub.ID, sponsorID, sponsoredID, string(sub.Processor), sub.OrderID, sub.ProcessorCustomerID,
		sub.ProcessorSubscriptionID, sub.PlanType, sub.AmountCents, sub.Currency, string(sub.Status), next,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, dbError("create subscription", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, dbError("commit order", err)
	}

	outcome.RowsAffected = 1
	outcome.Subscription = sub

	log.WithFields(log.Fields{
		"processor":       ev.Processor,
		"order_id":        ev.OrderID,
		"sponsor_user_id": sponsorID,
		"created_user":    outcome.CreatedUser,
		"plan":            sub.PlanType,
	}).Info("sponsors: order applied")

	s.afterOrder(ctx, ev, sub)
	return outcome, nil
}

func (s *SponsorService) createPayer(ctx context.Context, tx pgx.Tx, email, name string) (string, error) {
	username, err := uniqueUsername(ctx, tx, usernameBase(email, name))
	if err != nil {
		return "", dbError("pick payer username", err)
	}

	first, last, _ := strings.Cut(strings.TrimSpace(name), " ")
	id := uuid.New().String()
	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, email, username, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5)
	`, id, email, username, first, strings.TrimSpace(last))
	if err != nil {
		return "", dbError("create payer", err)
	}
	return id, nil
}

func (s *SponsorService) afterOrder(ctx context.Context, ev sponsor.OrderPaid, sub *sponsor.Subscription) {
	builder := ""
	if sub.SponsoredUserID != nil {
		builder = ev.SponsoredUsername
	}

	receipt := mailer.SponsorReceipt(ev.Email, ev.Name, builder, sub.Amount, sub.Currency, sub.PlanType)
	if err := s.mail.Send(ctx, receipt); err != nil {
		log.WithError(err).WithField("order_id", sub.OrderID).Warn("sponsors: receipt email failed")
	}

	if sub.SponsoredUserID == nil {
		return
	}
	if s.notifier != nil {
		s.notifier.Notify(*sub.SponsoredUserID, notification.Message{
			Type:  notification.TypeNewSponsor,
			Title: "You have a new sponsor",
			Body:  fmt.Sprintf("Someone is backing your work with %s %s", sub.Amount, sub.Currency),
			Data:  map[string]string{"subscriptionId": sub.ID, "planType": sub.PlanType},
		})
	}
	if s.achievements != nil {
		s.achievements.Reevaluate(*sub.SponsoredUserID)
	}
}

// ApplySubscriptionCreated attaches the processor subscription id to the
// newest local record for the order or customer that has none yet.
func (s *SponsorService) ApplySubscriptionCreated(ctx context.Context, ev sponsor.SubscriptionCreated) (*sponsor.Outcome, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, dbError("begin subscription transaction", err)
	}
	defer tx.Rollback(ctx)

	fresh, err := claimEvent(ctx, tx, ev.Processor, ev.EventID, "subscription.created")
	if err != nil {
		return nil, err
	}
	if !fresh {
		return &sponsor.Outcome{Duplicate: true}, nil
	}

	tag, err := tx.Exec(ctx, `
		UPDATE sponsor_subscriptions
		SET processor_subscription_id = $1,
			processor_customer_id = COALESCE(NULLIF($4, ''), processor_customer_id),
			updated_at = NOW()
		WHERE id = (
			SELECT id FROM sponsor_subscriptions
			WHERE processor = $2
			  AND processor_subscription_id IS NULL
			  AND (order_id = $3 OR ($4 <> '' AND processor_customer_id = $4))
			ORDER BY created_at DESC
			LIMIT 1
		)
	`, ev.SubscriptionID, string(ev.Processor), ev.OrderID, ev.CustomerID)
	if err != nil {
		return nil, dbError("attach subscription id", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, dbError("commit subscription", err)
	}

	if tag.RowsAffected() == 0 {
		log.WithFields(log.Fields{"processor": ev.Processor, "subscription_id": ev.SubscriptionID}).Warn("sponsors: no local record for new subscription")
	}
	return &sponsor.Outcome{RowsAffected: tag.RowsAffected()}, nil
}

// ApplySubscriptionCanceled marks matching records CANCELLED. An unknown
// subscription id updates nothing and is not an error.
func (s *SponsorService) ApplySubscriptionCanceled(ctx context.Context, ev sponsor.SubscriptionCanceled) (*sponsor.Outcome, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, dbError("begin cancel transaction", err)
	}
	defer tx.Rollback(ctx)

	fresh, err := claimEvent(ctx, tx, ev.Processor, ev.EventID, "subscription.canceled")
	if err != nil {
		return nil, err
	}
	if !fresh {
		return &sponsor.Outcome{Duplicate: true}, nil
	}

	tag, err := tx.Exec(ctx, `
		UPDATE sponsor_subscriptions
		SET status = $1, next_billing_date = NULL, updated_at = NOW()
		WHERE processor = $2 AND processor_subscription_id = $3 AND status <> $1
	`, string(sponsor.StatusCancelled), string(ev.Processor), ev.SubscriptionID)
	if err != nil {
		return nil, dbError("cancel subscription", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, dbError("commit cancel", err)
	}

	log.WithFields(log.Fields{
		"processor":       ev.Processor,
		"subscription_id": ev.SubscriptionID,
		"rows":            tag.RowsAffected(),
	}).Info("sponsors: subscription canceled")
	return &sponsor.Outcome{RowsAffected: tag.RowsAffected()}, nil
}

func (s *SponsorService) requirePaddle() error {
	if s.paddle == nil {
		return apperr.Unexpected("Payments are not configured", nil)
	}
	return nil
}

// ListPrices returns the active sponsorship tiers.
func (s *SponsorService) ListPrices(ctx context.Context) ([]sponsor.Price, error) {
	if err := s.requirePaddle(); err != nil {
		return nil, err
	}

	collection, err := s.paddle.ListPrices(ctx, &paddle.ListPricesRequest{
		Status: []string{string(paddle.StatusActive)},
	})
	if err != nil {
		return nil, apperr.Unexpected("Failed to load prices", err)
	}

	prices := []sponsor.Price{}
	for {
		res := collection.Next(ctx)
		if !res.Ok() {
			if err := res.Err(); err != nil {
				return nil, apperr.Unexpected("Failed to load prices", err)
			}
			break
		}

		p := res.Value()
		interval := ""
		if p.BillingCycle != nil {
			interval = string(p.BillingCycle.Interval)
		}
		amount := p.UnitPrice.Amount
		if cents, err := strconv.ParseInt(amount, 10, 64); err == nil {
			amount = FormatCents(cents)
		}

		prices = append(prices, sponsor.Price{
			ID:          p.ID,
			ProductID:   p.ProductID,
			Description: p.Description,
			Amount:      amount,
			Currency:    string(p.UnitPrice.CurrencyCode),
			Interval:    interval,
			PlanType:    sponsor.PlanFromInterval(interval),
		})
	}
	return prices, nil
}

func (s *SponsorService) checkoutURL(transactionID string) string {
	host := "checkout"
	if s.sandbox {
		host = "sandbox-checkout"
	}
	return fmt.Sprintf("https://%s.paddle.com/checkout/custom?_ptxn=%s", host, transactionID)
}

// CreateCheckout opens a Paddle transaction whose custom data lets the
// order-paid webhook attribute the payment.
func (s *SponsorService) CreateCheckout(ctx context.Context, sponsorID string, req *sponsor.CheckoutRequest) (*sponsor.CheckoutResponse, error) {
	if err := apperr.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := s.requirePaddle(); err != nil {
		return nil, err
	}
	if req.PlanType == "" {
		req.PlanType = sponsor.PlanMonthly
	}

	var email, sponsorUsername string
	err := s.db.QueryRow(ctx, `SELECT email, username FROM users WHERE id = $1`, sponsorID).Scan(&email, &sponsorUsername)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, dbError("load sponsor", err)
	}
	if strings.EqualFold(sponsorUsername, req.SponsoredUsername) {
		return nil, apperr.Validation("You cannot sponsor yourself", map[string]string{"sponsoredUsername": "must not be your own"})
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))`, req.SponsoredUsername).Scan(&exists); err != nil {
		return nil, dbError("check sponsored builder", err)
	}
	if !exists {
		return nil, apperr.NotFound("Builder not found")
	}

	createReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{
			*paddle.NewCreateTransactionItemsCatalogItem(&paddle.CatalogItem{
				Quantity: 1,
				PriceID:  req.PriceID,
			}),
		},
		CustomData: paddle.CustomData{
			"userId":            sponsorID,
			"email":             email,
			"sponsoredUsername": req.SponsoredUsername,
			"planType":          req.PlanType,
		},
		CollectionMode: paddle.PtrTo(paddle.CollectionModeAutomatic),
	}
	if s.successURL != "" {
		createReq.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(s.successURL)}
	}

	txn, err := s.paddle.CreateTransaction(ctx, createReq)
	if err != nil {
		return nil, apperr.Unexpected("Failed to create checkout", err)
	}

	log.WithFields(log.Fields{"transaction_id": txn.ID, "sponsor_user_id": sponsorID, "builder": req.SponsoredUsername}).Info("sponsors: checkout created")

	return &sponsor.CheckoutResponse{TransactionID: txn.ID, CheckoutURL: s.checkoutURL(txn.ID)}, nil
}

// GetCheckoutResult backs the success page. The webhook may not have arrived
// yet, in which case the order is NOT_FOUND and the page should poll.
func (s *SponsorService) GetCheckoutResult(ctx context.Context, orderID string) (*sponsor.Subscription, error) {
	if orderID == "" {
		return nil, apperr.Validation("Order id is required", map[string]string{"orderId": "is required"})
	}
	sub, err := scanSubscription(s.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM sponsor_subscriptions s
		WHERE s.order_id = $1
		ORDER BY s.created_at DESC
		LIMIT 1
	`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, dbError("load checkout result", err)
	}
	return sub, nil
}

// ListSponsors returns the active sponsors of a builder.
func (s *SponsorService) ListSponsors(ctx context.Context, username string) ([]sponsor.Sponsor, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+summaryColumns+`, s.plan_type, s.created_at
		FROM sponsor_subscriptions s
		JOIN users b ON b.id = s.sponsored_user_id
		JOIN users u ON u.id = s.sponsor_user_id
		WHERE LOWER(b.username) = LOWER($1) AND s.status = $2
		ORDER BY s.created_at DESC
	`, username, string(sponsor.StatusActive))
	if err != nil {
		return nil, dbError("list sponsors", err)
	}
	defer rows.Close()

	out := []sponsor.Sponsor{}
	for rows.Next() {
		var sp sponsor.Sponsor
		u := &sp.Sponsor
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.ImageURL, &u.CurrentStreak, &sp.PlanType, &sp.Since); err != nil {
			return nil, dbError("scan sponsor", err)
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate sponsors", err)
	}
	return out, nil
}

// ListSponsorships returns every subscription userID pays for.
func (s *SponsorService) ListSponsorships(ctx context.Context, userID string) ([]*sponsor.Subscription, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM sponsor_subscriptions s
		WHERE s.sponsor_user_id = $1
		ORDER BY s.created_at DESC
	`, userID)
	if err != nil {
		return nil, dbError("list sponsorships", err)
	}
	defer rows.Close()

	out := []*sponsor.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, dbError("scan sponsorship", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate sponsorships", err)
	}
	return out, nil
}

