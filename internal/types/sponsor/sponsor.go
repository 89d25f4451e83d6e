package sponsor

import (
	"time"

	"buildInPublicAPI/internal/types/user"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
)

type Processor string

const (
	ProcessorPaddle Processor = "paddle"
	ProcessorStripe Processor = "stripe"
)

const (
	PlanMonthly = "MONTHLY"
	PlanYearly  = "YEARLY"
	PlanOneTime = "ONE_TIME"
)

type Subscription struct {
	ID                      string     `json:"id"`
	SponsorUserID           string     `json:"sponsorUserId"`
	SponsoredUserID         *string    `json:"sponsoredUserId,omitempty"`
	Processor               Processor  `json:"processor"`
	OrderID                 string     `json:"orderId"`
	ProcessorCustomerID     string     `json:"processorCustomerId,omitempty"`
	ProcessorSubscriptionID *string    `json:"processorSubscriptionId,omitempty"`
	PlanType                string     `json:"planType"`
	AmountCents             int64      `json:"amountCents"`
	Amount                  string     `json:"amount"`
	Currency                string     `json:"currency"`
	Status                  Status     `json:"status"`
	NextBillingDate         *time.Time `json:"nextBillingDate,omitempty"`
	CreatedAt               time.Time  `json:"createdAt"`
	UpdatedAt               time.Time  `json:"updatedAt"`
}

// Sponsor is the public view of a subscription on a builder's profile.
type Sponsor struct {
	Sponsor  user.Summary `json:"sponsor"`
	PlanType string       `json:"planType"`
	Since    time.Time    `json:"since"`
}

// OrderPaid, SubscriptionCreated and SubscriptionCanceled are processor-neutral
// webhook events. EventID is the processor's delivery id used for idempotency.
type OrderPaid struct {
	Processor         Processor
	EventID           string
	OrderID           string
	CustomerID        string
	SubscriptionID    string
	Email             string
	Name              string
	SponsoredUsername string
	PlanType          string
	AmountCents       int64
	Currency          string
	NextBillingDate   *time.Time
}

type SubscriptionCreated struct {
	Processor      Processor
	EventID        string
	SubscriptionID string
	OrderID        string
	CustomerID     string
}

type SubscriptionCanceled struct {
	Processor      Processor
	EventID        string
	SubscriptionID string
}

// Outcome reports what a webhook event did; Duplicate means it was already applied.
type Outcome struct {
	Duplicate    bool          `json:"duplicate"`
	RowsAffected int64         `json:"rowsAffected"`
	CreatedUser  bool          `json:"createdUser"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

type CheckoutRequest struct {
	SponsoredUsername string `json:"sponsoredUsername" validate:"required,username"`
	PriceID           string `json:"priceId" validate:"required"`
	PlanType          string `json:"planType,omitempty" validate:"omitempty,oneof=MONTHLY YEARLY ONE_TIME"`
}

type CheckoutResponse struct {
	TransactionID string `json:"transactionId"`
	CheckoutURL   string `json:"checkoutUrl"`
}

// Price is a sponsorship tier offered by the payment processor.
type Price struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Interval    string `json:"interval"`
	PlanType    string `json:"planType"`
}

// NextBillingDate computes the renewal date for a plan; one-time plans have none.
func NextBillingDate(planType string, from time.Time) *time.Time {
	var next time.Time
	switch planType {
	case PlanMonthly:
		next = from.AddDate(0, 1, 0)
	case PlanYearly:
		next = from.AddDate(1, 0, 0)
	default:
		return nil
	}
	return &next
}

// PlanFromInterval maps a processor billing interval ("month", "year") to a plan type.
func PlanFromInterval(interval string) string {
	switch interval {
	case "month", "monthly":
		return PlanMonthly
	case "year", "yearly", "annual":
		return PlanYearly
	default:
		return PlanOneTime
	}
}
