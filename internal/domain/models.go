package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Upstream and dashboard clients expect amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Status is the settlement state of a payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Only pending may move, and only forward to completed or failed.
// Staying in the same status is always allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	return s == StatusPending && next.Terminal()
}

// Type tells whether the payment left or entered the account.
type Type string

const (
	TypeSent     Type = "sent"
	TypeReceived Type = "received"
)

// Payment is the canonical payment shape presented to every consumer,
// regardless of which upstream API version produced it.
type Payment struct {
	ID          string          `json:"id" yaml:"id"`
	Recipient   string          `json:"recipient" yaml:"recipient"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Currency    string          `json:"currency" yaml:"currency"`
	Status      Status          `json:"status" yaml:"status"`
	Type        Type            `json:"type" yaml:"type"`
	Timestamp   time.Time       `json:"timestamp" yaml:"timestamp"`
	Reference   string          `json:"reference,omitempty" yaml:"reference,omitempty"`
	Method      string          `json:"method,omitempty" yaml:"method,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
}

// PaymentDraft is a payment before it has an id, timestamp or status.
type PaymentDraft struct {
	Recipient   string          `json:"recipient"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Type        Type            `json:"type"`
	Reference   string          `json:"reference,omitempty"`
	Method      string          `json:"method,omitempty"`
	Description string          `json:"description,omitempty"`
}

// TimelineEvent is one step in the life of a payment.
type TimelineEvent struct {
	Status Status    `json:"status" yaml:"status"`
	At     time.Time `json:"at" yaml:"at"`
	Note   string    `json:"note,omitempty" yaml:"note,omitempty"`
}

// FeeBreakdown holds the fees charged on a payment.
type FeeBreakdown struct {
	Total    decimal.Decimal `json:"total" yaml:"total"`
	Network  decimal.Decimal `json:"network" yaml:"network"`
	Exchange decimal.Decimal `json:"exchange" yaml:"exchange"`
}

// PaymentDetail backs the payment detail view.
type PaymentDetail struct {
	Payment  Payment         `json:"payment" yaml:"payment"`
	Timeline []TimelineEvent `json:"timeline" yaml:"timeline"`
	Fees     FeeBreakdown    `json:"fees" yaml:"fees"`
}

// QuoteFees holds the fee total of an exchange quote.
type QuoteFees struct {
	Total decimal.Decimal `json:"total"`
}

// ExchangeQuote is derived on demand for a form session and never cached.
type ExchangeQuote struct {
	From       string          `json:"from"`
	To         string          `json:"to"`
	Rate       decimal.Decimal `json:"rate"`
	FromAmount decimal.Decimal `json:"fromAmount"`
	ToAmount   decimal.Decimal `json:"toAmount"`
	Fees       QuoteFees       `json:"fees"`
}

// PaymentRequest is a shareable request for funds.
type PaymentRequest struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Reference string          `json:"reference,omitempty"`
	Link      string          `json:"link"`
	QRCode    string          `json:"qrCode"`
}
