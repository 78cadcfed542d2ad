// Package models holds the upstream payments API wire shapes and the
// adapters that turn them into domain.Payment.
package models

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// NestedAmount is the amount block of the current API.
type NestedAmount struct {
	Input          decimal.Decimal `json:"input"`
	InputCurrency  string          `json:"inputCurrency"`
	Output         decimal.Decimal `json:"output"`
	OutputCurrency string          `json:"outputCurrency"`
}

// NestedRecipient is the recipient block of the current API.
type NestedRecipient struct {
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Country   string `json:"country"`
}

// UnmarshalJSON also accepts a bare string, which some deployments send in
// place of the recipient object.
func (r *NestedRecipient) UnmarshalJSON(b []byte) error {
	if b = bytes.TrimSpace(b); len(b) > 0 && b[0] == '"' {
		*r = NestedRecipient{}
		return json.Unmarshal(b, &r.Name)
	}
	type plain NestedRecipient
	return json.Unmarshal(b, (*plain)(r))
}

// NestedPayment is a history record of the current API, which nests amount
// and recipient and names fields paymentId/createdAt/purpose.
type NestedPayment struct {
	PaymentID   string          `json:"paymentId"`
	ID          string          `json:"id"`
	Amount      NestedAmount    `json:"amount"`
	Recipient   NestedRecipient `json:"recipient"`
	Status      string          `json:"status"`
	Type        string          `json:"type"`
	Direction   string          `json:"direction"`
	CreatedAt   string          `json:"createdAt"`
	Timestamp   string          `json:"timestamp"`
	Purpose     string          `json:"purpose"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	Method      string          `json:"method"`
}

// FlatPayment is a history record of the legacy API.
type FlatPayment struct {
	ID          string          `json:"id"`
	PaymentID   string          `json:"paymentId"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Recipient   string          `json:"recipient"`
	Status      string          `json:"status"`
	Type        string          `json:"type"`
	Timestamp   string          `json:"timestamp"`
	Date        string          `json:"date"`
	CreatedAt   string          `json:"createdAt"`
	Description string          `json:"description"`
	Purpose     string          `json:"purpose"`
	Reference   string          `json:"reference"`
	Method      string          `json:"method"`
}

// SendPaymentBody is posted to the submit endpoint.
type SendPaymentBody struct {
	Recipient   string          `json:"recipient"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description,omitempty"`
	Method      string          `json:"method,omitempty"`
}

// DemoPaymentBody is posted to the demo endpoint by quick send.
type DemoPaymentBody struct {
	Amount           decimal.Decimal  `json:"amount"`
	Currency         string           `json:"currency,omitempty"`
	RecipientDetails RecipientDetails `json:"recipientDetails"`
}

type RecipientDetails struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// PaymentRequestBody is posted to the receive endpoint.
type PaymentRequestBody struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Reference string          `json:"reference,omitempty"`
}

// PaymentRequestResponse covers the field names the receive endpoint has
// used for the request id and its shareable payload.
type PaymentRequestResponse struct {
	ID          string `json:"id"`
	RequestID   string `json:"requestId"`
	QRCode      string `json:"qrCode"`
	PaymentLink string `json:"paymentLink"`
	Link        string `json:"link"`
}

// QuoteBody is posted to the quote endpoint.
type QuoteBody struct {
	FromCurrency string          `json:"fromCurrency"`
	ToCurrency   string          `json:"toCurrency"`
	Amount       decimal.Decimal `json:"amount"`
}

type QuoteResponse struct {
	Rate       decimal.Decimal `json:"rate"`
	FromAmount decimal.Decimal `json:"fromAmount"`
	ToAmount   decimal.Decimal `json:"toAmount"`
	Fees       struct {
		Total decimal.Decimal `json:"total"`
	} `json:"fees"`
}

// StatusResponse is a single payment with its timeline and fee breakdown.
// The payment fields are decoded separately through the shape adapters.
type StatusResponse struct {
	Timeline []StatusEvent `json:"timeline"`
	Fees     struct {
		Total    decimal.Decimal `json:"total"`
		Network  decimal.Decimal `json:"network"`
		Exchange decimal.Decimal `json:"exchange"`
	} `json:"fees"`
}

type StatusEvent struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	At        string `json:"at"`
	Note      string `json:"note"`
}

// Envelope is the {success, data} wrapper some endpoints use.
type Envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// SendPaymentAck is the submit endpoint's acknowledgement. Deployments have
// returned the id as id, paymentId or transactionId.
type SendPaymentAck struct {
	ID            string `json:"id"`
	PaymentID     string `json:"paymentId"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	CreatedAt     string `json:"createdAt"`
	Timestamp     string `json:"timestamp"`
}

// PaymentRef returns whichever id field the acknowledgement carried.
func (a SendPaymentAck) PaymentRef() string {
	return firstNonEmpty(a.ID, a.PaymentID, a.TransactionID)
}
