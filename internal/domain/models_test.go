package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending to completed", StatusPending, StatusCompleted, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"pending stays pending", StatusPending, StatusPending, true},
		{"completed to pending", StatusCompleted, StatusPending, false},
		{"failed to pending", StatusFailed, StatusPending, false},
		{"completed to failed", StatusCompleted, StatusFailed, false},
		{"failed to completed", StatusFailed, StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPaymentDraft_Validate(t *testing.T) {
	valid := PaymentDraft{
		Recipient: "a@b.com",
		Amount:    decimal.NewFromInt(50),
		Currency:  "GBP",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		edit  func(d *PaymentDraft)
		field string
	}{
		{"blank recipient", func(d *PaymentDraft) { d.Recipient = "  " }, "recipient"},
		{"malformed email", func(d *PaymentDraft) { d.Recipient = "a@" }, "recipient"},
		{"zero amount", func(d *PaymentDraft) { d.Amount = decimal.Zero }, "amount"},
		{"negative amount", func(d *PaymentDraft) { d.Amount = decimal.NewFromInt(-5) }, "amount"},
		{"short currency", func(d *PaymentDraft) { d.Currency = "GB" }, "currency"},
		{"numeric currency", func(d *PaymentDraft) { d.Currency = "G8P" }, "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.edit(&d)
			err := d.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestPayment_JSONAmountIsNumber(t *testing.T) {
	p := Payment{
		ID:        "srv_1",
		Recipient: "X",
		Amount:    decimal.RequireFromString("12.50"),
		Currency:  "USD",
		Status:    StatusPending,
		Type:      TypeSent,
		Timestamp: time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
	}

	body, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"amount":12.5`)
	assert.Contains(t, string(body), `"timestamp":"2024-06-01T10:30:00Z"`)
	assert.NotContains(t, string(body), "reference")
}
