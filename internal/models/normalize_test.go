package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/paysync/internal/domain"
)

func TestDetectShape(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Shape
	}{
		{"nested amount", `{"paymentId":"p1","amount":{"input":100}}`, ShapeNested},
		{"flat amount", `{"id":"1","amount":250.5}`, ShapeFlat},
		{"string amount", `{"id":"1","amount":"250.5"}`, ShapeFlat},
		{"no amount", `{"id":"1"}`, ShapeUnknown},
		{"not an object", `[1,2]`, ShapeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectShape(json.RawMessage(tt.raw)))
		})
	}
}

func TestDecodePayment_Nested(t *testing.T) {
	raw := `{
		"paymentId": "pay_123",
		"amount": {"input": 100, "inputCurrency": "USD", "output": 1850, "outputCurrency": "MXN"},
		"recipient": {"name": "X"},
		"status": "processing",
		"createdAt": "2024-06-01T10:30:00.000Z",
		"purpose": "Family support",
		"method": "blockchain"
	}`

	p, err := DecodePayment(json.RawMessage(raw))
	require.NoError(t, err)

	assert.Equal(t, "pay_123", p.ID)
	assert.True(t, decimal.NewFromInt(100).Equal(p.Amount))
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, "X", p.Recipient)
	assert.Equal(t, domain.TypeSent, p.Type)
	assert.Equal(t, domain.StatusPending, p.Status)
	assert.Equal(t, "Family support", p.Description)
	assert.Equal(t, "blockchain", p.Method)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC), p.Timestamp)
}

func TestDecodePayment_NestedRecipientFromNameParts(t *testing.T) {
	raw := `{"id":"p2","amount":{"input":"12.50","inputCurrency":"gbp"},
		"recipient":{"firstName":"Maria","lastName":"Rodriguez"},"status":"settled","direction":"incoming"}`

	p, err := DecodePayment(json.RawMessage(raw))
	require.NoError(t, err)

	assert.Equal(t, "p2", p.ID)
	assert.Equal(t, "Maria Rodriguez", p.Recipient)
	assert.Equal(t, "GBP", p.Currency)
	assert.Equal(t, domain.StatusCompleted, p.Status)
	assert.Equal(t, domain.TypeReceived, p.Type)
	assert.True(t, decimal.RequireFromString("12.5").Equal(p.Amount))
}

func TestDecodePayment_NestedDescriptionAndStringRecipient(t *testing.T) {
	raw := `{"paymentId":"p3","amount":{"input":40,"inputCurrency":"EUR"},
		"recipient":"Ana Lopez","description":"Rent share"}`

	p, err := DecodePayment(json.RawMessage(raw))
	require.NoError(t, err)

	assert.Equal(t, "Ana Lopez", p.Recipient)
	assert.Equal(t, "Rent share", p.Description)
	assert.Equal(t, "EUR", p.Currency)
}

func TestDecodePayment_NestedPurposeWinsOverDescription(t *testing.T) {
	raw := `{"paymentId":"p4","amount":{"input":1,"inputCurrency":"USD"},"recipient":{"name":"X"},
		"purpose":"Tuition","description":"ignored"}`

	p, err := DecodePayment(json.RawMessage(raw))
	require.NoError(t, err)
	assert.Equal(t, "Tuition", p.Description)
}

func TestDecodePayment_Flat(t *testing.T) {
	raw := `{"id":"2","amount":1500,"currency":"GBP","type":"received","status":"completed",
		"recipient":"Alice Johnson","date":"2024-05-30T14:20:00Z","description":"Freelance work"}`

	p, err := DecodePayment(json.RawMessage(raw))
	require.NoError(t, err)

	assert.Equal(t, "2", p.ID)
	assert.Equal(t, "Alice Johnson", p.Recipient)
	assert.Equal(t, domain.TypeReceived, p.Type)
	assert.Equal(t, domain.StatusCompleted, p.Status)
	assert.Equal(t, "Freelance work", p.Description)
	assert.Equal(t, 2024, p.Timestamp.Year())
}

func TestDecodePayment_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"missing id", `{"amount":10,"currency":"GBP"}`, ErrMissingID},
		{"zero amount", `{"id":"1","amount":0}`, ErrBadAmount},
		{"negative nested amount", `{"paymentId":"1","amount":{"input":-4}}`, ErrBadAmount},
		{"nested without currency", `{"paymentId":"1","amount":{"input":10},"recipient":{"name":"X"}}`, ErrBadCurrency},
		{"flat without currency", `{"id":"1","amount":10,"recipient":"X"}`, ErrBadCurrency},
		{"unknown shape", `{"id":"1"}`, ErrUnknownShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayment(json.RawMessage(tt.raw))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeHistory_Envelopes(t *testing.T) {
	record := `{"paymentId":"p1","amount":{"input":100,"inputCurrency":"USD"},"recipient":{"name":"X"}}`

	bodies := map[string]string{
		"bare list":         `[` + record + `]`,
		"data envelope":     `{"success":true,"data":[` + record + `]}`,
		"payments envelope": `{"payments":[` + record + `]}`,
		"nested envelope":   `{"success":true,"data":{"payments":[` + record + `],"total":1}}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			payments, skipped, err := DecodeHistory([]byte(body))
			require.NoError(t, err)
			assert.Empty(t, skipped)
			require.Len(t, payments, 1)
			assert.Equal(t, "p1", payments[0].ID)
		})
	}
}

func TestDecodeHistory_MixedShapesAndSkips(t *testing.T) {
	body := `[
		{"paymentId":"p1","amount":{"input":100,"inputCurrency":"USD"},"recipient":{"name":"X"}},
		{"id":"legacy-1","amount":45.99,"currency":"GBP","recipient":"Tech Store","status":"failed"},
		{"id":"bad","amount":-1},
		{"nothing":"here"}
	]`

	payments, skipped, err := DecodeHistory([]byte(body))
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "p1", payments[0].ID)
	assert.Equal(t, "legacy-1", payments[1].ID)
	assert.Equal(t, domain.StatusFailed, payments[1].Status)

	require.Len(t, skipped, 2)
	assert.Equal(t, 2, skipped[0].Index)
	assert.Equal(t, 3, skipped[1].Index)
}

func TestDecodeHistory_BadEnvelope(t *testing.T) {
	_, _, err := DecodeHistory([]byte(`{"status":"ok"}`))
	assert.Error(t, err)
}

func TestUnwrap(t *testing.T) {
	assert.JSONEq(t, `{"id":"srv_1"}`, string(Unwrap([]byte(`{"success":true,"data":{"id":"srv_1"}}`))))
	assert.JSONEq(t, `{"id":"srv_1"}`, string(Unwrap([]byte(`{"id":"srv_1"}`))))
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, domain.StatusCompleted, NormalizeStatus("SUCCESS"))
	assert.Equal(t, domain.StatusFailed, NormalizeStatus("rejected"))
	assert.Equal(t, domain.StatusPending, NormalizeStatus("initiated"))
	assert.Equal(t, domain.StatusPending, NormalizeStatus(""))
}
