package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/paysync/internal/domain"
)

// Shape identifies a known upstream record layout.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeNested
	ShapeFlat
)

func (s Shape) String() string {
	switch s {
	case ShapeNested:
		return "nested"
	case ShapeFlat:
		return "flat"
	}
	return "unknown"
}

var (
	ErrUnknownShape = errors.New("unrecognised payment record shape")
	ErrMissingID    = errors.New("payment record has no id")
	ErrBadAmount    = errors.New("payment record amount must be positive")
	ErrBadCurrency  = errors.New("payment record has no valid currency")
)

// DetectShape looks at the amount field: an object means the nested API,
// a scalar means the legacy flat API.
func DetectShape(raw json.RawMessage) Shape {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ShapeUnknown
	}
	amount, ok := fields["amount"]
	if !ok {
		return ShapeUnknown
	}
	amount = bytes.TrimSpace(amount)
	if len(amount) > 0 && amount[0] == '{' {
		return ShapeNested
	}
	return ShapeFlat
}

// DecodePayment normalizes one upstream record of any known shape.
func DecodePayment(raw json.RawMessage) (domain.Payment, error) {
	switch DetectShape(raw) {
	case ShapeNested:
		var rec NestedPayment
		if err := json.Unmarshal(raw, &rec); err != nil {
			return domain.Payment{}, fmt.Errorf("decode nested payment: %w", err)
		}
		return FromNested(rec)
	case ShapeFlat:
		var rec FlatPayment
		if err := json.Unmarshal(raw, &rec); err != nil {
			return domain.Payment{}, fmt.Errorf("decode flat payment: %w", err)
		}
		return FromFlat(rec)
	}
	return domain.Payment{}, ErrUnknownShape
}

// RecordError describes a history record that was skipped.
type RecordError struct {
	Index int
	Err   error
}

// DecodeHistory unwraps the response envelope and normalizes each record.
// Records that cannot be normalized are skipped and reported.
func DecodeHistory(body []byte) ([]domain.Payment, []RecordError, error) {
	records, err := unwrapList(body)
	if err != nil {
		return nil, nil, err
	}

	payments := make([]domain.Payment, 0, len(records))
	var skipped []RecordError
	for i, rec := range records {
		p, err := DecodePayment(rec)
		if err != nil {
			skipped = append(skipped, RecordError{Index: i, Err: err})
			continue
		}
		payments = append(payments, p)
	}
	return payments, skipped, nil
}

// Unwrap strips a {"data": ...} envelope if present.
func Unwrap(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return trimmed
	}
	return env.Data
}

// unwrapList accepts [...], {"data": ...} and {"payments": [...]}.
func unwrapList(body []byte) ([]json.RawMessage, error) {
	raw := bytes.TrimSpace(body)
	for depth := 0; depth < 3; depth++ {
		if len(raw) == 0 {
			return nil, nil
		}
		if raw[0] == '[' {
			var list []json.RawMessage
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, fmt.Errorf("decode history list: %w", err)
			}
			return list, nil
		}

		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decode history envelope: %w", err)
		}
		next, ok := obj["payments"]
		if !ok {
			next, ok = obj["data"]
		}
		if !ok {
			return nil, fmt.Errorf("decode history envelope: no payments list")
		}
		raw = bytes.TrimSpace(next)
	}
	return nil, fmt.Errorf("decode history envelope: nested too deeply")
}

// FromNested maps a current-API record.
func FromNested(rec NestedPayment) (domain.Payment, error) {
	p := domain.Payment{
		ID:          firstNonEmpty(rec.PaymentID, rec.ID),
		Recipient:   recipientName(rec.Recipient),
		Amount:      rec.Amount.Input,
		Currency:    strings.ToUpper(rec.Amount.InputCurrency),
		Status:      NormalizeStatus(rec.Status),
		Type:        normalizeType(firstNonEmpty(rec.Type, rec.Direction)),
		Timestamp:   ParseTime(firstNonEmpty(rec.CreatedAt, rec.Timestamp)),
		Reference:   rec.Reference,
		Method:      rec.Method,
		Description: firstNonEmpty(rec.Purpose, rec.Description),
	}
	return p, check(p)
}

// FromFlat maps a legacy-API record.
func FromFlat(rec FlatPayment) (domain.Payment, error) {
	p := domain.Payment{
		ID:          firstNonEmpty(rec.ID, rec.PaymentID),
		Recipient:   rec.Recipient,
		Amount:      rec.Amount,
		Currency:    strings.ToUpper(rec.Currency),
		Status:      NormalizeStatus(rec.Status),
		Type:        normalizeType(rec.Type),
		Timestamp:   ParseTime(firstNonEmpty(rec.Timestamp, rec.Date, rec.CreatedAt)),
		Reference:   rec.Reference,
		Method:      rec.Method,
		Description: firstNonEmpty(rec.Description, rec.Purpose),
	}
	return p, check(p)
}

// NormalizeStatus folds the upstream status vocabulary into the three
// canonical statuses. Anything unrecognised is still in flight.
func NormalizeStatus(s string) domain.Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed", "complete", "success", "succeeded", "settled":
		return domain.StatusCompleted
	case "failed", "failure", "rejected", "cancelled", "canceled", "error":
		return domain.StatusFailed
	}
	return domain.StatusPending
}

func normalizeType(s string) domain.Type {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "received", "incoming", "inbound", "credit":
		return domain.TypeReceived
	}
	return domain.TypeSent
}

func recipientName(r NestedRecipient) string {
	if r.Name != "" {
		return r.Name
	}
	full := strings.TrimSpace(r.FirstName + " " + r.LastName)
	if full != "" {
		return full
	}
	return r.Email
}

func check(p domain.Payment) error {
	if p.ID == "" {
		return ErrMissingID
	}
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrBadAmount
	}
	if domain.ValidateCurrency(p.Currency) != nil {
		return ErrBadCurrency
	}
	return nil
}

// ParseTime accepts RFC 3339 with or without fractional seconds and plain
// dates. Unparseable input yields the zero time.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
