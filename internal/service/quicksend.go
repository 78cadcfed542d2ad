package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/paysync/internal/domain"
	"github.com/punchamoorthee/paysync/internal/models"
)

type QuickSendInput struct {
	RecipientName string          `json:"recipientName"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
}

type QuickSendResult struct {
	Payment    domain.Payment `json:"payment"`
	TrackingID string         `json:"trackingId,omitempty"`
	Confirmed  bool           `json:"confirmed"`
}

// QuickSend records an optimistic payment first and then asks the demo
// endpoint to execute it. Upstream failures are logged and swallowed: the
// optimistic entry stays visible until it ages out.
func (s *PaymentService) QuickSend(ctx context.Context, in QuickSendInput) (*QuickSendResult, error) {
	if s.cache == nil {
		return nil, ErrNoCache
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	draft := domain.PaymentDraft{
		Recipient: strings.TrimSpace(in.RecipientName),
		Amount:    in.Amount,
		Currency:  currency,
		Type:      domain.TypeSent,
		Method:    "blockchain",
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	p, err := s.cache.AddTemporary(ctx, draft)
	if err != nil {
		return nil, err
	}
	result := &QuickSendResult{Payment: p}

	first, last := splitName(draft.Recipient)
	body := models.DemoPaymentBody{
		Amount:           draft.Amount,
		Currency:         currency,
		RecipientDetails: models.RecipientDetails{FirstName: first, LastName: last},
	}

	var raw json.RawMessage
	if err := s.api.Post(ctx, s.cfg.Endpoints.Demo, body, &raw); err != nil {
		s.logger.Warn("quick send not confirmed upstream", "temp_id", p.ID, "error", err)
		return result, nil
	}

	var ack models.SendPaymentAck
	if err := json.Unmarshal(models.Unwrap(raw), &ack); err != nil {
		s.logger.Warn("quick send acknowledgement unreadable", "temp_id", p.ID, "error", err)
		return result, nil
	}
	result.TrackingID = ack.PaymentRef()
	result.Confirmed = result.TrackingID != ""
	s.logger.Info("quick send submitted", "temp_id", p.ID, "tracking_id", result.TrackingID)
	return result, nil
}

// The demo endpoint requires a last name.
const demoLastName = "Rodriguez"

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", demoLastName
	case 1:
		return parts[0], demoLastName
	}
	return parts[0], strings.Join(parts[1:], " ")
}
