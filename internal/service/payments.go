package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/paysync/internal/apiclient"
	"github.com/punchamoorthee/paysync/internal/cache"
	"github.com/punchamoorthee/paysync/internal/domain"
	"github.com/punchamoorthee/paysync/internal/models"
)

const (
	DefaultSubmitTimeout = 30 * time.Second
	DefaultAppURL        = "https://starling-pay.com"
	DefaultCurrency      = "USD"
	DefaultSeenCapacity  = 1024
)

var (
	fallbackRate    = decimal.RequireFromString("18.5")
	fallbackFeeRate = decimal.RequireFromString("0.025")

	ErrNoCache = errors.New("quick send requires a local cache")
)

// API is the part of the upstream client the service needs.
type API interface {
	Get(ctx context.Context, endpoint string, out any, opts ...apiclient.RequestOption) error
	Post(ctx context.Context, endpoint string, body, out any, opts ...apiclient.RequestOption) error
	Healthy(ctx context.Context) bool
}

// Endpoints are the upstream routes. They are configuration, not contract.
type Endpoints struct {
	History string
	Send    string
	Status  string
	Receive string
	Quote   string
	Demo    string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		History: "/api/payments/history",
		Send:    "/api/payments/send",
		Status:  "/api/payments/status",
		Receive: "/api/payments/receive",
		Quote:   "/api/payments/quote",
		Demo:    "/api/payments/demo",
	}
}

type Config struct {
	Endpoints     Endpoints
	AppURL        string
	SubmitTimeout time.Duration
	Fixtures      *Fixtures
	Now           func() time.Time
	NewID         func() string
	// SeenCapacity bounds how many payments are remembered for status
	// regression checks and status fallback.
	SeenCapacity int
}

// PaymentService gives the dashboard its payment operations. Reads never
// fail: they fall back to fixtures. Writes surface *apiclient.APIError.
type PaymentService struct {
	api      API
	cache    *cache.LocalCache
	cfg      Config
	fixtures *Fixtures
	logger   *slog.Logger

	mu   sync.Mutex
	seen *lru.Cache[string, domain.Payment]
}

func NewPaymentService(api API, localCache *cache.LocalCache, cfg Config, logger *slog.Logger) *PaymentService {
	def := DefaultEndpoints()
	if cfg.Endpoints.History == "" {
		cfg.Endpoints.History = def.History
	}
	if cfg.Endpoints.Send == "" {
		cfg.Endpoints.Send = def.Send
	}
	if cfg.Endpoints.Status == "" {
		cfg.Endpoints.Status = def.Status
	}
	if cfg.Endpoints.Receive == "" {
		cfg.Endpoints.Receive = def.Receive
	}
	if cfg.Endpoints.Quote == "" {
		cfg.Endpoints.Quote = def.Quote
	}
	if cfg.Endpoints.Demo == "" {
		cfg.Endpoints.Demo = def.Demo
	}
	if cfg.AppURL == "" {
		cfg.AppURL = DefaultAppURL
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	fixtures := cfg.Fixtures
	if fixtures == nil {
		fixtures = defaultFixtures()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SeenCapacity <= 0 {
		cfg.SeenCapacity = DefaultSeenCapacity
	}
	seen, err := lru.New[string, domain.Payment](cfg.SeenCapacity)
	if err != nil {
		panic(err)
	}

	return &PaymentService{
		api:      api,
		cache:    localCache,
		cfg:      cfg,
		fixtures: fixtures,
		logger:   logger,
		seen:     seen,
	}
}

// ListPaymentHistory returns normalized server history, or the fixtures when
// the upstream is unreachable or answers with something unusable.
func (s *PaymentService) ListPaymentHistory(ctx context.Context) []domain.Payment {
	if !s.api.Healthy(ctx) {
		s.logger.Info("payments API unreachable, serving fixture history")
		return s.fixtures.History()
	}

	var raw json.RawMessage
	if err := s.api.Get(ctx, s.cfg.Endpoints.History, &raw); err != nil {
		s.logger.Warn("failed to fetch payment history, serving fixtures", "error", err)
		return s.fixtures.History()
	}

	payments, skipped, err := models.DecodeHistory(raw)
	if err != nil {
		s.logger.Warn("unreadable payment history, serving fixtures", "error", err)
		return s.fixtures.History()
	}
	for _, rec := range skipped {
		s.logger.Warn("skipping payment history record", "index", rec.Index, "error", rec.Err)
	}
	return s.observe(payments)
}

// ListCombined puts the unexpired optimistic payments ahead of history.
func (s *PaymentService) ListCombined(ctx context.Context) ([]domain.Payment, error) {
	history := s.ListPaymentHistory(ctx)
	if s.cache == nil {
		return history, nil
	}
	return s.cache.ListCombined(ctx, history)
}

type SendPaymentInput struct {
	Recipient   string          `json:"recipient"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description,omitempty"`
	Method      string          `json:"method,omitempty"`
}

func (in SendPaymentInput) draft() domain.PaymentDraft {
	return domain.PaymentDraft{
		Recipient:   strings.TrimSpace(in.Recipient),
		Amount:      in.Amount,
		Currency:    strings.ToUpper(strings.TrimSpace(in.Currency)),
		Type:        domain.TypeSent,
		Reference:   in.Reference,
		Method:      in.Method,
		Description: in.Description,
	}
}

// SendPayment validates the request and submits it once. Validation errors
// are returned before any network call; upstream failures come back as
// *apiclient.APIError and are not resubmitted.
func (s *PaymentService) SendPayment(ctx context.Context, in SendPaymentInput) (*domain.Payment, error) {
	d := in.draft()
	if err := d.Validate(); err != nil {
		return nil, err
	}

	body := models.SendPaymentBody{
		Recipient:   d.Recipient,
		Amount:      d.Amount,
		Currency:    d.Currency,
		Reference:   d.Reference,
		Description: d.Description,
		Method:      d.Method,
	}

	var raw json.RawMessage
	if err := s.api.Post(ctx, s.cfg.Endpoints.Send, body, &raw, apiclient.WithTimeout(s.cfg.SubmitTimeout)); err != nil {
		return nil, err
	}

	var ack models.SendPaymentAck
	if err := json.Unmarshal(models.Unwrap(raw), &ack); err != nil || ack.PaymentRef() == "" {
		return nil, &apiclient.APIError{
			StatusText: "Invalid Response",
			Message:    "payment was submitted but the acknowledgement carried no id",
			Data:       raw,
		}
	}

	p := domain.Payment{
		ID:          ack.PaymentRef(),
		Recipient:   d.Recipient,
		Amount:      d.Amount,
		Currency:    d.Currency,
		Status:      domain.StatusPending,
		Type:        domain.TypeSent,
		Timestamp:   models.ParseTime(firstNonEmpty(ack.CreatedAt, ack.Timestamp)),
		Reference:   d.Reference,
		Method:      d.Method,
		Description: d.Description,
	}
	if ack.Status != "" {
		p.Status = models.NormalizeStatus(ack.Status)
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = s.cfg.Now().UTC()
	}

	s.logger.Info("payment submitted", "id", p.ID, "amount", p.Amount.String(), "currency", p.Currency)
	observed := s.observe([]domain.Payment{p})
	return &observed[0], nil
}

// GetPaymentStatus returns the detail view of one payment. Temporary ids are
// answered from the local cache. When the upstream cannot answer, the last
// observed version of the payment is served, then fixtures.
func (s *PaymentService) GetPaymentStatus(ctx context.Context, id string) *domain.PaymentDetail {
	if cache.IsTemporaryID(id) && s.cache != nil {
		p, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("failed to read temporary payment", "id", id, "error", err)
		}
		if ok {
			return detailFor(p)
		}
	}

	var raw json.RawMessage
	endpoint := strings.TrimRight(s.cfg.Endpoints.Status, "/") + "/" + url.PathEscape(id)
	if err := s.api.Get(ctx, endpoint, &raw); err != nil {
		s.logger.Warn("failed to fetch payment status, serving fallback", "id", id, "error", err)
		return s.fallbackDetail(id)
	}

	detail, err := decodeDetail(models.Unwrap(raw))
	if err != nil {
		s.logger.Warn("unreadable payment status, serving fallback", "id", id, "error", err)
		return s.fallbackDetail(id)
	}
	detail.Payment = s.observe([]domain.Payment{detail.Payment})[0]
	return detail
}

func (s *PaymentService) fallbackDetail(id string) *domain.PaymentDetail {
	if p, ok := s.seen.Get(id); ok {
		return detailFor(p)
	}
	return s.fixtures.Detail(id)
}

func decodeDetail(body json.RawMessage) (*domain.PaymentDetail, error) {
	record := body
	var wrapper struct {
		Payment json.RawMessage `json:"payment"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && len(wrapper.Payment) > 0 {
		record = wrapper.Payment
	}

	p, err := models.DecodePayment(record)
	if err != nil {
		return nil, err
	}

	var extra models.StatusResponse
	if err := json.Unmarshal(body, &extra); err != nil {
		return nil, err
	}

	detail := detailFor(p)
	if len(extra.Timeline) > 0 {
		detail.Timeline = detail.Timeline[:0]
		for _, ev := range extra.Timeline {
			detail.Timeline = append(detail.Timeline, domain.TimelineEvent{
				Status: models.NormalizeStatus(ev.Status),
				At:     models.ParseTime(firstNonEmpty(ev.At, ev.Timestamp)),
				Note:   ev.Note,
			})
		}
	}
	if extra.Fees.Total.IsPositive() {
		detail.Fees = domain.FeeBreakdown{
			Total:    extra.Fees.Total,
			Network:  extra.Fees.Network,
			Exchange: extra.Fees.Exchange,
		}
	}
	return detail, nil
}

// CreatePaymentRequest asks the upstream for a shareable request and
// synthesizes one locally when it cannot. Only validation errors are
// returned.
func (s *PaymentService) CreatePaymentRequest(ctx context.Context, amount decimal.Decimal, currency, reference string) (*domain.PaymentRequest, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateCurrency(currency); err != nil {
		return nil, err
	}

	req := &domain.PaymentRequest{Amount: amount, Currency: currency, Reference: reference}

	var resp models.PaymentRequestResponse
	body := models.PaymentRequestBody{Amount: amount, Currency: currency, Reference: reference}
	var raw json.RawMessage
	err := s.api.Post(ctx, s.cfg.Endpoints.Receive, body, &raw)
	if err == nil {
		err = json.Unmarshal(models.Unwrap(raw), &resp)
	}
	if err != nil {
		s.logger.Warn("payment request not created upstream, generating locally", "error", err)
	}

	req.ID = firstNonEmpty(resp.ID, resp.RequestID)
	if req.ID == "" {
		req.ID = s.cfg.NewID()
	}
	req.Link = firstNonEmpty(resp.PaymentLink, resp.Link)
	if req.Link == "" {
		req.Link = RequestLink(s.cfg.AppURL, req.ID, amount, currency, reference)
	}
	req.QRCode = firstNonEmpty(resp.QRCode, req.Link)
	return req, nil
}

// RequestLink is the shareable URI for a payment request. The same inputs
// always give the same link.
func RequestLink(appURL, id string, amount decimal.Decimal, currency, reference string) string {
	q := url.Values{}
	q.Set("amount", amount.String())
	q.Set("currency", currency)
	q.Set("desc", reference)
	return strings.TrimRight(appURL, "/") + "/pay/" + url.PathEscape(id) + "?" + q.Encode()
}

// GetExchangeQuote prices a conversion for the send form. When the upstream
// cannot quote, a fixed demo rate and fee are used.
func (s *PaymentService) GetExchangeQuote(ctx context.Context, from, to string, amount decimal.Decimal) (domain.ExchangeQuote, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if err := domain.ValidateAmount(amount); err != nil {
		return domain.ExchangeQuote{}, err
	}
	if err := domain.ValidateCurrency(from); err != nil {
		return domain.ExchangeQuote{}, err
	}
	if err := domain.ValidateCurrency(to); err != nil {
		return domain.ExchangeQuote{}, err
	}

	var resp models.QuoteResponse
	body := models.QuoteBody{FromCurrency: from, ToCurrency: to, Amount: amount}
	var raw json.RawMessage
	err := s.api.Post(ctx, s.cfg.Endpoints.Quote, body, &raw)
	if err == nil {
		err = json.Unmarshal(models.Unwrap(raw), &resp)
	}
	if err == nil && resp.Rate.IsPositive() && !resp.Fees.Total.IsNegative() {
		q := domain.ExchangeQuote{
			From:       from,
			To:         to,
			Rate:       resp.Rate,
			FromAmount: resp.FromAmount,
			ToAmount:   resp.ToAmount,
			Fees:       domain.QuoteFees{Total: resp.Fees.Total},
		}
		if q.FromAmount.IsZero() {
			q.FromAmount = amount
		}
		if q.ToAmount.IsZero() {
			q.ToAmount = amount.Mul(q.Rate)
		}
		return q, nil
	}
	if err != nil {
		s.logger.Warn("exchange quote unavailable, using demo rate", "error", err)
	} else {
		s.logger.Warn("exchange quote rejected, using demo rate", "rate", resp.Rate.String())
	}

	return domain.ExchangeQuote{
		From:       from,
		To:         to,
		Rate:       fallbackRate,
		FromAmount: amount,
		ToAmount:   amount.Mul(fallbackRate),
		Fees:       domain.QuoteFees{Total: amount.Mul(fallbackFeeRate)},
	}, nil
}

// observe keeps a status from moving backwards for ids already seen in a
// terminal state, and remembers the latest version of each payment.
func (s *PaymentService) observe(payments []domain.Payment) []domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range payments {
		p := &payments[i]
		if prev, ok := s.seen.Get(p.ID); ok && !prev.Status.CanTransitionTo(p.Status) {
			s.logger.Warn("ignoring status regression", "id", p.ID, "from", prev.Status, "to", p.Status)
			p.Status = prev.Status
		}
		s.seen.Add(p.ID, *p)
	}
	return payments
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Healthy reports whether the upstream API answers its health probe.
func (s *PaymentService) Healthy(ctx context.Context) bool {
	return s.api.Healthy(ctx)
}
