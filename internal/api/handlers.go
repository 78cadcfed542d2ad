package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/paysync/internal/apiclient"
	"github.com/punchamoorthee/paysync/internal/domain"
	"github.com/punchamoorthee/paysync/internal/history"
	"github.com/punchamoorthee/paysync/internal/service"
)

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	upstream := "ok"
	if !h.service.Healthy(r.Context()) {
		upstream = "unreachable"
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "upstream": upstream})
}

func (h *Handler) ListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	payments, ok := h.filteredPayments(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, payments)
}

func (h *Handler) PaymentStatsHandler(w http.ResponseWriter, r *http.Request) {
	payments, ok := h.filteredPayments(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, history.Summarize(payments))
}

func (h *Handler) ExportPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	payments, ok := h.filteredPayments(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := history.WriteCSV(&buf, payments); err != nil {
		h.logger.Error("csv export failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	filename := fmt.Sprintf("payments-%s.csv", h.now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// filteredPayments writes the error response itself and reports false when
// the request cannot be served.
func (h *Handler) filteredPayments(w http.ResponseWriter, r *http.Request) ([]domain.Payment, bool) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	payments, err := h.service.ListCombined(r.Context())
	if err != nil {
		h.logger.Error("failed to list payments", "error", err)
		respondWithError(w, http.StatusInternalServerError, "System error listing payments")
		return nil, false
	}
	return history.Apply(payments, filter, h.now()), true
}

func parseFilter(q url.Values) (history.Filter, error) {
	f := history.Filter{Search: q.Get("q")}

	if s := strings.ToLower(q.Get("status")); s != "" && s != "all" {
		f.Status = domain.Status(s)
		if !f.Status.Valid() {
			return f, fmt.Errorf("unknown status %q", s)
		}
	}
	if t := strings.ToLower(q.Get("type")); t != "" && t != "all" {
		f.Type = domain.Type(t)
		if f.Type != domain.TypeSent && f.Type != domain.TypeReceived {
			return f, fmt.Errorf("unknown type %q", t)
		}
	}
	rng, err := history.ParseRange(q.Get("range"))
	if err != nil {
		return f, err
	}
	f.Range = rng
	return f, nil
}

func (h *Handler) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	respondWithJSON(w, http.StatusOK, h.service.GetPaymentStatus(r.Context(), id))
}

func (h *Handler) SendPaymentHandler(w http.ResponseWriter, r *http.Request) {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Stream read error")
		return
	}

	var in service.SendPaymentInput
	if err := json.Unmarshal(bodyBytes, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" || h.replays == nil {
		p, err := h.service.SendPayment(r.Context(), in)
		if err != nil {
			h.respondWithServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, p)
		return
	}

	existing, err := h.replays.Begin(r.Context(), key, HashRequest(bodyBytes))
	switch {
	case errors.Is(err, ErrIdempotencyConflict):
		respondWithError(w, http.StatusConflict, "Request processing in progress")
		return
	case errors.Is(err, ErrIdempotencyMismatch):
		respondWithError(w, http.StatusUnprocessableEntity, "Key reuse with mismatched payload")
		return
	case err != nil:
		h.logger.Error("idempotency lookup failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	// Idempotent replay
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(existing.ResponseBody)
		return
	}

	p, err := h.service.SendPayment(r.Context(), in)
	if err != nil {
		h.replays.Abandon(key)
		h.respondWithServiceError(w, err)
		return
	}

	body, err := json.Marshal(p)
	if err != nil {
		h.replays.Abandon(key)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	rep := Replay{RequestHash: HashRequest(bodyBytes), ResponseStatus: http.StatusCreated, ResponseBody: body}
	if err := h.replays.Finish(r.Context(), key, rep); err != nil {
		h.logger.Warn("payment sent but replay record not saved", "id", p.ID, "error", err)
	}

	w.Header().Set("Location", "/api/v1/payments/"+url.PathEscape(p.ID))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(body)
}

func (h *Handler) QuickSendHandler(w http.ResponseWriter, r *http.Request) {
	var in service.QuickSendInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	res, err := h.service.QuickSend(r.Context(), in)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, res)
}

type paymentRequestBody struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Reference string          `json:"reference"`
}

func (h *Handler) CreatePaymentRequestHandler(w http.ResponseWriter, r *http.Request) {
	var body paymentRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	req, err := h.service.CreatePaymentRequest(r.Context(), body.Amount, body.Currency, body.Reference)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, req)
}

type quoteBody struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) QuoteHandler(w http.ResponseWriter, r *http.Request) {
	var body quoteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	q, err := h.service.GetExchangeQuote(r.Context(), body.From, body.To, body.Amount)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, q)
}

// respondWithServiceError maps service errors onto dashboard status codes.
// Upstream client errors pass through; everything else upstream is a 502.
func (h *Handler) respondWithServiceError(w http.ResponseWriter, err error) {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, domain.ErrValidation):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &apiErr):
		code := http.StatusBadGateway
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			code = apiErr.Status
		}
		h.logger.Warn("upstream rejected request", "status", apiErr.Status, "error", apiErr)
		respondWithError(w, code, apiclient.Describe(err))
	case errors.Is(err, service.ErrNoCache):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
