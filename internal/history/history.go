// Package history filters, summarizes and exports the combined payment list
// shown on the dashboard.
package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/paysync/internal/domain"
)

var ErrUnknownRange = errors.New("unknown date range")

// Range limits history to payments newer than now minus the range.
type Range string

const (
	RangeAll    Range = ""
	Range7Days  Range = "7d"
	Range30Days Range = "30d"
	Range90Days Range = "90d"
)

func ParseRange(s string) (Range, error) {
	switch r := Range(strings.ToLower(strings.TrimSpace(s))); r {
	case "all":
		return RangeAll, nil
	case RangeAll, Range7Days, Range30Days, Range90Days:
		return r, nil
	}
	return RangeAll, fmt.Errorf("%w: %q", ErrUnknownRange, s)
}

func (r Range) window() time.Duration {
	switch r {
	case Range7Days:
		return 7 * 24 * time.Hour
	case Range30Days:
		return 30 * 24 * time.Hour
	case Range90Days:
		return 90 * 24 * time.Hour
	}
	return 0
}

// Filter is empty-means-any on every field.
type Filter struct {
	Search string
	Status domain.Status
	Type   domain.Type
	Range  Range
}

// Apply returns the payments matching f, keeping their order.
func Apply(payments []domain.Payment, f Filter, now time.Time) []domain.Payment {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var cutoff time.Time
	if w := f.Range.window(); w > 0 {
		cutoff = now.Add(-w)
	}

	out := make([]domain.Payment, 0, len(payments))
	for _, p := range payments {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Type != "" && p.Type != f.Type {
			continue
		}
		if !cutoff.IsZero() && p.Timestamp.Before(cutoff) {
			continue
		}
		if search != "" && !matches(p, search) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matches(p domain.Payment, search string) bool {
	for _, field := range []string{p.Recipient, p.ID, p.Description} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// Stats are the dashboard summary figures. Totals mix currencies.
type Stats struct {
	TotalSent     decimal.Decimal `json:"totalSent"`
	TotalReceived decimal.Decimal `json:"totalReceived"`
	Pending       int             `json:"pending"`
	Completed     int             `json:"completed"`
	Failed        int             `json:"failed"`
	Count         int             `json:"count"`
}

func Summarize(payments []domain.Payment) Stats {
	s := Stats{TotalSent: decimal.Zero, TotalReceived: decimal.Zero}
	for _, p := range payments {
		s.Count++
		switch p.Type {
		case domain.TypeReceived:
			s.TotalReceived = s.TotalReceived.Add(p.Amount)
		default:
			s.TotalSent = s.TotalSent.Add(p.Amount)
		}
		switch p.Status {
		case domain.StatusPending:
			s.Pending++
		case domain.StatusCompleted:
			s.Completed++
		case domain.StatusFailed:
			s.Failed++
		}
	}
	return s
}

var csvHeader = []string{"Date", "ID", "Type", "Recipient", "Amount", "Currency", "Status", "Description"}

// WriteCSV writes one row per payment under a fixed header.
func WriteCSV(w io.Writer, payments []domain.Payment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range payments {
		row := []string{
			p.Timestamp.UTC().Format("2006-01-02"),
			p.ID,
			string(p.Type),
			p.Recipient,
			p.Amount.StringFixed(2),
			p.Currency,
			string(p.Status),
			p.Description,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", p.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
