package history

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/paysync/internal/domain"
)

var now = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func sample() []domain.Payment {
	return []domain.Payment{
		{ID: "temp_1", Recipient: "Maria Rodriguez", Amount: decimal.NewFromInt(50), Currency: "USD",
			Status: domain.StatusPending, Type: domain.TypeSent, Timestamp: now.Add(-time.Hour)},
		{ID: "2", Recipient: "Alice Johnson", Amount: decimal.NewFromInt(1500), Currency: "GBP",
			Status: domain.StatusCompleted, Type: domain.TypeReceived, Timestamp: now.AddDate(0, 0, -20),
			Description: "Freelance work"},
		{ID: "5", Recipient: "Tech Store", Amount: decimal.RequireFromString("45.99"), Currency: "GBP",
			Status: domain.StatusFailed, Type: domain.TypeSent, Timestamp: now.AddDate(0, 0, -60),
			Description: "Online, \"express\" purchase"},
	}
}

func ids(payments []domain.Payment) []string {
	out := make([]string, 0, len(payments))
	for _, p := range payments {
		out = append(out, p.ID)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filter", Filter{}, []string{"temp_1", "2", "5"}},
		{"search recipient", Filter{Search: "maria"}, []string{"temp_1"}},
		{"search description", Filter{Search: "FREELANCE"}, []string{"2"}},
		{"search id", Filter{Search: "temp_"}, []string{"temp_1"}},
		{"status", Filter{Status: domain.StatusFailed}, []string{"5"}},
		{"type", Filter{Type: domain.TypeSent}, []string{"temp_1", "5"}},
		{"7 days", Filter{Range: Range7Days}, []string{"temp_1"}},
		{"30 days", Filter{Range: Range30Days}, []string{"temp_1", "2"}},
		{"90 days and sent", Filter{Range: Range90Days, Type: domain.TypeSent}, []string{"temp_1", "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(sample(), tt.filter, now)))
		})
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("30D")
	require.NoError(t, err)
	assert.Equal(t, Range30Days, r)

	r, err = ParseRange("all")
	require.NoError(t, err)
	assert.Equal(t, RangeAll, r)

	_, err = ParseRange("1y")
	assert.ErrorIs(t, err, ErrUnknownRange)
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample())

	assert.True(t, decimal.RequireFromString("95.99").Equal(s.TotalSent))
	assert.True(t, decimal.NewFromInt(1500).Equal(s.TotalReceived))
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 3, s.Count)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()[1:]))

	want := "Date,ID,Type,Recipient,Amount,Currency,Status,Description\n" +
		"2024-06-10,2,received,Alice Johnson,1500.00,GBP,completed,Freelance work\n" +
		"2024-05-01,5,sent,Tech Store,45.99,GBP,failed,\"Online, \"\"express\"\" purchase\"\n"
	assert.Equal(t, want, buf.String())
}
