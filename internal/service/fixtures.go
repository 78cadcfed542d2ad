package service

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/punchamoorthee/paysync/internal/domain"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

var (
	exchangeFeeRate = decimal.RequireFromString("0.02")
	networkFeeRate  = decimal.RequireFromString("0.005")
)

// Fixtures are the illustrative records served in degraded mode.
type Fixtures struct {
	Payments []domain.Payment `yaml:"payments"`
}

func LoadFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if len(f.Payments) == 0 {
		return nil, fmt.Errorf("parse fixtures: no payments")
	}
	return &f, nil
}

func defaultFixtures() *Fixtures {
	f, err := LoadFixtures(fixturesYAML)
	if err != nil {
		panic(err)
	}
	return f
}

// History returns a copy so callers cannot change the fixtures.
func (f *Fixtures) History() []domain.Payment {
	out := make([]domain.Payment, len(f.Payments))
	copy(out, f.Payments)
	return out
}

// Detail returns the fixture with the given id, or a pending placeholder
// for that id built from the first fixture.
func (f *Fixtures) Detail(id string) *domain.PaymentDetail {
	for _, p := range f.Payments {
		if p.ID == id {
			return detailFor(p)
		}
	}
	p := f.Payments[0]
	p.ID = id
	p.Status = domain.StatusPending
	return detailFor(p)
}

// detailFor derives a timeline and fee breakdown from the payment alone.
func detailFor(p domain.Payment) *domain.PaymentDetail {
	timeline := []domain.TimelineEvent{{
		Status: domain.StatusPending,
		At:     p.Timestamp,
		Note:   "Payment created",
	}}
	switch p.Status {
	case domain.StatusCompleted:
		timeline = append(timeline, domain.TimelineEvent{
			Status: domain.StatusCompleted,
			At:     p.Timestamp.Add(5 * time.Minute),
			Note:   "Funds delivered",
		})
	case domain.StatusFailed:
		timeline = append(timeline, domain.TimelineEvent{
			Status: domain.StatusFailed,
			At:     p.Timestamp.Add(5 * time.Minute),
			Note:   "Payment rejected",
		})
	}

	exchange := p.Amount.Mul(exchangeFeeRate).Round(2)
	network := p.Amount.Mul(networkFeeRate).Round(2)
	return &domain.PaymentDetail{
		Payment:  p,
		Timeline: timeline,
		Fees: domain.FeeBreakdown{
			Total:    exchange.Add(network),
			Network:  network,
			Exchange: exchange,
		},
	}
}
