package portfolio

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/stupiduntilnot/kontempo/internal/record"
)

// RevenuePolicy selects which payouts count towards total revenue.
type RevenuePolicy string

const (
	// RevenueAllPayouts sums every payout regardless of its status.
	RevenueAllPayouts RevenuePolicy = "all"
	// RevenueCompletedPayouts sums only payouts in a completed status.
	RevenueCompletedPayouts RevenuePolicy = "completed"
)

var completedPayoutStatuses = map[string]struct{}{
	"completed": {},
	"paid":      {},
}

// ParseRevenuePolicy maps a configuration value to a RevenuePolicy. An empty
// value selects RevenueAllPayouts.
func ParseRevenuePolicy(s string) (RevenuePolicy, error) {
	switch RevenuePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RevenueAllPayouts:
		return RevenueAllPayouts, nil
	case RevenueCompletedPayouts:
		return RevenueCompletedPayouts, nil
	default:
		return "", fmt.Errorf("unknown revenue policy %q (want all or completed)", s)
	}
}

func (p RevenuePolicy) counts(payout record.Payout) bool {
	if p != RevenueCompletedPayouts {
		return true
	}
	_, ok := completedPayoutStatuses[strings.ToLower(strings.TrimSpace(payout.Status.String()))]
	return ok
}

// Metrics holds the scalar portfolio figures of one dataset.
type Metrics struct {
	// ActiveClients counts buyers with credit_limit > 0, independent of
	// their approval status.
	ActiveClients     int
	TotalCreditIssued float64
	TotalCreditUsed   float64
	UtilizationPct    float64
	CreditAvailable   float64

	OverdueOrders int
	TotalOverdue  float64

	Revenue      RevenuePolicy
	TotalRevenue float64
	OrderCount   int

	PipelineLinkCount int
	PipelineValue     float64
}

// Aggregate computes Metrics over ds. It never fails; absent fields count as 0.
func Aggregate(ds record.Dataset, policy RevenuePolicy) Metrics {
	if policy == "" {
		policy = RevenueAllPayouts
	}
	m := Metrics{
		Revenue:           policy,
		OrderCount:        len(ds.Orders),
		PipelineLinkCount: len(ds.PaymentLinks),
	}

	for _, b := range ds.Buyers {
		credit := b.CreditLine()
		if credit.Limit.Float64() <= 0 {
			continue
		}
		m.ActiveClients++
		m.TotalCreditIssued += credit.Limit.Float64()
		m.TotalCreditUsed += credit.Used.Float64()
	}
	m.UtilizationPct = utilization(m.TotalCreditUsed, m.TotalCreditIssued)
	m.CreditAvailable = m.TotalCreditIssued - m.TotalCreditUsed

	for _, o := range ds.Orders {
		if o.IsDue() {
			m.OverdueOrders++
			m.TotalOverdue += o.Amount.Float64()
		}
	}

	for _, p := range ds.Payouts {
		if policy.counts(p) {
			m.TotalRevenue += p.Amount.Float64()
		}
	}

	for _, l := range ds.PaymentLinks {
		m.PipelineValue += l.CartTotal.Float64()
	}
	return m
}

// ErrOverflow reports a total that left the float64 range even though every
// input amount was finite.
var ErrOverflow = errors.New("total exceeds numeric range")

// Check returns ErrOverflow naming the first total that is not finite.
func (m Metrics) Check() error {
	totals := []struct {
		name string
		v    float64
	}{
		{"credit issued", m.TotalCreditIssued},
		{"credit used", m.TotalCreditUsed},
		{"credit available", m.CreditAvailable},
		{"overdue amount", m.TotalOverdue},
		{"revenue", m.TotalRevenue},
		{"pipeline value", m.PipelineValue},
	}
	for _, t := range totals {
		if math.IsNaN(t.v) || math.IsInf(t.v, 0) {
			return fmt.Errorf("%s: %w", t.name, ErrOverflow)
		}
	}
	return nil
}

func utilization(used, issued float64) float64 {
	if issued <= 0 {
		return 0
	}
	pct := used / issued * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0
	}
	return pct
}
