package portfolio

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stupiduntilnot/kontempo/internal/record"
)

func decodeDataset(t *testing.T, raw string) record.Dataset {
	t.Helper()
	var ds record.Dataset
	if err := json.Unmarshal([]byte(raw), &ds); err != nil {
		t.Fatal(err)
	}
	return ds
}

const exampleDataset = `{
	"buyers": [{
		"buyer_account": "buy_123",
		"display_name": "Test Client",
		"approval_status": "active",
		"credit": {"credit_limit": 100000, "credit_used": 50000}
	}],
	"orders": [{"buyer_account": "buy_123", "amount": 50000, "payment_status": "due"}],
	"payouts": [{"amount": 45000, "payout_date": 1234567890}],
	"payment_links": [{"cart_total": 25000, "expires": 1234567890}]
}`

func TestAggregate_WorkedExample(t *testing.T) {
	m := Aggregate(decodeDataset(t, exampleDataset), RevenueAllPayouts)

	if m.ActiveClients != 1 {
		t.Errorf("active_clients=%d want 1", m.ActiveClients)
	}
	if m.TotalCreditIssued != 100000 || m.TotalCreditUsed != 50000 {
		t.Errorf("issued=%v used=%v", m.TotalCreditIssued, m.TotalCreditUsed)
	}
	if m.UtilizationPct != 50.0 {
		t.Errorf("utilization=%v want 50", m.UtilizationPct)
	}
	if m.CreditAvailable != 50000 {
		t.Errorf("available=%v want 50000", m.CreditAvailable)
	}
	if m.OverdueOrders != 1 || m.TotalOverdue != 50000 {
		t.Errorf("overdue=%d total=%v", m.OverdueOrders, m.TotalOverdue)
	}
	if m.TotalRevenue != 45000 {
		t.Errorf("revenue=%v want 45000", m.TotalRevenue)
	}
	if m.OrderCount != 1 {
		t.Errorf("order_count=%d want 1", m.OrderCount)
	}
	if m.PipelineLinkCount != 1 || m.PipelineValue != 25000 {
		t.Errorf("pipeline count=%d value=%v", m.PipelineLinkCount, m.PipelineValue)
	}
}

func TestAggregate_EmptyDataset(t *testing.T) {
	m := Aggregate(record.Dataset{}, "")
	if m != (Metrics{Revenue: RevenueAllPayouts}) {
		t.Fatalf("expected zero metrics, got %+v", m)
	}
}

func TestAggregate_BuyerWithoutCreditIsNotActive(t *testing.T) {
	ds := decodeDataset(t, `{"buyers":[
		{"display_name":"No credit","approval_status":"active"},
		{"display_name":"Zero","credit":{"credit_limit":0,"credit_used":10}},
		{"display_name":"Funded","credit":{"credit_limit":500}}
	]}`)
	m := Aggregate(ds, RevenueAllPayouts)
	if m.ActiveClients != 1 {
		t.Fatalf("expected 1 active client, got %d", m.ActiveClients)
	}
	if m.TotalCreditUsed != 0 {
		t.Errorf("credit_used of non-active buyers must not count, got %v", m.TotalCreditUsed)
	}
	if m.UtilizationPct != 0 {
		t.Errorf("expected 0 utilization, got %v", m.UtilizationPct)
	}
}

func TestAggregate_OverdrawnCreditIsNotClamped(t *testing.T) {
	ds := decodeDataset(t, `{"buyers":[{"credit":{"credit_limit":100,"credit_used":150}}]}`)
	m := Aggregate(ds, RevenueAllPayouts)
	if m.CreditAvailable != -50 {
		t.Errorf("expected -50 available, got %v", m.CreditAvailable)
	}
	if m.UtilizationPct != 150 {
		t.Errorf("expected 150%% utilization, got %v", m.UtilizationPct)
	}
}

func TestAggregate_OrdersAndStatuses(t *testing.T) {
	ds := decodeDataset(t, `{"orders":[
		{"amount":100,"payment_status":"due"},
		{"amount":200,"payment_status":"completed_on_time"},
		{"amount":300,"payment_status":"completed_late"},
		{"amount":400,"payment_status":"pristine"},
		{"amount":"50","payment_status":"due","buyer_account":"orphan"}
	]}`)
	m := Aggregate(ds, RevenueAllPayouts)
	if m.OrderCount != 5 {
		t.Errorf("order_count=%d want 5", m.OrderCount)
	}
	if m.OverdueOrders != 2 || m.TotalOverdue != 150 {
		t.Errorf("overdue=%d total=%v", m.OverdueOrders, m.TotalOverdue)
	}
}

func TestAggregate_RevenuePolicy(t *testing.T) {
	ds := decodeDataset(t, `{"payouts":[
		{"amount":100,"status":"completed"},
		{"amount":200,"status":"pending"},
		{"amount":300,"status":"PAID"},
		{"amount":400}
	]}`)
	if got := Aggregate(ds, RevenueAllPayouts).TotalRevenue; got != 1000 {
		t.Errorf("all payouts revenue=%v want 1000", got)
	}
	if got := Aggregate(ds, RevenueCompletedPayouts).TotalRevenue; got != 400 {
		t.Errorf("completed payouts revenue=%v want 400", got)
	}
}

func TestParseRevenuePolicy(t *testing.T) {
	cases := []struct {
		in      string
		want    RevenuePolicy
		wantErr bool
	}{
		{"", RevenueAllPayouts, false},
		{"all", RevenueAllPayouts, false},
		{" Completed ", RevenueCompletedPayouts, false},
		{"settled", "", true},
	}
	for _, c := range cases {
		got, err := ParseRevenuePolicy(c.in)
		if (err != nil) != c.wantErr {
			t.Fatalf("in=%q err=%v wantErr=%v", c.in, err, c.wantErr)
		}
		if got != c.want {
			t.Errorf("in=%q got=%q want=%q", c.in, got, c.want)
		}
	}
}

func TestUtilization_NonFiniteGuard(t *testing.T) {
	if got := utilization(1e308, 1e-308); got != 0 {
		t.Errorf("expected 0 for overflowing quotient, got %v", got)
	}
	if got := utilization(10, 0); got != 0 {
		t.Errorf("expected 0 for zero issued, got %v", got)
	}
}

func TestMetrics_CheckFlagsOverflowingTotals(t *testing.T) {
	ds := decodeDataset(t, `{"buyers":[{"credit":{"credit_limit":1e308}},{"credit":{"credit_limit":1e308}}]}`)
	m := Aggregate(ds, RevenueAllPayouts)
	err := m.Check()
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if err.Error() != "credit issued: total exceeds numeric range" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if err := Aggregate(decodeDataset(t, exampleDataset), RevenueAllPayouts).Check(); err != nil {
		t.Errorf("expected finite totals, got %v", err)
	}
}
