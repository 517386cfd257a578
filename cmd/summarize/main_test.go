package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stupiduntilnot/kontempo/internal/portfolio"
)

func TestRun_PrintsSummary(t *testing.T) {
	in := strings.NewReader(`{
		"buyers": [{"display_name": "Ferretería Luna", "approval_status": "active",
		            "credit": {"credit_limit": 20000, "credit_used": 5000}}],
		"payouts": [{"amount": 1000, "status": "paid"}, {"amount": 500, "status": "pending"}]
	}`)
	var out bytes.Buffer
	if err := run(in, &out, portfolio.RevenueCompletedPayouts); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{
		"RESUMEN DEL PROGRAMA DE CRÉDITO:",
		"- Ferretería Luna | límite $20,000.00",
		"- Crédito utilizado: $5,000.00 (25.0% utilización)",
		"- Ingresos totales (solo payouts completados): $1,000.00",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}
}

func TestRun_BadRecordsBecomeDiagnostic(t *testing.T) {
	var out bytes.Buffer
	if err := run(strings.NewReader(`{"orders": [7]}`), &out, portfolio.RevenueAllPayouts); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), portfolio.ErrorPrefix+"orders[0]: ") {
		t.Fatalf("expected diagnostic, got %q", out.String())
	}
}

func TestRun_NonObjectDatasetIsDiagnostic(t *testing.T) {
	var out bytes.Buffer
	if err := run(strings.NewReader(`[1,2]`), &out, portfolio.RevenueAllPayouts); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), portfolio.ErrorPrefix+"context: ") {
		t.Fatalf("expected diagnostic, got %q", out.String())
	}
}

func TestRun_InvalidJSON(t *testing.T) {
	var out bytes.Buffer
	if err := run(strings.NewReader(`{"buyers": [`), &out, portfolio.RevenueAllPayouts); err == nil {
		t.Fatal("expected decode error")
	}
}
