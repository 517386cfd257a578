package portfolio

import (
	"fmt"
	"strings"

	"github.com/stupiduntilnot/kontempo/internal/record"
)

// ErrorPrefix starts the single diagnostic line returned by Summarize when
// the dataset cannot be summarized.
const ErrorPrefix = "Error summarizing data: "

// Options controls summary rendering.
type Options struct {
	Revenue RevenuePolicy
	// MaxBuyersPerBucket caps the buyers listed under each status; the
	// bucket header still carries the full count. Zero lists every buyer.
	MaxBuyersPerBucket int
}

// Summarize renders the portfolio summary of ds. It always returns a string:
// any fault while reading or rendering the dataset replaces the whole output
// with one ErrorPrefix line.
func Summarize(ds record.Dataset, opts Options) string {
	out, err := Render(ds, opts)
	if err != nil {
		return ErrorPrefix + err.Error()
	}
	return out
}

// Render renders the portfolio summary of ds, returning an error instead of
// a partial summary when a record is unreadable or rendering panics.
func Render(ds record.Dataset, opts Options) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = fmt.Errorf("%v", r)
		}
	}()
	if faultErr := ds.Err(); faultErr != nil {
		return "", faultErr
	}

	m := Aggregate(ds, opts.Revenue)
	if rangeErr := m.Check(); rangeErr != nil {
		return "", rangeErr
	}
	buckets := Classify(ds.Buyers)
	f := newFormatter()

	var sb strings.Builder
	sb.WriteString("RESUMEN DEL PROGRAMA DE CRÉDITO:\n\n")

	sb.WriteString("CLIENTES POR ESTATUS DE APROBACIÓN:\n")
	if len(buckets) == 0 {
		sb.WriteString("- Sin clientes registrados\n")
	}
	for _, b := range buckets {
		fmt.Fprintf(&sb, "%s (%s):\n", b.Label, f.count(len(b.Buyers)))
		listed := b.Buyers
		if opts.MaxBuyersPerBucket > 0 && len(listed) > opts.MaxBuyersPerBucket {
			listed = listed[:opts.MaxBuyersPerBucket]
		}
		for _, e := range listed {
			sb.WriteString("- " + e.Name)
			if e.Email != "" {
				sb.WriteString(" <" + e.Email + ">")
			}
			if e.CreditLimit > 0 {
				sb.WriteString(" | límite " + f.money(e.CreditLimit))
			}
			sb.WriteString("\n")
		}
		if rest := len(b.Buyers) - len(listed); rest > 0 {
			fmt.Fprintf(&sb, "- ... y %s más\n", f.count(rest))
		}
	}

	sb.WriteString("\nMÉTRICAS GENERALES:\n")
	fmt.Fprintf(&sb, "- Clientes con línea de crédito (límite > 0): %s\n", f.count(m.ActiveClients))
	fmt.Fprintf(&sb, "- Crédito total otorgado: %s\n", f.money(m.TotalCreditIssued))
	fmt.Fprintf(&sb, "- Crédito utilizado: %s (%s utilización)\n", f.money(m.TotalCreditUsed), f.percent(m.UtilizationPct))
	fmt.Fprintf(&sb, "- Crédito disponible: %s\n", f.money(m.CreditAvailable))

	sb.WriteString("\nPERFORMANCE FINANCIERA:\n")
	fmt.Fprintf(&sb, "- Ingresos totales (%s): %s\n", revenueLabel(m.Revenue), f.money(m.TotalRevenue))
	fmt.Fprintf(&sb, "- Total órdenes: %s\n", f.count(m.OrderCount))

	sb.WriteString("\nANÁLISIS DE RIESGO:\n")
	fmt.Fprintf(&sb, "- Órdenes vencidas: %s\n", f.count(m.OverdueOrders))
	fmt.Fprintf(&sb, "- Monto en riesgo: %s\n", f.money(m.TotalOverdue))

	sb.WriteString("\nPIPELINE DE VENTAS:\n")
	fmt.Fprintf(&sb, "- Links pendientes: %s\n", f.count(m.PipelineLinkCount))
	fmt.Fprintf(&sb, "- Valor del pipeline: %s\n", f.money(m.PipelineValue))

	return sb.String(), nil
}

func revenueLabel(p RevenuePolicy) string {
	if p == RevenueCompletedPayouts {
		return "solo payouts completados"
	}
	return "todos los payouts"
}
