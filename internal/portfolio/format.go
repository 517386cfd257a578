package portfolio

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// formatter renders figures with two decimals and thousands separators.
type formatter struct {
	p *message.Printer
}

func newFormatter() formatter {
	return formatter{p: message.NewPrinter(language.English)}
}

func (f formatter) money(v float64) string {
	if math.Abs(v) < 0.005 {
		v = 0
	}
	if v < 0 {
		return "-$" + f.p.Sprintf("%.2f", -v)
	}
	return "$" + f.p.Sprintf("%.2f", v)
}

func (f formatter) percent(v float64) string {
	if math.Abs(v) < 0.05 {
		v = 0
	}
	return f.p.Sprintf("%.1f", v) + "%"
}

func (f formatter) count(n int) string {
	return f.p.Sprintf("%d", n)
}
