package http

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"finmgr/internal/core"
)

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// formatMoney renders an amount with thousands separators, e.g. "-1,234.50".
func formatMoney(d decimal.Decimal) string {
	s := core.FormatAmount(d)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// templateFuncs is shared by every page.
var templateFuncs = template.FuncMap{
	"money": formatMoney,
	// amount is the plain form for input values, without separators.
	"amount": core.FormatAmount,
	"add":   func(a, b int) int { return a + b },
	"budgetClass": func(s core.BudgetStatus) string {
		switch s {
		case core.BudgetOver:
			return "badge-danger"
		case core.BudgetWarning:
			return "badge-warning"
		default:
			return "badge-ok"
		}
	},
	"txClass": func(t core.TransactionType) string {
		if t == core.Income {
			return "amount-in"
		}
		return "amount-out"
	},
}
