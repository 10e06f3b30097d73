package http

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"carlog/internal/core"
)

// formatMoney renders an amount for the dashboard ("1.234,50").
func formatMoney(m core.Money) string {
	return groupThousands(m.FormatDecimalComma())
}

// formatDecimal renders a quantity with places decimals and a decimal comma.
func formatDecimal(d decimal.Decimal, places int32) string {
	return strings.Replace(d.StringFixed(places), ".", ",", 1)
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ",")
	if len(intPart) <= 3 {
		return sign + s
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + "," + frac
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": formatMoney,
		"dec":   formatDecimal,
		"date":  func(d core.Date) string { return d.String() },
	}
}

// wantsHTML reports whether the caller is a browser form or an HTMX request
// rather than an API client.
func wantsHTML(r *http.Request) bool {
	if isHTMX(r) {
		return true
	}
	return !isJSON(r) && strings.Contains(r.Header.Get("Accept"), "text/html")
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
