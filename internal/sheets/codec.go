package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"carlog/internal/core"
)

// Dialect selects the header and label language of a worksheet.
type Dialect int

const (
	DialectCanonical Dialect = iota
	// DialectLegacy is the Turkish header and labels of the first
	// spreadsheet revision.
	DialectLegacy
)

func (d Dialect) String() string {
	if d == DialectLegacy {
		return "legacy"
	}
	return "canonical"
}

// Header returns the column names written for d.
func (d Dialect) Header() []string {
	if d == DialectLegacy {
		return slices.Clone(LegacyHeader)
	}
	return slices.Clone(CanonicalHeader)
}

var (
	CanonicalHeader = []string{"date", "odometer", "category", "amount", "description", "installment_count", "volume", "fill_type"}
	LegacyHeader    = []string{"Tarih", "KM Sayacı", "Masraf Türü", "Tutar", "Açıklama", "Taksit Sayısı", "Litre", "Dolum Türü"}
)

const (
	colDate = iota
	colOdometer
	colCategory
	colAmount
	colDescription
	colInstallments
	colVolume
	colFill
)

// IssueKind classifies a coercion applied while decoding.
type IssueKind string

const (
	IssueHeaderMismatch  IssueKind = "header_mismatch"
	IssueBadDate         IssueKind = "bad_date"
	IssueUnknownCategory IssueKind = "unknown_category"
	IssueBadNumber       IssueKind = "bad_number"
	IssueBadFill         IssueKind = "bad_fill"
)

// Issue describes one coercion. Row is the 1-based sheet row (header = 1).
type Issue struct {
	Row    int
	Column string
	Kind   IssueKind
	Value  string
	// Dropped is true when the row was discarded rather than coerced.
	Dropped bool
}

func (i Issue) String() string {
	action := "coerced to zero"
	switch {
	case i.Kind == IssueHeaderMismatch:
		action = "sheet ignored"
	case i.Kind == IssueBadFill:
		action = "fill cleared"
	case i.Dropped:
		action = "row dropped"
	}
	return fmt.Sprintf("row %d %s %q: %s, %s", i.Row, i.Column, i.Value, i.Kind, action)
}

// DecodeReport summarises what DecodeRows did to the input.
type DecodeReport struct {
	Dialect Dialect
	Rows    int // data rows seen
	Decoded int
	Dropped int
	Issues  []Issue
}

// HeaderMismatch reports whether the sheet was ignored because of its header.
func (r DecodeReport) HeaderMismatch() bool {
	return len(r.Issues) > 0 && r.Issues[0].Kind == IssueHeaderMismatch
}

// Count returns the number of issues of kind k.
func (r DecodeReport) Count(k IssueKind) int {
	n := 0
	for _, i := range r.Issues {
		if i.Kind == k {
			n++
		}
	}
	return n
}

// Log writes one warning per issue.
func (r DecodeReport) Log(ctx context.Context, logger *slog.Logger) {
	for _, i := range r.Issues {
		logger.WarnContext(ctx, "Sheet value coerced",
			"row", i.Row,
			"column", i.Column,
			"kind", string(i.Kind),
			"value", i.Value,
			"dropped", i.Dropped)
	}
}

var maxInstallments = decimal.NewFromInt(core.MaxInstallments)

// DecodeRows converts a values matrix (header row first) into records.
// Unparseable numbers become zero, rows with a bad date or unknown category
// are dropped, and a header that matches neither dialect yields no records.
// Every coercion is recorded in the report.
func DecodeRows(values [][]any) ([]core.Record, DecodeReport) {
	var rep DecodeReport
	if len(values) < 2 {
		return nil, rep
	}

	header := cellStrings(values[0])
	switch {
	case slices.Equal(header, CanonicalHeader):
		rep.Dialect = DialectCanonical
	case slices.Equal(header, LegacyHeader):
		rep.Dialect = DialectLegacy
	default:
		rep.Issues = append(rep.Issues, Issue{
			Row:     1,
			Column:  "header",
			Kind:    IssueHeaderMismatch,
			Value:   strings.Join(header, ","),
			Dropped: true,
		})
		rep.Rows = len(values) - 1
		rep.Dropped = rep.Rows
		return nil, rep
	}
	names := rep.Dialect.Header()

	out := make([]core.Record, 0, len(values)-1)
	for i, raw := range values[1:] {
		row := i + 2
		if isBlank(raw) {
			continue
		}
		rep.Rows++
		cell := func(c int) any {
			if c < len(raw) {
				return raw[c]
			}
			return nil
		}
		issue := func(c int, kind IssueKind, dropped bool) {
			rep.Issues = append(rep.Issues, Issue{
				Row:     row,
				Column:  names[c],
				Kind:    kind,
				Value:   cellString(cell(c)),
				Dropped: dropped,
			})
		}

		date, err := decodeDate(cell(colDate))
		if err != nil {
			issue(colDate, IssueBadDate, true)
			rep.Dropped++
			continue
		}
		cat, err := core.ParseCategory(cellString(cell(colCategory)))
		if err != nil {
			issue(colCategory, IssueUnknownCategory, true)
			rep.Dropped++
			continue
		}

		num := func(c int) decimal.Decimal {
			v, ok := decodeNumber(cell(c))
			if !ok || v.IsNegative() {
				issue(c, IssueBadNumber, false)
				return decimal.Zero
			}
			return v
		}
		odo := num(colOdometer)
		amount := num(colAmount)
		inst := num(colInstallments)
		if inst.GreaterThan(maxInstallments) {
			issue(colInstallments, IssueBadNumber, false)
			inst = maxInstallments
		}
		vol := num(colVolume)

		fill, err := core.ParseFill(cellString(cell(colFill)))
		if err != nil {
			issue(colFill, IssueBadFill, false)
			fill = ""
		}

		r := core.Record{
			Date:         date,
			Odometer:     odo.IntPart(),
			Category:     cat,
			Amount:       core.MoneyFromDecimal(amount),
			Description:  strings.TrimSpace(cellString(cell(colDescription))),
			Installments: int(inst.IntPart()),
			Volume:       vol,
			Fill:         fill,
		}
		out = append(out, r.Normalize())
		rep.Decoded++
	}
	return out, rep
}

// EncodeRows renders records for a full-sheet write: header first, then
// rows in storage order. Amounts and volumes use two decimals and a decimal
// comma.
func EncodeRows(records []core.Record, d Dialect) [][]any {
	sorted := core.Clone(records)
	core.SortForStorage(sorted)

	legacy := d == DialectLegacy
	header := d.Header()
	out := make([][]any, 0, len(sorted)+1)
	hrow := make([]any, len(header))
	for i, h := range header {
		hrow[i] = h
	}
	out = append(out, hrow)

	for _, r := range sorted {
		out = append(out, []any{
			r.Date.String(),
			strconv.FormatInt(r.Odometer, 10),
			r.Category.Label(legacy),
			r.Amount.FormatDecimalComma(),
			r.Description,
			strconv.Itoa(max(r.Installments, 1)),
			core.FormatDecimalComma(r.Volume),
			r.Fill.Label(legacy),
		})
	}
	return out
}

func decodeDate(v any) (core.Date, error) {
	switch t := v.(type) {
	case float64:
		// serial day number when dates come back unformatted
		return serialDate(t), nil
	case string:
		return core.ParseDate(t)
	}
	return core.Date{}, core.ErrInvalidDate
}

// serialDate converts a spreadsheet serial day (days since 1899-12-30).
func serialDate(days float64) core.Date {
	base := core.NewDate(1899, 12, 30)
	return core.DateOf(base.AddDate(0, 0, int(math.Floor(days))))
}

// decodeNumber accepts numeric cells as-is and parses text in the
// decimal-comma locale: '.' thousands separators are stripped and ','
// becomes the decimal point. Empty cells are zero without an issue.
func decodeNumber(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Zero, true
		}
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func cellStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = cellString(v)
	}
	// trailing empty cells are not part of the header
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func isBlank(row []any) bool {
	for _, v := range row {
		if cellString(v) != "" {
			return false
		}
	}
	return true
}
