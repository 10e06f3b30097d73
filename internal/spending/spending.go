// Package spending expands installment records into monthly payments and
// summarises spending per category.
package spending

import (
	"sort"
	"time"

	"carlog/internal/core"
)

// Payment is one monthly share of a record. A record with a single
// installment yields exactly one payment carrying the whole amount.
type Payment struct {
	Date     core.Date
	Category core.Category
	Amount   core.Money
	Index    int // 0-based installment number
	Of       int // total installments of the source record
	Source   core.Record
}

// Expand turns every record into Installments payments dated date+i months,
// at most core.MaxInstallments per record.
// Amounts are split in cents; the remainder goes to the first payments so
// the shares always add up to the record amount.
func Expand(records []core.Record) []Payment {
	var out []Payment
	for _, r := range records {
		c := min(max(r.Installments, 1), core.MaxInstallments)
		share, rem := r.Amount.Cents/int64(c), r.Amount.Cents%int64(c)
		for i := 0; i < c; i++ {
			cents := share
			if int64(i) < rem {
				cents++
			}
			out = append(out, Payment{
				Date:     r.Date.AddMonths(i),
				Category: r.Category,
				Amount:   core.Money{Cents: cents},
				Index:    i,
				Of:       c,
				Source:   r,
			})
		}
	}
	return out
}

// CategorySummary is the spending breakdown of one category.
type CategorySummary struct {
	Category  core.Category
	Total     core.Money    // sum of record amounts, all time
	ThisMonth core.Money    // payments due in the summary month
	Records   []core.Record // newest first
}

// Summary is the spending view for a given month.
type Summary struct {
	Year       int
	Month      time.Month
	Total      core.Money // all recorded amounts
	ThisMonth  core.Money // payments due in Year/Month
	Categories []CategorySummary
}

// Summarize builds the spending view for the month containing now.
// Categories follow the static table order; empty categories are omitted.
func Summarize(records []core.Record, now time.Time) Summary {
	month := core.DateOf(now)
	s := Summary{Year: month.Year(), Month: time.Month(month.Month())}

	byCat := make(map[core.Category]*CategorySummary)
	for _, r := range records {
		cs, ok := byCat[r.Category]
		if !ok {
			cs = &CategorySummary{Category: r.Category}
			byCat[r.Category] = cs
		}
		cs.Total = cs.Total.Add(r.Amount)
		cs.Records = append(cs.Records, r)
		s.Total = s.Total.Add(r.Amount)
	}

	for _, p := range Expand(records) {
		if !p.Date.SameMonth(month) {
			continue
		}
		s.ThisMonth = s.ThisMonth.Add(p.Amount)
		byCat[p.Category].ThisMonth = byCat[p.Category].ThisMonth.Add(p.Amount)
	}

	for _, c := range core.Categories() {
		cs, ok := byCat[c]
		if !ok {
			continue
		}
		sort.SliceStable(cs.Records, func(i, j int) bool {
			return cs.Records[i].Date.After(cs.Records[j].Date.Time)
		})
		s.Categories = append(s.Categories, *cs)
	}
	return s
}

// Month returns the total of payments due in the given month.
func Month(payments []Payment, year int, month time.Month) core.Money {
	var total core.Money
	target := core.NewDate(year, int(month), 1)
	for _, p := range payments {
		if p.Date.SameMonth(target) {
			total = total.Add(p.Amount)
		}
	}
	return total
}
