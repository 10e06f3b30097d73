package fuel

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"carlog/internal/core"
)

// MonthlyOptions tunes the monthly rollup.
type MonthlyOptions struct {
	// IncludeDistance adds max-min odometer per month and the derived rates.
	// Trips that cross a month boundary attribute their distance to the
	// months holding their endpoints, so the figure is approximate.
	IncludeDistance bool
}

// MonthSummary aggregates the fuel records of one calendar month.
type MonthSummary struct {
	Year   int
	Month  time.Month
	Spend  core.Money
	Volume decimal.Decimal
	Count  int

	HasDistance     bool
	Distance        int64
	RatePer100      decimal.Decimal
	CostPerDistance decimal.Decimal

	minOdo, maxOdo int64
}

// Key returns the month as "2006-01".
func (m MonthSummary) Key() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// Rollup lists months with at least one fuel record, newest first.
type Rollup struct {
	Months []MonthSummary
}

// Month returns the summary for the given month, or a zero summary when no
// fuel record falls in it.
func (r Rollup) Month(year int, month time.Month) MonthSummary {
	for _, m := range r.Months {
		if m.Year == year && m.Month == month {
			return m
		}
	}
	return MonthSummary{Year: year, Month: month, Volume: decimal.Zero}
}

// Monthly partitions the fuel records found in records by calendar month.
func Monthly(records []core.Record, opts MonthlyOptions) Rollup {
	byMonth := make(map[[2]int]*MonthSummary)
	for _, r := range records {
		if !r.IsFuel() {
			continue
		}
		key := [2]int{r.Date.Year(), r.Date.Month()}
		m, ok := byMonth[key]
		if !ok {
			m = &MonthSummary{
				Year:   key[0],
				Month:  time.Month(key[1]),
				Volume: decimal.Zero,
				minOdo: r.Odometer,
				maxOdo: r.Odometer,
			}
			byMonth[key] = m
		}
		m.Spend = m.Spend.Add(r.Amount)
		m.Volume = m.Volume.Add(r.Volume)
		m.Count++
		m.minOdo = min(m.minOdo, r.Odometer)
		m.maxOdo = max(m.maxOdo, r.Odometer)
	}

	out := Rollup{Months: make([]MonthSummary, 0, len(byMonth))}
	for _, m := range byMonth {
		if opts.IncludeDistance {
			m.HasDistance = true
			m.Distance = m.maxOdo - m.minOdo
			m.RatePer100 = decimal.Zero
			m.CostPerDistance = decimal.Zero
			if m.Distance > 0 {
				d := decimal.NewFromInt(m.Distance)
				m.RatePer100 = m.Volume.Div(d).Mul(hundred)
				m.CostPerDistance = m.Spend.Units().Div(d)
			}
		}
		out.Months = append(out.Months, *m)
	}
	sort.Slice(out.Months, func(i, j int) bool {
		a, b := out.Months[i], out.Months[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		return a.Month > b.Month
	})
	return out
}
