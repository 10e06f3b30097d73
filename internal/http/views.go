package http

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"carlog/internal/core"
	"carlog/internal/fuel"
	"carlog/internal/spending"
)

// JSON views of the domain types. Amounts and volumes are decimal strings.

type recordView struct {
	ID           string          `json:"id"`
	Date         string          `json:"date"`
	Odometer     int64           `json:"odometer"`
	Category     string          `json:"category"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Installments int             `json:"installment_count"`
	Volume       decimal.Decimal `json:"volume"`
	Fill         string          `json:"fill_type,omitempty"`
}

func newRecordView(r core.Record) recordView {
	return recordView{
		ID:           r.ID.String(),
		Date:         r.Date.String(),
		Odometer:     r.Odometer,
		Category:     r.Category.String(),
		Amount:       r.Amount.Units(),
		Description:  r.Description,
		Installments: r.Installments,
		Volume:       r.Volume,
		Fill:         string(r.Fill),
	}
}

func newRecordViews(records []core.Record) []recordView {
	out := make([]recordView, len(records))
	for i, r := range records {
		out[i] = newRecordView(r)
	}
	return out
}

// toRecord converts an edited record back. A missing or malformed ID yields
// a new record.
func (v recordView) toRecord() (core.Record, error) {
	date, err := core.ParseDate(v.Date)
	if err != nil {
		return core.Record{}, fmt.Errorf("date %q: %w", v.Date, err)
	}
	cat, err := core.ParseCategory(v.Category)
	if err != nil {
		return core.Record{}, fmt.Errorf("category %q: %w", v.Category, err)
	}
	r := core.Record{
		Date:         date,
		Odometer:     v.Odometer,
		Category:     cat,
		Amount:       core.MoneyFromDecimal(v.Amount),
		Description:  strings.TrimSpace(v.Description),
		Installments: v.Installments,
		Volume:       v.Volume,
	}
	if v.Fill != "" {
		fill, err := core.ParseFill(v.Fill)
		if err != nil {
			return core.Record{}, fmt.Errorf("fill_type %q: %w", v.Fill, err)
		}
		r.Fill = fill
	}
	if id, err := uuid.Parse(v.ID); err == nil {
		r.ID = id
	}
	return r, nil
}

type tripView struct {
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date"`
	StartOdometer   int64           `json:"start_odometer"`
	EndOdometer     int64           `json:"end_odometer"`
	Distance        int64           `json:"distance"`
	ConsumedVolume  decimal.Decimal `json:"consumed_volume"`
	ConsumedCost    decimal.Decimal `json:"consumed_cost"`
	RatePer100      decimal.Decimal `json:"rate_per_100"`
	CostPerDistance decimal.Decimal `json:"cost_per_distance"`
	Records         int             `json:"records"`
}

type summaryView struct {
	Policy             string          `json:"policy"`
	Available          bool            `json:"available"`
	AvgRatePer100      decimal.Decimal `json:"avg_rate_per_100"`
	AvgCostPerDistance decimal.Decimal `json:"avg_cost_per_distance"`
	TotalDistance      int64           `json:"total_distance"`
	ConsumedVolume     decimal.Decimal `json:"consumed_volume"`
	ConsumedCost       decimal.Decimal `json:"consumed_cost"`
	TotalFuelSpend     decimal.Decimal `json:"total_fuel_spend"`
	TotalFuelVolume    decimal.Decimal `json:"total_fuel_volume"`
	FuelRecords        int             `json:"fuel_records"`
}

type monthView struct {
	Month           string           `json:"month"`
	Spend           decimal.Decimal  `json:"spend"`
	Volume          decimal.Decimal  `json:"volume"`
	Count           int              `json:"count"`
	Distance        *int64           `json:"distance,omitempty"`
	RatePer100      *decimal.Decimal `json:"rate_per_100,omitempty"`
	CostPerDistance *decimal.Decimal `json:"cost_per_distance,omitempty"`
}

type analysisView struct {
	Status  string      `json:"status"`
	Notices []string    `json:"notices"`
	Summary summaryView `json:"summary"`
	Trips   []tripView  `json:"trips"`
	Monthly []monthView `json:"monthly"`
}

// rates are rounded for display; the engine keeps full precision
const ratePlaces = 2

func newAnalysisView(a fuel.Analysis) analysisView {
	s := a.Summary
	v := analysisView{
		Status:  a.Status.String(),
		Notices: a.Notices,
		Summary: summaryView{
			Policy:             string(s.Policy),
			Available:          s.Available,
			AvgRatePer100:      s.AvgRatePer100.Round(ratePlaces),
			AvgCostPerDistance: s.AvgCostPerDistance.Round(ratePlaces),
			TotalDistance:      s.TotalDistance,
			ConsumedVolume:     s.ConsumedVolume,
			ConsumedCost:       s.ConsumedCost.Units(),
			TotalFuelSpend:     s.TotalFuelSpend.Units(),
			TotalFuelVolume:    s.TotalFuelVolume,
			FuelRecords:        s.FuelRecords,
		},
		Trips:   make([]tripView, 0, len(a.Trips)),
		Monthly: make([]monthView, 0, len(a.Monthly.Months)),
	}
	if v.Notices == nil {
		v.Notices = []string{}
	}
	for _, t := range a.Trips {
		v.Trips = append(v.Trips, tripView{
			StartDate:       t.StartDate.String(),
			EndDate:         t.EndDate.String(),
			StartOdometer:   t.StartOdometer,
			EndOdometer:     t.EndOdometer,
			Distance:        t.Distance,
			ConsumedVolume:  t.ConsumedVolume,
			ConsumedCost:    t.ConsumedCost.Units(),
			RatePer100:      t.RatePer100.Round(ratePlaces),
			CostPerDistance: t.CostPerDistance.Round(ratePlaces),
			Records:         t.Records,
		})
	}
	for _, m := range a.Monthly.Months {
		mv := monthView{
			Month:  m.Key(),
			Spend:  m.Spend.Units(),
			Volume: m.Volume,
			Count:  m.Count,
		}
		if m.HasDistance {
			dist := m.Distance
			rate := m.RatePer100.Round(ratePlaces)
			cpd := m.CostPerDistance.Round(ratePlaces)
			mv.Distance, mv.RatePer100, mv.CostPerDistance = &dist, &rate, &cpd
		}
		v.Monthly = append(v.Monthly, mv)
	}
	return v
}

type categorySpendView struct {
	Category  string          `json:"category"`
	Total     decimal.Decimal `json:"total"`
	ThisMonth decimal.Decimal `json:"this_month"`
	Records   []recordView    `json:"records"`
}

type spendingView struct {
	Month      string              `json:"month"`
	Total      decimal.Decimal     `json:"total"`
	ThisMonth  decimal.Decimal     `json:"this_month"`
	Categories []categorySpendView `json:"categories"`
}

func newSpendingView(s spending.Summary) spendingView {
	v := spendingView{
		Month:      fmt.Sprintf("%04d-%02d", s.Year, int(s.Month)),
		Total:      s.Total.Units(),
		ThisMonth:  s.ThisMonth.Units(),
		Categories: make([]categorySpendView, 0, len(s.Categories)),
	}
	for _, c := range s.Categories {
		v.Categories = append(v.Categories, categorySpendView{
			Category:  c.Category.String(),
			Total:     c.Total.Units(),
			ThisMonth: c.ThisMonth.Units(),
			Records:   newRecordViews(c.Records),
		})
	}
	return v
}
