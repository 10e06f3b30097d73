package fuel

import (
	"github.com/shopspring/decimal"

	"carlog/internal/core"
)

var hundred = decimal.NewFromInt(100)

// Trip holds the metrics of one valid span.
type Trip struct {
	StartDate       core.Date
	EndDate         core.Date
	StartOdometer   int64
	EndOdometer     int64
	Distance        int64
	ConsumedVolume  decimal.Decimal
	ConsumedCost    core.Money
	RatePer100      decimal.Decimal // volume per 100 distance units
	CostPerDistance decimal.Decimal // currency units per distance unit
	Records         int             // number of records in the span, endpoints included
}

// TripMetrics computes the metrics of a span. The first record is the
// starting tank and does not count as consumption. ok is false when the
// distance is not positive, in which case the span is excluded.
func TripMetrics(span Span) (Trip, bool) {
	if len(span.Records) < 2 {
		return Trip{}, false
	}
	first, last := span.Records[0], span.Records[len(span.Records)-1]
	dist := last.Odometer - first.Odometer
	if dist <= 0 {
		return Trip{}, false
	}

	var (
		vol  = decimal.Zero
		cost core.Money
	)
	for _, r := range span.Records[1:] {
		vol = vol.Add(r.Volume)
		cost = cost.Add(r.Amount)
	}

	d := decimal.NewFromInt(dist)
	return Trip{
		StartDate:       first.Date,
		EndDate:         last.Date,
		StartOdometer:   first.Odometer,
		EndOdometer:     last.Odometer,
		Distance:        dist,
		ConsumedVolume:  vol,
		ConsumedCost:    cost,
		RatePer100:      vol.Div(d).Mul(hundred),
		CostPerDistance: cost.Units().Div(d),
		Records:         len(span.Records),
	}, true
}

// Trips computes metrics for every span of seg, dropping degenerate ones.
// The result is in ascending odometer order.
func Trips(seg Segmentation) []Trip {
	out := make([]Trip, 0, len(seg.Spans))
	for _, span := range seg.Spans {
		if t, ok := TripMetrics(span); ok {
			out = append(out, t)
		}
	}
	return out
}
