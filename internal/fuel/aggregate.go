package fuel

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"carlog/internal/core"
)

// Policy selects how average consumption is computed.
type Policy string

const (
	// PolicyTripsOnly averages over completed Full-to-Full trips only. Fuel
	// bought after the last Full fill does not enter the averages.
	PolicyTripsOnly Policy = "trips-only"
	// PolicyAllRecords treats the whole fuel history as one long trip from
	// the first record to the last.
	PolicyAllRecords Policy = "all-records"
)

// ParsePolicy maps a configuration value to a Policy. Empty selects the
// trips-only default.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyTripsOnly:
		return PolicyTripsOnly, nil
	case PolicyAllRecords:
		return PolicyAllRecords, nil
	}
	return "", fmt.Errorf("unknown fuel aggregate policy %q", s)
}

// Summary is the aggregate result of one analysis pass.
type Summary struct {
	Policy    Policy
	Available bool // false when no average can be computed under Policy

	AvgRatePer100      decimal.Decimal
	AvgCostPerDistance decimal.Decimal
	TotalDistance      int64
	ConsumedVolume     decimal.Decimal
	ConsumedCost       core.Money

	// Raw totals over every fuel record, reported regardless of policy.
	TotalFuelSpend  core.Money
	TotalFuelVolume decimal.Decimal
	FuelRecords     int
}

// Aggregate computes averages for seg under policy. trips must be the
// output of Trips(seg).
func Aggregate(seg Segmentation, trips []Trip, policy Policy) Summary {
	s := Summary{
		Policy:             policy,
		AvgRatePer100:      decimal.Zero,
		AvgCostPerDistance: decimal.Zero,
		ConsumedVolume:     decimal.Zero,
		TotalFuelVolume:    decimal.Zero,
		FuelRecords:        len(seg.Records),
	}
	for _, r := range seg.Records {
		s.TotalFuelSpend = s.TotalFuelSpend.Add(r.Amount)
		s.TotalFuelVolume = s.TotalFuelVolume.Add(r.Volume)
	}

	switch policy {
	case PolicyAllRecords:
		if len(seg.Records) < 2 {
			return s
		}
		first, last := seg.Records[0], seg.Records[len(seg.Records)-1]
		s.TotalDistance = last.Odometer - first.Odometer
		for _, r := range seg.Records[1:] {
			s.ConsumedVolume = s.ConsumedVolume.Add(r.Volume)
			s.ConsumedCost = s.ConsumedCost.Add(r.Amount)
		}
		if s.TotalDistance <= 0 || !s.ConsumedVolume.IsPositive() {
			return s
		}
	default:
		s.Policy = PolicyTripsOnly
		for _, t := range trips {
			s.TotalDistance += t.Distance
			s.ConsumedVolume = s.ConsumedVolume.Add(t.ConsumedVolume)
			s.ConsumedCost = s.ConsumedCost.Add(t.ConsumedCost)
		}
		if s.TotalDistance <= 0 {
			return s
		}
	}

	d := decimal.NewFromInt(s.TotalDistance)
	s.Available = true
	s.AvgRatePer100 = s.ConsumedVolume.Div(d).Mul(hundred)
	s.AvgCostPerDistance = s.ConsumedCost.Units().Div(d)
	return s
}
