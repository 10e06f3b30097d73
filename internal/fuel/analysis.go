package fuel

import "carlog/internal/core"

// Options configures an analysis pass.
type Options struct {
	Policy          Policy
	MonthlyDistance bool
}

// Analysis bundles everything derived from one record set.
type Analysis struct {
	Status       Status
	Segmentation Segmentation
	Trips        []Trip
	Summary      Summary
	Monthly      Rollup
	Notices      []string
}

// Analyze runs segmentation, per-trip metrics, the aggregate and the monthly
// rollup over records. Insufficient data is reported in Status and Notices.
func Analyze(records []core.Record, opts Options) Analysis {
	seg := Segment(records)
	trips := Trips(seg)
	a := Analysis{
		Status:       seg.Status,
		Segmentation: seg,
		Trips:        trips,
		Summary:      Aggregate(seg, trips, opts.Policy),
		Monthly:      Monthly(records, MonthlyOptions{IncludeDistance: opts.MonthlyDistance}),
	}
	if seg.Status != StatusOK {
		a.Notices = append(a.Notices, seg.Status.String())
	} else if len(trips) == 0 {
		a.Notices = append(a.Notices, "no trip with positive distance")
	}
	return a
}
