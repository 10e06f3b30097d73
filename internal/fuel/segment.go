// Package fuel reconstructs refuelling trips from fuel records and derives
// consumption and cost metrics per trip, in aggregate and per month.
//
// Every function in this package is pure: the same record set always yields
// the same result, and none of them return errors. Conditions such as too few
// records are reported through Status values.
package fuel

import (
	"sort"

	"carlog/internal/core"
)

// Status describes how far an analysis pass could get.
type Status int

const (
	StatusOK Status = iota
	// StatusInsufficientData means fewer than two fuel records exist.
	StatusInsufficientData
	// StatusInsufficientFull means fewer than two Full fills exist, so no
	// trip can be delimited. Raw totals are still meaningful.
	StatusInsufficientFull
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInsufficientData:
		return "insufficient data"
	case StatusInsufficientFull:
		return "insufficient Full-fill data"
	}
	return "unknown"
}

// Span is the inclusive record slice F[a..b] between two consecutive Full
// fills. Records[0] and Records[len-1] are both Full.
type Span struct {
	Start, End int // indices into Segmentation.Records
	Records    []core.Record
}

// Segmentation is the result of partitioning the fuel history into spans.
type Segmentation struct {
	Records []core.Record // fuel records sorted by odometer
	Full    []int         // indices of Full fills within Records
	Spans   []Span
	Status  Status
}

// FuelRecords filters records to the Fuel category and stable-sorts the
// result by odometer. The input slice is not modified.
func FuelRecords(records []core.Record) []core.Record {
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if r.IsFuel() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Odometer < out[j].Odometer
	})
	return out
}

// Segment splits the fuel records found in records into Full-to-Full spans.
func Segment(records []core.Record) Segmentation {
	seg := Segmentation{Records: FuelRecords(records)}
	if len(seg.Records) < 2 {
		seg.Status = StatusInsufficientData
		return seg
	}

	for i, r := range seg.Records {
		if r.Fill == core.FillFull {
			seg.Full = append(seg.Full, i)
		}
	}
	if len(seg.Full) < 2 {
		seg.Status = StatusInsufficientFull
		return seg
	}

	seg.Spans = make([]Span, 0, len(seg.Full)-1)
	for j := 0; j+1 < len(seg.Full); j++ {
		a, b := seg.Full[j], seg.Full[j+1]
		seg.Spans = append(seg.Spans, Span{
			Start:   a,
			End:     b,
			Records: seg.Records[a : b+1 : b+1],
		})
	}
	return seg
}
