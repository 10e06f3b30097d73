package core

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxInstallments bounds the number of monthly payments of one record.
const MaxInstallments = 120

const (
	FillFull    FillType = "Full"
	FillPartial FillType = "Partial"

	// Legacy fill labels written by the first spreadsheet revision.
	legacyFillFull    = "Full Dolum"
	legacyFillPartial = "Kısmi Dolum"
)

type (
	FillType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Record is one logged vehicle transaction.
	Record struct {
		ID           uuid.UUID // ephemeral, assigned in memory, never persisted
		Date         Date
		Odometer     int64
		Category     Category
		Amount       Money
		Description  string
		Installments int
		Volume       decimal.Decimal // fuel only
		Fill         FillType        // fuel only
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyDescription   = errors.New("empty description")
	ErrUnknownCategory    = errors.New("unknown category")
	ErrNegativeOdometer   = errors.New("odometer cannot be negative")
	ErrNegativeVolume     = errors.New("volume cannot be negative")
	ErrInvalidFill        = errors.New("invalid fill type")
	ErrInvalidInstallment = errors.New("installment count must be between 1 and 120")
)

// dateLayouts lists the formats accepted when a date arrives as text.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2006/01/02",
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts the layouts in dateLayouts and drops any time of day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, ErrInvalidDate
}

// AddMonths moves the date by n calendar months, clamping the day to the
// last day of the target month (Jan 31 + 1 month = Feb 28/29).
func (d Date) AddMonths(n int) Date {
	y, m, day := d.Year(), d.Month()-1+n, d.Day()
	y += m / 12
	m %= 12
	if m < 0 {
		m += 12
		y--
	}
	last := NewDate(y, m+2, 0).Day()
	if day > last {
		day = last
	}
	return NewDate(y, m+1, day)
}

// SameMonth reports whether both dates fall in the same calendar month.
func (d Date) SameMonth(o Date) bool {
	return d.Year() == o.Year() && d.Month() == o.Month()
}

// ParseFill maps a fill label (canonical or legacy) to a FillType.
func ParseFill(s string) (FillType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", strings.ToLower(legacyFillFull):
		return FillFull, nil
	case "partial", strings.ToLower(legacyFillPartial), "kismi dolum":
		return FillPartial, nil
	case "":
		return "", nil
	}
	return "", ErrInvalidFill
}

// Label returns the fill label written for the given dialect.
func (f FillType) Label(legacy bool) string {
	if !legacy {
		return string(f)
	}
	switch f {
	case FillFull:
		return legacyFillFull
	case FillPartial:
		return legacyFillPartial
	}
	return ""
}

// IsFuel reports whether the record is a fuel purchase.
func (r Record) IsFuel() bool {
	return r.Category == Fuel
}

// Normalize applies the storage-level coercions: installment counts below 1
// become 1, fuel records always carry a single installment and non-fuel
// records drop volume and fill type.
func (r Record) Normalize() Record {
	if r.Installments < 1 {
		r.Installments = 1
	}
	if r.IsFuel() {
		r.Installments = 1
	} else {
		r.Volume = decimal.Zero
		r.Fill = ""
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return r
}

func (r Record) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if !r.Category.IsValid() {
		return ErrUnknownCategory
	}
	if r.Odometer < 0 {
		return ErrNegativeOdometer
	}
	if r.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if r.Installments < 1 || r.Installments > MaxInstallments {
		return ErrInvalidInstallment
	}
	if r.Volume.IsNegative() {
		return ErrNegativeVolume
	}
	if r.IsFuel() && r.Fill != FillFull && r.Fill != FillPartial {
		return ErrInvalidFill
	}
	if len(r.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

// SortForStorage orders records by (date, odometer) ascending, keeping the
// relative order of ties.
func SortForStorage(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.Before(b.Date.Time)
		}
		return a.Odometer < b.Odometer
	})
}

// MaxOdometer returns the highest odometer reading in records, 0 if empty.
func MaxOdometer(records []Record) int64 {
	var max int64
	for _, r := range records {
		if r.Odometer > max {
			max = r.Odometer
		}
	}
	return max
}

// Clone returns a copy of the slice so callers can mutate it freely.
func Clone(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out
}
