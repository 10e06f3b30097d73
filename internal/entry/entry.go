// Package entry validates form submissions and turns them into records.
//
// Structural checks run through go-playground/validator struct tags; the
// category-specific rules come from the static table in core.
package entry

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"carlog/internal/core"
)

const defaultFuelDescription = "Fuel purchase"

var (
	// ErrInvalid is wrapped by every validation failure returned by Build.
	ErrInvalid = errors.New("invalid entry")

	ErrZeroAmount          = errors.New("amount must be greater than zero")
	ErrOdometerRequired    = errors.New("odometer reading is required for this category")
	ErrDescriptionRequired = errors.New("description is required for this category")
	ErrVolumeRequired      = errors.New("fuel volume must be greater than zero")
	ErrFillRequired        = errors.New("fill type is required for fuel")
	ErrInstallments        = errors.New("installments are not allowed for this category")
	ErrOdometerRegression  = errors.New("odometer is lower than the latest recorded reading")
)

// Form is one submission of the entry form. Numeric fields arrive as text
// so decimal commas are accepted.
type Form struct {
	Date         string `json:"date" form:"date" validate:"required"`
	Category     string `json:"category" form:"category" validate:"required,category"`
	Odometer     int64  `json:"odometer" form:"odometer" validate:"gte=0"`
	Amount       string `json:"amount" form:"amount" validate:"required"`
	Description  string `json:"description" form:"description" validate:"max=200"`
	Installments int    `json:"installment_count" form:"installment_count" validate:"gte=0,lte=120"`
	Volume       string `json:"volume" form:"volume"`
	Fill         string `json:"fill_type" form:"fill_type" validate:"omitempty,fill"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, err := core.ParseCategory(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("fill", func(fl validator.FieldLevel) bool {
		_, err := core.ParseFill(fl.Field().String())
		return err == nil
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldErrors maps form field names to human readable messages.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, name := range []string{"date", "category", "odometer", "amount", "description", "installment_count", "volume", "fill_type"} {
		if msg, ok := fe[name]; ok {
			parts = append(parts, name+" "+msg)
		}
	}
	return "invalid entry: " + strings.Join(parts, "; ")
}

func (fe FieldErrors) Is(target error) bool { return target == ErrInvalid }

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "category":
		return "must be a known category"
	case "fill":
		return "must be Full or Partial"
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	}
	return "is invalid"
}

// Check runs the struct-tag validation only.
func (f Form) Check() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = formatFieldError(fe)
	}
	return out
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalid, err)
}

// Build validates f against the category rules and the existing record set
// and returns a normalized record with a fresh ID.
func Build(f Form, existing []core.Record) (core.Record, error) {
	if err := f.Check(); err != nil {
		return core.Record{}, err
	}

	cat, _ := core.ParseCategory(f.Category)
	rules := cat.Rules()

	date, err := core.ParseDate(f.Date)
	if err != nil {
		return core.Record{}, FieldErrors{"date": "must be a valid date"}
	}
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return core.Record{}, FieldErrors{"amount": "must be a non-negative decimal"}
	}
	if amount.IsZero() {
		return core.Record{}, invalid(ErrZeroAmount)
	}

	desc := strings.TrimSpace(f.Description)
	if desc == "" {
		if rules.DescriptionRequired {
			return core.Record{}, invalid(ErrDescriptionRequired)
		}
		if cat == core.Fuel {
			desc = defaultFuelDescription
		}
	}

	latest := core.MaxOdometer(existing)
	odo := f.Odometer
	if odo == 0 {
		if rules.OdometerRequired {
			return core.Record{}, invalid(ErrOdometerRequired)
		}
		odo = latest
	}
	if odo < latest {
		return core.Record{}, invalid(fmt.Errorf("%w (%d < %d)", ErrOdometerRegression, odo, latest))
	}

	if f.Installments > 1 && !rules.AllowsInstallments {
		return core.Record{}, invalid(ErrInstallments)
	}

	r := core.Record{
		Date:         date,
		Odometer:     odo,
		Category:     cat,
		Amount:       amount,
		Description:  desc,
		Installments: f.Installments,
		Volume:       decimal.Zero,
	}

	if rules.VolumeRequired {
		vol, err := parseVolume(f.Volume)
		if err != nil || !vol.IsPositive() {
			return core.Record{}, invalid(ErrVolumeRequired)
		}
		r.Volume = vol
	}
	if rules.FillRequired {
		fill, _ := core.ParseFill(f.Fill)
		if fill == "" {
			return core.Record{}, invalid(ErrFillRequired)
		}
		r.Fill = fill
	}

	r = r.Normalize()
	if err := r.Validate(); err != nil {
		return core.Record{}, invalid(err)
	}
	return r, nil
}

func parseVolume(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
