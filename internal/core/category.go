package core

import "strings"

// Category identifies an expense kind. The zero value is not a category.
type Category int

const (
	Fuel Category = iota + 1
	Tolls
	Fines
	Repair
	Maintenance
	Inspection
	Tires
	Accessories
	Taxes
	Parking
	CarWash
	Insurance
)

// CategoryRules describes which entry fields a category needs.
type CategoryRules struct {
	Name                string
	Legacy              string
	OdometerRequired    bool
	VolumeRequired      bool
	FillRequired        bool
	DescriptionRequired bool
	AllowsInstallments  bool
}

// categoryTable is ordered the way categories are listed in reports.
var categoryTable = []struct {
	Category
	CategoryRules
}{
	{Fuel, CategoryRules{Name: "Fuel", Legacy: "Yakıt", OdometerRequired: true, VolumeRequired: true, FillRequired: true}},
	{Tolls, CategoryRules{Name: "Tolls", Legacy: "Köprü Otoyol", DescriptionRequired: true, AllowsInstallments: true}},
	{Fines, CategoryRules{Name: "Fines", Legacy: "Trafik Cezaları", DescriptionRequired: true, AllowsInstallments: true}},
	{Repair, CategoryRules{Name: "Repair", Legacy: "Tamir-Servis", OdometerRequired: true, DescriptionRequired: true, AllowsInstallments: true}},
	{Maintenance, CategoryRules{Name: "Maintenance", Legacy: "Periyodik Bakım", OdometerRequired: true, DescriptionRequired: true, AllowsInstallments: true}},
	{Inspection, CategoryRules{Name: "Inspection", Legacy: "Muayene", OdometerRequired: true, DescriptionRequired: true, AllowsInstallments: true}},
	{Tires, CategoryRules{Name: "Tires", Legacy: "Lastik", OdometerRequired: true, DescriptionRequired: true, AllowsInstallments: true}},
	{Accessories, CategoryRules{Name: "Accessories", Legacy: "Aksesuar", DescriptionRequired: true, AllowsInstallments: true}},
	{Taxes, CategoryRules{Name: "Taxes", Legacy: "Vergiler", DescriptionRequired: true, AllowsInstallments: true}},
	{Parking, CategoryRules{Name: "Parking", Legacy: "Otopark", DescriptionRequired: true, AllowsInstallments: true}},
	{CarWash, CategoryRules{Name: "CarWash", Legacy: "Araç Yıkama", DescriptionRequired: true, AllowsInstallments: true}},
	{Insurance, CategoryRules{Name: "Insurance", Legacy: "Sigorta", DescriptionRequired: true, AllowsInstallments: true}},
}

// Categories returns every category in report order.
func Categories() []Category {
	out := make([]Category, len(categoryTable))
	for i, row := range categoryTable {
		out[i] = row.Category
	}
	return out
}

// Rules returns the field requirements of c. Unknown categories get the
// zero value.
func (c Category) Rules() CategoryRules {
	for _, row := range categoryTable {
		if row.Category == c {
			return row.CategoryRules
		}
	}
	return CategoryRules{}
}

func (c Category) IsValid() bool {
	return c.Rules().Name != ""
}

func (c Category) String() string {
	return c.Rules().Name
}

// Label returns the name written to storage for the given dialect.
func (c Category) Label(legacy bool) string {
	if legacy {
		return c.Rules().Legacy
	}
	return c.Rules().Name
}

// ParseCategory accepts a canonical or legacy label, case-insensitively.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, row := range categoryTable {
		if strings.EqualFold(s, row.Name) || strings.EqualFold(s, row.Legacy) {
			return row.Category, nil
		}
	}
	return 0, ErrUnknownCategory
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.IsValid() {
		return nil, ErrUnknownCategory
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
