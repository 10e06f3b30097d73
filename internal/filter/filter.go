// Package filter selects record subsets for the editor and merges edited
// subsets back into the full set.
package filter

import (
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"

	"carlog/internal/core"
)

// Criteria selects records. Zero-valued fields match everything.
type Criteria struct {
	Categories  []core.Category
	From, To    core.Date // inclusive bounds
	Description string    // case-insensitive substring
}

// Match reports whether r satisfies every criterion.
func (c Criteria) Match(r core.Record) bool {
	if len(c.Categories) > 0 && !slices.Contains(c.Categories, r.Category) {
		return false
	}
	if !c.From.IsZero() && r.Date.Before(c.From.Time) {
		return false
	}
	if !c.To.IsZero() && r.Date.After(c.To.Time) {
		return false
	}
	if q := strings.TrimSpace(c.Description); q != "" &&
		!strings.Contains(strings.ToLower(r.Description), strings.ToLower(q)) {
		return false
	}
	return true
}

// Apply returns the records matching c, preserving order.
func (c Criteria) Apply(records []core.Record) []core.Record {
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if c.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

var (
	ErrOutsideSelection = errors.New("record belongs outside the selection")
	ErrDuplicateID      = errors.New("record appears twice")
)

// Conflict reports the first edited record that would clash with the rest
// of the set: one carrying the ID of a record outside selected, or one
// repeating an ID already seen in edited. It returns -1 and nil when
// edited can be merged as is.
func Conflict(all, selected, edited []core.Record) (int, error) {
	inSelection := ids(selected)
	outside := make(map[uuid.UUID]struct{}, len(all))
	for _, r := range all {
		if _, ok := inSelection[r.ID]; !ok {
			outside[r.ID] = struct{}{}
		}
	}
	seen := make(map[uuid.UUID]struct{}, len(edited))
	for i, r := range edited {
		if r.ID == uuid.Nil {
			continue
		}
		if _, ok := outside[r.ID]; ok {
			return i, ErrOutsideSelection
		}
		if _, ok := seen[r.ID]; ok {
			return i, ErrDuplicateID
		}
		seen[r.ID] = struct{}{}
	}
	return -1, nil
}

// Merge returns the records of all that are not in selected, plus edited.
// Records of selected missing from edited are deleted. An edited record
// whose ID is already taken in the result gets a fresh one, so IDs stay
// unique. The result is normalized and in storage order.
func Merge(all, selected, edited []core.Record) []core.Record {
	touched := ids(selected)
	taken := make(map[uuid.UUID]struct{}, len(all)+len(edited))
	out := make([]core.Record, 0, len(all)+len(edited))
	for _, r := range all {
		if _, ok := touched[r.ID]; !ok {
			out = append(out, r)
			taken[r.ID] = struct{}{}
		}
	}
	for _, r := range edited {
		if _, ok := taken[r.ID]; ok {
			r.ID = uuid.Nil
		}
		r = r.Normalize()
		taken[r.ID] = struct{}{}
		out = append(out, r)
	}
	core.SortForStorage(out)
	return out
}

func ids(records []core.Record) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(records))
	for _, r := range records {
		set[r.ID] = struct{}{}
	}
	return set
}
