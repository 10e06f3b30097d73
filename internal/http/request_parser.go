package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"carlog/internal/core"
	"carlog/internal/entry"
	"carlog/internal/filter"
)

// maxBodyBytes caps request bodies; an edit request carries the whole
// selected subset.
const maxBodyBytes = 1 << 20

// errBadRequest marks malformed requests (400), as opposed to well-formed
// but invalid entries (422).
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// decodeJSON reads a size-limited JSON body into dst, rejecting unknown
// fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// ParseEntryForm reads an entry from a JSON body or a url-encoded form.
func ParseEntryForm(w http.ResponseWriter, r *http.Request) (entry.Form, error) {
	var f entry.Form
	if isJSON(r) {
		if err := decodeJSON(w, r, &f); err != nil {
			return entry.Form{}, err
		}
		return sanitizeForm(f), nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return entry.Form{}, badRequest("invalid form: %v", err)
	}
	return formFromValues(r.PostForm)
}

func formFromValues(v url.Values) (entry.Form, error) {
	f := entry.Form{
		Date:        v.Get("date"),
		Category:    v.Get("category"),
		Amount:      v.Get("amount"),
		Description: v.Get("description"),
		Volume:      v.Get("volume"),
		Fill:        v.Get("fill_type"),
	}
	fields := entry.FieldErrors{}
	if s := strings.TrimSpace(v.Get("odometer")); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			fields["odometer"] = "must be a whole number"
		}
		f.Odometer = n
	}
	if s := strings.TrimSpace(v.Get("installment_count")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			fields["installment_count"] = "must be a whole number"
		}
		f.Installments = n
	}
	if len(fields) > 0 {
		return entry.Form{}, fields
	}
	return sanitizeForm(f), nil
}

func sanitizeForm(f entry.Form) entry.Form {
	f.Date = sanitizeInput(f.Date)
	f.Category = sanitizeInput(f.Category)
	f.Amount = sanitizeInput(f.Amount)
	f.Description = sanitizeInput(f.Description)
	f.Volume = sanitizeInput(f.Volume)
	f.Fill = sanitizeInput(f.Fill)
	return f
}

// criteriaView is the wire form of filter.Criteria.
type criteriaView struct {
	Categories []string `json:"categories"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	Query      string   `json:"q"`
}

func (c criteriaView) toCriteria() (filter.Criteria, error) {
	var out filter.Criteria
	for _, raw := range c.Categories {
		for _, name := range strings.Split(raw, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			cat, err := core.ParseCategory(name)
			if err != nil {
				return filter.Criteria{}, badRequest("unknown category %q", name)
			}
			out.Categories = append(out.Categories, cat)
		}
	}
	var err error
	if s := strings.TrimSpace(c.From); s != "" {
		if out.From, err = core.ParseDate(s); err != nil {
			return filter.Criteria{}, badRequest("invalid from date %q", s)
		}
	}
	if s := strings.TrimSpace(c.To); s != "" {
		if out.To, err = core.ParseDate(s); err != nil {
			return filter.Criteria{}, badRequest("invalid to date %q", s)
		}
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.To.Before(out.From.Time) {
		return filter.Criteria{}, badRequest("to date is before from date")
	}
	out.Description = sanitizeInput(c.Query)
	return out, nil
}

// ParseCriteria reads category, from, to and q query parameters. category
// may repeat or hold a comma-separated list.
func ParseCriteria(q url.Values) (filter.Criteria, error) {
	return criteriaView{
		Categories: q["category"],
		From:       q.Get("from"),
		To:         q.Get("to"),
		Query:      q.Get("q"),
	}.toCriteria()
}

type editRequest struct {
	Criteria criteriaView `json:"criteria"`
	Records  []recordView `json:"records"`
}

// ParseEditRequest reads the criteria that selected the edited subset and
// the subset after editing.
func ParseEditRequest(w http.ResponseWriter, r *http.Request) (filter.Criteria, []core.Record, error) {
	if !isJSON(r) {
		return filter.Criteria{}, nil, badRequest("edit requests must be application/json")
	}
	var req editRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return filter.Criteria{}, nil, err
	}
	crit, err := req.Criteria.toCriteria()
	if err != nil {
		return filter.Criteria{}, nil, err
	}
	records := make([]core.Record, 0, len(req.Records))
	for i, v := range req.Records {
		rec, err := v.toRecord()
		if err != nil {
			return filter.Criteria{}, nil, fmt.Errorf("%w: record %d: %w", entry.ErrInvalid, i+1, err)
		}
		rec.Description = sanitizeInput(rec.Description)
		records = append(records, rec)
	}
	return crit, records, nil
}

// ParseMonth reads year and month query parameters, defaulting to the
// month of now.
func ParseMonth(q url.Values, now time.Time) (time.Time, error) {
	year, month := now.Year(), int(now.Month())
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 9999 {
			return time.Time{}, badRequest("invalid year %q", v)
		}
		year = y
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return time.Time{}, badRequest("invalid month %q", v)
		}
		month = m
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
