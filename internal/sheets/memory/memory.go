package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"carlog/internal/core"
	ports "carlog/internal/sheets"
)

// Store keeps the record set in memory. It is the default backend for local
// development and tests.
type Store struct {
	mu      sync.Mutex
	items   []core.Record
	dialect ports.Dialect
	report  ports.DecodeReport
	saves   int
}

var (
	_ ports.RecordStore = (*Store)(nil)
	_ ports.Reporter    = (*Store)(nil)
)

func New(records ...core.Record) *Store {
	s := &Store{}
	for _, r := range records {
		s.items = append(s.items, r.Normalize())
	}
	return s
}

// NewFromFile seeds the store from a CSV file laid out like the worksheet
// (header row first, either dialect). A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = make([]any, len(row))
		for j, v := range row {
			values[i][j] = v
		}
	}
	records, rep := ports.DecodeRows(values)
	if rep.HeaderMismatch() {
		return nil, fmt.Errorf("seed file %s: %s", path, rep.Issues[0])
	}
	return &Store{items: records, dialect: rep.Dialect, report: rep}, nil
}

// Load returns a copy of the stored records.
func (s *Store) Load(_ context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Clone(s.items), nil
}

// Save replaces the stored records.
func (s *Store) Save(_ context.Context, records []core.Record) error {
	next := core.Clone(records)
	core.SortForStorage(next)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = next
	s.saves++
	return nil
}

// LastReport returns the decode report of the seed file, if any.
func (s *Store) LastReport() ports.DecodeReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Saves returns how many times Save has been called.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// WriteCSV writes the stored records as CSV in the seed dialect.
func (s *Store) WriteCSV(path string) error {
	s.mu.Lock()
	rows := ports.EncodeRows(s.items, s.dialect)
	s.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	for _, row := range rows {
		cols := make([]string, len(row))
		for i, v := range row {
			cols[i] = fmt.Sprint(v)
		}
		if err := w.Write(cols); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
