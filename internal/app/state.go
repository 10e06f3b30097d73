// Package app holds the application state shared by the HTTP server and the
// CLI: the in-memory record set, its revision and the store behind it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"carlog/internal/core"
	"carlog/internal/entry"
	"carlog/internal/filter"
	"carlog/internal/fuel"
	appmetrics "carlog/internal/metrics"
	"carlog/internal/sheets"
	"carlog/internal/spending"
)

// ErrStore wraps every failure returned by the record store.
var ErrStore = errors.New("record store")

// Notifier is told about every successful commit.
type Notifier interface {
	PublishRecordsCommitted(ctx context.Context, revision int64, count int) error
}

type Config struct {
	Store     sheets.RecordStore
	StoreName string // metrics label, e.g. "sheets"
	Fuel      fuel.Options
	Notifier  Notifier // optional
	Metrics   *appmetrics.Metrics
	Logger    *slog.Logger
}

type State struct {
	store     sheets.RecordStore
	storeName string
	fuelOpts  fuel.Options
	notifier  Notifier
	metrics   *appmetrics.Metrics
	logger    *slog.Logger

	mu       sync.RWMutex
	records  []core.Record
	revision int64
	report   sheets.DecodeReport
	loadErr  error
}

func New(cfg Config) *State {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.StoreName
	if name == "" {
		name = "store"
	}
	if cfg.Fuel.Policy == "" {
		cfg.Fuel.Policy = fuel.PolicyTripsOnly
	}
	return &State{
		store:     cfg.Store,
		storeName: name,
		fuelOpts:  cfg.Fuel,
		notifier:  cfg.Notifier,
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "state"),
	}
}

// Reload replaces the in-memory set with the store contents. On failure the
// set becomes empty and the error is kept for Err until the next Reload.
func (s *State) Reload(ctx context.Context) error {
	started := time.Now()
	records, err := s.store.Load(ctx)
	s.metrics.StoreOp(s.storeName, "load", started, err)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.report = sheets.DecodeReport{}
	if rep, ok := s.store.(sheets.Reporter); ok {
		s.report = rep.LastReport()
		for _, is := range s.report.Issues {
			s.metrics.DecodeIssue(string(is.Kind))
		}
	}

	if err != nil {
		s.records = nil
		s.loadErr = fmt.Errorf("%w: load: %w", ErrStore, err)
		s.metrics.Records(0)
		s.logger.ErrorContext(ctx, "Failed to load records", "error", err)
		return s.loadErr
	}

	s.records = normalizeAll(records)
	core.SortForStorage(s.records)
	s.loadErr = nil
	s.metrics.Records(len(s.records))
	s.logger.InfoContext(ctx, "Records loaded",
		"count", len(s.records),
		"revision", s.revision,
		"duration", time.Since(started))
	return nil
}

// Commit saves next as the full record set. On failure the in-memory state
// is left unchanged.
func (s *State) Commit(ctx context.Context, next []core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(ctx, next)
}

func (s *State) commitLocked(ctx context.Context, next []core.Record) error {
	next = normalizeAll(next)
	core.SortForStorage(next)

	started := time.Now()
	err := s.store.Save(ctx, next)
	s.metrics.StoreOp(s.storeName, "save", started, err)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save records", "count", len(next), "error", err)
		return fmt.Errorf("%w: save: %w", ErrStore, err)
	}

	s.records = next
	s.revision++
	s.loadErr = nil
	s.metrics.Records(len(s.records))
	s.logger.InfoContext(ctx, "Records committed",
		"count", len(next),
		"revision", s.revision,
		"duration", time.Since(started))

	if s.notifier != nil {
		if err := s.notifier.PublishRecordsCommitted(ctx, s.revision, len(next)); err != nil {
			// The store is already updated; the mirror catches up on its next pass.
			s.logger.WarnContext(ctx, "Failed to publish commit event",
				"revision", s.revision,
				"error", err)
		}
	}
	return nil
}

// Add builds a record from form and commits the set with it appended.
func (s *State) Add(ctx context.Context, form entry.Form) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := entry.Build(form, s.records)
	if err != nil {
		return core.Record{}, err
	}
	next := append(core.Clone(s.records), rec)
	if err := s.commitLocked(ctx, next); err != nil {
		return core.Record{}, err
	}
	return rec, nil
}

// Edit replaces the records selected by criteria with edited. Selected
// records absent from edited are deleted.
func (s *State) Edit(ctx context.Context, criteria filter.Criteria, edited []core.Record) error {
	for i, r := range edited {
		if err := r.Normalize().Validate(); err != nil {
			return fmt.Errorf("%w: record %d: %w", entry.ErrInvalid, i+1, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	selected := criteria.Apply(s.records)
	if i, err := filter.Conflict(s.records, selected, edited); err != nil {
		return fmt.Errorf("%w: record %d: %w", entry.ErrInvalid, i+1, err)
	}
	return s.commitLocked(ctx, filter.Merge(s.records, selected, edited))
}

// Records returns a copy of the current set in storage order.
func (s *State) Records() []core.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Clone(s.records)
}

// Filter returns the current records matching c.
func (s *State) Filter(c filter.Criteria) []core.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.Apply(s.records)
}

func (s *State) Revision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Err returns the error of the last failed Reload, if any.
func (s *State) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// Report returns the decode report of the last Reload.
func (s *State) Report() sheets.DecodeReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// Analyze runs the fuel engine over the current set.
func (s *State) Analyze() fuel.Analysis {
	s.mu.RLock()
	records := core.Clone(s.records)
	opts := s.fuelOpts
	s.mu.RUnlock()

	a := fuel.Analyze(records, opts)
	s.metrics.AnalysisPass(a.Status.String(), len(a.Trips))
	return a
}

func (s *State) Spending(now time.Time) spending.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return spending.Summarize(s.records, now)
}

func (s *State) FuelOptions() fuel.Options {
	return s.fuelOpts
}

func normalizeAll(records []core.Record) []core.Record {
	out := make([]core.Record, len(records))
	for i, r := range records {
		out[i] = r.Normalize()
	}
	return out
}
