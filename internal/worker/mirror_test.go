package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"carlog/internal/amqp"
	"carlog/internal/core"
	"carlog/internal/sheets/memory"
)

type failingStore struct{ err error }

func (f failingStore) Load(context.Context) ([]core.Record, error) { return nil, f.err }
func (f failingStore) Save(context.Context, []core.Record) error   { return f.err }

func records() []core.Record {
	return []core.Record{
		{Date: core.NewDate(2025, 1, 1), Category: core.Tolls, Amount: core.Money{Cents: 100}, Description: "a", Installments: 1},
		{Date: core.NewDate(2025, 1, 2), Category: core.Tolls, Amount: core.Money{Cents: 200}, Description: "b", Installments: 1},
	}
}

func TestHandleCommittedMirrorsFullSet(t *testing.T) {
	primary := memory.New(records()...)
	mirror := memory.New()
	w := NewMirror(primary, mirror)

	if err := w.HandleCommitted(context.Background(), amqp.NewRecordsCommittedMessage(1, 2)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, _ := mirror.Load(context.Background())
	if len(got) != 2 || w.Passes() != 1 {
		t.Fatalf("expected mirrored set of 2, got %d (passes=%d)", len(got), w.Passes())
	}
}

func TestHandleCommittedSkipsStaleEvents(t *testing.T) {
	primary := memory.New(records()...)
	mirror := memory.New()
	w := NewMirror(primary, mirror)

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return base }
	if err := w.Startup(context.Background()); err != nil {
		t.Fatalf("startup: %v", err)
	}

	stale := &amqp.RecordsCommittedMessage{Revision: 1, Count: 2, Timestamp: base.Add(-time.Minute)}
	if err := w.HandleCommitted(context.Background(), stale); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if mirror.Saves() != 1 {
		t.Fatalf("stale event should not trigger a save, got %d saves", mirror.Saves())
	}

	fresh := &amqp.RecordsCommittedMessage{Revision: 2, Count: 2, Timestamp: base.Add(time.Minute)}
	if err := w.HandleCommitted(context.Background(), fresh); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if mirror.Saves() != 2 {
		t.Fatalf("fresh event should trigger a save, got %d saves", mirror.Saves())
	}
}

func TestSyncErrors(t *testing.T) {
	boom := errors.New("boom")
	w := NewMirror(failingStore{err: boom}, memory.New())
	if err := w.Sync(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}

	w = NewMirror(memory.New(records()...), failingStore{err: boom})
	if err := w.Sync(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected save error, got %v", err)
	}
	if w.Passes() != 0 {
		t.Fatalf("failed passes should not count")
	}
}
