package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"carlog/internal/amqp"
	"carlog/internal/sheets"
)

// Mirror copies the full record set from the primary store (SQLite) to a
// mirror store (Google Sheets) whenever a commit event arrives.
type Mirror struct {
	primary sheets.RecordStore
	mirror  sheets.RecordStore
	now     func() time.Time

	mu           sync.Mutex
	lastMirrored time.Time // when the primary was last read for a successful mirror
	passes       int
}

func NewMirror(primary, mirror sheets.RecordStore) *Mirror {
	return &Mirror{primary: primary, mirror: mirror, now: time.Now}
}

// HandleCommitted processes one commit event. Events committed before the
// last successful pass are already reflected in the mirror and skipped.
func (w *Mirror) HandleCommitted(ctx context.Context, msg *amqp.RecordsCommittedMessage) error {
	w.mu.Lock()
	last := w.lastMirrored
	w.mu.Unlock()

	if !last.IsZero() && msg.Timestamp.Before(last) {
		slog.InfoContext(ctx, "Skipping stale commit event",
			"revision", msg.Revision,
			"committed_at", msg.Timestamp,
			"last_mirrored", last)
		return nil
	}
	return w.Sync(ctx)
}

// Startup performs one mirror pass so commits made while the worker was down
// are not lost.
func (w *Mirror) Startup(ctx context.Context) error {
	slog.InfoContext(ctx, "Running startup mirror pass")
	return w.Sync(ctx)
}

// Sync loads the primary set and replaces the mirror with it.
func (w *Mirror) Sync(ctx context.Context) error {
	started := w.now()
	records, err := w.primary.Load(ctx)
	if err != nil {
		return fmt.Errorf("load primary store: %w", err)
	}
	if err := w.mirror.Save(ctx, records); err != nil {
		return fmt.Errorf("save mirror store: %w", err)
	}

	w.mu.Lock()
	w.lastMirrored = started
	w.passes++
	w.mu.Unlock()

	slog.InfoContext(ctx, "Mirror pass completed",
		"records", len(records),
		"duration", w.now().Sub(started))
	return nil
}

// Passes returns the number of successful mirror passes.
func (w *Mirror) Passes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.passes
}
