package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"carlog/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "carlog.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleRecords() []core.Record {
	return []core.Record{
		{Date: core.NewDate(2025, 3, 20), Odometer: 1800, Category: core.Fuel, Amount: core.Money{Cents: 140000}, Description: "Fuel purchase", Installments: 1, Volume: decimal.RequireFromString("25.37"), Fill: core.FillFull},
		{Date: core.NewDate(2025, 3, 1), Odometer: 1000, Category: core.Fuel, Amount: core.Money{Cents: 200000}, Description: "Fuel purchase", Installments: 1, Volume: decimal.NewFromInt(40), Fill: core.FillFull},
		{Date: core.NewDate(2025, 3, 5), Odometer: 1100, Category: core.Insurance, Amount: core.Money{Cents: 120000}, Description: "policy", Installments: 12, Volume: decimal.Zero},
	}
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if got, err := repo.Load(ctx); err != nil || len(got) != 0 {
		t.Fatalf("fresh database should be empty: %v %v", got, err)
	}
	if err := repo.Save(ctx, sampleRecords()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].Odometer != 1000 || got[1].Category != core.Insurance || got[2].Odometer != 1800 {
		t.Fatalf("records not in storage order: %+v", got)
	}
	if !got[2].Volume.Equal(decimal.RequireFromString("25.37")) || got[2].Fill != core.FillFull {
		t.Fatalf("fuel fields lost: %+v", got[2])
	}
	if got[1].Installments != 12 || got[1].Amount.Cents != 120000 {
		t.Fatalf("insurance record changed: %+v", got[1])
	}
}

func TestSaveReplacesWholeTable(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.Save(ctx, sampleRecords()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, sampleRecords()[:1]); err != nil {
		t.Fatalf("save: %v", err)
	}
	n, err := repo.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 record after replace, got %d (err=%v)", n, err)
	}
}

func TestSaveFailureKeepsPreviousContents(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.Save(ctx, sampleRecords()); err != nil {
		t.Fatalf("save: %v", err)
	}
	bad := sampleRecords()
	bad[0].Odometer = -1 // violates the CHECK constraint
	if err := repo.Save(ctx, bad); err == nil {
		t.Fatalf("expected save to fail")
	}
	n, err := repo.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("failed save should roll back, got %d records (err=%v)", n, err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carlog.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	repo.Close()
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
}
