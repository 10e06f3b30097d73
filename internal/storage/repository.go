package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"carlog/internal/core"
	ports "carlog/internal/sheets"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores the record set in a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.RecordStore = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single connection keeps writes serialised
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const (
	selectRecords = `SELECT date, odometer, category, amount_cents, description, installments, volume, fill_type
FROM records ORDER BY date, odometer, id`
	insertRecord = `INSERT INTO records (date, odometer, category, amount_cents, description, installments, volume, fill_type)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	deleteRecords = `DELETE FROM records`
	countRecords  = `SELECT COUNT(*) FROM records`
)

// Load implements sheets.RecordStore. Records come back in storage order
// with fresh in-memory IDs.
func (r *SQLiteRepository) Load(ctx context.Context) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, selectRecords)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		var (
			date, category, volume, fill string
			rec                          core.Record
		)
		if err := rows.Scan(&date, &rec.Odometer, &category, &rec.Amount.Cents,
			&rec.Description, &rec.Installments, &volume, &fill); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if rec.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("record date %q: %w", date, err)
		}
		if rec.Category, err = core.ParseCategory(category); err != nil {
			return nil, fmt.Errorf("record category %q: %w", category, err)
		}
		if rec.Volume, err = decimal.NewFromString(volume); err != nil {
			return nil, fmt.Errorf("record volume %q: %w", volume, err)
		}
		if rec.Fill, err = core.ParseFill(fill); err != nil {
			return nil, fmt.Errorf("record fill %q: %w", fill, err)
		}
		out = append(out, rec.Normalize())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Save implements sheets.RecordStore by replacing the whole table inside one
// transaction. On any failure the previous contents are kept.
func (r *SQLiteRepository) Save(ctx context.Context, records []core.Record) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, deleteRecords); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertRecord)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	sorted := core.Clone(records)
	core.SortForStorage(sorted)
	for _, rec := range sorted {
		rec = rec.Normalize()
		if _, err = stmt.ExecContext(ctx,
			rec.Date.String(),
			rec.Odometer,
			rec.Category.String(),
			rec.Amount.Cents,
			rec.Description,
			rec.Installments,
			rec.Volume.String(),
			string(rec.Fill),
		); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.Date, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.InfoContext(ctx, "Records saved to SQLite", "count", len(sorted))
	return nil
}

// Count returns the number of stored records.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countRecords).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
