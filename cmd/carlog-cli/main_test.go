package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const seedCSV = "date,odometer,category,amount,description,installment_count,volume,fill_type\n" +
	"2025-03-01,1000,Fuel,\"60,00\",Fuel purchase,1,\"40,00\",Full\n" +
	"2025-03-05,1000,Tolls,\"12,00\",bridge,1,\"0,00\",\n" +
	"2025-03-10,1400,Fuel,\"30,00\",Fuel purchase,1,\"20,00\",Partial\n" +
	"2025-03-20,1800,Fuel,\"45,00\",Fuel purchase,1,\"30,00\",Full\n"

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "records.csv")
	if err := os.WriteFile(seed, []byte(seedCSV), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("MEMORY_SEED_FILE", seed)
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "carlog.db"))
	t.Setenv("AMQP_URL", "")
	t.Setenv("MIRROR_TO_SHEETS", "false")
	t.Setenv("FUEL_AGGREGATE_POLICY", "")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), err
}

func TestFuelCommand(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "fuel")
	if err != nil {
		t.Fatalf("fuel: %v", err)
	}
	for _, want := range []string{"trips-only", "6,25 L/100 km", "800 km", "2025-03"} {
		if !strings.Contains(out, want) {
			t.Fatalf("fuel output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, "fuel", "--policy", "weekly"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestRecordsAndSpendingCommands(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "records", "--category", "Tolls")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if !strings.Contains(out, "bridge") || !strings.Contains(out, "1 record(s)") {
		t.Fatalf("unexpected records output:\n%s", out)
	}

	if _, err := run(t, "records", "--from", "someday"); err == nil {
		t.Fatalf("expected date error")
	}

	out, err = run(t, "spending", "--year", "2025", "--month", "3")
	if err != nil {
		t.Fatalf("spending: %v", err)
	}
	if !strings.Contains(out, "2025-03") || !strings.Contains(out, "147,00") {
		t.Fatalf("unexpected spending output:\n%s", out)
	}

	if _, err := run(t, "spending", "--month", "13"); err == nil {
		t.Fatalf("expected month error")
	}
}

func TestCopyCommand(t *testing.T) {
	dir := setupEnv(t)

	if _, err := run(t, "copy", "--from", "memory", "--to", "memory"); err == nil {
		t.Fatalf("expected error for identical stores")
	}
	if _, err := run(t, "copy", "--from", "memory", "--to", "ftp"); err == nil {
		t.Fatalf("expected error for unknown store")
	}

	out, err := run(t, "copy", "--from", "memory", "--to", "sqlite")
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if !strings.Contains(out, "copied 4 record(s) from memory to sqlite") {
		t.Fatalf("unexpected copy output: %s", out)
	}

	out, err = run(t, "--backend", "sqlite", "records")
	if err != nil {
		t.Fatalf("records from sqlite: %v", err)
	}
	if !strings.Contains(out, "4 record(s)") {
		t.Fatalf("sqlite should hold the copied set:\n%s", out)
	}

	export := filepath.Join(dir, "export.csv")
	if _, err := run(t, "copy", "--from", "sqlite", "--to", "memory", "--out", export); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(export)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 5 {
		t.Fatalf("expected header and 4 rows, got %d lines:\n%s", lines, data)
	}
}
