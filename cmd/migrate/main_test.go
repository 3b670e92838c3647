package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/cashflow-migration/internal/logger"
	"github.com/dvloznov/cashflow-migration/internal/migrate"
	"github.com/dvloznov/cashflow-migration/internal/store"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "export required",
			args:    []string{"-store", "memory"},
			wantErr: "-export is required",
		},
		{
			name:    "firebase needs url",
			args:    []string{"-export", "closures.json"},
			wantErr: "FIREBASE_DATABASE_URL",
		},
		{
			name: "firebase url from env",
			args: []string{"-export", "closures.json"},
			env:  map[string]string{"FIREBASE_DATABASE_URL": "https://example.firebaseio.com"},
		},
		{
			name:    "bigquery needs project",
			args:    []string{"-export", "closures.json", "-store", "bigquery"},
			wantErr: "GCP_PROJECT",
		},
		{
			name:    "unknown store",
			args:    []string{"-export", "closures.json", "-store", "postgres"},
			wantErr: "unknown -store",
		},
		{
			name:    "audit needs bigquery",
			args:    []string{"-export", "closures.json", "-store", "memory", "-audit"},
			wantErr: "-store=bigquery",
		},
		{
			name: "bigquery with audit",
			args: []string{"-export", "closures.json", "-store", "bigquery", "-project", "p", "-audit", "-create-tables"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args, env(tt.env))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("parseFlags() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("parseFlags() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	opts, err := parseFlags([]string{"-export", "x.json", "-store", "memory"}, env(map[string]string{"BQ_DATASET": "ledger"}))
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if opts.Mapping != "migration-mapping.json" {
		t.Errorf("Mapping = %q", opts.Mapping)
	}
	if opts.Dataset != "ledger" {
		t.Errorf("Dataset = %q, want value from BQ_DATASET", opts.Dataset)
	}
	if opts.DryRun {
		t.Error("DryRun should default to false")
	}
}

func TestOpenStore_MemorySeedAndDryRun(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(seed, []byte(`{"accounts": {"a1": {"name": "Main"}}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := &options{Store: storeMemory, Seed: seed, DryRun: true}
	dest, err := openStore(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer dest.Close()

	if _, ok := dest.store.(*store.DryRun); !ok {
		t.Fatalf("expected dry-run wrapper, got %T", dest.store)
	}

	accounts, err := dest.store.Get(context.Background(), store.CollectionAccounts)
	if err != nil {
		t.Fatal(err)
	}
	if accounts["a1"].String("name") != "Main" {
		t.Errorf("seed not loaded: %v", accounts)
	}
}

func TestLoadLocation(t *testing.T) {
	if loc, err := loadLocation("Local"); err != nil || loc != time.Local {
		t.Errorf("loadLocation(Local) = %v, %v", loc, err)
	}
	if loc, err := loadLocation("UTC"); err != nil || loc.String() != "UTC" {
		t.Errorf("loadLocation(UTC) = %v, %v", loc, err)
	}
	if _, err := loadLocation("Mars/Olympus"); err == nil {
		t.Error("expected error for unknown zone")
	}
}

func TestLoadMapping_MissingFileIsEmpty(t *testing.T) {
	var logs bytes.Buffer
	cfg, err := loadMapping(context.Background(), logger.NewWithWriter(&logs), nil, filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatalf("loadMapping() error = %v", err)
	}
	if len(cfg.Categories) != 0 {
		t.Errorf("expected empty mapping, got %v", cfg.Categories)
	}
	if !strings.Contains(logs.String(), "Mapping file not found") {
		t.Errorf("expected warning, got %q", logs.String())
	}
}

func TestPrintSummary(t *testing.T) {
	r := migrate.NewResult("run-1")
	r.Closures = 2
	r.Migrated = 3
	r.Skipped = 2
	r.SkipReasons[migrate.ReasonTransfer] = 1
	r.SkipReasons[migrate.ReasonUnmappedCategory] = 1
	r.MissingCategories = []migrate.MissingCategory{{Name: "Taxes", Type: "expense"}}

	var buf bytes.Buffer
	printSummary(&buf, r, true)
	out := buf.String()

	for _, want := range []string{
		"dry run",
		"Closures:           2",
		"Migrated:           3",
		"  transfer:",
		"  - Taxes (expense)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "transfer:") < strings.Index(out, "Skipped:") {
		t.Error("skip reasons must follow the Skipped line")
	}
}

func TestRunSummary(t *testing.T) {
	r := migrate.NewResult("run-9")
	r.Migrated = 4
	started := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	sum := runSummary(&options{Export: "gs://bucket/exports/closures.json", DryRun: true}, r, started, started.Add(time.Minute))

	if sum.Source != "closures.json" || sum.RunID != "run-9" || sum.Migrated != 4 || !sum.DryRun {
		t.Errorf("unexpected summary %+v", sum)
	}
}
