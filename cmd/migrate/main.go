package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/cashflow-migration/internal/gcs"
	infra "github.com/dvloznov/cashflow-migration/internal/infra/bigquery"
	"github.com/dvloznov/cashflow-migration/internal/legacy"
	"github.com/dvloznov/cashflow-migration/internal/logger"
	"github.com/dvloznov/cashflow-migration/internal/mapping"
	"github.com/dvloznov/cashflow-migration/internal/migrate"
	"github.com/dvloznov/cashflow-migration/internal/store"
)

// Destination backends accepted by -store.
const (
	storeFirebase = "firebase"
	storeBigQuery = "bigquery"
	storeMemory   = "memory"
)

// options holds the parsed command line.
type options struct {
	Export       string
	Mapping      string
	Store        string
	FirebaseURL  string
	AuthToken    string
	Project      string
	Dataset      string
	Seed         string
	Timezone     string
	LogLevel     string
	DryRun       bool
	CreateTables bool
	Audit        bool
	Timeout      time.Duration
}

func parseFlags(args []string, getenv func(string) string) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)

	fs.StringVar(&opts.Export, "export", "", "Closures export file, local path or gs:// URI (required)")
	fs.StringVar(&opts.Mapping, "mapping", mapping.DefaultFilename, "Mapping file (.json or .yaml), local path or gs:// URI")
	fs.StringVar(&opts.Store, "store", storeFirebase, "Destination store: firebase, bigquery or memory")
	fs.StringVar(&opts.FirebaseURL, "firebase-url", getenv("FIREBASE_DATABASE_URL"), "Realtime Database URL")
	fs.StringVar(&opts.AuthToken, "auth-token", getenv("FIREBASE_AUTH_TOKEN"), "Realtime Database auth token")
	fs.StringVar(&opts.Project, "project", getenv("GCP_PROJECT"), "GCP project ID for the bigquery store")
	fs.StringVar(&opts.Dataset, "dataset", envOr(getenv, "BQ_DATASET", infra.DefaultDatasetID), "BigQuery dataset ID")
	fs.StringVar(&opts.Seed, "seed", "", "JSON file seeding the memory store: {collection: {id: record}}")
	fs.StringVar(&opts.Timezone, "timezone", "Local", "IANA time zone used to derive transaction dates")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Read the destination but never write to it")
	fs.BoolVar(&opts.CreateTables, "create-tables", false, "Create the BigQuery tables before migrating")
	fs.BoolVar(&opts.Audit, "audit", false, "Record the run summary in the BigQuery migration_runs table")
	fs.DurationVar(&opts.Timeout, "timeout", 30*time.Minute, "Maximum duration of the run")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func envOr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

func (o *options) validate() error {
	if o.Export == "" {
		return errors.New("-export is required")
	}

	switch o.Store {
	case storeFirebase:
		if o.FirebaseURL == "" {
			return errors.New("-firebase-url or FIREBASE_DATABASE_URL is required for the firebase store")
		}
	case storeBigQuery:
		if o.Project == "" {
			return errors.New("-project or GCP_PROJECT is required for the bigquery store")
		}
	case storeMemory:
	default:
		return fmt.Errorf("unknown -store %q (want firebase, bigquery or memory)", o.Store)
	}

	if (o.CreateTables || o.Audit) && o.Store != storeBigQuery {
		return errors.New("-create-tables and -audit need -store=bigquery")
	}
	return nil
}

// destination is the opened store plus the BigQuery handle when the
// backend is BigQuery.
type destination struct {
	store    store.Store
	bigquery *infra.BigQueryStore
}

func (d *destination) Close() error {
	if d.bigquery != nil {
		return d.bigquery.Close()
	}
	return nil
}

func openStore(ctx context.Context, opts *options, svc gcs.StorageService) (*destination, error) {
	dest := &destination{}

	switch opts.Store {
	case storeFirebase:
		fb, err := store.NewFirebaseStore(opts.FirebaseURL, opts.AuthToken, nil)
		if err != nil {
			return nil, err
		}
		dest.store = fb

	case storeBigQuery:
		bq, err := infra.NewBigQueryStore(ctx, opts.Project, opts.Dataset)
		if err != nil {
			return nil, err
		}
		if opts.CreateTables {
			if err := bq.EnsureTables(ctx); err != nil {
				bq.Close()
				return nil, err
			}
		}
		dest.store = bq
		dest.bigquery = bq

	case storeMemory:
		mem := store.NewMemoryStore()
		if opts.Seed != "" {
			data, err := gcs.ReadSource(ctx, svc, opts.Seed)
			if err != nil {
				return nil, fmt.Errorf("openStore: reading seed: %w", err)
			}
			if mem, err = store.NewMemoryStoreFromJSON(data); err != nil {
				return nil, fmt.Errorf("openStore: %w", err)
			}
		}
		dest.store = mem
	}

	if opts.DryRun {
		dest.store = store.NewDryRun(dest.store)
	}
	return dest, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", name, err)
	}
	return loc, nil
}

// loadMapping treats a missing mapping file as an empty mapping.
func loadMapping(ctx context.Context, log zerolog.Logger, svc gcs.StorageService, location string) (*mapping.Config, error) {
	cfg, err := mapping.Load(ctx, svc, location)
	if errors.Is(err, mapping.ErrNotFound) {
		log.Warn().Str("mapping", location).Msg("Mapping file not found, every transaction will be unmapped")
		return cfg, nil
	}
	return cfg, err
}

func printSummary(w io.Writer, r *migrate.Result, dryRun bool) {
	rule := strings.Repeat("=", 60)
	title := "MIGRATION SUMMARY"
	if dryRun {
		title += " (dry run, nothing written)"
	}

	fmt.Fprintf(w, "\n%s\n%s\n%s\n", rule, title, rule)
	fmt.Fprintf(w, "Run:                %s\n", r.RunID)
	fmt.Fprintf(w, "Closures:           %d\n", r.Closures)
	fmt.Fprintf(w, "Accounts:           %d (%d reused, %d created, %d failed)\n",
		r.Accounts, r.AccountsReused, r.AccountsCreated, r.AccountsFailed)
	fmt.Fprintf(w, "Categories:         %d (%d found, %d missing)\n",
		r.Categories, r.CategoriesFound, len(r.MissingCategories))
	fmt.Fprintf(w, "Planned:            %d\n", r.Planned)
	fmt.Fprintf(w, "Migrated:           %d\n", r.Migrated)
	fmt.Fprintf(w, "Skipped:            %d\n", r.Skipped)
	writeReasons(w, r.SkipReasons)
	fmt.Fprintf(w, "Errors:             %d\n", r.Errors)
	writeReasons(w, r.ErrorReasons)

	if len(r.MissingCategories) > 0 {
		fmt.Fprintln(w, "\nCategories to create in the destination before re-running:")
		for _, c := range r.MissingCategories {
			fmt.Fprintf(w, "  - %s (%s)\n", c.Name, c.Type)
		}
	}
}

func writeReasons(w io.Writer, reasons map[migrate.Reason]int) {
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-28s %d\n", k+":", reasons[migrate.Reason(k)])
	}
}

func runSummary(opts *options, r *migrate.Result, started, finished time.Time) infra.RunSummary {
	return infra.RunSummary{
		RunID:      r.RunID,
		Source:     gcs.BaseName(opts.Export),
		DryRun:     opts.DryRun,
		StartedAt:  started,
		FinishedAt: finished,
		Closures:   r.Closures,
		Accounts:   r.Accounts,
		Categories: r.Categories,
		Migrated:   r.Migrated,
		Skipped:    r.Skipped,
		Errors:     r.Errors,
		Breakdown: map[string]interface{}{
			"skip_reasons":       r.SkipReasons,
			"error_reasons":      r.ErrorReasons,
			"missing_categories": r.MissingCategories,
		},
	}
}

func main() {
	log := logger.New()

	opts, err := parseFlags(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal().Err(err).Msg("Invalid arguments")
	}

	level, err := logger.ParseLevel(opts.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -log-level")
	}
	log = logger.NewWithLevel(level)

	loc, err := loadLocation(opts.Timezone)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -timezone")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	svc := gcs.NewGCSStorageService()

	log.Info().Str("export", opts.Export).Msg("Loading closures export")
	ds, err := legacy.Load(ctx, svc, opts.Export)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load closures export")
	}
	log.Info().Int("closures", ds.Len()).Msg("Closures export loaded")

	cfg, err := loadMapping(ctx, log, svc, opts.Mapping)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load mapping")
	}
	log.Info().
		Int("accounts", len(cfg.Accounts)).
		Int("categories", len(cfg.Categories)).
		Int("description_rules", len(cfg.DescriptionRules)).
		Msg("Mapping loaded")

	dest, err := openStore(ctx, opts, svc)
	if err != nil {
		log.Fatal().Err(err).Str("store", opts.Store).Msg("Failed to open destination store")
	}
	defer dest.Close()

	m := migrate.New(dest.store, cfg, migrate.Options{
		Sink:     migrate.NewLogSink(log),
		Location: loc,
	})
	log.Info().
		Str("run_id", m.RunID()).
		Str("store", opts.Store).
		Bool("dry_run", opts.DryRun).
		Msg("Starting migration")

	started := time.Now()
	result, runErr := m.Run(ctx, ds)
	finished := time.Now()

	if result != nil {
		printSummary(os.Stdout, result, opts.DryRun)

		if opts.Audit {
			if err := dest.bigquery.RecordRun(ctx, runSummary(opts, result, started, finished)); err != nil {
				log.Error().Err(err).Msg("Failed to record migration run")
			}
		}
	}

	if runErr != nil {
		log.Fatal().Err(runErr).Msg("Migration interrupted")
	}
}
