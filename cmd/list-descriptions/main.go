package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dvloznov/cashflow-migration/internal/gcs"
	"github.com/dvloznov/cashflow-migration/internal/legacy"
	"github.com/dvloznov/cashflow-migration/internal/logger"
	"github.com/dvloznov/cashflow-migration/internal/mapping"
	"github.com/dvloznov/cashflow-migration/internal/report"
	"github.com/dvloznov/cashflow-migration/internal/suggest"
)

type options struct {
	Export  string
	Out     string
	Mapping string
	Suggest bool
	Model   string
}

func parseFlags(args []string, getenv func(string) string) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("list-descriptions", flag.ContinueOnError)

	fs.StringVar(&opts.Export, "export", "", "Closures export file, local path or gs:// URI (required)")
	fs.StringVar(&opts.Out, "out", "descriptions-list.txt", "Report output, local path or gs:// URI; empty to skip writing")
	fs.StringVar(&opts.Mapping, "mapping", "", "Mapping file used to mark unmapped descriptions")
	fs.BoolVar(&opts.Suggest, "suggest", false, "Ask Gemini to propose description rules for unmapped descriptions")
	model := getenv("GEMINI_MODEL")
	if model == "" {
		model = suggest.DefaultModelName
	}
	fs.StringVar(&opts.Model, "model", model, "Gemini model used by -suggest")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.Export == "" {
		return nil, errors.New("-export is required")
	}
	if opts.Suggest && opts.Mapping == "" {
		return nil, errors.New("-suggest needs -mapping to know the available categories")
	}
	return opts, nil
}

// writeReport prints the report to stdout and, when location is set, to a
// local file or gs:// URI.
func writeReport(ctx context.Context, stdout io.Writer, rep *report.Report, location string) error {
	var buf bytes.Buffer
	if err := rep.WriteText(&buf); err != nil {
		return err
	}
	if _, err := stdout.Write(buf.Bytes()); err != nil {
		return err
	}
	if location == "" {
		return nil
	}
	return gcs.WriteDestination(ctx, location, buf.Bytes())
}

func unmappedTexts(rep *report.Report) []string {
	entries := rep.Unmapped()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Text)
	}
	return out
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	svc := gcs.NewGCSStorageService()

	ds, err := legacy.Load(ctx, svc, opts.Export)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load closures export")
	}

	var cfg *mapping.Config
	var resolver *mapping.Resolver
	if opts.Mapping != "" {
		cfg, err = mapping.Load(ctx, svc, opts.Mapping)
		if errors.Is(err, mapping.ErrNotFound) {
			log.Warn().Str("mapping", opts.Mapping).Msg("Mapping file not found, every description is unmapped")
		} else if err != nil {
			log.Fatal().Err(err).Str("mapping", opts.Mapping).Msg("Failed to load mapping")
		}
		resolver = mapping.NewResolver(cfg)
	}

	rep := report.Build(ds, resolver)
	if err := writeReport(ctx, os.Stdout, rep, opts.Out); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}
	if opts.Out != "" {
		log.Info().Str("file", opts.Out).Msg("Report saved")
	}

	if !opts.Suggest {
		return
	}

	descriptions := unmappedTexts(rep)
	if len(descriptions) == 0 {
		log.Info().Msg("Every description is mapped, nothing to suggest")
		return
	}

	gen, err := suggest.NewGeminiGenerator(ctx, opts.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	log.Info().Int("descriptions", len(descriptions)).Str("model", opts.Model).Msg("Requesting rule suggestions")
	res, err := suggest.New(gen).Suggest(ctx, cfg, descriptions)
	if err != nil {
		log.Fatal().Err(err).Msg("Suggestion failed")
	}
	for _, r := range res.Rejected {
		log.Warn().Strs("keywords", r.Rule.Keywords).Str("category", r.Rule.Category.Name).Str("reason", r.Reason).Msg("Rejected suggestion")
	}

	fragment, err := res.JSON()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode suggestions")
	}
	fmt.Println("\nSuggested descriptionRules (review before adding to the mapping file):")
	fmt.Println(string(fragment))
}
