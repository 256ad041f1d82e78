// Package main provides a one-shot command that correlates exported messages with an activity catalog.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/remote/internal/config"
	"github.com/thebtf/remote/internal/correlation"
	"github.com/thebtf/remote/internal/dataset"
	"github.com/thebtf/remote/pkg/models"
)

// Version is set at build time via ldflags.
var Version = "dev"

type options struct {
	source        string
	configPath    string
	activities    string
	messages      string
	referenceDate string
	output        string
	workers       int
	debug         bool
}

func main() {
	var opts options
	flag.StringVar(&opts.source, "source", "email", "Message source type (email or slack)")
	flag.StringVar(&opts.configPath, "config", "", "Source config file (JSON or YAML); defaults to the preset for -source")
	flag.StringVar(&opts.activities, "activities", "", "Activity catalog export (required)")
	flag.StringVar(&opts.messages, "messages", "", "Message export (required)")
	flag.StringVar(&opts.referenceDate, "reference-date", "", "Reference date for relative dates (default today)")
	flag.StringVar(&opts.output, "output", "", "Report path (default stdout)")
	flag.IntVar(&opts.workers, "workers", 0, "Activities scored in parallel (default from settings)")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	// Reports go to stdout, so log to stderr
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if opts.debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("Correlation failed")
	}
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	if opts.activities == "" || opts.messages == "" {
		return errors.New("-activities and -messages are required")
	}

	src, err := loadSource(opts)
	if err != nil {
		return err
	}

	ref := models.TruncateDay(time.Now().UTC())
	if opts.referenceDate != "" {
		parsed, ok := dataset.ParseDate(opts.referenceDate, ref)
		if !ok {
			return fmt.Errorf("invalid -reference-date %q", opts.referenceDate)
		}
		ref = parsed
	}

	activities, err := dataset.LoadActivities(opts.activities, ref)
	if err != nil {
		return err
	}
	messages, err := dataset.LoadMessages(opts.messages, models.SourceType(src.Config.MessageType), ref)
	if err != nil {
		return err
	}

	workers := opts.workers
	if workers <= 0 {
		workers = config.Get().Workers
	}
	engine, err := correlation.NewEngine(src, correlation.WithWorkers(workers))
	if err != nil {
		return err
	}

	log.Info().
		Str("source", src.Name).
		Int("activities", len(activities)).
		Int("messages", len(messages)).
		Str("reference_date", ref.Format(time.DateOnly)).
		Msg("Correlating")

	results, err := engine.Correlate(ctx, activities, messages, ref)
	if err != nil {
		return err
	}
	report := correlation.BuildReport(src.Name, ref, activities, results)

	if err := writeReport(report, opts.output, stdout); err != nil {
		return err
	}

	log.Info().
		Int("correlations", report.Summary.Correlations).
		Int("strong", report.Summary.ByTier[models.TierStrong.String()]).
		Int("moderate", report.Summary.ByTier[models.TierModerate.String()]).
		Int("weak", report.Summary.ByTier[models.TierWeak.String()]).
		Msg("Correlation complete")
	return nil
}

func loadSource(opts options) (*config.Source, error) {
	if opts.configPath != "" {
		return config.LoadSourceFile(opts.configPath)
	}
	return config.PresetFor(opts.source).Compile()
}

func writeReport(report *correlation.Report, path string, stdout io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info().Str("path", path).Msg("Report written")
	return nil
}
