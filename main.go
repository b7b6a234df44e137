package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/brettboylen/zs-parser/api"
	"github.com/brettboylen/zs-parser/db"
	"github.com/brettboylen/zs-parser/export"
	"github.com/brettboylen/zs-parser/input"
	"github.com/brettboylen/zs-parser/models"
	"github.com/brettboylen/zs-parser/normalize"
	"github.com/brettboylen/zs-parser/pipeline"
	"github.com/brettboylen/zs-parser/stats"
	"github.com/brettboylen/zs-parser/utils"
)

type options struct {
	Output       string `short:"o" long:"output" description:"Write the result to this file (default: stdout, or output.<format> when stdout is a terminal)"`
	Format       string `short:"f" long:"format" choice:"csv" choice:"json" description:"Output format (default: OUTPUT_FORMAT or json)"`
	DBPath       string `long:"db" description:"Archive normalized records in this SQLite database"`
	Platforms    string `long:"platforms" description:"YAML file with extra platform aliases"`
	CanonicalIDs bool   `long:"canonical-ids" description:"Compare post ids by their string form when removing duplicates"`
	Preview      int    `long:"preview" description:"Print the first N records to stderr"`
	Serve        bool   `long:"serve" description:"Run the HTTP API instead of parsing one input"`
	Port         int    `long:"port" description:"HTTP API port (default: SERVER_PORT or 8080)"`
	EnvPath      string `long:"env" default:".env" description:"Path to .env file"`
	LogLevel     string `long:"log-level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Logging level"`

	Args struct {
		Input string `positional-arg-name:"INPUT" description:"JSON array or NDJSON export (default: stdin)"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] [INPUT]\n\n" +
		"Normalize Zeeshuimer exports to CSV or JSON.\n\n" +
		"  zs-parser data.ndjson\n" +
		"  zs-parser -f csv -o out.csv data.json\n" +
		"  cat data.ndjson | zs-parser > out.json"

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	log := setupLogger(opts.LogLevel)

	config, err := utils.LoadConfig(opts.EnvPath, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	applyFlags(config, &opts)

	if err := utils.ApplyTimezone(config.Parser.Timezone, log); err != nil {
		log.WithError(err).Fatal("Failed to apply timezone")
	}

	registry, err := buildRegistry(config, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to configure platforms")
	}

	format, err := export.ParseFormat(config.Parser.Format)
	if err != nil {
		log.WithError(err).Fatal("Invalid output format")
	}

	pipelineOpts := pipeline.Options{
		Registry: registry,
		Dedupe:   normalize.DedupeOptions{CanonicalIDs: config.Parser.CanonicalIDs},
		Log:      log,
	}

	var database *db.Database
	if config.Database.Path != "" {
		database, err = db.NewDatabase(config.Database.Path, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to database")
		}
	}

	if opts.Serve {
		err := serve(config, pipelineOpts, database, format, log)
		if database != nil {
			database.Close()
		}
		if err != nil {
			log.WithError(err).Fatal("API server stopped")
		}
		return
	}

	collector := stats.NewCollector(database, 0, log)
	code := parse(opts, config, pipelineOpts, collector, format, log)
	if database != nil {
		database.Close()
	}
	os.Exit(code)
}

// setupLogger sets up the logger with the specified log level. Logs are the
// diagnostics channel and always go to stderr.
func setupLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// applyFlags lets command line flags override file and environment config
func applyFlags(config *utils.Config, opts *options) {
	if opts.Format != "" {
		config.Parser.Format = opts.Format
	}
	if opts.DBPath != "" {
		config.Database.Path = opts.DBPath
	}
	if opts.Platforms != "" {
		config.Parser.PlatformsFile = opts.Platforms
	}
	if opts.CanonicalIDs {
		config.Parser.CanonicalIDs = true
	}
	if opts.Preview > 0 {
		config.Parser.PreviewRecords = opts.Preview
	}
	if opts.Port > 0 {
		config.Server.Port = opts.Port
	}
}

func buildRegistry(config *utils.Config, log *logrus.Logger) (*normalize.Registry, error) {
	registry := normalize.DefaultRegistry(log)

	fallback := config.Parser.FallbackPlatform
	if config.Parser.PlatformsFile != "" {
		pf, err := utils.LoadPlatformsFile(config.Parser.PlatformsFile)
		if err != nil {
			return nil, err
		}
		for name, aliases := range pf.Aliases {
			if err := registry.AddAliases(name, aliases...); err != nil {
				return nil, fmt.Errorf("platforms file: %w", err)
			}
		}
		if pf.Fallback != "" {
			fallback = pf.Fallback
		}
	}

	if err := registry.SetFallback(fallback); err != nil {
		return nil, fmt.Errorf("fallback platform: %w", err)
	}

	log.WithFields(logrus.Fields{
		"platforms": registry.Names(),
		"fallback":  registry.Fallback().Name,
	}).Debug("Platform registry ready")

	return registry, nil
}

// parse runs one pipeline pass and returns the process exit code
func parse(opts options, config *utils.Config, pipelineOpts pipeline.Options, collector *stats.Collector, format models.Format, log *logrus.Logger) int {
	in, closeIn, err := openInput(opts.Args.Input)
	if err != nil {
		log.WithError(err).Error("Failed to open input")
		return 1
	}
	defer closeIn()

	result, err := pipeline.Run(in, pipelineOpts)
	if err != nil {
		if errors.Is(err, input.ErrDecode) {
			log.WithError(err).Error("Decode failed")
		} else {
			log.WithError(err).Error("Failed to parse input")
		}
		return 1
	}

	target := resolveOutput(opts.Output, format)

	if result.Empty() {
		log.Warn("No data in file")
		// an explicit output or a pipe still gets a valid empty payload
		if opts.Output == "" && target != "" {
			return 0
		}
		if err := writeOutput(target, result.Records, format); err != nil {
			log.WithError(err).Error("Failed to write output")
			return 1
		}
		return 0
	}

	if err := collector.Record(result); err != nil {
		log.WithError(err).Error("Failed to archive records")
	}

	if config.Parser.PreviewRecords > 0 {
		printPreview(os.Stderr, result.Records, config.Parser.PreviewRecords)
	}

	if err := writeOutput(target, result.Records, format); err != nil {
		log.WithError(err).Error("Failed to write output")
		return 1
	}

	fields := logrus.Fields{
		"records": len(result.Records),
		"format":  format,
	}
	if target != "" {
		fields["output"] = target
	}
	log.WithFields(fields).Info("Export finished")
	return 0
}

// openInput opens the named file, or stdin when it is piped. An interactive
// stdin with no file is ErrNoInput, distinct from empty input.
func openInput(path string) (io.Reader, func(), error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		return f, func() { f.Close() }, nil
	}

	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return nil, nil, utils.ErrNoInput
	}
	return os.Stdin, func() {}, nil
}

// resolveOutput returns the output file, or "" for stdout. A terminal never
// receives the payload; it goes to output.<format> instead.
func resolveOutput(output string, format models.Format) string {
	if output != "" {
		return output
	}
	fd := os.Stdout.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return "output." + string(format)
	}
	return ""
}

// writeOutput writes to a temporary file renamed into place, so an
// interrupted run never leaves a partial result behind
func writeOutput(target string, records []models.Record, format models.Format) error {
	if target == "" {
		return export.Write(os.Stdout, records, format)
	}

	if dir := filepath.Dir(target); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := export.Write(tmp, records, format); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary output: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

func serve(config *utils.Config, pipelineOpts pipeline.Options, database *db.Database, format models.Format, log *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := stats.NewCollector(database, time.Duration(config.Server.StatsRefreshInterval)*time.Second, log)
	go func() {
		if err := collector.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Stats collector stopped unexpectedly")
		}
	}()

	server := api.NewServer(api.Options{
		Pipeline:             pipelineOpts,
		Collector:            collector,
		Registry:             prometheus.NewRegistry(),
		DefaultFormat:        format,
		MaxRequestsPerMinute: config.Server.MaxRequestsPerMinute,
		BodyLimit:            config.Server.BodyLimit,
		Log:                  log,
	})

	go waitForShutdown(cancel, log)

	return server.Start(ctx, config.Server.Port)
}

// waitForShutdown waits for a shutdown signal
func waitForShutdown(cancel context.CancelFunc, log *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("Shutdown signal received")

	cancel()
}
