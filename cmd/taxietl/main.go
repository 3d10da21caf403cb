package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joshafouda/taxitripapp/config"
	"github.com/joshafouda/taxitripapp/internal/logging"
	"github.com/joshafouda/taxitripapp/internal/metrics"
)

func main() {
	mode := flag.String("mode", "all", "fetch|etl|all")
	configPath := flag.String("config", "", "config file (defaults to config.json, config.yml or config.yaml)")
	sinkName := flag.String("sink", "", "parquet|database (overrides config)")
	inputDir := flag.String("input", "", "folder of trip files (overrides config)")
	limit := flag.Int("limit", 0, "process at most this many files (0 means all)")
	flag.Parse()

	if err := run(*mode, *configPath, *sinkName, *inputDir, *limit); err != nil {
		fmt.Fprintln(os.Stderr, "taxietl:", err)
		os.Exit(1)
	}
}

func run(mode, configPath, sinkName, inputDir string, limit int) error {
	switch mode {
	case "fetch", "etl", "all":
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if sinkName != "" {
		cfg.Pipeline.Sink = sinkName
	}
	if inputDir != "" {
		cfg.Pipeline.InputDir = inputDir
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	runID := uuid.NewString()
	logs, err := logging.Open(logging.Config{
		Dir:    cfg.Logging.Dir,
		Level:  cfg.Logging.Level,
		Stdout: cfg.Logging.Stdout,
	}, zap.String("run_id", runID))
	if err != nil {
		return err
	}
	defer func() { _ = logs.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := metrics.New()
	defer exportMetrics(cfg.Metrics, rec, runID, logs.Stage(logging.Pipeline))

	if mode == "fetch" || mode == "all" {
		if err := fetch(ctx, cfg, logs.Stage(logging.Fetch), rec); err != nil {
			return err
		}
	}
	if mode == "etl" || mode == "all" {
		if err := etl(ctx, cfg, logs, rec, runID, limit); err != nil {
			return err
		}
	}
	return nil
}

// exportMetrics never fails the run; a broken gateway only costs a log line.
func exportMetrics(cfg config.MetricsConfig, rec *metrics.Recorder, runID string, log *zap.Logger) {
	if cfg.Textfile != "" {
		if err := rec.WriteTextfile(cfg.Textfile); err != nil {
			log.Warn("Failed to write metrics textfile", zap.String("path", cfg.Textfile), zap.Error(err))
		}
	}
	if cfg.PushgatewayURL != "" {
		if err := rec.Push(context.Background(), cfg.PushgatewayURL, cfg.Job, runID); err != nil {
			log.Warn("Failed to push metrics", zap.String("url", cfg.PushgatewayURL), zap.Error(err))
		}
	}
}
