package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/joshafouda/taxitripapp/config"
	"github.com/joshafouda/taxitripapp/internal/logging"
	"github.com/joshafouda/taxitripapp/internal/metrics"
	"github.com/joshafouda/taxitripapp/pipeline"
	"github.com/joshafouda/taxitripapp/sink"
	"github.com/joshafouda/taxitripapp/source"
	"github.com/joshafouda/taxitripapp/zones"
)

// etl runs the pipeline over the input folder. Per-file failures are only logged;
// an error here means the run could not start or was interrupted.
func etl(ctx context.Context, cfg config.AppConfig, logs *logging.Loggers, rec *metrics.Recorder, runID string, limit int) error {
	log := logs.Stage(logging.Pipeline)

	ex, err := source.OpenDuckDB()
	if err != nil {
		return err
	}
	defer func() { _ = ex.Close() }()

	var db *sql.DB
	needDB := cfg.Pipeline.Sink == "database" || cfg.Zones.Source == "database"
	if needDB {
		db, _, err = sink.Open(cfg.Database.ConnectionURL())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() { _ = db.Close() }()
	}

	zl, err := zoneLoader(cfg.Zones, db)
	if err != nil {
		return err
	}
	sk, err := openSink(cfg, ex.DB())
	if err != nil {
		return err
	}
	defer func() {
		if err := sk.Close(); err != nil {
			log.Warn("Failed to close sink", zap.Error(err))
		}
	}()

	exts := []string{".parquet"}
	if cfg.Pipeline.IncludeCSV {
		exts = append(exts, ".csv")
	}
	p := pipeline.New(ex, zl, nil, sk,
		pipeline.WithLoggers(logs),
		pipeline.WithMetrics(rec),
		pipeline.WithRunID(runID),
		pipeline.WithExtensions(exts...),
		pipeline.WithOutputDir(cfg.Pipeline.OutputDir),
		pipeline.WithLimit(limit),
	)
	log.Info("Loading into "+sk.Describe(), zap.String("input_dir", cfg.Pipeline.InputDir))

	stats, err := p.Run(ctx, cfg.Pipeline.InputDir)
	if err != nil {
		return err
	}
	if stats.FilesFailed > 0 {
		log.Warn("Some files were skipped", zap.Strings("files", stats.Failed))
	}
	return nil
}

func zoneLoader(cfg config.ZonesConfig, db *sql.DB) (zones.Loader, error) {
	if cfg.Source == "database" {
		return zones.NewSQLLoader(db, cfg.Table)
	}
	return zones.FileLoader{Path: cfg.Path}, nil
}

// openSink builds the configured sink. The parquet sink writes through duck, the
// database frames are extracted into, so it copies their tables directly.
func openSink(cfg config.AppConfig, duck *sql.DB) (sink.Sink, error) {
	if cfg.Pipeline.Sink == "database" {
		sk, err := sink.OpenSQL(cfg.Database.ConnectionURL(), cfg.Pipeline.Table)
		if err != nil {
			return nil, err
		}
		return sk.WithBatchRows(cfg.Pipeline.BatchRows), nil
	}

	pq := sink.NewParquetSink(duck, cfg.Pipeline.OutputPath())
	s3cfg := cfg.Pipeline.S3
	if s3cfg.Bucket == "" {
		return pq, nil
	}
	client, err := sink.NewS3Client(sink.S3Config{
		Bucket:   s3cfg.Bucket,
		Key:      s3cfg.Key,
		Region:   s3cfg.Region,
		Endpoint: s3cfg.Endpoint,
	})
	if err != nil {
		return nil, err
	}
	return sink.NewS3Mirror(pq, client, s3cfg.Bucket, s3cfg.Key), nil
}
