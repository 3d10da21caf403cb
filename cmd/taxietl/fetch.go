package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/joshafouda/taxitripapp/config"
	"github.com/joshafouda/taxitripapp/fetcher"
	"github.com/joshafouda/taxitripapp/internal/metrics"
)

// fetch downloads the missing monthly files and, for a CSV zone source, the zone table.
func fetch(ctx context.Context, cfg config.AppConfig, log *zap.Logger, rec *metrics.Recorder) error {
	client := fetcher.NewClient(cfg.Fetch.FetchTimeout())
	f := fetcher.New(client, fetcher.Options{
		BaseURL:   cfg.Fetch.BaseURL,
		Dataset:   cfg.Fetch.Dataset,
		Dir:       cfg.Fetch.Dir,
		StartYear: cfg.Fetch.StartYear,
		EndYear:   cfg.Fetch.EndYear,
		Delay:     cfg.Fetch.FetchDelay(),
	}, fetcher.WithLogger(log), fetcher.WithMetrics(rec))

	sum, err := f.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Download interrupted", zap.Int("downloaded", sum.Downloaded))
			return nil
		}
		return err
	}

	if cfg.Zones.Source != "csv" {
		return nil
	}
	url := cfg.Zones.DownloadURL
	if url == "" {
		url = fetcher.DefaultZonesURL
	}
	if _, err := f.FetchFile(ctx, url, cfg.Zones.Path); err != nil {
		// an older copy on disk, if any, is still usable
		log.Error("Failed to download zone lookup table", zap.String("url", url), zap.Error(err))
	}
	return nil
}
