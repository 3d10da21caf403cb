package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joshafouda/taxitripapp/internal/metrics"
)

// Defaults for the public trip record release.
const (
	DefaultBaseURL  = "https://d37ci6vzurychx.cloudfront.net/trip-data"
	DefaultDataset  = "yellow_tripdata"
	DefaultZonesURL = "https://d37ci6vzurychx.cloudfront.net/misc/taxi_zone_lookup.csv"
	DefaultDelay    = time.Second

	// DefaultStartYear is the first year of the current parquet release.
	DefaultStartYear = 2019
)

// Options selects which months to download and where to put them.
type Options struct {
	BaseURL   string
	Dataset   string
	Dir       string
	StartYear int           // 0 means DefaultStartYear
	EndYear   int           // 0 means the current year
	Delay     time.Duration // 0 means DefaultDelay, negative means no pause
}

// Summary counts what a run did.
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Fetcher downloads the monthly trip files that are not on disk yet.
type Fetcher struct {
	client  *Client
	opts    Options
	log     *zap.Logger
	metrics *metrics.Recorder
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option { return func(f *Fetcher) { f.log = l } }

// WithMetrics records download outcomes.
func WithMetrics(m *metrics.Recorder) Option { return func(f *Fetcher) { f.metrics = m } }

// WithClock replaces the time source used to pick the end year and skip future months.
func WithClock(now func() time.Time) Option { return func(f *Fetcher) { f.now = now } }

// WithSleep replaces the pause between downloads.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = sleep }
}

// New creates a fetcher. Empty options fall back to the package defaults.
func New(client *Client, opts Options, options ...Option) *Fetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Dataset == "" {
		opts.Dataset = DefaultDataset
	}
	if opts.StartYear == 0 {
		opts.StartYear = DefaultStartYear
	}
	if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}
	f := &Fetcher{
		client: client,
		opts:   opts,
		log:    zap.NewNop(),
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, o := range options {
		o(f)
	}
	return f
}

// URL returns the download URL of a period.
func (f *Fetcher) URL(p Period) string {
	return f.opts.BaseURL + "/" + p.FileName(f.opts.Dataset)
}

// Run downloads every missing month. Existing files are skipped without a request; a
// failed month is logged and counted and the run moves on. Run only returns an error
// when the target directory cannot be created or ctx is cancelled.
func (f *Fetcher) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	now := f.now()
	f.log.Info("Date of historical data download", zap.Time("date", now))

	if err := os.MkdirAll(f.opts.Dir, 0o755); err != nil {
		return sum, fmt.Errorf("create %s: %w", f.opts.Dir, err)
	}

	end := f.opts.EndYear
	if end == 0 {
		end = now.Year()
	}
	for _, p := range Periods(f.opts.StartYear, end, now) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		path := filepath.Join(f.opts.Dir, p.FileName(f.opts.Dataset))
		if exists(path) {
			f.log.Info("File already exists, skipping", zap.String("file", path))
			sum.Skipped++
			f.metrics.Download(metrics.OutcomeSkipped)
			continue
		}

		url := f.URL(p)
		f.log.Info("Downloading", zap.String("file", path), zap.String("url", url))
		n, err := f.client.Download(ctx, url, path)
		switch {
		case err == nil:
			f.log.Info("Downloaded successfully", zap.String("file", path), zap.Int64("bytes", n))
			sum.Downloaded++
			f.metrics.Download(metrics.OutcomeOK)
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return sum, err
		default:
			var se *StatusError
			if errors.As(err, &se) {
				f.log.Warn("Failed to download", zap.String("file", path), zap.Int("status", se.Code))
			} else {
				f.log.Error("Error while downloading", zap.String("file", path), zap.Error(err))
			}
			sum.Failed++
			f.metrics.Download(metrics.OutcomeFailed)
		}

		if err := f.sleep(ctx, f.opts.Delay); err != nil {
			return sum, err
		}
	}

	f.log.Info("Download completed",
		zap.Int("downloaded", sum.Downloaded),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}

// FetchFile downloads url to path unless path already exists. It reports whether a
// download happened.
func (f *Fetcher) FetchFile(ctx context.Context, url, path string) (bool, error) {
	if exists(path) {
		f.log.Info("File already exists, skipping", zap.String("file", path))
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	n, err := f.client.Download(ctx, url, path)
	if err != nil {
		return false, err
	}
	f.log.Info("Downloaded successfully", zap.String("file", path), zap.Int64("bytes", n))
	return true, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
