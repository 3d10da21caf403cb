package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joshafouda/taxitripapp/frame"
	"github.com/joshafouda/taxitripapp/internal/logging"
	"github.com/joshafouda/taxitripapp/internal/metrics"
	"github.com/joshafouda/taxitripapp/sink"
	"github.com/joshafouda/taxitripapp/transform"
	"github.com/joshafouda/taxitripapp/zones"
)

// Stage identifies a step of the per-file pipeline.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageLoad      Stage = "load"
)

// Extractor reads one input file.
type Extractor interface {
	Extract(ctx context.Context, path string) (*frame.Frame, error)
}

// Pipeline runs extract, transform and load over every input file. A failing file is
// logged and skipped; it never stops the run.
type Pipeline struct {
	extractor   Extractor
	zones       zones.Loader
	transformer *transform.Transformer
	sink        sink.Sink
	logs        *logging.Loggers
	metrics     *metrics.Recorder
	runID       string
	exts        []string
	outputDir   string
	limit       int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLoggers sets the stage loggers. The default discards everything.
func WithLoggers(l *logging.Loggers) Option { return func(p *Pipeline) { p.logs = l } }

// WithMetrics records file and row counts.
func WithMetrics(m *metrics.Recorder) Option { return func(p *Pipeline) { p.metrics = m } }

// WithRunID sets the run id reported in Stats. The default is a random UUID.
func WithRunID(id string) Option { return func(p *Pipeline) { p.runID = id } }

// WithExtensions sets which file extensions Run picks up. The default is .parquet.
func WithExtensions(exts ...string) Option { return func(p *Pipeline) { p.exts = exts } }

// WithOutputDir makes Run create dir before processing.
func WithOutputDir(dir string) Option { return func(p *Pipeline) { p.outputDir = dir } }

// WithLimit caps how many files Run processes. Zero means no cap.
func WithLimit(n int) Option { return func(p *Pipeline) { p.limit = n } }

// New creates a pipeline. A nil transformer uses the default column names.
func New(ex Extractor, zl zones.Loader, tr *transform.Transformer, sk sink.Sink, opts ...Option) *Pipeline {
	if tr == nil {
		tr = transform.New(transform.Options{})
	}
	p := &Pipeline{
		extractor:   ex,
		zones:       zl,
		transformer: tr,
		sink:        sk,
		logs:        logging.Nop(),
		exts:        []string{".parquet"},
	}
	for _, o := range opts {
		o(p)
	}
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	return p
}

// RunID returns the id of this pipeline's run.
func (p *Pipeline) RunID() string { return p.runID }

// Extract reads path. It returns nil when the file cannot be read.
func (p *Pipeline) Extract(ctx context.Context, path string) *frame.Frame {
	log := p.logs.Stage(logging.Extract).With(zap.String("file", path))
	start := time.Now()
	var f *frame.Frame
	err := guard(StageExtract, func() error {
		var err error
		f, err = p.extractor.Extract(ctx, path)
		if err == nil && f == nil {
			err = fmt.Errorf("extractor returned no frame")
		}
		return err
	})
	p.metrics.Observe(string(StageExtract), start)
	if err != nil {
		log.Error("An error occurred while extracting file", zap.Error(err))
		p.metrics.File(string(StageExtract), metrics.OutcomeFailed)
		return nil
	}
	log.Info("File extracted successfully", zap.Int("rows", f.Len()), zap.Int("columns", f.Width()))
	p.metrics.File(string(StageExtract), metrics.OutcomeOK)
	p.metrics.Rows(string(StageExtract), f.Len())
	return f
}

// Transform filters and enriches raw. The zone table is read again on every call. It
// returns nil on any failure.
func (p *Pipeline) Transform(ctx context.Context, raw *frame.Frame, name string) *frame.Frame {
	log := p.logs.Stage(logging.Transform).With(zap.String("file", name))
	start := time.Now()
	var out *frame.Frame
	var rep *transform.Report
	err := guard(StageTransform, func() error {
		idx, err := p.zones.Load(ctx)
		if err != nil {
			return fmt.Errorf("load zones: %w", err)
		}
		out, rep, err = p.transformer.Transform(ctx, raw, idx)
		return err
	})
	p.metrics.Observe(string(StageTransform), start)
	if err != nil {
		log.Error("An error occurred while transforming the data", zap.Error(err))
		p.metrics.File(string(StageTransform), metrics.OutcomeFailed)
		return nil
	}
	rep.Log(log, name)
	p.metrics.File(string(StageTransform), metrics.OutcomeOK)
	p.metrics.Rows(string(StageTransform), out.Len())
	return out
}

// Load appends f to the sink and reports whether it succeeded.
func (p *Pipeline) Load(ctx context.Context, f *frame.Frame, name string) bool {
	log := p.logs.Stage(logging.Load).With(zap.String("file", name), zap.String("sink", p.sink.Describe()))
	start := time.Now()
	err := guard(StageLoad, func() error { return p.sink.Load(ctx, f) })
	p.metrics.Observe(string(StageLoad), start)
	if err != nil {
		log.Error("An error occurred while loading data", zap.Error(err))
		p.metrics.File(string(StageLoad), metrics.OutcomeFailed)
		return false
	}
	log.Info("Data loaded successfully", zap.Int("rows", f.Len()))
	p.metrics.File(string(StageLoad), metrics.OutcomeOK)
	p.metrics.Rows(string(StageLoad), f.Len())
	return true
}

// ProcessFile runs the three stages on one file and records the outcome in stats.
func (p *Pipeline) ProcessFile(ctx context.Context, path string, stats *Stats) bool {
	log := p.logs.Stage(logging.Pipeline).With(zap.String("file", path))
	name := filepath.Base(path)
	stats.FilesSeen++
	fail := func() bool {
		stats.FilesFailed++
		stats.Failed = append(stats.Failed, name)
		return false
	}

	log.Info("Starting data extraction...")
	raw := p.Extract(ctx, path)
	if raw == nil {
		log.Warn("Data extraction failed, skipping file")
		return fail()
	}
	log.Info("Data extraction completed.")
	stats.RowsExtracted += raw.Len()
	defer p.drop(ctx, raw)

	log.Info("Starting data transformation...")
	out := p.Transform(ctx, raw, name)
	if out == nil {
		log.Warn("Data transformation failed, skipping file")
		return fail()
	}
	log.Info("Data transformation completed.")
	stats.RowsKept += out.Len()
	defer p.drop(ctx, out)

	log.Info("Starting data loading...")
	if !p.Load(ctx, out, name) {
		log.Warn("Data loading failed")
		return fail()
	}
	log.Info("Data loading completed.")
	stats.RowsLoaded += out.Len()
	stats.FilesSucceeded++
	return true
}

// drop releases the table behind f once the file is done with, even after ctx is
// cancelled.
func (p *Pipeline) drop(ctx context.Context, f *frame.Frame) {
	if err := f.Drop(context.WithoutCancel(ctx)); err != nil {
		p.logs.Stage(logging.Pipeline).Warn("Failed to drop table", zap.String("table", f.Table()), zap.Error(err))
	}
}

// Run processes every input file of dir in lexical order. It returns an error only when
// dir cannot be listed, the output directory cannot be created or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, dir string) (*Stats, error) {
	log := p.logs.Stage(logging.Pipeline)
	stats := &Stats{RunID: p.runID, Started: time.Now()}
	defer func() {
		stats.Finished = time.Now()
		p.metrics.Finish(stats.Finished)
	}()

	if p.outputDir != "" {
		if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
			return stats, fmt.Errorf("create output dir: %w", err)
		}
	}
	files, err := ListInputs(dir, p.exts...)
	if err != nil {
		return stats, err
	}
	if p.limit > 0 && len(files) > p.limit {
		files = files[:p.limit]
	}
	log.Info("Starting ETL run", zap.String("input_dir", dir), zap.Int("files", len(files)))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			log.Warn("Run cancelled", zap.Error(err))
			return stats, err
		}
		p.ProcessFile(ctx, path, stats)
	}
	stats.Finished = time.Now()
	log.Info("ETL run completed", zap.Object("stats", stats))
	return stats, nil
}

// ListInputs returns the files of dir whose extension matches one of exts, compared
// case-insensitively, sorted by name.
func ListInputs(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		for _, want := range exts {
			if strings.EqualFold(ext, want) {
				out = append(out, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// guard runs fn and turns a panic into an error.
func guard(stage Stage, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", stage, r)
		}
	}()
	return fn()
}
