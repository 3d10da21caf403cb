package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPaths are tried in order when Load is given an empty path.
var DefaultPaths = []string{"config.json", "config.yml", "config.yaml"}

// Environment variables that override file values.
const (
	EnvDBURL      = "TAXI_DB_URL"
	EnvDBHost     = "TAXI_DB_HOST"
	EnvDBPassword = "TAXI_DB_PASSWORD"
)

// Load reads, defaults and validates the configuration at path. Files ending in .json are
// decoded as JSON, anything else as YAML. A JSON file may also hold only the database
// credentials at its top level ({"user": ..., "password": ..., "host": ..., "port": ...,
// "name": ...}); every other setting then takes its default.
func Load(path string) (AppConfig, error) {
	data, path, err := read(path)
	if err != nil {
		return AppConfig{}, err
	}

	var cfg AppConfig
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = decodeJSON(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return AppConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}

	applyEnv(&cfg)
	ApplyDefaults(&cfg, time.Now())
	if err := Validate(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ErrNoDatabase is returned when a database sink or zone source has no connection settings.
var ErrNoDatabase = errors.New("database settings are required when the sink or zone source is a database")

// Validate checks every section against its struct tags.
func Validate(cfg AppConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	d := cfg.Database
	local := d.Driver == "sqlite" || d.Driver == "duckdb"
	needsDB := cfg.Pipeline.Sink == "database" || cfg.Zones.Source == "database"
	if needsDB && d.URL == "" && d.Host == "" && !(local && d.Name != "") {
		return ErrNoDatabase
	}
	return nil
}

// ApplyDefaults fills every empty setting.
func ApplyDefaults(cfg *AppConfig, now time.Time) {
	f := &cfg.Fetch
	setString(&f.BaseURL, "https://d37ci6vzurychx.cloudfront.net/trip-data")
	setString(&f.Dataset, "yellow_tripdata")
	setString(&f.Dir, "histo_data_files")
	setInt(&f.StartYear, 2019)
	setInt(&f.EndYear, now.Year())
	setInt(&f.DelayMS, 1000)
	setInt(&f.TimeoutMS, 600000)

	z := &cfg.Zones
	setString(&z.Source, "csv")
	setString(&z.Path, "taxi_zone_lookup.csv")
	setString(&z.Table, "taxi_zone_lookup")

	p := &cfg.Pipeline
	setString(&p.InputDir, f.Dir)
	setString(&p.OutputDir, "data_loaded")
	setString(&p.OutputFile, "transformed_taxi_data.parquet")
	setString(&p.Sink, "parquet")
	setString(&p.Table, "yellow_taxi_trips")
	setInt(&p.BatchRows, 1000)

	setString(&cfg.Logging.Dir, "logs")
	setString(&cfg.Logging.Level, "info")
	setString(&cfg.Metrics.Job, "taxietl")

	d := &cfg.Database
	if d.URL == "" && d.Host != "" {
		setString(&d.Driver, "postgresql")
		if d.Port == 0 && (d.Driver == "postgresql" || d.Driver == "postgres") {
			d.Port = 5432
		}
	}
}

// OutputPath is where the parquet sink writes.
func (p PipelineConfig) OutputPath() string { return filepath.Join(p.OutputDir, p.OutputFile) }

// FetchDelay is the pause between downloads.
func (f FetchConfig) FetchDelay() time.Duration { return time.Duration(f.DelayMS) * time.Millisecond }

// FetchTimeout is the HTTP client timeout.
func (f FetchConfig) FetchTimeout() time.Duration {
	return time.Duration(f.TimeoutMS) * time.Millisecond
}

func read(path string) ([]byte, string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		return data, path, err
	}
	var err error
	for _, p := range DefaultPaths {
		var data []byte
		data, err = os.ReadFile(p)
		if err == nil {
			return data, p, nil
		}
	}
	return nil, "", fmt.Errorf("no config file found (tried %s): %w", strings.Join(DefaultPaths, ", "), err)
}

func decodeJSON(data []byte, cfg *AppConfig) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	if !cfg.Database.IsZero() {
		return nil
	}
	var flat DatabaseConfig
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	cfg.Database = flat
	return nil
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv(EnvDBURL); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv(EnvDBHost); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv(EnvDBPassword); v != "" {
		cfg.Database.Password = v
	}
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}
