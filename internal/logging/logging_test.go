package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestOpen_WritesOneFilePerStage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := Open(Config{Dir: dir}, zap.String("run_id", "r1"))
	require.NoError(t, err)

	l.Stage(Extract).Info("Extracting data from file", zap.String("file", "a.parquet"))
	l.Stage(Load).Error("load failed")
	require.NoError(t, l.Close())

	for _, stage := range stages {
		_, err := os.Stat(filepath.Join(dir, stage+".log"))
		require.NoError(t, err, stage)
	}

	data, err := os.ReadFile(filepath.Join(dir, "extract.log"))
	require.NoError(t, err)
	line := string(data)
	require.Contains(t, line, " - INFO - extract - Extracting data from file")
	require.Contains(t, line, "a.parquet")
	require.Contains(t, line, "r1")

	data, err = os.ReadFile(filepath.Join(dir, "load.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "ERROR")
}

func TestOpen_AppendsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		l, err := Open(Config{Dir: dir})
		require.NoError(t, err)
		l.Stage(Transform).Info("run")
		require.NoError(t, l.Close())
	}
	data, err := os.ReadFile(filepath.Join(dir, "transform.log"))
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(data), "run"))
}

func TestOpen_Level(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(Config{Dir: dir, Level: "WARN"})
	require.NoError(t, err)
	l.Stage(Fetch).Info("hidden")
	l.Stage(Fetch).Warn("shown")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(filepath.Join(dir, "fetch.log"))
	require.NoError(t, err)
	require.NotContains(t, string(data), "hidden")
	require.Contains(t, string(data), "shown")

	_, err = Open(Config{Dir: dir, Level: "loud"})
	require.Error(t, err)
}

func TestStage_UnknownAndNil(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := FromLogger(zap.New(core))
	l.Stage("s3").Info("uploaded")
	require.Equal(t, 1, logs.FilterLoggerName("pipeline.s3").Len())

	var none *Loggers
	none.Stage(Load).Info("dropped")
	none.Sync()
	require.NoError(t, none.Close())

	Nop().Stage(Extract).Info("dropped")
}
