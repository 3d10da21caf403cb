package pipeline

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// Stats tracks what a run did.
type Stats struct {
	RunID          string
	Started        time.Time
	Finished       time.Time
	FilesSeen      int
	FilesSucceeded int
	FilesFailed    int
	RowsExtracted  int
	RowsKept       int
	RowsLoaded     int
	Failed         []string
}

// Duration is the wall time of the run so far.
func (s *Stats) Duration() time.Duration {
	if s.Finished.IsZero() {
		return time.Since(s.Started)
	}
	return s.Finished.Sub(s.Started)
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s *Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("run_id", s.RunID)
	enc.AddInt("files_seen", s.FilesSeen)
	enc.AddInt("files_succeeded", s.FilesSucceeded)
	enc.AddInt("files_failed", s.FilesFailed)
	enc.AddInt("rows_extracted", s.RowsExtracted)
	enc.AddInt("rows_kept", s.RowsKept)
	enc.AddInt("rows_loaded", s.RowsLoaded)
	enc.AddDuration("duration", s.Duration())
	return nil
}
