package transform

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Reasons a row (or column) is dropped
const (
	DropMissingRequired   = "missing_required"
	DropNonPositive       = "non_positive"
	DropUnmatchedLocation = "unmatched_location"
	DropIncompleteRow     = "incomplete_row"
	DropDuplicateColumn   = "duplicate_column"
)

const maxExamples = 3

// reasonInfo holds aggregated information about a specific drop reason
type reasonInfo struct {
	count    int
	examples []string
}

// Report collects what a transform removed and why
type Report struct {
	Input   int
	Output  int
	reasons map[string]*reasonInfo
}

// NewReport creates an empty report
func NewReport() *Report {
	return &Report{reasons: make(map[string]*reasonInfo)}
}

// Add records one occurrence of reason with an example
func (r *Report) Add(reason, example string) {
	info := r.reasons[reason]
	if info == nil {
		info = &reasonInfo{examples: make([]string, 0, maxExamples)}
		r.reasons[reason] = info
	}
	info.count++
	if len(info.examples) < maxExamples {
		info.examples = append(info.examples, example)
	}
}

// Record adds n occurrences of reason at once, keeping the first examples
func (r *Report) Record(reason string, n int, examples ...string) {
	if n <= 0 {
		return
	}
	info := r.reasons[reason]
	if info == nil {
		info = &reasonInfo{examples: make([]string, 0, maxExamples)}
		r.reasons[reason] = info
	}
	info.count += n
	for _, ex := range examples {
		if len(info.examples) == maxExamples {
			break
		}
		info.examples = append(info.examples, ex)
	}
}

// Count returns how many times reason was recorded
func (r *Report) Count(reason string) int {
	if info := r.reasons[reason]; info != nil {
		return info.count
	}
	return 0
}

// Examples returns up to three examples recorded for reason
func (r *Report) Examples(reason string) []string {
	if info := r.reasons[reason]; info != nil {
		return append([]string(nil), info.examples...)
	}
	return nil
}

// Reasons lists the recorded reasons in sorted order
func (r *Report) Reasons() []string {
	out := make([]string, 0, len(r.reasons))
	for k := range r.reasons {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dropped is the number of rows removed
func (r *Report) Dropped() int { return r.Input - r.Output }

// Log writes one consolidated line per reason, then a summary line
func (r *Report) Log(logger *zap.Logger, file string) {
	for _, reason := range r.Reasons() {
		logger.Warn(r.message(reason, file, r.reasons[reason]),
			zap.String("reason", reason),
			zap.Int("count", r.reasons[reason].count),
		)
	}
	logger.Info("Data transformation completed successfully",
		zap.String("file", file),
		zap.Int("rows_in", r.Input),
		zap.Int("rows_out", r.Output),
	)
}

func (r *Report) message(reason, file string, info *reasonInfo) string {
	var description, action string

	switch reason {
	case DropMissingRequired:
		description = "rows missing passenger_count or fare_amount"
		action = "Dropping rows"
	case DropNonPositive:
		description = "rows with non-positive trip_distance, passenger_count or fare_amount"
		action = "Dropping rows"
	case DropUnmatchedLocation:
		description = "rows whose pickup or dropoff location is not in the zone table"
		action = "Dropping rows"
	case DropIncompleteRow:
		description = "rows with missing values after enrichment"
		action = "Dropping rows"
	case DropDuplicateColumn:
		description = "columns that collide once lowercased"
		action = "Keeping the first column"
	default:
		description = "unknown issue"
		action = "Dropping rows"
	}

	return fmt.Sprintf("File %s has %s (%d occurrences). %s. Examples: %s",
		file, description, info.count, action, strings.Join(info.examples, ", "))
}
