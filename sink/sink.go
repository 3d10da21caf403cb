// Package sink persists transformed frames to a relational table or a parquet file.
package sink

import (
	"context"
	"errors"

	"github.com/joshafouda/taxitripapp/frame"
)

// ErrEmptyFrame is returned when a frame without columns is handed to a sink.
var ErrEmptyFrame = errors.New("frame has no columns")

// Sink appends frames to a destination. Load of a frame with zero rows writes nothing.
type Sink interface {
	Load(ctx context.Context, f *frame.Frame) error
	Describe() string
	Close() error
}
