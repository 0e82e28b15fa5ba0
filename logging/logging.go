// Package logging provides the structured logger used throughout the
// engine. Every component receives a *Logger at construction time rather
// than reaching for a global, so multiple engine instances in the same
// process never interleave unrelated log streams.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with the fields every tsdbcore component
// wants to carry: the owning component name and, where applicable, a
// shard index.
type Logger struct {
	zl zerolog.Logger
}

// New creates a Logger writing newline-delimited JSON to w, whether or not
// w is a terminal. Pass os.Stderr for typical use.
func New(w io.Writer, level zerolog.Level) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	return &Logger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// Nop returns a Logger that discards everything. Useful as a default for
// configurations that don't specify a logger.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Default returns a JSON logger on stderr at info level.
func Default() *Logger {
	return New(os.Stderr, zerolog.InfoLevel)
}

// With returns a child Logger that annotates every entry with component.
func (l *Logger) With(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// WithShard returns a child Logger annotated with a shard index, commonly
// used by index/pipeline/engine shards.
func (l *Logger) WithShard(shard int) *Logger {
	return &Logger{zl: l.zl.With().Int("shard", shard).Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }
