// Package diag provides a small leveled logger gated by environment
// variables, and a shutdown-error aggregator built on multierr.
package diag

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// Level controls which categories of debug output are emitted.
type Level int

const (
	LevelOff Level = iota
	LevelInfo
	LevelDebug
)

// Logger writes timestamped, categorized diagnostics to stderr when the
// corresponding VOICETERM_DEBUG_* environment variable is set. It never
// writes to stdout, since stdout is the mirrored PTY stream.
type Logger struct {
	mu    sync.Mutex
	level Level
	cats  map[string]bool
}

// New builds a Logger from the process environment. VOICETERM_DEBUG=1
// enables LevelDebug for all categories; VOICETERM_DEBUG_<CATEGORY>=1
// enables just that category (e.g. VOICETERM_DEBUG_VOICE,
// VOICETERM_DEBUG_KEYS, VOICETERM_DEBUG_SCROLL).
func New() *Logger {
	l := &Logger{cats: map[string]bool{}}
	if os.Getenv("VOICETERM_DEBUG") == "1" {
		l.level = LevelDebug
	} else {
		l.level = LevelInfo
	}
	for _, cat := range []string{"VOICE", "KEYS", "SCROLL", "GEOMETRY", "PTY", "WAKEWORD", "WRITER"} {
		if os.Getenv("VOICETERM_DEBUG_"+cat) == "1" {
			l.cats[cat] = true
		}
	}
	return l
}

// Enabled reports whether category-level debug output should be emitted.
func (l *Logger) Enabled(category string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level == LevelDebug {
		return true
	}
	return l.cats[category]
}

// Debugf emits a debug line for category if enabled.
func (l *Logger) Debugf(category, format string, args ...interface{}) {
	if !l.Enabled(category) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(os.Stderr, "[%s] %s %s\n", time.Now().Format(time.RFC3339Nano), category, fmt.Sprintf(format, args...))
}

// Infof always emits, regardless of debug gating.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(os.Stderr, "[%s] %s\n", time.Now().Format(time.RFC3339Nano), fmt.Sprintf(format, args...))
}

// ShutdownErrors aggregates independent teardown errors (PTY kill, writer
// flush, voice worker join) into a single reported error, matching the
// multi-step cleanup pattern used across the session shutdown path.
type ShutdownErrors struct {
	mu  sync.Mutex
	err error
}

// Add records err if non-nil.
func (s *ShutdownErrors) Add(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = multierr.Append(s.err, err)
}

// Err returns the aggregated error, or nil if nothing was added.
func (s *ShutdownErrors) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
