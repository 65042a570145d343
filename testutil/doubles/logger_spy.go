package doubles

import (
	"sync"
)

// SpyLogEntry is one captured log call.
type SpyLogEntry struct {
	Level string
	Msg   string
	Args  []any
}

// LoggerSpy is an rxsql.Logger implementation that captures log calls for
// testing.
type LoggerSpy struct {
	mu      sync.Mutex
	entries []SpyLogEntry
}

// NewLoggerSpy creates a new LoggerSpy.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{}
}

// Debug captures a debug-level log call.
func (s *LoggerSpy) Debug(msg string, args ...any) {
	s.capture("debug", msg, args)
}

// Info captures an info-level log call.
func (s *LoggerSpy) Info(msg string, args ...any) {
	s.capture("info", msg, args)
}

// Warn captures a warn-level log call.
func (s *LoggerSpy) Warn(msg string, args ...any) {
	s.capture("warn", msg, args)
}

// Error captures an error-level log call.
func (s *LoggerSpy) Error(msg string, args ...any) {
	s.capture("error", msg, args)
}

func (s *LoggerSpy) capture(level, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, SpyLogEntry{Level: level, Msg: msg, Args: args})
}

// Entries returns a copy of all captured log entries.
func (s *LoggerSpy) Entries() []SpyLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]SpyLogEntry, len(s.entries))
	copy(entries, s.entries)

	return entries
}

// HasEntry checks for a captured entry with the given level and message.
func (s *LoggerSpy) HasEntry(level, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		if entry.Level == level && entry.Msg == msg {
			return true
		}
	}

	return false
}

// Reset clears all captured entries.
func (s *LoggerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = s.entries[:0]
}
