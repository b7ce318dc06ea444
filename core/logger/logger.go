// Package logger captures shell events as newline delimited JSON objects:
// session lifecycle, executed commands and anomalies like discarded interior
// redirections. The event log is diagnostic only; nothing in it reaches the
// user's terminal streams.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// LogEntry is one logged event. Exactly one of the event fields is set.
type LogEntry struct {
	TimestampMicros int64 `json:"timestamp_micros"`

	SessionStart      *SessionStart      `json:"session_start,omitempty"`
	SessionEnd        *SessionEnd        `json:"session_end,omitempty"`
	CommandRun        *CommandRun        `json:"command_run,omitempty"`
	CommandExit       *CommandExit       `json:"command_exit,omitempty"`
	CommandNotFound   *CommandNotFound   `json:"command_not_found,omitempty"`
	SyntaxError       *SyntaxError       `json:"syntax_error,omitempty"`
	DiscardedRedirect *DiscardedRedirect `json:"discarded_redirect,omitempty"`
}

// LogType is implemented by every event that can populate a LogEntry.
type LogType interface {
	setLogType(le *LogEntry)
}

// SessionStart marks the beginning of an interactive session.
type SessionStart struct {
	Pid int `json:"pid"`
}

// SessionEnd marks a clean shutdown, via exit or end-of-input.
type SessionEnd struct {
	ExitCode int `json:"exit_code"`
}

// CommandRun records a spawned external command.
type CommandRun struct {
	Argv []string `json:"argv"`
	Path string   `json:"path"`
}

// CommandExit records a reaped stage. Exit statuses are observed for
// reporting only and never fed back into shell state.
type CommandExit struct {
	Name     string `json:"name"`
	ExitCode int    `json:"exit_code"`
	Builtin  bool   `json:"builtin,omitempty"`
	Err      string `json:"err,omitempty"`
}

// CommandNotFound records a failed executable resolution.
type CommandNotFound struct {
	Name string `json:"name"`
}

// SyntaxError records an abandoned input line.
type SyntaxError struct {
	Line   string `json:"line"`
	Reason string `json:"reason"`
}

// DiscardedRedirect records a redirection target on an interior pipeline
// stage whose stream is fixed to the connecting pipe. Logged rather than
// silently dropped so the surprise is observable.
type DiscardedRedirect struct {
	Name   string `json:"name"`
	Target string `json:"target"`
}

func (e *SessionStart) setLogType(le *LogEntry)      { le.SessionStart = e }
func (e *SessionEnd) setLogType(le *LogEntry)        { le.SessionEnd = e }
func (e *CommandRun) setLogType(le *LogEntry)        { le.CommandRun = e }
func (e *CommandExit) setLogType(le *LogEntry)       { le.CommandExit = e }
func (e *CommandNotFound) setLogType(le *LogEntry)   { le.CommandNotFound = e }
func (e *SyntaxError) setLogType(le *LogEntry)       { le.SyntaxError = e }
func (e *DiscardedRedirect) setLogType(le *LogEntry) { le.DiscardedRedirect = e }

// Logger exports events in newline delimited JSON object format.
type Logger struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewJSONLines creates a Logger writing one JSON object per line to w.
func NewJSONLines(w io.Writer) *Logger {
	return &Logger{w: w, now: time.Now}
}

// Nop creates a Logger that discards everything.
func Nop() *Logger {
	return NewJSONLines(io.Discard)
}

// Record serializes and writes one event.
func (l *Logger) Record(event LogType) error {
	le := &LogEntry{TimestampMicros: l.now().UnixMicro()}
	event.setLogType(le)

	entry, err := json.Marshal(le)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = fmt.Fprintln(l.w, string(entry))
	return err
}
