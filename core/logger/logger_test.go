package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixedClockLogger(buf *bytes.Buffer) *Logger {
	l := NewJSONLines(buf)
	l.now = func() time.Time {
		// Go's reference timestamp.
		return time.Date(2006, 1, 2, 3, 4, 5, 0, time.UTC)
	}
	return l
}

func TestRecordWritesOneLinePerEvent(t *testing.T) {
	buf := &bytes.Buffer{}
	l := newFixedClockLogger(buf)

	require.NoError(t, l.Record(&SessionStart{Pid: 42}))
	require.NoError(t, l.Record(&CommandRun{Argv: []string{"ls", "-la"}, Path: "/bin/ls"}))
	require.NoError(t, l.Record(&SessionEnd{ExitCode: 0}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	for _, line := range lines {
		var entry LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.NotZero(t, entry.TimestampMicros)
	}
}

func TestRecordEventShapes(t *testing.T) {
	cases := []struct {
		name     string
		event    LogType
		expected string
	}{
		{
			name:     "command not found",
			event:    &CommandNotFound{Name: "frob"},
			expected: `"command_not_found":{"name":"frob"}`,
		},
		{
			name:     "discarded redirect",
			event:    &DiscardedRedirect{Name: "cat", Target: "x.txt"},
			expected: `"discarded_redirect":{"name":"cat","target":"x.txt"}`,
		},
		{
			name:     "syntax error",
			event:    &SyntaxError{Line: "echo '", Reason: "syntax error: unterminated quote"},
			expected: `"syntax_error":`,
		},
		{
			name:     "builtin exit",
			event:    &CommandExit{Name: "pwd", ExitCode: 0, Builtin: true},
			expected: `"builtin":true`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			l := newFixedClockLogger(buf)

			require.NoError(t, l.Record(tc.event))
			assert.Contains(t, buf.String(), tc.expected)
		})
	}
}

func TestNopDiscards(t *testing.T) {
	assert.NoError(t, Nop().Record(&SessionStart{Pid: 1}))
}
