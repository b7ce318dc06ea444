package core

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gush-sh/gush/core/history"
	"github.com/gush-sh/gush/core/logger"
)

// testShell is a Shell wired to buffers instead of a terminal, with process
// termination stubbed out.
type testShell struct {
	*Shell
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	exitCode *int
}

func newTestShell(t *testing.T) *testShell {
	t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	exitCode := -1

	s := &Shell{
		History:  history.New(afero.NewMemMapFs(), 0),
		Log:      logger.Nop(),
		stdin:    strings.NewReader(""),
		stdout:   stdout,
		stderr:   stderr,
		exitFunc: func(code int) { exitCode = code },
	}

	return &testShell{Shell: s, stdout: stdout, stderr: stderr, exitCode: &exitCode}
}

func (ts *testShell) stdio() IO {
	return IO{Stdin: ts.Shell.stdin, Stdout: ts.stdout, Stderr: ts.stderr}
}

func TestEcho(t *testing.T) {
	cases := []struct {
		name     string
		args     []string
		expected string
	}{
		{"no args", []string{"echo"}, "\n"},
		{"one arg", []string{"echo", "hi"}, "hi\n"},
		{"space joined", []string{"echo", "hello", "world"}, "hello world\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestShell(t)

			ret := Echo(ts.Shell, tc.args, ts.stdio())

			assert.Equal(t, 0, ret)
			assert.Equal(t, tc.expected, ts.stdout.String())
		})
	}
}

func TestPwd(t *testing.T) {
	ts := newTestShell(t)

	wd, err := os.Getwd()
	require.NoError(t, err)

	ret := Pwd(ts.Shell, []string{"pwd"}, ts.stdio())

	assert.Equal(t, 0, ret)
	assert.Equal(t, wd+"\n", ts.stdout.String())
}

// chdirForTest changes into dir and restores the previous working directory
// when the test ends. cd mutates process-global state, so these tests must
// not run in parallel.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestCd(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)

	work := t.TempDir()
	sub := filepath.Join(work, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	chdirForTest(t, work)

	t.Run("relative path", func(t *testing.T) {
		ts := newTestShell(t)

		ret := Cd(ts.Shell, []string{"cd", "sub"}, ts.stdio())

		assert.Equal(t, 0, ret)
		assert.Equal(t, sub, ts.Getwd())

		require.NoError(t, os.Chdir(work))
	})

	t.Run("missing directory leaves cwd unchanged", func(t *testing.T) {
		ts := newTestShell(t)

		ret := Cd(ts.Shell, []string{"cd", "/nonexistent"}, ts.stdio())

		assert.Equal(t, 1, ret)
		assert.Equal(t, "cd: /nonexistent: No such file or directory\n", ts.stderr.String())
		assert.Equal(t, work, ts.Getwd())
	})

	t.Run("no argument goes home", func(t *testing.T) {
		ts := newTestShell(t)

		ret := Cd(ts.Shell, []string{"cd"}, ts.stdio())

		assert.Equal(t, 0, ret)
		assert.Equal(t, home, ts.Getwd())

		require.NoError(t, os.Chdir(work))
	})

	t.Run("tilde expansion", func(t *testing.T) {
		require.NoError(t, os.Mkdir(filepath.Join(home, "dir"), 0755))
		ts := newTestShell(t)

		ret := Cd(ts.Shell, []string{"cd", "~/dir"}, ts.stdio())

		assert.Equal(t, 0, ret)
		assert.Equal(t, filepath.Join(home, "dir"), ts.Getwd())

		require.NoError(t, os.Chdir(work))
	})

	t.Run("too many arguments", func(t *testing.T) {
		ts := newTestShell(t)

		ret := Cd(ts.Shell, []string{"cd", "a", "b"}, ts.stdio())

		assert.Equal(t, 1, ret)
		assert.Contains(t, ts.stderr.String(), "too many arguments")
	})
}

func TestType(t *testing.T) {
	bin := t.TempDir()
	tool := writeExecutable(t, bin, "sometool")
	writeExecutable(t, bin, "echo")
	t.Setenv(EnvPath, bin)

	t.Run("builtin", func(t *testing.T) {
		ts := newTestShell(t)

		ret := Type(ts.Shell, []string{"type", "cd"}, ts.stdio())

		assert.Equal(t, 0, ret)
		assert.Equal(t, "cd is a shell builtin\n", ts.stdout.String())
	})

	t.Run("builtin wins over executable of the same name", func(t *testing.T) {
		ts := newTestShell(t)

		ret := Type(ts.Shell, []string{"type", "echo"}, ts.stdio())

		assert.Equal(t, 0, ret)
		assert.Equal(t, "echo is a shell builtin\n", ts.stdout.String())
	})

	t.Run("executable", func(t *testing.T) {
		ts := newTestShell(t)

		ret := Type(ts.Shell, []string{"type", "sometool"}, ts.stdio())

		assert.Equal(t, 0, ret)
		assert.Equal(t, "sometool is "+tool+"\n", ts.stdout.String())
	})

	t.Run("not found", func(t *testing.T) {
		ts := newTestShell(t)

		ret := Type(ts.Shell, []string{"type", "missing-thing"}, ts.stdio())

		assert.Equal(t, 1, ret)
		assert.Equal(t, "missing-thing: not found\n", ts.stdout.String())
	})

	t.Run("multiple operands", func(t *testing.T) {
		ts := newTestShell(t)

		Type(ts.Shell, []string{"type", "pwd", "sometool"}, ts.stdio())

		assert.Equal(t, "pwd is a shell builtin\nsometool is "+tool+"\n", ts.stdout.String())
	})

	t.Run("missing argument", func(t *testing.T) {
		ts := newTestShell(t)

		ret := Type(ts.Shell, []string{"type"}, ts.stdio())

		assert.Equal(t, 1, ret)
		assert.Contains(t, ts.stderr.String(), "missing argument")
	})
}

func TestExit(t *testing.T) {
	t.Run("default code", func(t *testing.T) {
		ts := newTestShell(t)

		Exit(ts.Shell, []string{"exit"}, ts.stdio())

		assert.Equal(t, 0, *ts.exitCode)
	})

	t.Run("explicit code", func(t *testing.T) {
		ts := newTestShell(t)

		Exit(ts.Shell, []string{"exit", "3"}, ts.stdio())

		assert.Equal(t, 3, *ts.exitCode)
	})

	t.Run("non-numeric code", func(t *testing.T) {
		ts := newTestShell(t)

		Exit(ts.Shell, []string{"exit", "abc"}, ts.stdio())

		assert.Equal(t, 1, *ts.exitCode)
		assert.Equal(t, "exit: abc: numeric argument required\n", ts.stderr.String())
	})
}

func TestHistoryBuiltin(t *testing.T) {
	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	seed := func(ts *testShell) {
		for _, line := range []string{"echo one", "pwd", "echo three"} {
			ts.History.Add(line)
		}
	}

	t.Run("list", func(t *testing.T) {
		ts := newTestShell(t)
		seed(ts)

		ret := HistoryBuiltin(ts.Shell, []string{"history"}, ts.stdio())

		assert.Equal(t, 0, ret)
		g.Assert(t, "list", ts.stdout.Bytes())
	})

	t.Run("tail", func(t *testing.T) {
		ts := newTestShell(t)
		seed(ts)

		ret := HistoryBuiltin(ts.Shell, []string{"history", "2"}, ts.stdio())

		assert.Equal(t, 0, ret)
		g.Assert(t, "tail", ts.stdout.Bytes())
	})

	t.Run("bad numeric argument", func(t *testing.T) {
		ts := newTestShell(t)
		seed(ts)

		ret := HistoryBuiltin(ts.Shell, []string{"history", "abc"}, ts.stdio())

		assert.Equal(t, 1, ret)
		assert.Equal(t, "history: abc: numeric argument required\n", ts.stderr.String())
	})

	t.Run("write and read back", func(t *testing.T) {
		ts := newTestShell(t)
		seed(ts)

		ret := HistoryBuiltin(ts.Shell, []string{"history", "-w", "/hist"}, ts.stdio())
		assert.Equal(t, 0, ret)

		ts.History.Add("transient entry")
		ret = HistoryBuiltin(ts.Shell, []string{"history", "-r", "/hist"}, ts.stdio())
		assert.Equal(t, 0, ret)
		assert.Equal(t, []string{"echo one", "pwd", "echo three"}, ts.History.Entries())
	})

	t.Run("append since checkpoint", func(t *testing.T) {
		ts := newTestShell(t)
		seed(ts)

		require.Equal(t, 0, HistoryBuiltin(ts.Shell, []string{"history", "-w", "/hist"}, ts.stdio()))

		ts.History.Add("echo four")
		require.Equal(t, 0, HistoryBuiltin(ts.Shell, []string{"history", "-a", "/hist"}, ts.stdio()))

		require.Equal(t, 0, HistoryBuiltin(ts.Shell, []string{"history", "-r", "/hist"}, ts.stdio()))
		assert.Equal(t, []string{"echo one", "pwd", "echo three", "echo four"}, ts.History.Entries())
	})
}

func TestAllBuiltinsRegistered(t *testing.T) {
	for _, name := range []string{"exit", "echo", "pwd", "cd", "type", "history"} {
		t.Run(name, func(t *testing.T) {
			assert.NotNil(t, AllBuiltins[name])
		})
	}
}
