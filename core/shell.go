package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/spf13/afero"

	"github.com/gush-sh/gush/core/config"
	"github.com/gush-sh/gush/core/history"
	"github.com/gush-sh/gush/core/logger"
	"github.com/gush-sh/gush/core/parse"
)

const (
	EnvHome = "HOME"
	EnvPath = "PATH"

	DefaultPrompt = "$ "
)

// Shell holds the process-wide state of one interactive session: the line
// editor, the history list and the stream bindings used when no redirection
// applies. The working directory and environment are process-global; Chdir is
// the single place they're mutated.
type Shell struct {
	Config   *config.Configuration
	Readline *readline.Instance
	History  *history.History
	Log      *logger.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// exitFunc terminates the shell process. Swapped out in tests.
	exitFunc func(code int)

	toClose listCloser
}

// NewShell builds an interactive shell reading from the process's own stdio.
func NewShell(cfg *config.Configuration, eventLog *logger.Logger) (*Shell, error) {
	shell := &Shell{
		Config:   cfg,
		History:  history.New(afero.NewOsFs(), cfg.HistorySize),
		Log:      eventLog,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		exitFunc: os.Exit,
	}

	rlCfg := &readline.Config{
		Stdin:        readline.NewCancelableStdin(os.Stdin),
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		AutoComplete: &commandCompleter{shell: shell},
	}
	if err := rlCfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		return nil, err
	}
	shell.Readline = rl
	shell.toClose = append(shell.toClose, rl)

	if path := shell.historyPath(); path != "" {
		// A missing history file is a fresh session, not an error.
		_ = shell.History.Load(path)
	}

	_ = shell.Log.Record(&logger.SessionStart{Pid: os.Getpid()})
	return shell, nil
}

// Getenv implements Environ against the process environment.
func (s *Shell) Getenv(key string) string {
	return os.Getenv(key)
}

// Getwd implements Environ; an unresolvable working directory reads as "".
func (s *Shell) Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}

// Chdir changes the process working directory. It is the only mutation of
// process-global state the shell performs outside of spawning children.
func (s *Shell) Chdir(path string) error {
	return os.Chdir(path)
}

// HomeDir returns $HOME, used by cd and ~ expansion.
func (s *Shell) HomeDir() string {
	return s.Getenv(EnvHome)
}

// Path gets the search path for commands.
func (s *Shell) Path() []string {
	return strings.Split(s.Getenv(EnvPath), ":")
}

func (s *Shell) prompt() string {
	if s.Config != nil && s.Config.Prompt != "" {
		return s.Config.Prompt
	}
	return DefaultPrompt
}

func (s *Shell) historyPath() string {
	if s.Config == nil || s.Config.HistoryFile == "" {
		return ""
	}
	path := s.Config.HistoryFile
	if path == "~" || strings.HasPrefix(path, "~/") {
		path = filepath.Join(s.HomeDir(), strings.TrimPrefix(path, "~"))
	}
	return path
}

// Run reads and executes lines until end-of-input. An interrupt during a read
// discards the partial line and re-prompts; it never cancels an in-flight
// pipeline, because the read doesn't resume until the pipeline has drained.
func (s *Shell) Run() error {
	for {
		s.Readline.SetPrompt(s.prompt())
		line, err := s.Readline.Readline()

		switch {
		case err == io.EOF:
			return nil // Input closed, quit.

		case err == readline.ErrInterrupt:
			continue // Interrupt clears the line.

		case err != nil:
			log.Printf("Error readline: %v", err)
			continue

		default:
			line = strings.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			s.History.Add(line)
			s.runLine(line)
		}
	}
}

func (s *Shell) runLine(line string) {
	pipeline, err := parse.Line(line)
	if err != nil {
		fmt.Fprintln(s.stderr, err)
		_ = s.Log.Record(&logger.SyntaxError{Line: line, Reason: err.Error()})
		return
	}
	if len(pipeline) == 0 {
		return
	}
	s.RunPipeline(pipeline)
}

// exit flushes session state and terminates the shell process.
func (s *Shell) exit(code int) {
	if path := s.historyPath(); path != "" {
		if err := s.History.AppendSince(path); err != nil {
			fmt.Fprintf(s.stderr, "history: %s: %v\n", path, err)
		}
	}
	_ = s.Log.Record(&logger.SessionEnd{ExitCode: code})
	_ = s.toClose.Close()
	s.exitFunc(code)
}

// Close releases the line editor and appends this session's history.
func (s *Shell) Close() error {
	if path := s.historyPath(); path != "" {
		_ = s.History.AppendSince(path)
	}
	_ = s.Log.Record(&logger.SessionEnd{ExitCode: 0})
	return s.toClose.Close()
}

// commandCompleter feeds the line editor the candidate-name list: builtin
// names plus executable basenames from the search path, recomputed on demand
// so PATH changes are visible immediately.
type commandCompleter struct {
	shell *Shell
}

func (c *commandCompleter) Do(line []rune, pos int) ([][]rune, int) {
	prefix := string(line[:pos])
	if strings.ContainsAny(prefix, " \t") {
		return nil, 0 // Only the command word completes.
	}

	var out [][]rune
	for _, candidate := range c.shell.completionCandidates() {
		if strings.HasPrefix(candidate, prefix) {
			out = append(out, []rune(candidate[len(prefix):]+" "))
		}
	}
	return out, len(prefix)
}

func (s *Shell) completionCandidates() []string {
	seen := make(map[string]bool)
	for name := range AllBuiltins {
		seen[name] = true
	}

	for _, dir := range s.Path() {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if info, err := entry.Info(); err == nil && info.Mode()&0111 != 0 {
				seen[entry.Name()] = true
			}
		}
	}

	candidates := make([]string, 0, len(seen))
	for name := range seen {
		candidates = append(candidates, name)
	}
	sort.Strings(candidates)
	return candidates
}

type listCloser []io.Closer

func (lc listCloser) Close() error {
	var lastErr error
	for _, v := range lc {
		if err := v.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}
