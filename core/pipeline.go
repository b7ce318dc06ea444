package core

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/gush-sh/gush/core/logger"
	"github.com/gush-sh/gush/core/parse"
)

// pipePair wraps one unidirectional pipe so both ends are released on every
// exit path, including error aborts. Close is idempotent per end.
type pipePair struct {
	r, w *os.File
}

func newPipePair() (*pipePair, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &pipePair{r: r, w: w}, nil
}

func (p *pipePair) CloseRead() {
	if p != nil && p.r != nil {
		p.r.Close()
		p.r = nil
	}
}

func (p *pipePair) CloseWrite() {
	if p != nil && p.w != nil {
		p.w.Close()
		p.w = nil
	}
}

func (p *pipePair) Close() error {
	p.CloseWrite()
	p.CloseRead()
	return nil
}

// startedProc is a spawned external stage awaiting its reap.
type startedProc struct {
	name string
	cmd  *exec.Cmd
}

// RunPipeline executes an ordered stage list. External stages of adjacent
// pairs share an OS pipe and run concurrently; builtin stages run
// synchronously in the shell process with their streams rebound. Every
// spawned process is waited on in stage order before RunPipeline returns,
// even when a later stage fails to start.
//
// Stream rules: only the first stage reads the shell's input, only the first
// stage's stderr redirection and the last stage's stdout/stderr redirections
// reach files. Interior redirection targets are parsed for syntax but
// discarded, because interior streams are fixed to the connecting pipes.
func (s *Shell) RunPipeline(pipeline parse.Pipeline) {
	var toClose listCloser
	defer func() { toClose.Close() }()

	var started []startedProc
	defer func() {
		for _, proc := range started {
			err := proc.cmd.Wait()
			_ = s.Log.Record(&logger.CommandExit{
				Name:     proc.name,
				ExitCode: proc.cmd.ProcessState.ExitCode(),
				Err:      errString(err),
			})
		}
	}()

	last := len(pipeline) - 1

	// carry is what the next stage reads: nil for the first stage (shell
	// input), an OS pipe read end after an external stage, or an in-memory
	// buffer after a builtin stage.
	var carry io.Reader
	var carryPipe *pipePair

	for i, spec := range pipeline {
		name := spec.Argv[0]
		s.logDiscardedRedirects(i, last, spec)

		stderr := s.stderr
		if (i == 0 || i == last) && spec.Stderr != nil {
			fd, err := openRedirect(spec.Stderr)
			if err != nil {
				fmt.Fprintln(s.stderr, err)
				carryPipe.CloseRead()
				return
			}
			toClose = append(toClose, fd)
			stderr = fd
		}

		builtin, isBuiltin := AllBuiltins[name]

		// Bind stdout: a file or the shell's stream for the last stage, a
		// pipe (or buffer, for builtins) feeding the next stage otherwise.
		var stdout io.Writer
		var outPipe *pipePair
		var outBuf *bytes.Buffer
		switch {
		case i == last && spec.Stdout != nil:
			fd, err := openRedirect(spec.Stdout)
			if err != nil {
				fmt.Fprintln(s.stderr, err)
				carryPipe.CloseRead()
				return
			}
			toClose = append(toClose, fd)
			stdout = fd
		case i == last:
			stdout = s.stdout
		case isBuiltin:
			outBuf = &bytes.Buffer{}
			stdout = outBuf
		default:
			pair, err := newPipePair()
			if err != nil {
				fmt.Fprintf(s.stderr, "%s: %v\n", name, err)
				carryPipe.CloseRead()
				return
			}
			outPipe = pair
			stdout = pair.w
		}

		if isBuiltin {
			// Synchronous call; it may terminate the whole process via exit.
			// Builtins at the head of the pipeline ignore the shell's input.
			stdin := carry
			if stdin == nil {
				stdin = s.stdin
			}
			code := builtin.Main(s, spec.Argv, IO{Stdin: stdin, Stdout: stdout, Stderr: stderr})
			_ = s.Log.Record(&logger.CommandExit{Name: name, ExitCode: code, Builtin: true})

			// Done reading from upstream: release the pipe so a still-running
			// producer sees a broken pipe instead of blocking forever.
			carryPipe.CloseRead()
			carry, carryPipe = outBuf, nil
			continue
		}

		path, err := LookPath(s, name)
		if err != nil {
			if err == ErrNotFound {
				fmt.Fprintf(stderr, "%s: command not found\n", name)
				_ = s.Log.Record(&logger.CommandNotFound{Name: name})
			} else {
				fmt.Fprintf(stderr, "%s: %v\n", name, err)
			}
			outPipe.Close()
			carryPipe.CloseRead()
			return // Abort unstarted stages; the deferred reap drains the rest.
		}

		cmd := exec.Command(path)
		// Children observe the invoked name, not the resolved path.
		cmd.Args = append([]string{name}, spec.Argv[1:]...)
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		switch {
		case carry != nil:
			// A bytes.Buffer carry is pumped into the child by the runtime;
			// that copy is what keeps a builtin and its external neighbor
			// from deadlocking on a full pipe.
			cmd.Stdin = carry
		default:
			cmd.Stdin = s.stdin
		}

		if err := cmd.Start(); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", name, err)
			outPipe.Close()
			carryPipe.CloseRead()
			return
		}
		started = append(started, startedProc{name: name, cmd: cmd})
		_ = s.Log.Record(&logger.CommandRun{Argv: spec.Argv, Path: path})

		// Drop the parent's copies of pipe ends now owned by children.
		// Holding the write end open would starve the downstream reader of
		// EOF and hang the pipeline.
		outPipe.CloseWrite()
		carryPipe.CloseRead()

		if outPipe != nil {
			carry, carryPipe = outPipe.r, outPipe
		} else {
			carry, carryPipe = nil, nil
		}
	}
}

func (s *Shell) logDiscardedRedirects(i, last int, spec parse.CommandSpec) {
	if i != last && spec.Stdout != nil {
		_ = s.Log.Record(&logger.DiscardedRedirect{Name: spec.Argv[0], Target: spec.Stdout.Path})
	}
	if i != 0 && i != last && spec.Stderr != nil {
		_ = s.Log.Record(&logger.DiscardedRedirect{Name: spec.Argv[0], Target: spec.Stderr.Path})
	}
}

func openRedirect(r *parse.Redirect) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if r.Mode == parse.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(r.Path, flags, 0644)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
