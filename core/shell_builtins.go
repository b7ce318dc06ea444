package core

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pborman/getopt/v2"
)

// AllBuiltins holds a list of all registered shell builtins.
var AllBuiltins = make(map[string]ShellBuiltin)

// IO carries the stream bindings a builtin runs against. The orchestrator
// rebinds these to files or pipeline pipes; builtins must not assume they're
// attached to a terminal.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// ShellBuiltin runs inside the shell process, never as a child process.
// args is the full argument vector including the builtin's own name.
type ShellBuiltin interface {
	Main(s *Shell, args []string, stdio IO) int
}

type ShellBuiltinFunc func(s *Shell, args []string, stdio IO) int

func (f ShellBuiltinFunc) Main(s *Shell, args []string, stdio IO) int {
	return f(s, args, stdio)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

// Exit terminates the shell with the given status code, default 0. A
// non-numeric code is reported and forces an exit with code 1.
func Exit(s *Shell, args []string, stdio IO) int {
	code := 0
	if len(args) > 1 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "exit: %s: numeric argument required\n", args[1])
			code = 1
		} else {
			code = parsed
		}
	}
	s.exit(code)
	return code
}

// Echo writes its arguments space-joined plus a trailing newline.
func Echo(s *Shell, args []string, stdio IO) int {
	fmt.Fprintln(stdio.Stdout, strings.Join(args[1:], " "))
	return 0
}

// Pwd writes the current working directory.
func Pwd(s *Shell, args []string, stdio IO) int {
	fmt.Fprintln(stdio.Stdout, s.Getwd())
	return 0
}

// Cd changes the working directory. With no argument it targets the home
// directory; a leading ~ expands to home; relative paths resolve against the
// working directory. On failure the directory is left unchanged.
func Cd(s *Shell, args []string, stdio IO) int {
	if len(args) > 2 {
		fmt.Fprintf(stdio.Stderr, "%s: too many arguments\n", args[0])
		return 1
	}

	path := s.HomeDir()
	arg := path
	if len(args) == 2 {
		arg = args[1]
		path = arg
		if path == "~" || strings.HasPrefix(path, "~/") {
			path = filepath.Join(s.HomeDir(), strings.TrimPrefix(path, "~"))
		}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.Getwd(), path)
	}

	if err := s.Chdir(path); err != nil {
		fmt.Fprintf(stdio.Stderr, "cd: %s: No such file or directory\n", arg)
		return 1
	}
	return 0
}

// Type reports how each operand would be interpreted: builtins win over
// executables of the same name.
func Type(s *Shell, args []string, stdio IO) int {
	if len(args) < 2 {
		fmt.Fprintln(stdio.Stderr, "type: missing argument")
		return 1
	}

	ret := 0
	for _, name := range args[1:] {
		if _, ok := AllBuiltins[name]; ok {
			fmt.Fprintf(stdio.Stdout, "%s is a shell builtin\n", name)
			continue
		}
		if path, err := LookPath(s, name); err == nil {
			fmt.Fprintf(stdio.Stdout, "%s is %s\n", name, path)
			continue
		}
		fmt.Fprintf(stdio.Stdout, "%s: not found\n", name)
		ret = 1
	}
	return ret
}

// HistoryBuiltin displays or manipulates the history list. With a numeric
// argument only that many trailing entries are shown; -r replaces the list
// from a file, -w writes it out, -a appends entries recorded since the last
// file operation.
func HistoryBuiltin(s *Shell, args []string, stdio IO) int {
	opts := getopt.New()
	readPath := opts.String('r', "", "replace the history list with the contents of FILE")
	writePath := opts.String('w', "", "write the history list to FILE")
	appendPath := opts.String('a', "", "append entries since the last write to FILE")

	if err := opts.Getopt(args, nil); err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		fmt.Fprintln(stdio.Stderr, "usage: history [N] | [-r FILE] | [-w FILE] | [-a FILE]")
		return 1
	}

	var err error
	switch {
	case *readPath != "":
		err = s.History.Load(*readPath)
	case *writePath != "":
		err = s.History.Write(*writePath)
	case *appendPath != "":
		err = s.History.AppendSince(*appendPath)
	default:
		n := -1
		if rest := opts.Args(); len(rest) > 0 {
			n, err = strconv.Atoi(rest[0])
			if err != nil || n < 0 {
				fmt.Fprintf(stdio.Stderr, "history: %s: numeric argument required\n", rest[0])
				return 1
			}
		}
		start, entries := s.History.Tail(n)
		for i, line := range entries {
			fmt.Fprintf(stdio.Stdout, "%5d  %s\n", start+i+1, line)
		}
		return 0
	}

	if err != nil {
		fmt.Fprintf(stdio.Stderr, "history: %v\n", err)
		return 1
	}
	return 0
}

func init() {
	AllBuiltins["exit"] = ShellBuiltinFunc(Exit)
	AllBuiltins["echo"] = ShellBuiltinFunc(Echo)
	AllBuiltins["pwd"] = ShellBuiltinFunc(Pwd)
	AllBuiltins["cd"] = ShellBuiltinFunc(Cd)
	AllBuiltins["type"] = ShellBuiltinFunc(Type)
	AllBuiltins["history"] = ShellBuiltinFunc(HistoryBuiltin)
}
