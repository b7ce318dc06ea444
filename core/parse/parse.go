// Package parse turns a raw command line into a pipeline of command
// specifications: tokenizing with shell quoting rules, splitting on the pipe
// operator and extracting redirections from each stage's argument vector.
package parse

import (
	"fmt"
	"strings"

	shlex "github.com/anmitsu/go-shlex"
)

// RedirectMode selects how a redirection target file is opened.
type RedirectMode int

const (
	Overwrite RedirectMode = iota
	Append
)

// Redirect is a parsed redirection operator: the open mode and target path.
type Redirect struct {
	Mode RedirectMode
	Path string
}

// CommandSpec is one pipeline stage after redirection parsing. Argv is never
// empty once Line has returned without error; Argv[0] is the command name.
type CommandSpec struct {
	Argv   []string
	Stdout *Redirect
	Stderr *Redirect
}

// Pipeline is an ordered, non-empty list of stages connected stdout-to-stdin.
type Pipeline []CommandSpec

// SyntaxError reports malformed input: bad quoting, a dangling redirection
// operator or an empty pipeline stage. The shell reports it and abandons the
// current line.
type SyntaxError struct {
	Reason string
}

func (e *SyntaxError) Error() string {
	return "syntax error: " + e.Reason
}

func syntaxErrorf(format string, args ...interface{}) error {
	return &SyntaxError{Reason: fmt.Sprintf(format, args...)}
}

// redirectOps maps operator tokens to the stream they rebind and the open
// mode. Operators are matched against whole tokens, never substrings.
var redirectOps = map[string]struct {
	stderr bool
	mode   RedirectMode
}{
	">":   {false, Overwrite},
	"1>":  {false, Overwrite},
	">>":  {false, Append},
	"1>>": {false, Append},
	"2>":  {true, Overwrite},
	"2>>": {true, Append},
}

// Tokenize splits a raw line into words using shell quoting rules: single and
// double quote grouping, backslash escapes, unquoted whitespace separating
// words. An unterminated quote is a SyntaxError.
func Tokenize(line string) ([]string, error) {
	tokens, err := shlex.Split(line, true)
	if err != nil {
		return nil, syntaxErrorf("unterminated quote")
	}
	return tokens, nil
}

// SplitPipeline divides a token sequence on "|" into per-stage token lists.
// A missing stage on either side of a pipe is a SyntaxError.
func SplitPipeline(tokens []string) ([][]string, error) {
	var stages [][]string
	var current []string

	for _, tok := range tokens {
		if tok != "|" {
			current = append(current, tok)
			continue
		}
		if len(current) == 0 {
			return nil, syntaxErrorf("expected command before |")
		}
		stages = append(stages, current)
		current = nil
	}
	if len(stages) > 0 && len(current) == 0 {
		return nil, syntaxErrorf("expected command after |")
	}
	stages = append(stages, current)

	return stages, nil
}

// ParseRedirections scans one stage's tokens left to right, moving
// redirection operators and their targets out of the argument vector.
// Operators may appear anywhere; when a stream is redirected twice the last
// occurrence wins. An operator without a following filename aborts the stage.
func ParseRedirections(tokens []string) (CommandSpec, error) {
	var spec CommandSpec

	for i := 0; i < len(tokens); i++ {
		op, ok := redirectOps[tokens[i]]
		if !ok {
			spec.Argv = append(spec.Argv, tokens[i])
			continue
		}
		if i+1 >= len(tokens) {
			return CommandSpec{}, syntaxErrorf("expected filename after %s", tokens[i])
		}
		redirect := &Redirect{Mode: op.mode, Path: tokens[i+1]}
		if op.stderr {
			spec.Stderr = redirect
		} else {
			spec.Stdout = redirect
		}
		i++
	}

	return spec, nil
}

// Line parses a full input line into a pipeline. It returns a nil pipeline
// for blank input and a SyntaxError for malformed input; every stage of a
// returned pipeline has a non-empty Argv.
func Line(line string) (Pipeline, error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	stageTokens, err := SplitPipeline(tokens)
	if err != nil {
		return nil, err
	}

	var pipeline Pipeline
	for _, tokens := range stageTokens {
		spec, err := ParseRedirections(tokens)
		if err != nil {
			return nil, err
		}
		if len(spec.Argv) == 0 {
			return nil, syntaxErrorf("expected command near %s", strings.Join(tokens, " "))
		}
		pipeline = append(pipeline, spec)
	}

	return pipeline, nil
}
