package shell

import (
	"fmt"
	"iter"
	"strings"

	"github.com/ZLLentz/whatrecord/iocsh"
)

// InterpretScript interprets shell-script text line by line, yielding one
// result per source line (or per directly caused side effect, for
// redirected scripts and re-invoked commands) as it is produced. The
// sequence is single-use. In strict mode any dispatch error terminates the
// sequence with that error; otherwise only structural errors do, and
// ordinary failures are recorded on the line result.
//
// Input redirection recurses into the target file. Self-inclusion is not
// detected, matching IOC shell behavior: a script including itself recurses
// until the stack runs out.
func (s *State) InterpretScript(name string, content string, strict bool) iter.Seq2[*iocsh.Result, error] {
	return func(yield func(*iocsh.Result, error) bool) {
		s.interpretScript(name, content, strict, yield)
	}
}

func (s *State) interpretScript(name string, content string, strict bool, yield func(*iocsh.Result, error) bool) bool {
	ctx := &iocsh.MutableLoadContext{Name: name}
	s.loadContext = append(s.loadContext, ctx)
	defer s.popLoadContext(ctx)

	for lineno, line := range splitLines(content) {
		ctx.Line = lineno + 1
		if !s.interpretLine(line, true, strict, yield) {
			return false
		}
	}
	return true
}

// popLoadContext removes ctx from the stack by identity. Removal happens on
// every exit path, including propagated failures.
func (s *State) popLoadContext(ctx *iocsh.MutableLoadContext) {
	for i, candidate := range s.loadContext {
		if candidate == ctx {
			s.loadContext = append(s.loadContext[:i], s.loadContext[i+1:]...)
			return
		}
	}
}

func (s *State) interpretLine(line string, recurse, strict bool, yield func(*iocsh.Result, error) bool) bool {
	res := iocsh.ParseLine(line, s.FullLoadContext(), s.Macros, s.Prompt)

	var input *iocsh.Redirect
	for i := range res.Redirects {
		if res.Redirects[i].Mode == iocsh.RedirectRead {
			input = &res.Redirects[i]
			break
		}
	}

	switch {
	case res.Error != "":
		return yield(res, nil)

	case input != nil:
		if !recurse {
			return yield(res, nil)
		}
		filename, content, err := s.LoadFile(input.Name)
		if err != nil {
			res.Error = fmt.Sprintf("%s: %v", input.Name, err)
			return yield(res, nil)
		}
		if !yield(res, nil) {
			return false
		}
		return s.interpretScript(filename, content, strict, yield)

	case len(res.Argv) > 0:
		outcome, err := s.HandleCommand(res.Argv[0], res.Argv[1:]...)
		if err != nil {
			res.Error = fmt.Sprintf("failed to execute: %v", err)
			if strict || IsStructural(err) {
				yield(res, err)
				return false
			}
			return yield(res, nil)
		}
		res.Outcome = outcome
		if !yield(res, nil) {
			return false
		}
		if cmd, ok := outcome.(CmdInvocation); ok {
			return s.interpretLine(cmd.Command, recurse, strict, yield)
		}
		return true

	default:
		return yield(res, nil)
	}
}

func splitLines(content string) []string {
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}
