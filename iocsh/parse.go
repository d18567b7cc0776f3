// Package iocsh parses lines of the IOC shell command language: shell-style
// quoting, C-call style argument lists, stream redirection, and inline
// macro references.
package iocsh

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/ZLLentz/whatrecord/macros"
)

// ParseLine tokenizes one raw shell line into argv and redirection
// directives, expanding macros first. A leading prompt (as in transcripts
// pasted into scripts, "epics> ...") is stripped. Empty and comment-only
// lines produce an empty argv with no error.
func ParseLine(line string, ctx FullLoadContext, mc *macros.Context, prompt string) *Result {
	ret := &Result{
		Context: ctx,
		Line:    line,
	}

	text := line
	if prompt != "" {
		text = strings.TrimPrefix(text, prompt)
	}
	if mc != nil {
		text = mc.Expand(text)
	}

	p := lineParser{runes: []rune(text)}
	argv, redirects, err := p.parse()
	if err != "" {
		ret.Error = err
		return ret
	}
	ret.Argv = argv
	ret.Redirects = redirects
	return ret
}

type lineParser struct {
	runes []rune
	pos   int
}

func (p *lineParser) parse() (argv []string, redirects []Redirect, errMsg string) {
	for {
		p.skipSeparators()
		if p.eof() {
			return
		}

		r := p.peek()

		// Comment runs to end of line.
		if r == '#' {
			return
		}

		// Redirection, optionally with a leading descriptor number.
		if fd, mode, ok := p.tryRedirect(); ok {
			p.skipSeparators()
			if p.eof() || p.peek() == '#' {
				return nil, nil, "missing redirect target"
			}
			name, ok := p.word()
			if !ok {
				return nil, nil, "unbalanced quotes"
			}
			redirects = append(redirects, Redirect{
				Mode: mode,
				Name: name,
				FD:   fd,
			})
			continue
		}

		word, ok := p.word()
		if !ok {
			return nil, nil, "unbalanced quotes"
		}
		argv = append(argv, word)
	}
}

func (p *lineParser) eof() bool {
	return p.pos >= len(p.runes)
}

func (p *lineParser) peek() rune {
	return p.runes[p.pos]
}

// skipSeparators consumes whitespace plus the punctuation of call syntax,
// so "cmd(a, b)" tokenizes the same as "cmd a b".
func (p *lineParser) skipSeparators() {
	for !p.eof() {
		r := p.peek()
		if unicode.IsSpace(r) || r == '(' || r == ')' || r == ',' {
			p.pos++
			continue
		}
		return
	}
}

// tryRedirect consumes "<", ">", ">>" or an "N>"-style form at the current
// position. It backtracks and reports false when the position does not
// start a redirect.
func (p *lineParser) tryRedirect() (fd int, mode RedirectMode, ok bool) {
	start := p.pos

	digits := ""
	for !p.eof() && unicode.IsDigit(p.peek()) {
		digits += string(p.peek())
		p.pos++
	}

	if p.eof() {
		p.pos = start
		return 0, "", false
	}

	switch p.peek() {
	case '<':
		p.pos++
		mode = RedirectRead
	case '>':
		p.pos++
		mode = RedirectWrite
		if !p.eof() && p.peek() == '>' {
			p.pos++
			mode = RedirectAppend
		}
	default:
		p.pos = start
		return 0, "", false
	}

	if digits != "" {
		fd, _ = strconv.Atoi(digits)
	} else if mode != RedirectRead {
		fd = 1
	}
	return fd, mode, true
}

// word consumes one argument, honoring double quotes (with backslash
// escapes), single quotes (literal), and bare backslash escapes. Returns
// false on an unterminated quote.
func (p *lineParser) word() (string, bool) {
	var sb strings.Builder
	for !p.eof() {
		r := p.peek()

		if unicode.IsSpace(r) || r == '(' || r == ')' || r == ',' ||
			r == '<' || r == '>' || r == '#' {
			break
		}

		switch r {
		case '"':
			p.pos++
			for {
				if p.eof() {
					return "", false
				}
				r := p.peek()
				p.pos++
				if r == '"' {
					break
				}
				if r == '\\' && !p.eof() {
					sb.WriteRune(unescape(p.peek()))
					p.pos++
					continue
				}
				sb.WriteRune(r)
			}

		case '\'':
			p.pos++
			for {
				if p.eof() {
					return "", false
				}
				r := p.peek()
				p.pos++
				if r == '\'' {
					break
				}
				sb.WriteRune(r)
			}

		case '\\':
			p.pos++
			if !p.eof() {
				sb.WriteRune(unescape(p.peek()))
				p.pos++
			}

		default:
			sb.WriteRune(r)
			p.pos++
		}
	}
	return sb.String(), true
}

func unescape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	}
	return r
}
