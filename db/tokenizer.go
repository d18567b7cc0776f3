package db

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenBare
	tokenQuoted
	tokenSymbol
)

type token struct {
	Kind tokenKind
	Text string
	Line int
}

// tokenizer splits .db/.dbd text into bare words, quoted strings and the
// punctuation of block syntax. Comments run from '#' to end of line.
type tokenizer struct {
	source  *bufio.Reader
	current *token
	line    int
}

func newTokenizer(source io.Reader) *tokenizer {
	return &tokenizer{
		source: bufio.NewReader(source),
		line:   1,
	}
}

func (t *tokenizer) readRune() (rune, error) {
	r, _, err := t.source.ReadRune()
	if err != nil {
		return 0, err
	}
	if r == '\n' {
		t.line++
	}
	return r, nil
}

func (t *tokenizer) unreadRune(r rune) {
	t.source.UnreadRune()
	if r == '\n' {
		t.line--
	}
}

func (t *tokenizer) Current() (*token, error) {
	if t.current == nil {
		var err error
		t.current, err = t.parseNext()
		if err != nil {
			return nil, err
		}
	}
	return t.current, nil
}

func (t *tokenizer) Consume() {
	t.current = nil
}

func (t *tokenizer) parseNext() (*token, error) {
	t.skipWhitespace()
	startLine := t.line

	r, err := t.readRune()
	if err == io.EOF {
		return &token{Kind: tokenEOF, Line: startLine}, nil
	}
	if err != nil {
		return nil, err
	}

	switch {
	case r == '#':
		t.skipComment()
		return t.parseNext()
	case r == '"':
		return t.parseQuoted(startLine)
	case r == '{' || r == '}' || r == '(' || r == ')' || r == ',':
		return &token{
			Kind: tokenSymbol,
			Text: string(r),
			Line: startLine,
		}, nil
	}

	t.unreadRune(r)
	return t.parseBare(startLine)
}

func (t *tokenizer) skipWhitespace() {
	for {
		r, err := t.readRune()
		if err != nil {
			return
		}
		if !unicode.IsSpace(r) {
			t.unreadRune(r)
			return
		}
	}
}

func (t *tokenizer) skipComment() {
	for {
		r, err := t.readRune()
		if err != nil || r == '\n' {
			return
		}
	}
}

func (t *tokenizer) parseBare(startLine int) (*token, error) {
	var buf bytes.Buffer
	for {
		r, err := t.readRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if unicode.IsSpace(r) || r == '{' || r == '}' || r == '(' || r == ')' ||
			r == ',' || r == '"' || r == '#' {
			t.unreadRune(r)
			break
		}
		buf.WriteRune(r)
	}
	return &token{
		Kind: tokenBare,
		Text: buf.String(),
		Line: startLine,
	}, nil
}

func (t *tokenizer) parseQuoted(startLine int) (*token, error) {
	var buf bytes.Buffer
	for {
		r, err := t.readRune()
		if err == io.EOF {
			return nil, fmt.Errorf("line %d: unterminated string", startLine)
		}
		if err != nil {
			return nil, err
		}
		if r == '"' {
			break
		}
		if r == '\\' {
			next, err := t.readRune()
			if err == io.EOF {
				return nil, fmt.Errorf("line %d: unterminated string", startLine)
			}
			if err != nil {
				return nil, err
			}
			switch next {
			case 'n':
				buf.WriteRune('\n')
			case 't':
				buf.WriteRune('\t')
			default:
				buf.WriteRune(next)
			}
			continue
		}
		buf.WriteRune(r)
	}
	return &token{
		Kind: tokenQuoted,
		Text: buf.String(),
		Line: startLine,
	}, nil
}

// skipBlock consumes a balanced { ... } block, the opening brace already
// consumed. Used for block bodies the model does not need.
func (t *tokenizer) skipBlock() error {
	depth := 1
	for depth > 0 {
		tok, err := t.Current()
		if err != nil {
			return err
		}
		if tok.Kind == tokenEOF {
			return fmt.Errorf("line %d: unterminated block", tok.Line)
		}
		if tok.Kind == tokenSymbol {
			switch tok.Text {
			case "{":
				depth++
			case "}":
				depth--
			}
		}
		t.Consume()
	}
	return nil
}

// captureBlock consumes a balanced { ... } block and returns its raw-ish
// text, used for JSON info blocks. The opening brace is already consumed.
func (t *tokenizer) captureBlock() (string, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	depth := 1
	for depth > 0 {
		tok, err := t.Current()
		if err != nil {
			return "", err
		}
		if tok.Kind == tokenEOF {
			return "", fmt.Errorf("line %d: unterminated block", tok.Line)
		}
		switch tok.Kind {
		case tokenSymbol:
			switch tok.Text {
			case "{":
				depth++
			case "}":
				depth--
			}
			buf.WriteString(tok.Text)
		case tokenQuoted:
			buf.WriteString(fmt.Sprintf("%q", tok.Text))
		default:
			buf.WriteString(tok.Text)
		}
		t.Consume()
	}
	return buf.String(), nil
}
