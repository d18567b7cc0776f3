package db

import (
	"fmt"
	"strings"

	"github.com/ZLLentz/whatrecord/iocsh"
)

// ParseSchema parses database-definition (.dbd) text into a Schema. Only
// recordtype blocks contribute to the model; menu, device, driver and the
// other registration blocks are validated for balance and skipped.
func ParseSchema(content string, filename string) (*Schema, error) {
	schema := &Schema{
		Filename:    filename,
		RecordTypes: make(map[string]*RecordType),
	}

	t := newTokenizer(strings.NewReader(content))
	for {
		tok, err := t.Current()
		if err != nil {
			return nil, err
		}
		if tok.Kind == tokenEOF {
			return schema, nil
		}
		if tok.Kind != tokenBare {
			return nil, fmt.Errorf("%s line %d: unexpected %q", filename, tok.Line, tok.Text)
		}
		keyword := tok.Text
		line := tok.Line
		t.Consume()

		args, err := parseArgs(t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}

		switch keyword {
		case "recordtype":
			if len(args) != 1 {
				return nil, fmt.Errorf("%s line %d: recordtype needs one name", filename, line)
			}
			rtyp, err := parseRecordType(t, args[0], filename, line)
			if err != nil {
				return nil, err
			}
			schema.RecordTypes[rtyp.Name] = rtyp

		case "registrar", "variable", "function", "include", "path", "addpath":
			// No block body.

		default:
			// menu, device, driver, breaktable and friends: skip any body.
			if err := maybeSkipBlock(t); err != nil {
				return nil, fmt.Errorf("%s: %w", filename, err)
			}
		}
	}
}

func parseRecordType(t *tokenizer, name, filename string, line int) (*RecordType, error) {
	rtyp := &RecordType{
		Name:   name,
		Fields: make(map[string]FieldDef),
		Context: iocsh.FullLoadContext{
			{Name: filename, Line: line},
		},
	}

	if err := expectSymbol(t, "{"); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	for {
		tok, err := t.Current()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.Kind == tokenEOF:
			return nil, fmt.Errorf("%s: recordtype(%s) not closed", filename, name)

		case tok.Kind == tokenSymbol && tok.Text == "}":
			t.Consume()
			return rtyp, nil

		case tok.Kind == tokenBare && tok.Text == "field":
			t.Consume()
			args, err := parseArgs(t)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", filename, err)
			}
			if len(args) != 2 {
				return nil, fmt.Errorf("%s line %d: field needs name and type", filename, tok.Line)
			}
			rtyp.Fields[args[0]] = FieldDef{
				Name: args[0],
				Type: args[1],
			}
			// Field attribute block (prompt, size, ...) carries no model info.
			if err := maybeSkipBlock(t); err != nil {
				return nil, fmt.Errorf("%s: %w", filename, err)
			}

		default:
			// %include lines, info attributes, etc.
			t.Consume()
			if tok.Kind == tokenSymbol && tok.Text == "{" {
				if err := t.skipBlock(); err != nil {
					return nil, fmt.Errorf("%s: %w", filename, err)
				}
			}
		}
	}
}

// parseArgs consumes an optional "( a, b, ... )" argument list.
func parseArgs(t *tokenizer) ([]string, error) {
	tok, err := t.Current()
	if err != nil {
		return nil, err
	}
	if tok.Kind != tokenSymbol || tok.Text != "(" {
		return nil, nil
	}
	t.Consume()

	var args []string
	for {
		tok, err := t.Current()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.Kind == tokenEOF:
			return nil, fmt.Errorf("line %d: unterminated argument list", tok.Line)
		case tok.Kind == tokenSymbol && tok.Text == ")":
			t.Consume()
			return args, nil
		case tok.Kind == tokenSymbol && tok.Text == ",":
			t.Consume()
		default:
			args = append(args, tok.Text)
			t.Consume()
		}
	}
}

func maybeSkipBlock(t *tokenizer) error {
	tok, err := t.Current()
	if err != nil {
		return err
	}
	if tok.Kind == tokenSymbol && tok.Text == "{" {
		t.Consume()
		return t.skipBlock()
	}
	return nil
}

func expectSymbol(t *tokenizer, text string) error {
	tok, err := t.Current()
	if err != nil {
		return err
	}
	if tok.Kind != tokenSymbol || tok.Text != text {
		return fmt.Errorf("line %d: expected %q, got %q", tok.Line, text, tok.Text)
	}
	t.Consume()
	return nil
}
