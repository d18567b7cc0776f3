package db

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ZLLentz/whatrecord/iocsh"
	"github.com/ZLLentz/whatrecord/macros"
)

// ParseRecords parses record-instance (.db) text against a schema. Macro
// references are expanded with mc before tokenizing. Unknown record types
// and empty record names are collected as warnings, not failures; malformed
// syntax is a failure. info(Q:group, {...}) entries publish the group names
// of their JSON body as PVA group records.
func ParseRecords(content string, filename string, schema *Schema, mc *macros.Context) (*Database, error) {
	if schema == nil {
		return nil, fmt.Errorf("%s: no database definition", filename)
	}
	if mc != nil {
		content = mc.Expand(content)
	}

	database := NewDatabase()
	t := newTokenizer(strings.NewReader(content))
	for {
		tok, err := t.Current()
		if err != nil {
			return nil, err
		}
		if tok.Kind == tokenEOF {
			return database, nil
		}
		if tok.Kind != tokenBare {
			return nil, fmt.Errorf("%s line %d: unexpected %q", filename, tok.Line, tok.Text)
		}
		keyword := tok.Text
		line := tok.Line
		t.Consume()

		switch keyword {
		case "record", "grecord":
			args, err := parseArgs(t)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", filename, err)
			}
			if len(args) != 2 {
				return nil, fmt.Errorf("%s line %d: record needs type and name", filename, line)
			}
			if err := parseRecordBody(t, database, schema, args[0], args[1], filename, line); err != nil {
				return nil, err
			}

		case "alias":
			if _, err := parseArgs(t); err != nil {
				return nil, fmt.Errorf("%s: %w", filename, err)
			}

		case "include", "path", "addpath":
			t.Consume()

		default:
			database.Warnings = append(database.Warnings,
				fmt.Sprintf("%s line %d: unexpected keyword %q", filename, line, keyword))
			if err := maybeSkipBlock(t); err != nil {
				return nil, fmt.Errorf("%s: %w", filename, err)
			}
		}
	}
}

func parseRecordBody(t *tokenizer, database *Database, schema *Schema, rtyp, name, filename string, line int) error {
	rec := &RecordInstance{
		Name:       name,
		RecordType: rtyp,
		Fields:     make(map[string]Field),
		Context: iocsh.FullLoadContext{
			{Name: filename, Line: line},
		},
	}

	var recordType *RecordType
	switch {
	case name == "":
		database.Warnings = append(database.Warnings,
			fmt.Sprintf("%s line %d: record with empty name", filename, line))
	case rtyp == "*":
		// "record(*, name)" matches any previously declared type.
	default:
		var ok bool
		recordType, ok = schema.RecordTypes[rtyp]
		if !ok {
			database.Warnings = append(database.Warnings,
				fmt.Sprintf("%s line %d: unknown record type %q for %q", filename, line, rtyp, name))
		}
	}

	tok, err := t.Current()
	if err != nil {
		return err
	}
	// A record line without a body is legal.
	if tok.Kind != tokenSymbol || tok.Text != "{" {
		mergeParsed(database, rec)
		return nil
	}
	t.Consume()

	for {
		tok, err := t.Current()
		if err != nil {
			return err
		}
		switch {
		case tok.Kind == tokenEOF:
			return fmt.Errorf("%s: record(%s, %s) not closed", filename, rtyp, name)

		case tok.Kind == tokenSymbol && tok.Text == "}":
			t.Consume()
			mergeParsed(database, rec)
			return nil

		case tok.Kind == tokenBare && tok.Text == "field":
			fieldLine := tok.Line
			t.Consume()
			args, err := parseArgs(t)
			if err != nil {
				return fmt.Errorf("%s: %w", filename, err)
			}
			if len(args) != 2 {
				return fmt.Errorf("%s line %d: field needs name and value", filename, fieldLine)
			}
			if recordType != nil {
				if _, ok := recordType.Fields[args[0]]; !ok {
					database.Warnings = append(database.Warnings,
						fmt.Sprintf("%s line %d: %s has no field %q", filename, fieldLine, rtyp, args[0]))
				}
			}
			rec.Fields[args[0]] = Field{
				Name:  args[0],
				Value: args[1],
				Context: iocsh.FullLoadContext{
					{Name: filename, Line: fieldLine},
				},
			}

		case tok.Kind == tokenBare && tok.Text == "info":
			t.Consume()
			if err := parseInfo(t, database, rec, filename); err != nil {
				return err
			}

		default:
			t.Consume()
			if tok.Kind == tokenSymbol && tok.Text == "{" {
				if err := t.skipBlock(); err != nil {
					return fmt.Errorf("%s: %w", filename, err)
				}
			}
		}
	}
}

// parseInfo handles "info(name, value)" where value is either a string or,
// for Q:group, a JSON block declaring PVA group membership.
func parseInfo(t *tokenizer, database *Database, rec *RecordInstance, filename string) error {
	if err := expectSymbol(t, "("); err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	nameTok, err := t.Current()
	if err != nil {
		return err
	}
	infoName := nameTok.Text
	t.Consume()

	// Optional comma before the value.
	tok, err := t.Current()
	if err != nil {
		return err
	}
	if tok.Kind == tokenSymbol && tok.Text == "," {
		t.Consume()
		tok, err = t.Current()
		if err != nil {
			return err
		}
	}

	var value string
	if tok.Kind == tokenSymbol && tok.Text == "{" {
		t.Consume()
		value, err = t.captureBlock()
		if err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
	} else {
		value = tok.Text
		t.Consume()
	}
	if err := expectSymbol(t, ")"); err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}

	if rec.Metadata == nil {
		rec.Metadata = make(map[string]string)
	}
	rec.Metadata[infoName] = value

	if infoName == "Q:group" {
		addPVAGroups(database, rec, value)
	}
	return nil
}

// addPVAGroups publishes the top-level keys of a Q:group JSON body as PVA
// group records pointing back at the declaring record.
func addPVAGroups(database *Database, rec *RecordInstance, body string) {
	var groups map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &groups); err != nil {
		database.Warnings = append(database.Warnings,
			fmt.Sprintf("%s: bad Q:group body: %v", rec.Name, err))
		return
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		group := &RecordInstance{
			Name:       name,
			RecordType: "PVA",
			Fields:     make(map[string]Field),
			Context:    append(iocsh.FullLoadContext{}, rec.Context...),
			IsPVA:      true,
			Metadata: map[string]string{
				"record": rec.Name,
			},
		}
		if existing, ok := database.PVAGroups[name]; ok {
			existing.Merge(group)
		} else {
			database.PVAGroups[name] = group
		}
	}
}

func mergeParsed(database *Database, rec *RecordInstance) {
	if rec.Name == "" {
		return
	}
	if existing, ok := database.Records[rec.Name]; ok {
		existing.Merge(rec)
		return
	}
	database.Records[rec.Name] = rec
}
