package iocsh

import (
	"fmt"
	"testing"

	"github.com/ZLLentz/whatrecord/macros"
)

func parseOne(t *testing.T, line string) *Result {
	t.Helper()
	mc := macros.NewContext()
	mc.Define(map[string]string{"P": "test:"})
	return ParseLine(line, nil, mc, "epics>")
}

func TestParseWords(t *testing.T) {
	for _, c := range []struct {
		line string
		argv string
	}{
		{`dbLoadRecords db/ioc.db "P=XF:31IDA-OP{Tbl-Ax:X1}"`,
			`[dbLoadRecords db/ioc.db P=XF:31IDA-OP{Tbl-Ax:X1}]`},
		{`dbLoadRecords("recs.db", "P=$(P)")`,
			`[dbLoadRecords recs.db P=test:]`},
		{`epics> iocInit`, `[iocInit]`},
		{`var 'single quoted'`, `[var single quoted]`},
		{`escaped\ space`, `[escaped space]`},
		{`a "b\"c"`, `[a b"c]`},
	} {
		res := parseOne(t, c.line)
		if res.Error != "" {
			t.Fatalf("%q: %s", c.line, res.Error)
		}
		if got := fmt.Sprint(res.Argv); got != c.argv {
			t.Fatalf("%q: got %v", c.line, got)
		}
	}
}

func TestParseEmptyAndComments(t *testing.T) {
	for _, line := range []string{
		"",
		"   ",
		"# a comment",
		"  # indented comment",
	} {
		res := parseOne(t, line)
		if res.Error != "" {
			t.Fatalf("%q: %s", line, res.Error)
		}
		if len(res.Argv) != 0 {
			t.Fatalf("%q: got %v", line, res.Argv)
		}
	}
}

func TestParseRedirects(t *testing.T) {
	res := parseOne(t, "foo < bar.cmd")
	if res.Error != "" {
		t.Fatal(res.Error)
	}
	if fmt.Sprint(res.Argv) != "[foo]" {
		t.Fatalf("got %v", res.Argv)
	}
	if len(res.Redirects) != 1 {
		t.Fatalf("got %v", res.Redirects)
	}
	redir := res.Redirects[0]
	if redir.Mode != RedirectRead || redir.Name != "bar.cmd" || redir.FD != 0 {
		t.Fatalf("got %+v", redir)
	}

	res = parseOne(t, "foo > out.log 2>> err.log")
	if len(res.Redirects) != 2 {
		t.Fatalf("got %v", res.Redirects)
	}
	if r := res.Redirects[0]; r.Mode != RedirectWrite || r.FD != 1 || r.Name != "out.log" {
		t.Fatalf("got %+v", r)
	}
	if r := res.Redirects[1]; r.Mode != RedirectAppend || r.FD != 2 || r.Name != "err.log" {
		t.Fatalf("got %+v", r)
	}
}

func TestParseErrors(t *testing.T) {
	res := parseOne(t, `foo "unbalanced`)
	if res.Error != "unbalanced quotes" {
		t.Fatalf("got %q", res.Error)
	}
	if len(res.Argv) != 0 {
		t.Fatalf("got %v", res.Argv)
	}

	res = parseOne(t, "foo <")
	if res.Error != "missing redirect target" {
		t.Fatalf("got %q", res.Error)
	}
}

func TestParseKeepsContext(t *testing.T) {
	ctx := FullLoadContext{{Name: "st.cmd", Line: 3}}
	res := ParseLine("iocInit", ctx, macros.NewContext(), "")
	if len(res.Context) != 1 || res.Context[0].Name != "st.cmd" || res.Context[0].Line != 3 {
		t.Fatalf("got %+v", res.Context)
	}
}
