package loaders

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/ZLLentz/whatrecord/configs"
	"github.com/ZLLentz/whatrecord/shell"
	"github.com/reusee/dscope"
)

const testDBD = `
recordtype(ao) {
	field(VAL, DBF_DOUBLE)
	field(OUT, DBF_OUTLINK)
}
`

const testDB = `
record(ao, "$(P)rbv") {
	field(OUT, "@asyn(MOTOR1, 0)")
}
`

const testScript = `#!../../bin/linux-x86_64/motor
epicsEnvSet("ENGINEER", "someone")
dbLoadDatabase("base.dbd")
drvAsynIPPortConfigure("MOTOR1", "10.0.0.1:4001")
dbLoadRecords("recs.db", "P=$(P)")
iocInit
`

// writeTestIOC lays out one loadable IOC directory and returns its
// descriptor.
func writeTestIOC(t *testing.T, name string) Descriptor {
	t.Helper()
	dir := t.TempDir()
	for file, content := range map[string]string{
		"base.dbd": testDBD,
		"recs.db":  testDB,
		"st.cmd":   testScript,
	} {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return Descriptor{
		Name:   name,
		Script: filepath.Join(dir, "st.cmd"),
		Macros: map[string]string{"P": name + ":"},
	}
}

func TestLoadOne(t *testing.T) {
	desc := writeTestIOC(t, "ioc-foo")
	ioc, err := LoadOne(t.Context(), desc, false)
	if err != nil {
		t.Fatal(err)
	}
	if ioc.Errored() {
		t.Fatal("should not be errored")
	}
	if ioc.Name != "ioc-foo" {
		t.Fatalf("got %q", ioc.Name)
	}
	if !ioc.State.Initialized {
		t.Fatal("should be initialized")
	}
	if _, ok := ioc.State.Database["ioc-foo:rbv"]; !ok {
		t.Fatalf("got records %v", ioc.State.Database)
	}
	if _, err := ioc.State.Ports.Lookup("MOTOR1"); err != nil {
		t.Fatal(err)
	}
	if len(ioc.Script) == 0 {
		t.Fatal("no script results")
	}
	if ioc.Metadata.StartupDirectory != filepath.Dir(desc.Script) {
		t.Fatalf("got %q", ioc.Metadata.StartupDirectory)
	}
}

func TestLoadOneMissingScript(t *testing.T) {
	desc := Descriptor{
		Name:   "ioc-gone",
		Script: filepath.Join(t.TempDir(), "st.cmd"),
	}
	ioc, err := LoadOne(t.Context(), desc, false)
	if err == nil {
		t.Fatal("should error")
	}
	if ioc == nil || !ioc.Errored() {
		t.Fatal("should return errored placeholder")
	}
	if len(ioc.Script) == 0 {
		t.Fatal("placeholder should carry the diagnostic")
	}
}

func TestLoadOneCancelled(t *testing.T) {
	desc := writeTestIOC(t, "ioc-cancel")
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	ioc, err := LoadOne(ctx, desc, false)
	if err == nil {
		t.Fatal("should error")
	}
	if !ioc.Errored() {
		t.Fatal("should return errored placeholder")
	}
}

// TestLoadPoolCancellation cancels a batch midway: work completed before
// the cancellation stays finalized in the container, the rest become
// errored placeholders. A FIFO script parks the single worker at a known
// point: once its write side opens, the first load has finished and the
// second is blocked reading its script.
func TestLoadPoolCancellation(t *testing.T) {
	fifo := filepath.Join(t.TempDir(), "st.cmd")
	if err := syscall.Mkfifo(fifo, 0o600); err != nil {
		t.Fatal(err)
	}
	descriptors := []Descriptor{
		writeTestIOC(t, "ioc-done"),
		{Name: "ioc-parked", Script: fifo},
		writeTestIOC(t, "ioc-abandoned"),
	}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	type loaded struct {
		container *shell.Container
		results   []Result
	}
	done := make(chan loaded, 1)
	scope := testScope(t, 1)
	go scope.Call(func(load Load) {
		container, results := load(ctx, descriptors)
		done <- loaded{container, results}
	})

	w, err := os.OpenFile(fifo, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	if _, err := w.WriteString("epicsEnvSet \"X\" \"1\"\n"); err != nil {
		t.Fatal(err)
	}
	w.Close()

	ret := <-done
	if len(ret.results) != 3 {
		t.Fatalf("got %d results", len(ret.results))
	}
	byName := make(map[string]Result)
	for _, result := range ret.results {
		byName[result.Name] = result
	}
	if r := byName["ioc-done"]; r.State != LoadSucceeded {
		t.Fatalf("got %v: %v", r.State, r.Err)
	}
	for _, name := range []string{"ioc-parked", "ioc-abandoned"} {
		if r := byName[name]; r.State != LoadFailed || !errors.Is(r.Err, context.Canceled) {
			t.Fatalf("%s: got %v: %v", name, r.State, r.Err)
		}
	}

	// Completed work is in the container; the rest are placeholders.
	if len(ret.container.Scripts) != 3 {
		t.Fatalf("got %v", ret.container.Names())
	}
	if ret.container.Scripts["ioc-done"].Errored() {
		t.Fatal("completed load should not be errored")
	}
	if _, ok := ret.container.Database["ioc-done:rbv"]; !ok {
		t.Fatalf("got records %v", ret.container.Names())
	}
	if !ret.container.Scripts["ioc-parked"].Errored() {
		t.Fatal("should be errored placeholder")
	}
	if !ret.container.Scripts["ioc-abandoned"].Errored() {
		t.Fatal("should be errored placeholder")
	}
}

func testScope(t *testing.T, workers int) dscope.Scope {
	return dscope.New(
		new(Module),
	).Fork(
		dscope.Provide(configs.NewLoader(nil, configs.Schema)),
		dscope.Provide(configs.NumWorkers(workers)),
	)
}

func TestLoadPool(t *testing.T) {
	for _, workers := range []int{1, 4} {
		descriptors := []Descriptor{
			writeTestIOC(t, "ioc-a"),
			writeTestIOC(t, "ioc-b"),
			{
				Name:   "ioc-broken",
				Script: filepath.Join(t.TempDir(), "st.cmd"),
			},
		}
		testScope(t, workers).Call(func(
			load Load,
		) {
			container, results := load(t.Context(), descriptors)
			if len(results) != 3 {
				t.Fatalf("got %d results", len(results))
			}
			if len(container.Scripts) != 3 {
				t.Fatalf("got %d instances", len(container.Scripts))
			}

			byName := make(map[string]Result)
			for _, result := range results {
				if result.ID.String() == "" {
					t.Fatal("missing id")
				}
				byName[result.Name] = result
			}
			if byName["ioc-a"].State != LoadSucceeded {
				t.Fatalf("got %v: %v", byName["ioc-a"].State, byName["ioc-a"].Err)
			}
			if byName["ioc-broken"].State != LoadFailed {
				t.Fatalf("got %v", byName["ioc-broken"].State)
			}
			if !container.Scripts["ioc-broken"].Errored() {
				t.Fatal("should be errored placeholder")
			}

			// records survive the worker boundary
			if _, ok := container.Database["ioc-a:rbv"]; !ok {
				t.Fatalf("got records %v", container.Names())
			}
			matches := container.WhatRec("ioc-b:rbv", "", false)
			if len(matches) != 1 {
				t.Fatalf("got %d matches", len(matches))
			}
			if len(matches[0].Ports) != 1 || matches[0].Ports[0].Name != "MOTOR1" {
				t.Fatalf("got ports %v", matches[0].Ports)
			}
		})
	}
}
