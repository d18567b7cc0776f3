package shell

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ZLLentz/whatrecord/db"
	"github.com/ZLLentz/whatrecord/iocsh"
)

// loadTestIOC runs the full concrete scenario: schema, records with macros,
// and a motor port hanging off an IP port.
func loadTestIOC(t *testing.T, name string) *LoadedIOC {
	t.Helper()
	s := newTestState(t)
	script := `epicsEnvSet "P" "test:"
drvAsynIPPortConfigure "IP1" "ecat:48898"
EthercatMCCreateController "MOTOR1" "IP1" "8" "0.1" "0.5"
dbLoadDatabase "base.dbd"
dbLoadRecords "recs.db" "P=$(P)"
iocInit`

	loaded := &LoadedIOC{
		Name:     name,
		Path:     "st.cmd",
		Metadata: s.Metadata,
		State:    s,
	}
	for res, err := range s.InterpretScript("st.cmd", script, false) {
		if err != nil {
			t.Fatal(err)
		}
		loaded.Script = append(loaded.Script, res)
	}
	return loaded
}

func TestContainerWhatRec(t *testing.T) {
	container := NewContainer()
	container.Add(loadTestIOC(t, "ioc-a"))

	results := container.WhatRec("test:rbv", "", true)
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	info := results[0]
	if info.Owner != "ioc-a" {
		t.Fatalf("got %q", info.Owner)
	}
	if len(info.Instances) != 1 || info.Instances[0].RecordType != "ao" {
		t.Fatalf("got %+v", info.Instances)
	}
	if info.Instances[0].Name != "test:rbv" {
		t.Fatalf("got %q", info.Instances[0].Name)
	}

	// The OUT link resolves MOTOR1, and its parent IP1 comes first.
	if len(info.Ports) != 2 {
		t.Fatalf("got %+v", info.Ports)
	}
	if info.Ports[0].Name != "IP1" || info.Ports[1].Name != "MOTOR1" {
		t.Fatalf("got %q, %q", info.Ports[0].Name, info.Ports[1].Name)
	}

	if results := container.WhatRec("nope", "", true); results != nil {
		t.Fatalf("got %+v", results)
	}
}

func TestContainerFieldFilter(t *testing.T) {
	container := NewContainer()
	container.Add(loadTestIOC(t, "ioc-a"))

	if results := container.WhatRec("test:rbv", "DESC", true); len(results) != 1 {
		t.Fatalf("got %+v", results)
	}
	if results := container.WhatRec("test:rbv", "NOPE", true); results != nil {
		t.Fatalf("got %+v", results)
	}
}

func TestContainerMergesAcrossInstances(t *testing.T) {
	container := NewContainer()
	container.Add(loadTestIOC(t, "ioc-a"))
	container.Add(loadTestIOC(t, "ioc-b"))

	if len(container.Scripts) != 2 {
		t.Fatalf("got %v", container.Names())
	}
	// Same record declared by both: fields merged, provenance appended.
	rec := container.Database["test:rbv"]
	if rec == nil {
		t.Fatal()
	}
	if len(rec.Context) != 4 {
		t.Fatalf("got %d context entries", len(rec.Context))
	}
	// Both instances answer the query.
	if results := container.WhatRec("test:rbv", "", true); len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
}

// sharedRecordIOC builds an instance declaring "shared:rec" with the given
// DESC value, bypassing the interpreter.
func sharedRecordIOC(name, desc string) *LoadedIOC {
	s := NewState()
	s.Database["shared:rec"] = &db.RecordInstance{
		Name:       "shared:rec",
		RecordType: "ao",
		Fields: map[string]db.Field{
			"DESC": {Name: "DESC", Value: desc},
		},
		Context: iocsh.FullLoadContext{
			{Name: name + "/st.cmd", Line: 1},
		},
	}
	md := NewMetadata()
	md.Name = name
	return &LoadedIOC{
		Name:     name,
		Path:     name + "/st.cmd",
		Metadata: md,
		State:    s,
	}
}

func TestContainerAddLeavesInstancesFrozen(t *testing.T) {
	a := sharedRecordIOC("ioc-a", "from-ioc-a")
	b := sharedRecordIOC("ioc-b", "from-ioc-b")

	container := NewContainer()
	container.Add(a)
	container.Add(b)

	// The aggregated view holds the merged record.
	merged := container.Database["shared:rec"]
	if merged.Fields["DESC"].Value != "from-ioc-b" {
		t.Fatalf("got %+v", merged.Fields["DESC"])
	}
	if len(merged.Context) != 2 {
		t.Fatalf("got %d context entries", len(merged.Context))
	}

	// The first instance's frozen state is untouched by the second Add.
	rec := a.State.Database["shared:rec"]
	if rec.Fields["DESC"].Value != "from-ioc-a" {
		t.Fatalf("got %+v", rec.Fields["DESC"])
	}
	if len(rec.Context) != 1 {
		t.Fatalf("got %d context entries", len(rec.Context))
	}

	// Per-instance queries answer with per-instance values.
	results := container.WhatRec("shared:rec", "", false)
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Owner != "ioc-a" || results[0].Instances[0].Fields["DESC"].Value != "from-ioc-a" {
		t.Fatalf("got %+v", results[0].Instances[0])
	}
	if results[1].Owner != "ioc-b" || results[1].Instances[0].Fields["DESC"].Value != "from-ioc-b" {
		t.Fatalf("got %+v", results[1].Instances[0])
	}
}

func TestErroredPlaceholder(t *testing.T) {
	md := NewMetadata()
	md.Name = "broken-ioc"
	md.Script = "st.cmd"
	loaded := NewErroredIOC(md, errors.New("boom:\ndetails"))
	if !loaded.Errored() {
		t.Fatal()
	}
	if len(loaded.Script) != 2 {
		t.Fatalf("got %+v", loaded.Script)
	}
	if loaded.Metadata.Extra["load_error"] == "" {
		t.Fatal()
	}

	container := NewContainer()
	container.Add(loaded)
	if container.Scripts["broken-ioc"] == nil {
		t.Fatalf("got %v", container.Names())
	}
}

func TestLoadedIOCRoundTrip(t *testing.T) {
	loaded := loadTestIOC(t, "ioc-a")
	encoded, err := json.Marshal(loaded)
	if err != nil {
		t.Fatal(err)
	}
	var decoded LoadedIOC
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Name != "ioc-a" {
		t.Fatalf("got %q", decoded.Name)
	}
	if decoded.State.Database["test:rbv"] == nil {
		t.Fatal()
	}
	if !decoded.State.Initialized {
		t.Fatal()
	}
	if decoded.State.Ports["MOTOR1"].Parent != "IP1" {
		t.Fatalf("got %+v", decoded.State.Ports["MOTOR1"])
	}
}
