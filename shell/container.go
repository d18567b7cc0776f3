package shell

import (
	"sort"
	"strings"

	"github.com/ZLLentz/whatrecord/db"
	"github.com/ZLLentz/whatrecord/iocsh"
	"github.com/ZLLentz/whatrecord/ports"
)

// LoadedIOC is one completed IOC load: the frozen shell state plus the
// per-line interpretation results. It is self-contained and
// JSON-serializable so a worker's output can cross an isolation boundary.
type LoadedIOC struct {
	Name     string          `json:"name"`
	Path     string          `json:"path"`
	Metadata *Metadata       `json:"metadata"`
	State    *State          `json:"state"`
	Script   []*iocsh.Result `json:"script"`
}

// NewErroredIOC builds the placeholder for a failed load: an empty state
// carrying the diagnostic text as its script, so the instance still appears
// in the aggregated view with an explicit error marker.
func NewErroredIOC(md *Metadata, loadErr error) *LoadedIOC {
	var script []*iocsh.Result
	for _, line := range strings.Split(loadErr.Error(), "\n") {
		script = append(script, iocsh.FromPlainLine(line))
	}
	md.Extra["load_error"] = loadErr.Error()
	return &LoadedIOC{
		Name:     md.Name,
		Path:     md.Script,
		Metadata: md,
		State:    NewState(),
		Script:   script,
	}
}

// Errored reports whether this instance is a failed-load placeholder.
func (l *LoadedIOC) Errored() bool {
	_, ok := l.Metadata.Extra["load_error"]
	return ok
}

// Container merges completed IOC states into one cross-referenced view.
// Individual instances remain addressable by name.
type Container struct {
	Database    map[string]*db.RecordInstance `json:"database"`
	PVADatabase map[string]*db.RecordInstance `json:"pva_database"`
	Scripts     map[string]*LoadedIOC         `json:"scripts"`
	LoadedFiles map[string]string             `json:"loaded_files"`
}

func NewContainer() *Container {
	return &Container{
		Database:    make(map[string]*db.RecordInstance),
		PVADatabase: make(map[string]*db.RecordInstance),
		Scripts:     make(map[string]*LoadedIOC),
		LoadedFiles: make(map[string]string),
	}
}

// Add merges one completed instance. Record instances merge field-by-field
// with appended provenance; file ledger entries are last-write-wins. The
// aggregated view is built from clones: instance states are frozen after
// interpretation, and a later Add must never mutate an earlier one.
func (c *Container) Add(loaded *LoadedIOC) {
	name := loaded.Name
	if name == "" {
		name = loaded.Path
	}
	c.Scripts[name] = loaded

	for recName, rec := range loaded.State.Database {
		if existing, ok := c.Database[recName]; ok {
			existing.Merge(rec)
		} else {
			c.Database[recName] = rec.Clone()
		}
	}
	for recName, rec := range loaded.State.PVADatabase {
		if existing, ok := c.PVADatabase[recName]; ok {
			existing.Merge(rec)
		} else {
			c.PVADatabase[recName] = rec.Clone()
		}
	}
	for file, fingerprint := range loaded.State.LoadedFiles {
		c.LoadedFiles[file] = fingerprint
	}
}

// Names returns the instance names in sorted order.
func (c *Container) Names() []string {
	names := make([]string, 0, len(c.Scripts))
	for name := range c.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WhatRec is one instance's answer to a record query: the matched record
// instance(s) and any hardware ports their link fields resolve to. When a
// port names a parent, the parent precedes it in Ports.
type WhatRec struct {
	Name      string               `json:"name"`
	Owner     string               `json:"owner,omitempty"`
	Instances []*db.RecordInstance `json:"instances"`
	Ports     []*ports.Port        `json:"ports,omitempty"`
	Metadata  *Metadata            `json:"metadata,omitempty"`
}

// WhatRec answers whether any loaded instance defines a record with that
// name in the classic or structured namespace. field, when non-empty,
// restricts classic matches to records defining that field.
func (c *Container) WhatRec(rec string, field string, includePVA bool) []*WhatRec {
	var results []*WhatRec
	for _, owner := range c.Names() {
		loaded := c.Scripts[owner]
		info := whatRec(loaded.State, rec, field, includePVA)
		if info == nil {
			continue
		}
		info.Owner = owner
		info.Metadata = loaded.Metadata
		results = append(results, info)
	}
	return results
}

func whatRec(state *State, rec string, field string, includePVA bool) *WhatRec {
	classic := state.Database[rec]
	if classic != nil && field != "" {
		if _, ok := classic.Fields[field]; !ok {
			classic = nil
		}
	}
	var pva *db.RecordInstance
	if includePVA {
		pva = state.PVADatabase[rec]
	}
	if classic == nil && pva == nil {
		return nil
	}

	ret := &WhatRec{Name: rec}
	if classic != nil {
		ret.Instances = append(ret.Instances, classic)
		if port := portFromRecord(state, classic); port != nil {
			if port.Parent != "" {
				if parent, err := state.Ports.Lookup(port.Parent); err == nil {
					ret.Ports = append(ret.Ports, parent)
				}
			}
			ret.Ports = append(ret.Ports, port)
		}
	}
	if pva != nil {
		ret.Instances = append(ret.Instances, pva)
	}
	return ret
}

// portFromRecord resolves the port referenced by a record's primary link
// field: INP when present, OUT otherwise, in "@asyn(port, addr)" form.
func portFromRecord(state *State, rec *db.RecordInstance) *ports.Port {
	link, ok := rec.Fields["INP"]
	if !ok {
		link, ok = rec.Fields["OUT"]
	}
	if !ok {
		return nil
	}
	value := strings.TrimSpace(link.Value)
	if !strings.HasPrefix(value, "@asyn") {
		return nil
	}
	args := strings.Trim(strings.TrimPrefix(value, "@asyn"), " ()")
	name, _, _ := strings.Cut(args, ",")
	port, err := state.Ports.Lookup(strings.TrimSpace(name))
	if err != nil {
		return nil
	}
	return port
}
