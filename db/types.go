// Package db models EPICS record databases: record-type definitions parsed
// from .dbd text and record instances parsed from .db text.
package db

import (
	"github.com/ZLLentz/whatrecord/iocsh"
)

// FieldDef is one field declaration inside a record type.
type FieldDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// RecordType is one recordtype block of a database definition.
type RecordType struct {
	Name    string              `json:"name"`
	Fields  map[string]FieldDef `json:"fields"`
	Context iocsh.FullLoadContext `json:"context"`
}

// Schema holds the record-type definitions of a loaded .dbd file. Record
// instances are validated and merged against it.
type Schema struct {
	Filename    string                 `json:"filename"`
	RecordTypes map[string]*RecordType `json:"record_types"`
}

// Field is one field value of a record instance, with provenance.
type Field struct {
	Name    string                `json:"name"`
	Value   string                `json:"value"`
	Context iocsh.FullLoadContext `json:"context"`
}

// RecordInstance is a named, typed record. Classic and PVA (structured)
// records live in separate namespaces; IsPVA tells them apart. Re-declaring
// a record merges fields and appends provenance, see Merge.
type RecordInstance struct {
	Name       string                `json:"name"`
	RecordType string                `json:"record_type"`
	Fields     map[string]Field      `json:"fields"`
	Context    iocsh.FullLoadContext `json:"context"`
	IsPVA      bool                  `json:"is_pva,omitempty"`
	Metadata   map[string]string     `json:"metadata,omitempty"`
}

// Merge folds a later declaration of the same record into r: later field
// values overwrite earlier ones and the new provenance is appended, never
// replaced. The other record is only read.
func (r *RecordInstance) Merge(other *RecordInstance) {
	r.Context = append(r.Context, other.Context...)
	for name, field := range other.Fields {
		r.Fields[name] = field
	}
}

// Clone returns a copy that can be merged into without touching r: own
// field map, own context backing array. Field values are immutable under
// Merge, so they are shared.
func (r *RecordInstance) Clone() *RecordInstance {
	clone := &RecordInstance{
		Name:       r.Name,
		RecordType: r.RecordType,
		Fields:     make(map[string]Field, len(r.Fields)),
		Context:    append(iocsh.FullLoadContext(nil), r.Context...),
		IsPVA:      r.IsPVA,
	}
	for name, field := range r.Fields {
		clone.Fields[name] = field
	}
	if r.Metadata != nil {
		clone.Metadata = make(map[string]string, len(r.Metadata))
		for key, value := range r.Metadata {
			clone.Metadata[key] = value
		}
	}
	return clone
}

// Database is the per-file result of parsing record text: classic records
// and PVA groups, plus non-fatal lint warnings.
type Database struct {
	Records   map[string]*RecordInstance `json:"records"`
	PVAGroups map[string]*RecordInstance `json:"pva_groups"`
	Warnings  []string                   `json:"warnings,omitempty"`
}

func NewDatabase() *Database {
	return &Database{
		Records:   make(map[string]*RecordInstance),
		PVAGroups: make(map[string]*RecordInstance),
	}
}
