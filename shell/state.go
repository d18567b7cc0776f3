// Package shell is the IOC shell interpreter: the mutable state container
// its commands act on, the command dispatch table, the line interpreter,
// and the container aggregating many completed states.
package shell

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZLLentz/whatrecord/db"
	"github.com/ZLLentz/whatrecord/iocsh"
	"github.com/ZLLentz/whatrecord/macros"
	"github.com/ZLLentz/whatrecord/ports"
)

// Metadata describes one IOC instance and what was learned about it during
// the load.
type Metadata struct {
	Name               string            `json:"name"`
	Script             string            `json:"script"`
	StartupDirectory   string            `json:"startup_directory,omitempty"`
	Macros             map[string]string `json:"macros,omitempty"`
	StandinDirectories map[string]string `json:"standin_directories,omitempty"`
	BaseVersion        string            `json:"base_version,omitempty"`
	LoadedFiles        map[string]string `json:"loaded_files,omitempty"`
	Extra              map[string]string `json:"extra,omitempty"`
}

func NewMetadata() *Metadata {
	return &Metadata{
		Macros:             make(map[string]string),
		StandinDirectories: make(map[string]string),
		LoadedFiles:        make(map[string]string),
		Extra:              make(map[string]string),
	}
}

// Handler executes one shell command against the state. The returned value
// is opaque to the dispatcher: a string, a structured mapping, or a marker
// like CmdInvocation.
type Handler func(args []string) (any, error)

// Unhandled is the dispatch outcome for commands without a handler. Unknown
// commands are common in foreign startup scripts and are not errors.
type Unhandled struct {
	Command string `json:"command"`
}

// CmdInvocation is the outcome of iocshCmd-style commands: the interpreter
// re-interprets Command as if it were the next script line.
type CmdInvocation struct {
	Context iocsh.FullLoadContext `json:"context"`
	Command string                `json:"command"`
}

// LoadedDatabase summarizes one dbLoadRecords call.
type LoadedDatabase struct {
	Filename      string            `json:"filename"`
	RecordCount   int               `json:"record_count"`
	PVAGroupCount int               `json:"pva_group_count"`
	Macros        map[string]string `json:"macros,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// State is the interpreter's mutable world for one IOC. It is created once
// per instance, mutated exclusively by command dispatch during
// interpretation, and treated as read-only once interpretation completes.
type State struct {
	Prompt             string                        `json:"prompt"`
	Variables          map[string]string             `json:"variables"`
	Initialized        bool                          `json:"initialized"`
	WorkingDirectory   string                        `json:"working_directory"`
	StandinDirectories map[string]string             `json:"standin_directories,omitempty"`
	Schema             *db.Schema                    `json:"schema,omitempty"`
	Database           map[string]*db.RecordInstance `json:"database"`
	PVADatabase        map[string]*db.RecordInstance `json:"pva_database"`
	Ports              ports.Registry                `json:"ports"`
	LoadedFiles        map[string]string             `json:"loaded_files"`
	Metadata           *Metadata                     `json:"metadata"`

	Macros *macros.Context `json:"-"`

	loadContext []*iocsh.MutableLoadContext
	handlers    map[string]Handler
}

func NewState() *State {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	s := &State{
		Prompt:             "epics>",
		Variables:          make(map[string]string),
		WorkingDirectory:   wd,
		StandinDirectories: make(map[string]string),
		Database:           make(map[string]*db.RecordInstance),
		PVADatabase:        make(map[string]*db.RecordInstance),
		Ports:              make(ports.Registry),
		LoadedFiles:        make(map[string]string),
		Metadata:           NewMetadata(),
		Macros:             macros.NewContext(),
	}
	s.registerHandlers()
	return s
}

// FullLoadContext snapshots the current inclusion stack, outermost file
// first.
func (s *State) FullLoadContext() iocsh.FullLoadContext {
	if len(s.loadContext) == 0 {
		return nil
	}
	ret := make(iocsh.FullLoadContext, len(s.loadContext))
	for i, ctx := range s.loadContext {
		ret[i] = ctx.Freeze()
	}
	return ret
}

// HandleCommand dispatches one parsed command. Unknown commands return
// Unhandled, never an error.
func (s *State) HandleCommand(command string, args ...string) (any, error) {
	handler, ok := s.handlers[command]
	if !ok {
		return Unhandled{Command: command}, nil
	}
	return handler(args)
}

// fixPath applies the stand-in directory table to absolute paths, rewriting
// the longest matching prefix, and resolves relative paths against the
// working directory.
func (s *State) fixPath(filename string) string {
	if filepath.IsAbs(filename) {
		best := ""
		for from := range s.StandinDirectories {
			if strings.HasPrefix(filename, from) && len(from) > len(best) {
				best = from
			}
		}
		if best != "" {
			return s.StandinDirectories[best] + filename[len(best):]
		}
		return filename
	}
	return filepath.Join(s.WorkingDirectory, filename)
}

// LoadFile reads a file after stand-in substitution, fingerprints its
// content, and records it in the file ledger keyed by resolved absolute
// path.
func (s *State) LoadFile(filename string) (string, string, error) {
	path := s.fixPath(filename)
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("resolve %s: %w", path, err)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return "", "", err
	}
	sum := sha256.Sum256(content)
	fingerprint := hex.EncodeToString(sum[:])
	s.LoadedFiles[abs] = fingerprint
	s.Metadata.LoadedFiles[abs] = fingerprint
	return abs, string(content), nil
}
