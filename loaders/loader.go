// Package loaders runs IOC startup scripts through the shell interpreter,
// one state per script, many scripts concurrently.
package loaders

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ZLLentz/whatrecord/iocsh"
	"github.com/ZLLentz/whatrecord/shell"
	"github.com/ZLLentz/whatrecord/vars"
)

// Descriptor names one startup script to load and how to load it.
type Descriptor struct {
	Name                string            `json:"name"`
	Script              string            `json:"script"`
	StartupDirectory    string            `json:"startup_directory,omitempty"`
	Macros              map[string]string `json:"macros,omitempty"`
	StandinDirectories  map[string]string `json:"standin_directories,omitempty"`
	BinaryIntrospection bool              `json:"binary_introspection,omitempty"`
}

// DisplayName is the instance name, falling back to the script's base name.
func (d Descriptor) DisplayName() string {
	return vars.FirstNonZero(
		d.Name,
		filepath.Base(filepath.Dir(d.Script)),
	)
}

func (d Descriptor) newMetadata() *shell.Metadata {
	md := shell.NewMetadata()
	md.Name = d.DisplayName()
	md.Script = d.Script
	md.StartupDirectory = d.startupDirectory()
	for name, value := range d.Macros {
		md.Macros[name] = value
	}
	for from, to := range d.StandinDirectories {
		md.StandinDirectories[from] = to
	}
	return md
}

func (d Descriptor) startupDirectory() string {
	return vars.FirstNonZero(
		d.StartupDirectory,
		filepath.Dir(d.Script),
	)
}

// LoadOne interprets one startup script to completion. It always returns a
// usable instance: on failure the instance is the errored placeholder
// carrying the diagnostic, alongside the error itself.
func LoadOne(ctx context.Context, desc Descriptor, strict bool) (*shell.LoadedIOC, error) {
	md := desc.newMetadata()

	state := shell.NewState()
	state.Metadata = md
	state.WorkingDirectory = md.StartupDirectory
	for from, to := range md.StandinDirectories {
		state.StandinDirectories[from] = to
	}
	state.Macros.Define(md.Macros)

	path, content, err := state.LoadFile(desc.Script)
	if err != nil {
		err = fmt.Errorf("load script: %w", err)
		return shell.NewErroredIOC(md, err), err
	}

	var script []*iocsh.Result
	for result, err := range state.InterpretScript(path, content, strict) {
		if err := ctx.Err(); err != nil {
			return shell.NewErroredIOC(md, err), err
		}
		if result != nil {
			script = append(script, result)
		}
		if err != nil {
			err = fmt.Errorf("interpret %s: %w", path, err)
			return shell.NewErroredIOC(md, err), err
		}
	}

	return &shell.LoadedIOC{
		Name:     md.Name,
		Path:     path,
		Metadata: md,
		State:    state,
		Script:   script,
	}, nil
}
