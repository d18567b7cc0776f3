package configs

import (
	"os"
	"path/filepath"

	"github.com/reusee/dscope"
)

type Module struct {
	dscope.Module
}

// Schema validates analyzer config files. All fields are optional;
// command-line arguments override what is configured here.
const Schema = `
standin_directories?: {[string]: string}
workers?: int
strict?: bool
iocs?: [...{
	name?: string
	script: string
	startup_directory?: string
	macros?: {[string]: string}
	binary_introspection?: bool
}]
`

// Loader is provided from the usual config search path: system-wide, user
// config dir, then working directory, later files taking precedence for
// First lookups in reverse order of discovery.
func (Module) Loader() Loader {
	var paths []string

	filenames := []string{
		"whatrec.cue",
		".whatrec.cue",
	}

	for _, filename := range filenames {
		path := filepath.Join("/etc", filename)
		if _, err := os.Stat(path); err == nil {
			paths = append(paths, path)
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		for _, filename := range filenames {
			path := filepath.Join(configDir, filename)
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		}
	}

	if workingDir, err := os.Getwd(); err == nil {
		for _, filename := range filenames {
			path := filepath.Join(workingDir, filename)
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		}
	}

	// Most local first.
	for i, j := 0, len(paths)-1; i < j; i, j = i+1, j-1 {
		paths[i], paths[j] = paths[j], paths[i]
	}

	return NewLoader(paths, Schema)
}
