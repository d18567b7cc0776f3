package configs

import "runtime"

// StandinDirectories maps absolute path prefixes in startup scripts to the
// directories that actually hold the files on the analyzing host.
type StandinDirectories map[string]string

// NumWorkers bounds how many startup scripts load concurrently.
type NumWorkers int

// Strict stops a script at its first failing command instead of recording
// the failure and continuing.
type Strict bool

// IOCEntry describes one startup script to analyze.
type IOCEntry struct {
	Name                string            `json:"name"`
	Script              string            `json:"script"`
	StartupDirectory    string            `json:"startup_directory"`
	Macros              map[string]string `json:"macros"`
	BinaryIntrospection bool              `json:"binary_introspection"`
}

// ConfiguredIOCs holds the IOC entries declared in config files, most local
// file first.
type ConfiguredIOCs []IOCEntry

func (Module) StandinDirectories(loader Loader) StandinDirectories {
	dirs := make(StandinDirectories)
	for m := range All[map[string]string](loader, "standin_directories") {
		for from, to := range m {
			if _, ok := dirs[from]; !ok {
				dirs[from] = to
			}
		}
	}
	return dirs
}

func (Module) NumWorkers(loader Loader) NumWorkers {
	n := First[int](loader, "workers")
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return NumWorkers(n)
}

func (Module) Strict(loader Loader) Strict {
	return Strict(First[bool](loader, "strict"))
}

func (Module) ConfiguredIOCs(loader Loader) ConfiguredIOCs {
	var iocs ConfiguredIOCs
	for entries := range All[[]IOCEntry](loader, "iocs") {
		iocs = append(iocs, entries...)
	}
	return iocs
}
