package loaders

import (
	"github.com/ZLLentz/whatrecord/configs"
	"github.com/ZLLentz/whatrecord/logs"
	"github.com/reusee/dscope"
)

type Module struct {
	dscope.Module
	Configs configs.Module
	Logs    logs.Module
}

// Descriptors converts the configured IOC entries into load descriptors.
// Callers fork the scope to provide descriptors from other sources.
func (Module) Descriptors(entries configs.ConfiguredIOCs) []Descriptor {
	descriptors := make([]Descriptor, 0, len(entries))
	for _, entry := range entries {
		descriptors = append(descriptors, Descriptor{
			Name:                entry.Name,
			Script:              entry.Script,
			StartupDirectory:    entry.StartupDirectory,
			Macros:              entry.Macros,
			BinaryIntrospection: entry.BinaryIntrospection,
		})
	}
	return descriptors
}
