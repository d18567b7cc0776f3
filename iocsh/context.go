package iocsh

// LoadContext is one (filename, line) pair describing where a fact came
// from. Captured values are never mutated afterwards.
type LoadContext struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// FullLoadContext is an ordered inclusion chain, outermost file first.
type FullLoadContext []LoadContext

// MutableLoadContext tracks the current line of a file while it is being
// interpreted. Freeze captures an immutable snapshot.
type MutableLoadContext struct {
	Name string
	Line int
}

func (m *MutableLoadContext) Freeze() LoadContext {
	return LoadContext{
		Name: m.Name,
		Line: m.Line,
	}
}
