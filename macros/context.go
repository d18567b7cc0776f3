package macros

// Context holds an ordered stack of macro scopes. Lookup walks from the
// innermost scope outwards, so a scope pushed by WithScope shadows earlier
// definitions without destroying them.
type Context struct {
	scopes []map[string]string
}

func NewContext() *Context {
	return &Context{
		scopes: []map[string]string{
			make(map[string]string),
		},
	}
}

// Define adds or overwrites macros in the innermost scope.
func (c *Context) Define(defs map[string]string) {
	top := c.scopes[len(c.scopes)-1]
	for name, value := range defs {
		top[name] = value
	}
}

// Get resolves a macro name, innermost scope first.
func (c *Context) Get(name string) (string, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if value, ok := c.scopes[i][name]; ok {
			return value, true
		}
	}
	return "", false
}

// Flatten returns the currently visible definitions as a plain map.
func (c *Context) Flatten() map[string]string {
	ret := make(map[string]string)
	for _, scope := range c.scopes {
		for name, value := range scope {
			ret[name] = value
		}
	}
	return ret
}

// WithScope pushes a new scope holding defs, runs fn, and pops the scope
// again. The pop happens on every exit path, so definitions made inside fn
// cannot leak out even when fn fails.
func (c *Context) WithScope(defs map[string]string, fn func() error) error {
	scope := make(map[string]string, len(defs))
	for name, value := range defs {
		scope[name] = value
	}
	c.scopes = append(c.scopes, scope)
	defer func() {
		c.scopes = c.scopes[:len(c.scopes)-1]
	}()
	return fn()
}
