package iocsh

// RedirectMode distinguishes <, > and >>.
type RedirectMode string

const (
	RedirectRead   RedirectMode = "r"
	RedirectWrite  RedirectMode = "w"
	RedirectAppend RedirectMode = "a"
)

// Redirect is one redirection directive on a shell line. FD emulates the
// standard-stream file descriptor the directive applies to.
type Redirect struct {
	Mode RedirectMode `json:"mode"`
	Name string       `json:"name"`
	FD   int          `json:"fd"`
}

// Result is the outcome of parsing (and later interpreting) one shell line.
// Parse failures set Error instead of failing the parse; consumers must
// check it. Outcome is filled in by the interpreter after dispatch.
type Result struct {
	Context   FullLoadContext `json:"context"`
	Line      string          `json:"line"`
	Argv      []string        `json:"argv,omitempty"`
	Redirects []Redirect      `json:"redirects,omitempty"`
	Error     string          `json:"error,omitempty"`
	Outcome   any             `json:"outcome,omitempty"`
}

// FromPlainLine wraps raw text, such as a diagnostic message, as a Result
// with no argv. Used for errored-load placeholder scripts.
func FromPlainLine(line string) *Result {
	return &Result{
		Line: line,
	}
}
