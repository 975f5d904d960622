// Package expr implements the restricted `${{ … }}` expression
// grammar: literals, dotted-path lookups into a Context, `==`, `!=`,
// `&&`, `||`, `!`, and the four status functions. It is a hand-written
// recursive-descent evaluator, deliberately not a JavaScript VM — see
// DESIGN.md for why the pack's goja-based internal/cwlexpr is not
// reused here.
package expr

// Context is the lookup root for a dotted path like `steps.build.outputs.artifact`
// or `matrix.os`. Grounded on internal/cwlexpr.Context's shape (a
// struct carrying the values an expression may reference) but with
// GitHub Actions' named top-level contexts instead of CWL's
// inputs/self/runtime.
type Context struct {
	Values map[string]any

	// Outcome is the running job's own outcome-so-far, consulted by the
	// status functions.
	Outcome JobOutcome
}

// JobOutcome summarizes what has happened to the job so far, as needed
// by always()/success()/failure()/cancelled().
type JobOutcome struct {
	AnyFailed    bool
	AnyCancelled bool
}

// NewContext builds a Context over a flat map of top-level context
// names ("github", "runner", "job", "matrix", "strategy", "steps") to
// their values.
func NewContext(values map[string]any) *Context {
	return &Context{Values: values}
}

// WithOutcome returns a copy of c with Outcome replaced.
func (c *Context) WithOutcome(outcome JobOutcome) *Context {
	return &Context{Values: c.Values, Outcome: outcome}
}
