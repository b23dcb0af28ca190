package domain

// Directive is a handler's instruction to the flow engine.
type Directive int

const (
	// DirectiveSkip passes the same signal to the next handler.
	DirectiveSkip Directive = iota
	// DirectiveEmit re-enters the pipeline from the first handler with a new signal.
	DirectiveEmit
	// DirectiveHalt ends processing with a final signal.
	DirectiveHalt
)

func (d Directive) String() string {
	switch d {
	case DirectiveSkip:
		return "skip"
	case DirectiveEmit:
		return "emit"
	case DirectiveHalt:
		return "halt"
	default:
		return "unknown"
	}
}
