package agent

import "fmt"

// TransportError indicates the model provider was unreachable or rejected the
// request at the HTTP level. The client adapter retries these a fixed number
// of times before surfacing them.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider %s transport failure: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError indicates model output could not be coerced into the expected
// JSON shape. Never retried by the adapter itself; callers may re-prompt.
type ParseError struct {
	Excerpt string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse model output as JSON: %v (content: %s)", e.Err, e.Excerpt)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExecutionError indicates a sandboxed transform threw or returned the wrong
// shape. The message is fed back to the model verbatim when the call site
// loops for self-correction.
type ExecutionError struct {
	Stage   string // "compile", "dry-run", "full-run"
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("transform %s failed: %s", e.Stage, e.Message)
}

// truncateForDiagnostics bounds content excerpts carried inside errors.
func truncateForDiagnostics(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
