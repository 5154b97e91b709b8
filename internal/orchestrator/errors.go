package orchestrator

import "fmt"

// Fatal error codes surfaced on the done event. Tool failures outside
// these cases are recorded and the run continues.
const (
	CodeSynthesisFailure  = "synthesis_failure"
	CodeExtractionFailure = "extraction_failure"
	CodeRunTimeout        = "run_timeout"
	CodeCancelled         = "cancelled"
)

// FatalError aborts a run. Code is stable and machine-readable; Err
// holds the cause.
type FatalError struct {
	Code string
	Err  error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func fatal(code string, err error) *FatalError {
	return &FatalError{Code: code, Err: err}
}
