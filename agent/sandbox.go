package agent

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
)

const (
	// dryRunSampleSize bounds the sample used to verify a transform before it
	// touches the full dataset.
	dryRunSampleSize = 20

	// transformTimeout interrupts a runaway transform. This is a liveness
	// bound, not a security boundary.
	transformTimeout = 10 * time.Second
)

// TransformSandbox compiles and executes model-authored row transformations.
// The discipline is compile, dry-run on a small sample, then commit on the
// full dataset; the sandbox never retries internally. Failure messages are
// written to be fed back to the model as corrective context by the caller.
type TransformSandbox struct {
	logger func(string)
}

// NewTransformSandbox creates a sandbox. logger may be nil.
func NewTransformSandbox(logger func(string)) *TransformSandbox {
	return &TransformSandbox{logger: logger}
}

func (s *TransformSandbox) log(msg string) {
	if s.logger != nil {
		s.logger(msg)
	}
}

// Run executes the function body against the full dataset after a successful
// dry run on a sample. Returns the transformed rows.
func (s *TransformSandbox) Run(body string, rows []Row) ([]Row, error) {
	if _, err := s.DryRun(body, rows); err != nil {
		return nil, err
	}
	s.log(fmt.Sprintf("[SANDBOX] Dry run passed, executing transform on %d rows", len(rows)))
	return s.execute(body, rows, "full-run")
}

// DryRun executes the function body against a bounded sample and verifies the
// result is an array of row objects. The body is compiled here, at the
// boundary where it is needed; static analysis alone is never trusted.
func (s *TransformSandbox) DryRun(body string, rows []Row) ([]Row, error) {
	sample := SampleRows(rows, dryRunSampleSize)
	s.log(fmt.Sprintf("[SANDBOX] Dry run on %d sample rows", len(sample)))
	return s.execute(body, sample, "dry-run")
}

func (s *TransformSandbox) execute(body string, rows []Row, stage string) ([]Row, error) {
	vm := goja.New()

	timer := time.AfterFunc(transformTimeout, func() {
		vm.Interrupt("transform timed out")
	})
	defer timer.Stop()

	fnValue, err := vm.RunString("(function(data) {\n" + body + "\n})")
	if err != nil {
		return nil, &ExecutionError{Stage: "compile", Message: err.Error()}
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return nil, &ExecutionError{Stage: "compile", Message: "body did not compile to a callable function"}
	}

	result, err := func() (v goja.Value, err error) {
		// goja surfaces uncaught JS exceptions as panics in some paths.
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%v", r)
			}
		}()
		return fn(goja.Undefined(), vm.ToValue(rows))
	}()
	if err != nil {
		return nil, &ExecutionError{Stage: stage, Message: err.Error()}
	}

	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		// The model is instructed to include a return statement; a missing
		// one surfaces here as undefined.
		return nil, &ExecutionError{Stage: stage, Message: "function did not return an array"}
	}

	exported := result.Export()
	arr, ok := exported.([]interface{})
	if !ok {
		return nil, &ExecutionError{
			Stage:   stage,
			Message: fmt.Sprintf("function must return an array of row objects, got %T", exported),
		}
	}

	transformed := make([]Row, 0, len(arr))
	for i, item := range arr {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, &ExecutionError{
				Stage:   stage,
				Message: fmt.Sprintf("array element %d is not an object (got %T)", i, item),
			}
		}
		transformed = append(transformed, obj)
	}
	return transformed, nil
}
