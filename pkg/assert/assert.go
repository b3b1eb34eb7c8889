// Package assert evaluates declarative assertions against an execution
// trace. Evaluation never fails hard: malformed arguments, type
// mismatches, and unknown operators all degrade to a failing Result with
// an explanatory message, so one bad assertion can never abort a run.
package assert

import (
	"fmt"

	"github.com/google/uuid"

	"flowcheck/pkg/redact"
	"flowcheck/pkg/trace"
)

// Operator names understood by the evaluator.
const (
	OpPathTaken    = "pathTaken"
	OpHTTPOutgoing = "httpOutgoing"
	OpEq           = "eq"
	OpNeq          = "neq"
	OpGt           = "gt"
	OpLt           = "lt"
	OpContains     = "contains"
	OpNotContains  = "notContains"
	OpBodyContains = "bodyContains"
)

// Assertion is one declarative check: an operator plus its arguments.
// Assertions are immutable once loaded for a run.
type Assertion struct {
	ID          uuid.UUID      `json:"id" yaml:"id"`
	Operator    string         `json:"operator" yaml:"operator"`
	Args        map[string]any `json:"args" yaml:"args"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
}

// Result is the outcome of evaluating one assertion. Messages are
// deterministic for identical inputs and already secret-masked.
type Result struct {
	AssertionID uuid.UUID `json:"assertion_id"`
	Operator    string    `json:"operator"`
	Passed      bool      `json:"passed"`
	Message     string    `json:"message"`
}

// Evaluate runs a single assertion against the trace. It never panics past
// this boundary; internal failures become failing results.
func Evaluate(a Assertion, tr *trace.Trace) (res Result) {
	res = Result{AssertionID: a.ID, Operator: a.Operator}

	defer func() {
		if r := recover(); r != nil {
			res.Passed = false
			res.Message = redact.Mask(fmt.Sprintf("Internal error evaluating %s: %v", a.Operator, r))
		}
	}()

	if tr == nil {
		res.Message = "No trace available"
		return res
	}

	passed, message := evaluate(a.Operator, a.Args, tr)
	res.Passed = passed
	res.Message = redact.Mask(message)
	return res
}

// EvaluateAll evaluates every assertion in input order and returns one
// result per assertion, in the same order.
func EvaluateAll(assertions []Assertion, tr *trace.Trace) []Result {
	results := make([]Result, 0, len(assertions))
	for _, a := range assertions {
		results = append(results, Evaluate(a, tr))
	}
	return results
}

// AllPassed reports whether every result passed. True for an empty set.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
