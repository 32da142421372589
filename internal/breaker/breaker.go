// Package breaker implements the three circuit-breaker checks that halt a
// run when progress has stalled (spec.md §4.6).
//
// Grounded on the teacher's runner.Run, which caps a single phase's on-fail
// loop count (count > phase.OnFail.Max) before giving up; this generalizes
// that one phase-local counter into the three workflow-wide measures below.
package breaker

import (
	"fmt"

	"github.com/Hawkynt/CloudForge/internal/workflowstate"
)

// ConsecutiveRetryThreshold is the default "stalled in one phase" limit.
const ConsecutiveRetryThreshold = 3

// IdenticalErrorWindow is how many trailing errors must match to halt.
const IdenticalErrorWindow = 3

// Result is the outcome of Evaluate.
type Result struct {
	Halt   bool
	Reason string
}

// Evaluate runs the three checks in order; the first one that trips wins.
func Evaluate(s *workflowstate.State) Result {
	if s.Iteration >= s.IterationCap {
		return Result{Halt: true, Reason: fmt.Sprintf("iteration cap reached (%d/%d)", s.Iteration, s.IterationCap)}
	}

	if s.ConsecutiveRetries >= ConsecutiveRetryThreshold {
		return Result{Halt: true, Reason: fmt.Sprintf("too many consecutive retries (%d)", s.ConsecutiveRetries)}
	}

	if identicalTrailingErrors(s.LastErrors, IdenticalErrorWindow) {
		return Result{Halt: true, Reason: "repeated identical errors"}
	}

	return Result{}
}

// identicalTrailingErrors reports whether the last window entries of errs
// are all byte-identical.
func identicalTrailingErrors(errs []string, window int) bool {
	if len(errs) < window {
		return false
	}
	tail := errs[len(errs)-window:]
	for _, e := range tail[1:] {
		if e != tail[0] {
			return false
		}
	}
	return true
}
