package recovery

import (
	"time"

	"github.com/Hawkynt/CloudForge/internal/workflow"
	"github.com/Hawkynt/CloudForge/internal/workflowstate"
)

const defaultIterationCap = 25

// RepairState normalizes a loaded state into a safe shape before use
// (spec.md §4.7). It is idempotent: repairing an already-repaired state is a
// no-op.
func RepairState(s *workflowstate.State, def *workflow.Definition) {
	if _, ok := def.PhaseConfig(s.CurrentPhase); !ok {
		s.CurrentPhase = def.FirstPhase()
	}

	if s.Iteration < 0 {
		s.Iteration = 0
	}
	if s.IterationCap <= 0 {
		s.IterationCap = defaultIterationCap
	}

	if s.History == nil {
		s.History = []workflowstate.HistoryEntry{}
	}
	if s.LastErrors == nil {
		s.LastErrors = []string{}
	}

	s.CompletedPhases = filterValidPhases(s.CompletedPhases, def)

	if s.TotalInputTokens < 0 {
		s.TotalInputTokens = 0
	}
	if s.TotalOutputTokens < 0 {
		s.TotalOutputTokens = 0
	}
	if s.CurrentSubTask < 0 {
		s.CurrentSubTask = 0
	}
	if s.TotalSubTasks < 0 {
		s.TotalSubTasks = 0
	}
	if s.ConsecutiveRetries < 0 {
		s.ConsecutiveRetries = 0
	}

	if s.StartTime.IsZero() {
		s.StartTime = time.Now()
	}
	if s.LastActivity.IsZero() {
		s.LastActivity = time.Now()
	}

	// Resuming is an explicit "try again": cross-phase retry noise from
	// before the crash must not immediately trip the breaker.
	s.ConsecutiveRetries = 0
	s.LastErrors = []string{}
}

// filterValidPhases keeps only names that are real phases in def, preserving
// first-insertion order and dropping duplicates.
func filterValidPhases(names []string, def *workflow.Definition) []string {
	if names == nil {
		return []string{}
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		if _, ok := def.PhaseConfig(n); !ok {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
