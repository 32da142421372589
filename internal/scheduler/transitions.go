package scheduler

import (
	"github.com/Hawkynt/CloudForge/internal/status"
	"github.com/Hawkynt/CloudForge/internal/workflow"
)

// nextPhase computes the phase to run after the current one, given the
// parsed result and sub-task/retry counters (spec.md §4.8's state-machine
// table). An empty return means the workflow terminates.
func nextPhase(def *workflow.Definition, current, result string, currentSubTask, totalSubTasks, phaseRetryCount, maxPhaseRetries int) string {
	phase, ok := def.PhaseConfig(current)
	if !ok {
		return ""
	}

	var target string
	switch result {
	case status.ResultDone, status.ResultBlocked:
		target = doneTarget(phase, currentSubTask, totalSubTasks)

	case status.ResultNeedsRetry:
		if t, ok2 := phase.Transitions[workflow.LabelRetryExhausted]; ok2 && phaseRetryCount >= maxPhaseRetries {
			target = t
		} else if _, hasSubtask := phase.Transitions[workflow.LabelDoneNextSubtask]; hasSubtask {
			target = doneTarget(phase, currentSubTask, totalSubTasks)
		} else {
			target = phase.Transitions[workflow.LabelRetry]
		}

	default:
		target = phase.Transitions[workflow.LabelRetry]
	}

	if target == workflow.End {
		return ""
	}
	return target
}

// doneTarget resolves the done branch: a task-loop phase with sub-tasks
// left to do re-enters itself via done_next_subtask instead of advancing.
func doneTarget(phase workflow.Phase, currentSubTask, totalSubTasks int) string {
	if t, ok := phase.Transitions[workflow.LabelDoneNextSubtask]; ok && currentSubTask < totalSubTasks {
		return t
	}
	return phase.Transitions[workflow.LabelDone]
}
