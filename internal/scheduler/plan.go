package scheduler

import (
	"github.com/Hawkynt/CloudForge/internal/recovery"
	"github.com/Hawkynt/CloudForge/internal/workflowstate"
)

// seedSubTasksFromPlan re-reads plan.md after the planning phase completes
// and sets TotalSubTasks from its "## Sub-task N" headings, resetting the
// cursor so the task loop starts at sub-task 1 (spec.md §4.8 step 10).
func (sc *Scheduler) seedSubTasksFromPlan(s *workflowstate.State) {
	n := recovery.CountSubTasks(sc.ArtifactsDir)
	if n <= 0 {
		return
	}
	s.TotalSubTasks = n
	s.CurrentSubTask = 0
}
