package ux

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Hawkynt/CloudForge/internal/workflow"
	"github.com/Hawkynt/CloudForge/internal/workflowstate"
)

// RenderStatus prints the full status display for a run: task, current
// phase, the completed phases, the remaining phases (the workflow's phases
// in first-appearance order minus the completed ones), and a listing of the
// artifact directory.
func RenderStatus(def *workflow.Definition, s *workflowstate.State, artifactsDir string) {
	fmt.Printf("%sTask:%s     %s\n", Bold, Reset, s.Task)
	fmt.Printf("%sPhase:%s    %s\n", Bold, Reset, s.CurrentPhase)
	fmt.Printf("%sIteration:%s %d/%d\n", Bold, Reset, s.Iteration, s.IterationCap)
	if s.TotalSubTasks > 0 {
		fmt.Printf("%sSub-task:%s %d/%d\n", Bold, Reset, s.CurrentSubTask, s.TotalSubTasks)
	}

	completed := make(map[string]bool, len(s.CompletedPhases))
	for _, p := range s.CompletedPhases {
		completed[p] = true
	}

	ordered := def.OrderedPhaseNames()
	if len(s.CompletedPhases) > 0 {
		fmt.Printf("\n%sCompleted:%s\n", Bold, Reset)
		for _, p := range s.CompletedPhases {
			fmt.Printf("  %s%s✓ %s\n", Green, Reset, p)
		}
	}

	fmt.Printf("\n%sRemaining:%s\n", Bold, Reset)
	for _, p := range ordered {
		if completed[p] {
			continue
		}
		marker := "  "
		if p == s.CurrentPhase {
			marker = fmt.Sprintf("%s→%s ", Yellow, Reset)
		}
		fmt.Printf("  %s%s%s\n", marker, p, dimType(def, p))
	}

	fmt.Printf("\n%sArtifacts:%s\n", Bold, Reset)
	entries, err := os.ReadDir(artifactsDir)
	if err != nil {
		fmt.Printf("  %s(none)%s\n", Dim, Reset)
		return
	}
	shown := 0
	for _, e := range entries {
		if nonArtifactEntries[e.Name()] {
			continue
		}
		if e.IsDir() {
			sub, _ := os.ReadDir(filepath.Join(artifactsDir, e.Name()))
			if len(sub) > 0 {
				fmt.Printf("  %s/%s/ (%d files)\n", artifactsDir, e.Name(), len(sub))
				shown++
			}
			continue
		}
		fmt.Printf("  %s/%s\n", artifactsDir, e.Name())
		shown++
	}
	if shown == 0 {
		fmt.Printf("  %s(none)%s\n", Dim, Reset)
	}
	fmt.Println()
}

// nonArtifactEntries names the files the run config/state keeps alongside
// the phase-output artifacts directly in .cloudforge/: the workflow graph,
// its prompt templates, the run state itself, and housekeeping files.
// None of these are "artifacts" in the sense cloudforge status reports.
var nonArtifactEntries = map[string]bool{
	"workflow.dot":  true,
	"prompts":       true,
	"defaults.yaml": true,
	"state.json":    true,
	".gitignore":    true,
}

func dimType(def *workflow.Definition, phase string) string {
	if def.IsTaskLoopPhase(phase) {
		return fmt.Sprintf(" %s(task-loop)%s", Dim, Reset)
	}
	return ""
}
