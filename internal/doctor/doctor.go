// Package doctor diagnoses a halted run by gathering the failing phase's
// configuration, recent history, and rendered prompt, then handing that
// context to a one-shot claude invocation for a human-readable diagnosis.
//
// Grounded on the teacher's internal/doctor: the same
// gather-context-then-one-shot-claude shape, generalized from
// config.Phase/state.LogPath (a per-phase on-disk log file and YAML phase
// record) to workflow.Phase and workflowstate.State's in-memory History,
// since CloudForge keeps its run record in one state.json rather than
// per-phase log files.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/Hawkynt/CloudForge/internal/prompt"
	"github.com/Hawkynt/CloudForge/internal/ux"
	"github.com/Hawkynt/CloudForge/internal/workflow"
	"github.com/Hawkynt/CloudForge/internal/workflowstate"
)

const maxHistoryEntries = 10

const diagPromptTemplate = `You are diagnosing a halted CloudForge workflow run. Analyze the context below and provide a concise diagnosis.

## Current Phase
%s

## Recent History (most recent last)
%s

## Rendered Prompt for the Current Phase
%s

## Recent Errors
%s

Instructions:
1. Identify what went wrong from the history and errors above.
2. Classify this as a WORKFLOW problem (workflow.dot phase graph, missing artifacts) or a TASK problem (the work the agent was attempting).
3. Suggest specific fixes.
4. Recommend the next command to run:
   - cloudforge run --continue-session <id>  (resume from the saved state)
   - Fix the underlying issue first, then resume

Be direct and concise. Focus on actionable advice.`

// Run gathers failure context from state and sends it to claude for
// diagnosis. Callers are expected to have already checked that the run is
// actually halted; Run itself does not re-derive that from state alone,
// since workflowstate carries no explicit status field distinct from its
// phase/retry counters.
func Run(ctx context.Context, def *workflow.Definition, s *workflowstate.State, prompts prompt.Provider, reporter ux.Reporter) error {
	phase, ok := def.PhaseConfig(s.CurrentPhase)
	if !ok {
		return fmt.Errorf("doctor: current phase %q is not defined in the workflow", s.CurrentPhase)
	}

	phaseConfig := gatherPhaseConfig(phase)
	history := gatherHistory(s)
	promptText := gatherPrompt(def, s, prompts)
	errors := gatherErrors(s)

	diagText := fmt.Sprintf(diagPromptTemplate, phaseConfig, history, promptText, errors)

	fmt.Printf("\n%s%s== diagnosing phase %s ==%s\n\n", ux.Bold, ux.Cyan, s.CurrentPhase, ux.Reset)

	if err := runClaude(ctx, diagText); err != nil {
		return fmt.Errorf("running claude: %w", err)
	}

	fmt.Println()
	reporter.ResumeHint("")
	return nil
}

func gatherPhaseConfig(phase workflow.Phase) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Name: %s", phase.Name))
	if phase.TaskLoop {
		parts = append(parts, "Task loop: yes")
	}
	var labels []string
	for label, target := range phase.Transitions {
		if target == "" {
			target = workflow.End
		}
		labels = append(labels, fmt.Sprintf("%s -> %s", label, target))
	}
	if len(labels) > 0 {
		parts = append(parts, "Transitions: "+strings.Join(labels, ", "))
	}
	return strings.Join(parts, "\n")
}

func gatherHistory(s *workflowstate.State) string {
	entries := s.History
	if len(entries) > maxHistoryEntries {
		entries = entries[len(entries)-maxHistoryEntries:]
	}
	var parts []string
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("#%d %s: %s (%s)", e.Iteration, e.Phase, e.Result, e.Summary))
	}
	if len(parts) == 0 {
		return "(no history recorded yet)"
	}
	return strings.Join(parts, "\n")
}

func gatherPrompt(def *workflow.Definition, s *workflowstate.State, prompts prompt.Provider) string {
	if prompts == nil {
		return "(no prompt provider configured)"
	}
	text, err := prompts.PromptFor(s.CurrentPhase, prompt.Context{
		Task:          s.Task,
		Phase:         s.CurrentPhase,
		SubTaskNumber: s.CurrentSubTask,
		TotalSubTasks: s.TotalSubTasks,
	})
	if err != nil {
		return fmt.Sprintf("(failed to render prompt: %v)", err)
	}
	return text
}

func gatherErrors(s *workflowstate.State) string {
	if len(s.LastErrors) == 0 {
		return "(none)"
	}
	return strings.Join(s.LastErrors, "\n")
}

func filteredEnv() []string {
	var env []string
	for _, e := range os.Environ() {
		key := strings.SplitN(e, "=", 2)[0]
		if strings.HasPrefix(key, "CLAUDECODE") {
			continue
		}
		env = append(env, e)
	}
	return env
}

func runClaude(ctx context.Context, diagPrompt string) error {
	cmd := exec.CommandContext(ctx, "claude", "-p", diagPrompt, "--model", "sonnet")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = filteredEnv()
	return cmd.Run()
}
