package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Hawkynt/CloudForge/internal/ux"
	"github.com/Hawkynt/CloudForge/internal/workflow"
)

const fallbackWorkflow = `DISCOVER -> REQUIREMENTS [done]
REQUIREMENTS -> REQUIREMENTS [retry]
REQUIREMENTS -> PLAN [done]
PLAN -> PLAN [retry]
PLAN -> IMPLEMENT [done]
*IMPLEMENT -> IMPLEMENT [done_next_subtask]
IMPLEMENT -> IMPLEMENT [retry]
IMPLEMENT -> VERIFY [done]
VERIFY -> IMPLEMENT [retry]
VERIFY -> VERIFY [retry_exhausted]
VERIFY -> END [done]
`

const fallbackDiscoverPrompt = `Task: $TASK

Explore the codebase in $WORKING_DIR and write a short requirements summary
describing what the task needs. End with a CLOUDFORGE_STATUS: block.
`

const fallbackRequirementsPrompt = `Task: $TASK

Turn the discovery findings into a concrete, testable requirements list.
End with a CLOUDFORGE_STATUS: block.
`

const fallbackPlanPrompt = `Task: $TASK

Write an implementation plan broken into numbered sub-tasks, using
"## Sub-task N" headings, one per unit of work. End with a
CLOUDFORGE_STATUS: block.
`

const fallbackImplementPrompt = `Task: $TASK

You are implementing sub-task $SUBTASK_NUMBER of $TOTAL_SUBTASKS in
$WORKING_DIR. Follow the plan, follow existing code conventions, and end
with a CLOUDFORGE_STATUS: block.
`

const fallbackVerifyPrompt = `Task: $TASK

Run the project's tests and checks in $WORKING_DIR. If anything fails,
report result: NEEDS_RETRY with a summary of what broke. End with a
CLOUDFORGE_STATUS: block.
`

// writeFallbackWorkflow writes a minimal default workflow when AI generation
// fails or is unavailable.
func writeFallbackWorkflow(targetDir string) error {
	files := map[string]string{
		".cloudforge/workflow.dot":             fallbackWorkflow,
		".cloudforge/prompts/discover.md":      fallbackDiscoverPrompt,
		".cloudforge/prompts/requirements.md":  fallbackRequirementsPrompt,
		".cloudforge/prompts/plan.md":          fallbackPlanPrompt,
		".cloudforge/prompts/implement.md":     fallbackImplementPrompt,
		".cloudforge/prompts/verify.md":        fallbackVerifyPrompt,
	}

	var written []string
	for relPath, content := range files {
		fullPath := filepath.Join(targetDir, relPath)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", relPath, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", relPath, err)
		}
		written = append(written, relPath)
	}

	if err := writeGitignore(targetDir); err != nil {
		return err
	}
	written = append(written, ".cloudforge/.gitignore")

	printSuccess("default template", written)

	workflow.ClearCache()
	if def, err := workflow.LoadWorkflow(filepath.Join(targetDir, ".cloudforge", "workflow.dot")); err == nil {
		fmt.Printf("\n  Workflow: %s%s%s\n", ux.Bold, renderWorkflowSummary(def), ux.Reset)
	}

	fmt.Printf("\n  %sCustomize .cloudforge/workflow.dot and the prompt templates for your project.%s\n", ux.Dim, ux.Reset)
	fmt.Printf("\n  Next: %scloudforge run \"<task description>\" --dry-run%s\n\n", ux.Cyan, ux.Reset)
	return nil
}

// writeGitignore ignores the run's generated state and phase-output
// artifacts, which all live directly in .cloudforge/ alongside the
// checked-in workflow.dot and prompts/ templates.
func writeGitignore(targetDir string) error {
	path := filepath.Join(targetDir, ".cloudforge", ".gitignore")
	contents := "state.json\nplan.md\nrequirements.md\nstories.md\ndomain.md\n" +
		"bdd-scenarios.md\nquality-report.md\ninnovation-log.md\nprd/\n"
	return os.WriteFile(path, []byte(contents), 0644)
}
