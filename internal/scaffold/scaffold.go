// Package scaffold implements `cloudforge init`: it asks the coding agent to
// design a workflow.dot phase graph and prompt templates tailored to the
// current project, validates the result, and falls back to a built-in
// default workflow when generation fails.
//
// Grounded on the teacher's internal/scaffold: the same
// gather-context/prompt/retry-with-feedback/validate-in-a-temp-dir/fallback
// shape, generalized from writing a YAML config.yaml to writing a
// workflow.dot graph plus prompt files.
package scaffold

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Hawkynt/CloudForge/internal/contextgather"
	"github.com/Hawkynt/CloudForge/internal/fileblocks"
	"github.com/Hawkynt/CloudForge/internal/ux"
	"github.com/Hawkynt/CloudForge/internal/workflow"
)

const workflowFilePath = ".cloudforge/workflow.dot"

// Init creates a new .cloudforge/ directory with an AI-generated workflow
// graph and prompt files, falling back to a built-in default on failure.
func Init(ctx context.Context, targetDir string) error {
	dir := filepath.Join(targetDir, ".cloudforge")
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf(".cloudforge directory already exists in %s", targetDir)
	}

	return initWithAI(ctx, targetDir)
}

// initWithAI gathers project context, calls claude with retries, and writes
// AI-generated files. Falls back to a default template if all attempts fail.
func initWithAI(ctx context.Context, targetDir string) error {
	fmt.Printf("\n  %sAnalyzing project...%s\n", ux.Dim, ux.Reset)

	pc, err := contextgather.Gather(targetDir)
	if err != nil {
		return fmt.Errorf("gathering context: %w", err)
	}

	prompt := buildInitPrompt(pc.Render())

	const maxAttempts = 3
	var blocks []fileblocks.FileBlock
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt == 1 {
			fmt.Printf("  %sGenerating workflow...%s\n", ux.Dim, ux.Reset)
		} else {
			fmt.Printf("  %s retrying (%d/%d): %v%s\n", ux.Yellow, attempt, maxAttempts, lastErr, ux.Reset)
		}

		currentPrompt := prompt
		if attempt > 1 {
			currentPrompt = prompt + fmt.Sprintf(retryFeedback, lastErr)
		}

		blocks, lastErr = generateWorkflow(ctx, currentPrompt)
		if lastErr == nil {
			break
		}
	}

	if lastErr != nil {
		fmt.Printf("\n  %sAI generation failed after %d attempts: %v%s\n",
			ux.Yellow, maxAttempts, lastErr, ux.Reset)
		fmt.Printf("  %sUsing default workflow template...%s\n", ux.Dim, ux.Reset)
		return writeFallbackWorkflow(targetDir)
	}

	written := writeBlocks(targetDir, blocks)

	if err := writeGitignore(targetDir); err != nil {
		return err
	}
	written = append(written, ".cloudforge/.gitignore")

	printSuccess("AI-generated", written)

	workflow.ClearCache()
	if def, err := workflow.LoadWorkflow(filepath.Join(targetDir, workflowFilePath)); err == nil {
		fmt.Printf("\n  Workflow: %s%s%s\n", ux.Bold, renderWorkflowSummary(def), ux.Reset)
	}

	fmt.Printf("\n  Next: %scloudforge run \"<task description>\" --dry-run%s\n\n", ux.Cyan, ux.Reset)
	return nil
}

// generateWorkflow calls claude, parses the output, and validates the
// generated workflow graph in a temp directory. Returns the validated file
// blocks or an error.
func generateWorkflow(ctx context.Context, prompt string) ([]fileblocks.FileBlock, error) {
	output, err := runClaudeCapture(ctx, prompt)
	if err != nil {
		return nil, err
	}

	blocks := fileblocks.Parse(output)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no file blocks in output")
	}

	hasGraph := false
	for _, b := range blocks {
		if b.Path == workflowFilePath {
			hasGraph = true
		}
	}
	if !hasGraph {
		return nil, fmt.Errorf("output missing %s", workflowFilePath)
	}

	tmpDir, err := os.MkdirTemp("", "cloudforge-init-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	for _, b := range blocks {
		if !strings.HasPrefix(b.Path, ".cloudforge/") {
			continue
		}
		fullPath := filepath.Join(tmpDir, b.Path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return nil, fmt.Errorf("creating temp dir for %s: %w", b.Path, err)
		}
		if err := os.WriteFile(fullPath, []byte(b.Content), 0644); err != nil {
			return nil, fmt.Errorf("writing temp %s: %w", b.Path, err)
		}
	}

	def, err := workflow.LoadWorkflow(filepath.Join(tmpDir, workflowFilePath))
	if err != nil {
		return nil, fmt.Errorf("generated workflow is invalid: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("generated workflow is invalid: %w", err)
	}
	workflow.ClearCache()

	return blocks, nil
}

// writeBlocks writes validated file blocks to the target directory.
func writeBlocks(targetDir string, blocks []fileblocks.FileBlock) []string {
	var written []string
	for _, b := range blocks {
		if !strings.HasPrefix(b.Path, ".cloudforge/") {
			continue
		}
		fullPath := filepath.Join(targetDir, b.Path)
		os.MkdirAll(filepath.Dir(fullPath), 0755)
		os.WriteFile(fullPath, []byte(b.Content), 0644)
		written = append(written, b.Path)
	}
	return written
}

// printSuccess prints the initialization success message and file list.
func printSuccess(source string, written []string) {
	fmt.Printf("\n%s%s  initialized .cloudforge/ directory (%s)%s\n\n", ux.Bold, ux.Green, source, ux.Reset)
	fmt.Printf("  Created:\n")
	for _, path := range written {
		fmt.Printf("    %s%s%s\n", ux.Cyan, path, ux.Reset)
	}
}

// runClaudeCapture invokes claude -p with the given prompt and returns stdout.
func runClaudeCapture(ctx context.Context, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, "claude", "-p", prompt, "--model", "opus")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	cmd.Env = filteredEnv()
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("claude: %w", err)
	}
	return stdout.String(), nil
}

// filteredEnv returns the current environment with CLAUDECODE stripped.
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

// renderWorkflowSummary builds a human-readable "A -> B -> C" line from the
// workflow's canonical phase order.
func renderWorkflowSummary(def *workflow.Definition) string {
	return strings.Join(def.OrderedPhaseNames(), " -> ")
}
