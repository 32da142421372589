package recovery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Hawkynt/CloudForge/internal/workflow"
	"github.com/Hawkynt/CloudForge/internal/workflowstate"
)

func testDefinition(t *testing.T) *workflow.Definition {
	t.Helper()
	def, err := workflow.Parse(strings.Join([]string{
		"DISCOVER -> REQUIREMENTS [done]",
		"REQUIREMENTS -> STORIES [done]",
		"REQUIREMENTS -> REQUIREMENTS [retry]",
		"STORIES -> PLAN [done]",
		"*PLAN -> PLAN [done_next_subtask]",
		"PLAN -> END [done]",
	}, "\n"))
	if err != nil {
		t.Fatal(err)
	}
	return def
}

func TestHasArtifactDir(t *testing.T) {
	dir := t.TempDir()
	if HasArtifactDir(filepath.Join(dir, "missing")) {
		t.Fatal("expected false for missing dir")
	}
	if !HasArtifactDir(dir) {
		t.Fatal("expected true for existing dir")
	}
}

func TestTryLoadState_MissingTaskReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	s := workflowstate.Create("", workflowstate.CreateOpts{FirstPhase: "A"})
	if err := workflowstate.Save(dir, s); err != nil {
		t.Fatal(err)
	}
	if _, ok := TryLoadState(dir); ok {
		t.Fatal("expected false for empty task field")
	}
}

func TestTryLoadState_ValidState(t *testing.T) {
	dir := t.TempDir()
	s := workflowstate.Create("do it", workflowstate.CreateOpts{FirstPhase: "A"})
	if err := workflowstate.Save(dir, s); err != nil {
		t.Fatal(err)
	}
	loaded, ok := TryLoadState(dir)
	if !ok || loaded.Task != "do it" {
		t.Fatalf("TryLoadState = %+v, %v", loaded, ok)
	}
}

func TestInferTaskFromArtifacts_CorruptStateField(t *testing.T) {
	dir := t.TempDir()
	corrupt := `{"task": "Add dark mode", "current_phase": }`
	if err := os.WriteFile(filepath.Join(dir, "state.json"), []byte(corrupt), 0644); err != nil {
		t.Fatal(err)
	}
	task, ok := InferTaskFromArtifacts(dir)
	if !ok || task != "Add dark mode" {
		t.Fatalf("task = %q, ok = %v", task, ok)
	}
}

func TestInferTaskFromArtifacts_RequirementsHeading(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "requirements.md"), []byte("# Add dark mode\n\nDetails.\n"), 0644); err != nil {
		t.Fatal(err)
	}
	task, ok := InferTaskFromArtifacts(dir)
	if !ok || task != "Add dark mode" {
		t.Fatalf("task = %q, ok = %v", task, ok)
	}
}

func TestInferTaskFromArtifacts_PrdLexicographicallyFirst(t *testing.T) {
	dir := t.TempDir()
	prd := filepath.Join(dir, "prd")
	if err := os.MkdirAll(prd, 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(prd, "b-feature.md"), []byte("# B feature\n"), 0644)
	os.WriteFile(filepath.Join(prd, "a-feature.md"), []byte("# A feature\n"), 0644)

	task, ok := InferTaskFromArtifacts(dir)
	if !ok || task != "A feature" {
		t.Fatalf("task = %q, ok = %v", task, ok)
	}
}

func TestInferTaskFromArtifacts_NoneFound(t *testing.T) {
	dir := t.TempDir()
	if _, ok := InferTaskFromArtifacts(dir); ok {
		t.Fatal("expected false")
	}
}

func TestInferCompletedPhases_RequirementsDetected(t *testing.T) {
	dir := t.TempDir()
	def := testDefinition(t)
	os.WriteFile(filepath.Join(dir, "requirements.md"), []byte("# Add dark mode\n"), 0644)

	completed, latest := InferCompletedPhases(dir, def)
	if latest != "REQUIREMENTS" {
		t.Fatalf("latest = %q, want REQUIREMENTS", latest)
	}
	if len(completed) != 1 || completed[0] != "DISCOVER" {
		t.Fatalf("completed = %v, want [DISCOVER]", completed)
	}
}

func TestInferCompletedPhases_EmptyFileDoesNotCount(t *testing.T) {
	dir := t.TempDir()
	def := testDefinition(t)
	os.WriteFile(filepath.Join(dir, "requirements.md"), []byte(""), 0644)

	completed, latest := InferCompletedPhases(dir, def)
	if latest != "" || completed != nil {
		t.Fatalf("expected nothing detected, got completed=%v latest=%q", completed, latest)
	}
}

func TestInferCompletedPhases_NonEmptyPrdMeansDiscover(t *testing.T) {
	dir := t.TempDir()
	def := testDefinition(t)
	prd := filepath.Join(dir, "prd")
	os.MkdirAll(prd, 0755)
	os.WriteFile(filepath.Join(prd, "f.md"), []byte("# f\n"), 0644)

	_, latest := InferCompletedPhases(dir, def)
	if latest != "DISCOVER" {
		t.Fatalf("latest = %q, want DISCOVER", latest)
	}
}

func TestInferResumePhase_PrefersLatestDetected(t *testing.T) {
	def := testDefinition(t)
	got := InferResumePhase([]string{"DISCOVER"}, "REQUIREMENTS", def)
	if got != "REQUIREMENTS" {
		t.Fatalf("got %q", got)
	}
}

func TestInferResumePhase_AfterLastCompletedWhenNoneDetected(t *testing.T) {
	def := testDefinition(t)
	got := InferResumePhase([]string{"DISCOVER", "REQUIREMENTS"}, "", def)
	if got != "STORIES" {
		t.Fatalf("got %q, want STORIES", got)
	}
}

func TestInferResumePhase_WrapsToFirstWhenAllCompleted(t *testing.T) {
	def := testDefinition(t)
	got := InferResumePhase([]string{"DISCOVER", "REQUIREMENTS", "STORIES", "PLAN"}, "", def)
	if got != def.FirstPhase() {
		t.Fatalf("got %q, want first phase %q", got, def.FirstPhase())
	}
}

func TestInferResumePhase_FirstPhaseWhenNothingKnown(t *testing.T) {
	def := testDefinition(t)
	got := InferResumePhase(nil, "", def)
	if got != def.FirstPhase() {
		t.Fatalf("got %q", got)
	}
}

func TestRecoverStateFromArtifacts_Scenario(t *testing.T) {
	dir := t.TempDir()
	def := testDefinition(t)
	os.WriteFile(filepath.Join(dir, "requirements.md"), []byte("# Add dark mode\n"), 0644)

	s, ok := RecoverStateFromArtifacts(dir, def, workflowstate.CreateOpts{IterationCap: 25, MaxPhaseRetries: 3})
	if !ok {
		t.Fatal("expected recovery to succeed")
	}
	if s.Task != "Add dark mode" {
		t.Fatalf("Task = %q", s.Task)
	}
	if s.CurrentPhase != "REQUIREMENTS" {
		t.Fatalf("CurrentPhase = %q, want REQUIREMENTS", s.CurrentPhase)
	}
	if len(s.CompletedPhases) != 1 || s.CompletedPhases[0] != "DISCOVER" {
		t.Fatalf("CompletedPhases = %v, want [DISCOVER]", s.CompletedPhases)
	}
	if s.Iteration != 0 {
		t.Fatalf("Iteration = %d, want 0", s.Iteration)
	}
}

func TestRecoverStateFromArtifacts_NoTaskInferredFails(t *testing.T) {
	dir := t.TempDir()
	def := testDefinition(t)
	if _, ok := RecoverStateFromArtifacts(dir, def, workflowstate.CreateOpts{}); ok {
		t.Fatal("expected failure when no task can be inferred")
	}
}

func TestRecoverStateFromArtifacts_CountsSubTasksFromPlan(t *testing.T) {
	dir := t.TempDir()
	def := testDefinition(t)
	os.WriteFile(filepath.Join(dir, "requirements.md"), []byte("# My task\n"), 0644)
	os.WriteFile(filepath.Join(dir, "plan.md"), []byte("## Sub-task 1: x\n## Sub-task 2: y\n## Sub-task 3: z\n"), 0644)

	s, ok := RecoverStateFromArtifacts(dir, def, workflowstate.CreateOpts{})
	if !ok {
		t.Fatal("expected success")
	}
	if s.TotalSubTasks != 3 {
		t.Fatalf("TotalSubTasks = %d, want 3", s.TotalSubTasks)
	}
}
