package scheduler

import (
	"strings"
	"testing"

	"github.com/Hawkynt/CloudForge/internal/status"
	"github.com/Hawkynt/CloudForge/internal/workflow"
)

func parseDef(t *testing.T, lines ...string) *workflow.Definition {
	t.Helper()
	def, err := workflow.Parse(strings.Join(lines, "\n"))
	if err != nil {
		t.Fatal(err)
	}
	return def
}

func TestNextPhase_Done(t *testing.T) {
	def := parseDef(t, "A -> B [done]", "A -> A [retry]", "B -> END [done]")
	if got := nextPhase(def, "A", status.ResultDone, 0, 0, 0, 3); got != "B" {
		t.Fatalf("got %q, want B", got)
	}
}

func TestNextPhase_BlockedTreatedAsDone(t *testing.T) {
	def := parseDef(t, "A -> B [done]", "B -> END [done]")
	if got := nextPhase(def, "A", status.ResultBlocked, 0, 0, 0, 3); got != "B" {
		t.Fatalf("got %q, want B", got)
	}
}

func TestNextPhase_Retry(t *testing.T) {
	def := parseDef(t, "A -> B [done]", "A -> A [retry]")
	if got := nextPhase(def, "A", status.ResultNeedsRetry, 0, 0, 1, 3); got != "A" {
		t.Fatalf("got %q, want A", got)
	}
}

func TestNextPhase_RetryExhausted(t *testing.T) {
	def := parseDef(t, "A -> B [done]", "A -> A [retry]", "A -> C [retry_exhausted]")
	if got := nextPhase(def, "A", status.ResultNeedsRetry, 0, 0, 3, 3); got != "C" {
		t.Fatalf("got %q, want C", got)
	}
}

func TestNextPhase_RetryExhaustedRequiresThresholdMet(t *testing.T) {
	def := parseDef(t, "A -> B [done]", "A -> A [retry]", "A -> C [retry_exhausted]")
	if got := nextPhase(def, "A", status.ResultNeedsRetry, 0, 0, 2, 3); got != "A" {
		t.Fatalf("got %q, want A (not yet exhausted)", got)
	}
}

func TestNextPhase_TaskLoopAdvancesSubtask(t *testing.T) {
	def := parseDef(t, "*C -> C [done_next_subtask]", "C -> D [done]")
	got := nextPhase(def, "C", status.ResultDone, 1, 3, 0, 3)
	if got != "C" {
		t.Fatalf("got %q, want C (more sub-tasks remain)", got)
	}
	got = nextPhase(def, "C", status.ResultDone, 3, 3, 0, 3)
	if got != "D" {
		t.Fatalf("got %q, want D (no sub-tasks remain)", got)
	}
}

func TestNextPhase_TaskLoopRetryStillAdvancesSubtask(t *testing.T) {
	def := parseDef(t, "*C -> C [done_next_subtask]", "C -> D [done]")
	got := nextPhase(def, "C", status.ResultNeedsRetry, 1, 3, 1, 3)
	if got != "C" {
		t.Fatalf("got %q, want C", got)
	}
}

func TestNextPhase_EndSentinelTerminates(t *testing.T) {
	def := parseDef(t, "A -> END [done]")
	if got := nextPhase(def, "A", status.ResultDone, 0, 0, 0, 3); got != "" {
		t.Fatalf("got %q, want empty (terminal)", got)
	}
}

func TestNextPhase_UnknownPhaseTerminates(t *testing.T) {
	def := parseDef(t, "A -> END [done]")
	if got := nextPhase(def, "GHOST", status.ResultDone, 0, 0, 0, 3); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestNextPhase_UnknownResultFallsBackToRetry(t *testing.T) {
	def := parseDef(t, "A -> B [done]", "A -> A [retry]")
	if got := nextPhase(def, "A", "GARBAGE", 0, 0, 0, 3); got != "A" {
		t.Fatalf("got %q, want A", got)
	}
}
