// Package recovery reconstructs a workflow run from artifact files on disk
// when no usable state.json exists, and repairs a loaded state into a safe
// shape before it is used (spec.md §4.7).
//
// Grounded on the teacher's internal/state/artifacts.go (well-known output
// files, directory layout) and internal/contextgather/gather.go's
// well-known-file probing idiom, generalized from a fixed single-project
// layout into the artifact→phase map below.
package recovery

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Hawkynt/CloudForge/internal/workflow"
	"github.com/Hawkynt/CloudForge/internal/workflowstate"
)

// artifactPhaseMap maps a phase-output basename to the phase that produces
// it (spec.md §4.7's artifact→phase map).
var artifactPhaseMap = map[string]string{
	"requirements.md":    "REQUIREMENTS",
	"stories.md":         "STORIES",
	"domain.md":          "DOMAIN",
	"plan.md":            "PLAN",
	"bdd-scenarios.md":   "BDD_SCENARIOS",
	"quality-report.md":  "QUALITY_REPORT",
	"innovation-log.md":  "INNOVATION_LOG",
}

// DiscoverPhase is the phase credited whenever the prd/ directory holds any
// entry, alongside whatever the other artifacts credit.
const DiscoverPhase = "DISCOVER"

// HasArtifactDir reports whether dir exists and is a directory.
func HasArtifactDir(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// TryLoadState attempts to read and parse the state file in dir. Any error,
// including a missing or empty task field, yields (nil, false) — it never
// panics or propagates an error to the caller.
func TryLoadState(dir string) (*workflowstate.State, bool) {
	s, err := workflowstate.Load(dir)
	if err != nil || s == nil {
		return nil, false
	}
	if strings.TrimSpace(s.Task) == "" {
		return nil, false
	}
	return s, true
}

var taskFieldRe = regexp.MustCompile(`"task"\s*:\s*"((?:\\.|[^"\\])*)"`)

// InferTaskFromArtifacts determines the original task text from whatever
// survives on disk, in priority order: a corrupt state file's task field,
// then the first heading of requirements.md, stories.md, or the
// lexicographically first markdown file under prd/.
func InferTaskFromArtifacts(dir string) (string, bool) {
	if raw, err := os.ReadFile(stateJSONPath(dir)); err == nil {
		if m := taskFieldRe.FindSubmatch(raw); m != nil {
			task := unescapeJSONString(string(m[1]))
			if task != "" {
				return task, true
			}
		}
	}

	if h, ok := firstHeading(filepath.Join(dir, "requirements.md")); ok {
		return h, true
	}
	if h, ok := firstHeading(filepath.Join(dir, "stories.md")); ok {
		return h, true
	}

	prdDir := filepath.Join(dir, "prd")
	entries, err := os.ReadDir(prdDir)
	if err == nil {
		var names []string
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
				names = append(names, e.Name())
			}
		}
		if len(names) > 0 {
			sortStrings(names)
			if h, ok := firstHeading(filepath.Join(prdDir, names[0])); ok {
				return h, true
			}
		}
	}

	return "", false
}

var headingRe = regexp.MustCompile(`(?m)^#\s+(.+?)\s*$`)

func firstHeading(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return "", false
	}
	m := headingRe.FindSubmatch(data)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

func unescapeJSONString(s string) string {
	s = strings.ReplaceAll(s, `\\`, `\`)
	s = strings.ReplaceAll(s, `\"`, `"`)
	return s
}

func sortStrings(ss []string) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j] < ss[j-1]; j-- {
			ss[j], ss[j-1] = ss[j-1], ss[j]
		}
	}
}

func stateJSONPath(dir string) string {
	return filepath.Join(dir, "state.json")
}

// nonEmptyFile reports whether path exists and has non-zero size.
func nonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// InferCompletedPhases scans dir for artifact files per artifactPhaseMap and
// a non-empty prd/ directory, and reports which phases in ordered are
// complete versus the single most-advanced detected phase that should be
// re-run (spec.md §4.7's inferCompletedPhases).
func InferCompletedPhases(dir string, def *workflow.Definition) (completed []string, latestDetected string) {
	detected := make(map[string]bool)

	for base, phase := range artifactPhaseMap {
		if nonEmptyFile(filepath.Join(dir, base)) {
			detected[phase] = true
		}
	}

	if entries, err := os.ReadDir(filepath.Join(dir, "prd")); err == nil && len(entries) > 0 {
		detected[DiscoverPhase] = true
	}

	latestIndex := -1
	for phase := range detected {
		if idx := def.IndexOf(phase); idx > latestIndex {
			latestIndex = idx
		}
	}
	if latestIndex < 0 {
		return nil, ""
	}

	ordered := def.OrderedPhaseNames()
	for i := 0; i < latestIndex && i < len(ordered); i++ {
		completed = append(completed, ordered[i])
	}
	latestDetected = ordered[latestIndex]
	return completed, latestDetected
}

// InferResumePhase picks where the scheduler should resume: the
// most-advanced detected phase if any, else the phase immediately after the
// last completed one (wrapping to the first phase if all are complete), else
// the first phase of the workflow.
func InferResumePhase(completed []string, latestDetected string, def *workflow.Definition) string {
	if latestDetected != "" {
		return latestDetected
	}
	ordered := def.OrderedPhaseNames()
	if len(completed) == 0 {
		return def.FirstPhase()
	}

	maxIdx := -1
	for _, p := range completed {
		if idx := def.IndexOf(p); idx > maxIdx {
			maxIdx = idx
		}
	}
	if maxIdx < 0 || maxIdx+1 >= len(ordered) {
		return def.FirstPhase()
	}
	return ordered[maxIdx+1]
}

var subTaskHeadingRe = regexp.MustCompile(`(?m)^##\s+Sub-task\s+\d+`)

// CountSubTasks counts plan.md's "## Sub-task N" headings in dir.
func CountSubTasks(dir string) int {
	data, err := os.ReadFile(filepath.Join(dir, "plan.md"))
	if err != nil {
		return 0
	}
	return len(subTaskHeadingRe.FindAll(data, -1))
}

// RecoverStateFromArtifacts composes task inference, completed-phase
// detection, and resume-phase selection into a fresh state. Returns
// (nil, false) if no task could be inferred at all — the caller should then
// halt with a usage error.
func RecoverStateFromArtifacts(dir string, def *workflow.Definition, opts workflowstate.CreateOpts) (*workflowstate.State, bool) {
	task, ok := InferTaskFromArtifacts(dir)
	if !ok {
		return nil, false
	}

	completed, latestDetected := InferCompletedPhases(dir, def)
	resumePhase := InferResumePhase(completed, latestDetected, def)

	opts.FirstPhase = resumePhase
	s := workflowstate.Create(task, opts)
	s.CompletedPhases = completed

	if n := CountSubTasks(dir); n > 0 {
		s.TotalSubTasks = n
	}

	return s, true
}
