// Package status extracts the CLOUDFORGE_STATUS trailer a well-behaved
// child agent emits at the end of its output.
package status

import (
	"strconv"
	"strings"
)

// Result values, the closed enumeration spec.md §3 names.
const (
	ResultDone      = "DONE"
	ResultNeedsRetry = "NEEDS_RETRY"
	ResultBlocked   = "BLOCKED"
	ResultUnknown   = "UNKNOWN"
)

// Sentinel is the literal line introducing a status block.
const Sentinel = "CLOUDFORGE_STATUS:"

// Status is one iteration's structured outcome, parsed from the child's
// free-form output or synthesized by the caller when absent.
type Status struct {
	Phase          string
	Result         string
	TasksRemaining *int
	Summary        string
}

// Parse extracts the status block from output. It returns (nil, false) if no
// CLOUDFORGE_STATUS: sentinel is found anywhere in the text — the caller is
// responsible for synthesizing a status in that case (spec.md §4.2).
//
// Grounded on the teacher's internal/fileblocks.Parse: a line-scanning state
// machine that enters a block on a recognized opener and accumulates until a
// terminator, generalized here from fenced-code-block detection to
// sentinel-line detection.
func Parse(output string) (*Status, bool) {
	lines := strings.Split(output, "\n")

	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == Sentinel {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, false
	}

	st := &Status{Result: ResultDone}
	for i := start + 1; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			break
		}
		key, value, ok := splitKeyValue(line)
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "phase":
			st.Phase = value
		case "result":
			st.Result = strings.ToUpper(value)
		case "tasks_remaining", "tasksremaining":
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				st.TasksRemaining = &n
			}
		case "summary":
			st.Summary = value
		}
	}
	return st, true
}

// splitKeyValue parses an indented "key: value" line.
func splitKeyValue(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	idx := strings.IndexByte(trimmed, ':')
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(trimmed[:idx]), strings.TrimSpace(trimmed[idx+1:]), true
}

// Render formats a status block in the wire format Parse understands, used
// by tests to exercise the round-trip law (spec.md §8).
func Render(s *Status) string {
	var b strings.Builder
	b.WriteString(Sentinel + "\n")
	if s.Phase != "" {
		b.WriteString("  phase: " + s.Phase + "\n")
	}
	b.WriteString("  result: " + s.Result + "\n")
	if s.TasksRemaining != nil {
		b.WriteString("  tasks_remaining: " + strconv.Itoa(*s.TasksRemaining) + "\n")
	}
	if s.Summary != "" {
		b.WriteString("  summary: " + s.Summary + "\n")
	}
	return b.String()
}
