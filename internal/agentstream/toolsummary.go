package agentstream

import "encoding/json"

const toolSummaryMaxLen = 80

// toolInput is the subset of a tool_use block's input we look at to build a
// one-line summary.
type toolInput struct {
	Command  string `json:"command"`
	FilePath string `json:"file_path"`
	Pattern  string `json:"pattern"`
	Path     string `json:"path"`
}

// summarizeToolUse produces a short one-line description of a tool call
// (spec.md §4.4's tool-call summary table).
func summarizeToolUse(name string, rawInput json.RawMessage) string {
	var in toolInput
	if len(rawInput) > 0 {
		_ = json.Unmarshal(rawInput, &in)
	}

	switch name {
	case "Bash", "bash":
		return in.Command
	case "Edit", "Write", "Read":
		return in.FilePath
	case "Glob":
		return in.Pattern
	case "Grep":
		return in.Pattern + " " + in.Path
	default:
		return truncate(string(rawInput), toolSummaryMaxLen)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
