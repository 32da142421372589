// Package agentstream spawns the child coding agent, concurrently consumes
// its line-delimited JSON stdout and plain-text stderr, and returns a
// summary result (spec.md §4.4, component D).
//
// Grounded on the teacher's internal/dispatch: buildAgentArgs' argument
// construction, runAgentTurn's process lifecycle (Setpgid, cmd.Cancel,
// WaitDelay), and stream.go's JSON event shapes all generalize directly —
// the teacher already solves "spawn claude -p, stream stream-json, extract
// a result" for a single always-agent-type phase, which is exactly this
// system's child-invocation contract.
package agentstream

import "strconv"

// Invocation describes one child process turn (spec.md §4.4's invocation
// contract).
type Invocation struct {
	CliPath    string // default "claude" if empty
	Prompt     string
	SessionID  string // empty on first turn
	IsFirst    bool
	Model      string // empty means let the child pick its default
	MaxTurns   int
	WorkingDir string
}

// BuildArgs constructs the child CLI arguments per spec.md §4.4:
//
//	<cliPath> -p --output-format stream-json --verbose
//	  --dangerously-skip-permissions --max-turns <N>
//	  [--model <name>] [--session-id <id> | --resume <id>] <prompt>
//
// A session id is supplied by the caller up front (the scheduler mints one
// with uuid.New() before the first turn, following the teacher's
// buildAgentArgs): the first turn pins it with --session-id, every later
// turn in the same run resumes it with --resume.
func BuildArgs(inv Invocation) []string {
	args := []string{
		"-p",
		"--output-format", "stream-json",
		"--verbose",
		"--dangerously-skip-permissions",
		"--max-turns", strconv.Itoa(inv.MaxTurns),
	}
	if inv.Model != "" {
		args = append(args, "--model", inv.Model)
	}
	if inv.SessionID != "" {
		if inv.IsFirst {
			args = append(args, "--session-id", inv.SessionID)
		} else {
			args = append(args, "--resume", inv.SessionID)
		}
	}
	args = append(args, inv.Prompt)
	return args
}
