package ux

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ANSI color helpers.
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// ConsoleReporter is the default Reporter: a timestamped, color-coded
// stream to stdout/stderr.
type ConsoleReporter struct{}

var _ Reporter = ConsoleReporter{}

func (ConsoleReporter) PhaseBanner(phase string, subTaskNumber, totalSubTasks, retryCount, maxRetries int) {
	fmt.Printf("\n%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
	sub := ""
	if totalSubTasks > 0 {
		sub = fmt.Sprintf(" (sub-task %d/%d)", subTaskNumber, totalSubTasks)
	}
	retry := ""
	if retryCount > 0 {
		retry = fmt.Sprintf(" [retry %d/%d]", retryCount, maxRetries)
	}
	fmt.Printf("%s[%s]%s  %sPhase: %s%s%s%s\n",
		Dim, timestamp(), Reset, Bold, phase, sub, retry, Reset)
	fmt.Printf("%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
}

func (ConsoleReporter) Text(chunk string) {
	fmt.Print(chunk)
}

func (ConsoleReporter) ToolUse(summary string) {
	s := summary
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	fmt.Printf("  %s⚡%s %s\n", Cyan, Reset, s)
}

func (ConsoleReporter) SessionID(id string) {
	fmt.Printf("%s[%s]%s  %ssession: %s%s\n", Dim, timestamp(), Reset, Dim, id, Reset)
}

func (ConsoleReporter) RateLimitWait(remaining, attempt, maxAttempts int) {
	fmt.Printf("\r%s  rate-limited, retrying in %ds (attempt %d/%d)...%s", Yellow, remaining, attempt, maxAttempts, Reset)
	if remaining == 0 {
		fmt.Println()
	}
}

func (ConsoleReporter) TransientWait(remaining, attempt int, reason string) {
	fmt.Printf("\r%s  transient error (%s), retrying in %ds (attempt %d)...%s", Yellow, reason, remaining, attempt, Reset)
	if remaining == 0 {
		fmt.Println()
	}
}

func (ConsoleReporter) PhaseRetry(phase string, attempt, max int, summary string) {
	fmt.Printf("%s[%s]%s  %s↺ Phase %q needs retry (%d/%d): %s%s\n",
		Dim, timestamp(), Reset, Yellow, phase, attempt, max, summary, Reset)
}

func (ConsoleReporter) PhaseDone(phase string, duration time.Duration) {
	m := int(duration.Minutes())
	s := int(duration.Seconds()) % 60
	fmt.Printf("%s[%s]%s  %s✓ %s complete (%dm %02ds)%s\n",
		Dim, timestamp(), Reset, Green, phase, m, s, Reset)
}

func (ConsoleReporter) Halted(reason string) {
	fmt.Fprintf(os.Stderr, "\n%s✗ halted: %s%s\n", Red, reason, Reset)
}

func (ConsoleReporter) Completed(iterations int) {
	fmt.Printf("\n%s[%s]%s  %s%s══ run complete (%d iterations) ══%s\n\n",
		Dim, timestamp(), Reset, Bold, Green, iterations, Reset)
}

func (ConsoleReporter) ResumeHint(workingDir string) {
	if workingDir == "" {
		fmt.Printf("\n%sResume:%s cloudforge run\n", Yellow, Reset)
		return
	}
	fmt.Printf("\n%sResume:%s cloudforge run --working-dir %s\n", Yellow, Reset, workingDir)
}

// PermissionPrompt is a standalone helper, not part of Reporter; no
// subcommand in this module calls it.
func PermissionPrompt(tools []string) {
	fmt.Printf("\n  %s⚠ Tools denied: %s%s\n", Yellow, strings.Join(tools, ", "), Reset)
}
