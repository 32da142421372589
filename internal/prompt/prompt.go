// Package prompt renders the text sent to the child agent for one phase
// invocation. spec.md describes this component only as "produce the prompt
// text for phase P given context C" and explicitly leaves the template
// format and loader out of scope; this package supplies a minimal concrete
// implementation so the scheduler has something to call.
//
// Grounded on the teacher's internal/dispatch.ExpandVars: the same
// os.Expand-based substitution, generalized from phase.Prompt file lookups
// to a per-phase template directory with a built-in fallback.
package prompt

import (
	"os"
	"path/filepath"
	"strconv"
)

// Context is the information the scheduler has about the current iteration,
// available to a template as substitution variables.
type Context struct {
	Task           string
	Phase          string
	SubTaskNumber  int
	TotalSubTasks  int
	WorkingDir     string
	RetryCount     int
	MaxRetries     int
	Feedback       string // non-empty when this is a retry after NEEDS_RETRY
}

// Provider produces the prompt text for one phase invocation.
type Provider interface {
	PromptFor(phase string, ctx Context) (string, error)
}

// TemplateDir loads templates from disk: <dir>/<phase>.md (lower-cased),
// falling back to a generic built-in template when no file exists.
type TemplateDir struct {
	Dir string
}

// vars builds the os.Expand substitution map for a Context.
func (c Context) vars() map[string]string {
	return map[string]string{
		"TASK":            c.Task,
		"PHASE":           c.Phase,
		"SUBTASK_NUMBER":  strconv.Itoa(c.SubTaskNumber),
		"TOTAL_SUBTASKS":  strconv.Itoa(c.TotalSubTasks),
		"WORKING_DIR":     c.WorkingDir,
		"RETRY_COUNT":     strconv.Itoa(c.RetryCount),
		"MAX_RETRIES":     strconv.Itoa(c.MaxRetries),
		"FEEDBACK":        c.Feedback,
	}
}

// expandVars substitutes $VAR references in template using vars, falling
// back to the environment for anything not in the map.
func expandVars(template string, vars map[string]string) string {
	return os.Expand(template, func(key string) string {
		if v, ok := vars[key]; ok {
			return v
		}
		return os.Getenv(key)
	})
}

// PromptFor reads <Dir>/<phase>.md if present, otherwise falls back to a
// generic template, and expands both against ctx's variables.
func (t TemplateDir) PromptFor(phase string, ctx Context) (string, error) {
	if ctx.Phase == "" {
		ctx.Phase = phase
	}
	path := filepath.Join(t.Dir, lowerPhase(phase)+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		return expandVars(fallbackTemplate, ctx.vars()), nil
	}
	return expandVars(string(data), ctx.vars()), nil
}

const fallbackTemplate = `Task: $TASK

You are executing phase $PHASE (sub-task $SUBTASK_NUMBER of $TOTAL_SUBTASKS) in $WORKING_DIR.

$FEEDBACK

When finished, print a line starting with CLOUDFORGE_STATUS: followed by
indented phase/result/summary fields.`

func lowerPhase(phase string) string {
	b := []byte(phase)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
