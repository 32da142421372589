package scaffold

// buildInitPrompt constructs the full prompt asking claude to design a
// workflow.dot graph and per-phase prompt templates for this project.
func buildInitPrompt(projectContext string) string {
	return initPromptPrefix + initPromptMiddle + projectContext + initPromptSuffix
}

const initPromptPrefix = `You are generating a CloudForge workflow for a software project. CloudForge is a deterministic state-machine orchestrator that drives an AI coding agent through a sequence of phases until the task is done.

Your job: analyze the project context below and generate a tailored workflow.dot phase graph plus one prompt template file per phase.

## workflow.dot Grammar

Each significant line has the shape:

	[*]SOURCE -> TARGET [label]

- SOURCE and TARGET are phase names (word characters only).
- TARGET may be the literal END, meaning the workflow terminates on that edge.
- label is one of: done, retry, retry_exhausted, done_next_subtask.
- A leading '*' on any line where a phase is the SOURCE marks it as a task-loop phase:
  its done_next_subtask edge re-enters itself until every sub-task (counted
  from "## Sub-task N" headings in plan.md) is finished, then falls through
  to its done edge.
- Lines starting with '#' are comments; blank lines are ignored.
- Every phase is an agent phase: CloudForge always invokes the coding agent
  for a phase's turn, never a shell command or a human gate directly.

`

const initPromptMiddle = `## Example: a typical workflow

` + "```" + `dot file=.cloudforge/workflow.dot
DISCOVER -> REQUIREMENTS [done]
REQUIREMENTS -> REQUIREMENTS [retry]
REQUIREMENTS -> STORIES [done]
STORIES -> STORIES [retry]
STORIES -> PLAN [done]
PLAN -> PLAN [retry]
PLAN -> IMPLEMENT [done]
*IMPLEMENT -> IMPLEMENT [done_next_subtask]
IMPLEMENT -> IMPLEMENT [retry]
IMPLEMENT -> VERIFY [done]
VERIFY -> IMPLEMENT [retry]
VERIFY -> VERIFY [retry_exhausted]
VERIFY -> END [done]
` + "```" + `

` + "```" + `markdown file=.cloudforge/prompts/discover.md
Task: $TASK

You are exploring the codebase in $WORKING_DIR to scope the work needed for
this task. Write your findings as prose; when finished, end with a
CLOUDFORGE_STATUS: block giving phase, result (DONE or NEEDS_RETRY), and a
one-line summary.
` + "```" + `

## Project Context

`

const initPromptSuffix = `

## Instructions

Based on the project context above, generate a complete CloudForge workflow. Produce:

1. A ` + "`.cloudforge/workflow.dot`" + ` tailored to this project and the kind of task it implies. Follow this default shape and adapt it:
   - **DISCOVER** — explore the codebase and scope the task.
   - **PLAN** — produce an implementation plan broken into numbered sub-tasks ("## Sub-task N" headings).
   - **IMPLEMENT** (task-loop phase, marked with a leading '*') — implement one sub-task per iteration following the plan.
   - **VERIFY** — run the project's tests and checks; on retry, loop back to IMPLEMENT.
   Add, rename, or remove phases as the project warrants, keeping every phase an agent phase.

2. A prompt template file for every phase named in the graph, at ` + "`.cloudforge/prompts/<lowercase-phase-name>.md`" + `. Each prompt should:
   - Reference ` + "`$TASK`" + `, ` + "`$WORKING_DIR`" + `, ` + "`$SUBTASK_NUMBER`" + `, ` + "`$TOTAL_SUBTASKS`" + ` where appropriate.
   - Reference the project's actual structure, conventions, and build/test commands.
   - End by instructing the agent to emit a CLOUDFORGE_STATUS: block with phase/result/summary fields.

## Output Format

Produce ONLY fenced code blocks with ` + "`file=`" + ` annotations. No explanation or text outside the code blocks. All file paths MUST start with ` + "`.cloudforge/`" + `.
`

const retryFeedback = `

IMPORTANT: Your previous attempt failed with this error: %v

Try again. Output ONLY fenced code blocks with file= annotations. One of them MUST be .cloudforge/workflow.dot, and it MUST parse as a valid workflow graph (every transition target other than END names a defined phase; done_next_subtask only appears on a phase marked with a leading '*').`
