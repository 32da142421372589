// Package workflowstate holds the durable record of one orchestrator run:
// task, phase, iteration counters, sub-task cursor, token totals, history,
// completed phases, recent errors, and session id (spec.md §3).
//
// Grounded on the teacher's internal/state package: state.go's Load/Save
// pair and atomic.go's writeFileAtomic (temp file + rename) generalize
// directly; timing.go's mutex-guarded in-memory accumulator flushed to disk
// is the model for History here (one entry per iteration instead of one per
// phase start/end).
package workflowstate

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"
)

const lastErrorsCapacity = 5

// HistoryEntry records the outcome of one completed iteration.
type HistoryEntry struct {
	Iteration   int    `json:"iteration"`
	Phase       string `json:"phase"`
	Result      string `json:"result"`
	Summary     string `json:"summary"`
	TotalTokens int    `json:"total_tokens"`
}

// Tokens is a pair of input/output token counts for one iteration.
type Tokens struct {
	Input  int
	Output int
}

// State is the durable record of one orchestrator run.
type State struct {
	SessionID          *string        `json:"session_id"`
	Task               string         `json:"task"`
	CurrentPhase       string         `json:"current_phase"`
	CurrentSubTask     int            `json:"current_sub_task"`
	TotalSubTasks      int            `json:"total_sub_tasks"`
	Iteration          int            `json:"iteration"`
	IterationCap       int            `json:"iteration_cap"`
	MaxPhaseRetries    int            `json:"max_phase_retries"`
	Model              *string        `json:"model"`
	TotalInputTokens   int            `json:"total_input_tokens"`
	TotalOutputTokens  int            `json:"total_output_tokens"`
	History            []HistoryEntry `json:"history"`
	CompletedPhases    []string       `json:"completed_phases"`
	ConsecutiveRetries int            `json:"consecutive_retries"`
	LastErrors         []string       `json:"last_errors"`
	StartTime          time.Time      `json:"start_time"`
	LastActivity       time.Time      `json:"last_activity"`
}

// CreateOpts configures a freshly created State.
type CreateOpts struct {
	FirstPhase      string
	IterationCap    int
	MaxPhaseRetries int
	Model           string
}

// Create builds a fresh State for a new task.
func Create(task string, opts CreateOpts) *State {
	now := time.Now()
	var model *string
	if opts.Model != "" {
		model = &opts.Model
	}
	return &State{
		Task:            task,
		CurrentPhase:    opts.FirstPhase,
		IterationCap:    opts.IterationCap,
		MaxPhaseRetries: opts.MaxPhaseRetries,
		Model:           model,
		StartTime:       now,
		LastActivity:    now,
	}
}

// Save serializes the state as pretty-printed JSON, refreshing LastActivity,
// and writes it atomically into artifactsDir/state.json.
func Save(artifactsDir string, s *State) error {
	if err := ensureDir(artifactsDir); err != nil {
		return err
	}
	s.LastActivity = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(statePath(artifactsDir), data, 0644)
}

// Load reads the state from artifactsDir. Returns (nil, nil) if no state
// file exists yet.
func Load(artifactsDir string) (*State, error) {
	data, err := os.ReadFile(statePath(artifactsDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// RecordIteration appends a history entry, advances the iteration counter,
// and accumulates token totals (spec.md §4.5). An empty result is recorded
// as "UNKNOWN"; nil tokens count as zero.
func RecordIteration(s *State, phase string, result, summary string, tokens *Tokens) {
	s.Iteration++

	if result == "" {
		result = "UNKNOWN"
	}

	var totalTokens int
	if tokens != nil {
		s.TotalInputTokens += tokens.Input
		s.TotalOutputTokens += tokens.Output
		totalTokens = tokens.Input + tokens.Output
	}

	s.History = append(s.History, HistoryEntry{
		Iteration:   s.Iteration,
		Phase:       phase,
		Result:      result,
		Summary:     summary,
		TotalTokens: totalTokens,
	})
}

// TrackRetry updates the consecutive-retry counter based on the most recent
// history entry and appends to the bounded last-errors ring (spec.md §4.5).
func TrackRetry(s *State, errMsg string) {
	if len(s.History) > 0 && s.History[len(s.History)-1].Result == "NEEDS_RETRY" {
		s.ConsecutiveRetries++
	} else {
		s.ConsecutiveRetries = 0
	}

	if errMsg != "" {
		s.LastErrors = append(s.LastErrors, errMsg)
		if len(s.LastErrors) > lastErrorsCapacity {
			s.LastErrors = s.LastErrors[len(s.LastErrors)-lastErrorsCapacity:]
		}
	}
}

// MarkPhaseCompleted adds phase to CompletedPhases if not already present,
// preserving insertion order, and resets ConsecutiveRetries to 0. Idempotent
// per spec.md §8's law.
func MarkPhaseCompleted(s *State, phase string) {
	for _, p := range s.CompletedPhases {
		if p == phase {
			s.ConsecutiveRetries = 0
			return
		}
	}
	s.CompletedPhases = append(s.CompletedPhases, phase)
	s.ConsecutiveRetries = 0
}

// ResetPhaseTransition clears the cross-phase retry noise the circuit
// breaker tracks, as required whenever the scheduler moves to a different
// phase (spec.md §4.6).
func ResetPhaseTransition(s *State) {
	s.ConsecutiveRetries = 0
	s.LastErrors = nil
}
