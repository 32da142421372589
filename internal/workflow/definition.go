// Package workflow loads the phase graph that drives the orchestrator.
package workflow

import "fmt"

// Condition labels are the closed set recognized on transition edges.
const (
	LabelDone             = "done"
	LabelRetry            = "retry"
	LabelRetryExhausted   = "retry_exhausted"
	LabelDoneNextSubtask  = "done_next_subtask"
)

// End is the terminal sentinel a transition target may name.
const End = "END"

// Phase describes one node of the workflow graph.
type Phase struct {
	Name        string
	TaskLoop    bool
	Transitions map[string]string // label -> target phase name, or "" for End
}

// Definition is the immutable, ordered phase graph parsed from workflow.dot.
type Definition struct {
	phases []Phase
	index  map[string]int
}

// firstAppearanceOrder backs Definition's deterministic iteration and
// progress-display order (spec.md §3: "Insertion order of phases defines
// the canonical progression").
type firstAppearanceOrder struct {
	names []string
	seen  map[string]int
}

func newFirstAppearanceOrder() *firstAppearanceOrder {
	return &firstAppearanceOrder{seen: make(map[string]int)}
}

func (o *firstAppearanceOrder) indexOf(name string) int {
	if idx, ok := o.seen[name]; ok {
		return idx
	}
	idx := len(o.names)
	o.seen[name] = idx
	o.names = append(o.names, name)
	return idx
}

// FirstPhase returns the start phase's name, or "" if the definition is empty.
func (d *Definition) FirstPhase() string {
	if len(d.phases) == 0 {
		return ""
	}
	return d.phases[0].Name
}

// OrderedPhaseNames returns every phase name in first-appearance order.
func (d *Definition) OrderedPhaseNames() []string {
	names := make([]string, len(d.phases))
	for i, p := range d.phases {
		names[i] = p.Name
	}
	return names
}

// IsTaskLoopPhase reports whether name was marked with a leading '*' anywhere
// in the workflow file.
func (d *Definition) IsTaskLoopPhase(name string) bool {
	p, ok := d.phaseConfig(name)
	return ok && p.TaskLoop
}

// PhaseConfig returns the phase's configuration and whether it is defined.
func (d *Definition) PhaseConfig(name string) (Phase, bool) {
	return d.phaseConfig(name)
}

func (d *Definition) phaseConfig(name string) (Phase, bool) {
	idx, ok := d.index[name]
	if !ok {
		return Phase{}, false
	}
	return d.phases[idx], true
}

// IndexOf returns the phase's position in canonical order, or -1.
func (d *Definition) IndexOf(name string) int {
	idx, ok := d.index[name]
	if !ok {
		return -1
	}
	return idx
}

// FirstTaskLoopPhase returns the name of the first phase marked taskLoop, or "".
func (d *Definition) FirstTaskLoopPhase() string {
	for _, p := range d.phases {
		if p.TaskLoop {
			return p.Name
		}
	}
	return ""
}

// Validate checks the structural invariants spec.md §3 requires:
// every transition target (other than END) names a defined phase, and
// done_next_subtask only appears on taskLoop phases.
func (d *Definition) Validate() error {
	for _, p := range d.phases {
		for label, target := range p.Transitions {
			if target != "" {
				if _, ok := d.index[target]; !ok {
					return fmt.Errorf("workflow: phase %q: transition %q targets undefined phase %q", p.Name, label, target)
				}
			}
			if label == LabelDoneNextSubtask && !p.TaskLoop {
				return fmt.Errorf("workflow: phase %q: done_next_subtask is only meaningful on a taskLoop phase", p.Name)
			}
		}
	}
	return nil
}
