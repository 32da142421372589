package workflow

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// lineRe matches a significant workflow.dot line after comment-stripping and
// trimming: an optional '*' task-loop marker, a source phase name, '->', a
// target phase name or END, and a bracketed condition label.
//
//	*DISCOVER -> REQUIREMENTS [done]
//	REQUIREMENTS -> REQUIREMENTS [retry]
var lineRe = regexp.MustCompile(`^(\*?)(\w+)\s*->\s*(\w+)\s*\[(\w+)\]$`)

// Parse builds a Definition from workflow.dot text (spec.md §4.1).
// Phases are discovered in first-appearance order; a later line for the same
// (source, label) pair overwrites an earlier one.
func Parse(text string) (*Definition, error) {
	order := newFirstAppearanceOrder()
	taskLoop := make(map[string]bool)
	transitions := make(map[string]map[string]string)

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		marker, src, dst, label := m[1], m[2], m[3], m[4]
		order.indexOf(src)
		if marker == "*" {
			taskLoop[src] = true
		}

		target := dst
		if dst == End {
			target = ""
		} else {
			order.indexOf(dst)
		}

		if transitions[src] == nil {
			transitions[src] = make(map[string]string)
		}
		transitions[src][label] = target
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("workflow: scanning definition: %w", err)
	}

	if len(order.names) == 0 {
		return nil, fmt.Errorf("workflow: definition contains no phases")
	}

	phases := make([]Phase, len(order.names))
	index := make(map[string]int, len(order.names))
	for i, name := range order.names {
		phases[i] = Phase{
			Name:        name,
			TaskLoop:    taskLoop[name],
			Transitions: transitions[name],
		}
		index[name] = i
	}

	return &Definition{phases: phases, index: index}, nil
}

func stripComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}

var (
	cacheMu sync.Mutex
	cache   = make(map[string]*Definition)
)

// LoadWorkflow reads and parses the workflow file at path, caching the
// result by absolute path so repeated lookups within one process don't
// re-parse the file.
func LoadWorkflow(path string) (*Definition, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	cacheMu.Lock()
	if d, ok := cache[path]; ok {
		cacheMu.Unlock()
		return d, nil
	}
	cacheMu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: reading %s: %w", path, err)
	}
	def, err := Parse(string(data))
	if err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	cacheMu.Lock()
	cache[path] = def
	cacheMu.Unlock()
	return def, nil
}

// ClearCache drops every cached definition. Tests and `cloudforge init`
// (which writes a fresh workflow.dot and immediately wants to reload it)
// both rely on this.
func ClearCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = make(map[string]*Definition)
}
