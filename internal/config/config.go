// Package config loads the optional .cloudforge/defaults.yaml file that
// supplies default values for command-line flags, so a project does not
// need to repeat --model/--max-iterations/etc. on every invocation.
//
// Grounded on the teacher's internal/config.Load: the same
// os.ReadFile-then-yaml.Unmarshal shape, generalized from a full workflow
// definition (phases, vars, ticket-pattern) to a flat flag-defaults record,
// since CloudForge keeps its phase graph in workflow.dot instead.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults holds the subset of flags a project can override via
// .cloudforge/defaults.yaml. A zero value in any field means "not set";
// callers fill in their own hard-coded default when a field is zero.
type Defaults struct {
	Model           string `yaml:"model"`
	MaxIterations   int    `yaml:"max-iterations"`
	MaxPhaseRetries int    `yaml:"max-phase-retries"`
	RateLimitWait   int    `yaml:"rate-limit-wait"`
	CliPath         string `yaml:"cli-path"`
	MaxTurns        int    `yaml:"max-turns"`
}

// Load reads and parses path. A missing file is not an error: it returns a
// zero Defaults so the caller falls back entirely to built-in defaults.
func Load(path string) (Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults{}, nil
		}
		return Defaults{}, err
	}
	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Defaults{}, err
	}
	return d, nil
}

// Merge returns d with every zero field replaced by the corresponding field
// in fallback, so explicit project defaults win over built-in ones.
func (d Defaults) Merge(fallback Defaults) Defaults {
	if d.Model == "" {
		d.Model = fallback.Model
	}
	if d.MaxIterations == 0 {
		d.MaxIterations = fallback.MaxIterations
	}
	if d.MaxPhaseRetries == 0 {
		d.MaxPhaseRetries = fallback.MaxPhaseRetries
	}
	if d.RateLimitWait == 0 {
		d.RateLimitWait = fallback.RateLimitWait
	}
	if d.CliPath == "" {
		d.CliPath = fallback.CliPath
	}
	if d.MaxTurns == 0 {
		d.MaxTurns = fallback.MaxTurns
	}
	return d
}
