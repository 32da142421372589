package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	cli "github.com/urfave/cli/v3"

	"github.com/Hawkynt/CloudForge/internal/config"
	"github.com/Hawkynt/CloudForge/internal/doctor"
	"github.com/Hawkynt/CloudForge/internal/prompt"
	"github.com/Hawkynt/CloudForge/internal/recovery"
	"github.com/Hawkynt/CloudForge/internal/scaffold"
	"github.com/Hawkynt/CloudForge/internal/scheduler"
	"github.com/Hawkynt/CloudForge/internal/ux"
	"github.com/Hawkynt/CloudForge/internal/workflow"
	"github.com/Hawkynt/CloudForge/internal/workflowstate"
)

const (
	defaultIterationCap    = 25
	defaultMaxPhaseRetries = 3
	defaultMaxTurns        = 50
	defaultRateLimitWait   = 43200
	defaultCliPath         = "claude"
)

func main() {
	app := &cli.Command{
		Name:  "cloudforge",
		Usage: "Autonomous AI-coding-agent workflow orchestrator",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Enable debug-level internal diagnostics"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				log.SetLevel(log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			initCmd(),
			runCmd(),
			statusCmd(),
			diagnoseCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run the workflow for a task",
		ArgsUsage: "[task description]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max-iterations", Usage: "Iteration cap before the breaker halts"},
			&cli.IntFlag{Name: "max-phase-retries", Usage: "Retries allowed in one phase before retry_exhausted fires"},
			&cli.StringFlag{Name: "model", Usage: "Model name passed to the child agent"},
			&cli.StringFlag{Name: "working-dir", Usage: "Directory the child agent operates in"},
			&cli.IntFlag{Name: "max-turns", Usage: "Max turns per child invocation"},
			&cli.StringFlag{Name: "continue-session", Usage: "Resume a saved run by loading its state"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the resolved launch plan without executing"},
			&cli.IntFlag{Name: "rate-limit-wait", Usage: "Maximum seconds to wait out a single rate-limit pause"},
			&cli.StringFlag{Name: "cli-path", Usage: "Path to the claude CLI binary"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			projectRoot, err := os.Getwd()
			if err != nil {
				return err
			}

			cloudforgeDir := filepath.Join(projectRoot, ".cloudforge")
			// spec.md §6: state.json, plan.md, and the named artifact files all
			// live directly in .cloudforge/, not in a nested subdirectory.
			artifactsDir := cloudforgeDir
			promptsDir := filepath.Join(cloudforgeDir, "prompts")
			workflowPath := filepath.Join(cloudforgeDir, "workflow.dot")

			def, err := workflow.LoadWorkflow(workflowPath)
			if err != nil {
				return fmt.Errorf("loading workflow: %w", err)
			}
			if err := def.Validate(); err != nil {
				return fmt.Errorf("workflow.dot is invalid: %w", err)
			}

			defaults, err := config.Load(filepath.Join(cloudforgeDir, "defaults.yaml"))
			if err != nil {
				return fmt.Errorf("loading defaults: %w", err)
			}
			defaults = defaults.Merge(config.Defaults{
				MaxIterations:   defaultIterationCap,
				MaxPhaseRetries: defaultMaxPhaseRetries,
				MaxTurns:        defaultMaxTurns,
				RateLimitWait:   defaultRateLimitWait,
				CliPath:         defaultCliPath,
			})

			s, err := resolveLaunchState(cmd, def, artifactsDir, defaults)
			if err != nil {
				return err
			}

			if v := cmd.Int("max-iterations"); v > 0 {
				s.IterationCap = int(v)
			}
			if v := cmd.Int("max-phase-retries"); v > 0 {
				s.MaxPhaseRetries = int(v)
			}

			sc := &scheduler.Scheduler{
				Def:              def,
				ArtifactsDir:     artifactsDir,
				WorkingDir:       firstNonEmpty(cmd.String("working-dir"), projectRoot),
				CliPath:          firstNonEmpty(cmd.String("cli-path"), defaults.CliPath),
				Model:            firstNonEmpty(cmd.String("model"), defaults.Model),
				MaxTurns:         firstPositive(int(cmd.Int("max-turns")), defaults.MaxTurns),
				PlanningPhase:    planningPhaseOf(def),
				RateLimitWaitMax: firstPositive(int(cmd.Int("rate-limit-wait")), defaults.RateLimitWait),
				Prompts:          prompt.TemplateDir{Dir: promptsDir},
				Reporter:         ux.ConsoleReporter{},
			}

			log.Debug("resolved launch plan", "phase", s.CurrentPhase, "task", s.Task, "working_dir", sc.WorkingDir, "model", sc.Model)

			if cmd.Bool("dry-run") {
				fmt.Printf("Task: %s\nStarting phase: %s\nWorking dir: %s\nModel: %s\n",
					s.Task, s.CurrentPhase, sc.WorkingDir, valueOr(sc.Model, "(child default)"))
				return nil
			}

			if err := workflowstate.Save(artifactsDir, s); err != nil {
				return fmt.Errorf("saving initial state: %w", err)
			}

			runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()
			// After the first signal cancels runCtx, restore default signal
			// handling so a second SIGINT terminates the process at once.
			go func() {
				<-runCtx.Done()
				stop()
			}()

			return sc.Run(runCtx, s)
		},
	}
}

// resolveLaunchState implements the launch-mode resolution order: an
// explicit --continue-session id always wins; otherwise a positional task
// starts a fresh run; with neither, an existing .cloudforge/ state or
// artifact trail is recovered; if none of that exists, it is a usage error.
func resolveLaunchState(cmd *cli.Command, def *workflow.Definition, artifactsDir string, defaults config.Defaults) (*workflowstate.State, error) {
	if id := cmd.String("continue-session"); id != "" {
		s, err := workflowstate.Load(artifactsDir)
		if err != nil {
			return nil, fmt.Errorf("loading state for --continue-session: %w", err)
		}
		if s == nil {
			return nil, fmt.Errorf("--continue-session %s: no saved state found in %s", id, artifactsDir)
		}
		recovery.RepairState(s, def)
		return s, nil
	}

	task := cmd.Args().First()
	if task != "" {
		return workflowstate.Create(task, workflowstate.CreateOpts{
			FirstPhase:      def.FirstPhase(),
			IterationCap:    defaults.MaxIterations,
			MaxPhaseRetries: defaults.MaxPhaseRetries,
			Model:           defaults.Model,
		}), nil
	}

	if s, ok := recovery.TryLoadState(artifactsDir); ok {
		recovery.RepairState(s, def)
		return s, nil
	}

	if recovery.HasArtifactDir(artifactsDir) {
		s, ok := recovery.RecoverStateFromArtifacts(artifactsDir, def, workflowstate.CreateOpts{
			FirstPhase:      def.FirstPhase(),
			IterationCap:    defaults.MaxIterations,
			MaxPhaseRetries: defaults.MaxPhaseRetries,
			Model:           defaults.Model,
		})
		if ok {
			return s, nil
		}
	}

	return nil, fmt.Errorf("no task given and no existing run found in %s; pass a task description or --continue-session", artifactsDir)
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the status of the current run",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			projectRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			cloudforgeDir := filepath.Join(projectRoot, ".cloudforge")
			artifactsDir := cloudforgeDir

			def, err := workflow.LoadWorkflow(filepath.Join(cloudforgeDir, "workflow.dot"))
			if err != nil {
				return fmt.Errorf("loading workflow: %w", err)
			}

			s, err := workflowstate.Load(artifactsDir)
			if err != nil {
				return fmt.Errorf("loading state: %w", err)
			}
			if s == nil {
				return fmt.Errorf("no saved state found in %s", artifactsDir)
			}

			ux.RenderStatus(def, s, artifactsDir)
			return nil
		},
	}
}

func diagnoseCmd() *cli.Command {
	return &cli.Command{
		Name:  "diagnose",
		Usage: "Diagnose a halted run using the coding agent",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			projectRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			cloudforgeDir := filepath.Join(projectRoot, ".cloudforge")
			artifactsDir := cloudforgeDir

			def, err := workflow.LoadWorkflow(filepath.Join(cloudforgeDir, "workflow.dot"))
			if err != nil {
				return fmt.Errorf("loading workflow: %w", err)
			}

			s, err := workflowstate.Load(artifactsDir)
			if err != nil {
				return fmt.Errorf("loading state: %w", err)
			}
			if s == nil {
				return fmt.Errorf("no saved state found in %s", artifactsDir)
			}

			prompts := prompt.TemplateDir{Dir: filepath.Join(cloudforgeDir, "prompts")}
			return doctor.Run(ctx, def, s, prompts, ux.ConsoleReporter{})
		},
	}
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Generate a .cloudforge/ workflow graph and prompt templates for this project",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			return scaffold.Init(ctx, dir)
		},
	}
}

// planningPhaseOf names the phase whose DONE output seeds TotalSubTasks
// from plan.md's "## Sub-task N" headings: the phase immediately preceding
// the first task-loop phase in canonical order, or "" if there is none.
func planningPhaseOf(def *workflow.Definition) string {
	taskLoop := def.FirstTaskLoopPhase()
	if taskLoop == "" {
		return ""
	}
	ordered := def.OrderedPhaseNames()
	idx := def.IndexOf(taskLoop)
	if idx <= 0 {
		return ""
	}
	return ordered[idx-1]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func valueOr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
