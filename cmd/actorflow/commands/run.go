package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roasbeef/actorflow/internal/actor"
	"github.com/roasbeef/actorflow/internal/builtin"
	"github.com/roasbeef/actorflow/internal/interpreter"
	"github.com/roasbeef/actorflow/internal/overlay"
	"github.com/roasbeef/actorflow/internal/pool"
	"github.com/roasbeef/actorflow/internal/runlog"
	"github.com/roasbeef/actorflow/internal/workflow"
)

var (
	workflowPath string
	baseDir      string
	maxIterFlag  int
	overlayDir   string
	varOverrides []string
)

// runCmd implements the CLI surface's single public operation (spec.md
// §6): load a workflow, optionally overlay it, drive it to "end" or a
// step ceiling, and report success/failure via exit code.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive a workflow document to its terminal state",
	Long: `run loads a workflow document, optionally merges it through a
base+patch overlay, seeds interpreter variables from -P overrides, and
steps the interpreter until it reaches "end" or the iteration ceiling.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&workflowPath, "workflow", "w", "", "path to the workflow document (required)")
	runCmd.Flags().StringVarP(&baseDir, "dir", "d", ".", "base directory -w and -o are resolved relative to")
	runCmd.Flags().IntVarP(&maxIterFlag, "max-iterations", "m", 1000, "maximum number of interpreter steps before aborting")
	runCmd.Flags().StringVarP(&overlayDir, "overlay-dir", "o", "", "directory containing an overlay.yaml document to apply")
	runCmd.Flags().StringArrayVarP(&varOverrides, "var", "P", nil, "interpreter variable override, key=value (repeatable)")

	_ = runCmd.MarkFlagRequired("workflow")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	wf, overlayVars, err := loadWorkflow()
	if err != nil {
		return err
	}

	vars, err := buildVars(overlayVars, varOverrides)
	if err != nil {
		return err
	}

	system := actor.NewActorSystem()
	defer system.Terminate(ctx)

	taskPool := pool.NewManagedPool(pool.ManagedConfig{NumWorkers: 4})
	system.AddPool(taskPool)

	if err := registerScriptActors(system, wf); err != nil {
		return err
	}

	ip, err := interpreter.New(wf, system, taskPool, vars)
	if err != nil {
		return fmt.Errorf("creating interpreter: %w", err)
	}
	defer ip.Close()

	started := time.Now().UTC()

	result, runErr := ip.RunUntilEnd(ctx, maxIterFlag)

	finished := time.Now().UTC()
	steps := ip.StepCount(ctx)

	recordRun(ctx, wf.Name, started, finished, runErr == nil && result.Success, result.Result, steps)

	if runErr != nil {
		return runErr
	}

	fmt.Printf("%s: %s (%d steps)\n", wf.Name, result.Result, steps)

	if !result.Success {
		return fmt.Errorf("workflow did not reach %q: %s", workflow.TerminalState, result.Result)
	}

	return nil
}

// loadWorkflow reads the workflow document at -w, applying the -o overlay
// when one is given.
func loadWorkflow() (*workflow.Workflow, map[string]string, error) {
	wfFullPath := resolvePath(baseDir, workflowPath)

	data, err := os.ReadFile(wfFullPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading workflow %s: %w", wfFullPath, err)
	}

	wf, err := workflow.Parse(data)
	if err != nil {
		return nil, nil, err
	}

	if overlayDir == "" {
		return wf, nil, nil
	}

	fullOverlayDir := resolvePath(baseDir, overlayDir)

	docPath := filepath.Join(fullOverlayDir, "overlay.yaml")
	doc, err := overlay.LoadDocument(docPath)
	if err != nil {
		return nil, nil, err
	}

	res, err := overlay.Apply(doc, fullOverlayDir)
	if err != nil {
		return nil, nil, err
	}

	return res.Workflow, res.Vars, nil
}

// resolvePath joins dir and path unless path is already absolute.
func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// buildVars seeds the interpreter's variable scope from the overlay
// document's vars (if any), then layers -P key=value overrides on top,
// last-writer-wins.
func buildVars(overlayVars map[string]string, overrides []string) (map[string]any, error) {
	vars := make(map[string]any, len(overlayVars)+len(overrides))

	for k, v := range overlayVars {
		vars[k] = v
	}

	for _, kv := range overrides {
		idx := strings.Index(kv, "=")
		if idx < 0 {
			return nil, fmt.Errorf("invalid -P override %q: expected key=value", kv)
		}
		vars[kv[:idx]] = kv[idx+1:]
	}

	return vars, nil
}

// registerScriptActors registers a generic builtin.ScriptActor under every
// actor name the workflow's transitions reference, so a workflow document
// alone is runnable from the command line without a purpose-built actor
// payload for each name.
func registerScriptActors(system *actor.ActorSystem, wf *workflow.Workflow) error {
	seen := make(map[string]struct{})

	for _, tr := range wf.Transitions {
		for _, action := range tr.Actions {
			if action.Method == "call" || action.Method == "runWorkflow" {
				continue
			}
			if _, ok := seen[action.Actor]; ok {
				continue
			}
			seen[action.Actor] = struct{}{}

			if _, err := system.ActorOf(actor.Config{
				Name:    action.Actor,
				Payload: builtin.NewScriptActor(action.Actor),
			}); err != nil {
				return fmt.Errorf("registering actor %s: %w", action.Actor, err)
			}
		}
	}

	return nil
}

// recordRun best-effort persists the run outcome to the run-log store.
// Failure to record history never fails the run itself.
func recordRun(ctx context.Context, name string, started, finished time.Time, success bool, result string, steps int) {
	path, err := runlog.DefaultPath()
	if err != nil {
		return
	}

	store, err := runlog.Open(path)
	if err != nil {
		return
	}
	defer store.Close()

	_, _ = store.RecordRun(ctx, runlog.Run{
		WorkflowName: name,
		StartedAt:    started,
		FinishedAt:   finished,
		Success:      success,
		Result:       result,
		Steps:        steps,
	})
}
