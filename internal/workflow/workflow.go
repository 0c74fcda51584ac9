// Package workflow holds the in-memory representation of a labelled state
// machine parsed from a structured YAML or JSON document (spec.md §3
// "Workflow", §6 "Workflow document").
package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// TerminalState is the state token that ends a workflow run.
const TerminalState = "end"

// DefaultInitialState is used when a document omits initialState.
const DefaultInitialState = "0"

// Mode selects how an Action is dispatched.
type Mode string

const (
	// ModePool submits the action to the target actor's managed pool,
	// using the actor's name as the owner key.
	ModePool Mode = "pool"

	// ModeDirect invokes the action synchronously on the caller.
	ModeDirect Mode = "direct"
)

// Action is a single invocation within a Transition: target actor, method
// (action) name, arguments, and execution mode.
type Action struct {
	Actor     string `yaml:"actor"`
	Method    string `yaml:"method"`
	Arguments any    `yaml:"arguments"`
	Mode      Mode   `yaml:"mode"`
}

// effectiveMode returns a's Mode, defaulting to ModePool when unset
// (spec.md §6: "mode: pool | direct # default pool").
func (a Action) effectiveMode() Mode {
	if a.Mode == "" {
		return ModePool
	}
	return a.Mode
}

// EffectiveMode is the exported form of effectiveMode for callers outside
// this package (the interpreter).
func (a Action) EffectiveMode() Mode { return a.effectiveMode() }

// StateSet is an unordered set of state tokens, matched by membership.
type StateSet []string

// Contains reports whether token is a member of s.
func (s StateSet) Contains(token string) bool {
	for _, t := range s {
		if t == token {
			return true
		}
	}
	return false
}

// States is the (from, to) pair on a Transition.
type States struct {
	From StateSet `yaml:"from"`
	To   StateSet `yaml:"to"`
}

// Transition is one edge of the workflow's state machine: a unique label,
// the state sets it matches against, and the ordered actions it runs.
type Transition struct {
	Label   string   `yaml:"label"`
	States  States   `yaml:"states"`
	Actions []Action `yaml:"actions"`
}

// Workflow is the parsed, in-memory form of a workflow document (spec.md
// §6). Transitions preserve document order; Label is unique within a
// Workflow, which Validate checks and Parse enforces by calling it.
type Workflow struct {
	Name         string
	InitialState string
	Transitions  []Transition
}

// rawDocument mirrors the on-disk shape, accepting either "steps" or
// "transitions" for the transition list (spec.md §6: "Top level: ...
// steps: [Transition] (alias transitions)").
type rawDocument struct {
	Name         string       `yaml:"name"`
	InitialState string       `yaml:"initialState"`
	Steps        []Transition `yaml:"steps"`
	Transitions  []Transition `yaml:"transitions"`
}

// Parse decodes a workflow document from raw bytes. JSON is accepted as a
// subset of YAML, so a single code path serves both formats (spec.md §6:
// "YAML or JSON, equivalent").
func Parse(data []byte) (*Workflow, error) {
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing workflow document: %w", err)
	}

	transitions := raw.Steps
	if len(raw.Transitions) > 0 {
		transitions = append(transitions, raw.Transitions...)
	}

	initial := raw.InitialState
	if initial == "" {
		initial = DefaultInitialState
	}

	wf := &Workflow{
		Name:         raw.Name,
		InitialState: initial,
		Transitions:  transitions,
	}

	if err := wf.Validate(); err != nil {
		return nil, err
	}

	return wf, nil
}

// Validate checks structural invariants not expressible in the document
// schema itself: non-empty labels, and label uniqueness.
func (w *Workflow) Validate() error {
	seen := make(map[string]struct{}, len(w.Transitions))

	for i, t := range w.Transitions {
		if t.Label == "" {
			return fmt.Errorf("transition %d: label is required", i)
		}
		if _, dup := seen[t.Label]; dup {
			return fmt.Errorf("duplicate transition label %q", t.Label)
		}
		seen[t.Label] = struct{}{}
	}

	return nil
}

// FindTransition returns the first transition (in document order) whose
// states.from set contains token (spec.md §4.6 step 1).
func (w *Workflow) FindTransition(token string) (Transition, bool) {
	for _, t := range w.Transitions {
		if t.States.From.Contains(token) {
			return t, true
		}
	}
	return Transition{}, false
}

// ByLabel returns the transition with the given label, if any. Used by the
// overlay merge step (spec.md §6 "patches: ... match-by-label").
func (w *Workflow) ByLabel(label string) (int, bool) {
	for i, t := range w.Transitions {
		if t.Label == label {
			return i, true
		}
	}
	return 0, false
}
