// Package interpreter drives a workflow's state machine step by step:
// selecting the matching transition, expanding ${...} variable references,
// dispatching each action against its target actor, and folding the result
// back into the workflow's variable scope (spec.md §4.6 "Workflow &
// Interpreter").
package interpreter

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roasbeef/actorflow/internal/actor"
	"github.com/roasbeef/actorflow/internal/dispatch"
	"github.com/roasbeef/actorflow/internal/pool"
	"github.com/roasbeef/actorflow/internal/workflow"
)

// interpreterSeq generates unique self-actor names when the caller doesn't
// supply one.
var interpreterSeq atomic.Uint64

// interpState is the mutable cursor an Interpreter protects behind its
// self-actor's mailbox: the current state token, the step counter, and the
// variable scope (spec.md §4.6 "Interpreter state").
type interpState struct {
	stateToken string
	step       int
	vars       map[string]any
}

// Interpreter drives wf against system, dispatching POOL-mode actions
// through pool. All cursor mutation happens inside a step run against the
// self actor's mailbox, which is what gives a reusable Interpreter instance
// its "one call at a time" guarantee even without an extra lock for the
// per-step bookkeeping; CallReusable adds a coarser lock around an entire
// sub-workflow run, since that spans many steps.
type Interpreter struct {
	wf     *workflow.Workflow
	system *actor.ActorSystem
	pool   pool.OwnerPool

	self *actor.Actor

	runMu sync.Mutex

	subMu    sync.Mutex
	subCache map[string]*Interpreter
}

// New creates an Interpreter over wf, seeded with vars (spec.md §4.6:
// "initially seeded from external -P overrides"). vars may be nil.
func New(wf *workflow.Workflow, system *actor.ActorSystem, p pool.OwnerPool, vars map[string]any) (*Interpreter, error) {
	if vars == nil {
		vars = make(map[string]any)
	}

	name := fmt.Sprintf("interpreter:%s:%d", wf.Name, interpreterSeq.Add(1))

	self, err := actor.New(actor.Config{
		Name: name,
		Payload: &interpState{
			stateToken: wf.InitialState,
			vars:       vars,
		},
	})
	if err != nil {
		return nil, err
	}
	self.Start()

	return &Interpreter{
		wf:       wf,
		system:   system,
		pool:     p,
		self:     self,
		subCache: make(map[string]*Interpreter),
	}, nil
}

// Close stops the interpreter's self actor. Safe to call once the
// interpreter is no longer needed.
func (ip *Interpreter) Close() {
	ip.subMu.Lock()
	for _, sub := range ip.subCache {
		sub.Close()
	}
	ip.subMu.Unlock()

	ip.self.Close()
}

// State returns the current state token.
func (ip *Interpreter) State(ctx context.Context) string {
	res, _ := actor.Ask[string](ctx, ip.self, func(_ context.Context, payload any) (string, error) {
		return payload.(*interpState).stateToken, nil
	}).Await(ctx).Unpack()
	return res
}

// StepCount returns the number of steps successfully completed so far.
func (ip *Interpreter) StepCount(ctx context.Context) int {
	res, _ := actor.Ask[int](ctx, ip.self, func(_ context.Context, payload any) (int, error) {
		return payload.(*interpState).step, nil
	}).Await(ctx).Unpack()
	return res
}

// Step runs a single transition of the workflow's state machine (spec.md
// §4.6 "Single step algorithm").
func (ip *Interpreter) Step(ctx context.Context) (dispatch.ActionResult, error) {
	return actor.Ask[dispatch.ActionResult](ctx, ip.self,
		func(ctx context.Context, payload any) (dispatch.ActionResult, error) {
			return ip.doStep(ctx, payload.(*interpState))
		}).Await(ctx).Unpack()
}

// doStep implements the single-step algorithm. It runs with exclusive
// access to st, guaranteed by the self actor's mailbox.
func (ip *Interpreter) doStep(ctx context.Context, st *interpState) (dispatch.ActionResult, error) {
	tr, ok := ip.wf.FindTransition(st.stateToken)
	if !ok {
		return dispatch.Fail(workflow.TerminalState), nil
	}

	for _, action := range tr.Actions {
		result, err := ip.runAction(ctx, st, action)
		if err != nil {
			return dispatch.ActionResult{}, err
		}

		st.vars["result"] = result.Result

		if !result.Success {
			return result, nil
		}
	}

	st.step++

	next := workflow.TerminalState
	if len(tr.States.To) > 0 {
		next = tr.States.To[0]
	}
	st.stateToken = next

	return dispatch.Ok(next), nil
}

// runAction expands, serializes, resolves, and dispatches one action
// (spec.md §4.6 step 2).
func (ip *Interpreter) runAction(ctx context.Context, st *interpState, action workflow.Action) (dispatch.ActionResult, error) {
	if isSubWorkflowCall(action.Method) {
		return ip.invokeSubWorkflow(ctx, action)
	}

	target, ok := ip.system.Get(action.Actor)
	if !ok {
		return dispatch.Fail(fmt.Sprintf("actor not found: %s", action.Actor)), nil
	}

	expanded := expandValue(action.Arguments, st.vars, target)

	argsJSON, err := dispatch.PackArguments(expanded)
	if err != nil {
		return dispatch.ActionResult{}, fmt.Errorf("packing arguments: %w", err)
	}

	var result dispatch.ActionResult

	switch action.EffectiveMode() {
	case workflow.ModeDirect:
		result, err = actor.InvokeDirect(target, func(payload any) (dispatch.ActionResult, error) {
			return dispatch.Dispatch(payload, action.Method, argsJSON), nil
		})
		if err != nil {
			return dispatch.ActionResult{}, err
		}

	default:
		fut := actor.AskOnOwnerPool[dispatch.ActionResult](ctx, target, ip.pool, action.Actor,
			func(_ context.Context, payload any) (dispatch.ActionResult, error) {
				return dispatch.Dispatch(payload, action.Method, argsJSON), nil
			})

		result, err = fut.Await(ctx).Unpack()
		if err != nil {
			return dispatch.ActionResult{}, err
		}
	}

	target.KVState().Put("result", result.Result)

	return result, nil
}

// isSubWorkflowCall reports whether method names the sub-workflow
// invocation verb (spec.md §4.6 "the call or runWorkflow action").
func isSubWorkflowCall(method string) bool {
	return method == "call" || method == "runWorkflow"
}

// invokeSubWorkflow loads and runs a sub-workflow named by action's
// arguments mapping: {workflow: <path>, reusable: <bool, default true>,
// vars: <mapping>, maxIterations: <int, default 1000>}.
func (ip *Interpreter) invokeSubWorkflow(ctx context.Context, action workflow.Action) (dispatch.ActionResult, error) {
	argsMap, ok := action.Arguments.(map[string]any)
	if !ok {
		return dispatch.Fail("call action requires a mapping of arguments"), nil
	}

	path, _ := argsMap["workflow"].(string)
	if path == "" {
		return dispatch.Fail("call action missing workflow path"), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return dispatch.Fail(fmt.Sprintf("loading sub-workflow: %v", err)), nil
	}

	subWf, err := workflow.Parse(data)
	if err != nil {
		return dispatch.Fail(fmt.Sprintf("parsing sub-workflow: %v", err)), nil
	}

	reusable := true
	if r, ok := argsMap["reusable"].(bool); ok {
		reusable = r
	}

	maxIter := 1000
	switch v := argsMap["maxIterations"].(type) {
	case int:
		maxIter = v
	case float64:
		maxIter = int(v)
	}

	var subVars map[string]any
	if v, ok := argsMap["vars"].(map[string]any); ok {
		subVars = v
	}

	if reusable {
		cached, err := ip.reusableSubInterpreter(path, subWf, subVars)
		if err != nil {
			return dispatch.ActionResult{}, err
		}
		return cached.CallReusable(ctx, maxIter)
	}

	return CallNonReusable(ctx, subWf, ip.system, ip.pool, subVars, maxIter)
}

// reusableSubInterpreter returns the cached Interpreter for path, creating
// it on first use.
func (ip *Interpreter) reusableSubInterpreter(path string, wf *workflow.Workflow, vars map[string]any) (*Interpreter, error) {
	ip.subMu.Lock()
	defer ip.subMu.Unlock()

	if sub, ok := ip.subCache[path]; ok {
		return sub, nil
	}

	sub, err := New(wf, ip.system, ip.pool, vars)
	if err != nil {
		return nil, err
	}

	ip.subCache[path] = sub
	return sub, nil
}

// CallReusable resets and runs this interpreter to completion, holding
// runMu for the whole call so concurrent callers of the same reusable
// Interpreter instance are fully serialized (spec.md §4.6 "a reusable
// variant serializes concurrent sub-workflow calls behind a single
// interpreter instance").
func (ip *Interpreter) CallReusable(ctx context.Context, maxIterations int) (dispatch.ActionResult, error) {
	ip.runMu.Lock()
	defer ip.runMu.Unlock()

	if err := ip.Reset(ctx); err != nil {
		return dispatch.ActionResult{}, err
	}

	return ip.RunUntilEnd(ctx, maxIterations)
}

// CallNonReusable instantiates a fresh Interpreter for wf, runs it to
// completion, and tears it down (spec.md §4.6: "a non-reusable variant
// instantiates a fresh interpreter per call").
func CallNonReusable(ctx context.Context, wf *workflow.Workflow, system *actor.ActorSystem, p pool.OwnerPool, vars map[string]any, maxIterations int) (dispatch.ActionResult, error) {
	sub, err := New(wf, system, p, vars)
	if err != nil {
		return dispatch.ActionResult{}, err
	}
	defer sub.Close()

	return sub.RunUntilEnd(ctx, maxIterations)
}

// RunUntilEnd repeats Step while it succeeds and the state token is not
// "end", bounded by maxIterations (spec.md §4.6 "Batch drive").
func (ip *Interpreter) RunUntilEnd(ctx context.Context, maxIterations int) (dispatch.ActionResult, error) {
	for i := 0; i < maxIterations; i++ {
		if ip.State(ctx) == workflow.TerminalState {
			return dispatch.Ok(workflow.TerminalState), nil
		}

		result, err := ip.Step(ctx)
		if err != nil {
			return dispatch.ActionResult{}, err
		}

		if !result.Success {
			return result, nil
		}
	}

	return dispatch.Fail("max iterations exceeded"), nil
}

// Reset restores the initial state token and clears the step counter,
// leaving variables as-is (spec.md §4.6 "Reset").
func (ip *Interpreter) Reset(ctx context.Context) error {
	_, err := actor.Ask[struct{}](ctx, ip.self, func(_ context.Context, payload any) (struct{}, error) {
		st := payload.(*interpState)
		st.stateToken = ip.wf.InitialState
		st.step = 0
		return struct{}{}, nil
	}).Await(ctx).Unpack()

	return err
}

// variableRef matches a single ${...} reference anywhere in a string.
var variableRef = regexp.MustCompile(`\$\{[^}]*\}`)

// wholeVariableRef matches a string that is exactly one ${...} reference,
// letting the resolved value's original type (not just its string form)
// pass through untouched.
var wholeVariableRef = regexp.MustCompile(`^\$\{([^}]*)\}$`)

// expandValue recursively expands ${...} references within v: a scalar
// string is expanded in place, sequence and mapping values are walked
// element-wise, everything else passes through unchanged (spec.md §4.6
// step 2a, §6 "Variable expansion syntax").
func expandValue(v any, vars map[string]any, target *actor.Actor) any {
	switch t := v.(type) {
	case string:
		if m := wholeVariableRef.FindStringSubmatch(t); m != nil {
			if resolved, ok := resolveVariable(m[1], vars, target); ok {
				return resolved
			}
			return t
		}

		return variableRef.ReplaceAllStringFunc(t, func(match string) string {
			inner := match[2 : len(match)-1]

			resolved, ok := resolveVariable(inner, vars, target)
			if !ok {
				return match
			}

			return fmt.Sprintf("%v", resolved)
		})

	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = expandValue(e, vars, target)
		}
		return out

	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = expandValue(e, vars, target)
		}
		return out

	default:
		return v
	}
}

// resolveVariable resolves one ${...} reference body (without the ${ }
// delimiters) against, in order: the interpreter's variable scope, the
// target actor's KV-State (stripping an optional "json." prefix), then the
// ${name:-default} default form (spec.md §6 "Resolution order").
func resolveVariable(inner string, vars map[string]any, target *actor.Actor) (any, bool) {
	name := inner
	def := ""
	hasDefault := false

	if idx := strings.Index(inner, ":-"); idx >= 0 {
		name = inner[:idx]
		def = inner[idx+2:]
		hasDefault = true
	}

	if v, ok := vars[name]; ok {
		return v, true
	}

	if target != nil {
		path := strings.TrimPrefix(name, "json.")
		if v := target.KVState().Select(path); !actor.IsMissing(v) {
			return v, true
		}
	}

	if hasDefault {
		return def, true
	}

	return nil, false
}
