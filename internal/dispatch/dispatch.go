// Package dispatch implements the string-action-name-in,
// string-in-ActionResult-out contract actions are invoked through
// (spec.md §4.5), bridging the Interpreter's workflow actions to whatever
// heterogeneous payload type an Actor happens to own.
package dispatch

import "fmt"

// ActionResult is the entire dispatch ABI: a success flag and a single
// string result (spec.md §3 "ActionResult"). It is deliberately not
// extensible.
type ActionResult struct {
	Success bool
	Result  string
}

// Ok builds a successful ActionResult.
func Ok(result string) ActionResult {
	return ActionResult{Success: true, Result: result}
}

// Fail builds a failed ActionResult.
func Fail(result string) ActionResult {
	return ActionResult{Success: false, Result: result}
}

// unknownAction is the fixed response for an action name neither dispatch
// mode recognizes (spec.md §4.5).
func unknownAction(name string) ActionResult {
	return Fail(fmt.Sprintf("Unknown action: %s", name))
}

// ActionFunc is a single registered action body. args is the raw
// argument-bundle string produced by PackArguments.
type ActionFunc func(args string) ActionResult

// Dispatcher is the explicit switch dispatch mode (spec.md §4.5 mode 1):
// a payload implements a single call_by_action_name operation and is free
// to switch on the action name itself.
type Dispatcher interface {
	CallByActionName(action, args string) ActionResult
}

// TableProvider is the registration-table dispatch mode (spec.md §4.5 mode
// 2). Go has no runtime method annotations, so the "reflective annotation
// dispatch" the spec describes is implemented as an explicit table a
// payload builds once and exposes here, per SPEC_FULL.md/design note 9
// ("replace reflection-based annotation dispatch with an explicit
// registration table"). When both modes are available on a payload, the
// table wins (spec.md §4.5).
type TableProvider interface {
	ActionTable() *Table
}

// Table is a name-keyed registry of ActionFuncs, built once per payload
// type and shared across every instance of that type.
type Table struct {
	actions map[string]ActionFunc
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{actions: make(map[string]ActionFunc)}
}

// Register adds fn under name, returning the Table for chaining.
func (t *Table) Register(name string, fn ActionFunc) *Table {
	t.actions[name] = fn
	return t
}

// Lookup returns the registered ActionFunc for name, if any.
func (t *Table) Lookup(name string) (ActionFunc, bool) {
	fn, ok := t.actions[name]
	return fn, ok
}

// Dispatch invokes action against payload with args, preferring a
// TableProvider's registration table over a Dispatcher's switch, and
// falling back to the fixed "Unknown action" result if payload implements
// neither (spec.md §4.5).
func Dispatch(payload any, action, args string) ActionResult {
	if provider, ok := payload.(TableProvider); ok {
		if fn, ok := provider.ActionTable().Lookup(action); ok {
			return fn(args)
		}
	}

	if d, ok := payload.(Dispatcher); ok {
		return d.CallByActionName(action, args)
	}

	return unknownAction(action)
}
