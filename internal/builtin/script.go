// Package builtin provides a generic, data-driven actor payload so a
// workflow document alone (no compiled Go code) can drive a runnable
// interpreter session, the way the CLI's run command needs to.
package builtin

import (
	"fmt"
	"strings"
	"time"

	"github.com/roasbeef/actorflow/internal/dispatch"
)

// ScriptActor is a payload implementing a small, fixed set of actions
// useful for exercising and demonstrating workflows from the command
// line, where no purpose-built actor payload exists for the names a
// workflow document references.
type ScriptActor struct {
	name  string
	table *dispatch.Table
}

// NewScriptActor builds a ScriptActor identified by name, used in log
// and echo output.
func NewScriptActor(name string) *ScriptActor {
	s := &ScriptActor{name: name}
	s.table = dispatch.NewTable().
		Register("echo", s.echo).
		Register("log", s.log).
		Register("sleep", s.sleep).
		Register("concat", s.concat).
		Register("fail", s.fail).
		Register("noop", s.noop)

	return s
}

// ActionTable exposes the registered actions, satisfying
// dispatch.TableProvider.
func (s *ScriptActor) ActionTable() *dispatch.Table {
	return s.table
}

// echo returns its arguments joined back as the result string.
func (s *ScriptActor) echo(args string) dispatch.ActionResult {
	bundle, err := dispatch.ParseBundle(args)
	if err != nil {
		return dispatch.Fail(err.Error())
	}

	parts := make([]string, 0, bundle.Len())
	for i := 0; i < bundle.Len(); i++ {
		parts = append(parts, bundle.String(i, ""))
	}

	return dispatch.Ok(strings.Join(parts, " "))
}

// log writes its arguments to the package logger and succeeds with "ok".
func (s *ScriptActor) log(args string) dispatch.ActionResult {
	bundle, err := dispatch.ParseBundle(args)
	if err != nil {
		return dispatch.Fail(err.Error())
	}

	log.Infof("[%s] %s", s.name, bundle.String(0, ""))

	return dispatch.Ok("ok")
}

// sleep blocks for the millisecond count given as its first argument.
func (s *ScriptActor) sleep(args string) dispatch.ActionResult {
	bundle, err := dispatch.ParseBundle(args)
	if err != nil {
		return dispatch.Fail(err.Error())
	}

	ms := bundle.Int(0, 0)
	time.Sleep(time.Duration(ms) * time.Millisecond)

	return dispatch.Ok(fmt.Sprintf("slept %dms", ms))
}

// concat joins every argument's string form with no separator.
func (s *ScriptActor) concat(args string) dispatch.ActionResult {
	bundle, err := dispatch.ParseBundle(args)
	if err != nil {
		return dispatch.Fail(err.Error())
	}

	var sb strings.Builder
	for i := 0; i < bundle.Len(); i++ {
		sb.WriteString(bundle.String(i, ""))
	}

	return dispatch.Ok(sb.String())
}

// fail always returns a failed ActionResult, for exercising abort paths.
func (s *ScriptActor) fail(args string) dispatch.ActionResult {
	bundle, err := dispatch.ParseBundle(args)
	if err != nil {
		return dispatch.Fail(err.Error())
	}

	return dispatch.Fail(bundle.String(0, "forced failure"))
}

// noop always succeeds with "ok", ignoring its arguments.
func (s *ScriptActor) noop(string) dispatch.ActionResult {
	return dispatch.Ok("ok")
}
