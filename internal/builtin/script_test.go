package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/actorflow/internal/dispatch"
)

func dispatchTo(t *testing.T, s *ScriptActor, action string, arg any) dispatch.ActionResult {
	t.Helper()

	packed, err := dispatch.PackArguments(arg)
	require.NoError(t, err)

	return dispatch.Dispatch(s, action, packed)
}

// TestScriptActorEchoJoinsArguments tests that echo returns its arguments
// space-joined.
func TestScriptActorEchoJoinsArguments(t *testing.T) {
	t.Parallel()

	s := NewScriptActor("greeter")
	res := dispatchTo(t, s, "echo", []any{"hello", "world"})
	require.True(t, res.Success)
	require.Equal(t, "hello world", res.Result)
}

// TestScriptActorConcatJoinsWithNoSeparator tests that concat has no
// separator between arguments, unlike echo.
func TestScriptActorConcatJoinsWithNoSeparator(t *testing.T) {
	t.Parallel()

	s := NewScriptActor("joiner")
	res := dispatchTo(t, s, "concat", []any{"foo", "bar"})
	require.True(t, res.Success)
	require.Equal(t, "foobar", res.Result)
}

// TestScriptActorSleepReportsDuration tests that sleep succeeds and
// reports the millisecond count it slept.
func TestScriptActorSleepReportsDuration(t *testing.T) {
	t.Parallel()

	s := NewScriptActor("waiter")
	res := dispatchTo(t, s, "sleep", []any{5})
	require.True(t, res.Success)
	require.Equal(t, "slept 5ms", res.Result)
}

// TestScriptActorFailReturnsFailure tests that fail always returns a
// failed ActionResult carrying its message argument.
func TestScriptActorFailReturnsFailure(t *testing.T) {
	t.Parallel()

	s := NewScriptActor("breaker")
	res := dispatchTo(t, s, "fail", []any{"boom"})
	require.False(t, res.Success)
	require.Equal(t, "boom", res.Result)
}

// TestScriptActorNoopIgnoresArguments tests that noop succeeds regardless
// of its input.
func TestScriptActorNoopIgnoresArguments(t *testing.T) {
	t.Parallel()

	s := NewScriptActor("idle")
	res := dispatchTo(t, s, "noop", nil)
	require.True(t, res.Success)
	require.Equal(t, "ok", res.Result)
}

// TestScriptActorUnknownActionFails tests that an action name outside the
// registered table falls through to the standard unknown-action result.
func TestScriptActorUnknownActionFails(t *testing.T) {
	t.Parallel()

	s := NewScriptActor("idle")
	res := dispatchTo(t, s, "nonexistent", nil)
	require.False(t, res.Success)
	require.Contains(t, res.Result, "Unknown action")
}
