package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestKVStateRoundTripInvariant verifies that any string value written at a
// generated dotted path is returned unchanged by Select at the same path.
func TestKVStateRoundTripInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewKVState()

		segments := rapid.SliceOfN(
			rapid.StringMatching(`[a-z][a-z0-9]{0,5}`), 1, 4,
		).Draw(t, "segments")

		path := segments[0]
		for _, seg := range segments[1:] {
			path += "." + seg
		}

		value := rapid.String().Draw(t, "value")

		err := s.Put(path, value)
		require.NoError(t, err)

		got := s.Select(path)
		require.Equal(t, value, got)
	})
}

// TestKVStateEmptyTreeEverythingMissing verifies that every path resolves
// to Missing against a freshly constructed, never-written KVState.
func TestKVStateEmptyTreeEverythingMissing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewKVState()

		path := rapid.StringMatching(`[a-z][a-z0-9.]{0,10}[a-z0-9]`).
			Draw(t, "path")

		got := s.Select(path)
		require.True(t, IsMissing(got))
	})
}

// TestMailboxPreservesFIFOOrder verifies that jobs are always observed by
// receive in the exact order they were accepted by send, regardless of
// queue depth.
func TestMailboxPreservesFIFOOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		actorCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		n := rapid.IntRange(1, 64).Draw(t, "n")
		mb := newMailbox(actorCtx, n)
		defer mb.close()

		for i := 0; i < n; i++ {
			require.True(t, mb.send(ctx, newTestJob(i)))
		}

		got := 0
		for j := range mb.receive(ctx) {
			val, err := j.run(ctx)
			require.NoError(t, err)
			require.Equal(t, got, val)
			got++
			if got == n {
				break
			}
		}
	})
}
