package lead

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncateError(t *testing.T) {
	t.Parallel()

	t.Run("short message unchanged", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, "boom", TruncateError("boom"))
	})

	t.Run("ascii cut at the bound", func(t *testing.T) {
		t.Parallel()
		got := TruncateError(strings.Repeat("e", MaxErrorMessageLen+100))
		require.Len(t, got, MaxErrorMessageLen)
	})

	t.Run("multibyte rune never split", func(t *testing.T) {
		t.Parallel()
		// The leading ascii byte shifts every rune off an even offset, so
		// the bound lands mid-rune and the cut must back up.
		msg := "x" + strings.Repeat("ü", MaxErrorMessageLen)
		got := TruncateError(msg)
		require.True(t, utf8.ValidString(got))
		require.LessOrEqual(t, len(got), MaxErrorMessageLen)
		require.Equal(t, MaxErrorMessageLen-1, len(got))
	})
}

func TestStageIndex(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, StageIndex(StageBoot))
	require.Equal(t, len(StageOrder)-1, StageIndex(StageRunCompleted))
	require.Equal(t, -1, StageIndex(StageFailed))
	require.Equal(t, -1, StageIndex(Stage("NOPE")))
}
