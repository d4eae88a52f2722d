package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObserveSeqAdvancesOnContiguousSequence(t *testing.T) {
	var s sessionState
	require.False(t, s.observeSeq(1))
	require.False(t, s.observeSeq(2))
	require.False(t, s.observeSeq(3))
	require.Equal(t, int64(3), s.seq)
}

func TestObserveSeqLeavesSequenceUnchangedOnGap(t *testing.T) {
	var s sessionState
	require.False(t, s.observeSeq(1))

	gap := s.observeSeq(5)

	require.True(t, gap)
	require.Equal(t, int64(1), s.seq, "sequence must stay put on a gap so the next RESUME replays what was skipped")
}

func TestCanResumeRequiresBothSessionIDAndSeq(t *testing.T) {
	var s sessionState
	require.False(t, s.canResume())

	s.setReady("sess-1", "user-1", nil)
	require.False(t, s.canResume(), "no sequence observed yet")

	s.observeSeq(1)
	require.True(t, s.canResume())
}

func TestSetReadyStoresTraceOnlyWhenGiven(t *testing.T) {
	var s sessionState
	s.setReady("sess-1", "user-1", []string{"gateway-prd-1"})
	require.Equal(t, []string{"gateway-prd-1"}, s.trace)

	s.setReady("sess-1", "", nil)
	require.Equal(t, []string{"gateway-prd-1"}, s.trace, "a nil trace must not clear the previous READY's trace")
}

func TestInvalidateClearsEverything(t *testing.T) {
	s := sessionState{sessionID: "sess-1", userID: "user-1", seq: 4, hasSeq: true}
	s.invalidate()
	require.Equal(t, sessionState{}, s)
}
