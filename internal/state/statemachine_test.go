package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func walk(t *testing.T, evts ...string) string {
	t.Helper()
	cur := StateIdle
	for _, e := range evts {
		next, err := NextState(cur, e)
		require.NoError(t, err, "from %s on %s", cur, e)
		cur = next
	}
	return cur
}

func TestHappyPaths(t *testing.T) {
	assert.Equal(t, StateRecorded, walk(t, EvtSessionLoaded, EvtDebitOK, EvtDrawWin, EvtRecord))
	assert.Equal(t, StateRecorded, walk(t, EvtSessionLoaded, EvtDebitOK, EvtDrawLoss, EvtRecord))
}

func TestEarlyExits(t *testing.T) {
	assert.Equal(t, StateRejected, walk(t, EvtReject))
	assert.Equal(t, StateRejected, walk(t, EvtSessionLoaded, EvtReject))
	assert.Equal(t, StateDebitFailed, walk(t, EvtSessionLoaded, EvtDebitFail))
}

func TestNoBackwardsOrSkipping(t *testing.T) {
	cases := []struct{ cur, evt string }{
		{StateIdle, EvtDebitOK},
		{StateValidating, EvtDrawWin},
		{StateDebited, EvtReject},
		{StateDebited, EvtRecord},
		{StateWin, EvtDrawLoss},
		{StateRecorded, EvtSessionLoaded},
		{StateRejected, EvtSessionLoaded},
		{StateDebitFailed, EvtDebitOK},
	}
	for _, c := range cases {
		next, err := NextState(c.cur, c.evt)
		assert.Error(t, err, "%s --%s-->", c.cur, c.evt)
		assert.Equal(t, c.cur, next)
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(StateRecorded))
	assert.True(t, Terminal(StateRejected))
	assert.True(t, Terminal(StateDebitFailed))
	assert.False(t, Terminal(StateDebited))
	assert.False(t, Terminal(StateWin))
}
