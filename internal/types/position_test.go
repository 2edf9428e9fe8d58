package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionPnL(t *testing.T) {
	long := Position{Side: SideLong, EntryPrice: 100}
	assert.InDelta(t, 0.02, long.PnLRatio(102), 1e-12)
	assert.InDelta(t, 10.0, long.ClosePnL(110, 1), 1e-12)

	short := Position{Side: SideShort, EntryPrice: 100}
	assert.InDelta(t, 100.0/98-1, short.PnLRatio(98), 1e-12)
	assert.InDelta(t, 4.0, short.ClosePnL(98, 2), 1e-12)
	assert.Zero(t, short.PnLRatio(0))
}

func TestSideHelpers(t *testing.T) {
	assert.Equal(t, SideShort, SideLong.Opposite())
	assert.Equal(t, "SELL", SideShort.OrderSide())
	s, ok := ParseSide(" BUY ")
	assert.True(t, ok)
	assert.Equal(t, SideLong, s)
	_, ok = ParseSide("maybe")
	assert.False(t, ok)
}

func TestExitDecisionActionable(t *testing.T) {
	assert.False(t, ExitDecision{}.Actionable())
	assert.False(t, ExitDecision{Action: ExitClosePartial}.Actionable())
	assert.True(t, ExitDecision{Action: ExitCloseAll, Fraction: 1}.Actionable())
}
