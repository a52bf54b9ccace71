package rules

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingHooks struct {
	calls []string
}

func (h *recordingHooks) After(_ context.Context, step Step) {
	h.calls = append(h.calls, fmt.Sprintf("after:%s", step))
}

func (h *recordingHooks) Before(_ context.Context, step Step) {
	h.calls = append(h.calls, fmt.Sprintf("before:%s", step))
}

func TestCycleStartRunsOnlyFirstBeforeHook(t *testing.T) {
	hooks := &recordingHooks{}
	c := NewCycle(hooks, zaptest.NewLogger(t))
	assert.Equal(t, StepIdle, c.Current())

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StepDice, c.Current())
	assert.Equal(t, []string{"before:dice"}, hooks.calls)
	assert.Equal(t, 1, c.Rounds())
}

func TestCycleAdvanceOrder(t *testing.T) {
	hooks := &recordingHooks{}
	c := NewCycle(hooks, zaptest.NewLogger(t))
	require.NoError(t, c.Start(context.Background()))
	hooks.calls = nil

	var seen []Step
	for range RoundOrder {
		require.NoError(t, c.Advance(context.Background()))
		seen = append(seen, c.Current())
	}
	assert.Equal(t, []Step{StepSet, StepMove, StepAction, StepDraw, StepDice}, seen)
	assert.Equal(t, []string{
		"after:dice", "before:set",
		"after:set", "before:move",
		"after:move", "before:action",
		"after:action", "before:draw",
		"after:draw", "before:dice",
	}, hooks.calls)
	assert.Equal(t, 2, c.Rounds())
}

func TestCycleAdvanceBeforeStartFails(t *testing.T) {
	c := NewCycle(&recordingHooks{}, nil)
	assert.Error(t, c.Advance(context.Background()))
}

func TestCycleStartTwiceFails(t *testing.T) {
	c := NewCycle(&recordingHooks{}, nil)
	require.NoError(t, c.Start(context.Background()))
	assert.Error(t, c.Start(context.Background()))
}

func TestCycleReset(t *testing.T) {
	hooks := &recordingHooks{}
	c := NewCycle(hooks, nil)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Advance(context.Background()))
	hooks.calls = nil

	c.Reset()
	assert.Equal(t, StepIdle, c.Current())
	assert.Empty(t, hooks.calls)
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StepDice, c.Current())
}
