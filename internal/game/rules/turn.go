package rules

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// Step is one phase of a battle round.
type Step string

const (
	StepIdle   Step = "idle"
	StepDice   Step = "dice"
	StepSet    Step = "set"
	StepMove   Step = "move"
	StepAction Step = "action"
	StepDraw   Step = "draw"
)

// RoundOrder is the order in which the steps of a round are played. The step
// after StepDraw is StepDice of the next round.
var RoundOrder = []Step{StepDice, StepSet, StepMove, StepAction, StepDraw}

const (
	eventStart   = "start"
	eventAdvance = "advance"
)

// Hooks receives step transitions. On every advance After runs for the step
// being left and then Before runs for the step being entered. Starting the
// cycle only runs Before for the first step.
type Hooks interface {
	After(ctx context.Context, step Step)
	Before(ctx context.Context, step Step)
}

// Cycle drives the repeating round steps of one battle.
type Cycle struct {
	machine *fsm.FSM
	hooks   Hooks
	logger  *zap.Logger
	rounds  int
}

// NewCycle returns a cycle parked in StepIdle.
func NewCycle(hooks Hooks, logger *zap.Logger) *Cycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cycle{hooks: hooks, logger: logger}

	events := fsm.Events{
		{Name: eventStart, Src: []string{string(StepIdle)}, Dst: string(RoundOrder[0])},
	}
	for i, step := range RoundOrder {
		next := RoundOrder[(i+1)%len(RoundOrder)]
		events = append(events, fsm.EventDesc{Name: eventAdvance, Src: []string{string(step)}, Dst: string(next)})
	}

	c.machine = fsm.NewFSM(string(StepIdle), events, fsm.Callbacks{
		"leave_state": func(ctx context.Context, e *fsm.Event) {
			if Step(e.Src) != StepIdle {
				c.hooks.After(ctx, Step(e.Src))
			}
		},
		"enter_state": func(ctx context.Context, e *fsm.Event) {
			if Step(e.Dst) == RoundOrder[0] {
				c.rounds++
			}
			c.logger.Debug("round step",
				zap.String("from", e.Src),
				zap.String("to", e.Dst),
				zap.Int("cycle_round", c.rounds))
			c.hooks.Before(ctx, Step(e.Dst))
		},
	})
	return c
}

// Current returns the step in progress.
func (c *Cycle) Current() Step {
	return Step(c.machine.Current())
}

// Rounds returns how many times the cycle has entered its first step.
func (c *Cycle) Rounds() int {
	return c.rounds
}

// Start enters the first step of the first round.
func (c *Cycle) Start(ctx context.Context) error {
	if err := c.machine.Event(ctx, eventStart); err != nil {
		return fmt.Errorf("start round cycle: %w", err)
	}
	return nil
}

// Advance finishes the current step and enters the next one.
func (c *Cycle) Advance(ctx context.Context) error {
	if c.Current() == StepIdle {
		return fmt.Errorf("advance round cycle: not started")
	}
	if err := c.machine.Event(ctx, eventAdvance); err != nil {
		return fmt.Errorf("advance round cycle from %s: %w", c.Current(), err)
	}
	return nil
}

// Reset parks the cycle in StepIdle without running any hooks.
func (c *Cycle) Reset() {
	c.machine.SetState(string(StepIdle))
	c.rounds = 0
}
