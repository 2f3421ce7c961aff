package workflow

import (
	"fmt"

	"swipeshop/internal/domain"
)

// Controller tracks the current stage and the furthest stage ever reached.
// It is not safe for concurrent use; the owning session serializes access.
type Controller struct {
	flow      Flow
	current   int
	highWater int
}

// NewController starts a flow at stage 1.
func NewController(flow Flow) *Controller {
	return &Controller{flow: flow, current: 1, highWater: 1}
}

func (c *Controller) Flow() Flow      { return c.flow }
func (c *Controller) Current() int    { return c.current }
func (c *Controller) HighWater() int  { return c.highWater }
func (c *Controller) StageCount() int { return len(c.flow.Stages) }

// CurrentName returns the name of the current stage.
func (c *Controller) CurrentName() string {
	return c.flow.Stages[c.current-1].Name
}

// CanGoTo reports whether GoTo(stage) would be accepted.
func (c *Controller) CanGoTo(stage int) bool {
	if stage < 1 || stage > len(c.flow.Stages) {
		return false
	}
	return stage == 1 || stage <= c.highWater
}

// GoTo navigates to a previously reached stage. Stages past the high-water
// mark are rejected rather than clamped.
func (c *Controller) GoTo(stage int) error {
	if !c.CanGoTo(stage) {
		return fmt.Errorf("%w: stage %d is locked (reached %d of %d)", domain.ErrInvalidTransition, stage, c.highWater, len(c.flow.Stages))
	}
	c.current = stage
	return nil
}

// Advance moves one stage forward once the current stage's gate passes.
func (c *Controller) Advance(f Facts) error {
	if c.current >= len(c.flow.Stages) {
		return fmt.Errorf("%w: already at the last stage", domain.ErrInvalidTransition)
	}
	if gate := c.flow.Stages[c.current-1].Gate; gate != nil {
		if err := gate(f); err != nil {
			return err
		}
	}
	c.enter(c.current + 1)
	return nil
}

// AdvanceTo advances stage by stage until target is reached, stopping at the
// first gate that fails. Moving backwards goes through GoTo.
func (c *Controller) AdvanceTo(target int, f Facts) error {
	if target < c.current {
		return c.GoTo(target)
	}
	for c.current < target {
		if err := c.Advance(f); err != nil {
			return err
		}
	}
	return nil
}

// Reconcile applies the automatic transition: once every candidate has been
// triaged on the curation stage and something was kept, move to editing.
func (c *Controller) Reconcile(poolLen, keptLen int) bool {
	if c.flow.CurateStage == 0 || c.flow.EditStage == 0 {
		return false
	}
	if c.current != c.flow.CurateStage || poolLen != 0 || keptLen == 0 {
		return false
	}
	c.enter(c.flow.EditStage)
	return true
}

// Reset returns to stage 1 and forgets the high-water mark.
func (c *Controller) Reset() {
	c.current = 1
	c.highWater = 1
}

func (c *Controller) enter(stage int) {
	c.current = stage
	if stage > c.highWater {
		c.highWater = stage
	}
}

// StageView is the per-stage entry of a Snapshot.
type StageView struct {
	Number   int    `json:"number"`
	Name     string `json:"name"`
	Label    string `json:"label"`
	Unlocked bool   `json:"unlocked"`
}

// Snapshot is a read-only view of the controller.
type Snapshot struct {
	Flow      string      `json:"flow"`
	Current   int         `json:"current"`
	Stage     string      `json:"stage"`
	HighWater int         `json:"high_water"`
	Stages    []StageView `json:"stages"`
}

func (c *Controller) Snapshot() Snapshot {
	views := make([]StageView, len(c.flow.Stages))
	for i, s := range c.flow.Stages {
		views[i] = StageView{Number: i + 1, Name: s.Name, Label: s.Label, Unlocked: c.CanGoTo(i + 1)}
	}
	return Snapshot{
		Flow:      c.flow.Name,
		Current:   c.current,
		Stage:     c.CurrentName(),
		HighWater: c.highWater,
		Stages:    views,
	}
}
