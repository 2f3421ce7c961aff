// Package workflow implements the ordered-stage controller that gates a
// project session.
package workflow

import (
	"fmt"

	"swipeshop/internal/domain"
)

// Facts is what gates are evaluated against. The session fills it in from
// its own collections before every transition.
type Facts struct {
	PurposeSelected bool
	HasContent      bool
	StyleSelected   bool
	PoolLen         int
	KeptLen         int
}

// Gate returns nil when the stage it belongs to is complete.
type Gate func(Facts) error

// Stage is one step of a flow.
type Stage struct {
	Name  string
	Label string
	Gate  Gate
}

// Flow is an ordered list of stages. CurateStage and EditStage are 1-based
// and drive the auto-advance rule; zero disables it.
type Flow struct {
	Name        string
	Stages      []Stage
	CurateStage int
	EditStage   int
}

const (
	FlowWizard = "wizard"
	FlowDeck   = "deck"
)

func incomplete(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrStageIncomplete}, args...)...)
}

func requirePurpose(f Facts) error {
	if !f.PurposeSelected {
		return incomplete("select a purpose first")
	}
	return nil
}

func requireContent(f Facts) error {
	if !f.HasContent {
		return incomplete("add at least one image or a description")
	}
	return nil
}

func requireGenerated(f Facts) error {
	if !f.StyleSelected {
		return incomplete("select a style first")
	}
	if f.PoolLen == 0 && f.KeptLen == 0 {
		return incomplete("generate candidates first")
	}
	return nil
}

func requireKept(f Facts) error {
	if f.KeptLen == 0 {
		return incomplete("keep at least one card")
	}
	return nil
}

// WizardFlow is the six-stage purpose → export flow. Labels are the
// user-facing step names.
func WizardFlow(labels []string) Flow {
	stages := []Stage{
		{Name: "purpose", Gate: requirePurpose},
		{Name: "input", Gate: requireContent},
		{Name: "style", Gate: requireGenerated},
		{Name: "curate", Gate: requireKept},
		{Name: "edit", Gate: requireKept},
		{Name: "export"},
	}
	applyLabels(stages, labels)
	return Flow{Name: FlowWizard, Stages: stages, CurateStage: 4, EditStage: 5}
}

// DeckFlow is the two-stage generate → swipe flow.
func DeckFlow() Flow {
	return Flow{
		Name: FlowDeck,
		Stages: []Stage{
			{Name: "generate", Label: "generate", Gate: func(f Facts) error {
				if f.PoolLen == 0 && f.KeptLen == 0 {
					return incomplete("generate candidates first")
				}
				return nil
			}},
			{Name: "curate", Label: "curate"},
		},
		CurateStage: 2,
	}
}

// FlowByName resolves a flow name, defaulting to the wizard.
func FlowByName(name string, labels []string) (Flow, error) {
	switch name {
	case "", FlowWizard:
		return WizardFlow(labels), nil
	case FlowDeck:
		return DeckFlow(), nil
	default:
		return Flow{}, fmt.Errorf("%w: unknown flow %q", domain.ErrInvalidInput, name)
	}
}

func applyLabels(stages []Stage, labels []string) {
	for i := range stages {
		if i < len(labels) && labels[i] != "" {
			stages[i].Label = labels[i]
		} else {
			stages[i].Label = stages[i].Name
		}
	}
}

// StageNumber returns the 1-based number of the named stage, or 0.
func (f Flow) StageNumber(name string) int {
	for i, s := range f.Stages {
		if s.Name == name {
			return i + 1
		}
	}
	return 0
}
