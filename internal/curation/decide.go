package curation

import (
	"fmt"

	"swipeshop/internal/domain"
)

// Decision is the outcome of a swipe.
type Decision string

const (
	Accept Decision = "accept"
	Reject Decision = "reject"
)

// ParseDecision accepts both the decision names and the swipe gestures
// that produce them (right keeps, left discards).
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "accept", "right":
		return Accept, nil
	case "reject", "left":
		return Reject, nil
	default:
		return "", fmt.Errorf("%w: unknown decision %q", domain.ErrInvalidInput, s)
	}
}

// Outcome reports what a decision actually changed.
type Outcome struct {
	Applied bool `json:"applied"`
	Kept    bool `json:"kept"`
}

// Decide resolves a pool card. Accepting appends it to kept unless an equal
// id is already there; both directions then remove it from the pool. A card
// that has already left the pool is ignored.
func Decide(pool *Pool, kept *Kept, cardID string, d Decision) (Outcome, error) {
	if d != Accept && d != Reject {
		return Outcome{}, fmt.Errorf("%w: unknown decision %q", domain.ErrInvalidInput, d)
	}
	card, ok := pool.Get(cardID)
	if !ok {
		return Outcome{}, nil
	}
	out := Outcome{Applied: true}
	if d == Accept {
		out.Kept = kept.Append(card)
	}
	pool.RemoveByID(cardID)
	return out, nil
}

// Toggle flips kept membership for a card without touching the pool.
// It returns true when the card ends up kept.
func Toggle(kept *Kept, card domain.Card) bool {
	if kept.RemoveByID(card.ID) {
		return false
	}
	kept.Append(card)
	return true
}
