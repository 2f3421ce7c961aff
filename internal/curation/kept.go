package curation

import (
	"fmt"

	"swipeshop/internal/domain"
)

// Direction moves a kept card towards the start (Up) or end (Down).
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection validates a move direction.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Up, Down:
		return d, nil
	default:
		return "", fmt.Errorf("%w: unknown move direction %q", domain.ErrInvalidInput, s)
	}
}

// Kept is the user's ordered output. Ids are unique within it.
type Kept struct {
	cards []domain.Card
}

// NewKept returns an empty kept sequence.
func NewKept() *Kept {
	return &Kept{}
}

// Append adds the card unless its id is already present.
func (k *Kept) Append(card domain.Card) bool {
	if k.Contains(card.ID) {
		return false
	}
	k.cards = append(k.cards, card)
	return true
}

// Reorder replaces the sequence with a permutation of the current ids.
// Anything that adds, drops or repeats an id is rejected and leaves the
// sequence untouched.
func (k *Kept) Reorder(ids []string) error {
	if len(ids) != len(k.cards) {
		return fmt.Errorf("%w: got %d ids, have %d cards", domain.ErrNotPermutation, len(ids), len(k.cards))
	}
	byID := make(map[string]domain.Card, len(k.cards))
	for _, c := range k.cards {
		byID[c.ID] = c
	}
	next := make([]domain.Card, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: unknown or repeated id %q", domain.ErrNotPermutation, id)
		}
		delete(byID, id)
		next = append(next, c)
	}
	k.cards = next
	return nil
}

// MoveAdjacent swaps the card at index with its neighbour. Boundaries and
// out-of-range indexes are no-ops.
func (k *Kept) MoveAdjacent(index int, dir Direction) bool {
	target := index - 1
	if dir == Down {
		target = index + 1
	}
	if index < 0 || index >= len(k.cards) || target < 0 || target >= len(k.cards) {
		return false
	}
	k.cards[index], k.cards[target] = k.cards[target], k.cards[index]
	return true
}

// UpdateText replaces the copy of the matching card.
func (k *Kept) UpdateText(id, text string) bool {
	idx := domain.IndexOf(k.cards, id)
	if idx < 0 {
		return false
	}
	k.cards[idx].Copy = text
	return true
}

// RemoveByID deletes the matching card.
func (k *Kept) RemoveByID(id string) bool {
	idx := domain.IndexOf(k.cards, id)
	if idx < 0 {
		return false
	}
	k.cards = append(k.cards[:idx:idx], k.cards[idx+1:]...)
	return true
}

func (k *Kept) Get(id string) (domain.Card, bool) {
	idx := domain.IndexOf(k.cards, id)
	if idx < 0 {
		return domain.Card{}, false
	}
	return k.cards[idx], true
}

func (k *Kept) IndexOf(id string) int {
	return domain.IndexOf(k.cards, id)
}

func (k *Kept) Contains(id string) bool {
	return domain.IndexOf(k.cards, id) >= 0
}

func (k *Kept) Len() int {
	return len(k.cards)
}

// Cards returns a copy of the sequence.
func (k *Kept) Cards() []domain.Card {
	return append([]domain.Card{}, k.cards...)
}

func (k *Kept) Clear() {
	k.cards = nil
}
