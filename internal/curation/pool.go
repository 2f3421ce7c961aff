// Package curation holds the candidate pool, the kept sequence and the
// decisions that move cards between them.
package curation

import "swipeshop/internal/domain"

// Pool is the ordered set of cards still awaiting a decision. The last
// element is the top of the deck.
type Pool struct {
	cards []domain.Card
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Populate replaces the pool contents wholesale.
func (p *Pool) Populate(cards []domain.Card) {
	p.cards = append([]domain.Card(nil), cards...)
}

// Prepend puts a card at the bottom of the deck (front of the grid).
func (p *Pool) Prepend(card domain.Card) bool {
	if p.Contains(card.ID) {
		return false
	}
	p.cards = append([]domain.Card{card}, p.cards...)
	return true
}

// RemoveByID deletes the card if present.
func (p *Pool) RemoveByID(id string) bool {
	idx := domain.IndexOf(p.cards, id)
	if idx < 0 {
		return false
	}
	p.cards = append(p.cards[:idx:idx], p.cards[idx+1:]...)
	return true
}

// PeekTop returns the next card to decide in swipe mode.
func (p *Pool) PeekTop() (domain.Card, bool) {
	if len(p.cards) == 0 {
		return domain.Card{}, false
	}
	return p.cards[len(p.cards)-1], true
}

func (p *Pool) Get(id string) (domain.Card, bool) {
	idx := domain.IndexOf(p.cards, id)
	if idx < 0 {
		return domain.Card{}, false
	}
	return p.cards[idx], true
}

func (p *Pool) Contains(id string) bool {
	return domain.IndexOf(p.cards, id) >= 0
}

func (p *Pool) Len() int {
	return len(p.cards)
}

// Cards returns a copy of the pool in presentation order.
func (p *Pool) Cards() []domain.Card {
	return append([]domain.Card{}, p.cards...)
}

// Clear empties the pool.
func (p *Pool) Clear() {
	p.cards = nil
}
