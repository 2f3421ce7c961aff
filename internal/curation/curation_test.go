package curation

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swipeshop/internal/domain"
)

func card(id string) domain.Card {
	return domain.Card{ID: id, Section: "Hero", Copy: "copy " + id, Variant: domain.VariantOverlay, Kind: domain.KindProduct}
}

func seeded(ids ...string) (*Pool, *Kept) {
	pool := NewPool()
	cards := make([]domain.Card, len(ids))
	for i, id := range ids {
		cards[i] = card(id)
	}
	pool.Populate(cards)
	return pool, NewKept()
}

func TestPoolPeekTopIsLastElement(t *testing.T) {
	pool, _ := seeded("a", "b", "c")
	top, ok := pool.PeekTop()
	require.True(t, ok)
	assert.Equal(t, "c", top.ID)

	empty := NewPool()
	_, ok = empty.PeekTop()
	assert.False(t, ok)
}

func TestPoolRemoveAbsentIsNotAnError(t *testing.T) {
	pool, _ := seeded("a")
	assert.False(t, pool.RemoveByID("missing"))
	assert.Equal(t, 1, pool.Len())
}

func TestPopulateCopiesInput(t *testing.T) {
	cards := []domain.Card{card("a"), card("b")}
	pool := NewPool()
	pool.Populate(cards)
	cards[0].ID = "mutated"
	assert.True(t, pool.Contains("a"))
}

func TestAcceptTwiceKeepsOneCopy(t *testing.T) {
	pool, kept := seeded("a", "b")
	out, err := Decide(pool, kept, "a", Accept)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Applied: true, Kept: true}, out)

	// Same card re-populated and accepted again must not duplicate.
	pool.Populate([]domain.Card{card("a")})
	out, err = Decide(pool, kept, "a", Accept)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Applied: true, Kept: false}, out)

	if diff := cmp.Diff([]string{"a"}, domain.CardIDs(kept.Cards())); diff != "" {
		t.Fatalf("kept ids mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, pool.Len())
}

func TestRejectOnlyTouchesPool(t *testing.T) {
	pool, kept := seeded("a", "b")
	kept.Append(card("z"))
	_, err := Decide(pool, kept, "b", Reject)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, domain.CardIDs(pool.Cards()))
	assert.Equal(t, []string{"z"}, domain.CardIDs(kept.Cards()))
}

func TestDecideStaleCardIsNoop(t *testing.T) {
	pool, kept := seeded("a")
	_, err := Decide(pool, kept, "a", Reject)
	require.NoError(t, err)

	out, err := Decide(pool, kept, "a", Accept)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, 0, kept.Len())
}

func TestRemovedCardNeverReappearsUntilPopulate(t *testing.T) {
	pool, kept := seeded("a", "b", "c")
	for _, step := range []struct {
		id string
		d  Decision
	}{{"c", Accept}, {"b", Reject}, {"c", Accept}, {"b", Accept}} {
		_, err := Decide(pool, kept, step.id, step.d)
		require.NoError(t, err)
		assert.False(t, pool.Contains("b"))
		assert.False(t, pool.Contains("c"))
	}
	assert.Equal(t, []string{"a"}, domain.CardIDs(pool.Cards()))
}

func TestDecideRejectsUnknownDirection(t *testing.T) {
	pool, kept := seeded("a")
	_, err := Decide(pool, kept, "a", Decision("sideways"))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.True(t, pool.Contains("a"))
}

func TestParseDecisionAcceptsSwipeGestures(t *testing.T) {
	d, err := ParseDecision("right")
	require.NoError(t, err)
	assert.Equal(t, Accept, d)
	d, err = ParseDecision("left")
	require.NoError(t, err)
	assert.Equal(t, Reject, d)
	_, err = ParseDecision("up")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestToggleTwiceIsIdentity(t *testing.T) {
	pool, kept := seeded("a", "b")
	kept.Append(card("x"))
	before := kept.Cards()

	assert.True(t, Toggle(kept, card("a")))
	assert.False(t, Toggle(kept, card("a")))
	if diff := cmp.Diff(before, kept.Cards()); diff != "" {
		t.Fatalf("kept changed after two toggles (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, pool.Len(), "toggle must not touch the pool")

	assert.False(t, Toggle(kept, card("x")))
	assert.True(t, Toggle(kept, card("x")))
	assert.Equal(t, []string{"x"}, domain.CardIDs(kept.Cards()))
}

func keptWith(ids ...string) *Kept {
	k := NewKept()
	for _, id := range ids {
		k.Append(card(id))
	}
	return k
}

func TestReorderPreservesMembership(t *testing.T) {
	k := keptWith("a", "b", "c")
	require.NoError(t, k.Reorder([]string{"c", "a", "b"}))
	assert.Equal(t, []string{"c", "a", "b"}, domain.CardIDs(k.Cards()))
	got, _ := k.Get("a")
	assert.Equal(t, "copy a", got.Copy)
}

func TestReorderRejectsNonPermutations(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
	}{
		{name: "missing id", ids: []string{"a", "b"}},
		{name: "extra id", ids: []string{"a", "b", "c", "d"}},
		{name: "foreign id", ids: []string{"a", "b", "d"}},
		{name: "duplicate id", ids: []string{"a", "a", "b"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			k := keptWith("a", "b", "c")
			err := k.Reorder(tc.ids)
			assert.ErrorIs(t, err, domain.ErrNotPermutation)
			assert.Equal(t, []string{"a", "b", "c"}, domain.CardIDs(k.Cards()))
		})
	}
}

func TestMoveAdjacent(t *testing.T) {
	tests := []struct {
		name  string
		index int
		dir   Direction
		moved bool
		want  []string
	}{
		{name: "first up is noop", index: 0, dir: Up, want: []string{"a", "b", "c"}},
		{name: "last down is noop", index: 2, dir: Down, want: []string{"a", "b", "c"}},
		{name: "middle up", index: 1, dir: Up, moved: true, want: []string{"b", "a", "c"}},
		{name: "middle down", index: 1, dir: Down, moved: true, want: []string{"a", "c", "b"}},
		{name: "out of range", index: 7, dir: Up, want: []string{"a", "b", "c"}},
		{name: "negative", index: -1, dir: Down, want: []string{"a", "b", "c"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			k := keptWith("a", "b", "c")
			assert.Equal(t, tc.moved, k.MoveAdjacent(tc.index, tc.dir))
			assert.Equal(t, tc.want, domain.CardIDs(k.Cards()))
		})
	}
}

func TestUpdateTextAndRemove(t *testing.T) {
	k := keptWith("a", "b")
	assert.True(t, k.UpdateText("b", "new copy"))
	assert.False(t, k.UpdateText("zzz", "ignored"))
	got, _ := k.Get("b")
	assert.Equal(t, "new copy", got.Copy)

	assert.True(t, k.RemoveByID("a"))
	assert.False(t, k.RemoveByID("a"))
	assert.Equal(t, []string{"b"}, domain.CardIDs(k.Cards()))
}
