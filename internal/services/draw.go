package services

import (
	"math/rand"

	"shiftdraw/internal/models"
)

// Shuffle permutes cards in place with a Fisher-Yates shuffle driven by rng.
func Shuffle(rng *rand.Rand, cards []models.Card) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// PlanDraw deals one unused card of the group's deck to every member of
// roster that has no committed result yet. Members are served in roster
// order from a uniformly shuffled copy of the remaining deck.
//
// roster may hold people of any group; only members of group are dealt.
// committed is the group's current ledger. Nothing is returned when no one
// is pending. When there are more pending members than free cards the
// whole draw fails with a DeckExhaustedError.
func PlanDraw(rng *rand.Rand, group models.Group, roster []models.Person, committed []models.Result) ([]models.Result, error) {
	if !group.Valid() {
		return nil, models.ErrUnknownGroup
	}

	drawn := make(map[string]bool, len(committed))
	usedCards := make(map[string]bool, len(committed))
	for _, r := range committed {
		if r.Group() != group {
			continue
		}
		drawn[r.PersonID] = true
		usedCards[r.Card.ID] = true
	}

	pending := make([]models.Person, 0)
	for _, p := range roster {
		if p.Group == group && !drawn[p.ID] {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	available := make([]models.Card, 0, models.TotalSize(group))
	for _, c := range models.DeckFor(group) {
		if !usedCards[c.ID] {
			available = append(available, c)
		}
	}
	if len(pending) > len(available) {
		return nil, &models.DeckExhaustedError{Group: group, Needed: len(pending), Available: len(available)}
	}

	Shuffle(rng, available)

	results := make([]models.Result, 0, len(pending))
	for i, p := range pending {
		results = append(results, models.Result{
			PersonID:   p.ID,
			PersonName: p.Name,
			Card:       available[i],
		})
	}
	return results, nil
}
